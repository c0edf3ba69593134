package model

import "fmt"

// Status is the closed set of probe outcomes.
type Status string

const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusSkip    Status = "skip"
	StatusFail    Status = "fail"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// ParseStatus validates s against the known statuses.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPass, StatusWarning, StatusSkip, StatusFail, StatusTimeout, StatusError:
		return Status(s), nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownStatus)
}

// Severity ranks statuses for worst-wins merges:
// pass(0) < warning/skip(1) < fail(2) < timeout(3) < error(4).
func (s Status) Severity() int {
	switch s {
	case StatusPass:
		return 0
	case StatusWarning, StatusSkip:
		return 1
	case StatusFail:
		return 2
	case StatusTimeout:
		return 3
	case StatusError:
		return 4
	}
	return 4
}

// Problematic reports whether a dependency with this status blocks dependents.
func (s Status) Problematic() bool {
	switch s {
	case StatusFail, StatusError, StatusTimeout:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// Worst returns the more severe of a and b.
func Worst(a, b Status) Status {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}
