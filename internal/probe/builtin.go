package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/udovicic/security-scanner-sub004/internal/model"
)

// RegisterBuiltins installs the probes shipped with the scanner.
func RegisterBuiltins(r *Registry) error {
	builtins := map[string]Factory{
		"tcp_connect":   func() (Probe, error) { return Func(tcpConnect), nil },
		"http_status":   func() (Probe, error) { return Func(httpStatus), nil },
		"response_time": func() (Probe, error) { return Func(responseTime), nil },
		"ssl_expiry":    func() (Probe, error) { return Func(sslExpiry), nil },
	}
	for name, f := range builtins {
		if err := r.Register(name, f); err != nil {
			return err
		}
	}
	return nil
}

// tcpConnect opens a plain TCP connection to a host:port target.
func tcpConnect(ctx context.Context, target string, _ map[string]any) (model.Result, error) {
	addr := hostPort(target, "80")

	start := time.Now()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	elapsed := time.Since(start)
	if err != nil {
		res := model.Result{
			ProbeName:     "tcp_connect",
			Target:        target,
			Status:        model.StatusFail,
			Message:       fmt.Sprintf("dial %s: %v", addr, err),
			ExecutionTime: elapsed,
			Timestamp:     time.Now().UTC(),
		}
		return res, nil
	}
	defer func() {
		_ = conn.Close()
	}()

	res := model.Result{
		ProbeName:     "tcp_connect",
		Target:        target,
		Status:        model.StatusPass,
		Message:       "connected to " + addr,
		ExecutionTime: elapsed,
		Timestamp:     time.Now().UTC(),
	}
	res.SetData("address", addr)
	res.SetData("latency", elapsed.Seconds())
	return res, nil
}

// httpStatus fetches the target and grades the response code.
func httpStatus(ctx context.Context, target string, _ map[string]any) (model.Result, error) {
	code, elapsed, err := fetch(ctx, target)
	if err != nil {
		res := model.Result{
			ProbeName:     "http_status",
			Target:        target,
			Status:        model.StatusFail,
			Message:       err.Error(),
			ExecutionTime: elapsed,
			Timestamp:     time.Now().UTC(),
		}
		return res, nil
	}

	status := model.StatusPass
	switch {
	case code >= 500:
		status = model.StatusFail
	case code >= 400:
		status = model.StatusWarning
	}
	res := model.Result{
		ProbeName:     "http_status",
		Target:        target,
		Status:        status,
		Message:       fmt.Sprintf("HTTP %d", code),
		ExecutionTime: elapsed,
		Timestamp:     time.Now().UTC(),
	}
	res.SetData("status_code", code)
	return res, nil
}

// responseTime grades latency against a threshold from the job context
// (Go duration string under "threshold", 2s when absent).
func responseTime(ctx context.Context, target string, probeCtx map[string]any) (model.Result, error) {
	threshold := 2 * time.Second
	if raw, ok := probeCtx["threshold"].(string); ok {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return model.Result{}, fmt.Errorf("parsing threshold: %w", err)
		}
		threshold = d
	}

	code, elapsed, err := fetch(ctx, target)
	if err != nil {
		res := model.Result{
			ProbeName:     "response_time",
			Target:        target,
			Status:        model.StatusFail,
			Message:       err.Error(),
			ExecutionTime: elapsed,
			Timestamp:     time.Now().UTC(),
		}
		return res, nil
	}

	status := model.StatusPass
	msg := fmt.Sprintf("responded in %s", elapsed.Round(time.Millisecond))
	if elapsed > threshold {
		status = model.StatusWarning
		msg = fmt.Sprintf("responded in %s, over the %s threshold", elapsed.Round(time.Millisecond), threshold)
	}
	res := model.Result{
		ProbeName:     "response_time",
		Target:        target,
		Status:        status,
		Message:       msg,
		ExecutionTime: elapsed,
		Timestamp:     time.Now().UTC(),
	}
	res.SetData("status_code", code)
	res.SetData("threshold", threshold.Seconds())
	res.SetData("response_time", elapsed.Seconds())
	return res, nil
}

// sslExpiry checks the leaf certificate of a TLS endpoint. Less than 30
// days of validity left is a warning, an expired certificate is a failure.
// Setting "insecure" in the job context skips chain verification, for
// endpoints with self-signed certificates.
func sslExpiry(ctx context.Context, target string, probeCtx map[string]any) (model.Result, error) {
	addr := hostPort(target, "443")

	insecure, _ := probeCtx["insecure"].(bool)
	start := time.Now()
	d := tls.Dialer{Config: &tls.Config{InsecureSkipVerify: insecure}}
	conn, err := d.DialContext(ctx, "tcp", addr)
	elapsed := time.Since(start)
	if err != nil {
		res := model.Result{
			ProbeName:     "ssl_expiry",
			Target:        target,
			Status:        model.StatusFail,
			Message:       fmt.Sprintf("tls dial %s: %v", addr, err),
			ExecutionTime: elapsed,
			Timestamp:     time.Now().UTC(),
		}
		return res, nil
	}
	defer func() {
		_ = conn.Close()
	}()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return model.Result{}, fmt.Errorf("no peer certificates from %s", addr)
	}
	leaf := state.PeerCertificates[0]
	left := time.Until(leaf.NotAfter)
	days := int(left.Hours() / 24)

	status := model.StatusPass
	msg := fmt.Sprintf("certificate valid for %d more day(s)", days)
	score := 100
	switch {
	case left <= 0:
		status = model.StatusFail
		msg = fmt.Sprintf("certificate expired %s ago", (-left).Round(time.Hour))
		score = 0
	case days < 30:
		status = model.StatusWarning
		msg = fmt.Sprintf("certificate expires in %d day(s)", days)
		score = days * 3
	}

	res := model.Result{
		ProbeName:     "ssl_expiry",
		Target:        target,
		Status:        status,
		Message:       msg,
		ExecutionTime: elapsed,
		Timestamp:     time.Now().UTC(),
		Score:         &score,
	}
	res.SetData("not_after", leaf.NotAfter.UTC().Format(time.RFC3339))
	res.SetData("days_left", days)
	res.SetData("issuer", leaf.Issuer.String())
	return res, nil
}

func fetch(ctx context.Context, target string) (int, time.Duration, error) {
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, 0, err
	}
	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return 0, elapsed, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode, elapsed, nil
}

// hostPort strips an URL down to host:port, defaulting the port.
func hostPort(target, defaultPort string) string {
	if after, ok := strings.CutPrefix(target, "https://"); ok {
		target = after
		defaultPort = "443"
	} else if after, ok := strings.CutPrefix(target, "http://"); ok {
		target = after
	}
	host, _, _ := strings.Cut(target, "/")
	target = host
	if _, _, err := net.SplitHostPort(target); err != nil {
		return net.JoinHostPort(target, defaultPort)
	}
	return target
}
