package invert_test

import (
	"testing"
	"time"

	"github.com/udovicic/security-scanner-sub004/internal/invert"
	"github.com/udovicic/security-scanner-sub004/internal/model"
	"github.com/stretchr/testify/require"
)

func TestBuiltinRules(t *testing.T) {
	t.Parallel()

	cases := []struct {
		rule  string
		given model.Status
		then  model.Status
	}{
		{"expect_failure", model.StatusPass, model.StatusFail},
		{"expect_failure", model.StatusFail, model.StatusPass},
		{"expect_failure", model.StatusWarning, model.StatusWarning},
		{"expect_failure", model.StatusTimeout, model.StatusTimeout},

		{"expect_warning", model.StatusPass, model.StatusWarning},
		{"expect_warning", model.StatusWarning, model.StatusPass},
		{"expect_warning", model.StatusFail, model.StatusFail},

		{"security_inverted", model.StatusPass, model.StatusFail},
		{"security_inverted", model.StatusFail, model.StatusPass},
		{"security_inverted", model.StatusWarning, model.StatusWarning},

		// Timeout and Error collapse to Fail before the swap, so an
		// original Timeout ends up as Pass. Keep it that way.
		{"availability_inverted", model.StatusTimeout, model.StatusPass},
		{"availability_inverted", model.StatusError, model.StatusPass},
		{"availability_inverted", model.StatusPass, model.StatusFail},
		{"availability_inverted", model.StatusFail, model.StatusPass},

		{"compliance_strict", model.StatusWarning, model.StatusFail},
		{"compliance_strict", model.StatusPass, model.StatusPass},
		{"compliance_strict", model.StatusFail, model.StatusFail},

		{"compliance_lenient", model.StatusFail, model.StatusWarning},
		{"compliance_lenient", model.StatusWarning, model.StatusWarning},
		{"compliance_lenient", model.StatusPass, model.StatusPass},
	}

	rules := invert.NewRules()
	for _, tc := range cases {
		t.Run(tc.rule+"/"+string(tc.given), func(t *testing.T) {
			rule, err := rules.Lookup(tc.rule)
			require.NoError(t, err)
			require.Equal(t, tc.then, rule(tc.given))
		})
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	rules := invert.NewRules()
	res := model.Result{
		ProbeName: "http_status",
		Target:    "https://example.com",
		Status:    model.StatusPass,
		Message:   "HTTP 200",
	}

	out, err := rules.Apply(res, "expect_failure")
	require.NoError(t, err)
	require.Equal(t, model.StatusFail, out.Status)
	require.Equal(t, "pass", out.Data["original_status"])
	require.Equal(t, "HTTP 200", out.Data["original_message"])
	require.Equal(t, "expect_failure", out.Data["inversion_rule"])
	require.Contains(t, out.Message, "via expect_failure")

	// the input result is untouched
	require.Equal(t, model.StatusPass, res.Status)
	require.Nil(t, res.Data)
}

func TestApplyUnchangedStatus(t *testing.T) {
	t.Parallel()

	rules := invert.NewRules()
	res := model.Result{Status: model.StatusWarning, Message: "meh"}
	out, err := rules.Apply(res, "expect_failure")
	require.NoError(t, err)
	require.Equal(t, model.StatusWarning, out.Status)
	require.Contains(t, out.Message, "status unchanged by expect_failure")
}

func TestApplyUnknownRule(t *testing.T) {
	t.Parallel()

	rules := invert.NewRules()
	_, err := rules.Apply(model.Result{Status: model.StatusPass}, "nope")
	require.ErrorIs(t, err, model.ErrUnknownRule)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	rules := invert.NewRules()
	require.Error(t, rules.Register("expect_failure", func(s model.Status) model.Status { return s }))
	require.Error(t, rules.Register("", func(s model.Status) model.Status { return s }))
	require.Error(t, rules.Register("nil_rule", nil))

	require.NoError(t, rules.Register("always_pass", func(model.Status) model.Status { return model.StatusPass }))
	out, err := rules.Apply(model.Result{Status: model.StatusError}, "always_pass")
	require.NoError(t, err)
	require.Equal(t, model.StatusPass, out.Status)
}

func TestApplyConditional(t *testing.T) {
	t.Parallel()

	rules := invert.NewRules()
	score := 80
	long := 5 * time.Second
	res := model.Result{
		ProbeName:     "ssl_expiry",
		Target:        "prod.example.com:443",
		Status:        model.StatusPass,
		Score:         &score,
		ExecutionTime: time.Second,
	}

	t.Run("matching condition applies", func(t *testing.T) {
		out, applied, err := rules.ApplyConditional(res, "expect_failure", invert.Condition{
			ProbeName:     "ssl",
			Statuses:      []model.Status{model.StatusPass},
			TargetPattern: "prod.*",
		})
		require.NoError(t, err)
		require.True(t, applied)
		require.Equal(t, model.StatusFail, out.Status)
	})

	t.Run("non matching condition passes result through", func(t *testing.T) {
		out, applied, err := rules.ApplyConditional(res, "expect_failure", invert.Condition{
			ProbeName: "http",
		})
		require.NoError(t, err)
		require.False(t, applied)
		require.Equal(t, res, out)
	})

	t.Run("score and time bounds", func(t *testing.T) {
		min := 90
		_, applied, err := rules.ApplyConditional(res, "expect_failure", invert.Condition{MinScore: &min})
		require.NoError(t, err)
		require.False(t, applied)

		_, applied, err = rules.ApplyConditional(res, "expect_failure", invert.Condition{MinTime: &long})
		require.NoError(t, err)
		require.False(t, applied)
	})

	t.Run("unknown rule errors even when condition would not match", func(t *testing.T) {
		_, _, err := rules.ApplyConditional(res, "nope", invert.Condition{ProbeName: "http"})
		require.ErrorIs(t, err, model.ErrUnknownRule)
	})
}
