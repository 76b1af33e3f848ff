package notification

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		reason    Reason
		retryable bool
	}{
		{"delivery error passes through", AuthError(errors.New("bad creds")), ReasonAuth, false},
		{"wrapped delivery error", fmt.Errorf("send: %w", Rejected(errors.New("429"), true)), ReasonRemoteRejected, true},
		{"deadline", context.DeadlineExceeded, ReasonTimeout, true},
		{"canceled", context.Canceled, ReasonTimeout, false},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, ReasonUnreachable, true},
		{"unknown", errors.New("boom"), ReasonRemoteRejected, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de := Classify(tc.err)
			require.NotNil(t, de)
			assert.Equal(t, tc.reason, de.Reason)
			assert.Equal(t, tc.retryable, de.Retryable)
		})
	}
	assert.Nil(t, Classify(nil))
}

func TestConfigErrorsShareRoot(t *testing.T) {
	for _, err := range []error{ErrUnknownNotificator, ErrUnknownMethod, ErrUnknownMethodType, ErrInvalidMethod} {
		assert.ErrorIs(t, err, ErrConfig)
	}
}

func TestResultSummary(t *testing.T) {
	r := &Result{Outcomes: []Outcome{
		{MethodID: "email", Delivered: true},
		{MethodID: "discord", Reason: ReasonUnreachable},
	}}
	require.Len(t, r.Failed(), 1)
	assert.Contains(t, r.Summary(), "discord (unreachable)")

	r.Outcomes[1] = Outcome{MethodID: "discord", Delivered: true}
	assert.Empty(t, r.Failed())
	assert.Equal(t, "Notification sent successfully via 2 method(s)", r.Summary())
}
