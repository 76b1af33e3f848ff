package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	key   []byte
	value any
}

func (c *capturePublisher) PublishJSON(_ context.Context, key []byte, v any) error {
	c.key, c.value = key, v
	return nil
}

func TestReportKeysByDispatchKey(t *testing.T) {
	cp := &capturePublisher{}
	r := &Reports{p: cp}

	res := &notification.Result{ID: "r1", NotificatorID: "email_only", Key: "alerts/d1", Success: true, Duration: 1500 * time.Millisecond}
	require.NoError(t, r.Report(context.Background(), res))
	assert.Equal(t, "alerts/d1", string(cp.key))

	data, err := json.Marshal(cp.value)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "email_only", decoded["notificator_id"])
	assert.Equal(t, float64(1500), decoded["duration_ms"])
	assert.Equal(t, true, decoded["success"])

	res.Key = ""
	require.NoError(t, r.Report(context.Background(), res))
	assert.Equal(t, "r1", string(cp.key))
}

func TestMapCarrierHeaders(t *testing.T) {
	h := mapCarrierHeaders{}
	h.Set("traceparent", "00-abc-def-01")
	assert.Equal(t, "00-abc-def-01", h.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, h.Keys())
	hs := h.ToKafka()
	require.Len(t, hs, 1)
	assert.Equal(t, "traceparent", hs[0].Key)
}
