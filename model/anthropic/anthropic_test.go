package anthropic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmesh/quantmesh/metrics"
	"github.com/quantmesh/quantmesh/model"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := anthropic.NewClient(
		option.WithBaseURL(srv.URL),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	return NewModelFromClient(&client)
}

func TestComplete_ReturnsTextAndUsage(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_test",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "Balanced portfolio."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`))
	})

	okBefore := promtest.ToFloat64(metrics.UpstreamRequestsTotal.WithLabelValues("model", "ok"))

	resp, err := m.Complete(context.Background(), model.Request{Prompt: "summarize"})
	require.NoError(t, err)
	assert.Equal(t, "Balanced portfolio.", resp.Text)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 7, resp.Usage.CompletionTokens)
	assert.Equal(t, 19, resp.Usage.TotalTokens)

	okAfter := promtest.ToFloat64(metrics.UpstreamRequestsTotal.WithLabelValues("model", "ok"))
	assert.Equal(t, okBefore+1, okAfter)
}

func TestComplete_APIFailureRecordsErrorMetric(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "invalid_request_error", "message": "prompt too long"}}`))
	})

	errBefore := promtest.ToFloat64(metrics.UpstreamRequestsTotal.WithLabelValues("model", "error"))

	_, err := m.Complete(context.Background(), model.Request{Prompt: "summarize"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic api error")

	errAfter := promtest.ToFloat64(metrics.UpstreamRequestsTotal.WithLabelValues("model", "error"))
	assert.Equal(t, errBefore+1, errAfter)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.Model = "claude-test" })
	info := m.Info()
	assert.Equal(t, "claude-test", info.Name)
	assert.Equal(t, "anthropic", info.Provider)
}
