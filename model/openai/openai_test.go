package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
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

	client := openai.NewClient(
		option.WithBaseURL(srv.URL),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	return NewModelFromClient(&client)
}

func TestComplete_ReturnsFirstChoice(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-test",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Hold steady."}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 4, "total_tokens": 14}
		}`))
	})

	okBefore := promtest.ToFloat64(metrics.UpstreamRequestsTotal.WithLabelValues("model", "ok"))

	resp, err := m.Complete(context.Background(), model.Request{Prompt: "advise"})
	require.NoError(t, err)
	assert.Equal(t, "Hold steady.", resp.Text)
	assert.Equal(t, 14, resp.Usage.TotalTokens)

	okAfter := promtest.ToFloat64(metrics.UpstreamRequestsTotal.WithLabelValues("model", "ok"))
	assert.Equal(t, okBefore+1, okAfter)
}

func TestComplete_APIFailureRecordsErrorMetric(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid model", "type": "invalid_request_error"}}`))
	})

	errBefore := promtest.ToFloat64(metrics.UpstreamRequestsTotal.WithLabelValues("model", "error"))

	_, err := m.Complete(context.Background(), model.Request{Prompt: "advise"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai api error")

	errAfter := promtest.ToFloat64(metrics.UpstreamRequestsTotal.WithLabelValues("model", "error"))
	assert.Equal(t, errBefore+1, errAfter)
}

func TestComplete_NoChoices(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-test", "object": "chat.completion", "choices": []}`))
	})

	_, err := m.Complete(context.Background(), model.Request{Prompt: "advise"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.Model = "gpt-test" })
	info := m.Info()
	assert.Equal(t, "gpt-test", info.Name)
	assert.Equal(t, "openai", info.Provider)
}
