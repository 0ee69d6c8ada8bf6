package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordReview(t *testing.T) {
	m := &Metrics{}

	m.RecordReview(true, 120)
	m.RecordReview(false, 80)

	assert.Equal(t, int64(2), m.Reviews.Load())
	assert.Equal(t, int64(1), m.Rejections.Load())
	assert.Equal(t, int64(80), m.LastReviewDurationMs.Load())
}

func TestRecordProtocolError(t *testing.T) {
	m := &Metrics{}

	m.RecordProtocolError()

	assert.Equal(t, int64(1), m.Reviews.Load())
	assert.Equal(t, int64(1), m.ProtocolErrors.Load())
	assert.Equal(t, int64(0), m.Rejections.Load())
}

func TestRecordExecution(t *testing.T) {
	m := &Metrics{}

	m.RecordExecution(true, 300)
	m.RecordExecution(false, 10)

	assert.Equal(t, int64(2), m.Executions.Load())
	assert.Equal(t, int64(1), m.ExecutionErrors.Load())
}

func TestHandlerOutput(t *testing.T) {
	m := &Metrics{}
	m.RecordReview(false, 50)
	m.RecordKernelInit(true)
	m.RecordKernelShutdown()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler()(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "fedbook_reviews_total 1")
	assert.Contains(t, body, "fedbook_rejections_total 1")
	assert.Contains(t, body, "fedbook_kernel_inits_total 1")
	assert.Contains(t, body, "fedbook_kernel_shutdowns_total 1")
	assert.Contains(t, body, "fedbook_uptime_seconds")
}

func TestGlobalSingleton(t *testing.T) {
	assert.Same(t, Global(), Global())
}
