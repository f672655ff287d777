package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestInstancesDoNotCollide(t *testing.T) {
	a := New()
	b := New()
	a.RecordSearch("text")
	assert.Contains(t, scrape(t, a), `canvas_search_queries_total{kind="text"} 1`)
	assert.NotContains(t, scrape(t, b), `canvas_search_queries_total{kind="text"}`)
}

func TestRecordBatch(t *testing.T) {
	m := New()
	m.RecordBatch(7, nil)
	m.RecordBatch(0, nil)
	m.RecordBatch(3, errors.New("boom"))

	text := scrape(t, m)
	assert.Contains(t, text, `canvas_embedding_batches_total{outcome="ok"} 2`)
	assert.Contains(t, text, `canvas_embedding_batches_total{outcome="error"} 1`)
	assert.Contains(t, text, "canvas_embedded_notes_total 7")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("GET", "/x", "200", time.Millisecond)
	m.RecordToolCall("get_note", false)
	m.RecordBatch(1, nil)
	m.SetHalted(true)
	m.RecordSearch("vector")
	m.RecordIndexRebuild()
	m.SubscriberDelta(1)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetHalted(true)
	m.RecordRequest("GET", "/api/canvas", "200", 5*time.Millisecond)

	text := scrape(t, m)
	assert.Contains(t, text, "canvas_embedding_pipeline_halted 1")
	assert.Contains(t, text, `canvas_http_requests_total{method="GET",route="/api/canvas",status="200"} 1`)
}
