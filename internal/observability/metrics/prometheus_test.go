package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/tabanon/internal/lattice"
	"github.com/inferloop/tabanon/internal/risk"
	"github.com/inferloop/tabanon/internal/search"
	"github.com/inferloop/tabanon/internal/testutil"
)

func newTestMetrics(t *testing.T, cfg *Config) *Metrics {
	t.Helper()
	m, err := NewMetrics(cfg, testutil.NewLogger())
	require.NoError(t, err)
	return m
}

func TestNodeEvaluatedCountsVerdicts(t *testing.T) {
	m := newTestMetrics(t, nil)
	var _ search.Observer = m

	m.NodeEvaluated(search.Evaluation{Node: lattice.Node{0}, Verdict: search.VerdictRejected, Duration: time.Millisecond})
	m.NodeEvaluated(search.Evaluation{Node: lattice.Node{1}, Verdict: search.VerdictCompliant, Duration: time.Millisecond})
	m.NodeEvaluated(search.Evaluation{Node: lattice.Node{2}, Verdict: search.VerdictInferred})

	assert.Equal(t, 1.0, promtest.ToFloat64(m.nodesTotal.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.nodesTotal.WithLabelValues("compliant")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.nodesTotal.WithLabelValues("inferred")))
	assert.Equal(t, 1, promtest.CollectAndCount(m.nodeDuration))
}

func TestRecordRunAndRisk(t *testing.T) {
	m := newTestMetrics(t, nil)
	m.RecordRun("success", 2*time.Second, 1.5, 3)
	m.RecordRun("failed", time.Second, 0, 0)
	m.RecordRisk(&risk.Summary{RecordsAtRisk: 2, HighestRisk: 0.5, AverageRisk: 0.2})
	m.RecordStorageOperation("s3", "upload", "success", time.Second)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.runsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.runsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.5, promtest.ToFloat64(m.bestLoss))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.suppressedRecords))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.recordsAtRisk))
	assert.Equal(t, 0.5, promtest.ToFloat64(m.highestRisk))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.storageOpsTotal.WithLabelValues("s3", "upload", "success")))
}

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	m := newTestMetrics(t, nil)
	m.NodeEvaluated(search.Evaluation{Verdict: search.VerdictPruned})

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `tabanon_search_nodes_total{verdict="pruned"} 1`)

	resp, err = http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"healthy"`)
}

func TestPushSendsToGateway(t *testing.T) {
	var (
		method string
		path   string
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	cfg := DefaultConfig()
	cfg.PushGateway = gateway.URL
	cfg.Job = "nightly"
	m := newTestMetrics(t, cfg)
	m.RecordRun("success", time.Second, 1, 0)

	require.NoError(t, m.Push(context.Background()))
	assert.Equal(t, http.MethodPut, method)
	assert.True(t, strings.HasPrefix(path, "/metrics/job/nightly"), path)
}

func TestPushWithoutGatewayIsNoop(t *testing.T) {
	m := newTestMetrics(t, nil)
	assert.NoError(t, m.Push(context.Background()))
	assert.NoError(t, m.Start(context.Background()))
	assert.NoError(t, m.Stop(context.Background()))
}
