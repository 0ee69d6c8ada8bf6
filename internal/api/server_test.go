package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedbook/fedbook/internal/audit"
	"github.com/fedbook/fedbook/internal/controller"
	"github.com/fedbook/fedbook/internal/datasets"
	"github.com/fedbook/fedbook/internal/domain"
	"github.com/fedbook/fedbook/internal/logging"
	"github.com/fedbook/fedbook/internal/metrics"
	"github.com/fedbook/fedbook/internal/policy"
	"github.com/fedbook/fedbook/internal/session"
	"github.com/fedbook/fedbook/internal/store"
)

type scriptedReviewer struct {
	fn func(req policy.Request) (policy.Verdict, error)
}

func (s *scriptedReviewer) Review(_ context.Context, req policy.Request) (policy.Verdict, error) {
	if s.fn == nil {
		return policy.Verdict{Approved: true}, nil
	}
	return s.fn(req)
}

type scriptedRunner struct {
	outputs   []string
	execErr   error
	shutdowns int
}

func (s *scriptedRunner) EnsureKernel(context.Context, string) error { return nil }

func (s *scriptedRunner) ExecuteAt(context.Context, string, int) ([]string, error) {
	if s.execErr != nil {
		return nil, s.execErr
	}
	return s.outputs, nil
}

func (s *scriptedRunner) Shutdown(context.Context, string) error {
	s.shutdowns++
	return nil
}

func newTestServer(t *testing.T, reviewer *scriptedReviewer, runner *scriptedRunner) (*httptest.Server, string) {
	t.Helper()

	st, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := audit.NewLogger(audit.WithOutput(io.Discard))
	logging.SetOutput(io.Discard)
	t.Cleanup(func() { logging.SetOutput(nil) })

	uploads := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(uploads, "hospital-a"), 0755))

	sessions := session.NewManager(st, t.TempDir(), session.WithAuditLogger(log))
	cells := controller.New(st, reviewer, runner,
		controller.WithAuditLogger(log),
		controller.WithMetrics(&metrics.Metrics{}),
		controller.WithTimeouts(time.Second, time.Second),
	)

	srv := New(sessions, cells, datasets.NewRegistry(uploads), ":0")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	// one session for the handlers to work against
	sess, err := sessions.Create(context.Background(), "study", "analysis.ipynb")
	require.NoError(t, err)

	return ts, sess.ID
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedReviewer{}, &scriptedRunner{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "fedbook_uptime_seconds")
}

func TestSessionLifecycle(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedReviewer{}, &scriptedRunner{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/sessions", map[string]string{
		"name": "trial-7", "notebook_name": "model.ipynb",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[domain.Session](t, resp)
	assert.Equal(t, "trial-7", created.Name)
	assert.NotEmpty(t, created.ID)

	resp, err := http.Get(ts.URL + "/sessions/" + created.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[domain.Session](t, resp)
	assert.Equal(t, created.ID, got.ID)

	resp, err = http.Get(ts.URL + "/sessions")
	require.NoError(t, err)
	sessions := decode[[]domain.Session](t, resp)
	assert.Len(t, sessions, 2)

	resp, err = http.Get(ts.URL + "/sessions/ghost")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateSessionValidation(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedReviewer{}, &scriptedRunner{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/sessions", map[string]string{"name": "  "})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDatasetEndpoints(t *testing.T) {
	ts, sessID := newTestServer(t, &scriptedReviewer{}, &scriptedRunner{})

	resp, err := http.Get(ts.URL + "/datasets")
	require.NoError(t, err)
	folders := decode[[]datasets.Folder](t, resp)
	require.Len(t, folders, 1)
	assert.Equal(t, "hospital-a", folders[0].Name)

	resp = doJSON(t, http.MethodPut, ts.URL+"/sessions/"+sessID+"/datasets", map[string]any{
		"folders": []string{"hospital-a"},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, ts.URL+"/sessions/"+sessID+"/datasets", map[string]any{
		"folders": []string{"ghost"},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCellCRUD(t *testing.T) {
	ts, sessID := newTestServer(t, &scriptedReviewer{}, &scriptedRunner{})
	base := ts.URL + "/sessions/" + sessID + "/cells"

	resp := doJSON(t, http.MethodPost, base, map[string]string{"kind": "code"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	cell := decode[domain.Cell](t, resp)
	assert.Equal(t, domain.StatusPending, cell.Status)

	resp = doJSON(t, http.MethodPut, base+"/"+cell.ID, map[string]string{"code": "print('hi')"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[domain.Cell](t, resp)
	assert.Equal(t, "print('hi')", updated.Code)
	assert.Equal(t, domain.StatusPending, updated.Status)

	resp, err := http.Get(base)
	require.NoError(t, err)
	cells := decode[[]domain.Cell](t, resp)
	assert.Len(t, cells, 1)

	req, _ := http.NewRequest(http.MethodDelete, base+"/"+cell.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(base)
	require.NoError(t, err)
	cells = decode[[]domain.Cell](t, resp)
	assert.Empty(t, cells)
}

func TestAddCellInvalidKind(t *testing.T) {
	ts, sessID := newTestServer(t, &scriptedReviewer{}, &scriptedRunner{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+sessID+"/cells", map[string]string{"kind": "raw"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExecuteCellApproved(t *testing.T) {
	runner := &scriptedRunner{outputs: []string{"accuracy: 0.92"}}
	ts, sessID := newTestServer(t, &scriptedReviewer{}, runner)
	base := ts.URL + "/sessions/" + sessID + "/cells"

	resp := doJSON(t, http.MethodPost, base, map[string]string{"kind": "code"})
	cell := decode[domain.Cell](t, resp)
	resp = doJSON(t, http.MethodPut, base+"/"+cell.ID, map[string]string{"code": "train()"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, base+"/"+cell.ID+"/execute", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	executed := decode[domain.Cell](t, resp)
	assert.Equal(t, domain.StatusExecuted, executed.Status)
	assert.Equal(t, "accuracy: 0.92", executed.Output)
	assert.True(t, executed.Approved)
}

func TestExecuteCellRejectedIsBusinessOutcome(t *testing.T) {
	reviewer := &scriptedReviewer{fn: func(policy.Request) (policy.Verdict, error) {
		return policy.Verdict{Approved: false, Reason: "modifies provider data"}, nil
	}}
	ts, sessID := newTestServer(t, reviewer, &scriptedRunner{})
	base := ts.URL + "/sessions/" + sessID + "/cells"

	resp := doJSON(t, http.MethodPost, base, map[string]string{"kind": "code"})
	cell := decode[domain.Cell](t, resp)
	resp = doJSON(t, http.MethodPut, base+"/"+cell.ID, map[string]string{"code": "os.remove(...)"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, base+"/"+cell.ID+"/execute", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rejected := decode[domain.Cell](t, resp)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Equal(t, "modifies provider data", rejected.RejectionReason)
	assert.False(t, rejected.Approved)
}

func TestExecuteCellProtocolErrorIsBadGateway(t *testing.T) {
	reviewer := &scriptedReviewer{fn: func(policy.Request) (policy.Verdict, error) {
		return policy.Verdict{}, &domain.ProtocolError{Raw: "perhaps"}
	}}
	ts, sessID := newTestServer(t, reviewer, &scriptedRunner{})
	base := ts.URL + "/sessions/" + sessID + "/cells"

	resp := doJSON(t, http.MethodPost, base, map[string]string{"kind": "code"})
	cell := decode[domain.Cell](t, resp)
	resp = doJSON(t, http.MethodPut, base+"/"+cell.ID, map[string]string{"code": "print(1)"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, base+"/"+cell.ID+"/execute", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestExecuteCellKernelFailureIsServerError(t *testing.T) {
	runner := &scriptedRunner{execErr: fmt.Errorf("Cell index out of range")}
	ts, sessID := newTestServer(t, &scriptedReviewer{}, runner)
	base := ts.URL + "/sessions/" + sessID + "/cells"

	resp := doJSON(t, http.MethodPost, base, map[string]string{"kind": "code"})
	cell := decode[domain.Cell](t, resp)
	resp = doJSON(t, http.MethodPut, base+"/"+cell.ID, map[string]string{"code": "train()"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, base+"/"+cell.ID+"/execute", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestBatchReview(t *testing.T) {
	reviewer := &scriptedReviewer{fn: func(req policy.Request) (policy.Verdict, error) {
		if req.Target.Code == "bad" {
			return policy.Verdict{Approved: false, Reason: "reads outside uploads"}, nil
		}
		return policy.Verdict{Approved: true}, nil
	}}
	ts, sessID := newTestServer(t, reviewer, &scriptedRunner{})
	base := ts.URL + "/sessions/" + sessID + "/cells"

	resp := doJSON(t, http.MethodPost, base, map[string]string{"kind": "code"})
	good := decode[domain.Cell](t, resp)
	resp = doJSON(t, http.MethodPut, base+"/"+good.ID, map[string]string{"code": "ok"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, base, map[string]string{"kind": "code"})
	bad := decode[domain.Cell](t, resp)
	resp = doJSON(t, http.MethodPut, base+"/"+bad.ID, map[string]string{"code": "bad"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/sessions/"+sessID+"/review", map[string]any{
		"cell_ids": []string{good.ID, bad.ID},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string][]controller.ReviewResult](t, resp)
	results := body["results"]
	require.Len(t, results, 2)
	assert.True(t, results[0].Approved)
	assert.False(t, results[1].Approved)
	assert.Equal(t, "reads outside uploads", results[1].Reason)
}

func TestShutdownKernel(t *testing.T) {
	runner := &scriptedRunner{}
	ts, sessID := newTestServer(t, &scriptedReviewer{}, runner)

	resp := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+sessID+"/kernel/shutdown", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "shutdown", body["status"])
	assert.Equal(t, 1, runner.shutdowns)
}

func TestCORSHeaders(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedReviewer{}, &scriptedRunner{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
