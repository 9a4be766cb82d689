package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftwatch/pkg/model"
	"driftwatch/pkg/scan"
	"driftwatch/pkg/search"
	"driftwatch/pkg/store"
)

// queueCollector replays queued snapshots, optionally blocking first.
type queueCollector struct {
	mu    sync.Mutex
	queue []*model.Snapshot
	block chan struct{}
}

func (q *queueCollector) Collect(_ context.Context, _ model.Host) (*model.Snapshot, error) {
	if q.block != nil {
		<-q.block
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return &model.Snapshot{}, nil
	}
	next := q.queue[0]
	q.queue = q.queue[1:]
	return next, nil
}

type fixture struct {
	srv   *httptest.Server
	orch  *scan.Orchestrator
	col   *queueCollector
	token string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	col := &queueCollector{}
	orch := scan.NewOrchestrator(st, col, time.Minute, zerolog.Nop())
	server := NewServer(st, orch, search.NewSearcher(st, zerolog.Nop()), zerolog.Nop())
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	f := &fixture{srv: srv, orch: orch, col: col}

	// Bootstrap the first admin and keep its token.
	status, body := f.do(t, http.MethodPost, "/register", map[string]string{"username": "admin", "password": "s3cret"})
	require.Equal(t, http.StatusOK, status)
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(body, &tok))
	require.NotEmpty(t, tok.AccessToken)
	f.token = tok.AccessToken
	return f
}

func (f *fixture) do(t *testing.T, method, path string, payload interface{}) (int, []byte) {
	t.Helper()
	var body *bytes.Buffer = bytes.NewBuffer(nil)
	if payload != nil {
		require.NoError(t, json.NewEncoder(body).Encode(payload))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

func (f *fixture) createHost(t *testing.T) uint {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/hosts", map[string]string{
		"hostname":     "web-1",
		"ip_address":   "10.0.0.5",
		"ssh_user":     "root",
		"ssh_password": "hunter2",
	})
	require.Equal(t, http.StatusCreated, status)
	var host model.Host
	require.NoError(t, json.Unmarshal(body, &host))
	return host.ID
}

func snapshotWithPackages(pkgs ...string) *model.Snapshot {
	return &model.Snapshot{
		Hostname: "web-1",
		IP:       "10.0.0.5",
		OS:       "Ubuntu 24.04.1 LTS",
		Packages: model.Present(pkgs),
		Docker:   model.Skip("command not found"),
		SSHKeys:  model.PresentKeys(nil),
	}
}

func TestBootstrapRegistrationClosesAfterFirstUser(t *testing.T) {
	f := newFixture(t)

	status, _ := f.do(t, http.MethodPost, "/register", map[string]string{"username": "second", "password": "pw"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := f.do(t, http.MethodGet, "/users/count", nil)
	require.Equal(t, http.StatusOK, status)
	var count struct {
		Count int64 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &count))
	assert.Equal(t, int64(1), count.Count)
}

func TestTokenLogin(t *testing.T) {
	f := newFixture(t)

	status, _ := f.do(t, http.MethodPost, "/token", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := f.do(t, http.MethodPost, "/token", map[string]string{"username": "admin", "password": "s3cret"})
	require.Equal(t, http.StatusOK, status)
	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(body, &tok))
	assert.Equal(t, "bearer", tok.TokenType)
	assert.NotEmpty(t, tok.AccessToken)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	bare := &fixture{srv: f.srv}

	status, _ := bare.do(t, http.MethodGet, "/hosts", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = bare.do(t, http.MethodGet, "/search?q=nginx", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCreateHostValidation(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, http.MethodPost, "/hosts", map[string]string{"hostname": "web-1"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHostCredentialsNeverEchoed(t *testing.T) {
	f := newFixture(t)
	f.createHost(t)

	status, body := f.do(t, http.MethodGet, "/hosts", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(body), "hunter2")
	assert.NotContains(t, string(body), "ssh_password")
}

func TestDeleteHost(t *testing.T) {
	f := newFixture(t)
	id := f.createHost(t)

	status, _ := f.do(t, http.MethodDelete, fmt.Sprintf("/hosts/%d", id), nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, http.MethodDelete, fmt.Sprintf("/hosts/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTriggerScanUnknownHost(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, http.MethodPost, "/hosts/999/scan", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTriggerScanConflict(t *testing.T) {
	f := newFixture(t)
	id := f.createHost(t)
	f.col.block = make(chan struct{})

	status, _ := f.do(t, http.MethodPost, fmt.Sprintf("/hosts/%d/scan", id), nil)
	require.Equal(t, http.StatusAccepted, status)

	status, _ = f.do(t, http.MethodPost, fmt.Sprintf("/hosts/%d/scan", id), nil)
	assert.Equal(t, http.StatusConflict, status)

	close(f.col.block)
	f.orch.Wait()
}

func TestGetScanNotFound(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, http.MethodGet, "/scans/12345", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestScanAndDiffEndToEnd(t *testing.T) {
	t.Setenv("DRIFTWATCH_CACHE_DB", t.TempDir()+"/diffcache.db")
	f := newFixture(t)
	id := f.createHost(t)
	f.col.queue = []*model.Snapshot{
		snapshotWithPackages("nginx", "curl"),
		snapshotWithPackages("nginx", "vim"),
	}

	status, body := f.do(t, http.MethodPost, fmt.Sprintf("/hosts/%d/scan", id), nil)
	require.Equal(t, http.StatusAccepted, status)
	var first model.ScanJobSummary
	require.NoError(t, json.Unmarshal(body, &first))
	f.orch.Wait()

	// First scan has no predecessor.
	status, body = f.do(t, http.MethodGet, fmt.Sprintf("/scans/%d/diff", first.ID), nil)
	require.Equal(t, http.StatusOK, status)
	var res model.DiffResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.False(t, res.HasPrevious)
	assert.Empty(t, res.Diff)

	status, body = f.do(t, http.MethodPost, fmt.Sprintf("/hosts/%d/scan", id), nil)
	require.Equal(t, http.StatusAccepted, status)
	var second model.ScanJobSummary
	require.NoError(t, json.Unmarshal(body, &second))
	f.orch.Wait()

	// Full report of the second scan.
	status, body = f.do(t, http.MethodGet, fmt.Sprintf("/scans/%d", second.ID), nil)
	require.Equal(t, http.StatusOK, status)
	var job model.ScanJob
	require.NoError(t, json.Unmarshal(body, &job))
	assert.Equal(t, model.StatusSuccess, job.Status)
	require.NotNil(t, job.Snapshot)
	assert.Equal(t, []string{"nginx", "vim"}, job.Snapshot.Packages.Entries)

	// Diff against the first scan.
	status, body = f.do(t, http.MethodGet, fmt.Sprintf("/scans/%d/diff", second.ID), nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.HasPrevious)
	require.Contains(t, res.Diff, "packages")
	assert.Equal(t, []string{"vim"}, res.Diff["packages"].Added)
	assert.Equal(t, []string{"curl"}, res.Diff["packages"].Removed)

	// Scan history, newest first.
	status, body = f.do(t, http.MethodGet, fmt.Sprintf("/hosts/%d/scans", id), nil)
	require.Equal(t, http.StatusOK, status)
	var summaries []model.ScanJobSummary
	require.NoError(t, json.Unmarshal(body, &summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, second.ID, summaries[0].ID)
	assert.Equal(t, first.ID, summaries[1].ID)
}

func TestSearchEndpoint(t *testing.T) {
	f := newFixture(t)
	id := f.createHost(t)
	f.col.queue = []*model.Snapshot{snapshotWithPackages("nginx", "curl")}

	status, _ := f.do(t, http.MethodPost, fmt.Sprintf("/hosts/%d/scan", id), nil)
	require.Equal(t, http.StatusAccepted, status)
	f.orch.Wait()

	status, body := f.do(t, http.MethodGet, "/search?q=nginx", nil)
	require.Equal(t, http.StatusOK, status)
	var results []model.SearchResult
	require.NoError(t, json.Unmarshal(body, &results))
	require.Len(t, results, 1)
	assert.Equal(t, model.MatchContent, results[0].MatchType)
	require.NotNil(t, results[0].ScanID)

	status, body = f.do(t, http.MethodGet, "/search?q=r", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &results))
	assert.Empty(t, results)
}
