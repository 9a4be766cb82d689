package search

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftwatch/pkg/model"
	"driftwatch/pkg/store"
)

func seed(t *testing.T) (store.Store, model.Host, model.ScanJob) {
	t.Helper()
	st := store.NewMemory()
	host := model.Host{Hostname: "web-1", IPAddress: "10.0.0.5", SSHUser: "admin"}
	require.NoError(t, st.CreateHost(&host))

	job := model.ScanJob{HostID: host.ID, Status: model.StatusRunning, StartedAt: time.Now().Add(-time.Minute)}
	require.NoError(t, st.CreateJob(&job))
	now := time.Now()
	job.Status = model.StatusSuccess
	job.FinishedAt = &now
	job.Snapshot = &model.Snapshot{
		Hostname: "web-1",
		IP:       "10.0.0.5",
		OS:       "Ubuntu 24.04.1 LTS",
		Packages: model.Present([]string{"nginx 1.24.0", "curl 8.5.0"}),
		Docker:   model.Skip("command not found"),
		SSHKeys:  model.PresentKeys([]model.SSHKey{{User: "deploy", Key: "ssh-rsa AAAA deploy@ci"}}),
	}
	require.NoError(t, st.UpdateJob(&job))
	return st, host, job
}

func TestSearchShortQueryIsNoop(t *testing.T) {
	st, _, _ := seed(t)
	s := NewSearcher(st, zerolog.Nop())

	for _, q := range []string{"", "r", " a "} {
		res, err := s.Search(q)
		require.NoError(t, err)
		assert.Empty(t, res, "query %q", q)
	}
}

func TestSearchContentMatchCarriesScanID(t *testing.T) {
	st, host, job := seed(t)
	s := NewSearcher(st, zerolog.Nop())

	res, err := s.Search("nginx")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, model.MatchContent, res[0].MatchType)
	assert.Equal(t, host.ID, res[0].Host.ID)
	require.NotNil(t, res[0].ScanID)
	assert.Equal(t, job.ID, *res[0].ScanID)
	assert.Contains(t, res[0].Snippet, "nginx")
}

func TestSearchHostMatchHasNoScanID(t *testing.T) {
	st, _, _ := seed(t)
	s := NewSearcher(st, zerolog.Nop())

	res, err := s.Search("web-1")
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, model.MatchHost, res[0].MatchType)
	assert.Nil(t, res[0].ScanID)
}

func TestSearchCaseInsensitive(t *testing.T) {
	st, _, _ := seed(t)
	s := NewSearcher(st, zerolog.Nop())

	res, err := s.Search("UBUNTU")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, model.MatchContent, res[0].MatchType)
}

func TestSearchLengthChangingFold(t *testing.T) {
	st := store.NewMemory()
	// U+0130 lowercases to a shorter byte sequence; the snippet must still
	// line up with the original text.
	host := model.Host{Hostname: "İstanbul-edge-01", IPAddress: "10.0.0.8", SSHUser: "root"}
	require.NoError(t, st.CreateHost(&host))

	s := NewSearcher(st, zerolog.Nop())
	res, err := s.Search("istanbul")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, model.MatchHost, res[0].MatchType)
	assert.True(t, utf8.ValidString(res[0].Snippet))
	assert.Contains(t, res[0].Snippet, "İstanbul-edge-01")
}

func TestSearchSnippetStaysOnRuneBoundaries(t *testing.T) {
	st := store.NewMemory()
	host := model.Host{Hostname: "web-1", IPAddress: "10.0.0.5", SSHUser: "admin"}
	require.NoError(t, st.CreateHost(&host))

	job := model.ScanJob{HostID: host.ID, Status: model.StatusRunning, StartedAt: time.Now()}
	require.NoError(t, st.CreateJob(&job))
	now := time.Now()
	job.Status = model.StatusSuccess
	job.FinishedAt = &now
	job.Snapshot = &model.Snapshot{
		Hostname: "web-1",
		Packages: model.Present([]string{"ééééééééééééééééééééééééé nginx ééééééééééééééééééééééééé"}),
	}
	require.NoError(t, st.UpdateJob(&job))

	s := NewSearcher(st, zerolog.Nop())
	res, err := s.Search("nginx")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.True(t, utf8.ValidString(res[0].Snippet))
	assert.Contains(t, res[0].Snippet, "nginx")
}

func TestSearchHostMatchesRankFirst(t *testing.T) {
	st, _, _ := seed(t)
	s := NewSearcher(st, zerolog.Nop())

	// "web-1" appears both in host metadata and in the snapshot hostname.
	res, err := s.Search("web-1")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, model.MatchHost, res[0].MatchType)
	assert.Equal(t, model.MatchContent, res[1].MatchType)
}

func TestSearchOnlyLatestSuccessfulSnapshot(t *testing.T) {
	st, host, _ := seed(t)

	// A newer successful scan without nginx supersedes the seeded snapshot.
	job := model.ScanJob{HostID: host.ID, Status: model.StatusRunning, StartedAt: time.Now()}
	require.NoError(t, st.CreateJob(&job))
	later := time.Now().Add(time.Minute)
	job.Status = model.StatusSuccess
	job.FinishedAt = &later
	job.Snapshot = &model.Snapshot{
		Hostname: "web-1",
		Packages: model.Present([]string{"curl 8.5.0"}),
	}
	require.NoError(t, st.UpdateJob(&job))

	s := NewSearcher(st, zerolog.Nop())
	res, err := s.Search("nginx")
	require.NoError(t, err)
	assert.Empty(t, res, "matches against superseded snapshots must not surface")
}

func TestSearchFailedScansInvisible(t *testing.T) {
	st := store.NewMemory()
	host := model.Host{Hostname: "db-1", IPAddress: "10.0.0.7", SSHUser: "root"}
	require.NoError(t, st.CreateHost(&host))

	job := model.ScanJob{HostID: host.ID, Status: model.StatusRunning, StartedAt: time.Now()}
	require.NoError(t, st.CreateJob(&job))
	now := time.Now()
	job.Status = model.StatusFailed
	job.FinishedAt = &now
	job.Failure = &model.FailureDetail{Error: "host unreachable", Stderr: "nginx mentioned here"}
	require.NoError(t, st.UpdateJob(&job))

	s := NewSearcher(st, zerolog.Nop())
	res, err := s.Search("nginx")
	require.NoError(t, err)
	assert.Empty(t, res)
}
