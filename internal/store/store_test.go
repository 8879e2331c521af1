package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/keepalive/internal/types"
)

const target = "https://demo.streamlit.app/?heartbeat=1"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "db", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func saveVerdict(t *testing.T, s *Store, url string, v types.Verdict) {
	t.Helper()
	r := Run{TargetURL: url, Verdict: v, StartedAt: time.Now()}
	_, err := s.SaveRun(&r)
	require.NoError(t, err)
}

func TestSaveAndRecentRuns(t *testing.T) {
	s := newTestStore(t)
	started := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)

	res := types.Result{
		TargetURL: target,
		Verdict:   types.VerdictFailed,
		Snippet:   "<html><body>502</body></html>",
		StartedAt: started,
		Duration:  61500 * time.Millisecond,
	}
	r := RunFromResult(res, errors.New("app down"))
	id, err := s.SaveRun(&r)
	require.NoError(t, err)
	assert.Equal(t, id, r.ID)

	woken := RunFromResult(types.Result{
		TargetURL: target, Verdict: types.VerdictWoken, Probe: "wake-button", Clicked: true,
		StartedAt: started.Add(10 * time.Minute), Duration: 20 * time.Second,
	}, nil)
	_, err = s.SaveRun(&woken)
	require.NoError(t, err)

	runs, err := s.RecentRuns(target, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, types.VerdictWoken, runs[0].Verdict)
	assert.True(t, runs[0].Clicked)
	assert.Equal(t, "wake-button", runs[0].Probe)
	assert.Empty(t, runs[0].Error)

	assert.Equal(t, types.VerdictFailed, runs[1].Verdict)
	assert.Equal(t, "app down", runs[1].Error)
	assert.Equal(t, res.Snippet, runs[1].Snippet)
	assert.Equal(t, 61500*time.Millisecond, runs[1].Duration)
	assert.True(t, started.Equal(runs[1].StartedAt))
}

func TestRecentRunsFiltersAndLimits(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		saveVerdict(t, s, target, types.VerdictExplicitAlive)
	}
	saveVerdict(t, s, "https://other.streamlit.app/", types.VerdictFailed)

	runs, err := s.RecentRuns(target, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	all, err := s.RecentRuns("", 100)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "https://other.streamlit.app/", all[0].TargetURL)
}

func TestConsecutiveFailures(t *testing.T) {
	s := newTestStore(t)

	n, err := s.ConsecutiveFailures(target)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	saveVerdict(t, s, target, types.VerdictFailed)
	saveVerdict(t, s, target, types.VerdictExplicitAlive)
	saveVerdict(t, s, target, types.VerdictFailed)
	saveVerdict(t, s, target, types.VerdictFailed)
	saveVerdict(t, s, "https://other.streamlit.app/", types.VerdictFailed)

	n, err = s.ConsecutiveFailures(target)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	saveVerdict(t, s, target, types.VerdictImplicitAlive)
	n, err = s.ConsecutiveFailures(target)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSaveSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	at := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)

	_, err := LatestSnapshot(dir)
	assert.Error(t, err)

	path, err := SaveSnapshot(dir, target, at, "<html>zzz</html>")
	require.NoError(t, err)
	assert.Equal(t, "demo.streamlit.app_2025-03-01T07-00-00.html", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html>zzz</html>", string(data))

	latest, err := LatestSnapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, path, latest)
}
