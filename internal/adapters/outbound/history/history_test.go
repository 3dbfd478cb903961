package history_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/history"
	"github.com/pyfreeze/pyfreeze/internal/domain"
)

func openHistory(t *testing.T, dir string) *history.SQLiteHistory {
	t.Helper()
	h, err := history.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistory_SaveAndList(t *testing.T) {
	h := openHistory(t, t.TempDir())
	started := time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)

	run := domain.BuildRun{
		ID:         "5f0c7a8e-3c2b-4d8e-9a51-0d6c2b1f7e44",
		Script:     "/app/main.py",
		CommitHash: "abc1234",
		StartedAt:  started,
		Duration:   42 * time.Second,
		ExitCode:   0,
		Directives: 12,
		CacheHit:   true,
		Args:       []string{"--onefile", "--hidden-import=yaml", "/app/main.py"},
	}
	require.NoError(t, h.Save(run))

	runs, err := h.List(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run, runs[0])
	assert.True(t, runs[0].Succeeded())
}

func TestHistory_NewestFirstAndLimit(t *testing.T) {
	h := openHistory(t, t.TempDir())
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, h.Save(domain.BuildRun{
			ID:        id,
			Script:    "/app/main.py",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			ExitCode:  i,
			Args:      []string{},
		}))
	}

	runs, err := h.List(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.False(t, runs[0].Succeeded())

	all, err := h.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestHistory_ListEmpty(t *testing.T) {
	runs, err := openHistory(t, t.TempDir()).List(5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestHistory_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	first := openHistory(t, dir)
	require.NoError(t, first.Save(domain.BuildRun{ID: "x", Script: "s.py", StartedAt: time.Now(), Cancelled: true}))
	require.NoError(t, first.Close())

	runs, err := openHistory(t, dir).List(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Cancelled)
	assert.Nil(t, runs[0].Args)
}
