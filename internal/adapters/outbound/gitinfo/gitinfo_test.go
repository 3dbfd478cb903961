package gitinfo_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyfreeze/pyfreeze/internal/adapters/outbound/gitinfo"
)

func commitRepo(t *testing.T, dir string) string {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "app"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app", "main.py"), []byte("import requests\n"), 0644))
	_, err = wt.Add("app/main.py")
	require.NoError(t, err)

	hash, err := wt.Commit("init", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@test.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestGitInfo_IsGitRepo_True(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	assert.True(t, gitinfo.New().IsGitRepo(dir))
}

func TestGitInfo_IsGitRepo_False(t *testing.T) {
	assert.False(t, gitinfo.New().IsGitRepo(t.TempDir()))
}

func TestGitInfo_CommitHash_FromNestedScript(t *testing.T) {
	dir := t.TempDir()
	want := commitRepo(t, dir)

	hash, err := gitinfo.New().CommitHash(filepath.Join(dir, "app", "main.py"))
	require.NoError(t, err)
	assert.Equal(t, want, hash)
	assert.Len(t, hash, 40, "should be a full SHA-1 hash")
}

func TestGitInfo_CommitHash_NoCommits(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	_, err = gitinfo.New().CommitHash(dir)
	assert.Error(t, err)
}

func TestGitInfo_CommitHash_NotGitRepo(t *testing.T) {
	_, err := gitinfo.New().CommitHash(t.TempDir())
	assert.Error(t, err)
}
