// Package gitinfo reads version-control metadata for the repository holding a script.
package gitinfo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// GitInfoAdapter implements domain.GitInfo using go-git.
type GitInfoAdapter struct{}

func New() *GitInfoAdapter {
	return &GitInfoAdapter{}
}

// IsGitRepo reports whether path, or a directory above it, is a repository.
func (g *GitInfoAdapter) IsGitRepo(path string) bool {
	_, err := open(path)
	return err == nil
}

// CommitHash returns the HEAD commit of the repository containing path,
// which may be a file or a directory.
func (g *GitInfoAdapter) CommitHash(path string) (string, error) {
	repo, err := open(path)
	if err != nil {
		return "", fmt.Errorf("opening git repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}

	return head.Hash().String(), nil
}

func open(path string) (*git.Repository, error) {
	dir := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		dir = filepath.Dir(path)
	}
	return git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
}
