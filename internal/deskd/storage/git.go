package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/sorenmh/gendesk/internal/deskd/config"
)

// GitStorage keeps documents in a git working tree. Every write and delete is
// a commit; when a remote is configured the commit is pushed.
type GitStorage struct {
	cfg  config.GitStorageConfig
	mu   sync.Mutex
	repo *git.Repository
}

// NewGitStorage opens, clones or initializes the repository at cfg.LocalPath
func NewGitStorage(cfg config.GitStorageConfig) (*GitStorage, error) {
	g := &GitStorage{cfg: cfg}
	if err := g.ensureRepo(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GitStorage) ensureRepo() error {
	if _, err := os.Stat(filepath.Join(g.cfg.LocalPath, ".git")); err == nil {
		repo, err := git.PlainOpen(g.cfg.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open repository: %w", err)
		}
		g.repo = repo
		return g.pull()
	}

	if g.cfg.RepositoryURL == "" {
		repo, err := git.PlainInitWithOptions(g.cfg.LocalPath, &git.PlainInitOptions{
			InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(g.cfg.Branch)},
		})
		if err != nil {
			return fmt.Errorf("failed to initialize repository: %w", err)
		}
		g.repo = repo
		return nil
	}

	repo, err := git.PlainClone(g.cfg.LocalPath, false, &git.CloneOptions{
		URL:           g.cfg.RepositoryURL,
		Auth:          g.auth(),
		ReferenceName: plumbing.NewBranchReferenceName(g.cfg.Branch),
		SingleBranch:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}

	g.repo = repo
	return nil
}

func (g *GitStorage) remote() bool {
	return g.cfg.RepositoryURL != ""
}

func (g *GitStorage) auth() transport.AuthMethod {
	if g.cfg.Token == "" {
		return nil
	}
	return &http.BasicAuth{
		Username: g.cfg.Username,
		Password: g.cfg.Token,
	}
}

func (g *GitStorage) pull() error {
	if !g.remote() {
		return nil
	}

	w, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	err = w.Pull(&git.PullOptions{
		Auth:          g.auth(),
		ReferenceName: plumbing.NewBranchReferenceName(g.cfg.Branch),
		SingleBranch:  true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull: %w", err)
	}

	return nil
}

func (g *GitStorage) Write(ctx context.Context, key string, content []byte, _ string) (string, error) {
	ref := SuffixedKey(key)
	full, err := safeJoin(g.cfg.LocalPath, ref)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", storageErr("create directory for", ref, err)
	}
	if err := os.WriteFile(full, content, 0644); err != nil {
		return "", storageErr("write", ref, err)
	}

	w, err := g.repo.Worktree()
	if err != nil {
		return "", storageErr("open worktree for", ref, err)
	}
	if _, err := w.Add(ref); err != nil {
		return "", storageErr("stage", ref, err)
	}

	if err := g.commitAndPush(ctx, w, fmt.Sprintf("Add %s", ref)); err != nil {
		return "", storageErr("commit", ref, err)
	}

	return ref, nil
}

func (g *GitStorage) Read(_ context.Context, ref string) ([]byte, error) {
	full, err := safeJoin(g.cfg.LocalPath, ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(ref)
	}
	if err != nil {
		return nil, storageErr("read", ref, err)
	}
	return data, nil
}

func (g *GitStorage) Delete(ctx context.Context, ref string) error {
	full, err := safeJoin(g.cfg.LocalPath, ref)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := os.Stat(full); errors.Is(err, fs.ErrNotExist) {
		return notFound(ref)
	}

	w, err := g.repo.Worktree()
	if err != nil {
		return storageErr("open worktree for", ref, err)
	}
	if _, err := w.Remove(ref); err != nil {
		return storageErr("remove", ref, err)
	}

	if err := g.commitAndPush(ctx, w, fmt.Sprintf("Remove %s", ref)); err != nil {
		return storageErr("commit", ref, err)
	}
	return nil
}

func (g *GitStorage) commitAndPush(ctx context.Context, w *git.Worktree, message string) error {
	_, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  g.cfg.AuthorName,
			Email: g.cfg.AuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	if !g.remote() {
		return nil
	}

	err = g.repo.PushContext(ctx, &git.PushOptions{
		Auth: g.auth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push: %w", err)
	}
	return nil
}

func (g *GitStorage) Type() string { return "git" }
