package git

import (
	"context"
	"errors"
	"fmt"

	gitc "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/downstream-dev/downstream/internal/env"
)

type Repository struct {
	repo *gitc.Repository
}

// NewLocalRepository will attempt to open a pre-existing git repository
// containing the given directory.
// If no repository is found, it will return an empty Repository
func NewLocalRepository(dir string) (*Repository, error) {
	repo, err := gitc.PlainOpenWithOptions(dir, &gitc.PlainOpenOptions{
		DetectDotGit: true,
	})
	if errors.Is(err, gitc.ErrRepositoryNotExists) {
		return &Repository{}, nil
	} else if err != nil {
		return &Repository{}, fmt.Errorf("git: %w", err)
	}

	return &Repository{repo: repo}, nil
}

// CloneContext clones url into dir. Private HTTPS origins authenticate with
// the DOWNSTREAM_GIT_TOKEN access token.
func CloneContext(ctx context.Context, dir, url string) (*Repository, error) {
	opts := &gitc.CloneOptions{URL: url}
	if auth := BasicAuth(env.GitToken()); auth != nil {
		opts.Auth = auth
	}

	repo, err := gitc.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		return nil, fmt.Errorf("git clone %s: %w", url, err)
	}

	return &Repository{repo: repo}, nil
}

func (r *Repository) IsNil() bool {
	return r.repo == nil
}

func (r *Repository) HeadHash() (string, error) {
	if r.IsNil() {
		return "", nil
	}

	head, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("git: %w", err)
	}

	return head.Hash().String(), nil
}

// Root returns the worktree root of the repository, or "" for an empty
// Repository.
func (r *Repository) Root() string {
	if r.IsNil() {
		return ""
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return ""
	}

	return wt.Filesystem.Root()
}

// CheckoutRevision resolves a branch, tag or commit hash and checks the
// worktree out at it, leaving HEAD detached. It returns the resolved hash.
func (r *Repository) CheckoutRevision(revision string) (string, error) {
	if r.IsNil() {
		return "", fmt.Errorf("git repository not initialized")
	}

	hash, err := r.repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return "", fmt.Errorf("git: resolving %q: %w", revision, err)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("git: %w", err)
	}

	if err := wt.Checkout(&gitc.CheckoutOptions{Hash: *hash}); err != nil {
		return "", fmt.Errorf("git: checkout %s: %w", hash, err)
	}

	return hash.String(), nil
}
