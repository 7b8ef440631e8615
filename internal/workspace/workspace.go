// Package workspace materializes the origin and baseline trees a sync merges
// against, as throwaway checkouts under a scratch directory.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/downstream-dev/downstream/internal/env"
	"github.com/downstream-dev/downstream/internal/git"
	"github.com/downstream-dev/downstream/internal/log"
)

// Options describes the trees to materialize for one sync run.
type Options struct {
	// URL is the origin repository, anything git can clone.
	URL string
	// Ref is the branch, tag or commit to import. Empty means whatever the
	// clone's HEAD points at.
	Ref string
	// Subdir narrows the import to a subdirectory of the origin repository.
	Subdir string
	// BaselineHash is the origin commit of the previous sync. Empty means no
	// sync has happened yet and no baseline tree is produced.
	BaselineHash string
	// ScratchDir overrides where checkouts are created. Defaults to
	// DOWNSTREAM_SCRATCH, then the system temp dir.
	ScratchDir string
	// Keep leaves the scratch directory behind after the run.
	Keep bool
}

// Workspace holds the materialized trees of one sync run.
type Workspace struct {
	// OriginDir is the origin tree to merge from, already narrowed to the
	// configured subdirectory.
	OriginDir string
	// BaselineDir is the baseline tree, or "" when there is none.
	BaselineDir string
	// ScratchDir is free space for merger temp files.
	ScratchDir string
	// OriginHash is the resolved origin commit, the baseline of the next
	// sync.
	OriginHash string

	root string
	keep bool
}

// Materialize clones the origin at opts.Ref and, when a baseline hash is
// known, a second checkout pinned at that hash. The two clones run
// concurrently. Each checkout has its git metadata stripped once its commit
// hash is captured, so later tree walks see plain files only.
func Materialize(ctx context.Context, opts Options) (*Workspace, error) {
	base := opts.ScratchDir
	if base == "" {
		base = env.ScratchDir()
	}
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return nil, fmt.Errorf("creating scratch dir %s: %w", base, err)
		}
	}

	root, err := os.MkdirTemp(base, "downstream-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}

	w := &Workspace{
		OriginDir:  filepath.Join(root, "origin"),
		ScratchDir: filepath.Join(root, "scratch"),
		root:       root,
		keep:       opts.Keep,
	}
	if err := os.MkdirAll(w.ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hash, err := checkout(gctx, w.OriginDir, opts.URL, opts.Ref)
		if err != nil {
			return fmt.Errorf("materializing origin: %w", err)
		}
		w.OriginHash = hash
		return nil
	})
	if opts.BaselineHash != "" {
		w.BaselineDir = filepath.Join(root, "baseline")
		g.Go(func() error {
			if _, err := checkout(gctx, w.BaselineDir, opts.URL, opts.BaselineHash); err != nil {
				return fmt.Errorf("materializing baseline: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = w.Cleanup(ctx)
		return nil, err
	}

	if opts.Subdir != "" {
		if err := w.narrowTo(opts.Subdir); err != nil {
			_ = w.Cleanup(ctx)
			return nil, err
		}
	}

	log.From(ctx).Debug("workspace ready",
		zap.String("origin", w.OriginDir),
		zap.String("baseline", w.BaselineDir),
		zap.String("originHash", w.OriginHash),
	)

	return w, nil
}

// checkout clones url into dir at revision and strips the git metadata,
// returning the commit hash the tree is left at.
func checkout(ctx context.Context, dir, url, revision string) (string, error) {
	repo, err := git.CloneContext(ctx, dir, url)
	if err != nil {
		return "", err
	}

	var hash string
	if revision == "" {
		hash, err = repo.HeadHash()
	} else if hash, err = repo.CheckoutRevision(revision); err != nil {
		// Branches other than the clone's default only exist under the
		// remote namespace after a fresh clone.
		if remoteHash, remoteErr := repo.CheckoutRevision("origin/" + revision); remoteErr == nil {
			hash, err = remoteHash, nil
		}
	}
	if err != nil {
		return "", err
	}

	if err := os.RemoveAll(filepath.Join(dir, ".git")); err != nil {
		return "", fmt.Errorf("stripping git metadata: %w", err)
	}

	return hash, nil
}

// narrowTo points the workspace at a subdirectory of each checkout. A
// baseline that predates the subdirectory is treated as an empty tree.
func (w *Workspace) narrowTo(subdir string) error {
	origin := filepath.Join(w.OriginDir, subdir)
	info, err := os.Stat(origin)
	if err != nil {
		return fmt.Errorf("origin subdir %s: %w", subdir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("origin subdir %s is not a directory", subdir)
	}
	w.OriginDir = origin

	if w.BaselineDir != "" {
		baseline := filepath.Join(w.BaselineDir, subdir)
		if err := os.MkdirAll(baseline, 0o755); err != nil {
			return fmt.Errorf("baseline subdir %s: %w", subdir, err)
		}
		w.BaselineDir = baseline
	}

	return nil
}

// Cleanup removes the scratch checkouts, unless the workspace was asked to
// keep them.
func (w *Workspace) Cleanup(ctx context.Context) error {
	if w.keep {
		log.From(ctx).Info("keeping scratch directory", zap.String("path", w.root))
		return nil
	}

	return os.RemoveAll(w.root)
}
