// Package sync drives a full import run: it materializes the origin and
// baseline trees named by the manifest, three-way merges them against the
// destination directory, applies the result and advances the lock file.
package sync

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/downstream-dev/downstream/internal/config"
	"github.com/downstream-dev/downstream/internal/diff3"
	"github.com/downstream-dev/downstream/internal/env"
	"github.com/downstream-dev/downstream/internal/git"
	"github.com/downstream-dev/downstream/internal/locks"
	"github.com/downstream-dev/downstream/internal/log"
	"github.com/downstream-dev/downstream/internal/manifest"
	"github.com/downstream-dev/downstream/internal/mergeimport"
	"github.com/downstream-dev/downstream/internal/textmerge"
	"github.com/downstream-dev/downstream/internal/utils"
	"github.com/downstream-dev/downstream/internal/workspace"
)

// Options configures one sync run. Zero values defer to the manifest and the
// user config.
type Options struct {
	// Dir is the destination directory holding the manifest.
	Dir string
	// Engine overrides the manifest's merge engine.
	Engine string
	// Diff3Bin overrides the external merge binary.
	Diff3Bin string
	// KeepScratch leaves the scratch checkouts behind after the run.
	KeepScratch bool
}

// Result describes what a sync run did.
type Result struct {
	// Report is the merge outcome, nil on a first sync where there is no
	// baseline to merge against.
	Report *mergeimport.Report
	// Applied counts the files copied from the merged origin tree into the
	// destination.
	Applied int
	// OriginHash is the origin commit this run imported.
	OriginHash string
	// FirstSync is true when no lock file existed before the run.
	FirstSync bool
}

// HasConflicts reports whether the run left files in conflict.
func (r *Result) HasConflicts() bool {
	return r.Report != nil && r.Report.HasConflicts()
}

// Run executes a sync of the destination directory against its origin.
//
// A destination that has synced before is three-way merged: the previous
// sync's origin commit is the baseline, the freshly cloned origin is one
// side, the user's directory the other. A first sync has no baseline and
// imports the origin tree as is. The lock file only advances on a run with
// no conflicts, so a conflicted sync can be rerun after resolving.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := log.From(ctx)

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving destination dir %s: %w", opts.Dir, err)
	}

	m, err := manifest.Load(dir)
	if err != nil {
		return nil, err
	}
	lock, err := manifest.LoadLock(dir)
	if err != nil {
		return nil, err
	}

	if err := ensureNoUnmergedPaths(dir); err != nil {
		return nil, err
	}

	// Fail fast on a broken engine before any cloning happens.
	merger, err := buildMerger(ctx, opts, m)
	if err != nil {
		return nil, err
	}

	if !env.IsConcurrencyLockDisabled() {
		mutex := locks.SyncLock(dir)
		for result := range mutex.TryLock(ctx, 1*time.Second) {
			if result.Error != nil {
				return nil, result.Error
			}
			if result.Success {
				break
			}
			logger.Infof("waiting for a concurrent sync of %s to finish (attempt %d)", dir, result.Attempt)
		}
		defer func() {
			if err := mutex.Unlock(); err != nil {
				logger.Errorf("failed to release sync lock: %v", err)
			}
		}()
	}

	wopts := workspace.Options{
		URL:        m.Origin.URL,
		Ref:        m.Origin.Ref,
		Subdir:     m.Origin.Subdir,
		ScratchDir: m.ScratchDir,
		Keep:       opts.KeepScratch,
	}
	if lock != nil {
		wopts.BaselineHash = lock.Origin.Hash
	}

	w, err := workspace.Materialize(ctx, wopts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := w.Cleanup(ctx); err != nil {
			logger.Errorf("failed to clean up scratch checkouts: %v", err)
		}
	}()

	exclude := excludePaths(m)
	result := &Result{OriginHash: w.OriginHash, FirstSync: lock == nil}

	if lock == nil {
		logger.Info("first sync, importing origin without a merge")
	} else {
		report, err := mergeimport.Merge(ctx, mergeimport.Options{
			OriginDir:      w.OriginDir,
			DestinationDir: dir,
			BaselineDir:    w.BaselineDir,
			ScratchDir:     w.ScratchDir,
			Exclude:        exclude,
			Merger:         merger,
		})
		if err != nil {
			return nil, err
		}
		result.Report = report

		// Local content must be captured before Apply overwrites it.
		if err := stageConflicts(ctx, dir, w, report.Conflicts); err != nil {
			return nil, err
		}
	}

	applied, err := w.Apply(ctx, dir, exclude)
	if err != nil {
		return nil, err
	}
	result.Applied = applied

	if result.HasConflicts() {
		logger.Warnf("%d files conflicted, leaving %s at the previous baseline until they are resolved", len(result.Report.Conflicts), manifest.LockFilename)
		return result, nil
	}

	newLock := &manifest.Lock{
		Origin: manifest.LockedOrigin{
			URL:  m.Origin.URL,
			Ref:  m.Origin.Ref,
			Hash: w.OriginHash,
		},
		SyncedAt: time.Now().UTC(),
	}
	if err := newLock.Save(dir); err != nil {
		return nil, fmt.Errorf("writing %s: %w", manifest.LockFilename, err)
	}

	return result, nil
}

// ensureNoUnmergedPaths refuses to sync over conflicts a previous run staged
// in git and the user has not resolved yet. Destinations outside a git
// repository, or machines without a git binary, skip the check.
func ensureNoUnmergedPaths(dir string) error {
	repo, err := git.NewLocalRepository(dir)
	if err != nil || repo.IsNil() {
		return nil
	}
	if _, err := exec.LookPath("git"); err != nil {
		return nil
	}

	unmerged, err := git.HasUnmergedPaths(dir)
	if err != nil {
		return fmt.Errorf("checking for unresolved conflicts: %w", err)
	}
	if len(unmerged) > 0 {
		return fmt.Errorf("destination has unresolved merge conflicts (%s), resolve and git add them before syncing", strings.Join(unmerged, ", "))
	}

	return nil
}

// buildMerger picks the merge engine, flag overriding manifest overriding
// user config, and verifies an external engine is actually runnable.
func buildMerger(ctx context.Context, opts Options, m *manifest.Manifest) (mergeimport.Merger, error) {
	engine := opts.Engine
	if engine == "" {
		engine = m.Merge.Engine
	}
	if engine == "" {
		engine = config.MergeEngine()
	}

	switch engine {
	case manifest.EngineText:
		return textmerge.New(), nil
	case manifest.EngineDiff3:
		bin := opts.Diff3Bin
		if bin == "" {
			bin = m.Merge.Diff3Bin
		}
		if bin == "" {
			bin = config.Diff3Bin()
		}

		runner := diff3.New(utils.ExpandHome(bin))
		if m.Merge.ConflictExitCode != nil {
			runner.ConflictExitCode = *m.Merge.ConflictExitCode
		}
		if _, err := runner.Detect(ctx); err != nil {
			return nil, err
		}
		return runner, nil
	default:
		return nil, fmt.Errorf("unknown merge engine %q", engine)
	}
}

// excludePaths is the manifest's exclusion list plus the paths no sync may
// ever move between trees.
func excludePaths(m *manifest.Manifest) []string {
	return append([]string{".git", manifest.Filename, manifest.LockFilename}, m.Exclude...)
}

// stageConflicts records each conflicted file in the destination's git index
// with base, local and origin stages, so git status reports it unmerged and
// git mergetool or checkout --ours/--theirs can resolve it. Destinations
// outside a git repository just keep the origin content.
func stageConflicts(ctx context.Context, dir string, w *workspace.Workspace, conflicts []string) error {
	if len(conflicts) == 0 {
		return nil
	}

	repo, err := git.NewLocalRepository(dir)
	if err != nil || repo.IsNil() {
		log.From(ctx).Debug("destination is not a git repository, skipping conflict staging")
		return nil
	}
	root := repo.Root()

	for _, originFile := range conflicts {
		relPath, err := filepath.Rel(w.OriginDir, originFile)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", originFile, err)
		}
		destinationFile := filepath.Join(dir, relPath)

		theirs, err := os.ReadFile(originFile)
		if err != nil {
			return fmt.Errorf("reading origin side of %s: %w", relPath, err)
		}
		ours, err := os.ReadFile(destinationFile)
		if err != nil {
			return fmt.Errorf("reading local side of %s: %w", relPath, err)
		}
		base, err := os.ReadFile(filepath.Join(w.BaselineDir, relPath))
		if err != nil {
			return fmt.Errorf("reading baseline of %s: %w", relPath, err)
		}

		info, err := os.Stat(destinationFile)
		if err != nil {
			return err
		}

		indexPath, err := filepath.Rel(root, destinationFile)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", destinationFile, err)
		}

		if err := repo.SetConflictState(indexPath, base, ours, theirs, info.Mode().Perm()&0o111 != 0); err != nil {
			return fmt.Errorf("staging conflict for %s: %w", relPath, err)
		}
	}

	return nil
}
