// Package mergeimport reconciles an authoritative origin tree with a
// destination tree that carries local edits, using a baseline tree as their
// common ancestor.
//
// The origin tree is the source of truth. Files present in all three trees
// are three-way merged in place in the origin tree, destination-only
// additions are copied into it, and files origin deleted are deleted from
// the destination tree. Files left in conflict keep their origin content and
// are reported, never partially written.
package mergeimport

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/downstream-dev/downstream/internal/log"
	"github.com/downstream-dev/downstream/internal/utils"
)

// Options configures a single merge-import run. All three trees must be
// populated by the caller before Merge is invoked. Origin and destination are
// mutated in place; baseline is only ever read.
type Options struct {
	OriginDir      string
	DestinationDir string
	BaselineDir    string

	// ScratchDir is passed through to the Merger for temporary files.
	// Defaults to os.TempDir().
	ScratchDir string

	// Exclude lists relative paths both walks leave alone, either exact
	// files or whole directories. Excluded paths are never merged, copied,
	// or deleted.
	Exclude []string

	Merger Merger
}

type importer struct {
	originDir      string
	destinationDir string
	baselineDir    string
	scratchDir     string
	exclude        []string
	merger         Merger

	// visited holds the relative path of every file the origin pass handed
	// to the merger, conflicted or not. The destination pass treats visited
	// paths as final.
	visited map[string]struct{}
	// conflicts holds the absolute origin path of every file the merger
	// could not resolve.
	conflicts map[string]struct{}

	report *Report
}

// Merge runs the two-pass reconciliation over the trees in opts.
//
// The origin pass walks the origin tree and merges every file that all three
// trees share. The destination pass then walks the destination tree to copy
// destination-only additions into origin and to propagate origin-side
// deletions. Unresolved conflicts keep their origin content, are warned about
// once per path, and are listed in the returned Report; they do not produce
// an error. A non-nil error means the run aborted partway (an I/O failure or
// an unrunnable merger) and the trees may be left partially merged.
func Merge(ctx context.Context, opts Options) (*Report, error) {
	imp, err := newImporter(opts)
	if err != nil {
		return nil, err
	}

	if err := imp.originPass(ctx); err != nil {
		return nil, err
	}
	if err := imp.destinationPass(ctx); err != nil {
		return nil, err
	}

	imp.report.Conflicts = imp.conflictPaths()
	logger := log.From(ctx)
	for _, path := range imp.report.Conflicts {
		logger.Warnf("merge error for path %s", path)
	}

	return imp.report, nil
}

func newImporter(opts Options) (*importer, error) {
	var errs *multierror.Error

	originDir, err := canonicalRoot("origin", opts.OriginDir)
	errs = multierror.Append(errs, err)

	destinationDir, err := canonicalRoot("destination", opts.DestinationDir)
	errs = multierror.Append(errs, err)

	baselineDir, err := canonicalRoot("baseline", opts.BaselineDir)
	errs = multierror.Append(errs, err)

	if opts.Merger == nil {
		errs = multierror.Append(errs, fmt.Errorf("a merger is required"))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	scratchDir := opts.ScratchDir
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}

	exclude := lo.Map(lo.Compact(opts.Exclude), func(pattern string, _ int) string {
		return filepath.Clean(pattern)
	})

	return &importer{
		originDir:      originDir,
		destinationDir: destinationDir,
		baselineDir:    baselineDir,
		scratchDir:     scratchDir,
		exclude:        exclude,
		merger:         opts.Merger,
		visited:        map[string]struct{}{},
		conflicts:      map[string]struct{}{},
		report:         &Report{},
	}, nil
}

// canonicalRoot absolutizes dir so that later conflict reports always carry
// absolute paths, and verifies it is an existing directory.
func canonicalRoot(name, dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("%s dir is required", name)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s dir %s: %w", name, dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("reading %s dir: %w", name, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s dir %s is not a directory", name, abs)
	}

	return abs, nil
}

// originPass merges every regular file the origin tree shares with both the
// destination and the baseline. Symlinks are skipped outright, as are paths
// missing from either other tree; neither counts as visited.
func (i *importer) originPass(ctx context.Context) error {
	logger := log.From(ctx)

	return filepath.WalkDir(i.originDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking origin tree: %w", err)
		}

		relPath, err := filepath.Rel(i.originDir, path)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", path, err)
		}
		if d.IsDir() {
			if i.excluded(relPath) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || i.excluded(relPath) {
			return nil
		}

		destinationFile := filepath.Join(i.destinationDir, relPath)
		baselineFile := filepath.Join(i.baselineDir, relPath)
		if !exists(destinationFile) || !exists(baselineFile) {
			return nil
		}

		result, err := i.merger.Merge(ctx, path, destinationFile, baselineFile, i.scratchDir)
		if err != nil {
			return fmt.Errorf("could not execute merge for %s: %w", relPath, err)
		}
		i.visited[relPath] = struct{}{}

		if result.Status == StatusConflict {
			i.conflicts[path] = struct{}{}
			return nil
		}

		if err := os.WriteFile(path, result.Content, 0o644); err != nil {
			return fmt.Errorf("writing merged %s: %w", relPath, err)
		}
		i.report.Merged++
		i.report.BytesWritten += int64(len(result.Content))

		logger.Debug("merged", zap.String("path", relPath))

		return nil
	})
}

// destinationPass classifies every regular destination file the origin pass
// did not already settle. Destination-only additions are copied into origin,
// failing if origin somehow has the path already. Files origin deleted are
// deleted here too. Anything else stays as it is, origin being authoritative.
func (i *importer) destinationPass(ctx context.Context) error {
	logger := log.From(ctx)

	return filepath.WalkDir(i.destinationDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking destination tree: %w", err)
		}

		relPath, err := filepath.Rel(i.destinationDir, path)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", path, err)
		}
		if d.IsDir() {
			if i.excluded(relPath) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || i.excluded(relPath) {
			return nil
		}
		if _, ok := i.visited[relPath]; ok {
			return nil
		}

		originFile := filepath.Join(i.originDir, relPath)
		originExists := exists(originFile)
		baselineExists := exists(filepath.Join(i.baselineDir, relPath))

		switch {
		case !originExists && !baselineExists:
			// Never existed upstream, so it survives the import.
			if err := utils.CreateDirectory(originFile); err != nil {
				return fmt.Errorf("creating parent for %s: %w", relPath, err)
			}
			if err := utils.CopyFileExclusive(path, originFile); err != nil {
				return fmt.Errorf("copying destination-only file %s: %w", relPath, err)
			}
			i.report.Copied++
			logger.Debug("kept destination-only file", zap.String("path", relPath))
		case !originExists && baselineExists:
			// Origin deleted it since baseline.
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("deleting %s: %w", relPath, err)
			}
			i.report.Deleted++
			logger.Debug("propagated deletion", zap.String("path", relPath))
		default:
			// Origin has the path but the origin pass never merged it, e.g.
			// it is missing from baseline or is a symlink upstream. Origin
			// content stands.
			logger.Debug("left untouched", zap.String("path", relPath))
		}

		return nil
	})
}

func (i *importer) conflictPaths() []string {
	paths := lo.Keys(i.conflicts)
	sort.Strings(paths)
	return paths
}

func (i *importer) excluded(relPath string) bool {
	return Excluded(relPath, i.exclude)
}

// Excluded reports whether relPath, or a directory containing it, is listed
// in patterns. Callers materializing trees outside a Merge apply the same
// semantics.
func Excluded(relPath string, patterns []string) bool {
	return lo.SomeBy(patterns, func(pattern string) bool {
		return relPath == pattern || strings.HasPrefix(relPath, pattern+string(filepath.Separator))
	})
}

// exists mirrors the semantics of checking a path with stat: symlinks are
// followed, and any error counts as absence.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
