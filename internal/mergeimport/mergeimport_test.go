package mergeimport

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/downstream-dev/downstream/internal/log"
)

type mergerFunc func(ctx context.Context, mine, theirs, base, scratchDir string) (*Result, error)

func (f mergerFunc) Merge(ctx context.Context, mine, theirs, base, scratchDir string) (*Result, error) {
	return f(ctx, mine, theirs, base, scratchDir)
}

// takeTheirs resolves every merge to the destination file's content, which
// makes repeated runs converge.
var takeTheirs = mergerFunc(func(_ context.Context, _, theirs, _, _ string) (*Result, error) {
	data, err := os.ReadFile(theirs)
	if err != nil {
		return nil, err
	}
	return &Result{Status: StatusClean, Content: data}, nil
})

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()

	files := map[string]string{}
	require.NoError(t, filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		files[rel] = string(data)
		return nil
	}))

	return files
}

func setupTrees(t *testing.T, origin, destination, baseline map[string]string) Options {
	t.Helper()

	opts := Options{
		OriginDir:      t.TempDir(),
		DestinationDir: t.TempDir(),
		BaselineDir:    t.TempDir(),
	}
	writeFiles(t, opts.OriginDir, origin)
	writeFiles(t, opts.DestinationDir, destination)
	writeFiles(t, opts.BaselineDir, baseline)

	return opts
}

func TestMerge_CleanMergeRewritesOrigin(t *testing.T) {
	opts := setupTrees(t,
		map[string]string{"a.txt": "origin"},
		map[string]string{"a.txt": "destination"},
		map[string]string{"a.txt": "baseline"},
	)
	opts.Merger = mergerFunc(func(_ context.Context, _, _, _, _ string) (*Result, error) {
		return &Result{Status: StatusClean, Content: []byte("merged")}, nil
	})

	report, err := Merge(context.Background(), opts)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(opts.OriginDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "merged", string(data))

	assert.Equal(t, map[string]string{"a.txt": "destination"}, readTree(t, opts.DestinationDir), "destination is never rewritten by a merge")
	assert.Equal(t, map[string]string{"a.txt": "baseline"}, readTree(t, opts.BaselineDir), "baseline is read-only")

	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, int64(len("merged")), report.BytesWritten)
	assert.False(t, report.HasConflicts())
}

func TestMerge_PassesAbsolutePathsAndScratchDir(t *testing.T) {
	opts := setupTrees(t,
		map[string]string{"a.txt": "origin"},
		map[string]string{"a.txt": "destination"},
		map[string]string{"a.txt": "baseline"},
	)
	scratch := t.TempDir()
	opts.ScratchDir = scratch

	var gotMine, gotTheirs, gotBase, gotScratch string
	opts.Merger = mergerFunc(func(_ context.Context, mine, theirs, base, scratchDir string) (*Result, error) {
		gotMine, gotTheirs, gotBase, gotScratch = mine, theirs, base, scratchDir
		return &Result{Status: StatusClean, Content: []byte("merged")}, nil
	})

	_, err := Merge(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(opts.OriginDir, "a.txt"), gotMine)
	assert.Equal(t, filepath.Join(opts.DestinationDir, "a.txt"), gotTheirs)
	assert.Equal(t, filepath.Join(opts.BaselineDir, "a.txt"), gotBase)
	assert.Equal(t, scratch, gotScratch)
	assert.True(t, filepath.IsAbs(gotMine))
}

func TestMerge_SkipsFilesMissingFromDestinationOrBaseline(t *testing.T) {
	opts := setupTrees(t,
		map[string]string{
			"shared.txt":      "origin",
			"no-base.txt":     "origin",
			"no-dest.txt":     "origin",
			"origin-only.txt": "origin",
		},
		map[string]string{
			"shared.txt":  "destination",
			"no-base.txt": "destination",
		},
		map[string]string{
			"shared.txt":  "baseline",
			"no-dest.txt": "baseline",
		},
	)

	var merged []string
	opts.Merger = mergerFunc(func(_ context.Context, mine, _, _, _ string) (*Result, error) {
		rel, err := filepath.Rel(opts.OriginDir, mine)
		require.NoError(t, err)
		merged = append(merged, rel)
		return &Result{Status: StatusClean, Content: []byte("merged")}, nil
	})

	report, err := Merge(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"shared.txt"}, merged, "only files present in all three trees are merged")
	assert.Equal(t, map[string]string{
		"shared.txt":      "merged",
		"no-base.txt":     "origin",
		"no-dest.txt":     "origin",
		"origin-only.txt": "origin",
	}, readTree(t, opts.OriginDir))
	assert.Equal(t, map[string]string{
		"shared.txt":  "destination",
		"no-base.txt": "destination",
	}, readTree(t, opts.DestinationDir), "a file origin also has is never copied or deleted")

	assert.Equal(t, 1, report.Merged)
	assert.Zero(t, report.Copied)
	assert.Zero(t, report.Deleted)
}

func TestMerge_ConflictLeavesOriginUntouched(t *testing.T) {
	opts := setupTrees(t,
		map[string]string{"b.txt": "origin b", "a.txt": "origin a", "clean.txt": "origin"},
		map[string]string{"b.txt": "dest b", "a.txt": "dest a", "clean.txt": "dest"},
		map[string]string{"b.txt": "base b", "a.txt": "base a", "clean.txt": "base"},
	)
	opts.Merger = mergerFunc(func(_ context.Context, mine, _, _, _ string) (*Result, error) {
		if filepath.Base(mine) == "clean.txt" {
			return &Result{Status: StatusClean, Content: []byte("merged")}, nil
		}
		return &Result{Status: StatusConflict}, nil
	})

	var out bytes.Buffer
	ctx := log.With(context.Background(), log.New().WithWriter(&out))

	report, err := Merge(ctx, opts)
	require.NoError(t, err, "conflicts are data, not errors")

	assert.Equal(t, map[string]string{
		"a.txt":     "origin a",
		"b.txt":     "origin b",
		"clean.txt": "merged",
	}, readTree(t, opts.OriginDir), "conflicted files keep their origin bytes")

	require.True(t, report.HasConflicts())
	assert.Equal(t, []string{
		filepath.Join(opts.OriginDir, "a.txt"),
		filepath.Join(opts.OriginDir, "b.txt"),
	}, report.Conflicts, "conflict paths are absolute and sorted")

	assert.Equal(t, 2, strings.Count(out.String(), "merge error for path "), "one warning per conflicted path")
	assert.Equal(t, 1, strings.Count(out.String(), filepath.Join(opts.OriginDir, "a.txt")))
}

func TestMerge_DestinationOnlyFilesCopiedIntoOrigin(t *testing.T) {
	opts := setupTrees(t,
		map[string]string{"shared.txt": "origin"},
		map[string]string{"shared.txt": "destination", "local.txt": "local", "sub/dir/nested.txt": "nested"},
		map[string]string{"shared.txt": "baseline"},
	)
	opts.Merger = takeTheirs

	script := filepath.Join(opts.DestinationDir, "tool.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0o755))

	report, err := Merge(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"shared.txt":         "destination",
		"local.txt":          "local",
		"sub/dir/nested.txt": "nested",
		"tool.sh":            "#!/bin/sh\n",
	}, readTree(t, opts.OriginDir), "destination-only files survive, parents created as needed")

	info, err := os.Stat(filepath.Join(opts.OriginDir, "tool.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm(), "copies preserve the source mode")

	data, err := os.ReadFile(filepath.Join(opts.DestinationDir, "local.txt"))
	require.NoError(t, err)
	assert.Equal(t, "local", string(data), "copying leaves the destination side unchanged")

	assert.Equal(t, 3, report.Copied)
	assert.Equal(t, 1, report.Merged)
}

func TestMerge_OriginDeletionPropagatesToDestination(t *testing.T) {
	opts := setupTrees(t,
		map[string]string{"kept.txt": "origin"},
		map[string]string{"kept.txt": "destination", "removed.txt": "stale"},
		map[string]string{"kept.txt": "baseline", "removed.txt": "stale"},
	)
	opts.Merger = takeTheirs

	report, err := Merge(context.Background(), opts)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(opts.DestinationDir, "removed.txt"))
	assert.NoFileExists(t, filepath.Join(opts.OriginDir, "removed.txt"))
	assert.Equal(t, 1, report.Deleted)
}

func TestMerge_SymlinksAreSkipped(t *testing.T) {
	opts := setupTrees(t,
		map[string]string{"target.txt": "origin target"},
		map[string]string{"target.txt": "dest target", "link.txt": "dest regular"},
		map[string]string{"target.txt": "base target", "link.txt": "base regular"},
	)
	opts.Merger = takeTheirs

	// Origin holds link.txt as a symlink, so no merge happens for it even
	// though all three trees have the path.
	require.NoError(t, os.Symlink(filepath.Join(opts.OriginDir, "target.txt"), filepath.Join(opts.OriginDir, "link.txt")))
	// Destination-side symlinks are invisible to the second pass.
	require.NoError(t, os.Symlink(filepath.Join(opts.DestinationDir, "target.txt"), filepath.Join(opts.DestinationDir, "dangling-here.txt")))

	report, err := Merge(context.Background(), opts)
	require.NoError(t, err)

	// The symlink itself is intact and the destination file untouched.
	target, err := os.Readlink(filepath.Join(opts.OriginDir, "link.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(opts.OriginDir, "target.txt"), target)

	data, err := os.ReadFile(filepath.Join(opts.DestinationDir, "link.txt"))
	require.NoError(t, err)
	assert.Equal(t, "dest regular", string(data))

	assert.NoFileExists(t, filepath.Join(opts.OriginDir, "dangling-here.txt"), "symlinks are never copied into origin")
	assert.Equal(t, 1, report.Merged, "only target.txt is merged")
}

func TestMerge_MergerExecutionFailureAborts(t *testing.T) {
	errBoom := errors.New("tool not found")

	opts := setupTrees(t,
		map[string]string{"a.txt": "origin", "b.txt": "origin"},
		map[string]string{"a.txt": "dest", "b.txt": "dest", "local.txt": "local"},
		map[string]string{"a.txt": "base", "b.txt": "base"},
	)
	opts.Merger = mergerFunc(func(_ context.Context, mine, _, _, _ string) (*Result, error) {
		if filepath.Base(mine) == "b.txt" {
			return nil, errBoom
		}
		return &Result{Status: StatusClean, Content: []byte("merged")}, nil
	})

	report, err := Merge(context.Background(), opts)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorContains(t, err, "could not execute merge for b.txt")

	// The walk stopped at b.txt: a.txt was already merged, the destination
	// pass never ran.
	assert.Equal(t, map[string]string{"a.txt": "merged", "b.txt": "origin"}, readTree(t, opts.OriginDir))
	assert.NoFileExists(t, filepath.Join(opts.OriginDir, "local.txt"))
}

func TestMerge_ReRunConverges(t *testing.T) {
	opts := setupTrees(t,
		map[string]string{"shared.txt": "origin"},
		map[string]string{"shared.txt": "edited", "local.txt": "local", "removed.txt": "stale"},
		map[string]string{"shared.txt": "base", "removed.txt": "stale"},
	)
	opts.Merger = takeTheirs

	first, err := Merge(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Merged)
	assert.Equal(t, 1, first.Copied)
	assert.Equal(t, 1, first.Deleted)

	originAfterFirst := readTree(t, opts.OriginDir)
	destinationAfterFirst := readTree(t, opts.DestinationDir)

	second, err := Merge(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, originAfterFirst, readTree(t, opts.OriginDir), "a second run does not change the origin tree")
	assert.Equal(t, destinationAfterFirst, readTree(t, opts.DestinationDir), "a second run does not change the destination tree")
	assert.Zero(t, second.Copied, "the copied file now exists in origin and stays put")
	assert.Zero(t, second.Deleted)
}

func TestMerge_ExcludedPathsAreUntouched(t *testing.T) {
	opts := setupTrees(t,
		map[string]string{
			"app.txt":        "origin app",
			"vendor/lib.txt": "origin lib",
		},
		map[string]string{
			"app.txt":               "destination app",
			"vendor/lib.txt":        "destination lib",
			"vendor/local-only.txt": "never copied",
			"vendor/stale.txt":      "never deleted",
			".git/config":           "[core]",
		},
		map[string]string{
			"app.txt":          "baseline app",
			"vendor/lib.txt":   "baseline lib",
			"vendor/stale.txt": "never deleted",
		},
	)
	opts.Exclude = []string{"vendor", ".git"}

	var merged []string
	opts.Merger = mergerFunc(func(ctx context.Context, mine, theirs, base, scratchDir string) (*Result, error) {
		merged = append(merged, mine)
		return takeTheirs(ctx, mine, theirs, base, scratchDir)
	})

	report, err := Merge(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(opts.OriginDir, "app.txt")}, merged, "excluded files never reach the merger")
	assert.Equal(t, map[string]string{
		"app.txt":        "destination app",
		"vendor/lib.txt": "origin lib",
	}, readTree(t, opts.OriginDir), "nothing is copied into an excluded directory")

	assert.FileExists(t, filepath.Join(opts.DestinationDir, "vendor/stale.txt"), "deletions do not propagate into excluded directories")
	assert.Equal(t, 1, report.Merged)
	assert.Zero(t, report.Copied)
	assert.Zero(t, report.Deleted)
}

func TestMerge_ValidatesRoots(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := Merge(context.Background(), Options{
		OriginDir:      filepath.Join(tmp, "missing"),
		DestinationDir: file,
	})
	require.Error(t, err)

	// Every bad root is reported at once, not just the first.
	assert.ErrorContains(t, err, "origin dir")
	assert.ErrorContains(t, err, "not a directory")
	assert.ErrorContains(t, err, "baseline dir is required")
	assert.ErrorContains(t, err, "a merger is required")
}
