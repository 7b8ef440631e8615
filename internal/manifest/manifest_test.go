package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	m := &Manifest{
		Origin: Origin{
			URL:    "https://github.com/acme/upstream.git",
			Ref:    "release-1.x",
			Subdir: "sdk/go",
		},
		Merge: Merge{
			Engine:           EngineDiff3,
			Diff3Bin:         "/opt/diffutils/bin/diff3",
			ConflictExitCode: pointer.ToInt(42),
		},
		Exclude:    []string{"vendor", "internal/generated"},
		ScratchDir: "/tmp/downstream-scratch",
	}
	require.NoError(t, m.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)
}

func TestManifest_LoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestManifest_LoadRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, Filename), []byte("origin: [newline"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.ErrorContains(t, err, "parsing")
}

func TestManifest_ValidateAggregatesErrors(t *testing.T) {
	m := &Manifest{
		Merge: Merge{
			Engine:           "patience",
			ConflictExitCode: pointer.ToInt(0),
		},
	}

	err := m.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "origin.url is required")
	assert.ErrorContains(t, err, "merge.engine")
	assert.ErrorContains(t, err, "conflict_exit_code")
}

func TestManifest_Default(t *testing.T) {
	m := Default("https://github.com/acme/upstream.git")
	require.NoError(t, m.Validate())
	assert.Equal(t, EngineText, m.Merge.Engine)
	assert.Equal(t, "main", m.Origin.Ref)
}

func TestLock_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	l := &Lock{
		Origin: LockedOrigin{
			URL:  "https://github.com/acme/upstream.git",
			Ref:  "main",
			Hash: "0123456789abcdef0123456789abcdef01234567",
		},
		SyncedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, l.Save(dir))

	loaded, err := LoadLock(dir)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, l.Origin, loaded.Origin)
	assert.True(t, l.SyncedAt.Equal(loaded.SyncedAt))

	// The lock file carries its provenance comment.
	data, err := os.ReadFile(filepath.Join(dir, LockFilename))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Generated by downstream")
}

func TestLock_LoadMissingReturnsNil(t *testing.T) {
	loaded, err := LoadLock(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLock_LoadRejectsMissingHash(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LockFilename), []byte("origin:\n  url: x\n"), 0o644))

	_, err := LoadLock(dir)
	require.Error(t, err)
	assert.ErrorContains(t, err, "origin.hash")
}
