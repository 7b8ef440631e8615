// Package manifest reads and writes the downstream.yaml sync manifest and
// its companion downstream.lock.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

const (
	// Filename is the manifest looked up in the destination directory.
	Filename = "downstream.yaml"
	// LockFilename records the origin commit last merged, which becomes
	// the baseline of the next sync.
	LockFilename = "downstream.lock"
)

// Engine names accepted by the merge.engine field.
const (
	EngineText  = "text"
	EngineDiff3 = "diff3"
)

// Manifest describes how a destination directory tracks an origin
// repository.
type Manifest struct {
	Origin Origin `yaml:"origin"`
	Merge  Merge  `yaml:"merge,omitempty"`
	// Exclude lists paths, relative to this directory, the sync never
	// touches. Git metadata and the manifest itself are always excluded.
	Exclude []string `yaml:"exclude,omitempty"`
	// ScratchDir overrides where scratch checkouts are materialized.
	ScratchDir string `yaml:"scratch_dir,omitempty"`
}

// Origin locates the authoritative repository.
type Origin struct {
	// URL is any clone URL git understands.
	URL string `yaml:"url"`
	// Ref is the branch, tag or revision to import. Empty means the clone's
	// default branch.
	Ref string `yaml:"ref,omitempty"`
	// Subdir narrows the import to a subdirectory of the origin tree.
	Subdir string `yaml:"subdir,omitempty"`
}

// Merge selects and configures the merge engine.
type Merge struct {
	// Engine is "text" for the built-in merger or "diff3" for the external
	// binary.
	Engine string `yaml:"engine,omitempty"`
	// Diff3Bin overrides the binary used by the diff3 engine.
	Diff3Bin string `yaml:"diff3_bin,omitempty"`
	// ConflictExitCode overrides the exit status the external tool uses to
	// signal conflicts. nil means the GNU convention of 1.
	ConflictExitCode *int `yaml:"conflict_exit_code,omitempty"`
}

// Default returns the starter manifest written by `downstream init`.
func Default(url string) *Manifest {
	return &Manifest{
		Origin: Origin{URL: url, Ref: "main"},
		Merge:  Merge{Engine: EngineText},
	}
}

func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, Filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	return &m, nil
}

func (m *Manifest) Validate() error {
	var errs *multierror.Error

	if m.Origin.URL == "" {
		errs = multierror.Append(errs, fmt.Errorf("origin.url is required"))
	}

	switch m.Merge.Engine {
	case "", EngineText, EngineDiff3:
	default:
		errs = multierror.Append(errs, fmt.Errorf("merge.engine must be %q or %q, got %q", EngineText, EngineDiff3, m.Merge.Engine))
	}

	if m.Merge.ConflictExitCode != nil && *m.Merge.ConflictExitCode == 0 {
		errs = multierror.Append(errs, fmt.Errorf("merge.conflict_exit_code cannot be 0, exit 0 always means a clean merge"))
	}

	return errs.ErrorOrNil()
}

func (m *Manifest) Save(dir string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, Filename), data, 0o644)
}

// Lock records the origin commit last merged into the destination. That
// commit is the baseline the next sync merges against.
type Lock struct {
	Origin   LockedOrigin `yaml:"origin"`
	SyncedAt time.Time    `yaml:"synced_at"`
}

type LockedOrigin struct {
	URL  string `yaml:"url"`
	Ref  string `yaml:"ref,omitempty"`
	Hash string `yaml:"hash"`
}

// LoadLock returns nil with no error when the directory has never synced.
func LoadLock(dir string) (*Lock, error) {
	path := filepath.Join(dir, LockFilename)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var l Lock
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if l.Origin.Hash == "" {
		return nil, fmt.Errorf("%s has no origin.hash", path)
	}

	return &l, nil
}

const lockHeader = `# Generated by downstream. Records the origin commit last merged into this
# directory; it is the baseline of the next sync. Do not edit.
`

func (l *Lock) Save(dir string) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, LockFilename), append([]byte(lockHeader), data...), 0o644)
}
