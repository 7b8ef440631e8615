// Package diff3 merges files by invoking an external diff3 binary, the
// classic three-way merge tool shipped with GNU diffutils.
package diff3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	version "github.com/hashicorp/go-version"

	"github.com/downstream-dev/downstream/internal/mergeimport"
)

// minVersion is the oldest GNU diffutils release the Runner is known to work
// with.
var minVersion = version.Must(version.NewVersion("3.0"))

// Runner merges files by running `diff3 -m` in a scratch directory and
// interpreting the exit status. GNU diff3 exits 0 on a clean merge, 1 when
// conflicts remain and 2 when it could not operate at all; only the last is
// an execution failure. The merged file arrives on stdout.
type Runner struct {
	// Bin is the binary to invoke, an absolute path or a name on PATH.
	Bin string
	// ConflictExitCode is the exit status that signals unresolved
	// conflicts rather than failure. GNU diff3 uses 1.
	ConflictExitCode int
}

var _ mergeimport.Merger = (*Runner)(nil)

func New(bin string) *Runner {
	if bin == "" {
		bin = "diff3"
	}

	return &Runner{
		Bin:              bin,
		ConflictExitCode: 1,
	}
}

func (r *Runner) Merge(ctx context.Context, mine, theirs, base, scratchDir string) (*mergeimport.Result, error) {
	cmd := exec.CommandContext(ctx, r.Bin, "-m", mine, base, theirs)
	cmd.Dir = scratchDir
	var outb, errb bytes.Buffer
	cmd.Stdout = &outb
	cmd.Stderr = &errb

	err := cmd.Run()
	if err == nil {
		return &mergeimport.Result{Status: mergeimport.StatusClean, Content: outb.Bytes()}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == r.ConflictExitCode {
		return &mergeimport.Result{Status: mergeimport.StatusConflict}, nil
	}

	return nil, fmt.Errorf("failed to run %s: %w - %s", r.Bin, err, errb.String())
}

// Detect verifies the configured binary is runnable and recent enough,
// returning its parsed version.
func (r *Runner) Detect(ctx context.Context) (*version.Version, error) {
	cmd := exec.CommandContext(ctx, r.Bin, "--version")
	var outb, errb bytes.Buffer
	cmd.Stdout = &outb
	cmd.Stderr = &errb

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to run %s --version: %w - %s", r.Bin, err, errb.String())
	}

	v, err := parseVersion(outb.String())
	if err != nil {
		return nil, fmt.Errorf("could not determine %s version: %w", r.Bin, err)
	}

	if v.LessThan(minVersion) {
		return nil, fmt.Errorf("%s version %s is too old, need %s or newer", r.Bin, v, minVersion)
	}

	return v, nil
}

// parseVersion extracts the release from `diff3 --version` output, whose
// first line looks like "diff3 (GNU diffutils) 3.10".
func parseVersion(output string) (*version.Version, error) {
	line, _, _ := strings.Cut(output, "\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty version output")
	}

	return version.NewVersion(fields[len(fields)-1])
}
