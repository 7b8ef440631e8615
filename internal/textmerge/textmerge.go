// Package textmerge provides the built-in three-way file merger. It runs the
// diff3 algorithm in process, with no external tooling required.
package textmerge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/epiclabs-io/diff3"

	"github.com/downstream-dev/downstream/internal/mergeimport"
)

// Merger resolves non-overlapping changes automatically. Overlapping changes
// are reported as a conflict with no content at all, so a conflicted file is
// never rewritten with marker-laden output.
type Merger struct{}

var _ mergeimport.Merger = (*Merger)(nil)

func New() *Merger {
	return &Merger{}
}

func (m *Merger) Merge(ctx context.Context, mine, theirs, base, _ string) (*mergeimport.Result, error) {
	mineData, err := os.ReadFile(mine)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", mine, err)
	}

	theirsData, err := os.ReadFile(theirs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", theirs, err)
	}

	baseData, err := os.ReadFile(base)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", base, err)
	}

	return m.merge(mineData, theirsData, baseData)
}

func (m *Merger) merge(mine, theirs, base []byte) (*mergeimport.Result, error) {
	// 1. Fast path: identical content needs no merge.
	if bytes.Equal(mine, theirs) {
		return &mergeimport.Result{Status: mergeimport.StatusClean, Content: mine}, nil
	}

	// 2. Local side made no changes, upstream wins.
	if bytes.Equal(theirs, base) {
		return &mergeimport.Result{Status: mergeimport.StatusClean, Content: mine}, nil
	}

	// 3. Upstream made no changes, keep the local version.
	if bytes.Equal(mine, base) {
		return &mergeimport.Result{Status: mergeimport.StatusClean, Content: theirs}, nil
	}

	// 4. Both sides changed, run a full diff3 merge.
	merged, err := diff3.Merge(
		bytes.NewReader(mine),
		bytes.NewReader(base),
		bytes.NewReader(theirs),
		true,
		"upstream",
		"local",
	)
	if err != nil {
		return nil, fmt.Errorf("diff3 merge failed: %w", err)
	}

	if merged.Conflicts {
		return &mergeimport.Result{Status: mergeimport.StatusConflict}, nil
	}

	content, err := io.ReadAll(merged.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to read merge result: %w", err)
	}

	return &mergeimport.Result{Status: mergeimport.StatusClean, Content: content}, nil
}
