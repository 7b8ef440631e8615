package mergeimport

import "context"

// Status represents the outcome of a single three-way file merge.
type Status string

const (
	// StatusClean means the merge resolved and Result.Content holds the
	// merged file.
	StatusClean Status = "CLEAN"
	// StatusConflict means both sides changed overlapping regions and the
	// merge could not be resolved automatically.
	StatusConflict Status = "CONFLICT"
)

// Result holds the outcome of merging a single file.
type Result struct {
	Status  Status
	Content []byte
}

// Merger abstracts the algorithm for three-way merging a single file.
//
// mine is the freshly imported origin file, theirs is the destination file
// carrying local edits, and base is their common ancestor. scratchDir is
// available for temporary files.
//
// A conflict is ordinary data, reported through Result. The error return is
// reserved for failures to execute the merge at all (missing binary,
// unreadable input) and aborts the whole import.
type Merger interface {
	Merge(ctx context.Context, mine, theirs, base, scratchDir string) (*Result, error)
}
