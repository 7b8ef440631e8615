package mergeimport

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Report summarizes a completed merge-import run.
type Report struct {
	// Merged counts files rewritten in the origin tree with merged content.
	Merged int
	// Copied counts destination-only files propagated into the origin tree.
	Copied int
	// Deleted counts files removed from the destination tree after origin
	// deleted them.
	Deleted int
	// Conflicts holds the absolute origin path of every file left
	// unresolved, sorted, each exactly once.
	Conflicts []string
	// BytesWritten totals the merged content written to the origin tree.
	BytesWritten int64
}

// HasConflicts reports whether any file was left unresolved.
func (r *Report) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// Summary renders a one-line account of the run.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d merged (%s), %d copied, %d deleted, %d conflicted",
		r.Merged, humanize.Bytes(uint64(r.BytesWritten)), r.Copied, r.Deleted, len(r.Conflicts))
}
