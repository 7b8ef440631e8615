package mergeimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReport_Summary(t *testing.T) {
	r := &Report{
		Merged:       3,
		Copied:       2,
		Deleted:      1,
		Conflicts:    []string{"/origin/a.txt"},
		BytesWritten: 2048,
	}

	assert.Equal(t, "3 merged (2.0 kB), 2 copied, 1 deleted, 1 conflicted", r.Summary())
	assert.True(t, r.HasConflicts())
}

func TestReport_SummaryEmpty(t *testing.T) {
	r := &Report{}

	assert.Equal(t, "0 merged (0 B), 0 copied, 0 deleted, 0 conflicted", r.Summary())
	assert.False(t, r.HasConflicts())
}
