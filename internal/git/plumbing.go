package git

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/index"
)

// WriteBlob writes content to the git object database and returns the SHA-1 hash.
func (r *Repository) WriteBlob(content []byte) (string, error) {
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(content)))

	writer, err := obj.Writer()
	if err != nil {
		return "", fmt.Errorf("failed to create object writer: %w", err)
	}

	if _, err := writer.Write(content); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to write blob content: %w", err)
	}
	writer.Close()

	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}

	return hash.String(), nil
}

// ResolveRevision resolves a revision (like "HEAD", a branch or a tag) to a hash.
func (r *Repository) ResolveRevision(revision string) (string, error) {
	if r.IsNil() {
		return "", fmt.Errorf("git repository not initialized")
	}

	h, err := r.repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return "", err
	}
	return h.String(), nil
}

// SetConflictState sets up git's index to show a file as conflicted.
// This writes the baseline (stage 1), local (stage 2), and incoming upstream
// (stage 3) versions as index entries, enabling standard git conflict
// resolution tools:
//   - git status shows "both modified"
//   - git mergetool can resolve conflicts
//   - git checkout --ours/--theirs works
//   - git add marks as resolved
//
// path is relative to the repository root. If base is nil, only stages 2 and
// 3 are written (new file conflict).
func (r *Repository) SetConflictState(path string, base, ours, theirs []byte, isExecutable bool) error {
	if r.IsNil() {
		return fmt.Errorf("git repository not initialized")
	}

	idx, err := r.repo.Storer.Index()
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	mode := filemode.Regular
	if isExecutable {
		mode = filemode.Executable
	}

	// Any existing entries for the path, stage 0 included, give way to the
	// conflict stages.
	newEntries := make([]*index.Entry, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		if e.Name != path {
			newEntries = append(newEntries, e)
		}
	}
	idx.Entries = newEntries

	now := time.Now()

	addStage := func(content []byte, stage index.Stage) error {
		hash, err := r.WriteBlob(content)
		if err != nil {
			return fmt.Errorf("failed to write stage blob: %w", err)
		}

		idx.Entries = append(idx.Entries, &index.Entry{
			Name:       path,
			Hash:       plumbing.NewHash(hash),
			Mode:       mode,
			Stage:      stage,
			CreatedAt:  now,
			ModifiedAt: now,
			Size:       uint32(len(content)),
		})
		return nil
	}

	if base != nil {
		if err := addStage(base, index.AncestorMode); err != nil {
			return err
		}
	}
	if err := addStage(ours, index.OurMode); err != nil {
		return err
	}
	if err := addStage(theirs, index.TheirMode); err != nil {
		return err
	}

	// The index format requires entries sorted by (name, stage).
	sort.Slice(idx.Entries, func(i, j int) bool {
		if idx.Entries[i].Name != idx.Entries[j].Name {
			return idx.Entries[i].Name < idx.Entries[j].Name
		}
		return idx.Entries[i].Stage < idx.Entries[j].Stage
	})

	if err := r.repo.Storer.SetIndex(idx); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	return nil
}
