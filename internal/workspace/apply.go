package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/downstream-dev/downstream/internal/log"
	"github.com/downstream-dev/downstream/internal/mergeimport"
	"github.com/downstream-dev/downstream/internal/utils"
)

// Apply copies the merged origin tree over destinationDir, overwriting files
// in place and creating missing directories, and returns the number of files
// written. Excluded paths are left alone on both sides. Deletions are not
// Apply's business: the merge itself removes destination files their origin
// dropped.
func (w *Workspace) Apply(ctx context.Context, destinationDir string, exclude []string) (int, error) {
	logger := log.From(ctx)

	applied := 0
	err := filepath.WalkDir(w.OriginDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking origin tree: %w", err)
		}

		relPath, err := filepath.Rel(w.OriginDir, path)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", path, err)
		}
		if d.IsDir() {
			if mergeimport.Excluded(relPath, exclude) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || mergeimport.Excluded(relPath, exclude) {
			return nil
		}

		target := filepath.Join(destinationDir, relPath)
		if err := utils.CreateDirectory(target); err != nil {
			return fmt.Errorf("creating parent for %s: %w", relPath, err)
		}
		if err := utils.CopyFile(path, target); err != nil {
			return fmt.Errorf("applying %s: %w", relPath, err)
		}
		applied++

		logger.Debug("applied", zap.String("path", relPath))

		return nil
	})

	return applied, err
}
