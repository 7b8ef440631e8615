// Package locks provides inter-process synchronization for sync runs.
package locks

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// SyncMutex provides file-based mutual exclusion between downstream
// processes operating on the same destination tree, so two syncs never walk
// and mutate the same directory at once.
// The lock is automatically released if the holding process dies.
//
// See:
//   - Linux: https://linux.die.net/man/2/flock
//   - Windows: https://docs.microsoft.com/en-us/windows/win32/api/fileapi/nf-fileapi-lockfileex
type SyncMutex struct {
	destination string
	mu          *flock.Flock
}

// SyncLock creates the inter-process mutex for a destination directory. Lock
// files live under os.TempDir(), keyed by the destination path, so syncs of
// unrelated destinations never contend.
func SyncLock(destinationDir string) *SyncMutex {
	sum := sha256.Sum256([]byte(destinationDir))

	return &SyncMutex{
		destination: destinationDir,
		mu:          flock.New(filepath.Join(os.TempDir(), fmt.Sprintf("downstream-%x.lock", sum[:8]))),
	}
}

type TryLockResult struct {
	Attempt int
	Error   error
	Success bool
}

func (m *SyncMutex) TryLock(ctx context.Context, retryDelay time.Duration) <-chan TryLockResult {
	ch := make(chan TryLockResult)
	go func() {
		for attempt := 0; ; attempt++ {
			ok, err := m.mu.TryLock()
			if err != nil {
				ch <- TryLockResult{Attempt: attempt, Error: fmt.Errorf("failed to acquire lock for %s (pid %d): %w", m.destination, os.Getpid(), err)}
				return
			}
			if ok {
				ch <- TryLockResult{Attempt: attempt, Success: true}
				return
			}

			select {
			case <-ctx.Done():
				ch <- TryLockResult{Attempt: attempt, Error: ctx.Err()}
				return
			case <-time.After(retryDelay):
				ch <- TryLockResult{Attempt: attempt, Success: false}
			}
		}
	}()
	return ch
}

func (m *SyncMutex) Unlock() error {
	return m.mu.Unlock()
}
