// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/pdiddy/digitize/internal/ledger"
)

// ErrLocked is returned when another run holds the collection lock.
var ErrLocked = errors.New("collection is locked by another run")

const lockFile = "lock"

// Lock is an exclusive, process-level lock on a collection directory.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the lock for collectionDir without waiting.
func AcquireLock(collectionDir string) (*Lock, error) {
	dir := filepath.Join(collectionDir, ledger.StateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	path := filepath.Join(dir, lockFile)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &Lock{fl: fl}, nil
}

// Release gives up the lock.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
