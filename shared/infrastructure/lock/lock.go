// Package lock guards a host against running two workers at once.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another process holds the lock file.
var ErrAlreadyRunning = errors.New("another worker instance is already running")

// Instance is a held single-instance lock.
type Instance struct {
	flock *flock.Flock
}

// Acquire takes the lock at path without blocking.
func Acquire(path string) (*Instance, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrAlreadyRunning)
	}
	return &Instance{flock: fl}, nil
}

func (i *Instance) Path() string {
	return i.flock.Path()
}

// Release unlocks and closes the lock file. The file itself is kept.
func (i *Instance) Release() error {
	return i.flock.Unlock()
}
