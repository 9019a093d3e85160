// Package filelock guards a configuration file against a second editing
// session on the same machine.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

var ErrLocked = errors.New("file is being edited by another session")

// Lock is an exclusive advisory lock held on a sidecar file next to the
// edited file.
type Lock struct {
	path string
	f    *os.File
	once sync.Once
}

// LockPath returns the sidecar path used for target.
func LockPath(target string) string {
	dir, name := filepath.Split(target)
	return filepath.Join(dir, "."+name+".routedit.lock")
}

// maxAttempts bounds how often Acquire reopens a lock file that a releasing
// session removed underneath it.
const maxAttempts = 8

// Acquire takes the lock for target without blocking. It fails with an error
// wrapping ErrLocked when another process holds it.
func Acquire(target string) (*Lock, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("filelock: empty path")
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, err
	}
	path := LockPath(abs)

	for range maxAttempts {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("filelock: open %s: %w", path, err)
		}
		current, err := lockOpen(f, path)
		if err != nil {
			_ = f.Close()
			if errors.Is(err, ErrLocked) {
				if pid := readHolder(path); holderAlive(pid) {
					return nil, fmt.Errorf("%w (pid %d)", ErrLocked, pid)
				}
			}
			return nil, err
		}
		if !current {
			_ = f.Close()
			continue
		}
		if err := f.Truncate(0); err == nil {
			_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
		}
		return &Lock{path: path, f: f}, nil
	}
	return nil, fmt.Errorf("filelock: %s kept being replaced", path)
}

// lockOpen locks f and reports whether f is still the file at path. A
// session that opened the lock file just before its holder removed it ends
// up locking an orphan; that lock must not count.
func lockOpen(f *os.File, path string) (bool, error) {
	if err := lockFile(f); err != nil {
		return false, err
	}
	held, err := f.Stat()
	if err != nil {
		_ = unlockFile(f)
		return false, err
	}
	onDisk, err := os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = unlockFile(f)
		return false, err
	}
	if err != nil || !os.SameFile(held, onDisk) {
		_ = unlockFile(f)
		return false, nil
	}
	return true, nil
}

func (l *Lock) Path() string { return l.path }

// Release removes the lock file while still holding it, then unlocks. It is
// safe to call twice.
func (l *Lock) Release() error {
	var err error
	l.once.Do(func() {
		rmErr := os.Remove(l.path)
		unlockErr := unlockFile(l.f)
		closeErr := l.f.Close()
		if rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			// Windows refuses to delete a file with open handles.
			rmErr = os.Remove(l.path)
		}
		if errors.Is(rmErr, os.ErrNotExist) {
			rmErr = nil
		}
		err = errors.Join(rmErr, unlockErr, closeErr)
	})
	return err
}

// readHolder returns the pid written by the current holder, or 0.
func readHolder(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
