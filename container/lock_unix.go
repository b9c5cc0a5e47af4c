//go:build !windows && !js && !wasip1

package container

import (
	"os"
	"syscall"

	"github.com/memvid-dev/memvid/errs"
)

// fileLock is an advisory OS-level lock on a container file (Unix
// implementation using flock), ensuring a single writer per .mv2 file
// (§5 "Concurrency model").
type fileLock struct {
	file *os.File
}

// lockFile acquires an exclusive, non-blocking lock for path. The caller
// must release it with unlock().
func lockFile(path string) (*fileLock, error) {
	lockPath := path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "container.lockFile", lockPath, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, errs.Wrap(errs.KindLocked, "container.lockFile", path, err)
	}

	return &fileLock{file: f}, nil
}

// unlock releases the lock and removes the sidecar lock file.
func (fl *fileLock) unlock() error {
	if fl.file == nil {
		return nil
	}
	syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN)
	name := fl.file.Name()
	err := fl.file.Close()
	os.Remove(name)
	return err
}
