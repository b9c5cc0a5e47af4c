//go:build windows

package container

import (
	"os"
	"syscall"
	"unsafe"

	"github.com/memvid-dev/memvid/errs"
)

var (
	modkernel32      = syscall.NewLazyDLL("kernel32.dll")
	procLockFileEx   = modkernel32.NewProc("LockFileEx")
	procUnlockFileEx = modkernel32.NewProc("UnlockFileEx")
)

const (
	lockfileExclusiveLock = 0x00000002
	lockfileFailImmediate = 0x00000001
)

// fileLock is an advisory OS-level lock on a container file (Windows
// implementation), ensuring a single writer per .mv2 file
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

	ol := new(syscall.Overlapped)
	r1, _, err := procLockFileEx.Call(
		f.Fd(),
		uintptr(lockfileExclusiveLock|lockfileFailImmediate),
		0,
		1, 0,
		uintptr(unsafe.Pointer(ol)),
	)
	if r1 == 0 {
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
	ol := new(syscall.Overlapped)
	procUnlockFileEx.Call(
		fl.file.Fd(),
		0,
		1, 0,
		uintptr(unsafe.Pointer(ol)),
	)
	err := fl.file.Close()
	os.Remove(fl.file.Name())
	return err
}
