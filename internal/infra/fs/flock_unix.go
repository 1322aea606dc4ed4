//go:build !windows
// +build !windows

package fs

import (
	"os"
	"syscall"
)

// flockExclusive acquires an exclusive advisory lock on the file,
// blocking until the current holder releases it.
func flockExclusive(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_EX)
}

// flockUnlock releases the lock on the file.
func flockUnlock(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
