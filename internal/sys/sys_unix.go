//go:build unix

package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

func OpenFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
}

// Fsync flushes file data and metadata to stable storage.
func Fsync(file *os.File) error {
	return unix.Fsync(int(file.Fd()))
}
