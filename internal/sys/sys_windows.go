//go:build windows

package sys

import (
	"os"

	"golang.org/x/sys/windows"
)

func OpenFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
}

// Fsync flushes file data and metadata to stable storage.
func Fsync(file *os.File) error {
	return windows.FlushFileBuffers(windows.Handle(file.Fd()))
}
