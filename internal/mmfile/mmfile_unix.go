//go:build unix

// Package mmfile provides platform-specific memory for backing block stores:
// anonymous mappings and file-backed shared mappings.
package mmfile

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Anon maps size bytes of zeroed, private, anonymous memory.
func Anon(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("mmfile: invalid size %d", size)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("mmfile: anonymous map: %w", err)
	}
	return data, unmapper(data, false), nil
}

// Create maps the file at path read-write, creating it and sizing it to
// exactly size bytes. Writes through the returned slice reach the file; the
// cleanup function flushes and unmaps.
func Create(path string, size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("mmfile: invalid size %d", size)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close() // safe before return; mapping keeps pages alive

	if err := f.Truncate(int64(size)); err != nil {
		return nil, nil, fmt.Errorf("mmfile: truncate %s: %w", path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmfile: map %s: %w", path, err)
	}
	return data, unmapper(data, true), nil
}

func unmapper(data []byte, sync bool) func() error {
	done := false
	return func() error {
		if done {
			return nil
		}
		done = true
		var syncErr error
		if sync {
			syncErr = unix.Msync(data, unix.MS_SYNC)
		}
		err := unix.Munmap(data)
		if errors.Is(err, unix.EINVAL) {
			// Treat double-unmap as no-op for callers.
			err = nil
		}
		return errors.Join(syncErr, err)
	}
}
