//go:build windows

package mmfile

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Anon maps size bytes of zeroed memory backed by the paging file.
func Anon(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("mmfile: invalid size %d", size)
	}
	return mapHandle(windows.InvalidHandle, size, nil)
}

// Create maps the file at path read-write, creating it and sizing it to
// exactly size bytes.
func Create(path string, size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("mmfile: invalid size %d", size)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("mmfile: truncate %s: %w", path, err)
	}
	return mapHandle(windows.Handle(f.Fd()), size, f)
}

func mapHandle(fh windows.Handle, size int, f *os.File) ([]byte, func() error, error) {
	closeFile := func() error {
		if f == nil {
			return nil
		}
		return f.Close()
	}
	hi := uint32(uint64(size) >> 32)
	lo := uint32(uint64(size))
	mh, err := windows.CreateFileMapping(fh, nil, windows.PAGE_READWRITE, hi, lo, nil)
	if err != nil {
		closeFile()
		return nil, nil, fmt.Errorf("mmfile: CreateFileMapping: %w", err)
	}
	addr, err := windows.MapViewOfFile(mh, windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(mh)
		closeFile()
		return nil, nil, fmt.Errorf("mmfile: MapViewOfFile: %w", err)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	done := false
	cleanup := func() error {
		if done {
			return nil
		}
		done = true
		var flushErr error
		if f != nil {
			flushErr = windows.FlushViewOfFile(addr, uintptr(size))
		}
		return errors.Join(
			flushErr,
			windows.UnmapViewOfFile(addr),
			windows.CloseHandle(mh),
			closeFile(),
		)
	}
	return data, cleanup, nil
}
