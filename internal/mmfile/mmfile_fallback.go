//go:build !unix && !windows

// Package mmfile provides platform-specific memory for backing block stores.
package mmfile

import (
	"fmt"
	"os"
)

// Anon allocates size zeroed bytes when mmap is not available.
func Anon(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("mmfile: invalid size %d", size)
	}
	return make([]byte, size), func() error { return nil }, nil
}

// Create loads the file at path into memory and writes it back on cleanup.
func Create(path string, size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("mmfile: invalid size %d", size)
	}
	data := make([]byte, size)
	if prev, err := os.ReadFile(path); err == nil {
		copy(data, prev)
	}
	return data, func() error { return os.WriteFile(path, data, 0o644) }, nil
}
