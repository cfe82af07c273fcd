//go:build unix

package rscache

import (
	"fmt"
	"os"
	"syscall"
)

// mmapSource is a zero-copy view of a file's contents, memory-mapped once
// at open and sliced thereafter. Grounded on the mmap call site in
// calvinalkan-agent-task/pkg/slotcache/open.go, which maps read-write with
// the raw syscall package rather than a wrapper library; this cache only
// ever needs read access, so it maps PROT_READ/MAP_SHARED.
type mmapSource struct {
	file *os.File
	data []byte
}

func openDataSource(path string) (dataSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		f.Close()
		return &mmapSource{file: nil, data: nil}, nil
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("rscache: mmap %s: %w", path, err)
	}

	return &mmapSource{file: f, data: data}, nil
}

func (m *mmapSource) sliceAt(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(m.data) {
		return nil, fmt.Errorf("rscache: slice [%d:%d] out of bounds (len %d)", offset, offset+length, len(m.data))
	}
	return m.data[offset : offset+length], nil
}

func (m *mmapSource) Close() error {
	if m.data != nil {
		if err := syscall.Munmap(m.data); err != nil {
			return err
		}
	}
	if m.file != nil {
		return m.file.Close()
	}
	return nil
}
