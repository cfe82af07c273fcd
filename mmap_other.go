//go:build !unix

package rscache

import (
	"fmt"
	"os"
)

// fileSource is the fallback storage strategy for non-unix builds, which
// have no memory-mapping syscall available through this package; every
// unix build, 32-bit ones included, uses mmapSource instead. It reads
// through os.File.ReadAt, which takes no seek position and therefore
// needs no interior-mutable cursor: concurrent reads are safe without
// extra locking, same as the mmap strategy.
type fileSource struct {
	file *os.File
}

func openDataSource(path string) (dataSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &fileSource{file: f}, nil
}

func (f *fileSource) sliceAt(offset, length int) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := f.file.ReadAt(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("rscache: read [%d:%d]: %w", offset, offset+length, err)
	}
	return buf, nil
}

func (f *fileSource) Close() error {
	return f.file.Close()
}
