package osmpbf

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// mappedFile is the read-only shared mapping of the input. Every work item
// slice and every raw (uncompressed) blob payload aliases into it, so it
// stays mapped for the whole decode.
type mappedFile struct {
	f    *os.File
	data mmap.MMap
}

func openMapped(path string) (*mappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s is empty", ErrTruncated, path)
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &mappedFile{f: f, data: data}, nil
}

func (m *mappedFile) Close() error {
	err := m.data.Unmap()
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
