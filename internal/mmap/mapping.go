package mmap

import (
	"os"
	"sync/atomic"
)

// Mapping is a read-only memory-mapped chunk object.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

// Open maps the file at path into memory.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size < 0 || int64(int(size)) != size {
		return nil, ErrInvalidSize
	}
	if size == 0 {
		return &Mapping{}, nil
	}

	data, unmap, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// View calls fn with the content of the object at path. Objects of at
// least MinMapSize bytes are served from a temporary mapping that is unmapped
// when fn returns, so fn must not retain the slice. Smaller objects are read
// into the heap.
func View(path string, fn func([]byte) error) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.Size() < MinMapSize {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return fn(data)
	}

	m, err := Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	_ = osSequential(m.data)
	return fn(m.data)
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

// Bytes returns the mapped bytes, or nil after Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Len returns the size of the mapping in bytes.
func (m *Mapping) Len() int {
	return len(m.data)
}
