// Package mmap memory-maps files for read-only random access.
package mmap

import (
	"fmt"
	"math"
	"os"
)

type Options uint

const (
	// SequentialAccess is a hint requesting aggressive read-ahead.
	// Incompatible with RandomAccess. Maps to MADV_SEQUENTIAL on Unix.
	SequentialAccess Options = 1 << 0

	// RandomAccess is a hint that read ahead is less useful than normally.
	// Incompatible with SequentialAccess. Maps to MADV_RANDOM on Unix.
	RandomAccess Options = 1 << 1

	// Prefault is a hint requesting the entire file to be loaded in memory
	// for fastest access. Maps to MAP_POPULATE on Linux.
	Prefault Options = 1 << 2
)

func (o Options) Has(v Options) bool {
	return o&v != 0
}

// A Mapping is a read-only view of an entire file. Data stays valid
// until Close.
type Mapping struct {
	data []byte
}

// Open maps the whole file at path. The file descriptor is closed
// before returning; the mapping survives it. A zero-length file yields
// a mapping with empty Data.
func Open(path string, opt Options) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if uint64(size) > math.MaxInt {
		return nil, fmt.Errorf("mmap: file too large: %d bytes", size)
	}
	if size == 0 {
		return &Mapping{}, nil
	}

	data, err := Map(f, int(size), opt)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data}, nil
}

// Data returns the mapped bytes. Mutating them is undefined behavior.
func (m *Mapping) Data() []byte {
	return m.data
}

// Close unmaps the file. Safe to call twice.
func (m *Mapping) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	return Unmap(data)
}

// Map memory-maps the first size bytes of f read-only.
func Map(f *os.File, size int, opt Options) ([]byte, error) {
	return mmap(f, size, opt)
}

// Unmap unmaps the given slice from memory. The slice must have been
// returned by Map.
func Unmap(b []byte) error {
	return munmap(b)
}
