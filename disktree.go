package celltree

import (
	"bytes"
	"encoding/binary"
	"math/bits"

	"github.com/andreyvit/celltree/mmap"
)

// DiskTree is a read-only, memory-mapped serialized tree. Lookups and
// iteration walk file offsets directly; no interior node state is
// materialized beyond the current search path.
//
// A DiskTree is safe for concurrent readers: the mapping is immutable
// and every iterator keeps its own cursor.
type DiskTree struct {
	buf     []byte
	mapping *mmap.Mapping
}

// OpenDiskTree memory-maps the disk tree file at path.
func OpenDiskTree(path string) (*DiskTree, error) {
	m, err := mmap.Open(path, mmap.RandomAccess)
	if err != nil {
		return nil, err
	}
	t, err := NewDiskTree(m.Data())
	if err != nil {
		m.Close()
		return nil, err
	}
	t.mapping = m
	return t, nil
}

// NewDiskTree opens a disk tree over an in-memory buffer, e.g. one
// produced by WriteTo or an externally managed mapping.
func NewDiskTree(buf []byte) (*DiskTree, error) {
	if len(buf) < diskNodeRegionOff || !bytes.Equal(buf[:len(diskMagic)], []byte(diskMagic)) {
		return nil, ErrNotDiskTree
	}
	if v := buf[len(diskMagic)]; v != diskVersion {
		return nil, VersionError(v)
	}
	return &DiskTree{buf: buf}, nil
}

// Close unmaps the file, if the tree owns a mapping. The tree and any
// byte slices returned by Get become invalid.
func (t *DiskTree) Close() error {
	t.buf = nil
	if t.mapping != nil {
		m := t.mapping
		t.mapping = nil
		return m.Close()
	}
	return nil
}

// Get returns the raw value bytes covering cell, along with the cell
// at which coverage was recorded, which may be an ancestor of the
// queried cell. The returned slice aliases the mapping and is valid
// until Close.
func (t *DiskTree) Get(cell Cell) (Cell, []byte, bool, error) {
	if err := cell.validate(); err != nil {
		return 0, nil, false, err
	}
	pos := int64(getUint40(t.buf[diskRootTableOff+cell.Base()*dpSize:]))
	if pos == 0 {
		return 0, nil, false, nil
	}
	d := newDigits(cell)
	for res := 0; ; res++ {
		tag, err := t.tagAt(pos)
		if err != nil {
			return 0, nil, false, err
		}
		if tag&0x80 == 0 {
			val, err := t.leafValue(pos)
			if err != nil {
				return 0, nil, false, err
			}
			matched, ok := cell.Parent(res)
			assert(ok, "leaf deeper than query")
			return matched, val, true, nil
		}
		bitmap := tag & 0x7F
		dig, ok := d.next()
		if !ok {
			// query resolution reached with a subtree below it: only
			// finer descendants were inserted, so no coverage
			return 0, nil, false, nil
		}
		if bitmap&(1<<dig) == 0 {
			return 0, nil, false, nil
		}
		idx := bits.OnesCount8(bitmap & (1<<dig - 1))
		pos, err = t.childPos(pos, bitmap, idx)
		if err != nil {
			return 0, nil, false, err
		}
	}
}

// Contains reports whether the tree fully covers cell.
func (t *DiskTree) Contains(cell Cell) (bool, error) {
	_, _, ok, err := t.Get(cell)
	return ok, err
}

// DiskTreeGet is Get plus value decoding. A decoder failure surfaces
// as CorruptError.
func DiskTreeGet[V any](t *DiskTree, cell Cell, dec ValueDecoder[V]) (Cell, V, bool, error) {
	var zero V
	matched, data, ok, err := t.Get(cell)
	if err != nil || !ok {
		return 0, zero, false, err
	}
	v, err := dec(data)
	if err != nil {
		return 0, zero, false, corruptErrf(0, err, "value decoder failed for cell %v", matched)
	}
	return matched, v, true, nil
}

// tagAt reads the node tag byte at pos, validating position and tag.
func (t *DiskTree) tagAt(pos int64) (byte, error) {
	if pos < diskNodeRegionOff || pos >= int64(len(t.buf)) {
		return 0, corruptErrf(pos, nil, "node offset outside the file")
	}
	tag := t.buf[pos]
	if tag&0x80 == 0 && tag != 0x00 {
		return 0, corruptErrf(pos, nil, "leaf tag has undefined bits: %#02x", tag)
	}
	if tag == 0x80 {
		return 0, corruptErrf(pos, nil, "parent node with no children")
	}
	return tag, nil
}

// leafValue extracts the value bytes of the leaf whose tag is at pos.
func (t *DiskTree) leafValue(pos int64) ([]byte, error) {
	length, n := binary.Uvarint(t.buf[pos+1:])
	if n <= 0 {
		return nil, corruptErrf(pos+1, nil, "invalid value length varint")
	}
	if length > maxValueLen {
		return nil, corruptErrf(pos+1, nil, "value length %d exceeds format limit", length)
	}
	begin := pos + 1 + int64(n)
	end := begin + int64(length)
	if end > int64(len(t.buf)) {
		return nil, corruptErrf(begin, nil, "value of %d bytes extends past end of file", length)
	}
	return t.buf[begin:end:end], nil
}

// childPos resolves the idx-th present child of the parent at pos.
// Child offsets count back from the end of the parent header.
func (t *DiskTree) childPos(pos int64, bitmap byte, idx int) (int64, error) {
	n := bits.OnesCount8(bitmap)
	headerEnd := pos + 1 + int64(n)*dpSize
	offPos := pos + 1 + int64(idx)*dpSize
	if headerEnd > int64(len(t.buf)) {
		return 0, corruptErrf(pos, nil, "parent header extends past end of file")
	}
	rel := int64(getUint40(t.buf[offPos:]))
	child := headerEnd - rel
	if rel == 0 || child < diskNodeRegionOff {
		return 0, corruptErrf(offPos, nil, "child offset %d out of bounds", rel)
	}
	return child, nil
}
