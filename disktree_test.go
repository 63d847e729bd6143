package celltree

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTreeToFile[V any](t *testing.T, tree *Tree[V], enc ValueEncoder[V]) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.hxt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := tree.WriteTo(f, enc); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

// rawStringEncoder writes string values as raw bytes.
func rawStringEncoder(w io.Writer, v *string) error {
	_, err := w.Write([]byte(*v))
	return err
}

func TestDiskTree_ExactBytes(t *testing.T) {
	tree := New[string]()
	ensure(tree.Insert(cellOf(t, 9, 2, 0), "x"))
	ensure(tree.Insert(cellOf(t, 9, 2, 5), "y"))

	path := writeTreeToFile(t, tree, rawStringEncoder)
	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if len(buf) != 638 {
		t.Fatalf("file size = %d, wanted 638", len(buf))
	}
	if !bytes.Equal(buf[:4], []byte("HXTR")) {
		t.Fatalf("magic = %x", buf[:4])
	}
	if buf[4] != 0 {
		t.Fatalf("version = %d, wanted 0", buf[4])
	}
	// every root entry is 0 except base 9, which points at the last
	// node written
	for base := 0; base < BaseCellCount; base++ {
		off := getUint40(buf[diskRootTableOff+base*dpSize:])
		if base == 9 {
			if off != 632 {
				t.Fatalf("root[9] = %d, wanted 632", off)
			}
		} else if off != 0 {
			t.Fatalf("root[%d] = %d, wanted 0", base, off)
		}
	}

	// node region, postorder: two leaves, their parent, the base root
	want := []byte{
		0x00, 0x01, 'x', // leaf "x" at 615
		0x00, 0x01, 'y', // leaf "y" at 618
		0x80 | 0b0100001, // parent at 621, children at digits 0 and 5
		17, 0, 0, 0, 0, // 632 − 615
		14, 0, 0, 0, 0, // 632 − 618
		0x80 | 0b0000100, // base root at 632, child at digit 2
		17, 0, 0, 0, 0, // 638 − 621
	}
	if !bytes.Equal(buf[diskNodeRegionOff:], want) {
		t.Fatalf("node region = %x, wanted %x", buf[diskNodeRegionOff:], want)
	}
}

func TestDiskTree_OpenValidates(t *testing.T) {
	tree := New[string]()
	ensure(tree.Insert(cellOf(t, 9), "a"))
	path := writeTreeToFile(t, tree, rawStringEncoder)
	good, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	t.Run("bad magic", func(t *testing.T) {
		buf := append([]byte(nil), good...)
		buf[0] = 'Z'
		if _, err := NewDiskTree(buf); err != ErrNotDiskTree {
			t.Fatalf("err = %v, wanted ErrNotDiskTree", err)
		}
	})

	t.Run("bad version", func(t *testing.T) {
		buf := append([]byte(nil), good...)
		buf[4] = 9
		_, err := NewDiskTree(buf)
		if ve, ok := err.(VersionError); !ok || uint8(ve) != 9 {
			t.Fatalf("err = %v, wanted VersionError(9)", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		if _, err := NewDiskTree(good[:100]); err != ErrNotDiskTree {
			t.Fatalf("err = %v, wanted ErrNotDiskTree", err)
		}
	})
}

func TestDiskTree_GetMatchesMemory(t *testing.T) {
	tree := NewWithCompactor[string](EqCompactor[string]{})
	for d := 0; d < 7; d++ {
		ensure(tree.Insert(cellOf(t, 9, 2, d), string(rune('a'+d))))
	}
	ensure(tree.Insert(cellOf(t, 9, 4), "zz"))
	ensure(tree.Insert(cellOf(t, 44, 1, 1, 1), "deep"))

	path := writeTreeToFile(t, tree, rawStringEncoder)
	dt, err := OpenDiskTree(path)
	if err != nil {
		t.Fatalf("OpenDiskTree: %v", err)
	}
	defer dt.Close()

	queries := []Cell{
		cellOf(t, 9, 2, 3),          // exact leaf
		cellOf(t, 9, 2, 3, 4),       // descendant of a leaf
		cellOf(t, 9, 4, 6, 6, 6, 6), // deep descendant
		cellOf(t, 9, 2),             // parent position, not covered
		cellOf(t, 9, 5),             // absent sibling
		cellOf(t, 44, 1, 1, 1),      // other base, exact
		cellOf(t, 44, 1),            // other base, not covered
		cellOf(t, 70),               // empty base
	}
	for _, q := range queries {
		memCell, memVal, memOK := tree.Get(q)
		dtCell, dtVal, dtOK, err := dt.Get(q)
		if err != nil {
			t.Fatalf("disk Get(%v): %v", q, err)
		}
		if dtOK != memOK {
			t.Fatalf("Get(%v): disk ok=%v, memory ok=%v", q, dtOK, memOK)
		}
		if !memOK {
			continue
		}
		if dtCell != memCell || string(dtVal) != *memVal {
			t.Fatalf("Get(%v): disk (%v, %q) != memory (%v, %q)", q, dtCell, dtVal, memCell, *memVal)
		}
	}
}

func TestDiskTree_IterMatchesMemory(t *testing.T) {
	tree := NewWithCompactor[string](EqCompactor[string]{})
	for d := 0; d < 7; d++ {
		ensure(tree.Insert(cellOf(t, 9, 2, d), "same")) // coalesces
		ensure(tree.Insert(cellOf(t, 12, 3, d), string(rune('a'+d))))
	}
	ensure(tree.Insert(cellOf(t, 121), "last"))

	path := writeTreeToFile(t, tree, rawStringEncoder)
	dt, err := OpenDiskTree(path)
	if err != nil {
		t.Fatalf("OpenDiskTree: %v", err)
	}
	defer dt.Close()

	memCells, memVals := collect(tree.Iter())
	it := dt.Iter()
	var i int
	for it.Next() {
		if i >= len(memCells) {
			t.Fatalf("disk iter yielded more than %d pairs", len(memCells))
		}
		if it.Cell() != memCells[i] || string(it.ValueBytes()) != memVals[i] {
			t.Fatalf("pair %d: disk (%v, %q) != memory (%v, %q)",
				i, it.Cell(), it.ValueBytes(), memCells[i], memVals[i])
		}
		i++
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iter err: %v", err)
	}
	if i != len(memCells) {
		t.Fatalf("disk iter yielded %d pairs, wanted %d", i, len(memCells))
	}
}

func TestDiskTree_EmptyTree(t *testing.T) {
	tree := New[string]()
	path := writeTreeToFile(t, tree, rawStringEncoder)
	dt, err := OpenDiskTree(path)
	if err != nil {
		t.Fatalf("OpenDiskTree: %v", err)
	}
	defer dt.Close()

	if _, _, ok, err := dt.Get(mustCell(t, 0x8a1fb46622dffff)); ok || err != nil {
		t.Fatalf("Get on empty disk tree = (ok=%v, err=%v)", ok, err)
	}
	it := dt.Iter()
	if it.Next() {
		t.Fatalf("iter on empty disk tree yielded a pair")
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iter err: %v", err)
	}
}

func TestDiskTree_ZeroLengthValues(t *testing.T) {
	s := NewSet()
	ensure(s.Add(cellOf(t, 9, 2)))
	ensure(s.Add(cellOf(t, 9, 4, 1)))

	path := filepath.Join(t.TempDir(), "set.hxt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.WriteTo(f); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	ensure(f.Close())

	dt, err := OpenDiskTree(path)
	if err != nil {
		t.Fatalf("OpenDiskTree: %v", err)
	}
	defer dt.Close()

	ok, err := dt.Contains(cellOf(t, 9, 2, 6, 6))
	if err != nil || !ok {
		t.Fatalf("Contains(descendant) = (%v, %v), wanted (true, nil)", ok, err)
	}
	ok, err = dt.Contains(cellOf(t, 9, 3))
	if err != nil || ok {
		t.Fatalf("Contains(absent) = (%v, %v), wanted (false, nil)", ok, err)
	}

	_, v, found, err := DiskTreeGet(dt, cellOf(t, 9, 4, 1), UnitDecoder())
	if err != nil || !found {
		t.Fatalf("DiskTreeGet = (%v, %v, %v)", v, found, err)
	}
}

func TestDiskTree_CorruptLeafTag(t *testing.T) {
	tree := New[string]()
	ensure(tree.Insert(cellOf(t, 9), "a"))
	path := writeTreeToFile(t, tree, rawStringEncoder)
	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	// the single leaf node sits at the start of the node region
	buf[diskNodeRegionOff] = 0x40
	dt, err := NewDiskTree(buf)
	if err != nil {
		t.Fatalf("NewDiskTree: %v", err)
	}
	_, _, _, err = dt.Get(cellOf(t, 9))
	if _, ok := err.(*CorruptError); !ok {
		t.Fatalf("Get err = %v, wanted CorruptError", err)
	}

	it := dt.Iter()
	if it.Next() {
		t.Fatalf("iter yielded a pair from a corrupt node")
	}
	if _, ok := it.Err().(*CorruptError); !ok {
		t.Fatalf("iter err = %v, wanted CorruptError", it.Err())
	}
}

func TestDiskTree_CorruptRootOffset(t *testing.T) {
	tree := New[string]()
	ensure(tree.Insert(cellOf(t, 9), "a"))
	path := writeTreeToFile(t, tree, rawStringEncoder)
	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	putUint40(buf[diskRootTableOff+9*dpSize:], uint64(len(buf)+100))
	dt, err := NewDiskTree(buf)
	if err != nil {
		t.Fatalf("NewDiskTree: %v", err)
	}
	_, _, _, err = dt.Get(cellOf(t, 9))
	if _, ok := err.(*CorruptError); !ok {
		t.Fatalf("Get err = %v, wanted CorruptError", err)
	}
}

func TestDiskTree_MsgpackRoundTrip(t *testing.T) {
	type Sample struct {
		Name  string `msgpack:"n"`
		Score int    `msgpack:"s"`
	}

	tree := New[Sample]()
	ensure(tree.Insert(cellOf(t, 9, 2), Sample{Name: "alpha", Score: 3}))
	ensure(tree.Insert(cellOf(t, 9, 4, 1), Sample{Name: "beta", Score: -1}))

	path := writeTreeToFile(t, tree, MsgpackEncoder[Sample]())
	dt, err := OpenDiskTree(path)
	if err != nil {
		t.Fatalf("OpenDiskTree: %v", err)
	}
	defer dt.Close()

	dec := MsgpackDecoder[Sample]()
	matched, got, found, err := DiskTreeGet(dt, cellOf(t, 9, 2, 5), dec)
	if err != nil || !found {
		t.Fatalf("DiskTreeGet = (found=%v, err=%v)", found, err)
	}
	if matched != cellOf(t, 9, 2) || got != (Sample{Name: "alpha", Score: 3}) {
		t.Fatalf("DiskTreeGet = (%v, %+v)", matched, got)
	}

	// a decoder failure surfaces as corruption
	badDec := func(data []byte) (Sample, error) {
		return Sample{}, ErrValueTooLarge
	}
	_, _, _, err = DiskTreeGet(dt, cellOf(t, 9, 2), badDec)
	if _, ok := err.(*CorruptError); !ok {
		t.Fatalf("decoder failure err = %v, wanted CorruptError", err)
	}
}
