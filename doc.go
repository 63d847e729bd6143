/*
Package celltree implements hierarchical containers keyed by H3 cells:
an in-memory map (Tree), a set variant (Set), a memory-mapped read-only
on-disk variant (DiskTree), and a durable key-value store (CellStore).

H3 divides the globe into 122 base cells, each subdivided 7 ways per
resolution step down to resolution 15. A Tree mirrors this hierarchy
exactly: inserting a cell covers the cell and all of its descendants,
and a lookup for a fine cell succeeds if any ancestor was inserted.

We implement:

1. Tree, a 122-rooted 7-ary radix tree over cell digits, with
hierarchical insertion, ancestor-covering lookup and user-driven
compaction (coalescing a complete septet of sibling leaves into their
parent).

2. Set, a Tree with unit values, for pure region membership tests.

3. DiskTree, a single-file serialization of a Tree that answers lookups
and ordered iteration directly against a memory mapping, following file
offsets instead of materializing nodes.

4. CellStore, a Bolt-backed mutable store of (cell, value) records with
per-record checksums, used to persist trees between process runs.

# Technical Details

**Cells.**
Cells are plain uint64 H3 indexes. The codec only performs bit surgery;
it does not depend on an H3 library. CellFromRaw rejects indexes that
are not mode-1 cell indexes.

**Compaction.**
A Compactor decides whether seven sibling values may be fused into one
parent value. Compaction runs bottom-up along every insertion path, and
may also be applied to a whole tree in one postorder sweep.

## Disk format

Little-endian throughout.

	offset 0:   magic "HXTR" (4 bytes)
	offset 4:   version (1 byte)
	offset 5:   122 × 5-byte root offsets, absolute; 0 means absent
	offset 615: node region, postorder

Node encodings:

	Leaf:   0x00, uvarint value length, value bytes
	Parent: tag 0b1xxxxxxx (low 7 bits = present-child bitmap),
	        then one 5-byte offset per present child in digit order,
	        each counted back from the end of the parent header to the
	        child's first byte

Because nodes are emitted postorder, every child offset refers to
earlier bytes and the node region needs no fix-up pass. Offsets are 40
bits wide, capping a file at 1 TiB.
*/
package celltree
