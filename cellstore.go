package celltree

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.etcd.io/bbolt"
)

// CellStore is a durable, mutable store of (cell, value bytes) records
// on top of Bolt. It complements DiskTree: the disk tree is an
// immutable snapshot optimized for lookups, the store is where records
// accumulate between snapshots.
//
// Records carry an xxhash64 checksum; a mismatch on read surfaces as
// CorruptError.
type CellStore struct {
	bdb    *bbolt.DB
	logger *slog.Logger
}

type StoreOptions struct {
	ReadOnly bool
	Timeout  time.Duration // file-lock wait; 0 blocks indefinitely
	Logger   *slog.Logger
}

var cellsBucket = []byte("cells")

const storeChecksumSize = 8

// OpenCellStore opens or creates a store at path.
func OpenCellStore(path string, opt StoreOptions) (*CellStore, error) {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bdb, err := bbolt.Open(path, 0o600, &bbolt.Options{
		ReadOnly: opt.ReadOnly,
		Timeout:  opt.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("cell store: %w", err)
	}
	if !opt.ReadOnly {
		err = bdb.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(cellsBucket)
			return err
		})
		if err != nil {
			bdb.Close()
			return nil, fmt.Errorf("cell store: %w", err)
		}
	}
	logger.Debug("cell store open", "path", path, "read_only", opt.ReadOnly)
	return &CellStore{bdb: bdb, logger: logger}, nil
}

func (s *CellStore) Close() error {
	return s.bdb.Close()
}

// Put records value bytes for cell, replacing any previous record.
func (s *CellStore) Put(cell Cell, value []byte) error {
	if err := cell.validate(); err != nil {
		return err
	}
	key := storeKey(cell)
	rec := make([]byte, storeChecksumSize+len(value))
	binary.LittleEndian.PutUint64(rec, xxhash.Sum64(value))
	copy(rec[storeChecksumSize:], value)
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(cellsBucket).Put(key[:], rec)
	})
}

// Get returns a copy of the value bytes recorded for exactly this
// cell. Unlike Tree.Get, the store is flat: no ancestor matching.
func (s *CellStore) Get(cell Cell) ([]byte, bool, error) {
	if err := cell.validate(); err != nil {
		return nil, false, err
	}
	key := storeKey(cell)
	var value []byte
	var found bool
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		rec := tx.Bucket(cellsBucket).Get(key[:])
		if rec == nil {
			return nil
		}
		v, err := verifyRecord(rec)
		if err != nil {
			return err
		}
		value = append([]byte(nil), v...)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// Delete removes the record for cell, if present.
func (s *CellStore) Delete(cell Cell) error {
	if err := cell.validate(); err != nil {
		return err
	}
	key := storeKey(cell)
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(cellsBucket).Delete(key[:])
	})
}

// Count returns the number of records.
func (s *CellStore) Count() (int, error) {
	var n int
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(cellsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// SaveTree snapshots every (cell, value) pair of tree into the store
// in a single transaction, replacing existing records for the same
// cells.
func SaveTree[V any](s *CellStore, tree *Tree[V], enc ValueEncoder[V]) error {
	var bb bytesBuilder
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		buck := tx.Bucket(cellsBucket)
		it := tree.Iter()
		for it.Next() {
			bb.Reset()
			if err := enc(&bb, it.Value()); err != nil {
				return fmt.Errorf("cell store: value encoder: %w", err)
			}
			key := storeKey(it.Cell())
			rec := make([]byte, storeChecksumSize+bb.Len())
			binary.LittleEndian.PutUint64(rec, xxhash.Sum64(bb.Buf))
			copy(rec[storeChecksumSize:], bb.Buf)
			if err := buck.Put(key[:], rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadTree rebuilds a tree from every record in the store. Records are
// visited in key order, a fixed total order, so coalescing behaves the
// same on every load.
func LoadTree[V any](s *CellStore, c Compactor[V], dec ValueDecoder[V]) (*Tree[V], error) {
	tree := NewWithCompactor[V](c)
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		cur := tx.Bucket(cellsBucket).Cursor()
		for k, rec := cur.First(); k != nil; k, rec = cur.Next() {
			if len(k) != 8 {
				return corruptErrf(0, nil, "store key has %d bytes, wanted 8", len(k))
			}
			cell, err := CellFromRaw(binary.BigEndian.Uint64(k))
			if err != nil {
				return corruptErrf(0, err, "store key is not a cell")
			}
			data, err := verifyRecord(rec)
			if err != nil {
				return err
			}
			value, err := dec(data)
			if err != nil {
				return corruptErrf(0, err, "value decoder failed for cell %v", cell)
			}
			if err := tree.Insert(cell, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// storeKey is the big-endian raw cell index: a fixed, portable key
// order for Bolt's cursor.
func storeKey(cell Cell) [8]byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], cell.Raw())
	return key
}

func verifyRecord(rec []byte) ([]byte, error) {
	if len(rec) < storeChecksumSize {
		return nil, corruptErrf(0, nil, "store record has %d bytes, wanted at least %d", len(rec), storeChecksumSize)
	}
	want := binary.LittleEndian.Uint64(rec)
	data := rec[storeChecksumSize:]
	if got := xxhash.Sum64(data); got != want {
		return nil, corruptErrf(0, nil, "store record checksum mismatch: %016x != %016x", got, want)
	}
	return data, nil
}
