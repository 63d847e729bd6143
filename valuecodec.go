package celltree

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// A ValueEncoder writes one value's serialized form to w. It must be
// deterministic and injective; values need not be fixed-width.
type ValueEncoder[V any] func(w io.Writer, v *V) error

// A ValueDecoder is the inverse of the matching ValueEncoder. data is
// only valid for the duration of the call.
type ValueDecoder[V any] func(data []byte) (V, error)

// MsgpackEncoder encodes values with msgpack, honoring `msgpack`
// struct tags.
func MsgpackEncoder[V any]() ValueEncoder[V] {
	return func(w io.Writer, v *V) error {
		return msgpack.NewEncoder(w).Encode(v)
	}
}

// MsgpackDecoder is the inverse of MsgpackEncoder.
func MsgpackDecoder[V any]() ValueDecoder[V] {
	return func(data []byte) (V, error) {
		var v V
		err := msgpack.Unmarshal(data, &v)
		return v, err
	}
}

// RawBytesEncoder writes byte-slice values as-is.
func RawBytesEncoder() ValueEncoder[[]byte] {
	return func(w io.Writer, v *[]byte) error {
		_, err := w.Write(*v)
		return err
	}
}

// RawBytesDecoder copies the raw value bytes.
func RawBytesDecoder() ValueDecoder[[]byte] {
	return func(data []byte) ([]byte, error) {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
}

// UnitEncoder writes nothing; used for sets.
func UnitEncoder() ValueEncoder[struct{}] {
	return func(w io.Writer, v *struct{}) error {
		return nil
	}
}

// UnitDecoder accepts only empty values.
func UnitDecoder() ValueDecoder[struct{}] {
	return func(data []byte) (struct{}, error) {
		var unit struct{}
		if len(data) != 0 {
			return unit, corruptErrf(0, nil, "unit value has %d bytes", len(data))
		}
		return unit, nil
	}
}
