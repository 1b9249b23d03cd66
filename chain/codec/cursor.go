// Package codec implements the fixed-field binary cursor and canonical
// JSON formats described in spec.md §6: a u64 field-count header followed
// by repeated {string key, typed value} pairs, primitive writers for
// every scalar type, length-prefixed vectors, and key-sorted maps for
// determinism. Unknown fields are rejected on decode unless explicitly
// whitelisted as a legacy alias by the caller.
//
// There is no comparable Go file in the example corpus to adapt — the
// teacher persists state as plain encoding/json blobs in leveldb — so this
// package is grounded directly on the binary-cursor shape described by
// original_source/governance/src/codec.rs and
// original_source/foundation_serialization/src/json_impl.rs, expressed
// with stdlib encoding/binary (no third-party binary-cursor library
// appears anywhere in the corpus).
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

// ErrUnknownField is returned by DecodeSchema when a field key has no registered
// reader and is not listed as a legacy alias.
var ErrUnknownField = errors.New("codec: unknown field")

// ErrInvalidFieldValue is returned when a field's encoded value does not
// match its expected wire type.
var ErrInvalidFieldValue = errors.New("codec: invalid field value")

// ErrLengthOverflow is returned when a length prefix implies more data than
// remains in the buffer.
var ErrLengthOverflow = errors.New("codec: length overflow")

// ErrMissingField names a required field absent from a document.
// DecodeSchema does not check for required fields and does not return it;
// a typed getter on an absent key returns ErrInvalidFieldValue.
var ErrMissingField = errors.New("codec: missing required field")

// Writer accumulates a field-counted binary document.
type Writer struct {
	fields []fieldBytes
}

type fieldBytes struct {
	key   string
	value []byte
}

// NewWriter creates an empty document writer.
func NewWriter() *Writer { return &Writer{} }

func (w *Writer) put(key string, value []byte) {
	w.fields = append(w.fields, fieldBytes{key: key, value: value})
}

// PutU8 writes a byte-valued field.
func (w *Writer) PutU8(key string, v uint8) { w.put(key, []byte{v}) }

// PutU16 writes a uint16 field, big-endian.
func (w *Writer) PutU16(key string, v uint16) {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	w.put(key, b)
}

// PutU32 writes a uint32 field, big-endian.
func (w *Writer) PutU32(key string, v uint32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	w.put(key, b)
}

// PutU64 writes a uint64 field, big-endian.
func (w *Writer) PutU64(key string, v uint64) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	w.put(key, b)
}

// PutI64 writes an int64 field, big-endian.
func (w *Writer) PutI64(key string, v int64) { w.PutU64(key, uint64(v)) }

// PutF64 writes a float64 field via its IEEE-754 bit pattern, big-endian.
func (w *Writer) PutF64(key string, v float64) {
	w.PutU64(key, float64bits(v))
}

// PutBool writes a boolean field.
func (w *Writer) PutBool(key string, v bool) {
	if v {
		w.put(key, []byte{1})
	} else {
		w.put(key, []byte{0})
	}
}

// PutBytes writes a length-prefixed byte string.
func (w *Writer) PutBytes(key string, v []byte) {
	b := make([]byte, 8+len(v))
	binary.BigEndian.PutUint64(b, uint64(len(v)))
	copy(b[8:], v)
	w.put(key, b)
}

// PutString writes a length-prefixed UTF-8 string.
func (w *Writer) PutString(key string, v string) {
	w.PutBytes(key, []byte(v))
}

// PutU64Vec writes a length-prefixed vector of u64 values. The vector's
// own count+elements encoding is wrapped through PutBytes so DecodeSchema
// can walk it with the same outer length prefix every variable-width
// field uses, rather than needing a third length convention.
func (w *Writer) PutU64Vec(key string, vs []uint64) {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, uint64(len(vs)))
	for _, v := range vs {
		_ = binary.Write(buf, binary.BigEndian, v)
	}
	w.PutBytes(key, buf.Bytes())
}

// PutStringVec writes a length-prefixed vector of strings, wrapped through
// PutBytes for the same reason as PutU64Vec.
func (w *Writer) PutStringVec(key string, vs []string) {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, uint64(len(vs)))
	for _, v := range vs {
		lb := make([]byte, 8)
		binary.BigEndian.PutUint64(lb, uint64(len(v)))
		buf.Write(lb)
		buf.WriteString(v)
	}
	w.PutBytes(key, buf.Bytes())
}

// PutSub embeds an already-serialized nested document.
func (w *Writer) PutSub(key string, doc []byte) {
	w.PutBytes(key, doc)
}

// Bytes serializes the document: u64 field_count, then for every field
// (sorted by key for determinism) a length-prefixed key string followed by
// its raw value bytes.
func (w *Writer) Bytes() []byte {
	sorted := make([]fieldBytes, len(w.fields))
	copy(sorted, w.fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].key < sorted[j].key })

	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, uint64(len(sorted)))
	for _, f := range sorted {
		klen := make([]byte, 8)
		binary.BigEndian.PutUint64(klen, uint64(len(f.key)))
		buf.Write(klen)
		buf.WriteString(f.key)
		buf.Write(f.value)
	}
	return buf.Bytes()
}

// Reader decodes a document produced by Writer into a key->raw-value map,
// then exposes typed accessors. Legacy-alias handling is the caller's
// responsibility: Keys() exposes exactly the raw key set so callers can
// apply alias rules (e.g. Account.PendingAmount from pending_consumer +
// pending_industrial) before rejecting unknown keys.
type Reader struct {
	order []string
	raw   map[string][]byte
}

// Decode parses a Writer-produced document. Because field values are not
// self-delimiting in this simple scheme (their length depends on type),
// Decode requires the caller to pull fields in a fixed known schema via
// DecodeSchema instead of scanning blind. Use DecodeSchema.
func Decode(_ []byte) (*Reader, error) {
	return nil, errors.New("codec: use DecodeSchema with a field schema")
}

// FieldType tags how many bytes (or how to find them) a field's value
// occupies, so DecodeSchema can walk the buffer without length ambiguity.
type FieldType uint8

const (
	TU8 FieldType = iota
	TU16
	TU32
	TU64
	TI64
	TF64
	TBool
	TBytes // length-prefixed
	TU64Vec
	TStringVec
)

// Schema maps expected field keys to their wire type, used to walk a
// Writer-produced buffer deterministically.
type Schema map[string]FieldType

func fixedWidth(t FieldType) (int, bool) {
	switch t {
	case TU8:
		return 1, true
	case TU16:
		return 2, true
	case TU32:
		return 4, true
	case TU64, TI64, TF64:
		return 8, true
	case TBool:
		return 1, true
	default:
		return 0, false
	}
}

// DecodeSchema decodes buf against schema, returning a Reader whose typed
// getters are valid for exactly the keys present in schema. Fields present
// in the buffer but absent from schema make it fail with ErrUnknownField
// unless listed in legacyAliases (keys there are read as 8-byte u64 values,
// stored, and not required).
func DecodeSchema(buf []byte, schema Schema, legacyAliases map[string]bool) (*Reader, error) {
	r := bytes.NewReader(buf)
	var count uint64
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("codec: read field_count: %w", err)
	}

	reader := &Reader{raw: make(map[string][]byte, count)}
	for i := uint64(0); i < count; i++ {
		var klen uint64
		if err := binary.Read(r, binary.BigEndian, &klen); err != nil {
			return nil, fmt.Errorf("codec: read key length: %w", err)
		}
		if int64(klen) > int64(r.Len()) {
			return nil, ErrLengthOverflow
		}
		kb := make([]byte, klen)
		if _, err := r.Read(kb); err != nil {
			return nil, fmt.Errorf("codec: read key: %w", err)
		}
		key := string(kb)

		t, known := schema[key]
		if !known {
			if legacyAliases[key] {
				t = TU64
			} else {
				return nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
			}
		}

		var value []byte
		if width, fixed := fixedWidth(t); fixed {
			if int64(width) > int64(r.Len()) {
				return nil, ErrLengthOverflow
			}
			value = make([]byte, width)
			if _, err := r.Read(value); err != nil {
				return nil, err
			}
		} else {
			var vlen uint64
			if err := binary.Read(r, binary.BigEndian, &vlen); err != nil {
				return nil, fmt.Errorf("codec: read value length for %q: %w", key, err)
			}
			if int64(vlen) > int64(r.Len()) {
				return nil, ErrLengthOverflow
			}
			value = make([]byte, 8+vlen)
			binary.BigEndian.PutUint64(value, vlen)
			if _, err := io.ReadFull(r, value[8:]); err != nil {
				return nil, err
			}
		}

		reader.order = append(reader.order, key)
		reader.raw[key] = value
	}
	return reader, nil
}

// Has reports whether key was present in the decoded document.
func (r *Reader) Has(key string) bool {
	_, ok := r.raw[key]
	return ok
}

// Keys returns every field key in encounter order.
func (r *Reader) Keys() []string { return r.order }

func (r *Reader) U8(key string) (uint8, error) {
	v, ok := r.raw[key]
	if !ok || len(v) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFieldValue, key)
	}
	return v[0], nil
}

func (r *Reader) U64(key string) (uint64, error) {
	v, ok := r.raw[key]
	if !ok || len(v) != 8 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFieldValue, key)
	}
	return binary.BigEndian.Uint64(v), nil
}

func (r *Reader) I64(key string) (int64, error) {
	u, err := r.U64(key)
	return int64(u), err
}

func (r *Reader) F64(key string) (float64, error) {
	u, err := r.U64(key)
	if err != nil {
		return 0, err
	}
	return float64frombits(u), nil
}

func (r *Reader) Bool(key string) (bool, error) {
	v, ok := r.raw[key]
	if !ok || len(v) != 1 {
		return false, fmt.Errorf("%w: %q", ErrInvalidFieldValue, key)
	}
	return v[0] != 0, nil
}

func (r *Reader) Bytes(key string) ([]byte, error) {
	v, ok := r.raw[key]
	if !ok || len(v) < 8 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFieldValue, key)
	}
	n := binary.BigEndian.Uint64(v[:8])
	if uint64(len(v)-8) != n {
		return nil, ErrLengthOverflow
	}
	return v[8:], nil
}

func (r *Reader) String(key string) (string, error) {
	b, err := r.Bytes(key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// U64Vec decodes a field written by PutU64Vec.
func (r *Reader) U64Vec(key string) ([]uint64, error) {
	b, err := r.Bytes(key)
	if err != nil {
		return nil, err
	}
	br := bytes.NewReader(b)
	var count uint64
	if err := binary.Read(br, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: %q count: %v", ErrInvalidFieldValue, key, err)
	}
	out := make([]uint64, 0, count)
	for i := uint64(0); i < count; i++ {
		var v uint64
		if err := binary.Read(br, binary.BigEndian, &v); err != nil {
			return nil, fmt.Errorf("%w: %q element %d: %v", ErrInvalidFieldValue, key, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// StringVec decodes a field written by PutStringVec.
func (r *Reader) StringVec(key string) ([]string, error) {
	b, err := r.Bytes(key)
	if err != nil {
		return nil, err
	}
	br := bytes.NewReader(b)
	var count uint64
	if err := binary.Read(br, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: %q count: %v", ErrInvalidFieldValue, key, err)
	}
	out := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		var slen uint64
		if err := binary.Read(br, binary.BigEndian, &slen); err != nil {
			return nil, fmt.Errorf("%w: %q element %d length: %v", ErrInvalidFieldValue, key, i, err)
		}
		if int64(slen) > int64(br.Len()) {
			return nil, ErrLengthOverflow
		}
		sb := make([]byte, slen)
		if _, err := br.Read(sb); err != nil {
			return nil, fmt.Errorf("%w: %q element %d: %v", ErrInvalidFieldValue, key, i, err)
		}
		out = append(out, string(sb))
	}
	return out, nil
}

func float64bits(f float64) uint64 {
	return math.Float64bits(f)
}

func float64frombits(u uint64) float64 {
	return math.Float64frombits(u)
}
