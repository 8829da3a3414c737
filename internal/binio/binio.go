// Package binio provides the small little-endian binary encoding
// helpers the fuzzy index, TF-IDF model, and artist bundle
// serialization formats share: an explicit, auditable binary layout
// (length-prefixed sections, u32/u64 counts, UTF-8 strings) in place
// of a language-specific object-pickling format.
package binio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrTruncated is returned when a reader runs out of bytes mid-value.
var ErrTruncated = errors.New("binio: truncated input")

// Writer accumulates a little-endian encoded byte stream.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteI32(v int32) { w.WriteU32(uint32(v)) }

func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteF64(v float64) {
	w.WriteU64(math.Float64bits(v))
}

func (w *Writer) WriteBytes(b []byte) {
	w.WriteU32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

// WriteSection writes b as a u32-length-prefixed section, matching the
// fuzzy-index blob and bundle layouts.
func (w *Writer) WriteSection(b []byte) {
	w.WriteBytes(b)
}

// Reader consumes a little-endian encoded byte stream produced by Writer.
type Reader struct {
	b   []byte
	pos int
}

func NewReader(b []byte) *Reader { return &Reader{b: b} }

func (r *Reader) Remaining() int { return len(r.b) - r.pos }

func (r *Reader) ReadU32() (uint32, error) {
	if r.pos+4 > len(r.b) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint32(r.b[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadU64() (uint64, error) {
	if r.pos+8 > len(r.b) {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint64(r.b[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.b) {
		return nil, ErrTruncated
	}
	out := r.b[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return out, nil
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadSection reads one length-prefixed section, mirroring WriteSection.
func (r *Reader) ReadSection() ([]byte, error) {
	return r.ReadBytes()
}

// ReadFull reads exactly n raw bytes from rd, with no length prefix.
// The package's own serialization paths read sections through
// Reader.ReadSection instead.
func ReadFull(rd io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rd, buf); err != nil {
		return nil, fmt.Errorf("binio: read full: %w", err)
	}
	return buf, nil
}
