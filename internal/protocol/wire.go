package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortPayload marks a fixed-width payload that ended before all fields were read.
var ErrShortPayload = errors.New("protocol: payload too short")

// maxStringLen is the longest string a uint16 length prefix can describe.
const maxStringLen = math.MaxUint16

// writer packs fixed-width big-endian fields.
type writer struct {
	buf []byte
}

func newWriter(size int) *writer { return &writer{buf: make([]byte, 0, size)} }

func (w *writer) u8(v uint8)    { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16)  { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32)  { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64)  { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }
func (w *writer) i32(v int32)   { w.u32(uint32(v)) }
func (w *writer) i64(v int64)   { w.u64(uint64(v)) }
func (w *writer) f64(v float64) { w.u64(math.Float64bits(v)) }

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

// str writes a uint16 length followed by UTF-8 bytes, truncating at maxStringLen.
func (w *writer) str(s string) {
	if len(s) > maxStringLen {
		s = s[:maxStringLen]
	}
	w.u16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) bytes() []byte { return w.buf }

// reader unpacks fixed-width big-endian fields. The first short read is
// remembered and every later read returns zero values.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(b []byte) *reader { return &reader{buf: b} }

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf)-r.off < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortPayload, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (r *reader) i32() int32    { return int32(r.u32()) }
func (r *reader) i64() int64    { return int64(r.u64()) }
func (r *reader) f64() float64  { return math.Float64frombits(r.u64()) }
func (r *reader) boolean() bool { return r.u8() != 0 }

func (r *reader) str() string {
	n := int(r.u16())
	if b := r.take(n); b != nil {
		return string(b)
	}
	return ""
}

// done returns the sticky error, if any.
func (r *reader) done() error { return r.err }
