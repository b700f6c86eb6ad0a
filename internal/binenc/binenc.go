// Package binenc implements the length-checked little-endian payload buffer
// shared by Tessera's persisted descriptors (schema, tile index), and the
// framed header that protects each payload with a CRC32C checksum.
//
// Framed layout:
//
//	Magic    (4 bytes)
//	Version  (4 bytes)
//	Checksum (4 bytes) - CRC32C of payload
//	Length   (4 bytes) - payload length in bytes
//	Payload  (Length bytes)
//
// Strings and byte blocks are length-prefixed (2-byte and 4-byte
// respectively).
package binenc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/tessera/internal/conv"
	"github.com/hupe1980/tessera/internal/hash"
)

// HeaderSize is the size of the framed header in bytes.
const HeaderSize = 16

var (
	// ErrInvalidMagic is returned when the header magic does not match.
	ErrInvalidMagic = errors.New("invalid magic")

	// ErrUnsupportedVersion is returned when the format version is unknown.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrChecksumMismatch is returned when the payload checksum does not match.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// WriteFrame writes header and payload to w.
func WriteFrame(w io.Writer, magic, version uint32, payload []byte) error {
	length, err := conv.IntToUint32(len(payload))
	if err != nil {
		return fmt.Errorf("payload too large: %w", err)
	}
	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], magic)
	binary.LittleEndian.PutUint32(header[4:8], version)
	binary.LittleEndian.PutUint32(header[8:12], hash.CRC32C(payload))
	binary.LittleEndian.PutUint32(header[12:16], length)

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// ReadFrame reads a framed payload from r and verifies magic, version and
// checksum.
func ReadFrame(r io.Reader, magic, version uint32) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	if m := binary.LittleEndian.Uint32(header[0:4]); m != magic {
		return nil, fmt.Errorf("%w: %x", ErrInvalidMagic, m)
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	checksum := binary.LittleEndian.Uint32(header[8:12])
	length := binary.LittleEndian.Uint32(header[12:16])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	if !hash.Verify(payload, checksum) {
		return nil, ErrChecksumMismatch
	}
	return payload, nil
}

// Buffer accumulates or consumes a payload. The first error is sticky:
// subsequent calls are no-ops and Err reports it.
type Buffer struct {
	buf []byte
	pos int
	err error
}

// NewBuffer returns a Buffer appending to (or reading from) b.
func NewBuffer(b []byte) *Buffer {
	return &Buffer{buf: b}
}

// Bytes returns the accumulated payload.
func (p *Buffer) Bytes() []byte { return p.buf }

// Err returns the first error encountered.
func (p *Buffer) Err() error { return p.err }

// Remaining returns the number of unread bytes.
func (p *Buffer) Remaining() int { return len(p.buf) - p.pos }

func (p *Buffer) WriteUint8(v uint8) {
	if p.err != nil {
		return
	}
	p.buf = append(p.buf, v)
}

func (p *Buffer) WriteUint32(v uint32) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *Buffer) WriteUint64(v uint64) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
}

func (p *Buffer) WriteInt64(v int64) { p.WriteUint64(uint64(v)) }

// WriteCount writes a length or element count as uint32.
func (p *Buffer) WriteCount(n int) {
	if p.err != nil {
		return
	}
	v, err := conv.IntToUint32(n)
	if err != nil {
		p.err = err
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *Buffer) WriteString(s string) {
	if p.err != nil {
		return
	}
	if len(s) > math.MaxUint16 {
		p.err = fmt.Errorf("string too long: %d", len(s))
		return
	}
	p.buf = binary.LittleEndian.AppendUint16(p.buf, uint16(len(s)))
	p.buf = append(p.buf, s...)
}

func (p *Buffer) WriteBytes(b []byte) {
	if p.err != nil {
		return
	}
	p.WriteCount(len(b))
	if p.err != nil {
		return
	}
	p.buf = append(p.buf, b...)
}

func (p *Buffer) need(n int) bool {
	if p.err != nil {
		return false
	}
	if n < 0 || p.pos+n > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return false
	}
	return true
}

func (p *Buffer) ReadUint8() uint8 {
	if !p.need(1) {
		return 0
	}
	v := p.buf[p.pos]
	p.pos++
	return v
}

func (p *Buffer) ReadUint32() uint32 {
	if !p.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

func (p *Buffer) ReadUint64() uint64 {
	if !p.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v
}

func (p *Buffer) ReadInt64() int64 { return int64(p.ReadUint64()) }

func (p *Buffer) ReadString() string {
	if !p.need(2) {
		return ""
	}
	l := int(binary.LittleEndian.Uint16(p.buf[p.pos:]))
	p.pos += 2
	if !p.need(l) {
		return ""
	}
	s := string(p.buf[p.pos : p.pos+l])
	p.pos += l
	return s
}

// ReadBytes returns a copy of the next length-prefixed byte block.
func (p *Buffer) ReadBytes() []byte {
	if !p.need(4) {
		return nil
	}
	l := int(binary.LittleEndian.Uint32(p.buf[p.pos:]))
	p.pos += 4
	if !p.need(l) {
		return nil
	}
	out := make([]byte, l)
	copy(out, p.buf[p.pos:p.pos+l])
	p.pos += l
	return out
}

// ReadCount reads a uint32 element count and rejects counts that could not
// possibly fit in the remaining payload given a minimum element size.
func (p *Buffer) ReadCount(minElemSize int) int {
	n := p.ReadUint32()
	if p.err != nil {
		return 0
	}
	if minElemSize > 0 && int64(n)*int64(minElemSize) > int64(p.Remaining()) {
		p.err = fmt.Errorf("element count %d exceeds payload: %w", n, io.ErrUnexpectedEOF)
		return 0
	}
	return int(n)
}
