// Package wire provides the length-delimited buffer and Base-128 VarInt codec that every
// other packet-level package in this module builds on.
package wire

import (
	"crypto/x509"
	"errors"
	"fmt"
)

// ErrShortRead is returned when a read method requires more bytes than are currently
// buffered.
var ErrShortRead = errors.New("wire: short read")

// ErrVarintOverflow is returned when a VarInt runs past 10 bytes. Integer and long reads
// share this 64-bit limit; a 32-bit integer read does not stop at 5 bytes.
var ErrVarintOverflow = errors.New("wire: varint exceeds maximum length")

// Buffer is a mutable byte container with independent reader and writer indices.
//
// A Buffer is not safe for concurrent use; callers must not share one across goroutines
// without external synchronization, mirroring the upstream protocol's "single thread at a
// time" buffer contract.
type Buffer struct {
	data []byte
	r    int
	w    int

	markR int
	markW int

	max int // 0 means unbounded
}

// New allocates an empty buffer without a maximum capacity.
func New() *Buffer {
	return &Buffer{}
}

// NewWithCapacity allocates a buffer with an initial backing capacity.
func NewWithCapacity(initialCapacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, initialCapacity)}
}

// NewBounded allocates a buffer that records maxCapacity as its maximum. The write methods
// discard the error grow reports past that maximum, so writes still extend the buffer
// beyond it.
func NewBounded(initialCapacity, maxCapacity int) *Buffer {
	return &Buffer{data: make([]byte, 0, initialCapacity), max: maxCapacity}
}

// Wrap constructs a buffer over an existing byte slice, positioned for reading: the writer
// index starts at len(b) so all of b is immediately readable.
func Wrap(b []byte) *Buffer {
	return &Buffer{data: b, w: len(b)}
}

// Bytes returns every written byte, already read or not, i.e. the span between indices 0
// and the writer index. The returned slice aliases the buffer's backing array.
func (b *Buffer) Bytes() []byte { return b.data[:b.w] }

// ReadableBytes returns the number of bytes left to read.
func (b *Buffer) ReadableBytes() int { return b.w - b.r }

// ReaderIndex returns the current reader index.
func (b *Buffer) ReaderIndex() int { return b.r }

// WriterIndex returns the current writer index.
func (b *Buffer) WriterIndex() int { return b.w }

// SetReaderIndex moves the reader index to an absolute offset.
func (b *Buffer) SetReaderIndex(i int) *Buffer {
	b.r = i
	return b
}

// SetWriterIndex moves the writer index to an absolute offset.
func (b *Buffer) SetWriterIndex(i int) *Buffer {
	b.w = i
	return b
}

// MarkReaderIndex stores the current reader index for a later ResetReaderIndex. Only a
// single mark is kept at a time.
func (b *Buffer) MarkReaderIndex() *Buffer {
	b.markR = b.r
	return b
}

// ResetReaderIndex returns the reader index to the last mark.
func (b *Buffer) ResetReaderIndex() *Buffer {
	b.r = b.markR
	return b
}

// MarkWriterIndex stores the current writer index for a later ResetWriterIndex.
func (b *Buffer) MarkWriterIndex() *Buffer {
	b.markW = b.w
	return b
}

// ResetWriterIndex returns the writer index to the last mark.
func (b *Buffer) ResetWriterIndex() *Buffer {
	b.w = b.markW
	return b
}

func (b *Buffer) grow(extra int) error {
	need := b.w + extra
	if b.max > 0 && need > b.max {
		return fmt.Errorf("wire: buffer would exceed maximum capacity %d", b.max)
	}
	if need <= len(b.data) {
		return nil
	}
	grown := make([]byte, need, need*2+16)
	copy(grown, b.data)
	b.data = grown
	return nil
}

// requireReadable fails fast with ErrShortRead instead of panicking on slice bounds, the way
// a pooled production buffer must: a malformed frame drops cleanly rather than crashing the
// receive loop.
func (b *Buffer) requireReadable(n int) error {
	if b.ReadableBytes() < n {
		return ErrShortRead
	}
	return nil
}

// WriteByte writes a single byte value.
func (b *Buffer) WriteByte(v byte) *Buffer {
	_ = b.grow(1)
	if b.w < len(b.data) {
		b.data[b.w] = v
	} else {
		b.data = append(b.data, v)
	}
	b.w++
	return b
}

// ReadByte reads a single byte value.
func (b *Buffer) ReadByte() (byte, error) {
	if err := b.requireReadable(1); err != nil {
		return 0, err
	}
	v := b.data[b.r]
	b.r++
	return v, nil
}

// WriteShort writes a fixed big-endian 16-bit value.
func (b *Buffer) WriteShort(v int16) *Buffer {
	_ = b.grow(2)
	uv := uint16(v)
	b.writeRaw([]byte{byte(uv >> 8), byte(uv)})
	return b
}

// ReadShort reads a fixed big-endian 16-bit value.
func (b *Buffer) ReadShort() (int16, error) {
	if err := b.requireReadable(2); err != nil {
		return 0, err
	}
	v := uint16(b.data[b.r])<<8 | uint16(b.data[b.r+1])
	b.r += 2
	return int16(v), nil
}

// WriteChar writes a fixed big-endian 16-bit character.
func (b *Buffer) WriteChar(v uint16) *Buffer {
	return b.WriteShort(int16(v))
}

// ReadChar reads a fixed big-endian 16-bit character.
func (b *Buffer) ReadChar() (uint16, error) {
	v, err := b.ReadShort()
	return uint16(v), err
}

func (b *Buffer) writeRaw(p []byte) {
	_ = b.grow(len(p))
	if b.w+len(p) <= len(b.data) {
		copy(b.data[b.w:], p)
	} else {
		b.data = append(b.data[:b.w], p...)
	}
	b.w += len(p)
}

// WriteByteArray writes a VarInt length prefix followed by the raw bytes.
func (b *Buffer) WriteByteArray(p []byte) *Buffer {
	b.WriteUnsignedInteger(uint64(len(p)))
	b.writeRaw(p)
	return b
}

// ReadByteArray reads a VarInt length prefix and the raw bytes it describes.
func (b *Buffer) ReadByteArray() ([]byte, error) {
	n, err := b.ReadUnsignedInteger()
	if err != nil {
		return nil, err
	}
	return b.ReadByteArrayLen(int(n))
}

// ReadByteArrayLen reads exactly length raw bytes without a length prefix.
func (b *Buffer) ReadByteArrayLen(length int) ([]byte, error) {
	if err := b.requireReadable(length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, b.data[b.r:b.r+length])
	b.r += length
	return out, nil
}

// WriteString writes a UTF-8 encoded string as a byte array.
func (b *Buffer) WriteString(s string) *Buffer {
	return b.WriteByteArray([]byte(s))
}

// ReadString reads a UTF-8 encoded string written by WriteString.
func (b *Buffer) ReadString() (string, error) {
	p, err := b.ReadByteArray()
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// WriteBuffer writes another buffer's unread contents as a VarInt length-prefixed blob —
// the framing boundary primitive used by the frame codec.
func (b *Buffer) WriteBuffer(other *Buffer) *Buffer {
	b.WriteUnsignedInteger(uint64(other.ReadableBytes()))
	b.writeRaw(other.data[other.r:other.w])
	return b
}

// ReadBuffer reads a VarInt length-prefixed blob and returns it wrapped as a new Buffer
// positioned for reading.
func (b *Buffer) ReadBuffer() (*Buffer, error) {
	n, err := b.ReadUnsignedInteger()
	if err != nil {
		return nil, err
	}
	p, err := b.ReadByteArrayLen(int(n))
	if err != nil {
		return nil, err
	}
	return Wrap(p), nil
}

// WritePublicKey writes an RSA public key as a VarInt length-prefixed X.509
// SubjectPublicKeyInfo byte sequence.
func (b *Buffer) WritePublicKey(der []byte) *Buffer {
	return b.WriteByteArray(der)
}

// ReadPublicKey reads an X.509 SubjectPublicKeyInfo byte sequence previously written by
// WritePublicKey and parses it.
func (b *Buffer) ReadPublicKey() (any, error) {
	der, err := b.ReadByteArray()
	if err != nil {
		return nil, err
	}
	return x509.ParsePKIXPublicKey(der)
}

// IsIntegerAvailable reports whether a complete 32-bit VarInt (at most 5 bytes) is already
// buffered without consuming it. This is the framing oracle the frame codec polls.
func (b *Buffer) IsIntegerAvailable() bool { return b.isVarintAvailable(maxVarint32Bytes) }

// IsLongAvailable reports whether a complete 64-bit VarInt (at most 10 bytes) is already
// buffered without consuming it.
func (b *Buffer) IsLongAvailable() bool { return b.isVarintAvailable(maxVarint64Bytes) }

func (b *Buffer) isVarintAvailable(maxLen int) bool {
	b.MarkReaderIndex()
	defer b.ResetReaderIndex()

	for i := 0; i < maxLen; i++ {
		cur, err := b.ReadByte()
		if err != nil {
			return false
		}
		if cur&0x80 != 0x80 {
			return true
		}
	}
	return true
}
