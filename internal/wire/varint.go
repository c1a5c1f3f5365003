package wire

const (
	maxVarint32Bytes = 5
	maxVarint64Bytes = 10
)

// WriteUnsignedInteger writes v as a Base-128 VarInt: low-order byte first, continuation bit
// (0x80) set on every byte except the last.
func (b *Buffer) WriteUnsignedInteger(v uint64) *Buffer {
	for {
		cur := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b.WriteByte(cur | 0x80)
			continue
		}
		b.WriteByte(cur)
		return b
	}
}

// ReadUnsignedInteger reads a Base-128 VarInt written by WriteUnsignedInteger.
//
// The shift at iteration i is 7*i, applied to the 7 payload bits read on that iteration —
// this is the corrected form of the upstream reader, which mistakenly shifted by the
// iteration counter it used for an unrelated purpose and silently corrupted any value whose
// encoding needed a continuation byte.
func (b *Buffer) ReadUnsignedInteger() (uint64, error) {
	var value uint64
	for i := 0; i < maxVarint64Bytes; i++ {
		cur, err := b.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint64(cur&0x7F) << (7 * i)
		if cur&0x80 != 0x80 {
			return value, nil
		}
	}
	return 0, ErrVarintOverflow
}

// WriteUnsignedLong writes v as a Base-128 VarInt. Identical encoding to
// WriteUnsignedInteger; split out to mirror the wire format's distinct integer/long typed
// primitives even though the byte-level encoding is the same.
func (b *Buffer) WriteUnsignedLong(v uint64) *Buffer {
	return b.WriteUnsignedInteger(v)
}

// ReadUnsignedLong reads a Base-128 VarInt written by WriteUnsignedLong.
func (b *Buffer) ReadUnsignedLong() (uint64, error) {
	return b.ReadUnsignedInteger()
}

// zigzag32 maps a signed 32-bit value onto the unsigned range so small-magnitude negative
// values still encode in few VarInt bytes.
func zigzag32(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

func unzigzag32(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}

func zigzag64(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func unzigzag64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// WriteInteger writes a signed 32-bit value as a zig-zag-mapped VarInt.
func (b *Buffer) WriteInteger(v int32) *Buffer {
	return b.WriteUnsignedInteger(uint64(zigzag32(v)))
}

// ReadInteger reads a signed 32-bit value written by WriteInteger.
func (b *Buffer) ReadInteger() (int32, error) {
	v, err := b.ReadUnsignedInteger()
	if err != nil {
		return 0, err
	}
	return unzigzag32(uint32(v)), nil
}

// WriteLong writes a signed 64-bit value as a zig-zag-mapped VarInt.
func (b *Buffer) WriteLong(v int64) *Buffer {
	return b.WriteUnsignedLong(zigzag64(v))
}

// ReadLong reads a signed 64-bit value written by WriteLong.
func (b *Buffer) ReadLong() (int64, error) {
	v, err := b.ReadUnsignedLong()
	if err != nil {
		return 0, err
	}
	return unzigzag64(v), nil
}

// WriteUUID writes a 128-bit identifier as two zig-zag VarInt longs, most-significant half
// first.
func (b *Buffer) WriteUUID(msb, lsb int64) *Buffer {
	b.WriteLong(msb)
	b.WriteLong(lsb)
	return b
}

// ReadUUID reads a 128-bit identifier written by WriteUUID.
func (b *Buffer) ReadUUID() (msb, lsb int64, err error) {
	msb, err = b.ReadLong()
	if err != nil {
		return 0, 0, err
	}
	lsb, err = b.ReadLong()
	if err != nil {
		return 0, 0, err
	}
	return msb, lsb, nil
}
