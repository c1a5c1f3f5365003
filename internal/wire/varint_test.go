package wire

import "testing"

func TestVarintBoundaryEncodings(t *testing.T) {
	cases := []struct {
		value uint64
		bytes []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{16383, []byte{0xFF, 0x7F}},
		{0xFFFFFFFF, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
	}

	for _, c := range cases {
		buf := New()
		buf.WriteUnsignedInteger(c.value)
		got := buf.Bytes()
		if string(got) != string(c.bytes) {
			t.Errorf("WriteUnsignedInteger(%d) = %x, want %x", c.value, got, c.bytes)
		}

		decoded, err := buf.ReadUnsignedInteger()
		if err != nil {
			t.Fatalf("ReadUnsignedInteger(%d): %v", c.value, err)
		}
		if decoded != c.value {
			t.Errorf("round trip %d got %d", c.value, decoded)
		}
	}
}

func TestVarintRoundTrip64(t *testing.T) {
	values := []uint64{0, 1, 2, 1 << 20, 1<<32 - 1, 1<<63 - 1, ^uint64(0)}
	for _, v := range values {
		buf := New()
		buf.WriteUnsignedLong(v)
		got, err := buf.ReadUnsignedLong()
		if err != nil {
			t.Fatalf("ReadUnsignedLong(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d got %d", v, got)
		}
	}
}

func TestVarintOverflow(t *testing.T) {
	buf := New()
	for i := 0; i < 11; i++ {
		buf.WriteByte(0x80)
	}
	buf.WriteByte(0x00)

	if _, err := buf.ReadUnsignedLong(); err != ErrVarintOverflow {
		t.Fatalf("expected ErrVarintOverflow, got %v", err)
	}
}

func TestZigZagIntegerRoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 2, -2, 2147483647, -2147483648}
	for _, v := range values {
		buf := New()
		buf.WriteInteger(v)
		got, err := buf.ReadInteger()
		if err != nil {
			t.Fatalf("ReadInteger(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d got %d", v, got)
		}
	}
}

func TestZigZagLongRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 1 << 40, -(1 << 40), 9223372036854775807, -9223372036854775808}
	for _, v := range values {
		buf := New()
		buf.WriteLong(v)
		got, err := buf.ReadLong()
		if err != nil {
			t.Fatalf("ReadLong(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d got %d", v, got)
		}
	}
}

func TestUUIDRoundTrip(t *testing.T) {
	buf := New()
	buf.WriteUUID(1234567890, -987654321)
	msb, lsb, err := buf.ReadUUID()
	if err != nil {
		t.Fatalf("ReadUUID: %v", err)
	}
	if msb != 1234567890 || lsb != -987654321 {
		t.Errorf("ReadUUID = (%d, %d), want (1234567890, -987654321)", msb, lsb)
	}
}

// TestCorrectedShiftSurvivesLargeValues pins the fix for the documented shift-by-iteration
// defect: a value whose encoding needs more than a handful of continuation bytes must still
// round trip exactly.
func TestCorrectedShiftSurvivesLargeValues(t *testing.T) {
	buf := New()
	const v = uint64(1) << 62
	buf.WriteUnsignedLong(v)
	got, err := buf.ReadUnsignedLong()
	if err != nil {
		t.Fatalf("ReadUnsignedLong: %v", err)
	}
	if got != v {
		t.Fatalf("got %d, want %d", got, v)
	}
}
