package packet

import (
	"bytes"
	"testing"

	"lithiumnet/internal/wire"
)

func testRegistry() *Registry {
	b := NewBuilder()
	_, _ = b.Register(HandshakeIdentifier, func() Body { return &HandshakeBody{} })
	_, _ = b.Register(AnnouncementIdentifier, func() Body { return &AnnouncementBody{} })
	_, _ = b.Register(GossipIdentifier, func() Body { return &GossipBody{} })
	return b.Build()
}

func TestPacketCodecRoundTripHandshake(t *testing.T) {
	registry := testRegistry()
	original := New(HandshakeIdentifier, &HandshakeBody{
		ProtocolVersion: Version{Major: 1, Minor: 0},
		Fingerprint:     "deadbeef",
	})

	buf := Encode(original)
	decoded, err := Decode(registry, buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Identifier != HandshakeIdentifier {
		t.Errorf("identifier = %q", decoded.Identifier)
	}
	if decoded.ID != original.ID {
		t.Errorf("uuid mismatch: got %s, want %s", decoded.ID, original.ID)
	}
	body, ok := decoded.Body.(*HandshakeBody)
	if !ok {
		t.Fatalf("body type = %T", decoded.Body)
	}
	if body.Fingerprint != "deadbeef" || body.ProtocolVersion != (Version{Major: 1, Minor: 0}) {
		t.Errorf("body = %+v", body)
	}
}

func TestPacketCodecRoundTripGossipCarriesTTL(t *testing.T) {
	registry := testRegistry()
	original := New(GossipIdentifier, NewGossip(4, []byte("hello")))

	buf := Encode(original)
	decoded, err := Decode(registry, buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	g, ok := decoded.Body.(*GossipBody)
	if !ok {
		t.Fatalf("body type = %T", decoded.Body)
	}
	if g.TimeToLive() != 4 {
		t.Errorf("ttl = %d, want 4", g.TimeToLive())
	}
	if !bytes.Equal(g.Payload, []byte("hello")) {
		t.Errorf("payload = %q", g.Payload)
	}
}

func TestPacketCodecUnknownIdentifier(t *testing.T) {
	registry := NewBuilder().Build()
	original := New(HandshakeIdentifier, &HandshakeBody{})
	buf := Encode(original)

	if _, err := Decode(registry, buf); err != ErrUnknownPacket {
		t.Fatalf("expected ErrUnknownPacket, got %v", err)
	}
}

func TestFrameCodecAccumulatesMultipleFrames(t *testing.T) {
	registry := testRegistry()
	outer := wire.New()

	p1 := New(HandshakeIdentifier, &HandshakeBody{ProtocolVersion: Version{Major: 1}})
	p2 := New(GossipIdentifier, NewGossip(1, []byte("x")))

	EncodeFrame(outer, Encode(p1))
	EncodeFrame(outer, Encode(p2))

	frames, err := DecodeFrames(outer)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}

	d1, err := Decode(registry, frames[0])
	if err != nil || d1.Identifier != HandshakeIdentifier {
		t.Errorf("frame 0 = %+v, %v", d1, err)
	}
	d2, err := Decode(registry, frames[1])
	if err != nil || d2.Identifier != GossipIdentifier {
		t.Errorf("frame 1 = %+v, %v", d2, err)
	}
}

func TestFrameCodecLeavesPartialFrameBuffered(t *testing.T) {
	outer := wire.New()
	p1 := New(HandshakeIdentifier, &HandshakeBody{ProtocolVersion: Version{Major: 1}})
	EncodeFrame(outer, Encode(p1))
	outer.WriteByte(0x80) // partial varint length prefix of a second, incomplete frame

	frames, err := DecodeFrames(outer)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if outer.ReadableBytes() != 1 {
		t.Errorf("expected the partial frame byte to remain buffered, got %d readable", outer.ReadableBytes())
	}
}

func TestFrameCodecLeavesTruncatedPayloadBuffered(t *testing.T) {
	registry := testRegistry()

	p1 := New(HandshakeIdentifier, &HandshakeBody{ProtocolVersion: Version{Major: 1}})
	p2 := New(GossipIdentifier, NewGossip(1, []byte("hello")))

	second := wire.New()
	EncodeFrame(second, Encode(p2))
	truncated := second.Bytes()[:second.ReadableBytes()-2] // length prefix complete, payload cut short

	buf := wire.New()
	EncodeFrame(buf, Encode(p1))
	for _, bb := range truncated {
		buf.WriteByte(bb)
	}

	frames, err := DecodeFrames(buf)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	d1, err := Decode(registry, frames[0])
	if err != nil || d1.Identifier != HandshakeIdentifier {
		t.Errorf("frame 0 = %+v, %v", d1, err)
	}
	if buf.ReadableBytes() != len(truncated) {
		t.Errorf("expected the truncated frame's length prefix and short payload to remain buffered, got %d readable, want %d", buf.ReadableBytes(), len(truncated))
	}
}
