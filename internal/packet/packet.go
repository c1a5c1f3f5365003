// Package packet implements the frame codec, packet codec, packet registry, and the
// built-in packet kinds (handshake, announcement, broadcast) that ride on top of the wire
// buffer codec.
package packet

import (
	"crypto/rand"
	"errors"
	"fmt"

	"lithiumnet/internal/wire"
)

// ErrUnknownPacket is returned when a decoded identifier has no matching registry entry.
var ErrUnknownPacket = errors.New("packet: unknown identifier")

// UUID is a 128-bit packet correlation identifier, encoded on the wire as two zig-zag VarInt
// longs (most-significant half first).
type UUID [16]byte

// NewUUID generates a random correlation identifier.
func NewUUID() UUID {
	var u UUID
	_, _ = rand.Read(u[:])
	return u
}

// String renders the UUID in the conventional 8-4-4-4-12 hyphenated hex form.
func (u UUID) String() string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", u[0:4], u[4:6], u[6:8], u[8:10], u[10:16])
}

func (u UUID) writeTo(b *wire.Buffer) {
	msb := int64(uint64(u[0])<<56 | uint64(u[1])<<48 | uint64(u[2])<<40 | uint64(u[3])<<32 |
		uint64(u[4])<<24 | uint64(u[5])<<16 | uint64(u[6])<<8 | uint64(u[7]))
	lsb := int64(uint64(u[8])<<56 | uint64(u[9])<<48 | uint64(u[10])<<40 | uint64(u[11])<<32 |
		uint64(u[12])<<24 | uint64(u[13])<<16 | uint64(u[14])<<8 | uint64(u[15]))
	b.WriteUUID(msb, lsb)
}

func readUUID(b *wire.Buffer) (UUID, error) {
	msb, lsb, err := b.ReadUUID()
	if err != nil {
		return UUID{}, err
	}
	var u UUID
	um, ul := uint64(msb), uint64(lsb)
	for i := 0; i < 8; i++ {
		u[i] = byte(um >> (56 - 8*i))
		u[8+i] = byte(ul >> (56 - 8*i))
	}
	return u, nil
}

// Body is a packet kind's payload: it knows how to serialize and deserialize only its own
// fields, leaving identifier/UUID framing to the codec.
type Body interface {
	WriteTo(b *wire.Buffer)
	ReadFrom(b *wire.Buffer) error
}

// BroadcastBody is implemented by packet kinds that carry a hop time-to-live. The codec
// writes and reads the short(ttl) field immediately after the UUID whenever a body
// implements this interface — whether a packet kind broadcasts is a property of the kind
// itself, not a separate flag carried on the wire ahead of it.
type BroadcastBody interface {
	Body
	TimeToLive() uint16
	SetTimeToLive(ttl uint16)
}

// Packet is a decoded (or about-to-be-encoded) unit of communication: an identifier selecting
// the registered kind, a correlation UUID, and the kind-specific body.
type Packet struct {
	Identifier string
	ID         UUID
	Body       Body
}

// New constructs a packet with a freshly generated correlation UUID.
func New(identifier string, body Body) *Packet {
	return &Packet{Identifier: identifier, ID: NewUUID(), Body: body}
}
