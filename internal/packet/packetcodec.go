package packet

import "lithiumnet/internal/wire"

// Encode serializes a packet as identifier + UUID + [short(ttl) if the body broadcasts] +
// body payload, into a freshly allocated buffer.
func Encode(p *Packet) *wire.Buffer {
	buf := wire.New()
	buf.WriteString(p.Identifier)
	p.ID.writeTo(buf)
	if bc, ok := p.Body.(BroadcastBody); ok {
		buf.WriteShort(int16(bc.TimeToLive()))
	}
	p.Body.WriteTo(buf)
	return buf
}

// Decode reads a packet from buf using registry to resolve the identifier to a decoder
// factory. It returns ErrUnknownPacket if the identifier is not registered.
func Decode(registry *Registry, buf *wire.Buffer) (*Packet, error) {
	identifier, err := buf.ReadString()
	if err != nil {
		return nil, err
	}
	factory, ok := registry.Lookup(identifier)
	if !ok {
		return nil, ErrUnknownPacket
	}

	id, err := readUUID(buf)
	if err != nil {
		return nil, err
	}

	body := factory()
	if bc, ok := body.(BroadcastBody); ok {
		ttl, err := buf.ReadShort()
		if err != nil {
			return nil, err
		}
		bc.SetTimeToLive(uint16(ttl))
	}
	if err := body.ReadFrom(buf); err != nil {
		return nil, err
	}

	return &Packet{Identifier: identifier, ID: id, Body: body}, nil
}
