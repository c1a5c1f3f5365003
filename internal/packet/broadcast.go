package packet

import "lithiumnet/internal/wire"

// GossipIdentifier is the registry identifier for GossipBody.
const GossipIdentifier = "lithium:gossip"

// GossipBody is a broadcast packet kind: an opaque payload relayed hop-by-hop until its
// time-to-live reaches zero. It implements BroadcastBody, so the codec writes and reads the
// short(ttl) field around it automatically.
type GossipBody struct {
	ttl     uint16
	Payload []byte
}

// TimeToLive implements BroadcastBody.
func (g *GossipBody) TimeToLive() uint16 { return g.ttl }

// SetTimeToLive implements BroadcastBody.
func (g *GossipBody) SetTimeToLive(ttl uint16) { g.ttl = ttl }

// Decrement reduces the remaining hop count by one and reports whether the packet should
// still be relayed (ttl is greater than zero after the call).
func (g *GossipBody) Decrement() bool {
	if g.ttl == 0 {
		return false
	}
	g.ttl--
	return g.ttl > 0
}

// NewGossip constructs a gossip body with an initial hop budget.
func NewGossip(ttl uint16, payload []byte) *GossipBody {
	return &GossipBody{ttl: ttl, Payload: payload}
}

// WriteTo implements Body.
func (g *GossipBody) WriteTo(b *wire.Buffer) {
	b.WriteByteArray(g.Payload)
}

// ReadFrom implements Body.
func (g *GossipBody) ReadFrom(b *wire.Buffer) error {
	p, err := b.ReadByteArray()
	if err != nil {
		return err
	}
	g.Payload = p
	return nil
}
