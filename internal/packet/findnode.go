package packet

import (
	"fmt"

	"lithiumnet/internal/identity"
	"lithiumnet/internal/wire"
)

// FindNodeRequestIdentifier is the registry identifier for FindNodeRequestBody.
const FindNodeRequestIdentifier = "lithium:findnode.request"

// FindNodeResponseIdentifier is the registry identifier for FindNodeResponseBody.
const FindNodeResponseIdentifier = "lithium:findnode.response"

// FindNodeRequestBody asks the receiving peer for the nodes it considers closest to Target.
// The packet's own UUID (set by New) is the correlation id a FindNodeResponseBody echoes
// back via RequestID.
type FindNodeRequestBody struct {
	Target identity.NodeID
}

// WriteTo implements Body.
func (r *FindNodeRequestBody) WriteTo(b *wire.Buffer) {
	writeNodeID(b, r.Target)
}

// ReadFrom implements Body.
func (r *FindNodeRequestBody) ReadFrom(b *wire.Buffer) error {
	id, err := readNodeID(b)
	if err != nil {
		return err
	}
	r.Target = id
	return nil
}

// PeerInfo is the wire representation of a single routing-table entry reported in a
// FindNodeResponseBody.
type PeerInfo struct {
	ID      identity.NodeID
	Address string
}

// FindNodeResponseBody answers a FindNodeRequestBody with the responder's own view of the
// nodes closest to the requested target.
type FindNodeResponseBody struct {
	RequestID UUID
	Peers     []PeerInfo
}

// WriteTo implements Body.
func (r *FindNodeResponseBody) WriteTo(b *wire.Buffer) {
	r.RequestID.writeTo(b)
	b.WriteUnsignedInteger(uint64(len(r.Peers)))
	for _, p := range r.Peers {
		writeNodeID(b, p.ID)
		b.WriteString(p.Address)
	}
}

// ReadFrom implements Body.
func (r *FindNodeResponseBody) ReadFrom(b *wire.Buffer) error {
	id, err := readUUID(b)
	if err != nil {
		return err
	}
	r.RequestID = id

	n, err := b.ReadUnsignedInteger()
	if err != nil {
		return err
	}
	peers := make([]PeerInfo, 0, n)
	for i := uint64(0); i < n; i++ {
		nodeID, err := readNodeID(b)
		if err != nil {
			return err
		}
		addr, err := b.ReadString()
		if err != nil {
			return err
		}
		peers = append(peers, PeerInfo{ID: nodeID, Address: addr})
	}
	r.Peers = peers
	return nil
}

func writeNodeID(b *wire.Buffer, id identity.NodeID) {
	b.WriteByteArray(id[:])
}

func readNodeID(b *wire.Buffer) (identity.NodeID, error) {
	raw, err := b.ReadByteArray()
	if err != nil {
		return identity.NodeID{}, err
	}
	if len(raw) != 16 {
		return identity.NodeID{}, fmt.Errorf("packet: node id must be 16 bytes, got %d", len(raw))
	}
	var id identity.NodeID
	copy(id[:], raw)
	return id, nil
}
