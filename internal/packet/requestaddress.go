package packet

import "lithiumnet/internal/wire"

// RequestAddressIdentifier is the registry identifier for RequestAddressBody.
//
// This mirrors RemoteNode.requestAddress(...)'s three Java overloads collapsed into one
// round trip: a peer that only knows another peer indirectly (e.g. relayed through a
// broadcast) can ask that peer to confirm its own directly-reachable address rather than
// trusting whatever address it was introduced with.
const RequestAddressIdentifier = "lithium:requestaddress.request"

// RequestAddressResponseIdentifier is the registry identifier for RequestAddressResponseBody.
const RequestAddressResponseIdentifier = "lithium:requestaddress.response"

// RequestAddressBody carries no payload of its own; the packet UUID is the correlation id.
type RequestAddressBody struct{}

// WriteTo implements Body.
func (RequestAddressBody) WriteTo(b *wire.Buffer) {}

// ReadFrom implements Body.
func (r *RequestAddressBody) ReadFrom(b *wire.Buffer) error { return nil }

// RequestAddressResponseBody answers with the address the responder believes it is directly
// reachable at.
type RequestAddressResponseBody struct {
	RequestID UUID
	Address   string
}

// WriteTo implements Body.
func (r *RequestAddressResponseBody) WriteTo(b *wire.Buffer) {
	r.RequestID.writeTo(b)
	b.WriteString(r.Address)
}

// ReadFrom implements Body.
func (r *RequestAddressResponseBody) ReadFrom(b *wire.Buffer) error {
	id, err := readUUID(b)
	if err != nil {
		return err
	}
	addr, err := b.ReadString()
	if err != nil {
		return err
	}
	r.RequestID = id
	r.Address = addr
	return nil
}
