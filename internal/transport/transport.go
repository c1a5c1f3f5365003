// Package transport declares the transport-binding collaborator the core module leaves
// external, and provides one concrete realization of it: UDP secured per-peer with a Noise
// handshake.
package transport

import "context"

// Transport sends and receives opaque, already-framed byte payloads between addressed
// peers. The core codec/routing/identity packages never depend on this interface directly;
// internal/node opens a concrete Transport in node.New and wires it into the pieces that
// need one.
type Transport interface {
	// Send delivers frame to addr. It may return before the peer has acknowledged receipt;
	// this transport makes no delivery or ordering guarantee.
	Send(ctx context.Context, addr string, frame []byte) error

	// Recv blocks until a frame arrives from any peer, or ctx is done.
	Recv(ctx context.Context) (addr string, frame []byte, err error)

	// LocalAddr returns the address other peers should use to reach this transport.
	LocalAddr() string

	// Close releases the underlying socket and any per-peer session state.
	Close() error
}
