package packet

import "lithiumnet/internal/wire"

// HandshakeIdentifier is the registry identifier for HandshakeBody.
const HandshakeIdentifier = "lithium:handshake"

// HandshakeBody is the first packet exchanged between two nodes: a protocol Version and a
// fingerprint string identifying the sender's public key (so the receiver can decide
// whether to proceed with a full AnnouncementBody exchange before trusting the key itself).
type HandshakeBody struct {
	ProtocolVersion Version
	Fingerprint     string
}

// WriteTo implements Body.
func (h *HandshakeBody) WriteTo(b *wire.Buffer) {
	h.ProtocolVersion.WriteTo(b)
	b.WriteString(h.Fingerprint)
}

// ReadFrom implements Body.
func (h *HandshakeBody) ReadFrom(b *wire.Buffer) error {
	if err := h.ProtocolVersion.ReadFrom(b); err != nil {
		return err
	}
	fp, err := b.ReadString()
	if err != nil {
		return err
	}
	h.Fingerprint = fp
	return nil
}
