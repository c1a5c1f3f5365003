package packet

import "lithiumnet/internal/wire"

// SessionKeyIdentifier is the registry identifier for SessionKeyBody.
const SessionKeyIdentifier = "lithium:sessionkey"

// SessionKeyBody carries a freshly generated symmetric session key, sealed under the
// receiver's RSA public key (identity.Envelope.Encrypt) before this body is constructed —
// the packet payload itself is just the ciphertext, so the core packet codec never needs to
// know a session key is inside it.
type SessionKeyBody struct {
	SealedKey []byte
}

// WriteTo implements Body.
func (s *SessionKeyBody) WriteTo(b *wire.Buffer) {
	b.WriteByteArray(s.SealedKey)
}

// ReadFrom implements Body.
func (s *SessionKeyBody) ReadFrom(b *wire.Buffer) error {
	sealed, err := b.ReadByteArray()
	if err != nil {
		return err
	}
	s.SealedKey = sealed
	return nil
}
