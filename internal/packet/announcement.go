package packet

import "lithiumnet/internal/wire"

// AnnouncementIdentifier is the registry identifier for AnnouncementBody.
const AnnouncementIdentifier = "lithium:announcement"

// AnnouncementBody follows a successful HandshakeBody exchange: it carries the protocol
// Version again alongside the sender's full X.509 SubjectPublicKeyInfo-encoded public key,
// from which the receiver derives the sender's NodeId.
type AnnouncementBody struct {
	ProtocolVersion Version
	PublicKeyDER    []byte
}

// WriteTo implements Body.
func (a *AnnouncementBody) WriteTo(b *wire.Buffer) {
	a.ProtocolVersion.WriteTo(b)
	b.WritePublicKey(a.PublicKeyDER)
}

// ReadFrom implements Body.
func (a *AnnouncementBody) ReadFrom(b *wire.Buffer) error {
	if err := a.ProtocolVersion.ReadFrom(b); err != nil {
		return err
	}
	der, err := b.ReadByteArray()
	if err != nil {
		return err
	}
	a.PublicKeyDER = der
	return nil
}
