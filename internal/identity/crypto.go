package identity

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
)

// ErrBadSignature is returned when a peer's signature fails verification.
var ErrBadSignature = errors.New("identity: signature verification failed")

// ErrDecryptFailure is returned when a ciphertext cannot be decrypted with the local
// private key.
var ErrDecryptFailure = errors.New("identity: decryption failed")

// LocalIdentity holds this node's RSA key pair. It is the only identity type able to
// decrypt envelopes addressed to this node or sign outgoing messages.
type LocalIdentity struct {
	priv   *rsa.PrivateKey
	pubDER []byte
	id     NodeID
}

// NewLocalIdentity derives a LocalIdentity from an RSA private key.
func NewLocalIdentity(priv *rsa.PrivateKey) (*LocalIdentity, error) {
	der, err := EncodePublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("identity: encode local public key: %w", err)
	}
	id, err := DeriveNodeID(der)
	if err != nil {
		return nil, err
	}
	return &LocalIdentity{priv: priv, pubDER: der, id: id}, nil
}

// NodeID returns this node's derived identifier.
func (l *LocalIdentity) NodeID() NodeID { return l.id }

// PublicKeyDER returns this node's X.509-encoded public key, the bytes an AnnouncementBody
// carries to peers.
func (l *LocalIdentity) PublicKeyDER() []byte { return l.pubDER }

// Decrypt recovers plaintext from a ciphertext produced by a peer's Envelope.Encrypt call
// against this node's public key.
func (l *LocalIdentity) Decrypt(ciphertext []byte) ([]byte, error) {
	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, l.priv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailure, err)
	}
	return plaintext, nil
}

// Sign produces a detached signature over message using this node's private key.
func (l *LocalIdentity) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPSS(rand.Reader, l.priv, crypto.SHA256, digest[:], nil)
	if err != nil {
		return nil, fmt.Errorf("identity: sign: %w", err)
	}
	return sig, nil
}

// Envelope is a pre-resolved peer identity: an RSA public key and the NodeID it derives to,
// ready to encrypt outgoing messages or verify incoming signatures without re-parsing the
// key on every call.
type Envelope struct {
	pub    *rsa.PublicKey
	pubDER []byte
	id     NodeID
}

// NewEnvelope parses a peer's X.509-encoded public key and derives its NodeID.
func NewEnvelope(publicKeyDER []byte) (*Envelope, error) {
	pub, err := DecodePublicKey(publicKeyDER)
	if err != nil {
		return nil, err
	}
	id, err := DeriveNodeID(publicKeyDER)
	if err != nil {
		return nil, err
	}
	return &Envelope{pub: pub, pubDER: publicKeyDER, id: id}, nil
}

// NodeID returns the peer's derived identifier.
func (e *Envelope) NodeID() NodeID { return e.id }

// PublicKeyDER returns the peer's X.509-encoded public key.
func (e *Envelope) PublicKeyDER() []byte { return e.pubDER }

// Encrypt seals plaintext so that only the holder of the matching private key can recover
// it via LocalIdentity.Decrypt.
func (e *Envelope) Encrypt(plaintext []byte) ([]byte, error) {
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, e.pub, plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: encrypt: %w", err)
	}
	return ciphertext, nil
}

// Verify checks a detached signature produced by the peer's LocalIdentity.Sign call.
func (e *Envelope) Verify(message, signature []byte) error {
	digest := sha256.Sum256(message)
	if err := rsa.VerifyPSS(e.pub, crypto.SHA256, digest[:], signature, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return nil
}
