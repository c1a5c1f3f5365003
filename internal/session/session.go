// Package session implements the symmetric, post-handshake channel two nodes use once a
// session key has been sealed through the core RSA envelope. Bulk encryption itself is a
// named external collaborator in the core design — this package is one concrete realization
// of it, never imported by the core routing/codec/identity packages.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Key is a 32-byte symmetric session key, negotiated once per peer pair and then reused for
// every subsequent message until the session is torn down.
type Key [32]byte

// NewKey generates a fresh random session key, typically sealed via an
// identity.Envelope.Encrypt call before being sent to the peer it is for.
func NewKey() (Key, error) {
	var k Key
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return Key{}, err
	}
	return k, nil
}

// Hex encodes a key for logging or out-of-band display. Never log a live session key in
// production; this exists for test fixtures and diagnostics.
func (k Key) Hex() string { return hex.EncodeToString(k[:]) }

// ParseKeyHex parses a hex-encoded key.
func ParseKeyHex(s string) (Key, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, err
	}
	if len(b) != 32 {
		return Key{}, fmt.Errorf("session: expected 32-byte key, got %d", len(b))
	}
	var k Key
	copy(k[:], b)
	return k, nil
}

// Channel seals and opens messages under a single session key using XChaCha20-Poly1305, an
// AEAD whose 24-byte nonce is safe to generate randomly per message without a coordinated
// counter between peers.
type Channel struct {
	key Key
}

// Open constructs a channel bound to key.
func Open(key Key) *Channel { return &Channel{key: key} }

// Seal encrypts plaintext, returning the random nonce used alongside the ciphertext. Both
// must be delivered to the peer; Unseal needs the nonce to decrypt.
func (c *Channel) Seal(plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}
	return nonce, aead.Seal(nil, nonce, plaintext, nil), nil
}

// Unseal decrypts a ciphertext produced by Seal under the same key and nonce.
func (c *Channel) Unseal(nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}
