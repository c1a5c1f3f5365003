package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// MinKeyBits is the minimum RSA modulus size this module accepts for a node identity key.
const MinKeyBits = 2048

// GenerateKeyPair creates a fresh RSA key pair of at least MinKeyBits.
func GenerateKeyPair(bits int) (*rsa.PrivateKey, error) {
	if bits < MinKeyBits {
		return nil, fmt.Errorf("identity: key size %d below minimum %d", bits, MinKeyBits)
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

// EncodePublicKey renders a public key as X.509 SubjectPublicKeyInfo DER bytes, the form
// carried on the wire and hashed to derive a NodeID.
func EncodePublicKey(pub *rsa.PublicKey) ([]byte, error) {
	return x509.MarshalPKIXPublicKey(pub)
}

// DecodePublicKey parses X.509 SubjectPublicKeyInfo DER bytes into an RSA public key.
func DecodePublicKey(der []byte) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrMalformedKey)
	}
	if rsaPub.N.BitLen() < MinKeyBits {
		return nil, fmt.Errorf("%w: key size %d below minimum %d", ErrMalformedKey, rsaPub.N.BitLen(), MinKeyBits)
	}
	return rsaPub, nil
}
