package session

import (
	"bytes"
	"testing"
)

func TestSealUnsealRoundTrip(t *testing.T) {
	key, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	ch := Open(key)

	plaintext := []byte("negotiated session payload")
	nonce, ciphertext, err := ch.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	got, err := ch.Unseal(nonce, ciphertext)
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("got %q, want %q", got, plaintext)
	}
}

func TestUnsealFailsWithWrongKey(t *testing.T) {
	k1, _ := NewKey()
	k2, _ := NewKey()

	nonce, ciphertext, err := Open(k1).Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Open(k2).Unseal(nonce, ciphertext); err == nil {
		t.Fatal("expected Unseal to fail with the wrong key")
	}
}

func TestKeyHexRoundTrip(t *testing.T) {
	k, _ := NewKey()
	parsed, err := ParseKeyHex(k.Hex())
	if err != nil {
		t.Fatalf("ParseKeyHex: %v", err)
	}
	if parsed != k {
		t.Fatal("round trip through hex should preserve the key")
	}
}

func TestParseKeyHexRejectsWrongLength(t *testing.T) {
	if _, err := ParseKeyHex("deadbeef"); err == nil {
		t.Fatal("expected error for a too-short key")
	}
}
