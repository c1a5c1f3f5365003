package packet

import (
	"testing"

	"lithiumnet/internal/identity"
)

func findNodeRegistry() *Registry {
	b := NewBuilder()
	_, _ = b.Register(FindNodeRequestIdentifier, func() Body { return &FindNodeRequestBody{} })
	_, _ = b.Register(FindNodeResponseIdentifier, func() Body { return &FindNodeResponseBody{} })
	_, _ = b.Register(RequestAddressIdentifier, func() Body { return &RequestAddressBody{} })
	_, _ = b.Register(RequestAddressResponseIdentifier, func() Body { return &RequestAddressResponseBody{} })
	return b.Build()
}

func TestFindNodeRequestRoundTrip(t *testing.T) {
	registry := findNodeRegistry()

	var target identity.NodeID
	for i := range target {
		target[i] = byte(i)
	}

	original := New(FindNodeRequestIdentifier, &FindNodeRequestBody{Target: target})
	decoded, err := Decode(registry, Encode(original))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body, ok := decoded.Body.(*FindNodeRequestBody)
	if !ok {
		t.Fatalf("body type = %T", decoded.Body)
	}
	if body.Target != target {
		t.Errorf("target = %s, want %s", body.Target, target)
	}
}

func TestFindNodeResponseRoundTrip(t *testing.T) {
	registry := findNodeRegistry()

	var a, b identity.NodeID
	a[0] = 1
	b[0] = 2
	reqID := NewUUID()

	original := New(FindNodeResponseIdentifier, &FindNodeResponseBody{
		RequestID: reqID,
		Peers: []PeerInfo{
			{ID: a, Address: "10.0.0.1:9000"},
			{ID: b, Address: "10.0.0.2:9000"},
		},
	})

	decoded, err := Decode(registry, Encode(original))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body, ok := decoded.Body.(*FindNodeResponseBody)
	if !ok {
		t.Fatalf("body type = %T", decoded.Body)
	}
	if body.RequestID != reqID {
		t.Errorf("request id mismatch")
	}
	if len(body.Peers) != 2 || body.Peers[0].Address != "10.0.0.1:9000" || body.Peers[1].ID != b {
		t.Errorf("peers = %+v", body.Peers)
	}
}

func TestFindNodeResponseRoundTripEmptyPeers(t *testing.T) {
	registry := findNodeRegistry()
	original := New(FindNodeResponseIdentifier, &FindNodeResponseBody{RequestID: NewUUID()})

	decoded, err := Decode(registry, Encode(original))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body := decoded.Body.(*FindNodeResponseBody)
	if len(body.Peers) != 0 {
		t.Errorf("peers = %+v, want empty", body.Peers)
	}
}

func TestRequestAddressRoundTrip(t *testing.T) {
	registry := findNodeRegistry()
	original := New(RequestAddressIdentifier, &RequestAddressBody{})

	decoded, err := Decode(registry, Encode(original))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Identifier != RequestAddressIdentifier {
		t.Errorf("identifier = %q", decoded.Identifier)
	}
}

func TestRequestAddressResponseRoundTrip(t *testing.T) {
	registry := findNodeRegistry()
	reqID := NewUUID()
	original := New(RequestAddressResponseIdentifier, &RequestAddressResponseBody{
		RequestID: reqID,
		Address:   "203.0.113.5:4001",
	})

	decoded, err := Decode(registry, Encode(original))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	body := decoded.Body.(*RequestAddressResponseBody)
	if body.RequestID != reqID || body.Address != "203.0.113.5:4001" {
		t.Errorf("body = %+v", body)
	}
}
