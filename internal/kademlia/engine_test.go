package kademlia

import (
	"context"
	"testing"
	"time"

	"lithiumnet/internal/identity"
)

// fakeRPC answers FindNode from a static graph: each peer knows a fixed list of neighbors
// to hand back, letting a test walk a small topology deterministically.
type fakeRPC struct {
	neighbors map[identity.NodeID][]Peer
}

func (f *fakeRPC) FindNode(_ context.Context, peer Peer, _ identity.NodeID) ([]Peer, error) {
	return f.neighbors[peer.ID], nil
}

func seedTable(t *testing.T, self identity.NodeID, seeds ...Peer) *RoutingTable {
	t.Helper()
	rt := NewRoutingTable(self, 20)
	now := time.Now()
	for _, p := range seeds {
		if err := rt.Announce(p.ID, p.Address, now, nil); err != nil {
			t.Fatalf("seed Announce(%s): %v", p.ID, err)
		}
	}
	return rt
}

func TestIterativeFindNodeColdStartReturnsEmpty(t *testing.T) {
	self := identity.NodeID{}
	rt := NewRoutingTable(self, 20)
	engine := NewEngine(rt, &fakeRPC{}, nil)

	target := idWithByte0(0xFF)
	closest, found, err := engine.IterativeFindNode(context.Background(), target, DefaultLookupConfig())
	if err != nil {
		t.Fatalf("IterativeFindNode: %v", err)
	}
	if len(closest) != 0 {
		t.Fatalf("expected empty result on cold start, got %v", closest)
	}
	if found != nil {
		t.Fatalf("expected no target match on cold start, got %v", found)
	}
}

func TestIterativeFindNodeDiscoversCloserPeers(t *testing.T) {
	self := identity.NodeID{}

	near := Peer{ID: idWithByte0(0x40), Address: "near"}
	far := Peer{ID: idWithByte0(0x20), Address: "far"} // closer to target 0x01 than near

	target := idWithByte0(0x01)

	rpc := &fakeRPC{neighbors: map[identity.NodeID][]Peer{
		near.ID: {far},
	}}

	rt := seedTable(t, self, near)
	engine := NewEngine(rt, rpc, nil)

	closest, found, err := engine.IterativeFindNode(context.Background(), target, DefaultLookupConfig())
	if err != nil {
		t.Fatalf("IterativeFindNode: %v", err)
	}
	if found != nil {
		t.Fatalf("expected no exact target match (target itself was never returned), got %v", found)
	}

	discovered := false
	for _, p := range closest {
		if p.ID == far.ID {
			discovered = true
		}
	}
	if !discovered {
		t.Fatalf("expected the engine to discover %s via %s, got %v", far.ID, near.ID, closest)
	}

	// The discovered peer should also have been announced into the routing table.
	if _, ok := rt.GetNode(far.ID); !ok {
		t.Fatal("expected discovered peer to be announced into the routing table")
	}
}

func TestIterativeFindNodeRespectsContextCancellation(t *testing.T) {
	self := identity.NodeID{}
	near := Peer{ID: idWithByte0(0x40), Address: "near"}
	rt := seedTable(t, self, near)
	engine := NewEngine(rt, &fakeRPC{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := engine.IterativeFindNode(ctx, idWithByte0(0x01), DefaultLookupConfig())
	if err == nil {
		t.Fatal("expected an error from a pre-cancelled context")
	}
}

func TestIterativeFindNodeReportsExactTargetMatch(t *testing.T) {
	self := identity.NodeID{}
	near := Peer{ID: idWithByte0(0x40), Address: "near"}
	target := Peer{ID: idWithByte0(0x20), Address: "target"}

	rpc := &fakeRPC{neighbors: map[identity.NodeID][]Peer{near.ID: {target}}}
	rt := seedTable(t, self, near)
	engine := NewEngine(rt, rpc, nil)

	_, found, err := engine.IterativeFindNode(context.Background(), target.ID, DefaultLookupConfig())
	if err != nil {
		t.Fatalf("IterativeFindNode: %v", err)
	}
	if found == nil || found.ID != target.ID {
		t.Fatalf("expected the exact target to be reported as found, got %v", found)
	}
}

// countingRPC wraps fakeRPC and records which peer ids were actually queried, so a test can
// assert that a peer behind a round with no distance improvement was never reached.
type countingRPC struct {
	fakeRPC
	queried map[identity.NodeID]int
}

func (c *countingRPC) FindNode(ctx context.Context, peer Peer, target identity.NodeID) ([]Peer, error) {
	c.queried[peer.ID]++
	return c.fakeRPC.FindNode(ctx, peer, target)
}

func TestIterativeFindNodeStopsWhenARoundMakesNoDistanceProgress(t *testing.T) {
	self := identity.NodeID{}
	target := identity.NodeID{} // zero target: every peer's XOR distance equals its own value

	// seed at distance 10 (value confined to the last two bytes, bit-length 10)
	var seed identity.NodeID
	seed[14], seed[15] = 0x02, 0x58
	seedPeer := Peer{ID: seed, Address: "seed"}

	// round-1 discovery at distance 6 (value confined to the last byte, bit-length 6)
	var closer identity.NodeID
	closer[15] = 0x20
	closerPeer := Peer{ID: closer, Address: "closer"}

	// round-2 discovery: a *different* id, but still distance 6 — no improvement
	var sameDistance identity.NodeID
	sameDistance[15] = 0x21
	sameDistancePeer := Peer{ID: sameDistance, Address: "same-distance"}

	rpc := &countingRPC{
		fakeRPC: fakeRPC{neighbors: map[identity.NodeID][]Peer{
			seedPeer.ID:   {closerPeer},
			closerPeer.ID: {sameDistancePeer},
			// sameDistancePeer intentionally has no entry: it must never be queried.
		}},
		queried: make(map[identity.NodeID]int),
	}

	rt := seedTable(t, self, seedPeer)
	engine := NewEngine(rt, rpc, nil)

	_, found, err := engine.IterativeFindNode(context.Background(), target, DefaultLookupConfig())
	if err != nil {
		t.Fatalf("IterativeFindNode: %v", err)
	}
	if found != nil {
		t.Fatalf("expected no exact target match, got %v", found)
	}

	if rpc.queried[sameDistancePeer.ID] != 0 {
		t.Fatalf("expected the round that made no distance progress to be the last one; %s was queried", sameDistancePeer.ID)
	}
	if rpc.queried[closerPeer.ID] != 1 {
		t.Fatalf("expected closer to be queried exactly once, got %d", rpc.queried[closerPeer.ID])
	}
}
