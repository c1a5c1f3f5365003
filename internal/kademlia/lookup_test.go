package kademlia

import (
	"sync"
	"testing"
	"time"

	"lithiumnet/internal/identity"
)

func TestLookupRequestColdStartResolvesExpiredWithNoSeeds(t *testing.T) {
	self := identity.NodeID{}
	rt := NewRoutingTable(self, 20)
	engine := NewEngine(rt, &fakeRPC{}, nil)

	var wg sync.WaitGroup
	wg.Add(1)

	var gotErr error
	req := engine.NewLookupRequestBuilder(idWithByte0(0x01)).
		OnSuccess(func(LookupResult) { t.Error("unexpected success callback") }).
		OnFailure(func(err error) {
			gotErr = err
			wg.Done()
		}).
		Commit()

	wg.Wait()

	if gotErr != ErrNoSeeds {
		t.Fatalf("got error %v, want ErrNoSeeds", gotErr)
	}
	if req.State() != LookupExpired {
		t.Fatalf("state = %v, want Expired", req.State())
	}
}

func TestLookupRequestNonRecursiveResolvesWhenTargetFoundInOneRound(t *testing.T) {
	self := identity.NodeID{}
	near := Peer{ID: idWithByte0(0x40), Address: "near"}
	target := Peer{ID: idWithByte0(0x20), Address: "target"}

	rpc := &fakeRPC{neighbors: map[identity.NodeID][]Peer{near.ID: {target}}}
	rt := seedTable(t, self, near)
	engine := NewEngine(rt, rpc, nil)

	var wg sync.WaitGroup
	wg.Add(1)

	var result LookupResult
	req := engine.NewLookupRequestBuilder(target.ID).
		Recursive(false).
		ExpiresAfter(2 * time.Second).
		OnSuccess(func(r LookupResult) {
			result = r
			wg.Done()
		}).
		OnFailure(func(err error) { t.Errorf("unexpected failure: %v", err) }).
		Commit()

	wg.Wait()

	if req.State() != LookupFulfilled {
		t.Fatalf("state = %v, want Fulfilled", req.State())
	}
	if result.TargetFound == nil || result.TargetFound.ID != target.ID {
		t.Fatalf("expected the exact target in the result, got %v", result.TargetFound)
	}
}

func TestLookupRequestRecursiveExpiresWhenProgressHalts(t *testing.T) {
	self := identity.NodeID{}
	near := Peer{ID: idWithByte0(0x40), Address: "near"}
	far := Peer{ID: idWithByte0(0x20), Address: "far"} // never the target, and reports no further neighbors

	rpc := &fakeRPC{neighbors: map[identity.NodeID][]Peer{near.ID: {far}}}
	rt := seedTable(t, self, near)
	engine := NewEngine(rt, rpc, nil)

	var calls int
	var gotErr error
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(1)

	req := engine.NewLookupRequestBuilder(idWithByte0(0x01)).
		Recursive(true).
		ExpiresAfter(2 * time.Second).
		OnSuccess(func(LookupResult) { t.Error("unexpected success: target is never returned") }).
		OnFailure(func(err error) {
			mu.Lock()
			calls++
			gotErr = err
			mu.Unlock()
			wg.Done()
		}).
		Commit()

	wg.Wait()
	time.Sleep(10 * time.Millisecond) // let any stray duplicate callback surface

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("callback fired %d times, want 1", calls)
	}
	if gotErr != ErrTargetNotFound {
		t.Fatalf("got error %v, want ErrTargetNotFound", gotErr)
	}
	if req.State() != LookupExpired {
		t.Fatalf("state = %v, want Expired", req.State())
	}
}

func TestLookupRequestCommitResolvesSynchronouslyWhenTargetAlreadyKnown(t *testing.T) {
	self := identity.NodeID{}
	target := Peer{ID: idWithByte0(0x20), Address: "target"}
	rt := seedTable(t, self, target)
	engine := NewEngine(rt, &fakeRPC{}, nil)

	var result LookupResult
	var called bool
	req := engine.NewLookupRequestBuilder(target.ID).
		OnSuccess(func(r LookupResult) {
			called = true
			result = r
		}).
		OnFailure(func(err error) { t.Errorf("unexpected failure: %v", err) }).
		Commit()

	if !called {
		t.Fatal("expected OnSuccess to have fired synchronously before Commit returned")
	}
	if req.State() != LookupFulfilled {
		t.Fatalf("state = %v, want Fulfilled", req.State())
	}
	if result.TargetFound == nil || result.TargetFound.ID != target.ID {
		t.Fatalf("expected the exact target in the result, got %v", result.TargetFound)
	}
}

func TestLookupStateTransitionIsSingleShot(t *testing.T) {
	req := &LookupRequest{state: LookupPending}
	if !req.transition(LookupFulfilled) {
		t.Fatal("first transition should succeed")
	}
	if req.transition(LookupExpired) {
		t.Fatal("second transition should be rejected")
	}
	if req.State() != LookupFulfilled {
		t.Fatalf("state = %v, want Fulfilled (first transition wins)", req.State())
	}
}

func TestLookupRequestBuilderExpiresAtComputesDuration(t *testing.T) {
	engine := NewEngine(NewRoutingTable(identity.NodeID{}, 20), &fakeRPC{}, nil)
	b := engine.NewLookupRequestBuilder(idWithByte0(0x01)).ExpiresAt(time.Now().Add(time.Minute))
	if b.expiration <= 0 || b.expiration > time.Minute {
		t.Fatalf("expiration = %v, want a positive duration close to 1m", b.expiration)
	}
}
