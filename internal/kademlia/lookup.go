package kademlia

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"lithiumnet/internal/identity"
)

// ErrLookupTimeout is delivered to a lookup's failure callback when the global expiration
// elapses before the lookup resolves.
var ErrLookupTimeout = errors.New("kademlia: lookup timed out")

// ErrNoSeeds is delivered to a lookup's failure callback when the routing table has no
// peers to seed a lookup from — the cold-start case.
var ErrNoSeeds = errors.New("kademlia: no seed peers available")

// ErrTargetNotFound is delivered to a lookup's failure callback when its rounds ran to
// completion — either progress halted or the round ceiling was reached — without any
// queried peer ever reporting back the exact target id.
var ErrTargetNotFound = errors.New("kademlia: lookup completed without locating the target")

// LookupState is the state a LookupRequest occupies. A request starts Pending and
// transitions to exactly one terminal state.
type LookupState int

const (
	// LookupPending is the initial state: the request is in flight.
	LookupPending LookupState = iota
	// LookupFulfilled means the exact target peer was located within the expiration.
	LookupFulfilled
	// LookupExpired means the lookup's expiration elapsed, it could not start, or its
	// rounds ended without locating the exact target.
	LookupExpired
)

func (s LookupState) String() string {
	switch s {
	case LookupPending:
		return "pending"
	case LookupFulfilled:
		return "fulfilled"
	case LookupExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// LookupID correlates a committed lookup request with its eventual result.
type LookupID [16]byte

func newLookupID() LookupID {
	var id LookupID
	_, _ = rand.Read(id[:])
	return id
}

// LookupResult is delivered to a lookup's success callback. TargetFound is always non-nil
// here — Commit only ever invokes the success callback once the exact target peer has been
// confirmed, either synchronously from the routing table or by a queried peer's response.
type LookupResult struct {
	Target      identity.NodeID
	Closest     []Peer
	TargetFound *Peer
}

// OnSuccess is invoked exactly once, the moment a lookup transitions to LookupFulfilled.
type OnSuccess func(LookupResult)

// OnFailure is invoked exactly once, the moment a lookup transitions to LookupExpired.
type OnFailure func(error)

// LookupRequest is a committed, in-flight lookup. Its state is owned by the goroutine the
// engine spawned to drive it. Responses that arrive after Engine.IterativeFindNode has
// returned are discarded: they neither re-trigger a callback nor reach the routing table.
type LookupRequest struct {
	id        LookupID
	target    identity.NodeID
	recursive bool

	mu    sync.Mutex
	state LookupState
}

// ID returns the request's correlation identifier.
func (r *LookupRequest) ID() LookupID { return r.id }

// State returns the request's current state.
func (r *LookupRequest) State() LookupState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *LookupRequest) transition(s LookupState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != LookupPending {
		return false
	}
	r.state = s
	return true
}

// LookupRequestBuilder assembles a LookupRequest. It is not safe for concurrent use; build
// and Commit from a single goroutine, then treat the returned *LookupRequest as read-only
// except through its own State method.
type LookupRequestBuilder struct {
	engine     *Engine
	cfg        LookupConfig
	target     identity.NodeID
	recursive  bool
	expiration time.Duration
	onSuccess  OnSuccess
	onFailure  OnFailure
}

// NewLookupRequestBuilder starts a builder for a lookup of target driven by engine.
func (e *Engine) NewLookupRequestBuilder(target identity.NodeID) *LookupRequestBuilder {
	return &LookupRequestBuilder{
		engine:     e,
		cfg:        DefaultLookupConfig(),
		target:     target,
		expiration: 10 * time.Second,
	}
}

// Recursive sets whether the engine should keep issuing rounds as long as closer peers
// keep turning up, or stop after a single round of queries (the default).
func (b *LookupRequestBuilder) Recursive(recursive bool) *LookupRequestBuilder {
	b.recursive = recursive
	return b
}

// WithConfig overrides the lookup's α/k/timeout/round-ceiling configuration.
func (b *LookupRequestBuilder) WithConfig(cfg LookupConfig) *LookupRequestBuilder {
	b.cfg = cfg
	return b
}

// ExpiresAfter sets the global deadline for the whole lookup, measured from Commit.
func (b *LookupRequestBuilder) ExpiresAfter(d time.Duration) *LookupRequestBuilder {
	b.expiration = d
	return b
}

// ExpiresAt sets the global deadline as an absolute instant.
func (b *LookupRequestBuilder) ExpiresAt(t time.Time) *LookupRequestBuilder {
	b.expiration = time.Until(t)
	return b
}

// OnSuccess registers the callback invoked on LookupFulfilled.
func (b *LookupRequestBuilder) OnSuccess(fn OnSuccess) *LookupRequestBuilder {
	b.onSuccess = fn
	return b
}

// OnFailure registers the callback invoked on LookupExpired.
func (b *LookupRequestBuilder) OnFailure(fn OnFailure) *LookupRequestBuilder {
	b.onFailure = fn
	return b
}

// Commit starts the lookup and returns the request handle. If the target is already present
// in the routing table, the lookup resolves synchronously as Fulfilled before Commit returns
// — there is no one to query, the answer is already known. Otherwise the engine drives the
// iterative state machine on its own goroutine and invokes exactly one of the registered
// callbacks once it resolves: OnSuccess when a queried peer reports back the exact target,
// OnFailure (ErrTargetNotFound) when the rounds run out without that happening.
//
// Recursive mode caps the number of α-parallel rounds at the configured MaxRounds, the way
// IterativeFindNode already behaves; non-recursive mode runs a single round and resolves
// with whatever that round returns.
func (b *LookupRequestBuilder) Commit() *LookupRequest {
	req := &LookupRequest{id: newLookupID(), target: b.target, recursive: b.recursive, state: LookupPending}

	if p, ok := b.engine.rt.GetNode(b.target); ok {
		if req.transition(LookupFulfilled) && b.onSuccess != nil {
			match := p
			b.onSuccess(LookupResult{Target: b.target, Closest: []Peer{p}, TargetFound: &match})
		}
		return req
	}

	cfg := b.cfg
	if !b.recursive {
		cfg.MaxRounds = 1
	}

	go b.engine.runLookup(req, cfg, b.expiration, b.onSuccess, b.onFailure)

	return req
}

func (e *Engine) runLookup(req *LookupRequest, cfg LookupConfig, expiration time.Duration, onSuccess OnSuccess, onFailure OnFailure) {
	if e.rt.Size() == 0 {
		if req.transition(LookupExpired) && onFailure != nil {
			onFailure(ErrNoSeeds)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), expiration)
	defer cancel()

	closest, found, err := e.IterativeFindNode(ctx, req.target, cfg)

	if err != nil {
		if req.transition(LookupExpired) && onFailure != nil {
			onFailure(ErrLookupTimeout)
		}
		return
	}

	if found == nil {
		if req.transition(LookupExpired) && onFailure != nil {
			onFailure(ErrTargetNotFound)
		}
		return
	}

	if req.transition(LookupFulfilled) && onSuccess != nil {
		onSuccess(LookupResult{Target: req.target, Closest: closest, TargetFound: found})
	}
}
