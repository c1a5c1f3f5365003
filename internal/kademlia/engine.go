package kademlia

import (
	"context"
	"sort"
	"time"

	"lithiumnet/internal/identity"
)

// RPC is the transport-level collaborator the lookup engine drives: a blocking FIND_NODE
// query against a single peer, returning the peers it reports as closest to target.
type RPC interface {
	FindNode(ctx context.Context, peer Peer, target identity.NodeID) ([]Peer, error)
}

// LookupConfig tunes an iterative lookup round.
type LookupConfig struct {
	Alpha      int
	K          int
	RPCTimeout time.Duration
	MaxRounds  int
}

// DefaultLookupConfig returns the conventional Kademlia defaults: 3-way parallelism, a
// 20-entry result set, a 1.2 s per-query timeout, and a generous round ceiling.
func DefaultLookupConfig() LookupConfig {
	return LookupConfig{
		Alpha:      3,
		K:          DefaultK,
		RPCTimeout: 1200 * time.Millisecond,
		MaxRounds:  32,
	}
}

func (c LookupConfig) withDefaults() LookupConfig {
	if c.Alpha <= 0 {
		c.Alpha = 3
	}
	if c.K <= 0 {
		c.K = DefaultK
	}
	if c.RPCTimeout <= 0 {
		c.RPCTimeout = 1200 * time.Millisecond
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = 32
	}
	return c
}

// Engine drives iterative α-parallel FIND_NODE lookups against a routing table, feeding
// the peers of every successful response back into the table before resolving the
// caller's result. A failed or timed-out query contributes nothing.
type Engine struct {
	rt    *RoutingTable
	rpc   RPC
	clock Clock
}

// NewEngine constructs a lookup engine bound to a routing table and RPC collaborator.
func NewEngine(rt *RoutingTable, rpc RPC, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	return &Engine{rt: rt, rpc: rpc, clock: clock}
}

type candidate struct {
	peer Peer
	dist identity.NodeID
}

// IterativeFindNode runs the α-parallel lookup state machine to completion and returns up
// to cfg.K peers ordered by ascending distance to target, plus the exact target peer if one
// was ever seeded or returned by a queried peer.
//
// A routing table with no peers to seed from (the cold-start case) resolves immediately
// with an empty result rather than attempting any round — there is nobody to query.
func (e *Engine) IterativeFindNode(ctx context.Context, target identity.NodeID, cfg LookupConfig) ([]Peer, *Peer, error) {
	cfg = cfg.withDefaults()

	seed := e.rt.GetClosestNodes(target, cfg.K)
	if len(seed) == 0 {
		return nil, nil, nil
	}

	best := make([]candidate, 0, cfg.K)
	seen := make(map[identity.NodeID]bool, cfg.K)
	var found *Peer
	for _, p := range seed {
		best = append(best, candidate{peer: p, dist: identity.Xor(p.ID, target)})
		seen[p.ID] = true
		if p.ID == target {
			match := p
			found = &match
		}
	}
	sortCandidates(best)

	queried := make(map[identity.NodeID]bool)
	pickNext := func() []Peer {
		out := make([]Peer, 0, cfg.Alpha)
		for _, c := range best {
			if len(out) == cfg.Alpha {
				break
			}
			if queried[c.peer.ID] {
				continue
			}
			queried[c.peer.ID] = true
			out = append(out, c.peer)
		}
		return out
	}

	closerFound := true
	for round := 0; found == nil && closerFound && round < cfg.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return finalize(best, cfg.K), found, err
		}

		var bestDistBefore identity.NodeID
		if len(best) > 0 {
			bestDistBefore = best[0].dist
		}

		toQuery := pickNext()
		if len(toQuery) == 0 {
			break
		}

		type result struct {
			peers []Peer
			ok    bool
		}
		resCh := make(chan result, len(toQuery))

		for _, peer := range toQuery {
			go func(p Peer) {
				qctx, cancel := context.WithTimeout(ctx, cfg.RPCTimeout)
				defer cancel()
				peers, err := e.rpc.FindNode(qctx, p, target)
				if err != nil {
					resCh <- result{ok: false}
					return
				}
				resCh <- result{peers: peers, ok: true}
			}(peer)
		}

		for i := 0; i < len(toQuery); i++ {
			select {
			case <-ctx.Done():
				return finalize(best, cfg.K), found, ctx.Err()
			case r := <-resCh:
				if !r.ok {
					continue
				}
				for _, p := range r.peers {
					e.rt.Announce(p.ID, p.Address, e.clock.Now(), nil)
					if p.ID == target && found == nil {
						match := p
						found = &match
					}
					if seen[p.ID] {
						continue
					}
					seen[p.ID] = true
					best = append(best, candidate{peer: p, dist: identity.Xor(p.ID, target)})
				}
			}
		}

		sortCandidates(best)
		if len(best) > cfg.K {
			best = best[:cfg.K]
		}

		// Progress is the best known distance strictly decreasing, not merely seeing new
		// ids: a round that only turns up peers no closer than what was already known must
		// not license another round.
		closerFound = len(best) > 0 && identity.Less(best[0].dist, bestDistBefore)
	}

	return finalize(best, cfg.K), found, nil
}

func sortCandidates(c []candidate) {
	sort.SliceStable(c, func(i, j int) bool { return identity.Less(c[i].dist, c[j].dist) })
}

func finalize(best []candidate, k int) []Peer {
	if len(best) > k {
		best = best[:k]
	}
	out := make([]Peer, len(best))
	for i, c := range best {
		out[i] = c.peer
	}
	return out
}
