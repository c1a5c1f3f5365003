package kademlia

import (
	"errors"
	"sort"
	"sync"
	"time"

	"lithiumnet/internal/identity"
)

// ErrBucketFull is returned when a bucket has no room and the new peer was not inserted:
// either no ping function was supplied, or the pinged tail answered and was kept.
var ErrBucketFull = errors.New("kademlia: bucket full")

// NumBuckets is the number of distance buckets for a 128-bit identifier space: distance
// ranges from 0 (identical ids, never bucketed) to 128.
const NumBuckets = 128

// DefaultK is the default per-bucket capacity.
const DefaultK = 20

// RoutingTable is a Kademlia k-bucket table keyed by XOR distance from the local node.
//
// Each bucket guards its own entries with its own RWMutex; a separate table-level lock
// guards only the id→bucket index used for O(1) membership lookups, so concurrent
// announcements into different buckets never contend with each other.
type RoutingTable struct {
	self identity.NodeID
	k    int

	buckets [NumBuckets]*bucket

	indexMu sync.RWMutex
	index   map[identity.NodeID]int
}

// NewRoutingTable constructs an empty table for the local identifier, with per-bucket
// capacity k (DefaultK if k <= 0).
func NewRoutingTable(self identity.NodeID, k int) *RoutingTable {
	if k <= 0 {
		k = DefaultK
	}
	rt := &RoutingTable{self: self, k: k, index: make(map[identity.NodeID]int)}
	for i := range rt.buckets {
		rt.buckets[i] = &bucket{}
	}
	return rt
}

func (rt *RoutingTable) bucketIndexFor(id identity.NodeID) int {
	d := identity.Distance(rt.self, id)
	if d == 0 {
		return -1 // the local node itself; never bucketed
	}
	return d - 1
}

// Announce records that id was seen at addr, moving it to the front of its bucket if
// already present. If the bucket is full, ping is invoked on the least-recently-seen entry
// (outside any lock) to decide whether to evict it; a nil ping leaves a full bucket
// unchanged and returns ErrBucketFull.
func (rt *RoutingTable) Announce(id identity.NodeID, addr string, now time.Time, ping PingFunc) error {
	if id == rt.self {
		return nil
	}
	bi := rt.bucketIndexFor(id)
	if bi < 0 {
		return nil
	}
	b := rt.buckets[bi]

	if b.touch(id, addr, now) {
		return nil
	}

	p := Peer{ID: id, Address: addr, LastSeen: now}

	if !b.isFull(rt.k) {
		b.insertFront(p)
		rt.setIndex(id, bi)
		return nil
	}

	if ping == nil {
		return ErrBucketFull
	}

	tail, ok := b.tail()
	if !ok {
		b.insertFront(p)
		rt.setIndex(id, bi)
		return nil
	}

	alive := ping(tail)
	if alive {
		b.keepTailAddReplacement(tail.ID, p, now)
		return ErrBucketFull
	}

	b.evictTailAndInsert(tail.ID, p, rt.k)
	rt.clearIndex(tail.ID)
	rt.setIndex(id, bi)
	return nil
}

func (rt *RoutingTable) setIndex(id identity.NodeID, bi int) {
	rt.indexMu.Lock()
	rt.index[id] = bi
	rt.indexMu.Unlock()
}

func (rt *RoutingTable) clearIndex(id identity.NodeID) {
	rt.indexMu.Lock()
	delete(rt.index, id)
	rt.indexMu.Unlock()
}

// GetNode returns the routing table's current entry for id, if any.
func (rt *RoutingTable) GetNode(id identity.NodeID) (Peer, bool) {
	rt.indexMu.RLock()
	bi, ok := rt.index[id]
	rt.indexMu.RUnlock()
	if !ok {
		return Peer{}, false
	}
	for _, p := range rt.buckets[bi].snapshot() {
		if p.ID == id {
			return p, true
		}
	}
	return Peer{}, false
}

// Remove drops id from the table entirely.
func (rt *RoutingTable) Remove(id identity.NodeID) {
	bi := rt.bucketIndexFor(id)
	if bi < 0 {
		return
	}
	if rt.buckets[bi].remove(id) {
		rt.clearIndex(id)
	}
}

// GetNodes returns a snapshot of every peer at the given distance bucket (1..NumBuckets).
func (rt *RoutingTable) GetNodes(distance int) []Peer {
	if distance < 1 || distance > NumBuckets {
		return nil
	}
	return rt.buckets[distance-1].snapshot()
}

// GetClosestNodes returns up to n peers ordered by ascending XOR distance to target. If n
// is non-positive it defaults to the table's bucket capacity k.
func (rt *RoutingTable) GetClosestNodes(target identity.NodeID, n int) []Peer {
	if n <= 0 {
		n = rt.k
	}
	all := make([]Peer, 0, NumBuckets*rt.k)
	for _, b := range rt.buckets {
		all = append(all, b.snapshot()...)
	}
	SortByDistance(all, target)
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// SortByDistance sorts peers by ascending XOR distance to target. The XOR value itself,
// not just its bit-length bucket, is compared numerically so ordering stays fully
// deterministic even among peers that share a bucket.
func SortByDistance(peers []Peer, target identity.NodeID) {
	sort.SliceStable(peers, func(i, j int) bool {
		di := identity.Xor(peers[i].ID, target)
		dj := identity.Xor(peers[j].ID, target)
		return identity.Less(di, dj)
	})
}

// Size returns the total number of peers across every bucket.
func (rt *RoutingTable) Size() int {
	n := 0
	for _, b := range rt.buckets {
		n += b.size()
	}
	return n
}

// BucketSize returns the number of peers at the given distance bucket (1..NumBuckets).
func (rt *RoutingTable) BucketSize(distance int) int {
	if distance < 1 || distance > NumBuckets {
		return 0
	}
	return rt.buckets[distance-1].size()
}

// Self returns the local node identifier this table is organized around.
func (rt *RoutingTable) Self() identity.NodeID { return rt.self }
