package kademlia

import (
	"context"
	"crypto/rand"
	"time"

	"lithiumnet/internal/identity"
)

// RunBucketRefresh periodically picks a random target and runs an iterative lookup for it,
// keeping stale buckets populated even when nothing else triggers traffic toward them. It
// blocks until ctx is cancelled.
func (e *Engine) RunBucketRefresh(ctx context.Context, interval time.Duration, cfg LookupConfig) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			target := randomNodeID()
			qctx, cancel := context.WithTimeout(ctx, interval)
			_, _, _ = e.IterativeFindNode(qctx, target, cfg)
			cancel()
		}
	}
}

func randomNodeID() identity.NodeID {
	var id identity.NodeID
	_, _ = rand.Read(id[:])
	return id
}
