// Package store implements the routing table's persistence collaborator: a BoltDB-backed
// cache of previously known peer addresses, consulted to seed a cold routing table on
// startup instead of requiring a reachable bootstrap server on every boot. The core routing
// and lookup packages never import this package; internal/node opens it in node.New.
package store

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketByID       = "peers_by_id"
	bucketByLastSeen = "peers_by_last_seen"

	defaultOpenTimeout = 2 * time.Second
)

// Store persists known peer addresses, keyed by their NodeID hex string, so a restarted
// node can re-announce into its routing table without waiting on the network.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) a BoltDB database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: defaultOpenTimeout})
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketByID)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketByLastSeen)); err != nil {
			return err
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Record is a persisted peer entry.
type Record struct {
	NodeIDHex string
	Address   string
	LastSeen  time.Time
}

// Put records or refreshes a peer's last-known address.
func (s *Store) Put(r Record) error {
	if r.NodeIDHex == "" {
		return errors.New("store: missing node id")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		byID := tx.Bucket([]byte(bucketByID))
		byLastSeen := tx.Bucket([]byte(bucketByLastSeen))

		if old := byID.Get([]byte(r.NodeIDHex)); old != nil {
			_, oldTS := splitValue(old)
			_ = byLastSeen.Delete(lastSeenKey(oldTS, r.NodeIDHex))
		}

		ts := r.LastSeen.Unix()
		if err := byID.Put([]byte(r.NodeIDHex), encodeValue(r.Address, ts)); err != nil {
			return err
		}
		return byLastSeen.Put(lastSeenKey(ts, r.NodeIDHex), nil)
	})
}

// Get returns the persisted record for a node id, if any.
func (s *Store) Get(nodeIDHex string) (Record, bool, error) {
	var rec Record
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bucketByID)).Get([]byte(nodeIDHex))
		if raw == nil {
			return nil
		}
		addr, ts := splitValue(raw)
		rec = Record{NodeIDHex: nodeIDHex, Address: addr, LastSeen: time.Unix(ts, 0)}
		found = true
		return nil
	})
	return rec, found, err
}

// MostRecent returns up to n of the most recently seen peer addresses, newest first — a
// ready-made seed list for a cold routing table.
func (s *Store) MostRecent(n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]Record, 0, n)
	err := s.db.View(func(tx *bolt.Tx) error {
		byID := tx.Bucket([]byte(bucketByID))
		c := tx.Bucket([]byte(bucketByLastSeen)).Cursor()
		for k, _ := c.Last(); k != nil && len(out) < n; k, _ = c.Prev() {
			ts, id := splitLastSeenKey(k)
			if id == "" {
				continue
			}
			raw := byID.Get([]byte(id))
			if raw == nil {
				continue
			}
			addr, _ := splitValue(raw)
			out = append(out, Record{NodeIDHex: id, Address: addr, LastSeen: time.Unix(ts, 0)})
		}
		return nil
	})
	return out, err
}

func encodeValue(addr string, ts int64) []byte {
	b := make([]byte, 8+len(addr))
	binary.BigEndian.PutUint64(b[:8], uint64(ts))
	copy(b[8:], addr)
	return b
}

func splitValue(b []byte) (addr string, ts int64) {
	if len(b) < 8 {
		return "", 0
	}
	return string(b[8:]), int64(binary.BigEndian.Uint64(b[:8]))
}

func lastSeenKey(ts int64, nodeIDHex string) []byte {
	b := make([]byte, 8+1+len(nodeIDHex))
	binary.BigEndian.PutUint64(b[:8], uint64(ts))
	b[8] = 0
	copy(b[9:], nodeIDHex)
	return b
}

func splitLastSeenKey(k []byte) (ts int64, nodeIDHex string) {
	if len(k) < 9 {
		return 0, ""
	}
	return int64(binary.BigEndian.Uint64(k[:8])), string(k[9:])
}
