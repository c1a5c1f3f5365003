// Package node wires the wire/packet/identity/kademlia core packages to the transport,
// session, and store collaborators to produce a runnable peer. It is the module's
// equivalent of the teacher's p2p.Node/dht.DHT pairing, merged into a single type because
// here the DHT and the connection layer are the same thing rather than two cooperating
// subsystems.
package node

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"lithiumnet/internal/dedupe"
	"lithiumnet/internal/identity"
	"lithiumnet/internal/kademlia"
	"lithiumnet/internal/packet"
	"lithiumnet/internal/session"
	"lithiumnet/internal/store"
	"lithiumnet/internal/telemetry"
	"lithiumnet/internal/transport"
	"lithiumnet/internal/wire"
)

// Config controls how a Node is constructed.
type Config struct {
	BindAddr     string
	Bootstraps   []string
	Logger       telemetry.Logger
	StorePath    string        // empty disables the BoltDB bootstrap cache
	GossipTTL    uint16        // default hop budget for Broadcast
	DedupeWindow time.Duration // how long a broadcast UUID is remembered
	LookupConfig kademlia.LookupConfig
	RateLimit    float64 // inbound FIND_NODE queries/sec per peer
	RateBurst    float64
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = telemetry.Discard
	}
	if c.GossipTTL == 0 {
		c.GossipTTL = 8
	}
	if c.DedupeWindow <= 0 {
		c.DedupeWindow = 5 * time.Minute
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 20
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 40
	}
	return c
}

// GossipHandler is invoked for every deduplicated broadcast payload this node receives from
// a peer. Payloads this node originates through Broadcast are not passed to it.
type GossipHandler func(fromAddr string, payload []byte)

// Node is a single participant in the overlay: it owns a transport-bound socket, a local
// identity, a routing table, and the lookup engine that drives FIND_NODE traffic over it.
type Node struct {
	cfg   Config
	local *identity.LocalIdentity

	tr       *transport.UDPNoiseTransport
	registry *packet.Registry
	rt       *kademlia.RoutingTable
	engine   *kademlia.Engine
	dedupe   *dedupe.Cache
	limiter  *kademlia.RateLimiter
	store    *store.Store
	onGossip GossipHandler

	pendingMu sync.Mutex
	pending   map[packet.UUID]chan *packet.Packet

	peerKeysMu sync.Mutex
	peerKeys   map[identity.NodeID]*identity.Envelope

	sessionsMu sync.Mutex
	sessions   map[string]*session.Channel // keyed by peer address, matching pendingCS's addressing

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New constructs a Node bound to cfg.BindAddr. priv is the node's long-term RSA identity
// key; the transport's independent Noise (X25519) keypair is generated fresh per process,
// matching the separation the wire handshake/announcement split encodes: the transport
// secures the link, the announcement packet authenticates the application identity riding
// over it.
func New(cfg Config, priv *rsa.PrivateKey) (*Node, error) {
	cfg = cfg.withDefaults()

	local, err := identity.NewLocalIdentity(priv)
	if err != nil {
		return nil, fmt.Errorf("node: local identity: %w", err)
	}

	noiseKey, err := transport.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("node: transport keypair: %w", err)
	}
	tr, err := transport.Listen(cfg.BindAddr, noiseKey.Private, noiseKey.Public)
	if err != nil {
		return nil, fmt.Errorf("node: listen: %w", err)
	}

	var st *store.Store
	if cfg.StorePath != "" {
		st, err = store.Open(cfg.StorePath)
		if err != nil {
			tr.Close()
			return nil, fmt.Errorf("node: open store: %w", err)
		}
	}

	n := &Node{
		cfg:      cfg,
		local:    local,
		tr:       tr,
		registry: builtinRegistry(),
		rt:       kademlia.NewRoutingTable(local.NodeID(), kademlia.DefaultK),
		dedupe:   dedupe.New(cfg.DedupeWindow),
		limiter:  kademlia.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		store:    st,
		pending:  make(map[packet.UUID]chan *packet.Packet),
		peerKeys: make(map[identity.NodeID]*identity.Envelope),
		sessions: make(map[string]*session.Channel),
		closeCh:  make(chan struct{}),
	}
	n.engine = kademlia.NewEngine(n.rt, n, kademlia.SystemClock())
	return n, nil
}

func builtinRegistry() *packet.Registry {
	b := packet.NewBuilder()
	mustRegister := func(identifier string, factory packet.DecoderFactory) {
		if _, err := b.Register(identifier, factory); err != nil {
			panic(err)
		}
	}
	mustRegister(packet.HandshakeIdentifier, func() packet.Body { return &packet.HandshakeBody{} })
	mustRegister(packet.AnnouncementIdentifier, func() packet.Body { return &packet.AnnouncementBody{} })
	mustRegister(packet.GossipIdentifier, func() packet.Body { return &packet.GossipBody{} })
	mustRegister(packet.FindNodeRequestIdentifier, func() packet.Body { return &packet.FindNodeRequestBody{} })
	mustRegister(packet.FindNodeResponseIdentifier, func() packet.Body { return &packet.FindNodeResponseBody{} })
	mustRegister(packet.RequestAddressIdentifier, func() packet.Body { return &packet.RequestAddressBody{} })
	mustRegister(packet.RequestAddressResponseIdentifier, func() packet.Body { return &packet.RequestAddressResponseBody{} })
	mustRegister(packet.SessionKeyIdentifier, func() packet.Body { return &packet.SessionKeyBody{} })
	return b.Build()
}

// NodeID returns this node's derived identity.
func (n *Node) NodeID() identity.NodeID { return n.local.NodeID() }

// LocalAddr returns the address other peers should dial to reach this node.
func (n *Node) LocalAddr() string { return n.tr.LocalAddr() }

// OnGossip registers the callback invoked for every newly seen broadcast payload.
func (n *Node) OnGossip(h GossipHandler) { n.onGossip = h }

// Start begins the receive loop and, if any bootstrap addresses were configured, performs
// a handshake against each of them.
func (n *Node) Start(ctx context.Context) error {
	n.wg.Add(1)
	go n.recvLoop()

	for _, addr := range n.cfg.Bootstraps {
		if err := n.handshakeWith(ctx, addr); err != nil {
			n.cfg.Logger.Printf("node: bootstrap handshake with %s failed: %v", addr, err)
		}
	}
	if n.store != nil {
		recs, err := n.store.MostRecent(32)
		if err == nil {
			for _, r := range recs {
				if err := n.handshakeWith(ctx, r.Address); err != nil {
					n.cfg.Logger.Printf("node: cached-peer handshake with %s failed: %v", r.Address, err)
				}
			}
		}
	}
	return nil
}

// Stop releases the transport socket and, if open, the bootstrap cache.
func (n *Node) Stop() error {
	close(n.closeCh)
	err := n.tr.Close()
	if n.store != nil {
		if serr := n.store.Close(); serr != nil && err == nil {
			err = serr
		}
	}
	n.wg.Wait()
	return err
}

func (n *Node) send(ctx context.Context, addr string, p *packet.Packet) error {
	buf := packet.Encode(p)
	frame := wire.New()
	packet.EncodeFrame(frame, buf)
	return n.tr.Send(ctx, addr, frame.Bytes())
}

// recvLoop reads one UDP datagram per iteration. Each datagram carries exactly one
// length-delimited frame (EncodeFrame wraps a single packet per Send); DecodeFrames still
// runs, rather than decoding the payload directly, so a peer that batches several frames
// into one datagram is still handled correctly.
func (n *Node) recvLoop() {
	defer n.wg.Done()
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		addr, datagram, err := n.tr.Recv(ctx)
		cancel()
		if err != nil {
			select {
			case <-n.closeCh:
				return
			default:
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			n.cfg.Logger.Printf("node: recv: %v", err)
			continue
		}

		frames, err := packet.DecodeFrames(wire.Wrap(datagram))
		if err != nil {
			n.cfg.Logger.Printf("node: malformed datagram from %s: %v", addr, err)
			continue
		}
		for _, body := range frames {
			p, err := packet.Decode(n.registry, body)
			if err != nil {
				n.cfg.Logger.Printf("node: decode frame from %s: %v", addr, err)
				continue
			}
			n.handlePacket(addr, p)
		}
	}
}

func (n *Node) handlePacket(addr string, p *packet.Packet) {
	switch body := p.Body.(type) {
	case *packet.HandshakeBody:
		n.handleHandshake(addr, p, body)
	case *packet.AnnouncementBody:
		n.handleAnnouncement(addr, p, body)
	case *packet.FindNodeRequestBody:
		n.handleFindNodeRequest(addr, p, body)
	case *packet.FindNodeResponseBody:
		n.deliverPending(body.RequestID, p)
	case *packet.RequestAddressBody:
		n.handleRequestAddress(addr, p)
	case *packet.RequestAddressResponseBody:
		n.deliverPending(body.RequestID, p)
	case *packet.SessionKeyBody:
		n.handleSessionKey(addr, body)
	case *packet.GossipBody:
		n.handleGossip(addr, p, body)
	}
}

func (n *Node) deliverPending(id packet.UUID, p *packet.Packet) {
	n.pendingMu.Lock()
	ch, ok := n.pending[id]
	if ok {
		delete(n.pending, id)
	}
	n.pendingMu.Unlock()
	if ok {
		select {
		case ch <- p:
		default:
		}
	}
}

func (n *Node) awaitResponse(id packet.UUID) chan *packet.Packet {
	ch := make(chan *packet.Packet, 1)
	n.pendingMu.Lock()
	n.pending[id] = ch
	n.pendingMu.Unlock()
	return ch
}

func (n *Node) cancelPending(id packet.UUID) {
	n.pendingMu.Lock()
	delete(n.pending, id)
	n.pendingMu.Unlock()
}

// protocolVersion is the Version this build negotiates during handshake/announcement.
var protocolVersion = packet.Version{Major: 1, Minor: 0, Patch: 0}

func fingerprint(publicKeyDER []byte) string {
	sum := sha256.Sum256(publicKeyDER)
	return hex.EncodeToString(sum[:])
}

// handshakeWith initiates a handshake/announcement exchange with addr. The responder's
// handlers answer symmetrically, so both sides end up with each other's public key and a
// routing table entry once the exchange completes.
func (n *Node) handshakeWith(ctx context.Context, addr string) error {
	hs := packet.New(packet.HandshakeIdentifier, &packet.HandshakeBody{
		ProtocolVersion: protocolVersion,
		Fingerprint:     fingerprint(n.local.PublicKeyDER()),
	})
	if err := n.send(ctx, addr, hs); err != nil {
		return err
	}
	ann := packet.New(packet.AnnouncementIdentifier, &packet.AnnouncementBody{
		ProtocolVersion: protocolVersion,
		PublicKeyDER:    n.local.PublicKeyDER(),
	})
	return n.send(ctx, addr, ann)
}

func (n *Node) handleHandshake(addr string, _ *packet.Packet, body *packet.HandshakeBody) {
	if body.ProtocolVersion.Major != protocolVersion.Major {
		n.cfg.Logger.Printf("node: rejecting handshake from %s: protocol major %d != %d", addr, body.ProtocolVersion.Major, protocolVersion.Major)
		return
	}
	ann := packet.New(packet.AnnouncementIdentifier, &packet.AnnouncementBody{
		ProtocolVersion: protocolVersion,
		PublicKeyDER:    n.local.PublicKeyDER(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.send(ctx, addr, ann); err != nil {
		n.cfg.Logger.Printf("node: send announcement to %s: %v", addr, err)
	}
}

func (n *Node) handleAnnouncement(addr string, _ *packet.Packet, body *packet.AnnouncementBody) {
	env, err := identity.NewEnvelope(body.PublicKeyDER)
	if err != nil {
		n.cfg.Logger.Printf("node: bad announcement from %s: %v", addr, err)
		return
	}
	if env.NodeID() == n.local.NodeID() {
		return
	}

	n.peerKeysMu.Lock()
	n.peerKeys[env.NodeID()] = env
	n.peerKeysMu.Unlock()

	now := time.Now()
	if err := n.rt.Announce(env.NodeID(), addr, now, n.ping); err != nil {
		n.cfg.Logger.Printf("node: routing table full for %s: %v", env.NodeID(), err)
	}
	if n.store != nil {
		rec := store.Record{NodeIDHex: env.NodeID().String(), Address: addr, LastSeen: now}
		if err := n.store.Put(rec); err != nil {
			n.cfg.Logger.Printf("node: cache peer %s: %v", addr, err)
		}
	}
}

// ping is the kademlia.PingFunc the routing table calls (outside any bucket lock) before
// evicting a bucket's tail: a short-timeout FIND_NODE against the peer's own id stands in
// for a dedicated PING packet kind, since any successful response proves liveness.
func (n *Node) ping(p kademlia.Peer) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := n.FindNode(ctx, p, p.ID)
	return err == nil
}

// FindNode implements kademlia.RPC: it sends a FindNodeRequestBody to peer and blocks until
// a correlated FindNodeResponseBody arrives or ctx expires.
func (n *Node) FindNode(ctx context.Context, peer kademlia.Peer, target identity.NodeID) ([]kademlia.Peer, error) {
	req := packet.New(packet.FindNodeRequestIdentifier, &packet.FindNodeRequestBody{Target: target})
	ch := n.awaitResponse(req.ID)
	defer n.cancelPending(req.ID)

	if err := n.send(ctx, peer.Address, req); err != nil {
		return nil, fmt.Errorf("node: send find_node to %s: %w", peer.Address, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-ch:
		body, ok := resp.Body.(*packet.FindNodeResponseBody)
		if !ok {
			return nil, fmt.Errorf("node: unexpected response body from %s", peer.Address)
		}
		out := make([]kademlia.Peer, 0, len(body.Peers))
		for _, pi := range body.Peers {
			out = append(out, kademlia.Peer{ID: pi.ID, Address: pi.Address})
		}
		return out, nil
	}
}

func (n *Node) handleFindNodeRequest(addr string, p *packet.Packet, body *packet.FindNodeRequestBody) {
	if !n.limiter.Allow(addr) {
		return
	}
	closest := n.rt.GetClosestNodes(body.Target, kademlia.DefaultK)
	peers := make([]packet.PeerInfo, 0, len(closest))
	for _, c := range closest {
		peers = append(peers, packet.PeerInfo{ID: c.ID, Address: c.Address})
	}
	resp := packet.New(packet.FindNodeResponseIdentifier, &packet.FindNodeResponseBody{
		RequestID: p.ID,
		Peers:     peers,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.send(ctx, addr, resp); err != nil {
		n.cfg.Logger.Printf("node: reply to find_node from %s: %v", addr, err)
	}
}

// RequestAddress asks peer to confirm the address it believes it is directly reachable at,
// mirroring RemoteNode.requestAddress: useful when a peer was first learned about
// indirectly (e.g. named as a "closest node" in someone else's FindNodeResponseBody) rather
// than announced to directly.
func (n *Node) RequestAddress(ctx context.Context, peer kademlia.Peer) (string, error) {
	req := packet.New(packet.RequestAddressIdentifier, &packet.RequestAddressBody{})
	ch := n.awaitResponse(req.ID)
	defer n.cancelPending(req.ID)

	if err := n.send(ctx, peer.Address, req); err != nil {
		return "", fmt.Errorf("node: send request_address to %s: %w", peer.Address, err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case resp := <-ch:
		body, ok := resp.Body.(*packet.RequestAddressResponseBody)
		if !ok {
			return "", fmt.Errorf("node: unexpected response body from %s", peer.Address)
		}
		return body.Address, nil
	}
}

func (n *Node) handleRequestAddress(addr string, p *packet.Packet) {
	resp := packet.New(packet.RequestAddressResponseIdentifier, &packet.RequestAddressResponseBody{
		RequestID: p.ID,
		Address:   n.LocalAddr(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.send(ctx, addr, resp); err != nil {
		n.cfg.Logger.Printf("node: reply to request_address from %s: %v", addr, err)
	}
}

// Broadcast relays payload to every peer currently in the routing table with an initial
// ttl hop budget, recording its own fresh UUID in the dedupe cache first so a copy that
// loops back through a relay chain is dropped rather than re-broadcast.
func (n *Node) Broadcast(payload []byte) error {
	p := packet.New(packet.GossipIdentifier, packet.NewGossip(n.cfg.GossipTTL, payload))
	n.dedupe.Seen(p.ID)
	return n.relay(p)
}

func (n *Node) relay(p *packet.Packet) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var firstErr error
	for _, b := range n.rt.GetClosestNodes(n.local.NodeID(), n.rt.Size()) {
		if err := n.send(ctx, b.Address, p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (n *Node) handleGossip(addr string, p *packet.Packet, body *packet.GossipBody) {
	if n.dedupe.Seen(p.ID) {
		return
	}
	if n.onGossip != nil {
		n.onGossip(addr, body.Payload)
	}
	if body.Decrement() {
		if err := n.relay(p); err != nil {
			n.cfg.Logger.Printf("node: relay gossip %s: %v", p.ID, err)
		}
	}
}

// NegotiateSession generates a fresh session key, seals it under peer's known public key,
// and sends it as a SessionKeyBody. The returned Channel is also recorded under peer's
// address, where SessionWith finds it; the node itself never encrypts traffic with it.
func (n *Node) NegotiateSession(ctx context.Context, peer kademlia.Peer) (*session.Channel, error) {
	n.peerKeysMu.Lock()
	env, ok := n.peerKeys[peer.ID]
	n.peerKeysMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("node: no known public key for %s", peer.ID)
	}

	key, err := session.NewKey()
	if err != nil {
		return nil, fmt.Errorf("node: generate session key: %w", err)
	}
	sealed, err := env.Encrypt(key[:])
	if err != nil {
		return nil, fmt.Errorf("node: seal session key: %w", err)
	}

	p := packet.New(packet.SessionKeyIdentifier, &packet.SessionKeyBody{SealedKey: sealed})
	if err := n.send(ctx, peer.Address, p); err != nil {
		return nil, fmt.Errorf("node: send session key to %s: %w", peer.Address, err)
	}

	ch := session.Open(key)
	n.sessionsMu.Lock()
	n.sessions[peer.Address] = ch
	n.sessionsMu.Unlock()
	return ch, nil
}

// handleSessionKey unseals a session key offered by addr and installs the resulting channel
// for subsequent bulk traffic from that address.
func (n *Node) handleSessionKey(addr string, body *packet.SessionKeyBody) {
	plaintext, err := n.local.Decrypt(body.SealedKey)
	if err != nil {
		n.cfg.Logger.Printf("node: unseal session key from %s: %v", addr, err)
		return
	}
	if len(plaintext) != len(session.Key{}) {
		n.cfg.Logger.Printf("node: session key from %s has wrong length %d", addr, len(plaintext))
		return
	}
	var key session.Key
	copy(key[:], plaintext)

	n.sessionsMu.Lock()
	n.sessions[addr] = session.Open(key)
	n.sessionsMu.Unlock()
}

// SessionWith returns the negotiated session channel for addr, if one has been established
// either by calling NegotiateSession or by receiving a SessionKeyBody from that address.
func (n *Node) SessionWith(addr string) (*session.Channel, bool) {
	n.sessionsMu.Lock()
	defer n.sessionsMu.Unlock()
	ch, ok := n.sessions[addr]
	return ch, ok
}

// Lookup starts building an iterative FIND_NODE lookup for target, driven by this node's
// engine over its own FindNode RPC implementation.
func (n *Node) Lookup(target identity.NodeID) *kademlia.LookupRequestBuilder {
	return n.engine.NewLookupRequestBuilder(target)
}

// RunBucketRefresh runs the engine's periodic random-target refresh until ctx is cancelled.
// Call it from its own goroutine; it blocks.
func (n *Node) RunBucketRefresh(ctx context.Context, interval time.Duration) {
	n.engine.RunBucketRefresh(ctx, interval, n.cfg.LookupConfig)
}

// RoutingTable exposes the underlying table for diagnostics and CLI commands.
func (n *Node) RoutingTable() *kademlia.RoutingTable { return n.rt }

