package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/flynn/noise"
)

// datagram message types. A leading byte tags every UDP packet so the receive loop can
// route handshake messages to the in-progress handshake state and everything else to the
// established session's cipher state — there is no persistent stream to carry that
// distinction implicitly, the way a TCP-based Noise wrapper can.
const (
	msgHandshake1 byte = iota // initiator -> responder: e
	msgHandshake2             // responder -> initiator: e, ee, s, es
	msgHandshake3             // initiator -> responder: s, se
	msgData
)

var noiseSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2s)

// Keypair is a Noise (X25519) static keypair, exposed without pulling the noise package
// itself into every caller that just wants to generate one.
type Keypair struct {
	Private []byte
	Public  []byte
}

// GenerateKeypair produces a fresh static Noise keypair for use with Listen.
func GenerateKeypair() (Keypair, error) {
	kp, err := noiseSuite.GenerateKeypair(nil)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Private: kp.Private, Public: kp.Public}, nil
}

type session struct {
	readCS  *noise.CipherState
	writeCS *noise.CipherState
}

// UDPNoiseTransport is a Transport over a UDP socket, with every peer's traffic secured by
// an independent Noise_XX handshake keyed to that peer's address.
type UDPNoiseTransport struct {
	conn       *net.UDPConn
	staticPriv []byte
	staticPub  []byte

	mu          sync.Mutex
	sessions    map[string]*session
	handshaking map[string]*noise.HandshakeState
	pending     map[string]pendingCS

	incoming chan inboundFrame
	closeCh  chan struct{}
	closeErr error
}

type inboundFrame struct {
	addr  string
	frame []byte
	err   error
}

// Listen opens a UDP socket at bindAddr and starts the background receive loop. staticPriv/
// staticPub are this node's long-term Noise (X25519) keypair, independent of the core
// RSA/X.509 identity key — the transport's handshake authenticates the link, the core
// envelope authenticates the application-level identity.
func Listen(bindAddr string, staticPriv, staticPub []byte) (*UDPNoiseTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %q: %w", bindAddr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %q: %w", bindAddr, err)
	}

	t := &UDPNoiseTransport{
		conn:        conn,
		staticPriv:  staticPriv,
		staticPub:   staticPub,
		sessions:    make(map[string]*session),
		handshaking: make(map[string]*noise.HandshakeState),
		incoming:    make(chan inboundFrame, 64),
		closeCh:     make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// LocalAddr implements Transport.
func (t *UDPNoiseTransport) LocalAddr() string { return t.conn.LocalAddr().String() }

// Close implements Transport.
func (t *UDPNoiseTransport) Close() error {
	close(t.closeCh)
	return t.conn.Close()
}

// Dial initiates a Noise_XX handshake with addr and blocks until the session is
// established. Send will auto-dial on first use if this is skipped.
func (t *UDPNoiseTransport) Dial(ctx context.Context, addr string) error {
	t.mu.Lock()
	if _, ok := t.sessions[addr]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	hs, err := t.newHandshakeState(true)
	if err != nil {
		return err
	}

	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return err
	}
	if err := t.writeRaw(addr, msgHandshake1, msg1); err != nil {
		return err
	}

	t.mu.Lock()
	t.handshaking[addr] = hs
	t.mu.Unlock()

	return t.awaitSession(ctx, addr)
}

func (t *UDPNoiseTransport) awaitSession(ctx context.Context, addr string) error {
	ticker := make(chan struct{})
	go func() {
		defer close(ticker)
		for {
			t.mu.Lock()
			_, done := t.sessions[addr]
			t.mu.Unlock()
			if done {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}()
	select {
	case <-ticker:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send implements Transport: it encrypts frame under the established session for addr,
// dialing first if no session exists yet.
func (t *UDPNoiseTransport) Send(ctx context.Context, addr string, frame []byte) error {
	t.mu.Lock()
	s, ok := t.sessions[addr]
	t.mu.Unlock()

	if !ok {
		if err := t.Dial(ctx, addr); err != nil {
			return err
		}
		t.mu.Lock()
		s, ok = t.sessions[addr]
		t.mu.Unlock()
		if !ok {
			return errors.New("transport: session not established")
		}
	}

	ct, err := s.writeCS.Encrypt(nil, nil, frame)
	if err != nil {
		return err
	}
	return t.writeRaw(addr, msgData, ct)
}

// Recv implements Transport.
func (t *UDPNoiseTransport) Recv(ctx context.Context) (string, []byte, error) {
	select {
	case <-ctx.Done():
		return "", nil, ctx.Err()
	case f := <-t.incoming:
		return f.addr, f.frame, f.err
	}
}

func (t *UDPNoiseTransport) newHandshakeState(initiator bool) (*noise.HandshakeState, error) {
	return noise.NewHandshakeState(noise.Config{
		CipherSuite:   noiseSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: noise.DHKey{Private: t.staticPriv, Public: t.staticPub},
	})
}

func (t *UDPNoiseTransport) writeRaw(addr string, kind byte, payload []byte) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	buf := make([]byte, 1+len(payload))
	buf[0] = kind
	copy(buf[1:], payload)
	_, err = t.conn.WriteToUDP(buf, udpAddr)
	return err
}

const maxDatagramSize = 65535

func (t *UDPNoiseTransport) readLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.closeCh:
				return
			default:
			}
			t.incoming <- inboundFrame{err: err}
			return
		}
		if n < 1 {
			continue
		}
		t.handleDatagram(addr.String(), buf[0], buf[1:n])
	}
}

func (t *UDPNoiseTransport) handleDatagram(addr string, kind byte, payload []byte) {
	switch kind {
	case msgHandshake1:
		t.handleHandshake1(addr, payload)
	case msgHandshake2:
		t.handleHandshake2(addr, payload)
	case msgHandshake3:
		t.handleHandshake3(addr, payload)
	case msgData:
		t.handleData(addr, payload)
	}
}

func (t *UDPNoiseTransport) handleHandshake1(addr string, payload []byte) {
	hs, err := t.newHandshakeState(false)
	if err != nil {
		return
	}
	if _, _, _, err := hs.ReadMessage(nil, payload); err != nil {
		return
	}
	msg2, cs1, cs2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return
	}
	if err := t.writeRaw(addr, msgHandshake2, msg2); err != nil {
		return
	}
	// In the XX pattern the responder's cipher states only come out of reading message 3,
	// so cs1/cs2 are still nil here; the pending entry just marks addr as awaiting that
	// final message, and handleHandshake3 takes the real cipher states from it.
	t.mu.Lock()
	t.handshaking[addr] = hs
	t.pendingResponderCS(addr, cs1, cs2)
	t.mu.Unlock()
}

// pendingCS marks a responder-side handshake that has sent message 2, keyed separately from
// completed sessions so a concurrent Send never observes a half-finished handshake. Its
// fields hold whatever WriteMessage returned for message 2 (nil for the XX pattern).
type pendingCS struct{ cs1, cs2 *noise.CipherState }

func (t *UDPNoiseTransport) pendingResponderCS(addr string, cs1, cs2 *noise.CipherState) {
	if t.pending == nil {
		t.pending = make(map[string]pendingCS)
	}
	t.pending[addr] = pendingCS{cs1: cs1, cs2: cs2}
}

func (t *UDPNoiseTransport) handleHandshake2(addr string, payload []byte) {
	t.mu.Lock()
	hs, ok := t.handshaking[addr]
	t.mu.Unlock()
	if !ok {
		return
	}
	if _, _, _, err := hs.ReadMessage(nil, payload); err != nil {
		return
	}
	msg3, cs1, cs2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return
	}
	if err := t.writeRaw(addr, msgHandshake3, msg3); err != nil {
		return
	}
	t.mu.Lock()
	delete(t.handshaking, addr)
	// Initiator: convention is cs2 for read, cs1 for write.
	t.sessions[addr] = &session{readCS: cs2, writeCS: cs1}
	t.mu.Unlock()
}

func (t *UDPNoiseTransport) handleHandshake3(addr string, payload []byte) {
	t.mu.Lock()
	hs, ok := t.handshaking[addr]
	_, hasPending := t.pending[addr]
	t.mu.Unlock()
	if !ok || !hasPending {
		return
	}
	_, cs1, cs2, err := hs.ReadMessage(nil, payload)
	if err != nil {
		return
	}
	t.mu.Lock()
	delete(t.handshaking, addr)
	delete(t.pending, addr)
	// Responder: convention is cs1 for read, cs2 for write.
	t.sessions[addr] = &session{readCS: cs1, writeCS: cs2}
	t.mu.Unlock()
}

func (t *UDPNoiseTransport) handleData(addr string, ciphertext []byte) {
	t.mu.Lock()
	s, ok := t.sessions[addr]
	t.mu.Unlock()
	if !ok {
		return
	}
	plaintext, err := s.readCS.Decrypt(nil, nil, ciphertext)
	if err != nil {
		return
	}
	t.incoming <- inboundFrame{addr: addr, frame: plaintext}
}
