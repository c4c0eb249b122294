package transport

import (
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/mato-framework/mato/internal/wire"
)

// Peer is one configured remote node: its address from the nodes config,
// and the live connection when online. Outbound sends are synchronous
// and serialized by mu — there is no per-peer send queue (§4.5: "a
// failed send is treated as a disconnect").
type Peer struct {
	ID   int
	Addr string
	Name string

	mu     sync.Mutex
	conn   net.Conn
	online bool
	connID string
}

// ConnID returns a fresh id's string form for every successful
// connection, so interleaved reconnect attempts in the logs are
// distinguishable even though the peer id itself repeats.
func (p *Peer) ConnID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connID
}

// Online reports whether this peer currently has a live connection.
func (p *Peer) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// setConn installs a new live connection, marking the peer online.
func (p *Peer) setConn(c net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn = c
	p.online = true
	p.connID = uuid.New().String()
}

// send encodes and writes a frame on this peer's connection. A failure
// marks the peer offline and closes the connection — the caller's
// disconnect path picks this up via the receive loop erroring out too.
func (p *Peer) send(f wire.Frame) error {
	p.mu.Lock()
	conn := p.conn
	online := p.online
	p.mu.Unlock()
	if !online || conn == nil {
		return errNotConnected(p.ID)
	}
	if err := wire.Encode(conn, f); err != nil {
		p.markOffline()
		return err
	}
	return nil
}

// markOffline closes the connection (if any) and clears online state. It
// is idempotent and safe to call from both the sender and receiver side
// of the same peer.
func (p *Peer) markOffline() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
	}
	p.conn = nil
	p.online = false
}
