package transport

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mato-framework/mato/internal/wire"
)

// reconnectInterval is the "every second" cadence §4.5 specifies for the
// reconnector's sweep over offline peers.
const reconnectInterval = time.Second

// reconnectLoop implements the Reconnector task: node 0's side of a pair
// connects upward to higher-id peers so that at most one TCP connection
// exists per pair (§3, "Node 0's transport connects upward").
func (n *Node) reconnectLoop(ctx context.Context) {
	limiter := rate.NewLimiter(rate.Every(reconnectInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		n.sweepOfflinePeers(ctx)
	}
}

func (n *Node) sweepOfflinePeers(ctx context.Context) {
	n.mu.RLock()
	var targets []*Peer
	for id, p := range n.peers {
		if id > n.thisNode && !p.Online() {
			targets = append(targets, p)
		}
	}
	n.mu.RUnlock()

	for _, p := range targets {
		n.tryConnect(ctx, p)
	}
}

func (n *Node) tryConnect(ctx context.Context, p *Peer) {
	n.metrics.ReconnectAttempts.WithLabelValues(strconv.Itoa(p.ID)).Inc()
	dialer := net.Dialer{Timeout: reconnectInterval}
	conn, err := dialer.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		log.Debug().Err(err).Int("peer", p.ID).Str("addr", p.Addr).Msg("transport: reconnect attempt failed")
		return
	}
	if err := wire.WriteHandshake(conn, int32(n.thisNode)); err != nil {
		log.Warn().Err(err).Int("peer", p.ID).Msg("transport: handshake send failed")
		conn.Close()
		return
	}
	n.onConnected(p, conn)
}
