// Package transport implements C6, the node-to-node half of Mato: a
// listening endpoint, an outbound reconnector, per-peer receive loops,
// and the M1..M8 wire protocol dispatch. It never touches the registry
// directly — every effect of an incoming frame is relayed through the
// Handler interface, which internal/node implements.
package transport

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mato-framework/mato/internal/matometrics"
	"github.com/mato-framework/mato/internal/wire"
)

// PeerConfig is one line of the nodes config file (§6).
type PeerConfig struct {
	ID   int
	IP   string
	Port int
	Name string
}

// Node owns this process's transport-layer state: its listener, the set
// of configured peers, and the handler that reacts to incoming frames.
type Node struct {
	thisNode   int
	listenPort int
	handler    Handler
	metrics    *matometrics.Metrics

	mu    sync.RWMutex
	peers map[int]*Peer

	listener net.Listener

	waitersMu     sync.Mutex
	waiters       map[int]chan []byte
	nextRequestID int

	wg sync.WaitGroup
}

// New creates a Node for thisNodeID, listening on listenPort, with peers
// as declared in the nodes config. Connections are not established until
// Run is called.
func New(thisNodeID, listenPort int, peers []PeerConfig, handler Handler) *Node {
	n := &Node{
		thisNode:   thisNodeID,
		listenPort: listenPort,
		handler:    handler,
		metrics:    matometrics.New(),
		peers:      make(map[int]*Peer, len(peers)),
		waiters:    make(map[int]chan []byte),
	}
	for _, pc := range peers {
		if pc.ID == thisNodeID {
			continue
		}
		n.peers[pc.ID] = &Peer{ID: pc.ID, Addr: net.JoinHostPort(pc.IP, strconv.Itoa(pc.Port)), Name: pc.Name}
	}
	return n
}

// Run starts the listener, receiver accept loop, and reconnector, and
// blocks until ctx is cancelled. It is meant to run under an
// errgroup.Group alongside the redistribution loop.
func (n *Node) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(n.listenPort)))
	if err != nil {
		return err
	}
	n.listener = ln

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.acceptLoop(ctx)
	}()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.reconnectLoop(ctx)
	}()

	<-ctx.Done()
	ln.Close()
	n.mu.RLock()
	for _, p := range n.peers {
		p.markOffline()
	}
	n.mu.RUnlock()
	n.wg.Wait()
	return nil
}

func (n *Node) peer(id int) (*Peer, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.peers[id]
	return p, ok
}

func (n *Node) onlinePeers() []*Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		if p.Online() {
			out = append(out, p)
		}
	}
	return out
}

// ConnectedPeerCount reports how many configured peers currently have a
// live connection, for matometrics' ConnectedPeers gauge.
func (n *Node) ConnectedPeerCount() int {
	return len(n.onlinePeers())
}

// acceptLoop accepts inbound connections, performs the handshake, and
// spins up a receive loop per accepted peer.
func (n *Node) acceptLoop(ctx context.Context) {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("transport: accept failed")
			continue
		}
		remoteID, err := wire.ReadHandshake(conn)
		if err != nil {
			log.Warn().Err(err).Msg("transport: handshake read failed")
			conn.Close()
			continue
		}
		p, ok := n.peer(int(remoteID))
		if !ok {
			log.Warn().Int("peer", int(remoteID)).Msg("transport: handshake from unconfigured node")
			conn.Close()
			continue
		}
		n.onConnected(p, conn)
	}
}

// onConnected finalizes a newly established connection (inbound or
// outbound), marks the peer online, replays M1 for every local module,
// and starts that peer's receive loop.
func (n *Node) onConnected(p *Peer, conn net.Conn) {
	p.setConn(conn)
	log.Info().Int("peer", p.ID).Str("conn_id", p.ConnID()).Str("remote_addr", conn.RemoteAddr().String()).Msg("transport: peer connected")
	n.handler.NodeConnected(p.ID)
	n.replayModules(p)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.receiveLoop(p, conn)
	}()
}

func (n *Node) replayModules(p *Peer) {
	for _, m := range n.handler.LocalModules() {
		_ = p.send(wire.Frame{
			Type:          wire.NewModuleInstance,
			LocalModuleID: int32(m.LocalID),
			Name:          m.Name,
			TypeName:      m.TypeName,
			NumChannels:   int32(m.NumChannels),
		})
	}
}

// receiveLoop reads and dispatches frames from one peer until a read
// error occurs, at which point it runs disconnect cleanup.
func (n *Node) receiveLoop(p *Peer, conn net.Conn) {
	connID := p.ConnID()
	for {
		f, err := wire.Decode(conn)
		if err != nil {
			log.Warn().Int("peer", p.ID).Str("conn_id", connID).Err(err).Msg("transport: peer disconnected")
			p.markOffline()
			n.handler.NodeDisconnected(p.ID)
			return
		}
		n.dispatch(p.ID, f)
	}
}

func (n *Node) dispatch(remoteNode int, f wire.Frame) {
	switch f.Type {
	case wire.NewModuleInstance:
		n.handler.HandleNewModule(remoteNode, int(f.LocalModuleID), f.Name, f.TypeName, int(f.NumChannels))
	case wire.DeletedModuleInstance:
		n.handler.HandleDeletedModule(remoteNode, int(f.LocalModuleID))
	case wire.Subscribe:
		n.handler.HandleSubscribe(remoteNode, int(f.LocalModuleID), int(f.Channel))
	case wire.Unsubscribe:
		n.handler.HandleUnsubscribe(remoteNode, int(f.LocalModuleID), int(f.Channel))
	case wire.GetData:
		n.handler.HandleGetData(remoteNode, int(f.LocalModuleID), int(f.Channel), int(f.RequestID))
	case wire.Data:
		n.resolveWaiter(int(f.RequestID), f.Bytes)
	case wire.SubscribedData:
		n.handler.HandleSubscribedData(remoteNode, int(f.LocalModuleID), int(f.Channel), f.Bytes)
	case wire.GlobalMessage:
		n.handler.HandleGlobalMessage(remoteNode, int(f.SenderGlobalID), int(f.ReceiverGlobalID), int(f.MessageID), f.Bytes)
	default:
		log.Warn().Stringer("type", f.Type).Msg("transport: dropping frame of unknown type")
	}
}
