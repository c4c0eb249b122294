package transport

import (
	"context"

	"github.com/mato-framework/mato/internal/wire"
)

// BroadcastNewModule sends M1 to every currently online peer, the replay
// create_instance triggers per §4.1.
func (n *Node) BroadcastNewModule(localID int, name, typeName string, numChannels int) {
	f := wire.Frame{
		Type:          wire.NewModuleInstance,
		LocalModuleID: int32(localID),
		Name:          name,
		TypeName:      typeName,
		NumChannels:   int32(numChannels),
	}
	for _, p := range n.onlinePeers() {
		_ = p.send(f)
	}
}

// BroadcastDeletedModule sends M2 to every online peer.
func (n *Node) BroadcastDeletedModule(localID int) {
	f := wire.Frame{Type: wire.DeletedModuleInstance, LocalModuleID: int32(localID)}
	for _, p := range n.onlinePeers() {
		_ = p.send(f)
	}
}

// SendSubscribe sends M3 to the peer hosting the publisher, the first
// time a local subscriber attaches to one of its remote channels.
func (n *Node) SendSubscribe(peerID, publisherLocalID, channel int) error {
	p, ok := n.peer(peerID)
	if !ok {
		return errUnknownPeer(peerID)
	}
	return p.send(wire.Frame{Type: wire.Subscribe, LocalModuleID: int32(publisherLocalID), Channel: int32(channel)})
}

// SendUnsubscribe sends M4, when the last local subscriber to a remote
// channel unsubscribes.
func (n *Node) SendUnsubscribe(peerID, publisherLocalID, channel int) error {
	p, ok := n.peer(peerID)
	if !ok {
		return errUnknownPeer(peerID)
	}
	return p.send(wire.Frame{Type: wire.Unsubscribe, LocalModuleID: int32(publisherLocalID), Channel: int32(channel)})
}

// ForwardSubscribedData sends M7 to a remote subscriber; it implements
// redistribute.Forwarder.
func (n *Node) ForwardSubscribedData(remoteNode, publisherLocalID, channel int, data []byte) {
	p, ok := n.peer(remoteNode)
	if !ok {
		return
	}
	_ = p.send(wire.Frame{
		Type:          wire.SubscribedData,
		LocalModuleID: int32(publisherLocalID),
		Channel:       int32(channel),
		Bytes:         data,
	})
}

// SendData replies to an M5 GET_DATA request with M6.
func (n *Node) SendData(peerID, requestID int, data []byte) error {
	p, ok := n.peer(peerID)
	if !ok {
		return errUnknownPeer(peerID)
	}
	return p.send(wire.Frame{Type: wire.Data, RequestID: int32(requestID), Bytes: data})
}

// BroadcastGlobalMessage sends M8 with the broadcast receiver sentinel to
// every online peer, for send_global_message's network fan-out.
func (n *Node) BroadcastGlobalMessage(senderGlobalID, messageID int, data []byte) {
	f := wire.Frame{
		Type:             wire.GlobalMessage,
		SenderGlobalID:   int32(senderGlobalID),
		ReceiverGlobalID: wire.Broadcast,
		MessageID:        int32(messageID),
		Bytes:            data,
	}
	for _, p := range n.onlinePeers() {
		_ = p.send(f)
	}
}

// SendGlobalMessage sends M8 with an explicit receiver to the peer
// hosting it, for send_message's unicast remote path.
func (n *Node) SendGlobalMessage(peerID, senderGlobalID, receiverGlobalID, messageID int, data []byte) error {
	p, ok := n.peer(peerID)
	if !ok {
		return errUnknownPeer(peerID)
	}
	return p.send(wire.Frame{
		Type:             wire.GlobalMessage,
		SenderGlobalID:   int32(senderGlobalID),
		ReceiverGlobalID: int32(receiverGlobalID),
		MessageID:        int32(messageID),
		Bytes:            data,
	})
}

// RequestRemoteData sends M5 to peerID and blocks until the matching M6
// arrives or ctx is cancelled — the one-shot request-id waiter §4.3
// and §9 call for in place of the original's per-call kernel pipe.
func (n *Node) RequestRemoteData(ctx context.Context, peerID, publisherLocalID, channel int) ([]byte, error) {
	p, ok := n.peer(peerID)
	if !ok {
		return nil, errUnknownPeer(peerID)
	}

	n.waitersMu.Lock()
	n.nextRequestID++
	requestID := n.nextRequestID
	ch := make(chan []byte, 1)
	n.waiters[requestID] = ch
	n.waitersMu.Unlock()
	defer func() {
		n.waitersMu.Lock()
		delete(n.waiters, requestID)
		n.waitersMu.Unlock()
	}()

	if err := p.send(wire.Frame{Type: wire.GetData, LocalModuleID: int32(publisherLocalID), Channel: int32(channel), RequestID: int32(requestID)}); err != nil {
		return nil, err
	}

	select {
	case data := <-ch:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (n *Node) resolveWaiter(requestID int, data []byte) {
	n.waitersMu.Lock()
	ch, ok := n.waiters[requestID]
	n.waitersMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- data:
	default:
	}
}
