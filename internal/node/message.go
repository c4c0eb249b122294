package node

import (
	"github.com/rs/zerolog/log"

	"github.com/mato-framework/mato/internal/ids"
)

// SendGlobalMessage delivers to every local instance except the sender
// via on_message, and broadcasts M8 so remote peers run the same
// fan-out locally.
func (n *Node) SendGlobalMessage(senderGlobalID, messageID int, data []byte) {
	n.deliverMessageLocally(senderGlobalID, ids.Broadcast, messageID, data)
	n.transport.BroadcastGlobalMessage(senderGlobalID, messageID, data)
}

// SendMessage is the unicast variant. A local receiver gets on_message
// invoked directly on the caller's goroutine; a remote receiver gets M8
// with an explicit receiver field. A receiver of MATO_BROADCAST is
// handed to SendGlobalMessage, which fans out locally and over M8.
func (n *Node) SendMessage(senderGlobalID, receiverGlobalID, messageID int, data []byte) error {
	if receiverGlobalID == ids.Broadcast {
		n.SendGlobalMessage(senderGlobalID, messageID, data)
		return nil
	}
	receiverNode, _ := ids.Split(receiverGlobalID)
	if receiverNode == n.id {
		n.deliverMessageLocally(senderGlobalID, receiverGlobalID, messageID, data)
		return nil
	}
	return n.transport.SendGlobalMessage(receiverNode, senderGlobalID, receiverGlobalID, messageID, data)
}

// deliverMessageLocally fans a message out to on_message of every local
// instance the receiver field selects: every instance but the sender for
// Broadcast, or exactly the named instance for a unicast. A remote
// message re-broadcast here (receiverGlobalID == Broadcast, arriving via
// M8) is local-only — it is never re-sent over the network (§4.1).
func (n *Node) deliverMessageLocally(senderGlobalID, receiverGlobalID, messageID int, data []byte) {
	if receiverGlobalID == ids.Broadcast {
		for _, info := range n.reg.ListModules() {
			if !info.Local || info.GlobalID == senderGlobalID {
				continue
			}
			n.invokeOnMessage(info.GlobalID, senderGlobalID, messageID, data)
		}
		return
	}
	n.invokeOnMessage(receiverGlobalID, senderGlobalID, messageID, data)
}

func (n *Node) invokeOnMessage(receiverGlobalID, senderGlobalID, messageID int, data []byte) {
	state, spec, ok := n.reg.InstanceState(receiverGlobalID)
	if !ok || spec.OnMessage == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int("receiver", receiverGlobalID).
				Msg("node: on_message callback panicked")
		}
	}()
	spec.OnMessage(state, senderGlobalID, messageID, data)
}
