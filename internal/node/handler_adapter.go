package node

import (
	"github.com/mato-framework/mato/internal/ids"
	"github.com/mato-framework/mato/internal/redistribute"
	"github.com/mato-framework/mato/internal/transport"
)

// handlerAdapter implements transport.Handler by delegating to the Node
// it is a type-converted view of. It exists only to keep transport.Handler
// out of Node's own method set namespace (HandleNewModule etc. would be
// an odd public surface for a Node to expose directly).
type handlerAdapter Node

func (h *handlerAdapter) self() *Node { return (*Node)(h) }

// LocalModules lists every module hosted on this node, for the M1 replay
// a newly (re)connected peer receives.
func (h *handlerAdapter) LocalModules() []transport.ModuleAnnouncement {
	n := h.self()
	var out []transport.ModuleAnnouncement
	for _, info := range n.reg.ListModules() {
		if !info.Local {
			continue
		}
		out = append(out, transport.ModuleAnnouncement{
			LocalID:     info.LocalID,
			Name:        info.Name,
			TypeName:    info.TypeName,
			NumChannels: info.NumberOfChannels,
		})
	}
	return out
}

func (h *handlerAdapter) NodeConnected(remoteNode int) {
	// The registry lazily creates a node table on first StoreRemoteModule;
	// there is nothing else to record at connect time.
}

func (h *handlerAdapter) NodeDisconnected(remoteNode int) {
	h.self().reg.RemoveNode(remoteNode)
}

func (h *handlerAdapter) HandleNewModule(remoteNode, localID int, name, typeName string, numChannels int) {
	h.self().reg.StoreRemoteModule(remoteNode, localID, name, typeName, numChannels)
}

func (h *handlerAdapter) HandleDeletedModule(remoteNode, localID int) {
	h.self().reg.RemoveRemoteModule(remoteNode, localID)
}

func (h *handlerAdapter) HandleSubscribe(remoteNode, publisherLocalID, channel int) {
	h.self().reg.SubscribeRemoteForward(publisherLocalID, channel, remoteNode)
}

func (h *handlerAdapter) HandleUnsubscribe(remoteNode, publisherLocalID, channel int) {
	h.self().reg.UnsubscribeRemoteForward(publisherLocalID, channel, remoteNode)
}

func (h *handlerAdapter) HandleGetData(remoteNode, publisherLocalID, channel, requestID int) {
	n := h.self()
	data, _ := n.reg.GetHead(n.id, publisherLocalID, channel)
	_ = n.transport.SendData(remoteNode, requestID, data)
}

// HandleSubscribedData is delivery of M7: a remote publisher's channel
// update arrives and re-enters this node's redistribution loop through
// the ordinary post_data path, exactly as §2's data-flow diagram
// describes for "remote C6 receives the frame and re-enters C4".
func (h *handlerAdapter) HandleSubscribedData(remoteNode, publisherLocalID, channel int, data []byte) {
	n := h.self()
	n.loop.Enqueue(redistribute.Post{
		PublisherGlobalID: ids.Global(remoteNode, publisherLocalID),
		Channel:           channel,
		Data:              data,
	})
}

func (h *handlerAdapter) HandleGlobalMessage(remoteNode, senderGlobalID, receiverGlobalID, messageID int, data []byte) {
	h.self().deliverMessageLocally(senderGlobalID, receiverGlobalID, messageID, data)
}
