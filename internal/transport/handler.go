package transport

// ModuleAnnouncement is the replay-on-connect payload for one locally
// hosted module, the source data for an M1 frame.
type ModuleAnnouncement struct {
	LocalID     int
	Name        string
	TypeName    string
	NumChannels int
}

// Handler is implemented by internal/node to let the transport layer
// drive registry mutations and redistribution without importing node
// (which itself imports transport).
type Handler interface {
	// LocalModules lists every module currently hosted on this node, for
	// the M1 replay a newly (re)connected peer receives.
	LocalModules() []ModuleAnnouncement

	// NodeConnected is called once a peer's handshake completes, before
	// replay, so the handler can mark the node online in the registry.
	NodeConnected(remoteNode int)

	// NodeDisconnected runs full disconnect cleanup (§4.5): cancel
	// subscriptions crossing that node, move borrowed descriptors to the
	// dangling list, decrement heads the node's channels were tracking.
	NodeDisconnected(remoteNode int)

	HandleNewModule(remoteNode, localID int, name, typeName string, numChannels int)
	HandleDeletedModule(remoteNode, localID int)
	HandleSubscribe(remoteNode, publisherLocalID, channel int)
	HandleUnsubscribe(remoteNode, publisherLocalID, channel int)
	HandleGetData(remoteNode, publisherLocalID, channel, requestID int)
	HandleSubscribedData(remoteNode, publisherLocalID, channel int, data []byte)
	HandleGlobalMessage(remoteNode, senderGlobalID, receiverGlobalID, messageID int, data []byte)
}
