package node

import (
	"fmt"

	"github.com/mato-framework/mato/internal/buffer"
	"github.com/mato-framework/mato/internal/ids"
	"github.com/mato-framework/mato/internal/registry"
)

// PointerCallback and CopyCallback receive the payload bytes directly;
// there is nothing to release.
type PointerCallback func(senderGlobalID int, data []byte)

// BorrowedCallback receives a Descriptor the callee must eventually pass
// to ReleaseData.
type BorrowedCallback func(senderGlobalID int, d *Descriptor)

// Subscribe registers subscriberGlobalID (which must be local) as a
// Pointer- or Copy-kind subscriber of publisherGlobalID's channel. When
// this is the first subscription to a remote channel, it sends M3.
func (n *Node) Subscribe(subscriberGlobalID, publisherGlobalID, channel int, kind Kind, cb PointerCallback) (int, error) {
	if kind == registry.Borrowed {
		return 0, fmt.Errorf("mato: use SubscribeBorrowed for Borrowed-kind subscriptions")
	}
	subID, wasFirst, err := n.reg.Subscribe(subscriberGlobalID, publisherGlobalID, channel, kind,
		func(senderGlobalID int, data []byte, _ *buffer.Descriptor) { cb(senderGlobalID, data) })
	if err != nil {
		return 0, err
	}
	n.maybeSendRemoteSubscribe(publisherGlobalID, channel, wasFirst)
	return subID, nil
}

// SubscribeBorrowed registers a Borrowed-kind subscription; cb receives a
// Descriptor it must release via ReleaseData.
func (n *Node) SubscribeBorrowed(subscriberGlobalID, publisherGlobalID, channel int, cb BorrowedCallback) (int, error) {
	nodeID, localID := ids.Split(publisherGlobalID)
	subID, wasFirst, err := n.reg.Subscribe(subscriberGlobalID, publisherGlobalID, channel, registry.Borrowed,
		func(senderGlobalID int, data []byte, token *buffer.Descriptor) {
			cb(senderGlobalID, &Descriptor{nodeID: nodeID, localID: localID, channel: channel, desc: token})
		})
	if err != nil {
		return 0, err
	}
	n.maybeSendRemoteSubscribe(publisherGlobalID, channel, wasFirst)
	return subID, nil
}

func (n *Node) maybeSendRemoteSubscribe(publisherGlobalID, channel int, wasFirst bool) {
	nodeID, localID := ids.Split(publisherGlobalID)
	if nodeID == n.id || !wasFirst {
		return
	}
	_ = n.transport.SendSubscribe(nodeID, localID, channel)
}

// Unsubscribe cancels a subscription. When it was the last subscription
// to a remote channel, it sends M4.
func (n *Node) Unsubscribe(publisherGlobalID, channel, subID int) error {
	wasLast, err := n.reg.Unsubscribe(publisherGlobalID, channel, subID)
	if err != nil {
		return err
	}
	nodeID, localID := ids.Split(publisherGlobalID)
	if wasLast && nodeID != n.id {
		_ = n.transport.SendUnsubscribe(nodeID, localID, channel)
	}
	return nil
}
