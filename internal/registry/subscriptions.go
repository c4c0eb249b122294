package registry

import (
	"fmt"

	"github.com/mato-framework/mato/internal/ids"
)

// Subscribe registers subscriberGlobalID (which must be local to this
// node) as a subscriber of publisherGlobalID's channel. Returns the new
// subscription id, drawn from this node's monotone counter, and whether
// this was the first subscription to the channel — the caller's signal
// to send M3 to a remote publisher.
func (r *Registry) Subscribe(subscriberGlobalID, publisherGlobalID, channel int, kind Kind, cb Callback) (subID int, wasFirst bool, err error) {
	subNode, subLocal := ids.Split(subscriberGlobalID)
	if subNode != r.thisNode {
		return 0, false, fmt.Errorf("mato: subscriber %d is not local to node %d", subscriberGlobalID, r.thisNode)
	}
	pubNode, pubLocal := ids.Split(publisherGlobalID)

	r.mu.Lock()
	defer r.mu.Unlock()

	pubNt, ok := r.nodes[pubNode]
	if !ok {
		return 0, false, fmt.Errorf("mato: unknown publisher node %d", pubNode)
	}
	if _, ok := pubNt.modules[pubLocal]; !ok {
		return 0, false, fmt.Errorf("mato: unknown publisher module %d", publisherGlobalID)
	}

	subNt := r.node(r.thisNode)
	subID = subNt.nextSubID
	subNt.nextSubID++

	cs := r.channel(pubNt, pubLocal, channel)
	wasFirst = len(cs.subs) == 0
	cs.subs = append(cs.subs, &Subscription{
		ID:               subID,
		Kind:             kind,
		SubscriberNode:   subNode,
		SubscriberModule: subLocal,
		Callback:         cb,
	})
	return subID, wasFirst, nil
}

// SubscribeRemoteForward registers a remote node as a subscriber of one of
// this node's local channels, in response to an incoming M3 SUBSCRIBE
// frame. The subscription id is local bookkeeping only — it is never
// transmitted back to the remote node.
func (r *Registry) SubscribeRemoteForward(publisherLocalID, channel, remoteSubscriberNode int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	nt := r.node(r.thisNode)
	subID := nt.nextSubID
	nt.nextSubID++

	cs := r.channel(nt, publisherLocalID, channel)
	cs.subs = append(cs.subs, &Subscription{
		ID:             subID,
		Kind:           RemoteForward,
		SubscriberNode: remoteSubscriberNode,
	})
	return subID
}

// Unsubscribe cancels a subscription previously returned by Subscribe.
// Returns whether that was the last subscription on the channel (the
// caller uses this to decide whether to send M4 to a remote publisher).
func (r *Registry) Unsubscribe(publisherGlobalID, channel, subID int) (wasLast bool, err error) {
	pubNode, pubLocal := ids.Split(publisherGlobalID)

	r.mu.Lock()
	defer r.mu.Unlock()

	pubNt, ok := r.nodes[pubNode]
	if !ok {
		return false, fmt.Errorf("mato: unknown publisher node %d", pubNode)
	}
	cs, ok := pubNt.channels[channelKey{pubLocal, channel}]
	if !ok {
		return false, fmt.Errorf("mato: unknown channel %d on module %d", channel, publisherGlobalID)
	}
	for i, s := range cs.subs {
		if s.ID == subID {
			cs.subs = append(cs.subs[:i], cs.subs[i+1:]...)
			return len(cs.subs) == 0, nil
		}
	}
	return false, fmt.Errorf("mato: no such subscription %d", subID)
}

// UnsubscribeRemoteForward cancels a remote node's forwarding subscription
// on a local channel, in response to M4 UNSUBSCRIBE.
func (r *Registry) UnsubscribeRemoteForward(publisherLocalID, channel, remoteSubscriberNode int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nt := r.node(r.thisNode)
	cs, ok := nt.channels[channelKey{publisherLocalID, channel}]
	if !ok {
		return
	}
	for i, s := range cs.subs {
		if s.Kind == RemoteForward && s.SubscriberNode == remoteSubscriberNode {
			cs.subs = append(cs.subs[:i], cs.subs[i+1:]...)
			return
		}
	}
}

// SubscriptionSnapshot is a value copy of a Subscription taken under lock,
// safe to range over after the lock is released — the mechanism §4.4
// calls "snapshot + re-resolve".
type SubscriptionSnapshot struct {
	ID   int
	Kind Kind
}

// SnapshotSubscriptions copies the current subscription ids of a channel.
func (r *Registry) SnapshotSubscriptions(nodeID, localID, channel int) []SubscriptionSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	nt, ok := r.nodes[nodeID]
	if !ok {
		return nil
	}
	cs, ok := nt.channels[channelKey{localID, channel}]
	if !ok {
		return nil
	}
	out := make([]SubscriptionSnapshot, len(cs.subs))
	for i, s := range cs.subs {
		out[i] = SubscriptionSnapshot{ID: s.ID, Kind: s.Kind}
	}
	return out
}

// ResolveSubscription re-resolves a subscription id after the lock has
// been released and reacquired; it returns ok=false if the subscription
// vanished in the meantime (unsubscribed, module deleted, node gone).
func (r *Registry) ResolveSubscription(nodeID, localID, channel, subID int) (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nt, ok := r.nodes[nodeID]
	if !ok {
		return nil, false
	}
	cs, ok := nt.channels[channelKey{localID, channel}]
	if !ok {
		return nil, false
	}
	for _, s := range cs.subs {
		if s.ID == subID {
			cp := *s
			return &cp, true
		}
	}
	return nil, false
}
