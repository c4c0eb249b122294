package registry

import (
	"fmt"

	"github.com/mato-framework/mato/internal/buffer"
	"github.com/mato-framework/mato/internal/ids"
)

// InstallHead makes data the new head of publisherGlobalID's channel,
// exactly mirroring mato_core_thread's handling of an incoming
// channel_data: the new descriptor starts at refcount 2 (one for sitting
// as head, one for the in-flight redistribution pass that is about to
// read it), and the previous head loses the reference it held as head.
// The old head's bytes are never mutated here. If losing its head
// reference drops it to zero it is unlinked immediately; otherwise a
// borrower or an in-flight delivery still holds it and it stays in the
// list until released.
func (r *Registry) InstallHead(publisherGlobalID, channel int, data []byte) (*buffer.Descriptor, error) {
	node, local := ids.Split(publisherGlobalID)

	r.mu.Lock()
	defer r.mu.Unlock()

	nt, ok := r.nodes[node]
	if !ok {
		return nil, fmt.Errorf("mato: unknown module %d", publisherGlobalID)
	}
	if _, ok := nt.modules[local]; !ok {
		return nil, fmt.Errorf("mato: unknown module %d", publisherGlobalID)
	}
	cs := r.channel(nt, local, channel)

	desc := buffer.New(node, local, channel, data)
	desc.Retain(2)

	if len(cs.descriptors) > 0 {
		old := cs.descriptors[0]
		if old.Release(1) {
			cs.descriptors = cs.descriptors[1:]
		}
	}
	cs.descriptors = append([]*buffer.Descriptor{desc}, cs.descriptors...)
	return desc, nil
}

// FinishDelivery drops the in-flight reference InstallHead granted once
// the redistribution pass over a descriptor's subscribers has completed.
// If the descriptor is no longer the channel head (a newer one replaced
// it mid-delivery) and no borrower kept it alive, this is what actually
// frees it.
func (r *Registry) FinishDelivery(nodeID, localID, channel int, desc *buffer.Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if desc.Release(1) {
		r.forgetDescriptorLocked(nodeID, localID, channel, desc)
	}
}

// GetHead returns an independent copy of the current head bytes of a
// channel, the analogue of mato_get_data; ok is false if the channel has
// never had data posted.
func (r *Registry) GetHead(nodeID, localID, channel int) (data []byte, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nt, exists := r.nodes[nodeID]
	if !exists {
		return nil, false
	}
	cs, exists := nt.channels[channelKey{localID, channel}]
	if !exists || len(cs.descriptors) == 0 {
		return nil, false
	}
	head := cs.descriptors[0]
	out := make([]byte, head.Len())
	copy(out, head.Bytes)
	return out, true
}

// BorrowHead increments the head descriptor's refcount and returns it, the
// analogue of mato_borrow_data. The caller must eventually call
// ReleaseDescriptor exactly once for the returned descriptor.
func (r *Registry) BorrowHead(nodeID, localID, channel int) (*buffer.Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nt, exists := r.nodes[nodeID]
	if !exists {
		return nil, false
	}
	cs, exists := nt.channels[channelKey{localID, channel}]
	if !exists || len(cs.descriptors) == 0 {
		return nil, false
	}
	head := cs.descriptors[0]
	head.Retain(1)
	return head, true
}

// RetainForDelivery increments a descriptor's refcount for a borrowed-kind
// delivery, mirroring the "refcount += 1 before the callback" row of
// §4.3's event table. The subscriber is expected to call
// ReleaseDescriptor once it is done with the bytes.
func (r *Registry) RetainForDelivery(desc *buffer.Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	desc.Retain(1)
}

// ReleaseDescriptor drops a borrowed reference, the analogue of
// mato_release_data. It is an error to release a descriptor the caller
// did not legitimately borrow; callers are expected to release each
// borrowed descriptor exactly once.
func (r *Registry) ReleaseDescriptor(nodeID, localID, channel int, desc *buffer.Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if desc.Release(1) {
		r.forgetDescriptorLocked(nodeID, localID, channel, desc)
		r.dangling.Remove(desc)
	}
}

// forgetDescriptorLocked removes a freed descriptor from whichever channel
// list still references it (it may no longer be the head, or may have
// already been moved to the dangling list by a teardown). Caller holds
// r.mu.
func (r *Registry) forgetDescriptorLocked(nodeID, localID, channel int, desc *buffer.Descriptor) {
	nt, ok := r.nodes[nodeID]
	if !ok {
		return
	}
	cs, ok := nt.channels[channelKey{localID, channel}]
	if !ok {
		return
	}
	for i, d := range cs.descriptors {
		if d == desc {
			cs.descriptors = append(cs.descriptors[:i], cs.descriptors[i+1:]...)
			return
		}
	}
}
