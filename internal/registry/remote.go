package registry

// StoreRemoteModule records (or overwrites) a module announced by another
// node via a NEW_MODULE_INSTANCE frame. Re-announcing the same local id is
// tolerated and overwrites rather than appends, per §6's duplicate-M1
// note; the dedup key is (node_id, local_id).
func (r *Registry) StoreRemoteModule(nodeID, localID int, name, typeName string, numChannels int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nt := r.node(nodeID)
	nt.modules[localID] = &instance{
		localID:          localID,
		name:             name,
		typeName:         typeName,
		numberOfChannels: numChannels,
		local:            false,
	}
	for ch := 0; ch < numChannels; ch++ {
		key := channelKey{localID, ch}
		if _, exists := nt.channels[key]; !exists {
			nt.channels[key] = &channelState{}
		}
	}
}

// RemoveRemoteModule drops a module a remote node announced as deleted
// (DELETED_MODULE_INSTANCE), cancelling subscriptions to/from it exactly
// as a local delete_instance would.
func (r *Registry) RemoveRemoteModule(nodeID, localID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tearDownModuleLocked(nodeID, localID)
}

// NodeIDs returns every node id this registry has ever heard of.
func (r *Registry) NodeIDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.nodes))
	for id := range r.nodes {
		out = append(out, id)
	}
	return out
}

// RemoveNode performs disconnect cleanup for a node that just went
// offline: every module it hosted is torn down (cancelling subscriptions
// in both directions, moving borrowed descriptors to the dangling list),
// and the node's module table is cleared so a later reconnect starts
// clean (§4.5).
func (r *Registry) RemoveNode(nodeID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nt, ok := r.nodes[nodeID]
	if !ok {
		return
	}
	localIDs := make([]int, 0, len(nt.modules))
	for local := range nt.modules {
		localIDs = append(localIDs, local)
	}
	for _, local := range localIDs {
		r.tearDownModuleLocked(nodeID, local)
	}

	// Any subscription anywhere that names this node as the subscriber
	// also disappears, even for channels the node did not publish.
	for _, other := range r.nodes {
		for _, cs := range other.channels {
			kept := cs.subs[:0]
			for _, s := range cs.subs {
				if s.SubscriberNode == nodeID {
					continue
				}
				kept = append(kept, s)
			}
			cs.subs = kept
		}
	}

	delete(r.nodes, nodeID)
}

// tearDownModuleLocked cancels every subscription to the module's
// channels, decrements the head of each (since it will never be
// refreshed again), and moves any descriptor still referenced by a
// borrower to the dangling list before removing the module entirely.
// Caller must hold r.mu.
func (r *Registry) tearDownModuleLocked(nodeID, localID int) {
	nt, ok := r.nodes[nodeID]
	if !ok {
		return
	}
	inst, ok := nt.modules[localID]
	if !ok {
		return
	}

	for ch := 0; ch < inst.numberOfChannels; ch++ {
		key := channelKey{localID, ch}
		cs, exists := nt.channels[key]
		if !exists {
			continue
		}

		if len(cs.descriptors) > 0 {
			head := cs.descriptors[0]
			if head.Release(1) {
				cs.descriptors = cs.descriptors[1:]
			}
		}
		for _, d := range cs.descriptors {
			r.dangling.Add(d)
		}
		cs.descriptors = nil
		cs.subs = nil
		delete(nt.channels, key)
	}

	// Cancel subscriptions this module (as subscriber) holds elsewhere.
	for _, other := range r.nodes {
		for _, cs := range other.channels {
			kept := cs.subs[:0]
			for _, s := range cs.subs {
				if s.SubscriberNode == nodeID && s.SubscriberModule == localID {
					continue
				}
				kept = append(kept, s)
			}
			cs.subs = kept
		}
	}

	delete(nt.modules, localID)
}
