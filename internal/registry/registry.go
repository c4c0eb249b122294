package registry

import (
	"fmt"
	"sync"

	"github.com/mato-framework/mato/internal/buffer"
	"github.com/mato-framework/mato/internal/ids"
)

// Registry holds every module type, module instance, subscription and
// channel buffer list known to this node. All of it is protected by a
// single mutex, matching the original's framework_mutex: module callbacks
// are always invoked with the lock released (see redistribute.Loop).
type Registry struct {
	mu sync.Mutex

	thisNode int
	types    map[string]ModuleSpec
	nodes    map[int]*nodeTable
	dangling buffer.DanglingList
	threads  int
}

type nodeTable struct {
	modules     map[int]*instance
	channels    map[channelKey]*channelState
	nextLocalID int
	nextSubID   int
}

type channelKey struct {
	module  int
	channel int
}

func newNodeTable() *nodeTable {
	return &nodeTable{
		modules:  make(map[int]*instance),
		channels: make(map[channelKey]*channelState),
	}
}

// New creates a registry for the node identified by thisNode.
func New(thisNode int) *Registry {
	return &Registry{
		thisNode: thisNode,
		types:    make(map[string]ModuleSpec),
		nodes:    map[int]*nodeTable{thisNode: newNodeTable()},
	}
}

// ThisNode returns the node id this registry belongs to.
func (r *Registry) ThisNode() int { return r.thisNode }

func (r *Registry) node(id int) *nodeTable {
	nt, ok := r.nodes[id]
	if !ok {
		nt = newNodeTable()
		r.nodes[id] = nt
	}
	return nt
}

func (r *Registry) channel(nt *nodeTable, module, ch int) *channelState {
	key := channelKey{module, ch}
	cs, ok := nt.channels[key]
	if !ok {
		cs = &channelState{}
		nt.channels[key] = cs
	}
	return cs
}

// RegisterType registers a new module type. Fails if the name is already
// registered; types are immutable for the process lifetime (§3).
func (r *Registry) RegisterType(name string, spec ModuleSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[name]; exists {
		return fmt.Errorf("mato: module type %q already registered", name)
	}
	r.types[name] = spec
	return nil
}

// TypeSpec returns the registered spec for a type name.
func (r *Registry) TypeSpec(name string) (ModuleSpec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	spec, ok := r.types[name]
	return spec, ok
}

// CreateInstance allocates a fresh local id on this node, registers the
// instance and its channel tables, and returns the global id. The
// caller is responsible for invoking spec.Create outside the lock (the
// node package does so, mirroring mato_create_new_module_instance's
// unlock-call-lock dance so Create can itself call back into the
// registry without deadlocking).
func (r *Registry) CreateInstance(typeName, name string) (globalID int, spec ModuleSpec, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	spec, ok := r.types[typeName]
	if !ok {
		return 0, ModuleSpec{}, fmt.Errorf("mato: unknown module type %q", typeName)
	}

	nt := r.node(r.thisNode)
	for _, inst := range nt.modules {
		if inst.name == name {
			return 0, ModuleSpec{}, fmt.Errorf("mato: module name %q already in use on this node", name)
		}
	}
	if nt.nextLocalID > ids.MaxLocalID {
		return 0, ModuleSpec{}, fmt.Errorf("mato: node %d has reached the %d live module limit", r.thisNode, ids.MaxLocalID+1)
	}

	localID := nt.nextLocalID
	nt.nextLocalID++

	nt.modules[localID] = &instance{
		localID:          localID,
		name:             name,
		typeName:         typeName,
		numberOfChannels: spec.NumberOfChannels,
		local:            true,
	}
	for ch := 0; ch < spec.NumberOfChannels; ch++ {
		nt.channels[channelKey{localID, ch}] = &channelState{}
	}

	return ids.Global(r.thisNode, localID), spec, nil
}

// SetInstanceState stores the state object spec.Create returned, and marks
// the instance startable.
func (r *Registry) SetInstanceState(globalID int, state any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.localInstance(globalID)
	if !ok {
		return fmt.Errorf("mato: no such local instance %d", globalID)
	}
	inst.state = state
	return nil
}

func (r *Registry) localInstance(globalID int) (*instance, bool) {
	node, local := ids.Split(globalID)
	if node != r.thisNode {
		return nil, false
	}
	nt := r.node(r.thisNode)
	inst, ok := nt.modules[local]
	return inst, ok
}

// InstanceState returns the module's opaque instance state and its
// registered spec, for Start/Delete/OnMessage dispatch.
func (r *Registry) InstanceState(globalID int) (state any, spec ModuleSpec, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, found := r.localInstance(globalID)
	if !found {
		return nil, ModuleSpec{}, false
	}
	spec, ok = r.types[inst.typeName]
	return inst.state, spec, ok
}

// MarkStarted records that Start has been invoked for this instance.
func (r *Registry) MarkStarted(globalID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.localInstance(globalID); ok {
		inst.started = true
	}
}

// AllLocalGlobalIDs returns the global ids of every local instance, in
// creation order, for start_all.
func (r *Registry) AllLocalGlobalIDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	nt := r.node(r.thisNode)
	locals := make([]int, 0, len(nt.modules))
	for local := range nt.modules {
		locals = append(locals, local)
	}
	sortInts(locals)
	out := make([]int, len(locals))
	for i, local := range locals {
		out[i] = ids.Global(r.thisNode, local)
	}
	return out
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// ModuleIDByName resolves a local module name to its global id.
func (r *Registry) ModuleIDByName(name string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nt := r.node(r.thisNode)
	for local, inst := range nt.modules {
		if inst.name == name {
			return ids.Global(r.thisNode, local), true
		}
	}
	return 0, false
}

// Info returns introspection data for any known module, local or remote.
func (r *Registry) Info(globalID int) (ModuleInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, local := ids.Split(globalID)
	nt, ok := r.nodes[node]
	if !ok {
		return ModuleInfo{}, false
	}
	inst, ok := nt.modules[local]
	if !ok {
		return ModuleInfo{}, false
	}
	return ModuleInfo{
		GlobalID:         globalID,
		NodeID:           node,
		LocalID:          local,
		Name:             inst.name,
		TypeName:         inst.typeName,
		NumberOfChannels: inst.numberOfChannels,
		Local:            inst.local,
	}, true
}

// ListModules returns introspection data for every module known across
// every node (local and remote), the analogue of list_of_all_modules.
func (r *Registry) ListModules() []ModuleInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ModuleInfo
	for node, nt := range r.nodes {
		for local, inst := range nt.modules {
			out = append(out, ModuleInfo{
				GlobalID:         ids.Global(node, local),
				NodeID:           node,
				LocalID:          local,
				Name:             inst.name,
				TypeName:         inst.typeName,
				NumberOfChannels: inst.numberOfChannels,
				Local:            inst.local,
			})
		}
	}
	return out
}

// ListTypes returns every registered module type name.
func (r *Registry) ListTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	return out
}

// IncThreadCount / DecThreadCount / ThreadCount back inc_thread_count,
// dec_thread_count and the shutdown poll described in §5.
func (r *Registry) IncThreadCount() {
	r.mu.Lock()
	r.threads++
	r.mu.Unlock()
}

func (r *Registry) DecThreadCount() {
	r.mu.Lock()
	r.threads--
	r.mu.Unlock()
}

func (r *Registry) ThreadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.threads
}

// DanglingCount reports how many descriptors are parked in the dangling
// list, for tests and diagnostics.
func (r *Registry) DanglingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dangling.Len()
}

// ActiveSubscriptionCount reports the total number of live subscriptions
// across every channel this registry knows about, local or remote
// publisher, for matometrics' gauge.
func (r *Registry) ActiveSubscriptionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, nt := range r.nodes {
		for _, cs := range nt.channels {
			total += len(cs.subs)
		}
	}
	return total
}
