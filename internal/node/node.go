// Package node implements C5, the public surface modules and host
// programs use: register_type, create/start/delete instance,
// subscribe/unsubscribe, post/get/borrow/release, send_global/send_message,
// and shutdown. It wires together the registry (C2/C3), the
// redistribution loop (C4), and the node transport (C6) behind one
// facade, supervised by an errgroup so any task's fatal error tears the
// whole node down together.
package node

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mato-framework/mato/internal/ids"
	"github.com/mato-framework/mato/internal/redistribute"
	"github.com/mato-framework/mato/internal/registry"
	"github.com/mato-framework/mato/internal/transport"
)

// ModuleSpec is the capability set a module type exposes, re-exported so
// callers of this package never need to import internal/registry
// directly.
type ModuleSpec = registry.ModuleSpec

// Kind is a subscription's delivery mode.
type Kind = registry.Kind

const (
	Pointer  = registry.Pointer
	Copy     = registry.Copy
	Borrowed = registry.Borrowed
)

// Callback is invoked for pointer/copy/borrowed subscription deliveries.
type Callback = registry.Callback

// OnMessage is invoked for unicast and broadcast messages.
type OnMessage = registry.OnMessage

// ModuleInfo is the introspection view returned by ListModules.
type ModuleInfo = registry.ModuleInfo

// Reserved identifiers, re-exported from internal/ids.
const (
	MainProgramModule = ids.MainProgramModule
	Broadcast         = ids.Broadcast
)

// Node is one running Mato process: the registry, redistribution loop,
// and transport bound together and exposed through the C5 operations.
type Node struct {
	id int

	reg       *registry.Registry
	loop      *redistribute.Loop
	transport *transport.Node

	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// Config collects the construction-time parameters a host program reads
// out of the nodes config file and command line.
type Config struct {
	NodeID     int
	ListenPort int
	Peers      []transport.PeerConfig
}

// New constructs a Node but does not start any background task; call
// Run to bring the redistribution loop and transport online.
func New(cfg Config) *Node {
	n := &Node{
		id:  cfg.NodeID,
		reg: registry.New(cfg.NodeID),
	}
	n.transport = transport.New(cfg.NodeID, cfg.ListenPort, cfg.Peers, (*handlerAdapter)(n))
	n.loop = redistribute.New(n.reg, n.transport)
	return n
}

// ID returns this process's node id.
func (n *Node) ID() int { return n.id }

// Run brings the redistribution loop, transport, and (via the errgroup)
// every other long-lived task online, and blocks until ctx is cancelled
// or one of them returns a fatal error. It implements the
// program_runs/task-counter shutdown model of §5 in Go idiom: cancelling
// ctx is the "program_runs = false" write, and group.Wait() is the
// bounded wait for every task to exit.
func (n *Node) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.running.Store(true)
	defer n.running.Store(false)

	g, gctx := errgroup.WithContext(ctx)
	n.group = g

	g.Go(func() error {
		n.loop.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return n.transport.Run(gctx)
	})

	return g.Wait()
}

// Shutdown cancels the node's context, which stops accepting new work
// and drains every background task; it blocks until they have all
// exited, polling every 10ms until Run has returned and the module
// thread count is back to zero.
func (n *Node) Shutdown() {
	if n.cancel != nil {
		n.cancel()
	}
	for n.running.Load() || n.reg.ThreadCount() > 0 {
		time.Sleep(10 * time.Millisecond)
	}
}

// Running reports whether Run is currently active, the Go analogue of
// checking program_runs.
func (n *Node) Running() bool { return n.running.Load() }

// RegisterType registers a new module type, idempotently failing if the
// name is already taken.
func (n *Node) RegisterType(name string, spec ModuleSpec) error {
	return n.reg.RegisterType(name, spec)
}

// CreateInstance allocates a fresh local id, invokes spec.Create with the
// registry lock released (mirroring the original's unlock/call/relock
// dance so Create may itself call back into the node), and announces the
// instance to every connected peer via M1.
func (n *Node) CreateInstance(typeName, name string) (int, error) {
	globalID, spec, err := n.reg.CreateInstance(typeName, name)
	if err != nil {
		return 0, err
	}

	var state any
	if spec.Create != nil {
		state, err = spec.Create(globalID)
		if err != nil {
			log.Error().Err(err).Str("type", typeName).Str("name", name).Msg("node: module Create failed")
			return 0, fmt.Errorf("mato: creating %q instance %q: %w", typeName, name, err)
		}
	}
	if err := n.reg.SetInstanceState(globalID, state); err != nil {
		return 0, err
	}

	_, localID := ids.Split(globalID)
	n.transport.BroadcastNewModule(localID, name, typeName, spec.NumberOfChannels)
	return globalID, nil
}

// StartInstance invokes spec.Start(state) with the registry lock
// released.
func (n *Node) StartInstance(globalID int) error {
	state, spec, ok := n.reg.InstanceState(globalID)
	if !ok {
		return fmt.Errorf("mato: no such local instance %d", globalID)
	}
	n.reg.MarkStarted(globalID)
	if spec.Start == nil {
		return nil
	}
	if err := spec.Start(state); err != nil {
		log.Error().Err(err).Int("module", globalID).Msg("node: module Start failed")
		return err
	}
	return nil
}

// StartAll invokes StartInstance for every module currently hosted on
// this node, in creation order.
func (n *Node) StartAll() error {
	for _, gid := range n.reg.AllLocalGlobalIDs() {
		if err := n.StartInstance(gid); err != nil {
			return err
		}
	}
	return nil
}

// DeleteInstance calls spec.Delete(state) with the lock released, then
// cancels subscriptions to/from the module, decrements channel heads,
// moves borrowed descriptors to the dangling list, and broadcasts M2.
func (n *Node) DeleteInstance(globalID int) error {
	state, spec, err := n.reg.PrepareDelete(globalID)
	if err != nil {
		return err
	}
	if spec.Delete != nil {
		if err := spec.Delete(state); err != nil {
			log.Error().Err(err).Int("module", globalID).Msg("node: module Delete returned an error")
		}
	}
	n.reg.FinalizeDelete(globalID)

	_, localID := ids.Split(globalID)
	n.transport.BroadcastDeletedModule(localID)
	return nil
}

// ListModules returns introspection data for every module known across
// every node.
func (n *Node) ListModules() []ModuleInfo { return n.reg.ListModules() }

// ConnectedPeerCount reports how many configured peers currently have a
// live transport connection.
func (n *Node) ConnectedPeerCount() int { return n.transport.ConnectedPeerCount() }

// ActiveSubscriptionCount reports the total number of live subscriptions
// across every channel this node knows about.
func (n *Node) ActiveSubscriptionCount() int { return n.reg.ActiveSubscriptionCount() }

// DanglingDescriptorCount reports how many payload descriptors are
// parked on the dangling list.
func (n *Node) DanglingDescriptorCount() int { return n.reg.DanglingCount() }

// ListTypes returns every registered module type name.
func (n *Node) ListTypes() []string { return n.reg.ListTypes() }

// ModuleID resolves a local module name to its global id.
func (n *Node) ModuleID(name string) (int, bool) { return n.reg.ModuleIDByName(name) }

// ModuleName and ModuleType back mato_get_module_name/mato_get_module_type.
func (n *Node) ModuleName(globalID int) (string, bool) {
	info, ok := n.reg.Info(globalID)
	return info.Name, ok
}

func (n *Node) ModuleType(globalID int) (string, bool) {
	info, ok := n.reg.Info(globalID)
	return info.TypeName, ok
}

// IncThreadCount / DecThreadCount back the inc_thread_count/dec_thread_count
// bracket module-owned workers are expected to call.
func (n *Node) IncThreadCount() { n.reg.IncThreadCount() }
func (n *Node) DecThreadCount() { n.reg.DecThreadCount() }
func (n *Node) ThreadCount() int { return n.reg.ThreadCount() }
