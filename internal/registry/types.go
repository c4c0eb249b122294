// Package registry holds the module/channel/subscription tables that make
// up the heart of the Mato framework (C1+C2+C3 of the design). Every
// mutation — type registration, instance lifecycle, subscriptions, and
// payload refcounts — is serialized by a single framework mutex, matching
// the original's one coarse pthread_mutex_t.
package registry

import (
	"github.com/mato-framework/mato/internal/buffer"
)

// Kind is the delivery mode of a subscription.
type Kind int

const (
	// Pointer delivers the descriptor's bytes directly with no refcount
	// change; the callee must not retain the slice past the call.
	Pointer Kind = iota
	// Copy delivers an independently allocated copy the callee owns.
	Copy
	// Borrowed increments the refcount before the callback and requires
	// the callee to call ReleaseDescriptor when done.
	Borrowed
	// RemoteForward means the subscriber lives on another node; delivery
	// goes through the transport layer instead of a local callback.
	RemoteForward
)

func (k Kind) String() string {
	switch k {
	case Pointer:
		return "pointer"
	case Copy:
		return "copy"
	case Borrowed:
		return "borrowed"
	case RemoteForward:
		return "remote"
	default:
		return "unknown"
	}
}

// Callback is invoked for Pointer/Copy/Borrowed deliveries. senderGlobalID
// identifies the publishing module; data is the payload (a private copy
// for Copy, the live descriptor bytes otherwise). token is the
// descriptor backing data for a Borrowed delivery (nil for Pointer/Copy,
// which have nothing the callee must release) — callers that need to
// release it pass token back to Registry.ReleaseDescriptor.
type Callback func(senderGlobalID int, data []byte, token *buffer.Descriptor)

// OnMessage is invoked for both unicast and broadcast messages.
type OnMessage func(state any, senderGlobalID, msgID int, data []byte)

// ModuleSpec is the capability set a registered module type exposes, the
// Go analogue of the original's function-pointer module_specification.
type ModuleSpec struct {
	NumberOfChannels int
	Create           func(globalID int) (any, error)
	Start            func(state any) error
	Delete           func(state any) error
	OnMessage        OnMessage
}

// Subscription is a registration that a subscriber wants a publisher
// channel's payloads. It is stored under the publisher's
// (node, module, channel) tuple regardless of where the subscriber lives.
type Subscription struct {
	ID               int
	Kind             Kind
	SubscriberNode   int
	SubscriberModule int // local id on SubscriberNode
	Callback         Callback
}

// ModuleInfo is the introspection view of a module instance returned by
// ListModules, mato_get_module_name and friends.
type ModuleInfo struct {
	GlobalID         int
	NodeID           int
	LocalID          int
	Name             string
	TypeName         string
	NumberOfChannels int
	Local            bool
}

type instance struct {
	localID          int
	name             string
	typeName         string
	numberOfChannels int
	state            any
	started          bool
	local            bool // true for instances hosted on this node
}

type channelState struct {
	// descriptors[0], if any, is the head (most recently installed).
	descriptors []*buffer.Descriptor
	subs        []*Subscription
}
