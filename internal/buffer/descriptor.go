// Package buffer defines the payload descriptor that Mato's registry
// threads through the redistribution loop, subscriber deliveries, and the
// dangling list. Descriptors are not self-locking: every mutation of
// refcount happens while the caller holds the registry's framework lock,
// mirroring the single coarse mutex the original framework_mutex enforced.
package buffer

// Descriptor is a framework-owned record wrapping one posted payload.
// Invariant: refcount >= 0; when it reaches 0 the descriptor is unlinked
// from whatever list holds it and Bytes is released for GC.
type Descriptor struct {
	OwnerNode   int
	OwnerModule int // local id on OwnerNode
	Channel     int
	Bytes       []byte
	refcount    int
}

// New creates a descriptor with refcount 0, as the original post_data path
// does: the redistribution loop is the one that brings it to life.
func New(ownerNode, ownerModule, channel int, data []byte) *Descriptor {
	// Bytes are copied on the way in so the descriptor never shares its
	// backing array with the slice it was built from.
	owned := make([]byte, len(data))
	copy(owned, data)
	return &Descriptor{
		OwnerNode:   ownerNode,
		OwnerModule: ownerModule,
		Channel:     channel,
		Bytes:       owned,
	}
}

// Len returns the payload length.
func (d *Descriptor) Len() int { return len(d.Bytes) }

// Refcount returns the current reference count. Callers must hold the
// registry lock; it exists mainly for invariant checks in tests.
func (d *Descriptor) Refcount() int { return d.refcount }

// Retain increments the reference count by n. Called for: installation as
// head+in-flight (n=2), a borrowed delivery (n=1), mato_borrow_data (n=1).
func (d *Descriptor) Retain(n int) {
	d.refcount += n
}

// Release decrements the reference count by n and reports whether the
// descriptor has now reached zero and should be unlinked and freed. A
// negative result after decrement is an implementation bug and panics,
// per §7's "internal invariant violation... must assert and terminate".
func (d *Descriptor) Release(n int) (freed bool) {
	d.refcount -= n
	if d.refcount < 0 {
		panic("mato: buffer refcount went negative")
	}
	return d.refcount == 0
}
