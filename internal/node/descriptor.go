package node

import "github.com/mato-framework/mato/internal/buffer"

// Descriptor is a borrowed reference to a channel's payload, returned by
// BorrowData and handed to Borrowed-kind subscription callbacks. Callers
// must pass it to Node.ReleaseData exactly once.
type Descriptor struct {
	nodeID, localID, channel int
	desc                     *buffer.Descriptor
}

// Bytes returns the payload. The slice is only valid until ReleaseData is
// called.
func (d *Descriptor) Bytes() []byte {
	if d == nil || d.desc == nil {
		return nil
	}
	return d.desc.Bytes
}
