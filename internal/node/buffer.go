package node

import (
	"context"
	"fmt"

	"github.com/mato-framework/mato/internal/ids"
	"github.com/mato-framework/mato/internal/matoutil"
	"github.com/mato-framework/mato/internal/redistribute"
)

// PostData enqueues a payload for the redistribution loop; it is
// non-blocking in the common case, matching post_data's reliance on an
// atomic pointer-sized write in the original (§5). The framework takes
// ownership of data's bytes — PostData copies them before returning, so
// the caller mutating the slice afterwards is never observed.
func (n *Node) PostData(globalID, channel int, data []byte) {
	n.loop.Enqueue(redistribute.Post{PublisherGlobalID: globalID, Channel: channel, Data: matoutil.CopyBytes(data)})
}

// GetData returns a fresh copy of a channel's current head, never
// altering refcounts, per §4.3. For a remote module with no local
// subscription caching its value, it issues M5/M6 over the transport and
// blocks on ctx.
func (n *Node) GetData(ctx context.Context, globalID, channel int) ([]byte, error) {
	nodeID, localID := ids.Split(globalID)
	if nodeID == n.id {
		data, ok := n.reg.GetHead(nodeID, localID, channel)
		if !ok {
			return nil, nil
		}
		return data, nil
	}
	if len(n.reg.SnapshotSubscriptions(nodeID, localID, channel)) > 0 {
		if data, ok := n.reg.GetHead(nodeID, localID, channel); ok {
			return data, nil
		}
	}
	return n.transport.RequestRemoteData(ctx, nodeID, localID, channel)
}

// BorrowData increments the head descriptor's refcount and returns its
// bytes; the caller must call ReleaseData exactly once when done.
// Borrowing from a remote module is not supported — only a subscription
// can observe a remote channel's live value (§4.3 restricts the one-shot
// remote waiter to get_data).
func (n *Node) BorrowData(globalID, channel int) (*Descriptor, error) {
	nodeID, localID := ids.Split(globalID)
	if nodeID != n.id {
		return nil, fmt.Errorf("mato: cannot borrow_data from remote module %d", globalID)
	}
	desc, ok := n.reg.BorrowHead(nodeID, localID, channel)
	if !ok {
		return nil, nil
	}
	return &Descriptor{nodeID: nodeID, localID: localID, channel: channel, desc: desc}, nil
}

// ReleaseData drops a reference obtained from BorrowData or a Borrowed
// subscription delivery.
func (n *Node) ReleaseData(d *Descriptor) {
	if d == nil {
		return
	}
	n.reg.ReleaseDescriptor(d.nodeID, d.localID, d.channel, d.desc)
}
