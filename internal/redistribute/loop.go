// Package redistribute implements the single-consumer redistribution loop
// (C4): the one task that drains posted payloads, installs each as its
// channel's new head, and fans it out to local subscribers and, through a
// Forwarder, to remote ones — all per the snapshot-then-reresolve
// discipline of §4.4, which lets a subscriber callback freely subscribe,
// unsubscribe, post, or delete without deadlocking the loop.
package redistribute

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mato-framework/mato/internal/buffer"
	"github.com/mato-framework/mato/internal/ids"
	"github.com/mato-framework/mato/internal/matometrics"
	"github.com/mato-framework/mato/internal/matoutil"
	"github.com/mato-framework/mato/internal/registry"
)

// Post is one payload crossing the producer/consumer handoff described in
// §5: module threads are producers, the Loop is the sole consumer.
type Post struct {
	PublisherGlobalID int
	Channel           int
	Data              []byte
}

// Forwarder hands a subscribed-data frame to the transport layer for a
// remote subscriber. Implemented by internal/transport.
type Forwarder interface {
	ForwardSubscribedData(remoteNode, publisherLocalID, channel int, data []byte)
}

// Loop owns the consumer end of the post queue.
type Loop struct {
	reg       *registry.Registry
	forwarder Forwarder
	queue     chan Post
	metrics   *matometrics.Metrics
}

// defaultQueueDepth bounds how many posts may be in flight before PostData
// blocks its caller; the original relies on an OS pipe's kernel buffer for
// the equivalent slack.
const defaultQueueDepth = 4096

// New creates a redistribution loop bound to reg, forwarding remote
// deliveries through forwarder.
func New(reg *registry.Registry, forwarder Forwarder) *Loop {
	return &Loop{
		reg:       reg,
		forwarder: forwarder,
		queue:     make(chan Post, defaultQueueDepth),
		metrics:   matometrics.New(),
	}
}

// Enqueue pushes a post onto the queue. It is the non-blocking path
// post_data relies on in the common case (queue has slack); it only
// blocks the calling module thread if the queue is saturated, exactly as
// a full OS pipe would.
func (l *Loop) Enqueue(p Post) {
	l.queue <- p
	l.metrics.RedistributeQueueDepth.Set(float64(len(l.queue)))
}

// Run drains the queue until ctx is cancelled, at which point it drains
// whatever is already buffered and returns — mirroring "closes the
// post-queue writer" from §5's shutdown sequence.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.drain()
			return
		case p := <-l.queue:
			l.deliver(p)
		}
	}
}

func (l *Loop) drain() {
	for {
		select {
		case p := <-l.queue:
			l.deliver(p)
		default:
			return
		}
	}
}

// deliver runs the five steps of §4.4 for a single post.
func (l *Loop) deliver(p Post) {
	l.metrics.RedistributeQueueDepth.Set(float64(len(l.queue)))
	node, local := ids.Split(p.PublisherGlobalID)

	desc, err := l.reg.InstallHead(p.PublisherGlobalID, p.Channel, p.Data)
	if err != nil {
		log.Warn().Err(err).Int("module", p.PublisherGlobalID).Int("channel", p.Channel).
			Msg("redistribute: dropping post for vanished module")
		return
	}
	l.metrics.PostsTotal.WithLabelValues(strconv.Itoa(node)).Inc()

	snapshot := l.reg.SnapshotSubscriptions(node, local, p.Channel)
	for _, s := range snapshot {
		sub, ok := l.reg.ResolveSubscription(node, local, p.Channel, s.ID)
		if !ok {
			continue
		}
		l.dispatch(node, local, p.Channel, p.PublisherGlobalID, desc, sub)
	}

	l.reg.FinishDelivery(node, local, p.Channel, desc)
}

func (l *Loop) dispatch(node, local, channel, publisherGlobalID int, desc *buffer.Descriptor, sub *registry.Subscription) {
	l.metrics.DeliveriesTotal.WithLabelValues(sub.Kind.String()).Inc()
	switch sub.Kind {
	case registry.Pointer:
		l.invokeCallback(sub, publisherGlobalID, desc.Bytes, nil)

	case registry.Copy:
		l.invokeCallback(sub, publisherGlobalID, matoutil.CopyBytes(desc.Bytes), nil)

	case registry.Borrowed:
		l.reg.RetainForDelivery(desc)
		l.invokeCallback(sub, publisherGlobalID, desc.Bytes, desc)

	case registry.RemoteForward:
		if l.forwarder != nil {
			l.forwarder.ForwardSubscribedData(sub.SubscriberNode, local, channel, desc.Bytes)
		}
	}
}

// invokeCallback runs a subscriber's callback with the same
// recover-and-log discipline internal/node's invokeOnMessage uses: a
// panicking subscriber must not take down the one goroutine standing
// in for C4's single-consumer thread.
func (l *Loop) invokeCallback(sub *registry.Subscription, publisherGlobalID int, data []byte, desc *buffer.Descriptor) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int("subscriber", sub.ID).
				Msg("redistribute: subscriber callback panicked")
		}
	}()
	sub.Callback(publisherGlobalID, data, desc)
}
