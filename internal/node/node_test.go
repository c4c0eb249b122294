package node

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitForCond(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newSingleNode(t *testing.T, port int) (*Node, context.CancelFunc) {
	t.Helper()
	n := New(Config{NodeID: 1, ListenPort: port})
	ctx, cancel := context.WithCancel(context.Background())
	go n.Run(ctx)
	return n, cancel
}

// Scenario 1 of §8: one publisher, one pointer subscriber, ten posts
// delivered in order.
func TestSingleNodePointerSubscriberReceivesInOrder(t *testing.T) {
	n, cancel := newSingleNode(t, 29401)
	defer cancel()

	require.NoError(t, n.RegisterType("A", ModuleSpec{NumberOfChannels: 1}))
	a1, err := n.CreateInstance("A", "A1")
	require.NoError(t, err)
	a2, err := n.CreateInstance("A", "A2")
	require.NoError(t, err)

	var mu sync.Mutex
	var got []byte
	_, err = n.Subscribe(a2, a1, 0, Pointer, func(senderGlobalID int, data []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, data[0])
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		n.PostData(a1, 0, []byte{byte(i)})
	}

	waitForCond(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 10
	})

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		require.Equal(t, byte(i), v)
	}
}

// Scenario 3 of §8: a copy-kind subscriber mutating its buffer must not
// affect what get_data later observes.
func TestCopyDeliveryIndependence(t *testing.T) {
	n, cancel := newSingleNode(t, 29402)
	defer cancel()

	require.NoError(t, n.RegisterType("A", ModuleSpec{NumberOfChannels: 1}))
	a1, err := n.CreateInstance("A", "A1")
	require.NoError(t, err)
	a2, err := n.CreateInstance("A", "A2")
	require.NoError(t, err)

	received := make(chan struct{})
	_, err = n.Subscribe(a2, a1, 0, Copy, func(senderGlobalID int, data []byte) {
		for i := range data {
			data[i] = 0
		}
		close(received)
	})
	require.NoError(t, err)

	original := []byte("0123456789012345")
	n.PostData(a1, 0, append([]byte(nil), original...))
	<-received

	waitForCond(t, func() bool {
		got, err := n.GetData(context.Background(), a1, 0)
		return err == nil && string(got) == string(original)
	})
}

func TestBorrowedSubscriptionDescriptorMustBeReleased(t *testing.T) {
	n, cancel := newSingleNode(t, 29403)
	defer cancel()

	require.NoError(t, n.RegisterType("A", ModuleSpec{NumberOfChannels: 1}))
	a1, err := n.CreateInstance("A", "A1")
	require.NoError(t, err)
	a2, err := n.CreateInstance("A", "A2")
	require.NoError(t, err)

	descCh := make(chan *Descriptor, 1)
	_, err = n.SubscribeBorrowed(a2, a1, 0, func(senderGlobalID int, d *Descriptor) {
		descCh <- d
	})
	require.NoError(t, err)

	n.PostData(a1, 0, []byte("payload"))
	d := <-descCh
	require.Equal(t, "payload", string(d.Bytes()))
	n.ReleaseData(d)
}

func TestSendGlobalMessageSkipsSenderOnly(t *testing.T) {
	n, cancel := newSingleNode(t, 29404)
	defer cancel()

	var mu sync.Mutex
	receivedBy := map[int]bool{}
	spec := ModuleSpec{
		NumberOfChannels: 0,
		Create:           func(gid int) (any, error) { return gid, nil },
		OnMessage: func(state any, senderGlobalID, msgID int, data []byte) {
			mu.Lock()
			defer mu.Unlock()
			receivedBy[state.(int)] = true
		},
	}
	require.NoError(t, n.RegisterType("M", spec))

	var ids []int
	for i := 0; i < 3; i++ {
		gid, err := n.CreateInstance("M", string(rune('a'+i)))
		require.NoError(t, err)
		ids = append(ids, gid)
	}

	n.SendGlobalMessage(ids[0], 7, []byte("hi"))

	waitForCond(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(receivedBy) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	require.False(t, receivedBy[ids[0]])
	require.True(t, receivedBy[ids[1]])
	require.True(t, receivedBy[ids[2]])
}
