package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu        sync.Mutex
	connected []int
	newMods   []ModuleAnnouncement
	disc      []int
	local     []ModuleAnnouncement
}

func (h *recordingHandler) LocalModules() []ModuleAnnouncement { return h.local }
func (h *recordingHandler) NodeConnected(remoteNode int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = append(h.connected, remoteNode)
}
func (h *recordingHandler) NodeDisconnected(remoteNode int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disc = append(h.disc, remoteNode)
}
func (h *recordingHandler) HandleNewModule(remoteNode, localID int, name, typeName string, numChannels int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.newMods = append(h.newMods, ModuleAnnouncement{LocalID: localID, Name: name, TypeName: typeName, NumChannels: numChannels})
}
func (h *recordingHandler) HandleDeletedModule(remoteNode, localID int)         {}
func (h *recordingHandler) HandleSubscribe(remoteNode, publisherLocalID, channel int)   {}
func (h *recordingHandler) HandleUnsubscribe(remoteNode, publisherLocalID, channel int) {}
func (h *recordingHandler) HandleGetData(remoteNode, publisherLocalID, channel, requestID int) {
}
func (h *recordingHandler) HandleSubscribedData(remoteNode, publisherLocalID, channel int, data []byte) {
}
func (h *recordingHandler) HandleGlobalMessage(remoteNode, senderGlobalID, receiverGlobalID, messageID int, data []byte) {
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestReconnectEstablishesConnectionAndReplaysModules(t *testing.T) {
	const portA, portB = 29301, 29302

	handlerA := &recordingHandler{local: []ModuleAnnouncement{{LocalID: 0, Name: "a1", TypeName: "sensor", NumChannels: 1}}}
	handlerB := &recordingHandler{}

	peersFromA := []PeerConfig{{ID: 0, IP: "127.0.0.1", Port: portA}, {ID: 1, IP: "127.0.0.1", Port: portB}}
	peersFromB := []PeerConfig{{ID: 0, IP: "127.0.0.1", Port: portA}, {ID: 1, IP: "127.0.0.1", Port: portB}}

	nodeA := New(0, portA, peersFromA, handlerA)
	nodeB := New(1, portB, peersFromB, handlerB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go nodeA.Run(ctx)
	go nodeB.Run(ctx)

	// Node 0 connects upward to node 1 (§3: "connects upward to nodes with higher id").
	waitForCondition(t, func() bool {
		p, ok := nodeA.peer(1)
		return ok && p.Online()
	})
	waitForCondition(t, func() bool {
		handlerB.mu.Lock()
		defer handlerB.mu.Unlock()
		return len(handlerB.newMods) == 1
	})

	handlerB.mu.Lock()
	got := handlerB.newMods[0]
	handlerB.mu.Unlock()
	require.Equal(t, "a1", got.Name)
	require.Equal(t, "sensor", got.TypeName)
	require.Equal(t, 1, got.NumChannels)
}
