package registry

import (
	"testing"

	"github.com/mato-framework/mato/internal/buffer"
	"github.com/mato-framework/mato/internal/ids"
	"github.com/stretchr/testify/require"
)

func testSpec(channels int) ModuleSpec {
	return ModuleSpec{
		NumberOfChannels: channels,
		Create:           func(int) (any, error) { return nil, nil },
	}
}

func TestCreateInstanceAssignsSequentialLocalIDs(t *testing.T) {
	r := New(1)
	require.NoError(t, r.RegisterType("sensor", testSpec(1)))

	id1, _, err := r.CreateInstance("sensor", "a")
	require.NoError(t, err)
	id2, _, err := r.CreateInstance("sensor", "b")
	require.NoError(t, err)

	require.Equal(t, ids.Global(1, 0), id1)
	require.Equal(t, ids.Global(1, 1), id2)
}

func TestCreateInstanceRejectsDuplicateName(t *testing.T) {
	r := New(1)
	require.NoError(t, r.RegisterType("sensor", testSpec(1)))
	_, _, err := r.CreateInstance("sensor", "a")
	require.NoError(t, err)
	_, _, err = r.CreateInstance("sensor", "a")
	require.Error(t, err)
}

func TestRegisterTypeRejectsDuplicate(t *testing.T) {
	r := New(1)
	require.NoError(t, r.RegisterType("sensor", testSpec(1)))
	require.Error(t, r.RegisterType("sensor", testSpec(1)))
}

func TestInstallHeadReplacesPreviousHead(t *testing.T) {
	r := New(1)
	require.NoError(t, r.RegisterType("sensor", testSpec(1)))
	gid, _, err := r.CreateInstance("sensor", "a")
	require.NoError(t, err)

	d1, err := r.InstallHead(gid, 0, []byte("first"))
	require.NoError(t, err)
	require.Equal(t, 2, d1.Refcount())

	d2, err := r.InstallHead(gid, 0, []byte("second"))
	require.NoError(t, err)
	require.Equal(t, 2, d2.Refcount())
	// d1 lost its head reference, leaving only the in-flight one.
	require.Equal(t, 1, d1.Refcount())

	data, ok := r.GetHead(1, 0, 0)
	require.True(t, ok)
	require.Equal(t, "second", string(data))
}

func TestBorrowAndReleaseDescriptor(t *testing.T) {
	r := New(1)
	require.NoError(t, r.RegisterType("sensor", testSpec(1)))
	gid, _, err := r.CreateInstance("sensor", "a")
	require.NoError(t, err)

	desc, err := r.InstallHead(gid, 0, []byte("payload"))
	require.NoError(t, err)
	r.FinishDelivery(1, 0, 0, desc)
	require.Equal(t, 1, desc.Refcount())

	borrowed, ok := r.BorrowHead(1, 0, 0)
	require.True(t, ok)
	require.Same(t, desc, borrowed)
	require.Equal(t, 2, desc.Refcount())

	r.ReleaseDescriptor(1, 0, 0, desc)
	require.Equal(t, 1, desc.Refcount())
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	r := New(1)
	require.NoError(t, r.RegisterType("sensor", testSpec(1)))
	pub, _, err := r.CreateInstance("sensor", "pub")
	require.NoError(t, err)
	sub, _, err := r.CreateInstance("sensor", "sub")
	require.NoError(t, err)

	subID, wasFirst, err := r.Subscribe(sub, pub, 0, Pointer, func(int, []byte, *buffer.Descriptor) {})
	require.NoError(t, err)
	require.True(t, wasFirst)

	snap := r.SnapshotSubscriptions(1, 0, 0)
	require.Len(t, snap, 1)
	require.Equal(t, subID, snap[0].ID)

	wasLast, err := r.Unsubscribe(pub, 0, subID)
	require.NoError(t, err)
	require.True(t, wasLast)

	require.Empty(t, r.SnapshotSubscriptions(1, 0, 0))
}

func TestRemoveNodeTearsDownRemoteModulesAndSubscriptions(t *testing.T) {
	r := New(1)
	require.NoError(t, r.RegisterType("sensor", testSpec(1)))
	local, _, err := r.CreateInstance("sensor", "local")
	require.NoError(t, err)

	r.StoreRemoteModule(2, 0, "remote-mod", "sensor", 1)
	remoteGID := ids.Global(2, 0)

	_, _, err = r.Subscribe(local, remoteGID, 0, Pointer, func(int, []byte, *buffer.Descriptor) {})
	require.NoError(t, err)
	r.SubscribeRemoteForward(0, 0, 2) // remote node 2 subscribing to our local module's channel 0, so RemoveNode below has a forward subscription to cancel
	require.Contains(t, r.NodeIDs(), 2)

	r.RemoveNode(2)

	require.NotContains(t, r.NodeIDs(), 2)
	require.Empty(t, r.SnapshotSubscriptions(2, 0, 0))
	_, ok := r.Info(remoteGID)
	require.False(t, ok)
}

func TestPrepareAndFinalizeDelete(t *testing.T) {
	r := New(1)
	deleted := false
	spec := testSpec(1)
	spec.Delete = func(any) error { deleted = true; return nil }
	require.NoError(t, r.RegisterType("sensor", spec))

	gid, createdSpec, err := r.CreateInstance("sensor", "a")
	require.NoError(t, err)
	require.NoError(t, r.SetInstanceState(gid, "state"))

	state, resolvedSpec, err := r.PrepareDelete(gid)
	require.NoError(t, err)
	require.Equal(t, "state", state)
	require.NotNil(t, resolvedSpec.Create)
	require.NotNil(t, createdSpec.Create)

	require.NoError(t, resolvedSpec.Delete(state))
	require.True(t, deleted)

	r.FinalizeDelete(gid)
	_, ok := r.Info(gid)
	require.False(t, ok)
}

func TestDanglingListReceivesDescriptorOnTeardownWithBorrower(t *testing.T) {
	r := New(1)
	require.NoError(t, r.RegisterType("sensor", testSpec(1)))
	gid, _, err := r.CreateInstance("sensor", "a")
	require.NoError(t, err)

	desc, err := r.InstallHead(gid, 0, []byte("x"))
	require.NoError(t, err)
	r.FinishDelivery(1, 0, 0, desc)

	borrowed, ok := r.BorrowHead(1, 0, 0)
	require.True(t, ok)
	require.Equal(t, 2, borrowed.Refcount())

	r.FinalizeDelete(gid)
	require.Equal(t, 1, r.DanglingCount())

	r.ReleaseDescriptor(1, 0, 0, borrowed)
	require.Equal(t, 0, r.DanglingCount())
}
