package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, f Frame) Frame {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f))
	got, err := Decode(&buf)
	require.NoError(t, err)
	return got
}

func TestNewModuleInstanceRoundTrip(t *testing.T) {
	got := roundTrip(t, Frame{
		Type:          NewModuleInstance,
		LocalModuleID: 7,
		Name:          "avoidance",
		TypeName:      "driver",
		NumChannels:   3,
	})
	require.Equal(t, int32(7), got.LocalModuleID)
	require.Equal(t, "avoidance", got.Name)
	require.Equal(t, "driver", got.TypeName)
	require.Equal(t, int32(3), got.NumChannels)
}

func TestSubscribedDataRoundTrip(t *testing.T) {
	got := roundTrip(t, Frame{
		Type:          SubscribedData,
		LocalModuleID: 2,
		Channel:       1,
		Bytes:         []byte{1, 2, 3, 4},
	})
	require.Equal(t, []byte{1, 2, 3, 4}, got.Bytes)
	require.Equal(t, int32(1), got.Channel)
}

func TestGlobalMessageRoundTripBroadcast(t *testing.T) {
	got := roundTrip(t, Frame{
		Type:             GlobalMessage,
		SenderGlobalID:   100001,
		ReceiverGlobalID: Broadcast,
		MessageID:        5,
		Bytes:            []byte("hello"),
	})
	require.Equal(t, Broadcast, got.ReceiverGlobalID)
	require.Equal(t, "hello", string(got.Bytes))
}

func TestEmptyBytesRoundTrip(t *testing.T) {
	got := roundTrip(t, Frame{Type: Data, RequestID: 42, Bytes: nil})
	require.Equal(t, int32(42), got.RequestID)
	require.Empty(t, got.Bytes)
}

func TestDecodeUnknownTypeErrors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeI32(&buf, 99))
	_, err := Decode(&buf)
	require.Error(t, err)
}

func TestDecodeTruncatedFrameErrors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeI32(&buf, int32(DeletedModuleInstance)))
	_, err := Decode(&buf)
	require.Error(t, err)
}

func TestHandshakeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHandshake(&buf, 3))
	id, err := ReadHandshake(&buf)
	require.NoError(t, err)
	require.Equal(t, int32(3), id)
}

func TestTypeString(t *testing.T) {
	require.Equal(t, "SUBSCRIBE", Subscribe.String())
	require.Contains(t, Type(42).String(), "UNKNOWN")
}
