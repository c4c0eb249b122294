package basedriver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mato-framework/mato/internal/node"
)

func TestTelemetryRoundTrip(t *testing.T) {
	original := Telemetry{
		TimestampMS: 43540,
		Left:        164569,
		Right:       -164569,
		Dist:        [4]int16{123, 129, 102, 116},
		RedSwitch:   0,
		Obstacle:    1,
	}
	got, ok := DecodeTelemetry(original.Encode())
	require.True(t, ok)
	require.Equal(t, original, got)
}

func TestDecodeTelemetryRejectsWrongSize(t *testing.T) {
	_, ok := DecodeTelemetry([]byte{1, 2, 3})
	require.False(t, ok)
}

func TestBaseDriverPostsTelemetryAndHonoursBlock(t *testing.T) {
	n := node.New(node.Config{NodeID: 1, ListenPort: 29501})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	require.NoError(t, n.RegisterType("basedriver", Spec(n, 10*time.Millisecond)))
	gid, err := n.CreateInstance("basedriver", "base1")
	require.NoError(t, err)
	require.NoError(t, n.StartInstance(gid))

	deadline := time.Now().Add(2 * time.Second)
	var last Telemetry
	for time.Now().Before(deadline) {
		data, err := n.GetData(context.Background(), gid, 0)
		if err == nil && len(data) == telemetryWireSize {
			last, _ = DecodeTelemetry(data)
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NotZero(t, last.TimestampMS)

	require.NoError(t, n.SendMessage(0, gid, MsgBlockMotors, []byte{1}))

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := n.GetData(context.Background(), gid, 0)
		if err == nil {
			if decoded, ok := DecodeTelemetry(data); ok && decoded.Obstacle == 1 {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("telemetry never reported obstacle after block")
}
