package avoidance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mato-framework/mato/examplemodules/basedriver"
	"github.com/mato-framework/mato/internal/node"
)

func TestAvoidanceBlocksBaseOnObstacle(t *testing.T) {
	n := node.New(node.Config{NodeID: 1, ListenPort: 29601})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	require.NoError(t, n.RegisterType("basedriver", basedriver.Spec(n, 10*time.Millisecond)))
	baseID, err := n.CreateInstance("basedriver", "base1")
	require.NoError(t, err)
	require.NoError(t, n.StartInstance(baseID))

	require.NoError(t, n.RegisterType("avoidance", Spec(n, baseID)))
	avoidID, err := n.CreateInstance("avoidance", "avoid1")
	require.NoError(t, err)
	require.NoError(t, n.StartInstance(avoidID))

	n.PostData(baseID, 0, basedriver.Telemetry{Obstacle: 1}.Encode())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := n.GetData(context.Background(), baseID, 0)
		if err == nil {
			if decoded, ok := basedriver.DecodeTelemetry(data); ok && decoded.Obstacle == 1 {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("base telemetry never reflected obstacle block")
}
