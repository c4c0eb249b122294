package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mato-framework/mato/examplemodules/avoidance"
	"github.com/mato-framework/mato/examplemodules/basedriver"
	"github.com/mato-framework/mato/internal/matoconfig"
	"github.com/mato-framework/mato/internal/matolog"
	"github.com/mato-framework/mato/internal/matometrics"
	"github.com/mato-framework/mato/internal/node"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start this node and run until interrupted",
	RunE:  runNode,
}

func runNode(cmd *cobra.Command, args []string) error {
	hostCfg, err := matoconfig.LoadHostConfig(configFile)
	if err != nil {
		return err
	}
	// Flags explicitly set on the command line override the config file
	// and MATO_-prefixed environment, the same layering order the
	// teacher's own config package applies.
	if !cmd.Flags().Changed("node-config") {
		nodeConfigPath = hostCfg.NodesFile
	}
	if !cmd.Flags().Changed("node-id") {
		nodeID = hostCfg.NodeID
	}
	if !cmd.Flags().Changed("log-path") {
		logPath = hostCfg.LogPath
	}
	if !cmd.Flags().Changed("metrics-addr") {
		metricsAddr = hostCfg.MetricsAddr
	}

	writer, err := matolog.NewWriter(logPath, 4096, true)
	if err != nil {
		return err
	}
	defer writer.Close()
	matolog.Init(writer, nodeID, zerolog.InfoLevel)

	nodesFile, err := os.Open(nodeConfigPath)
	if err != nil {
		log.Error().Err(err).Str("path", nodeConfigPath).Msg("matonode: could not open nodes config")
		return err
	}
	entries, err := matoconfig.ParseNodes(nodesFile)
	_ = nodesFile.Close()
	if err != nil {
		log.Error().Err(err).Msg("matonode: malformed nodes config")
		return err
	}

	// The nodes file is authoritative for every peer's listen port,
	// including our own, when this node is listed in it; hostCfg's
	// listen_port only covers the bootstrap case where it isn't yet.
	listenPort := hostCfg.ListenPort
	found := false
	for _, e := range entries {
		if e.NodeID == nodeID {
			listenPort = e.Port
			found = true
		}
	}
	if !found {
		log.Warn().Int("node_id", nodeID).Str("path", nodeConfigPath).Int("listen_port", listenPort).
			Msg("matonode: node id not present in nodes config, falling back to host config listen port")
	}

	n := node.New(node.Config{
		NodeID:     nodeID,
		ListenPort: listenPort,
		Peers:      matoconfig.PeerConfigs(entries, nodeID),
	})

	if err := registerExampleModules(n); err != nil {
		return err
	}

	metrics := matometrics.New()
	metricsServer := matometrics.NewServer(metricsAddr)
	reporter, err := matometrics.NewStatsReporter(metrics, "@every 10s", func() matometrics.NodeStats {
		var local, remote int
		for _, m := range n.ListModules() {
			if m.Local {
				local++
			} else {
				remote++
			}
		}
		return matometrics.NodeStats{
			ConnectedPeers:      n.ConnectedPeerCount(),
			LocalModules:        local,
			RemoteModules:       remote,
			ActiveSubscriptions: n.ActiveSubscriptionCount(),
			DanglingDescriptors: n.DanglingDescriptorCount(),
		}
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.Run(gctx) })
	g.Go(func() error { return metricsServer.Run(gctx) })
	g.Go(func() error { return reporter.Run(gctx) })

	if err := n.StartAll(); err != nil {
		log.Error().Err(err).Msg("matonode: starting modules")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info().Msg("matonode: shutting down")
	case <-gctx.Done():
	}

	n.Shutdown()
	cancel()

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		log.Warn().Msg("matonode: shutdown timed out")
		return nil
	}
}

// registerExampleModules wires in the bundled demo module types so a
// fresh node has something to run out of the box; a production
// deployment would register its own module types instead.
func registerExampleModules(n *node.Node) error {
	if err := n.RegisterType("basedriver", basedriver.Spec(n, time.Second)); err != nil {
		return err
	}
	baseID, err := n.CreateInstance("basedriver", "base1")
	if err != nil {
		return err
	}
	if err := n.RegisterType("avoidance", avoidance.Spec(n, baseID)); err != nil {
		return err
	}
	_, err = n.CreateInstance("avoidance", "avoid1")
	return err
}
