package matoconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNodesSkipsCommentsAndBlankLines(t *testing.T) {
	input := `# ring topology
0,127.0.0.1,9500,alpha

1,127.0.0.1,9501,bravo
  # trailing comment
2, 127.0.0.1 , 9502 , charlie
`
	entries, err := ParseNodes(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, NodeEntry{NodeID: 2, IP: "127.0.0.1", Port: 9502, Name: "charlie"}, entries[2])
}

func TestParseNodesRejectsMalformedLine(t *testing.T) {
	_, err := ParseNodes(strings.NewReader("0,127.0.0.1,9500\n"))
	require.Error(t, err)
}

func TestPeerConfigsExcludesSelf(t *testing.T) {
	entries := []NodeEntry{
		{NodeID: 0, IP: "127.0.0.1", Port: 9500, Name: "alpha"},
		{NodeID: 1, IP: "127.0.0.1", Port: 9501, Name: "bravo"},
	}
	peers := PeerConfigs(entries, 0)
	require.Len(t, peers, 1)
	require.Equal(t, 1, peers[0].ID)
}

func TestParseVarValTypedAccessors(t *testing.T) {
	input := `# module config
rate: 10.5
name: base_driver  # inline comment
count: 3
`
	cfg, err := ParseVarVal(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, "base_driver", cfg.GetString("name", ""))
	require.Equal(t, 3, cfg.GetInt("count", -1))
	require.InDelta(t, 10.5, cfg.GetFloat("rate", 0), 0.0001)
	require.Equal(t, "fallback", cfg.GetString("missing", "fallback"))
	require.Equal(t, 42, cfg.GetInt("missing", 42))
}

func TestParseVarValRejectsMissingColon(t *testing.T) {
	_, err := ParseVarVal(strings.NewReader("not_a_pair\n"))
	require.Error(t, err)
}

func TestLoadHostConfigDefaultsWithNoFile(t *testing.T) {
	cfg, err := LoadHostConfig("")
	require.NoError(t, err)
	require.Equal(t, &HostConfig{
		NodeID:      0,
		ListenPort:  9500,
		NodesFile:   "nodes.csv",
		LogPath:     "./log",
		MetricsAddr: ":9600",
	}, cfg)
}

func TestLoadHostConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matonode.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
node_id: 2
listen_port: 9502
nodes_file: ring.csv
log_path: /var/log/mato
metrics_addr: ":9700"
`), 0o644))

	cfg, err := LoadHostConfig(path)
	require.NoError(t, err)
	require.Equal(t, &HostConfig{
		NodeID:      2,
		ListenPort:  9502,
		NodesFile:   "ring.csv",
		LogPath:     "/var/log/mato",
		MetricsAddr: ":9700",
	}, cfg)
}

func TestLoadHostConfigRejectsMissingFile(t *testing.T) {
	_, err := LoadHostConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}
