package matoconfig

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mato-framework/mato/internal/transport"
)

// NodeEntry is one line of the nodes CSV.
type NodeEntry struct {
	NodeID int
	IP     string
	Port   int
	Name   string
}

// ParseNodes reads the nodes config file format from §6:
// <node_id>,<ipv4>,<port>,<name>
// one entry per line, `#`-prefixed comment lines and blank lines skipped,
// whitespace around fields ignored. A malformed line is a fatal parse
// error, matching the spec's "malformed lines abort init with a logged
// error".
func ParseNodes(r io.Reader) ([]NodeEntry, error) {
	var entries []NodeEntry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("mato: nodes config line %d: expected 4 comma-separated fields, got %d", lineNo, len(fields))
		}
		nodeID, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("mato: nodes config line %d: invalid node_id: %w", lineNo, err)
		}
		port, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, fmt.Errorf("mato: nodes config line %d: invalid port: %w", lineNo, err)
		}
		entries = append(entries, NodeEntry{
			NodeID: nodeID,
			IP:     strings.TrimSpace(fields[1]),
			Port:   port,
			Name:   strings.TrimSpace(fields[3]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mato: reading nodes config: %w", err)
	}
	return entries, nil
}

// PeerConfigs converts every entry except thisNode into transport.PeerConfig.
func PeerConfigs(entries []NodeEntry, thisNode int) []transport.PeerConfig {
	var peers []transport.PeerConfig
	for _, e := range entries {
		if e.NodeID == thisNode {
			continue
		}
		peers = append(peers, transport.PeerConfig{
			ID:   e.NodeID,
			IP:   e.IP,
			Port: e.Port,
			Name: e.Name,
		})
	}
	return peers
}
