package matolog

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init points the global zerolog logger at w and tags every line with
// this node's id, so multi-node test runs and log aggregation can tell
// nodes apart. Every framework goroutine is expected to log through
// log.Logger (the global), never open its own file.
func Init(w *Writer, nodeID int, level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(w).With().Timestamp().Int("node_id", nodeID).Logger()
}
