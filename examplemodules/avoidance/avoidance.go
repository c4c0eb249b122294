// Package avoidance is a minimal adaptation of the original obstacle
// avoidance module (_examples/original_source/modules/live/avoid.c): it
// subscribes to a basedriver instance's telemetry channel, and blocks or
// unblocks the base's motors depending on the obstacle flag. The
// original consumed a laser range finder (TIM571) on its own pipe-backed
// thread and forwarded a stop/unblocked decision through a callback
// table; here the decision runs directly inside the pointer-kind
// subscription callback the redistribution loop already invokes.
package avoidance

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mato-framework/mato/examplemodules/basedriver"
	"github.com/mato-framework/mato/internal/node"
)

// Decision mirrors the original's avoid_msg_type enum.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionStopped
	DecisionUnblocked
)

func (d Decision) String() string {
	switch d {
	case DecisionStopped:
		return "stopped"
	case DecisionUnblocked:
		return "unblocked"
	default:
		return "none"
	}
}

type instance struct {
	n        *node.Node
	globalID int
	baseID   int

	mu   sync.Mutex
	last Decision
}

// Spec builds a ModuleSpec for an avoidance instance that watches
// baseGlobalID's channel 0 and issues MsgBlockMotors/unblock decisions
// back to it based on the telemetry's Obstacle flag.
func Spec(n *node.Node, baseGlobalID int) node.ModuleSpec {
	return node.ModuleSpec{
		NumberOfChannels: 0,
		Create: func(globalID int) (any, error) {
			return &instance{n: n, globalID: globalID, baseID: baseGlobalID}, nil
		},
		Start: func(state any) error {
			inst := state.(*instance)
			_, err := n.Subscribe(inst.globalID, inst.baseID, 0, node.Pointer, func(senderGlobalID int, data []byte) {
				onTelemetry(inst, data)
			})
			return err
		},
	}
}

// LastDecision reports the most recent decision made, for tests and
// introspection.
func LastDecision(stateAny any) Decision {
	inst := stateAny.(*instance)
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.last
}

func onTelemetry(inst *instance, data []byte) {
	t, ok := basedriver.DecodeTelemetry(data)
	if !ok {
		return
	}

	decision := DecisionUnblocked
	if t.Obstacle != 0 {
		decision = DecisionStopped
	}

	inst.mu.Lock()
	changed := inst.last != decision
	inst.last = decision
	inst.mu.Unlock()
	if !changed {
		return
	}

	log.Debug().Str("decision", decision.String()).Msg("avoidance: decision")

	block := byte(0)
	if decision == DecisionStopped {
		block = 1
	}
	if err := inst.n.SendMessage(inst.globalID, inst.baseID, basedriver.MsgBlockMotors, []byte{block}); err != nil {
		log.Warn().Err(err).Msg("avoidance: could not signal base module")
	}
}
