// Package basedriver is a minimal adaptation of the original base-robot
// driver (_examples/original_source/modules/live/mato_base_module.c): a
// single worker goroutine that posts a heartbeat telemetry frame on
// channel 0 at a fixed rate, and accepts speed/stop/reset/block
// messages. The real implementation drove a serial link to an Arduino
// over a forked `plink` process; this one synthesizes the same wire
// shape so it can serve as a channel-0 publisher in tests and demos
// without real hardware.
package basedriver

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mato-framework/mato/internal/node"
)

// Message ids, matching MATO_BASE_MSG_* from mato_base_module.h.
const (
	MsgSetSpeed      = 1
	MsgStopNow       = 2
	MsgResetCounters = 3
	MsgBlockMotors   = 4
)

// Telemetry is the fixed-layout packet posted on channel 0, matching the
// original's base_data_type (timestamp uint32, left/right int32 step
// counters, four int16 ultrasonic distances, a switch and obstacle
// flag).
type Telemetry struct {
	TimestampMS uint32
	Left        int32
	Right       int32
	Dist        [4]int16
	RedSwitch   uint8
	Obstacle    uint8
}

const telemetryWireSize = 22

// Encode packs a Telemetry into its 22-byte wire layout.
func (t Telemetry) Encode() []byte {
	buf := make([]byte, telemetryWireSize)
	binary.LittleEndian.PutUint32(buf[0:4], t.TimestampMS)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(t.Left))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(t.Right))
	for i, d := range t.Dist {
		binary.LittleEndian.PutUint16(buf[12+2*i:14+2*i], uint16(d))
	}
	buf[20] = t.RedSwitch
	buf[21] = t.Obstacle
	return buf
}

// DecodeTelemetry reverses Encode.
func DecodeTelemetry(buf []byte) (Telemetry, bool) {
	if len(buf) != telemetryWireSize {
		return Telemetry{}, false
	}
	var t Telemetry
	t.TimestampMS = binary.LittleEndian.Uint32(buf[0:4])
	t.Left = int32(binary.LittleEndian.Uint32(buf[4:8]))
	t.Right = int32(binary.LittleEndian.Uint32(buf[8:12]))
	for i := range t.Dist {
		t.Dist[i] = int16(binary.LittleEndian.Uint16(buf[12+2*i : 14+2*i]))
	}
	t.RedSwitch = buf[20]
	t.Obstacle = buf[21]
	return t, true
}

// instance is the per-module state: the module's own global id (needed
// to call PostData from its own worker goroutine) and the motor state
// mutated by incoming messages.
type instance struct {
	n        *node.Node
	globalID int

	mu      sync.Mutex
	blocked bool
	left    int32
	right   int32
}

// Spec builds the ModuleSpec to register with n.RegisterType. tick sets
// the telemetry rate.
func Spec(n *node.Node, tick time.Duration) node.ModuleSpec {
	return node.ModuleSpec{
		NumberOfChannels: 1,
		Create: func(globalID int) (any, error) {
			return &instance{n: n, globalID: globalID}, nil
		},
		Start: func(state any) error {
			go run(state.(*instance), tick)
			return nil
		},
		OnMessage: func(state any, senderGlobalID, msgID int, data []byte) {
			handleMessage(state.(*instance), msgID, data)
		},
	}
}

func run(inst *instance, tick time.Duration) {
	inst.n.IncThreadCount()
	defer inst.n.DecThreadCount()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var seq uint32
	for range ticker.C {
		if !inst.n.Running() {
			return
		}
		inst.mu.Lock()
		left, right, blocked := inst.left, inst.right, inst.blocked
		inst.mu.Unlock()

		seq++
		t := Telemetry{TimestampMS: seq * uint32(tick.Milliseconds()), Left: left, Right: right}
		if blocked {
			t.Obstacle = 1
		}
		inst.n.PostData(inst.globalID, 0, t.Encode())
	}
}

func handleMessage(inst *instance, msgID int, data []byte) {
	switch msgID {
	case MsgSetSpeed:
		if len(data) != 2 {
			return
		}
		inst.mu.Lock()
		if !inst.blocked {
			inst.left = int32(int8(data[0]))
			inst.right = int32(int8(data[1]))
		}
		inst.mu.Unlock()
	case MsgStopNow, MsgResetCounters:
		inst.mu.Lock()
		inst.left, inst.right = 0, 0
		inst.mu.Unlock()
	case MsgBlockMotors:
		if len(data) != 1 {
			return
		}
		inst.mu.Lock()
		inst.blocked = data[0] != 0
		if inst.blocked {
			inst.left, inst.right = 0, 0
		}
		inst.mu.Unlock()
	default:
		log.Warn().Int("message_id", msgID).Msg("basedriver: unknown message id")
	}
}
