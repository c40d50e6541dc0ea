// internal/config/registry.go
package config

import (
	"github.com/makemob/ukibridge/internal/regmap"
	"github.com/makemob/ukibridge/internal/transport"
)

// Target is one configured register value a board should hold.
// Reconciliation enqueues a write whenever the shadow cache disagrees.
type Target struct {
	Offset uint16
	Value  uint16

	// AccelGated targets are reconciled only while accel-honored mode is
	// on. The scripted sequencer turns it off while driving acceleration
	// itself, so the reconciler does not fight its setpoints.
	AccelGated bool
}

// Board is one entry of the active set: an enabled actuator bound to
// exactly one transport.
type Board struct {
	Name    string
	Addr    uint8
	Bus     transport.Bus
	Targets []Target
}

// Registry maps the enabled actuators to their owning buses.
// It is rebuilt on every configuration reload.
type Registry struct {
	Boards []Board // file order, stable across the round robin
	byAddr map[uint8]int
}

// BuildRegistry derives the active board set from a validated file.
// Disabled actuators are excluded.
func BuildRegistry(f *File) *Registry {
	r := &Registry{byAddr: make(map[uint8]int)}

	for _, a := range f.Actuators {
		if !a.Enabled {
			continue
		}

		bus := transport.Left
		if a.Port == "Right" {
			bus = transport.Right
		}

		b := Board{Name: a.Name, Addr: a.Address, Bus: bus}
		addTarget := func(offset uint16, v *uint16, accelGated bool) {
			if v == nil {
				return
			}
			b.Targets = append(b.Targets, Target{Offset: offset, Value: *v, AccelGated: accelGated})
		}
		addTarget(regmap.CurrentLimitInward, a.InwardCurrentLimit, false)
		addTarget(regmap.CurrentLimitOutward, a.OutwardCurrentLimit, false)
		addTarget(regmap.ExtensionLimitOutward, a.OutwardExtensionLimit, false)
		addTarget(regmap.PositionEncoderScaling, a.PositionEncoderScaling, false)
		addTarget(regmap.MotorAccel, a.Acceleration, true)

		r.byAddr[b.Addr] = len(r.Boards)
		r.Boards = append(r.Boards, b)
	}

	return r
}

// Lookup returns the board owning addr, if any.
func (r *Registry) Lookup(addr uint8) (Board, bool) {
	i, ok := r.byAddr[addr]
	if !ok {
		return Board{}, false
	}
	return r.Boards[i], true
}
