// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/makemob/ukibridge/internal/wire"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(f *File) error {
	owner := make(map[uint8]string)

	for _, a := range f.Actuators {
		if a.Name == "" {
			return fmt.Errorf("actuator at address %d: name required", a.Address)
		}

		// Address 0 is broadcast; the heartbeat sink and everything
		// above it is reserved for the wire protocol.
		if a.Address == 0 {
			return fmt.Errorf("actuator %q: address 0 is reserved for broadcast", a.Name)
		}
		if uint16(a.Address) >= wire.HeartbeatAddress {
			return fmt.Errorf("actuator %q: address %d is in the reserved range (>= %d)",
				a.Name, a.Address, wire.HeartbeatAddress)
		}

		if prev, exists := owner[a.Address]; exists {
			return fmt.Errorf("address collision: %d used by actuators %q and %q",
				a.Address, prev, a.Name)
		}
		owner[a.Address] = a.Name

		switch a.Port {
		case "Left", "Right":
		default:
			return fmt.Errorf("actuator %q: port must be Left or Right, got %q", a.Name, a.Port)
		}
	}

	return nil
}
