// internal/config/normalize.go
package config

import "strings"

// Normalize applies pre-validation normalization.
// It is allowed to mutate configuration.
func Normalize(f *File) {
	if f == nil {
		return
	}

	for i := range f.Actuators {
		a := &f.Actuators[i]

		a.Name = strings.TrimSpace(a.Name)

		// Accept any casing for the port tag; Validate sees the
		// canonical form only.
		switch strings.ToLower(strings.TrimSpace(a.Port)) {
		case "left":
			a.Port = "Left"
		case "right":
			a.Port = "Right"
		}
	}
}
