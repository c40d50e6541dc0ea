// internal/config/validate_test.go
package config

import "testing"

// helper to build an actuator quickly
func actuator(name string, addr uint8, port string) Actuator {
	return Actuator{
		Name:    name,
		Address: addr,
		Port:    port,
		Enabled: true,
	}
}

// ---- tests ----

func TestValidate_OK(t *testing.T) {
	f := &File{
		Actuators: []Actuator{
			actuator("LeftRearHip", 4, "Left"),
			actuator("RightRearHip", 5, "Right"),
		},
	}
	if err := Validate(f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name string
		file *File
	}{
		{
			name: "missing name",
			file: &File{Actuators: []Actuator{actuator("", 4, "Left")}},
		},
		{
			name: "broadcast address",
			file: &File{Actuators: []Actuator{actuator("a", 0, "Left")}},
		},
		{
			name: "reserved address",
			file: &File{Actuators: []Actuator{actuator("a", 240, "Left")}},
		},
		{
			name: "address collision",
			file: &File{Actuators: []Actuator{
				actuator("a", 4, "Left"),
				actuator("b", 4, "Right"),
			}},
		},
		{
			name: "bad port tag",
			file: &File{Actuators: []Actuator{actuator("a", 4, "middle")}},
		},
	}

	for _, c := range cases {
		if err := Validate(c.file); err == nil {
			t.Fatalf("%s: expected error, got nil", c.name)
		}
	}
}

func TestNormalize_PortCasing(t *testing.T) {
	f := &File{Actuators: []Actuator{
		actuator(" a ", 4, "left"),
		actuator("b", 5, " RIGHT "),
	}}

	Normalize(f)

	if f.Actuators[0].Port != "Left" || f.Actuators[1].Port != "Right" {
		t.Fatalf("ports = %q, %q", f.Actuators[0].Port, f.Actuators[1].Port)
	}
	if f.Actuators[0].Name != "a" {
		t.Fatalf("name = %q, want trimmed", f.Actuators[0].Name)
	}
}
