// SPDX-License-Identifier: MPL-2.0

package scene

import (
	"slices"
)

type (
	// Document is a parsed scene resource.
	Document struct {
		Worlds []World `json:"worlds"`
	}

	// World is one world section.
	World struct {
		Name    string   `json:"name"`
		Physics *Physics `json:"physics,omitempty"`
		Models  []Model  `json:"models,omitempty"`
		Presets []Preset `json:"presets,omitempty"`
	}

	// Physics configures the engine that steps a world.
	Physics struct {
		Type               string   `json:"type"`
		MaxStepSize        float64  `json:"max_step_size"`
		RealTimeUpdateRate float64  `json:"real_time_update_rate"`
		Gravity            *Vector3 `json:"gravity,omitempty"`
	}

	// Preset is a named physics profile that can replace a world's physics section.
	Preset struct {
		Name    string  `json:"name"`
		Physics Physics `json:"physics"`
	}

	// Model is a simulated entity.
	Model struct {
		Name     string   `json:"name"`
		Static   bool     `json:"static"`
		Pose     Vector3  `json:"pose"`
		Velocity Vector3  `json:"velocity"`
		Sensors  []Sensor `json:"sensors,omitempty"`
	}

	// Sensor is attached to a model and updated by the sensor subsystem.
	Sensor struct {
		Name       string  `json:"name"`
		Type       string  `json:"type"`
		UpdateRate float64 `json:"update_rate"`
	}

	// Vector3 is a point or direction in world coordinates.
	Vector3 struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	}
)

// HasWorld reports whether the document contains at least one world section.
func (d *Document) HasWorld() bool {
	return d != nil && len(d.Worlds) > 0
}

// World returns the world section with the given name.
func (d *Document) World(name string) (*World, bool) {
	for i := range d.Worlds {
		if d.Worlds[i].Name == name {
			return &d.Worlds[i], true
		}
	}
	return nil, false
}

// ModelNames lists the names of every model in the world, in document order.
func (w *World) ModelNames() []string {
	names := make([]string, 0, len(w.Models))
	for _, m := range w.Models {
		names = append(names, m.Name)
	}
	return names
}

// Preset returns the physics preset with the given name.
func (w *World) Preset(name string) (*Preset, bool) {
	i := slices.IndexFunc(w.Presets, func(p Preset) bool { return p.Name == name })
	if i < 0 {
		return nil, false
	}
	return &w.Presets[i], true
}

// SetPhysicsType changes the engine type of the world. It returns false when
// the world has no physics section to change.
func (w *World) SetPhysicsType(engine string) bool {
	if w.Physics == nil {
		return false
	}
	w.Physics.Type = engine
	return true
}

// Clone returns a deep copy of the world.
func (w *World) Clone() World {
	out := World{Name: w.Name}
	if w.Physics != nil {
		p := w.Physics.Clone()
		out.Physics = &p
	}
	if w.Models != nil {
		out.Models = make([]Model, len(w.Models))
		for i, m := range w.Models {
			out.Models[i] = m
			out.Models[i].Sensors = slices.Clone(m.Sensors)
		}
	}
	if w.Presets != nil {
		out.Presets = make([]Preset, len(w.Presets))
		for i, p := range w.Presets {
			out.Presets[i] = Preset{Name: p.Name, Physics: p.Physics.Clone()}
		}
	}
	return out
}

// Clone returns a copy that does not share the gravity vector.
func (p Physics) Clone() Physics {
	if p.Gravity != nil {
		g := *p.Gravity
		p.Gravity = &g
	}
	return p
}
