// SPDX-License-Identifier: MPL-2.0

package physics

import "github.com/simforge/simserver/pkg/scene"

type (
	// Integrator advances one body by dt seconds.
	Integrator interface {
		Step(b *Body, gravity scene.Vector3, dt float64)
	}

	// IntegratorFunc adapts a function to Integrator.
	IntegratorFunc func(b *Body, gravity scene.Vector3, dt float64)

	// Body is the dynamic state of a non-static model.
	Body struct {
		Pose     scene.Vector3
		Velocity scene.Vector3
	}
)

// Step calls f.
func (f IntegratorFunc) Step(b *Body, gravity scene.Vector3, dt float64) { f(b, gravity, dt) }

// semiImplicitEuler updates velocity first, then position with the new velocity.
func semiImplicitEuler(b *Body, g scene.Vector3, dt float64) {
	b.Velocity = add(b.Velocity, scale(g, dt))
	b.Pose = add(b.Pose, scale(b.Velocity, dt))
	ground(b)
}

// explicitEuler updates position with the old velocity.
func explicitEuler(b *Body, g scene.Vector3, dt float64) {
	b.Pose = add(b.Pose, scale(b.Velocity, dt))
	b.Velocity = add(b.Velocity, scale(g, dt))
	ground(b)
}

// ground keeps bodies on or above the z=0 plane.
func ground(b *Body) {
	if b.Pose.Z < 0 {
		b.Pose.Z = 0
		if b.Velocity.Z < 0 {
			b.Velocity.Z = 0
		}
	}
}

func defaultIntegrators() map[string]Integrator {
	return map[string]Integrator{
		"ode":     IntegratorFunc(semiImplicitEuler),
		"bullet":  IntegratorFunc(semiImplicitEuler),
		"dart":    IntegratorFunc(explicitEuler),
		"simbody": IntegratorFunc(explicitEuler),
	}
}

func add(a, b scene.Vector3) scene.Vector3 {
	return scene.Vector3{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z}
}

func scale(v scene.Vector3, s float64) scene.Vector3 {
	return scene.Vector3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}
