package behavior

import "github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"

// Field selects the vector a flock aggregate is computed over.
type Field func(b *Boid) geometry.Vector3D

// Position selects a boid's position.
func Position(b *Boid) geometry.Vector3D { return b.Position }

// Velocity selects a boid's velocity.
func Velocity(b *Boid) geometry.Vector3D { return b.Velocity }

// Average returns the mean of field over every boid of the flock except flock[self]
// and except the perching ones, together with the number of boids that contributed.
// With no contributor the zero vector is returned.
func Average(flock []Boid, self int, field Field) (geometry.Vector3D, int) {
	var sum geometry.Vector3D
	n := 0
	for i := range flock {
		if i == self || flock[i].Perching {
			continue
		}
		sum = sum.Add(field(&flock[i]))
		n++
	}
	if n == 0 {
		return geometry.Zero, 0
	}
	return sum.Mul(1 / float64(n)), n
}
