package behavior

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const tolerance = 1e-9

// fixedRand always returns the same draw.
type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func testSettings() *Settings {
	return &Settings{
		CenteringFactor: 0.0001,
		RepulsionFactor: 0.05,
		MatchingFactor:  0.05,
		Spacing:         5,
		SpeedLimit:      10,
		MinBoundary:     geometry.Vector3D{X: -10, Y: 0, Z: -10},
		MaxBoundary:     geometry.Vector3D{X: 10, Y: 8, Z: 10},
		TurnFactor:      0.2,
		PerchTimerRange: Range{Min: 1, Max: 5},
		GroundEpsilon:   0.1,
		TurnRate:        5,
	}
}

func assertVec(t *testing.T, want, got geometry.Vector3D) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tolerance, "x of %v", got)
	assert.InDelta(t, want.Y, got.Y, tolerance, "y of %v", got)
	assert.InDelta(t, want.Z, got.Z, tolerance, "z of %v", got)
}

func TestRange_Draw(t *testing.T) {
	r := Range{Min: 1, Max: 5}
	assert.Equal(t, 1.0, r.Draw(fixedRand(0)))
	assert.Equal(t, 3.0, r.Draw(fixedRand(0.5)))

	rng := rand.New(rand.NewPCG(1, 2))
	for range 100 {
		v := r.Draw(rng)
		assert.GreaterOrEqual(t, v, 1.0)
		assert.LessOrEqual(t, v, 5.0)
	}
}

func TestSettings_Clamp(t *testing.T) {
	s := testSettings()
	s.CenteringFactor = -0.5
	s.RepulsionFactor = 3
	s.MatchingFactor = 0.25

	s.Clamp()

	assert.Equal(t, FactorMin, s.CenteringFactor)
	assert.Equal(t, FactorMax, s.RepulsionFactor)
	assert.Equal(t, 0.25, s.MatchingFactor)
}

func TestSettings_Validate(t *testing.T) {
	require.NoError(t, testSettings().Validate())

	tests := []struct {
		name   string
		mutate func(s *Settings)
		want   error
	}{
		{"min equals max", func(s *Settings) { s.MinBoundary.Y = s.MaxBoundary.Y }, ErrInvalidBoundary},
		{"min above max", func(s *Settings) { s.MinBoundary.Z = 11 }, ErrInvalidBoundary},
		{"zero speed limit", func(s *Settings) { s.SpeedLimit = 0 }, ErrInvalidSpeedLimit},
		{"negative spacing", func(s *Settings) { s.Spacing = -1 }, ErrInvalidSpacing},
		{"inverted perch range", func(s *Settings) { s.PerchTimerRange = Range{Min: 3, Max: 2} }, ErrInvalidPerchRange},
		{"negative perch range", func(s *Settings) { s.PerchTimerRange = Range{Min: -1, Max: 2} }, ErrInvalidPerchRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings()
			tt.mutate(s)
			assert.ErrorIs(t, s.Validate(), tt.want)
		})
	}
}

func TestNew(t *testing.T) {
	s := testSettings()
	rng := rand.New(rand.NewPCG(7, 7))
	for range 200 {
		b := New(s, rng)
		assert.False(t, b.Perching)
		assert.GreaterOrEqual(t, b.Position.X, s.MinBoundary.X)
		assert.LessOrEqual(t, b.Position.X, s.MaxBoundary.X)
		assert.GreaterOrEqual(t, b.Position.Y, s.MinBoundary.Y)
		assert.LessOrEqual(t, b.Position.Y, s.MaxBoundary.Y)
		assert.GreaterOrEqual(t, b.Position.Z, s.MinBoundary.Z)
		assert.LessOrEqual(t, b.Position.Z, s.MaxBoundary.Z)
		assert.LessOrEqual(t, b.Velocity.Len(), s.SpeedLimit)
		assert.GreaterOrEqual(t, b.PerchTimer, s.PerchTimerRange.Min)
		assert.LessOrEqual(t, b.PerchTimer, s.PerchTimerRange.Max)
	}
}

func TestNewAt_HeadingFollowsVelocity(t *testing.T) {
	b := NewAt(geometry.Zero, testSettings(), fixedRand(1))
	// every component draws (1-0.5)*2 = 1
	assertVec(t, geometry.Vector3D{X: 1, Y: 1, Z: 1}, b.Velocity)
	assertVec(t, b.Velocity.Normalize(), b.FacingDirection())
}

func TestAverage(t *testing.T) {
	flock := []Boid{
		{Position: geometry.Vector3D{X: 100}},
		{Position: geometry.Vector3D{X: 2}, Velocity: geometry.Vector3D{Y: 4}},
		{Position: geometry.Vector3D{X: 4}, Velocity: geometry.Vector3D{Y: 2}},
		{Position: geometry.Vector3D{X: -50}, Velocity: geometry.Vector3D{Y: 90}, Perching: true},
	}

	t.Run("excludes self and perching boids", func(t *testing.T) {
		got, n := Average(flock, 0, Position)
		assert.Equal(t, 2, n)
		assertVec(t, geometry.Vector3D{X: 3}, got)
	})

	t.Run("field selector", func(t *testing.T) {
		got, n := Average(flock, 0, Velocity)
		assert.Equal(t, 2, n)
		assertVec(t, geometry.Vector3D{Y: 3}, got)
	})

	t.Run("no neighbor gives zero", func(t *testing.T) {
		got, n := Average(flock[:1], 0, Position)
		assert.Zero(t, n)
		assert.Equal(t, geometry.Zero, got)
	})

	t.Run("only perching neighbors gives zero", func(t *testing.T) {
		got, n := Average([]Boid{flock[0], flock[3]}, 0, Velocity)
		assert.Zero(t, n)
		assert.Equal(t, geometry.Zero, got)
	})
}

func TestCohesion(t *testing.T) {
	s := testSettings()
	s.CenteringFactor = 0.5
	flock := []Boid{
		{Position: geometry.Vector3D{X: 0}},
		{Position: geometry.Vector3D{X: 10}},
		{Position: geometry.Vector3D{Z: 10}},
	}
	// centroid of the others is (5, 0, 5)
	assertVec(t, geometry.Vector3D{X: 2.5, Z: 2.5}, Cohesion(flock, 0, s))
}

func TestCohesionAndAlignment_Lonely(t *testing.T) {
	s := testSettings()
	lonely := []Boid{{Position: geometry.Vector3D{X: 3}, Velocity: geometry.Vector3D{X: 1}}}
	assert.Equal(t, geometry.Zero, Cohesion(lonely, 0, s))
	assert.Equal(t, geometry.Zero, Alignment(lonely, 0, s))

	withPercher := append(lonely, Boid{Position: geometry.Vector3D{X: 9}, Perching: true})
	assert.Equal(t, geometry.Zero, Cohesion(withPercher, 0, s))
	assert.Equal(t, geometry.Zero, Alignment(withPercher, 0, s))
}

func TestAlignment(t *testing.T) {
	s := testSettings()
	s.MatchingFactor = 0.5
	flock := []Boid{
		{Velocity: geometry.Vector3D{X: 1}},
		{Position: geometry.Vector3D{X: 5}, Velocity: geometry.Vector3D{X: 3, Y: 2}},
	}
	assertVec(t, geometry.Vector3D{X: 1, Y: 1}, Alignment(flock, 0, s))
}

func TestSeparation_Scenario(t *testing.T) {
	s := testSettings()
	s.Spacing = 5
	s.RepulsionFactor = 0.05
	flock := []Boid{
		{Position: geometry.Zero, Velocity: geometry.Vector3D{X: 1}},
		{Position: geometry.Vector3D{X: 3}},
	}
	got := Separation(flock, 0, s)
	assertVec(t, geometry.Vector3D{X: -0.15}, got)
	assert.InDelta(t, 0.15, got.Len(), tolerance)
}

func TestSeparation_PairPointsApart(t *testing.T) {
	s := testSettings()
	flock := []Boid{
		{Position: geometry.Vector3D{X: 1, Y: 4, Z: 1}},
		{Position: geometry.Vector3D{X: 2, Y: 5, Z: 0}},
	}
	a := Separation(flock, 0, s)
	b := Separation(flock, 1, s)

	require.False(t, a.IsZero())
	require.False(t, b.IsZero())
	assertVec(t, a, b.Mul(-1))
	// a points from boid 1 toward boid 0
	assert.Greater(t, a.Dot(flock[0].Position.Sub(flock[1].Position)), 0.0)
}

func TestSeparation_StrictSpacing(t *testing.T) {
	s := testSettings()
	flock := []Boid{
		{Position: geometry.Zero},
		{Position: geometry.Vector3D{Z: s.Spacing}},
	}
	assert.Equal(t, geometry.Zero, Separation(flock, 0, s))
}

func TestSeparation_SumsNeighbors(t *testing.T) {
	s := testSettings()
	s.RepulsionFactor = 1
	flock := []Boid{
		{Position: geometry.Zero},
		{Position: geometry.Vector3D{X: 1}},
		{Position: geometry.Vector3D{X: 2}, Perching: true},
		{Position: geometry.Vector3D{X: 40}},
	}
	// raw sum of (0-1) and (0-2), the perching boid counts too
	assertVec(t, geometry.Vector3D{X: -3}, Separation(flock, 0, s))
}

func TestBoundary_FirstFaceOnly(t *testing.T) {
	s := testSettings()
	tests := []struct {
		name string
		pos  geometry.Vector3D
		want geometry.Vector3D
	}{
		{"inside", geometry.Vector3D{Y: 4}, geometry.Zero},
		{"x-min", geometry.Vector3D{X: -11, Y: 4}, geometry.Vector3D{X: 0.2}},
		{"x-max", geometry.Vector3D{X: 11, Y: 4}, geometry.Vector3D{X: -0.2}},
		{"y-max", geometry.Vector3D{Y: 9}, geometry.Vector3D{Y: -0.2}},
		{"z-min", geometry.Vector3D{Y: 4, Z: -11}, geometry.Vector3D{Z: 0.2}},
		{"z-max", geometry.Vector3D{Y: 4, Z: 11}, geometry.Vector3D{Z: -0.2}},
		{"x-min wins over y-max and z-max", geometry.Vector3D{X: -11, Y: 9, Z: 11}, geometry.Vector3D{X: 0.2}},
		{"y-max wins over z-min", geometry.Vector3D{Y: 9, Z: -11}, geometry.Vector3D{Y: -0.2}},
		{"y-min between box and ground", geometry.Vector3D{Y: -0.05}, geometry.Vector3D{Y: 0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Boid{Position: tt.pos}
			got := Boundary(&b, s, fixedRand(0.5))
			assertVec(t, tt.want, got)
			assert.False(t, b.Perching)
			assert.Equal(t, tt.pos, b.Position)
		})
	}
}

func TestBoundary_GroundLanding(t *testing.T) {
	s := testSettings()

	t.Run("below ground lands", func(t *testing.T) {
		b := Boid{Position: geometry.Vector3D{X: 1, Y: -3, Z: 2}, PerchTimer: 99}
		got := Boundary(&b, s, fixedRand(0.25))
		assertVec(t, geometry.Vector3D{Y: 0.2}, got)
		assert.True(t, b.Perching)
		assert.Equal(t, s.GroundLevel(), b.Position.Y)
		assert.Equal(t, 1.0, b.Position.X)
		assert.Equal(t, 2.0, b.Position.Z)
		assert.Equal(t, 2.0, b.PerchTimer)
	})

	t.Run("ground check runs even when x fired", func(t *testing.T) {
		b := Boid{Position: geometry.Vector3D{X: 12, Y: -3}}
		got := Boundary(&b, s, fixedRand(0))
		assertVec(t, geometry.Vector3D{X: -0.2}, got)
		assert.True(t, b.Perching)
		assert.Equal(t, s.GroundLevel(), b.Position.Y)
	})

	t.Run("exactly at ground does not land", func(t *testing.T) {
		b := Boid{Position: geometry.Vector3D{Y: s.GroundLevel()}}
		Boundary(&b, s, fixedRand(0))
		assert.False(t, b.Perching)
	})
}

func TestRest(t *testing.T) {
	s := testSettings()

	t.Run("flying boid is untouched", func(t *testing.T) {
		b := Boid{PerchTimer: 3}
		assert.False(t, Rest(&b, 0.5, s, fixedRand(0)))
		assert.Equal(t, 3.0, b.PerchTimer)
		assert.Equal(t, Flying, b.State())
	})

	t.Run("keeps resting while timer positive", func(t *testing.T) {
		b := Boid{Perching: true, PerchTimer: 2}
		assert.True(t, Rest(&b, 0.5, s, fixedRand(0)))
		assert.Equal(t, 1.5, b.PerchTimer)
		assert.Equal(t, Perching, b.State())
	})

	t.Run("takes off when timer runs out", func(t *testing.T) {
		b := Boid{Perching: true, PerchTimer: 0.5}
		assert.False(t, Rest(&b, 0.5, s, fixedRand(0.75)))
		assert.False(t, b.Perching)
		assert.Equal(t, 4.0, b.PerchTimer)
	})
}

func TestIntegrate(t *testing.T) {
	s := testSettings()

	t.Run("sums offsets and advances", func(t *testing.T) {
		b := Boid{Velocity: geometry.Vector3D{X: 1}}
		o := Offsets{
			Cohesion:   geometry.Vector3D{X: 1},
			Separation: geometry.Vector3D{Y: 2},
			Alignment:  geometry.Vector3D{Z: -1},
			Boundary:   geometry.Vector3D{X: 0.5},
		}
		Integrate(&b, o, s, 0.5)
		assertVec(t, geometry.Vector3D{X: 2.5, Y: 2, Z: -1}, b.Velocity)
		assertVec(t, geometry.Vector3D{X: 1.25, Y: 1, Z: -0.5}, b.Position)
	})

	t.Run("clamps to exactly the speed limit", func(t *testing.T) {
		b := Boid{Velocity: geometry.Vector3D{X: 30, Y: 40}}
		Integrate(&b, Offsets{}, s, 0.1)
		assert.InDelta(t, s.SpeedLimit, b.Velocity.Len(), tolerance)
		assertVec(t, geometry.Vector3D{X: 6, Y: 8}, b.Velocity)
		assertVec(t, geometry.Vector3D{X: 0.6, Y: 0.8}, b.Position)
	})

	t.Run("perching boid does not move", func(t *testing.T) {
		start := geometry.Vector3D{Y: s.GroundLevel()}
		b := Boid{Position: start, Velocity: geometry.Vector3D{X: 3}, Perching: true}
		Integrate(&b, Offsets{Boundary: geometry.Vector3D{Y: 0.2}}, s, 1)
		assert.Equal(t, start, b.Position)
		assertVec(t, geometry.Vector3D{X: 3, Y: 0.2}, b.Velocity)
	})

	t.Run("zero velocity keeps heading", func(t *testing.T) {
		h := LookRotation(geometry.Vector3D{X: 1})
		b := Boid{Heading: h}
		Integrate(&b, Offsets{}, s, 1)
		assert.Equal(t, h, b.Heading)
	})
}

func TestIntegrate_HeadingSlerp(t *testing.T) {
	s := testSettings()
	b := Boid{Heading: mgl64.QuatIdent(), Velocity: geometry.Vector3D{X: 5}}

	// 5/s * 0.1s = half way from +Z to +X
	Integrate(&b, Offsets{}, s, 0.1)
	assert.InDelta(t, math.Pi/4, b.Yaw(), 1e-6)

	// a rate * dt above 1 snaps onto the target
	Integrate(&b, Offsets{}, s, 1)
	assertVec(t, geometry.Vector3D{X: 1}, b.FacingDirection())
	assert.InDelta(t, 1, b.Heading.Len(), 1e-9)
}

func TestIntegrate_ZeroHeadingIsIdentity(t *testing.T) {
	b := Boid{}
	assertVec(t, geometry.Vector3D{Z: 1}, b.FacingDirection())
	assert.Zero(t, b.Yaw())
}

func TestUpdate_RestingBoidIsFrozen(t *testing.T) {
	s := testSettings()
	flock := []Boid{
		{Position: geometry.Vector3D{Y: s.GroundLevel()}, Velocity: geometry.Vector3D{X: 2}, Perching: true, PerchTimer: 3},
		{Position: geometry.Vector3D{X: 1, Y: 2}},
	}
	before := flock[0]

	_, ok := Update(flock, flock, 0, s, fixedRand(0.5), 0.5)

	assert.False(t, ok)
	assert.Equal(t, before.Position, flock[0].Position)
	assert.Equal(t, before.Velocity, flock[0].Velocity)
	assert.Equal(t, 2.5, flock[0].PerchTimer)
	assert.True(t, flock[0].Perching)
}

func TestUpdate_TakeOffSteersSameTick(t *testing.T) {
	s := testSettings()
	flock := []Boid{
		{Position: geometry.Vector3D{Y: s.GroundLevel()}, Perching: true, PerchTimer: 0.1},
	}

	o, ok := Update(flock, flock, 0, s, fixedRand(0.5), 0.5)

	require.True(t, ok)
	b := flock[0]
	assert.False(t, b.Perching)
	assert.Equal(t, 3.0, b.PerchTimer)
	// still under the box floor: y-min pushes up in the same tick
	assertVec(t, geometry.Vector3D{Y: s.TurnFactor}, o.Boundary)
	assertVec(t, geometry.Vector3D{Y: s.TurnFactor}, b.Velocity)
	assert.InDelta(t, s.GroundLevel()+s.TurnFactor*0.5, b.Position.Y, tolerance)
}

func TestUpdate_BelowGroundPerches(t *testing.T) {
	s := testSettings()
	flock := []Boid{
		{Position: geometry.Vector3D{X: 1, Y: -2}, Velocity: geometry.Vector3D{Y: -3}},
		{Position: geometry.Vector3D{X: 2, Y: 3}, Velocity: geometry.Vector3D{X: 1}},
	}

	_, ok := Update(flock, flock, 0, s, fixedRand(0.5), 0.5)

	require.True(t, ok)
	assert.True(t, flock[0].Perching)
	assert.Equal(t, s.GroundLevel(), flock[0].Position.Y)
	assert.Equal(t, 1.0, flock[0].Position.X)
}

func TestUpdate_Properties(t *testing.T) {
	s := testSettings()
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(t, "n")
		coord := rapid.Float64Range(-30, 30)
		speed := rapid.Float64Range(-40, 40)
		flock := make([]Boid, n)
		for i := range flock {
			flock[i] = Boid{
				Position: geometry.Vector3D{
					X: coord.Draw(t, "x"), Y: coord.Draw(t, "y"), Z: coord.Draw(t, "z"),
				},
				Velocity: geometry.Vector3D{
					X: speed.Draw(t, "vx"), Y: speed.Draw(t, "vy"), Z: speed.Draw(t, "vz"),
				},
				Perching:   rapid.Bool().Draw(t, "perching"),
				PerchTimer: rapid.Float64Range(0, 5).Draw(t, "timer"),
			}
		}
		dt := rapid.Float64Range(0.001, 1).Draw(t, "dt")
		rng := rand.New(rand.NewPCG(rapid.Uint64().Draw(t, "seed"), 1))

		for i := range flock {
			below := flock[i].Position.Y < s.GroundLevel()
			before := flock[i]
			_, ok := Update(flock, flock, i, s, rng, dt)
			after := flock[i]

			if !ok {
				if after.Position != before.Position || after.Velocity != before.Velocity {
					t.Fatalf("resting boid %d moved: %+v -> %+v", i, before, after)
				}
				continue
			}
			if after.Velocity.Len() > s.SpeedLimit+tolerance {
				t.Fatalf("boid %d speed %v above limit %v", i, after.Velocity.Len(), s.SpeedLimit)
			}
			if below && (!after.Perching || after.Position.Y != s.GroundLevel()) {
				t.Fatalf("boid %d started below ground but ended at %v perching=%v", i, after.Position, after.Perching)
			}
			if after.PerchTimer < 0 {
				t.Fatalf("boid %d perch timer negative: %v", i, after.PerchTimer)
			}
		}
	})
}
