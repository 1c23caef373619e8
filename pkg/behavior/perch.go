package behavior

// State is the behavioral state of a boid.
type State int

const (
	Flying State = iota
	Perching
)

func (st State) String() string {
	switch st {
	case Flying:
		return "flying"
	case Perching:
		return "perching"
	default:
		return "unknown"
	}
}

// State returns the boid's current behavioral state.
func (b *Boid) State() State {
	if b.Perching {
		return Perching
	}
	return Flying
}

// land switches a flying boid to perching: y is pinned to the ground level and a fresh
// rest duration is drawn.
func land(b *Boid, s *Settings, rng Rand) {
	b.Position.Y = s.GroundLevel()
	b.Perching = true
	b.PerchTimer = s.PerchTimerRange.Draw(rng)
}

// Rest advances the perch timer of b by dt and reports whether b keeps resting this tick.
// When the timer runs out the boid takes off: the flag is cleared, a new timer is drawn
// and false is returned so the boid steers in the same tick.
// Flying boids are left untouched.
func Rest(b *Boid, dt float64, s *Settings, rng Rand) bool {
	if !b.Perching {
		return false
	}
	b.PerchTimer -= dt
	if b.PerchTimer > 0 {
		return true
	}
	b.Perching = false
	b.PerchTimer = s.PerchTimerRange.Draw(rng)
	return false
}
