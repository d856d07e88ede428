package game

import "math/rand"

// Obstacle is one falling raindrop.
type Obstacle struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Field holds the active obstacles in spawn order.
// It is not safe for concurrent use; Session serializes access.
type Field struct {
	obstacles []Obstacle
}

// NewField creates an empty field.
func NewField() *Field {
	return &Field{obstacles: make([]Obstacle, 0, 64)}
}

// Spawn appends an obstacle at a random x on the top edge.
func (f *Field) Spawn(rng *rand.Rand) Obstacle {
	o := Obstacle{X: rng.Float64() * FieldWidth, Y: 0}
	f.obstacles = append(f.obstacles, o)
	return o
}

// Add appends an obstacle at an explicit position.
func (f *Field) Add(o Obstacle) {
	f.obstacles = append(f.obstacles, o)
}

// Advance moves every obstacle down by the speed for elapsedMs of round time.
func (f *Field) Advance(elapsedMs float64) {
	speed := ObstacleSpeed(elapsedMs)
	for i := range f.obstacles {
		f.obstacles[i].Y += speed
	}
}

// Prune drops obstacles that reached the bottom edge and returns how many were removed.
func (f *Field) Prune() int {
	// Zero-allocation in-place filtering
	n := 0
	for _, o := range f.obstacles {
		if o.Y < FieldHeight {
			f.obstacles[n] = o
			n++
		}
	}
	removed := len(f.obstacles) - n
	f.obstacles = f.obstacles[:n]
	return removed
}

// Reset removes every obstacle.
func (f *Field) Reset() {
	f.obstacles = f.obstacles[:0]
}

// Len returns the number of active obstacles.
func (f *Field) Len() int {
	return len(f.obstacles)
}

// Obstacles returns the live slice. Callers must not retain it past the current unit of work.
func (f *Field) Obstacles() []Obstacle {
	return f.obstacles
}

// Copy returns a snapshot copy of the obstacles.
func (f *Field) Copy() []Obstacle {
	out := make([]Obstacle, len(f.obstacles))
	copy(out, f.obstacles)
	return out
}
