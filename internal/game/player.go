package game

import (
	"math"
	"math/rand"
)

// Direction is a discrete horizontal move input.
type Direction string

const (
	DirLeft  Direction = "left"
	DirRight Direction = "right"
)

// ParseDirection returns the direction named by s.
// Anything other than "left" or "right" is rejected.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirLeft, DirRight:
		return Direction(s), true
	default:
		return "", false
	}
}

// Player is one connected participant.
type Player struct {
	ID    string  `json:"-"`
	X     float64 `json:"x"`
	Alive bool    `json:"alive"`
	Name  string  `json:"name"`
}

// PlayerView is the wire form of a player inside "players" and "state" broadcasts.
// Uses value types so snapshots stay immutable after the lock is released.
type PlayerView struct {
	X     float64 `json:"x"`
	Alive bool    `json:"alive"`
	Name  string  `json:"name"`
}

// NewPlayer creates an alive player at a random position inside the field.
// An empty name falls back to FallbackName(id).
func NewPlayer(id, name string, rng *rand.Rand) *Player {
	if name == "" {
		name = FallbackName(id)
	}

	return &Player{
		ID:    id,
		X:     rng.Float64() * (FieldWidth - PlayerWidth),
		Alive: true,
		Name:  name,
	}
}

// FallbackName derives a display name from a connection id.
func FallbackName(id string) string {
	short := id
	if len(short) > 4 {
		short = short[:4]
	}
	return "Player-" + short
}

// Move shifts the player by MoveStep in dir. Dead players don't move.
func (p *Player) Move(dir Direction) bool {
	if !p.Alive {
		return false
	}

	switch dir {
	case DirLeft:
		p.X = clampX(p.X - MoveStep)
	case DirRight:
		p.X = clampX(p.X + MoveStep)
	default:
		return false
	}
	return true
}

// Tilt shifts the player proportionally to delta. Dead players don't move.
func (p *Player) Tilt(delta float64) bool {
	if !p.Alive || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return false
	}
	p.X = clampX(p.X + delta*TiltScale)
	return true
}

// Hitbox returns the half-open horizontal span [left, right) an obstacle must fall into.
func (p *Player) Hitbox() (left, right float64) {
	return p.X, p.X + PlayerWidth
}

// View returns an immutable copy for broadcasting.
func (p *Player) View() PlayerView {
	return PlayerView{X: p.X, Alive: p.Alive, Name: p.Name}
}
