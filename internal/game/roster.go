package game

import (
	"math/rand"
	"sort"
)

// Roster is the set of connected players, keyed by connection id.
// It is not safe for concurrent use; Session serializes access.
type Roster struct {
	players  map[string]*Player
	capacity int
}

// NewRoster creates an empty roster holding at most capacity players.
func NewRoster(capacity int) *Roster {
	if capacity <= 0 {
		capacity = MaxPlayers
	}
	return &Roster{
		players:  make(map[string]*Player, capacity),
		capacity: capacity,
	}
}

// Join adds a player for id. It returns false when the roster is full or
// id is already present.
func (r *Roster) Join(id, name string, rng *rand.Rand) (*Player, bool) {
	if len(r.players) >= r.capacity {
		return nil, false
	}
	if _, exists := r.players[id]; exists {
		return nil, false
	}

	p := NewPlayer(id, name, rng)
	r.players[id] = p
	return p, true
}

// Leave removes id. Unknown ids are ignored.
func (r *Roster) Leave(id string) bool {
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	return true
}

// Move applies a discrete move to id.
func (r *Roster) Move(id string, dir Direction) bool {
	p, ok := r.players[id]
	if !ok {
		return false
	}
	return p.Move(dir)
}

// Tilt applies a proportional move to id.
func (r *Roster) Tilt(id string, delta float64) bool {
	p, ok := r.players[id]
	if !ok {
		return false
	}
	return p.Tilt(delta)
}

// AllDead reports whether the roster is non-empty and nobody is alive.
func (r *Roster) AllDead() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if p.Alive {
			return false
		}
	}
	return true
}

// Revive marks every player alive for a fresh round.
func (r *Roster) Revive() {
	for _, p := range r.players {
		p.Alive = true
	}
}

// Get returns the player for id, or nil.
func (r *Roster) Get(id string) *Player {
	return r.players[id]
}

// Len returns the number of players.
func (r *Roster) Len() int {
	return len(r.players)
}

// AliveCount returns the number of living players.
func (r *Roster) AliveCount() int {
	n := 0
	for _, p := range r.players {
		if p.Alive {
			n++
		}
	}
	return n
}

// Alive returns the living players ordered by id so collision order is stable.
func (r *Roster) Alive() []*Player {
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		if p.Alive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Views returns the wire mapping id -> {x, alive, name}.
func (r *Roster) Views() map[string]PlayerView {
	out := make(map[string]PlayerView, len(r.players))
	for id, p := range r.players {
		out[id] = p.View()
	}
	return out
}
