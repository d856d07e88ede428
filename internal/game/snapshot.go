package game

import "time"

// Outbound event names.
const (
	EventPlayers  = "players"
	EventState    = "state"
	EventGameOver = "gameover"
)

// Broadcaster fans an event out to every connected participant.
// Implementations must not block; delivery is fire-and-forget.
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

// WorldSnapshot is the payload of the per-tick "state" broadcast.
type WorldSnapshot struct {
	Players   map[string]PlayerView `json:"players"`
	Raindrops []Obstacle            `json:"raindrops"`
}

// RoundInfo describes the current (or last) round.
type RoundInfo struct {
	Active    bool      `json:"active"`
	Round     uint64    `json:"round"`
	StartedAt time.Time `json:"startedAt"`
	ElapsedMs int64     `json:"elapsedMs"`
}

// SessionSnapshot is an immutable view of the session produced once per tick.
type SessionSnapshot struct {
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Tick      uint64    `json:"tick"`

	World WorldSnapshot `json:"world"`
	Round RoundInfo     `json:"round"`

	PlayerCount int `json:"playerCount"`
	AliveCount  int `json:"aliveCount"`
}
