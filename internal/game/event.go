package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypePlayerJoin
	EventTypePlayerLeave
	EventTypeRoundStart
	EventTypePlayerDeath
	EventTypeRoundEnd
)

// EventVersion for backwards compatibility when reading old logs
const EventVersion uint8 = 1

// Event is one entry of the round audit log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Monotonic sequence
	TickNum   uint64          `json:"tickNum"`   // Session tick this occurred in
	Round     uint64          `json:"round"`
	PlayerID  string          `json:"playerId,omitempty"` // Source connection (for rate limiting)
	Payload   json.RawMessage `json:"payload"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypePlayerJoin:
		return "player_join"
	case EventTypePlayerLeave:
		return "player_leave"
	case EventTypeRoundStart:
		return "round_start"
	case EventTypePlayerDeath:
		return "player_death"
	case EventTypeRoundEnd:
		return "round_end"
	default:
		return "unknown"
	}
}

// MarshalText makes event types readable in the JSONL log.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// PlayerJoinPayload contains player join details
type PlayerJoinPayload struct {
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	SpawnX     float64 `json:"spawnX"`
}

// PlayerLeavePayload contains player leave details
type PlayerLeavePayload struct {
	PlayerID string `json:"playerId"`
	WasAlive bool   `json:"wasAlive"`
}

// RoundStartPayload marks the beginning of a round
type RoundStartPayload struct {
	Players int `json:"players"`
}

// PlayerDeathPayload records where a player was struck
type PlayerDeathPayload struct {
	PlayerID  string  `json:"playerId"`
	X         float64 `json:"x"`
	ElapsedMs int64   `json:"elapsedMs"`
}

// RoundEndPayload records the round duration
type RoundEndPayload struct {
	DurationMs int64 `json:"durationMs"`
	Players    int   `json:"players"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum, round uint64, playerID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Round:     round,
		PlayerID:  playerID,
		Payload:   EncodePayload(payload),
	}
}
