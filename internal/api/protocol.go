package api

import (
	"encoding/json"
	"math"

	"rain-dodge/internal/game"
)

// Inbound event names sent by clients.
const (
	EventJoin  = "join"
	EventMove  = "move"
	EventTilt  = "tilt"
	EventStart = "start"
)

// Envelope is the wire frame in both directions: {"event": "...", "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outbound mirrors Envelope with an already-typed payload.
type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Command is a decoded client message, ready to apply to the session.
type Command struct {
	Event     string
	Name      string
	Direction game.Direction
	Delta     float64
}

// DecodeCommand parses one client frame. The second result is false for
// malformed frames, unknown events and invalid payloads; those are dropped.
func DecodeCommand(raw []byte) (Command, bool) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Command{}, false
	}

	cmd := Command{Event: env.Event}
	switch env.Event {
	case EventJoin:
		// Anything without a string name joins under the fallback name
		var req struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(env.Data, &req) == nil {
			cmd.Name = req.Name
		}
		return cmd, true

	case EventMove:
		dir, ok := decodeDirection(env.Data)
		if !ok {
			return Command{}, false
		}
		cmd.Direction = dir
		return cmd, true

	case EventTilt:
		delta, ok := decodeDelta(env.Data)
		if !ok {
			return Command{}, false
		}
		cmd.Delta = delta
		return cmd, true

	case EventStart:
		return cmd, true
	}

	return Command{}, false
}

// decodeDirection accepts "left" or {"direction": "left"}.
func decodeDirection(data json.RawMessage) (game.Direction, bool) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var req struct {
			Direction string `json:"direction"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return "", false
		}
		s = req.Direction
	}
	return game.ParseDirection(s)
}

// decodeDelta accepts 1.5 or {"delta": 1.5}.
func decodeDelta(data json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		var req struct {
			Delta *float64 `json:"delta"`
		}
		if err := json.Unmarshal(data, &req); err != nil || req.Delta == nil {
			return 0, false
		}
		f = *req.Delta
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// EncodeEvent marshals an outbound frame.
func EncodeEvent(event string, data interface{}) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: data})
}
