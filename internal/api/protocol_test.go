package api

import (
	"encoding/json"
	"testing"

	"rain-dodge/internal/game"
)

// TestDecodeCommand covers every inbound event shape
func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantOK bool
		want   Command
	}{
		{"join with name", `{"event":"join","data":{"name":"Ana"}}`, true, Command{Event: "join", Name: "Ana"}},
		{"join without data", `{"event":"join"}`, true, Command{Event: "join"}},
		{"join null data", `{"event":"join","data":null}`, true, Command{Event: "join"}},
		{"join array data", `{"event":"join","data":[1]}`, true, Command{Event: "join"}},
		{"join bare string", `{"event":"join","data":"bob"}`, true, Command{Event: "join"}},
		{"join numeric name", `{"event":"join","data":{"name":5}}`, true, Command{Event: "join"}},
		{"move string", `{"event":"move","data":"left"}`, true, Command{Event: "move", Direction: game.DirLeft}},
		{"move object", `{"event":"move","data":{"direction":"right"}}`, true, Command{Event: "move", Direction: game.DirRight}},
		{"move bad direction", `{"event":"move","data":"up"}`, false, Command{}},
		{"move missing", `{"event":"move"}`, false, Command{}},
		{"tilt number", `{"event":"tilt","data":-2.5}`, true, Command{Event: "tilt", Delta: -2.5}},
		{"tilt object", `{"event":"tilt","data":{"delta":4}}`, true, Command{Event: "tilt", Delta: 4}},
		{"tilt missing delta", `{"event":"tilt","data":{}}`, false, Command{}},
		{"tilt string", `{"event":"tilt","data":"fast"}`, false, Command{}},
		{"start", `{"event":"start","data":{}}`, true, Command{Event: "start"}},
		{"unknown event", `{"event":"teleport","data":{}}`, false, Command{}},
		{"not json", `hello`, false, Command{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeCommand([]byte(tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

// TestEncodeEvent verifies the outbound envelope shape
func TestEncodeEvent(t *testing.T) {
	data, err := EncodeEvent(game.EventGameOver, int64(4200))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var env struct {
		Event string `json:"event"`
		Data  int64  `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Event != "gameover" || env.Data != 4200 {
		t.Errorf("Unexpected envelope %+v", env)
	}
}
