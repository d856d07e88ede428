package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
)

// Handler methods for routerHandlers

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	// Lock-free: served from the last tick's snapshot
	writeJSON(w, h.session.Snapshot())
}

func (h *routerHandlers) handleGetPlayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.session.Players())
}

func (h *routerHandlers) handleGetRound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.session.Round())
}

func (h *routerHandlers) handleStartRound(w http.ResponseWriter, r *http.Request) {
	if !h.session.StartRound() {
		writeError(w, "Round already active", http.StatusConflict)
		return
	}
	log.Println("🌧️ Round start requested via API")
	writeJSON(w, h.session.Round())
}

func (h *routerHandlers) handlePreview(w http.ResponseWriter, r *http.Request) {
	// Render into a buffer so a failed encode can still return a JSON error
	var buf bytes.Buffer
	if err := h.preview.EncodePNG(&buf, h.session.Snapshot()); err != nil {
		log.Printf("❌ Preview render failed: %v", err)
		writeError(w, "Preview unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
