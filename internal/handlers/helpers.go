package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fjmerc/softvault/internal/models"
)

// sendJSON writes v as a JSON body with an explicit Content-Length.
func sendJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		body = []byte(`{"error":"Internal server error"}`)
		code = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(code)
	w.Write(body)
}

// sendError writes {"error": message}.
func sendError(w http.ResponseWriter, code int, message string) {
	sendJSON(w, code, models.ErrorResponse{Error: message})
}

// sendMessage writes {"message": message}.
func sendMessage(w http.ResponseWriter, code int, message string) {
	sendJSON(w, code, models.MessageResponse{Message: message})
}

// sendText writes a plain text body.
func sendText(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(message)))
	w.WriteHeader(code)
	w.Write([]byte(message))
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
