// Package transport holds the JSON response helpers shared by HTTP handlers.
package transport

import (
	"encoding/json"
	"net/http"

	"github.com/SARVESHVARADKAR123/marketchat/internal/observability"
	"go.uber.org/zap"
)

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		observability.Log.Error("failed to encode response", zap.Error(err))
	}
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
