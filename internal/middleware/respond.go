package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError writes the same failure envelope the handlers use, for
// requests rejected before they reach a handler.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": msg},
	})
}
