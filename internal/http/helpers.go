package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pindi/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// sanitizeInput trims whitespace and strips control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// refDate resolves the optional date query parameter, defaulting to today.
func refDate(r *http.Request) (time.Time, bool) {
	v := strings.TrimSpace(r.URL.Query().Get("date"))
	if v == "" {
		return time.Now(), true
	}
	t, err := core.ParseDate(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
