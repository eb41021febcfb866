package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/querybridge/querybridge/internal/domain/session"
)

// HealthResponse is the JSON body of the /health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version,omitempty"`
	Timestamp string `json:"timestamp"`
	Sessions  int    `json:"sessions"`
}

// healthHandler answers liveness probes. Always 200 and always
// unauthenticated; it reports process health only and never probes the
// database.
func healthHandler(registry *session.Registry, version string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:    "ok",
			Service:   "querybridge",
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Sessions:  registry.Len(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	})
}
