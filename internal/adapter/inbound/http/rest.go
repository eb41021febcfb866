package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/querybridge/querybridge/internal/domain/query"
	"github.com/querybridge/querybridge/internal/service"
)

// restHandler serves the legacy direct-call variant of one operation:
// the JSON body is the argument object, the result envelope is the HTTP
// response itself (no session involved). Query construction is shared with
// the session protocol through the router.
func restHandler(router *service.Router, operation string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxMessageSize)
		defer func() { _ = r.Body.Close() }()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		if len(body) == 0 {
			body = []byte("{}")
		}

		payload, err := router.Invoke(r.Context(), operation, body)
		if err != nil {
			LoggerFromContext(r.Context()).Warn("operation failed",
				"operation", operation, "error", err)
			writeError(w, restStatus(err), err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(payload)
	})
}

// restStatus maps the error taxonomy onto direct-call status codes.
// Validation never reached the database (400); everything upstream is 500.
func restStatus(err error) int {
	var vErr *query.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
