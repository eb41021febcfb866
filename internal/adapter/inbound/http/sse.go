package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/querybridge/querybridge/internal/domain/session"
	"github.com/querybridge/querybridge/internal/service"
)

// SessionIDHeader carries the session identifier on one-shot submissions.
// The sessionId query parameter is the fallback.
const (
	SessionIDHeader = "x-mcp-session-id"
	SessionIDParam  = "sessionId"
)

// maxMessageSize bounds one-shot message bodies (1 MB).
const maxMessageSize = 1 << 20

// keepAliveInterval paces SSE comment frames so idle streams survive
// intermediary proxies.
const keepAliveInterval = 30 * time.Second

// sseHandler serves the session protocol: GET establishes a stream,
// POST submits a one-shot message tagged with a session identifier.
func sseHandler(router *service.Router, registry *session.Registry, metrics *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handleStreamOpen(w, r, registry, metrics)
		case http.MethodPost:
			handleMessageSubmit(w, r, router, registry)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})
}

// handleStreamOpen creates a session and serves protocol frames down the
// long-lived response. The first frame is an endpoint event telling the
// client where to POST messages for this session.
func handleStreamOpen(w http.ResponseWriter, r *http.Request, registry *session.Registry, metrics *Metrics) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	logger := LoggerFromContext(r.Context())

	sess := registry.Create()
	defer registry.Remove(sess.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(SessionIDHeader, sess.ID)

	_, _ = fmt.Fprintf(w, "event: endpoint\ndata: %s?%s=%s\n\n", r.URL.Path, SessionIDParam, sess.ID)
	flusher.Flush()
	sess.MarkOpen()

	if metrics != nil {
		metrics.ActiveSessions.Inc()
		defer metrics.ActiveSessions.Dec()
	}
	logger.Info("session established", "session_id", sess.ID)
	defer logger.Info("session closed", "session_id", sess.ID)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			// Client disconnect is the removal trigger (deferred above).
			return
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case frame, ok := <-sess.Frames():
			if !ok {
				// Session terminated elsewhere (shutdown).
				return
			}
			_, _ = fmt.Fprintf(w, "event: message\ndata: %s\n\n", frame)
			flusher.Flush()
		}
	}
}

// handleMessageSubmit resolves the tagged session and forwards the body to
// the protocol router. The protocol response travels down the session
// stream; this response only acknowledges acceptance.
func handleMessageSubmit(w http.ResponseWriter, r *http.Request, router *service.Router, registry *session.Registry) {
	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		sessionID = r.URL.Query().Get(SessionIDParam)
	}
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session ID")
		return
	}

	sess, err := registry.Get(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMessageSize)
	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusBadRequest, "request body too large (max 1MB)")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := router.HandleMessage(r.Context(), sess, body); err != nil {
		var protoErr *service.ProtocolError
		if errors.As(err, &protoErr) {
			writeError(w, http.StatusBadRequest, protoErr.Reason)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"accepted"}`))
}
