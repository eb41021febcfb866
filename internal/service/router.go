// Package service wires the protocol router: it dispatches JSON-RPC messages
// submitted for a session to the query executors and delivers results down
// the session's stream.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/querybridge/querybridge/internal/dbconn"
	"github.com/querybridge/querybridge/internal/domain/query"
	"github.com/querybridge/querybridge/internal/domain/session"
	"github.com/querybridge/querybridge/pkg/mcp"
)

// ConnectionSource yields the shared database handle, refreshing the
// bearer token first when needed. Implemented by *dbconn.Manager.
type ConnectionSource interface {
	Acquire(ctx context.Context) (*sql.DB, error)
}

// ProtocolError marks a message the router could not parse at all. The
// transport maps it to a direct 400 response; nothing reaches the stream.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

// Router implements the session-protocol surface: initialize, ping,
// tools/list and tools/call. Execution failures become error-flagged result
// envelopes on the stream; they never close the session.
type Router struct {
	conns   ConnectionSource
	logger  *slog.Logger
	name    string
	version string
	maxRows int
	schemas []string
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithMaxRows caps read_data result sets.
func WithMaxRows(n int) RouterOption {
	return func(r *Router) { r.maxRows = n }
}

// WithSchemas sets the schema filter applied to table listings when the
// request does not name schemas itself.
func WithSchemas(schemas []string) RouterOption {
	return func(r *Router) { r.schemas = schemas }
}

// WithRouterLogger sets the router's logger.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = logger }
}

// NewRouter creates a Router. name and version are reported in the
// initialize handshake.
func NewRouter(conns ConnectionSource, name, version string, opts ...RouterOption) *Router {
	r := &Router{
		conns:   conns,
		logger:  slog.Default(),
		name:    name,
		version: version,
		maxRows: query.DefaultMaxRows,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleMessage processes one submitted message for sess. The response frame
// (if any) is pushed onto the session stream; the caller only acknowledges
// receipt. A *ProtocolError return means the body was not a JSON-RPC message.
func (r *Router) HandleMessage(ctx context.Context, sess *session.Session, raw []byte) error {
	msg, err := mcp.Wrap(raw)
	if err != nil {
		return &ProtocolError{Reason: fmt.Sprintf("invalid JSON-RPC message: %v", err)}
	}
	if !msg.IsRequest() {
		// Responses from the client have no meaning on this surface.
		return &ProtocolError{Reason: "expected a JSON-RPC request"}
	}

	if msg.IsNotification() {
		// notifications/initialized and friends: acknowledged, no frame.
		r.logger.Debug("notification received", "method", msg.Method(), "session_id", sess.ID)
		return nil
	}

	frame, err := r.dispatch(ctx, msg)
	if err != nil {
		return err
	}
	if err := sess.Send(frame); err != nil {
		r.logger.Warn("failed to deliver frame to session",
			"session_id", sess.ID, "method", msg.Method(), "error", err)
	}
	return nil
}

// dispatch routes one request to its handler and builds the response frame.
func (r *Router) dispatch(ctx context.Context, msg *mcp.Message) ([]byte, error) {
	id := msg.RawID()
	switch msg.Method() {
	case "initialize":
		return mcp.NewResultFrame(id, mcp.InitializeResult{
			ProtocolVersion: mcp.ProtocolVersion,
			Capabilities:    mcp.ServerCapabilities{Tools: &mcp.ToolsCapability{}},
			ServerInfo:      mcp.ServerInfo{Name: r.name, Version: r.version},
		})
	case "ping":
		return mcp.NewResultFrame(id, struct{}{})
	case "tools/list":
		return mcp.NewResultFrame(id, mcp.ListToolsResult{Tools: query.Descriptors()})
	case "tools/call":
		return r.callTool(ctx, id, msg.Params())
	default:
		return mcp.NewErrorFrame(id, mcp.CodeMethodNotFound, fmt.Sprintf("method not found: %s", msg.Method()))
	}
}

// callTool invokes the named operation. Every failure past params decoding
// (unknown names, validation, connection and execution errors) is an
// error-flagged result envelope, not a JSON-RPC error.
func (r *Router) callTool(ctx context.Context, id json.RawMessage, params json.RawMessage) ([]byte, error) {
	var call mcp.CallToolParams
	if err := json.Unmarshal(params, &call); err != nil {
		return mcp.NewErrorFrame(id, mcp.CodeInvalidParams, fmt.Sprintf("invalid tools/call params: %v", err))
	}

	payload, err := r.Invoke(ctx, call.Name, call.Arguments)
	if err != nil {
		payload = query.NewErrorResult(err)
	}
	_, isErr := payload.(query.ErrorResult)

	result, err := mcp.TextResult(payload, isErr)
	if err != nil {
		return mcp.NewErrorFrame(id, mcp.CodeInternalError, "failed to encode result")
	}
	return mcp.NewResultFrame(id, result)
}

// Invoke validates args for the named operation and executes it against the
// shared connection. Shared by the session protocol and the legacy REST
// endpoints so query construction lives in exactly one place.
func (r *Router) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	switch name {
	case query.OpReadData:
		parsed, err := query.ParseReadQueryArgs(args)
		if err != nil {
			return nil, err
		}
		db, err := r.conns.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return query.ExecuteReadQuery(ctx, db, parsed, r.maxRows)
	case query.OpListTable:
		parsed, err := query.ParseListTablesArgs(args)
		if err != nil {
			return nil, err
		}
		if len(parsed.Parameters) == 0 {
			parsed.Parameters = r.schemas
		}
		db, err := r.conns.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return query.ListTables(ctx, db, parsed)
	case query.OpDescribeTable:
		parsed, err := query.ParseDescribeTableArgs(args)
		if err != nil {
			return nil, err
		}
		db, err := r.conns.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return query.DescribeTable(ctx, db, parsed)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// Compile-time check that the production manager satisfies the source port.
var _ ConnectionSource = (*dbconn.Manager)(nil)
