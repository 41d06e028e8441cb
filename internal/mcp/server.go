/*
Package mcp exposes the orchestration service as an MCP server.

The server uses stdio transport and exposes 5 tools:
  - graph_ask: Answer a question against the knowledge graph
  - graph_sessions: List conversation sessions
  - graph_history: Show the questions and answers of a session
  - graph_delete_session: Delete a session and its messages
  - graph_stats: Report index and session counts
*/
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/observability"
	"github.com/khanglvm/graphrag-agent/internal/service"
	"github.com/khanglvm/graphrag-agent/internal/version"
)

// maxLineBytes bounds a single JSON-RPC request line.
const maxLineBytes = 4 * 1024 * 1024

// Orchestrator is the subset of the service the server calls.
type Orchestrator interface {
	Ask(ctx context.Context, in service.AskInput) (*service.AnswerBundle, error)
	ListSessions(ctx context.Context) ([]domain.SessionSummary, error)
	History(ctx context.Context, sessionID string) ([]service.Entry, error)
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
	Stats(ctx context.Context) (*service.Stats, error)
}

// Server represents the graphrag-agent MCP server.
type Server struct {
	svc Orchestrator
}

// NewServer creates a new MCP server backed by svc.
func NewServer(svc Orchestrator) *Server {
	return &Server{svc: svc}
}

// Run serves requests read line by line from in until it is closed or
// ctx is done. Responses are written to out, one per line.
//
// When ctx is done and in is an io.Closer, in is closed so a pending read
// returns. A reader that cannot be interrupted keeps Run blocked until its
// next line or EOF.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if c, ok := in.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		response, err := s.handleRequest(ctx, line)
		if err != nil {
			response = &MCPResponse{
				JSONRPC: "2.0",
				Error:   &MCPError{Code: -32700, Message: err.Error()},
			}
		}
		if response == nil {
			continue
		}
		if err := enc.Encode(response); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

// MCPRequest represents an incoming MCP JSON-RPC request.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing MCP JSON-RPC response.
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents an MCP error.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// handleRequest processes an incoming MCP request. Notifications get no
// response.
func (s *Server) handleRequest(ctx context.Context, data []byte) (*MCPResponse, error) {
	var req MCPRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC request: %w", err)
	}

	switch {
	case req.Method == "initialize":
		return s.handleInitialize(&req), nil
	case req.Method == "tools/list":
		return s.handleToolsList(&req), nil
	case req.Method == "tools/call":
		return s.handleToolsCall(ctx, &req), nil
	case strings.HasPrefix(req.Method, "notifications/"):
		return nil, nil
	default:
		return errorResponse(&req, -32601, "Method not found"), nil
	}
}

func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "graphrag-agent",
				"version": version.Version,
			},
		},
	}
}

func sessionIDSchema(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": desc,
	}
}

// handleToolsList returns the tool catalog.
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	tools := []map[string]interface{}{
		{
			"name": "graph_ask",
			"description": `Answer a question using the knowledge graph.

The agent decides which retrieval to run: graph queries, schema lookup,
semantic search over indexed entities, or a hybrid of both.

Pass session_id to continue a conversation; omit it to start a new one.
The response carries the session_id to reuse.`,
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"question": map[string]interface{}{
						"type":        "string",
						"description": "Natural language question",
					},
					"session_id": sessionIDSchema("Existing session to continue"),
				},
				"required": []string{"question"},
			},
		},
		{
			"name":        "graph_sessions",
			"description": "List conversation sessions, most recently updated first.",
			"inputSchema": map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			"name":        "graph_history",
			"description": "Show the questions and answers of a session, oldest first.",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDSchema("Session to show"),
				},
				"required": []string{"session_id"},
			},
		},
		{
			"name":        "graph_delete_session",
			"description": "Delete a session and all of its messages.",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDSchema("Session to delete"),
				},
				"required": []string{"session_id"},
			},
		},
		{
			"name":        "graph_stats",
			"description": "Report vector index contents, session count and available retrieval tools.",
			"inputSchema": map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": tools,
		},
	}
}

// handleToolsCall handles tool execution requests.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req, -32602, fmt.Sprintf("invalid params: %v", err))
	}

	log := observability.LoggerFromContext(ctx).With("tool", params.Name)
	sessionID, _ := params.Arguments["session_id"].(string)

	var result interface{}
	var err error

	switch params.Name {
	case "graph_ask":
		question, _ := params.Arguments["question"].(string)
		result, err = s.svc.Ask(ctx, service.AskInput{Question: question, SessionID: sessionID})
	case "graph_sessions":
		result, err = s.svc.ListSessions(ctx)
	case "graph_history":
		if sessionID == "" {
			return errorResponse(req, -32602, "session_id is required")
		}
		result, err = s.svc.History(ctx, sessionID)
	case "graph_delete_session":
		if sessionID == "" {
			return errorResponse(req, -32602, "session_id is required")
		}
		var existed bool
		existed, err = s.svc.DeleteSession(ctx, sessionID)
		result = map[string]interface{}{"session_id": sessionID, "deleted": existed}
	case "graph_stats":
		result, err = s.svc.Stats(ctx)
	default:
		return errorResponse(req, -32602, fmt.Sprintf("Unknown tool: %s", params.Name))
	}

	if err != nil {
		log.Warn("tool call failed", "error", err)
		return errorResponse(req, -32000, err.Error())
	}

	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errorResponse(req, -32603, fmt.Sprintf("encode result: %v", err))
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": string(text),
				},
			},
		},
	}
}

func errorResponse(req *MCPRequest, code int, msg string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Error:   &MCPError{Code: code, Message: msg},
	}
}
