// ABOUTME: Tests for the MCP HTTP server including tool listing and execution.
// ABOUTME: Validates session handling, auth, capability filtering, and error results.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oncolink/aria-gateway/internal/tools"
)

// mockTokenVerifier implements auth.TokenVerifier for testing.
type mockTokenVerifier struct {
	principalID string
	caps        []string
	err         error
}

func (m *mockTokenVerifier) Verify(token string) (string, []string, error) {
	if m.err != nil {
		return "", nil, m.err
	}
	return m.principalID, m.caps, nil
}

// setupTestRegistry creates a registry with a public and a guarded tool.
func setupTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	registry := tools.NewRegistry(slog.Default())

	register := func(name string, caps []string, handler tools.Handler) {
		t.Helper()
		err := registry.Register(&tools.Tool{
			Name:                 name,
			Description:          name + " test tool",
			InputSchema:          `{"type":"object","properties":{"input":{"type":"string"}}}`,
			RequiredCapabilities: caps,
			Handler:              handler,
		})
		if err != nil {
			t.Fatalf("failed to register %s: %v", name, err)
		}
	}

	register("public-tool", nil, func(ctx context.Context, args map[string]any) (string, error) {
		return "public output", nil
	})
	register("write-tool", []string{"write"}, func(ctx context.Context, args map[string]any) (string, error) {
		return "wrote it", nil
	})
	register("failing-tool", nil, func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("remote unavailable")
	})

	return registry
}

func newTestServer(t *testing.T, cfg Config) *http.ServeMux {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	server, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	return mux
}

// postRPC sends a JSON-RPC request and decodes the response.
func postRPC(t *testing.T, mux *http.ServeMux, path, sessionID string, reqBody any) (*httptest.ResponseRecorder, JSONRPCResponse) {
	t.Helper()

	data, err := json.Marshal(reqBody)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	var resp JSONRPCResponse
	if rr.Code == http.StatusOK {
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return rr, resp
}

// initialize performs the handshake and returns the session ID.
func initialize(t *testing.T, mux *http.ServeMux, path string) string {
	t.Helper()

	data := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("initialize returned status %d", rr.Code)
	}
	sessionID := rr.Header().Get("Mcp-Session-Id")
	if sessionID == "" {
		t.Fatal("initialize did not return a session ID")
	}
	return sessionID
}

func TestInitialize_CreatesSession(t *testing.T) {
	mux := newTestServer(t, Config{Registry: setupTestRegistry(t)})

	rr, resp := postRPC(t, mux, "/mcp", "", map[string]any{
		"jsonrpc": "2.0", "id": 1, "method": "initialize",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if rr.Header().Get("Mcp-Session-Id") == "" {
		t.Error("expected Mcp-Session-Id header")
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	serverInfo, _ := result["serverInfo"].(map[string]any)
	if serverInfo["name"] != "aria-gateway" {
		t.Errorf("serverInfo.name = %v, want aria-gateway", serverInfo["name"])
	}
}

func TestToolsList_ReturnsAllWhenUnrestricted(t *testing.T) {
	mux := newTestServer(t, Config{Registry: setupTestRegistry(t)})
	sessionID := initialize(t, mux, "/mcp")

	_, resp := postRPC(t, mux, "/mcp", sessionID, map[string]any{
		"jsonrpc": "2.0", "id": 2, "method": "tools/list",
	})

	data, _ := json.Marshal(resp.Result)
	var result MCPListToolsResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to decode tools/list result: %v", err)
	}
	if len(result.Tools) != 3 {
		t.Errorf("expected 3 tools, got %d", len(result.Tools))
	}
	for _, tool := range result.Tools {
		if len(tool.InputSchema) == 0 {
			t.Errorf("tool %s has no input schema", tool.Name)
		}
	}
}

func TestToolsList_FiltersByTokenCapabilities(t *testing.T) {
	store := NewTokenStore()
	store.Add("tok-read", "reader", []string{"read"})

	mux := newTestServer(t, Config{
		Registry:    setupTestRegistry(t),
		TokenStore:  store,
		RequireAuth: true,
	})
	sessionID := initialize(t, mux, "/mcp/tok-read")

	_, resp := postRPC(t, mux, "/mcp", sessionID, map[string]any{
		"jsonrpc": "2.0", "id": 2, "method": "tools/list",
	})

	data, _ := json.Marshal(resp.Result)
	var result MCPListToolsResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to decode tools/list result: %v", err)
	}
	// write-tool requires the "write" capability the token doesn't have.
	if len(result.Tools) != 2 {
		t.Errorf("expected 2 tools, got %d", len(result.Tools))
	}
	for _, tool := range result.Tools {
		if tool.Name == "write-tool" {
			t.Error("write-tool should be filtered out")
		}
	}
}

func TestToolsCall_Success(t *testing.T) {
	mux := newTestServer(t, Config{Registry: setupTestRegistry(t)})
	sessionID := initialize(t, mux, "/mcp")

	_, resp := postRPC(t, mux, "/mcp", sessionID, map[string]any{
		"jsonrpc": "2.0", "id": 3, "method": "tools/call",
		"params": map[string]any{"name": "public-tool", "arguments": map[string]any{"input": "x"}},
	})

	data, _ := json.Marshal(resp.Result)
	var result MCPCallToolResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to decode tools/call result: %v", err)
	}
	if result.IsError {
		t.Error("expected success result")
	}
	if len(result.Content) != 1 || result.Content[0].Text != "public output" {
		t.Errorf("unexpected content: %+v", result.Content)
	}
}

func TestToolsCall_HandlerFailureIsTextResult(t *testing.T) {
	mux := newTestServer(t, Config{Registry: setupTestRegistry(t)})
	sessionID := initialize(t, mux, "/mcp")

	rr, resp := postRPC(t, mux, "/mcp", sessionID, map[string]any{
		"jsonrpc": "2.0", "id": 4, "method": "tools/call",
		"params": map[string]any{"name": "failing-tool"},
	})

	// A failed tool call is still a completed JSON-RPC response.
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if resp.Error != nil {
		t.Fatalf("expected result, got JSON-RPC error: %+v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result MCPCallToolResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to decode tools/call result: %v", err)
	}
	if !result.IsError {
		t.Error("expected isError result")
	}
	if len(result.Content) != 1 || result.Content[0].Text == "" {
		t.Error("expected failure text content")
	}
}

func TestToolsCall_InsufficientCapabilities(t *testing.T) {
	store := NewTokenStore()
	store.Add("tok-read", "reader", []string{"read"})

	mux := newTestServer(t, Config{
		Registry:    setupTestRegistry(t),
		TokenStore:  store,
		RequireAuth: true,
	})
	sessionID := initialize(t, mux, "/mcp/tok-read")

	_, resp := postRPC(t, mux, "/mcp", sessionID, map[string]any{
		"jsonrpc": "2.0", "id": 5, "method": "tools/call",
		"params": map[string]any{"name": "write-tool"},
	})

	if resp.Error == nil {
		t.Fatal("expected JSON-RPC error")
	}
	if resp.Error.Code != JSONRPCInvalidRequest {
		t.Errorf("error code = %d, want %d", resp.Error.Code, JSONRPCInvalidRequest)
	}
}

func TestToolsCall_UnknownTool(t *testing.T) {
	mux := newTestServer(t, Config{Registry: setupTestRegistry(t)})
	sessionID := initialize(t, mux, "/mcp")

	_, resp := postRPC(t, mux, "/mcp", sessionID, map[string]any{
		"jsonrpc": "2.0", "id": 6, "method": "tools/call",
		"params": map[string]any{"name": "missing-tool"},
	})

	if resp.Error == nil || resp.Error.Code != JSONRPCInvalidParams {
		t.Errorf("expected invalid params error, got %+v", resp.Error)
	}
}

func TestRequireAuth_RejectsUnauthenticatedInitialize(t *testing.T) {
	mux := newTestServer(t, Config{
		Registry:    setupTestRegistry(t),
		TokenStore:  NewTokenStore(),
		RequireAuth: true,
	})

	_, resp := postRPC(t, mux, "/mcp", "", map[string]any{
		"jsonrpc": "2.0", "id": 1, "method": "initialize",
	})

	if resp.Error == nil {
		t.Fatal("expected JSON-RPC error for unauthenticated initialize")
	}
}

func TestRequireAuth_RejectsInvalidPathToken(t *testing.T) {
	mux := newTestServer(t, Config{
		Registry:    setupTestRegistry(t),
		TokenStore:  NewTokenStore(),
		RequireAuth: true,
	})

	_, resp := postRPC(t, mux, "/mcp/bogus-token", "", map[string]any{
		"jsonrpc": "2.0", "id": 1, "method": "initialize",
	})

	if resp.Error == nil || resp.Error.Message != "invalid or expired token" {
		t.Errorf("expected invalid token error, got %+v", resp.Error)
	}
}

func TestJWTAuth_SetsPrincipalCapabilities(t *testing.T) {
	mux := newTestServer(t, Config{
		Registry:      setupTestRegistry(t),
		TokenVerifier: &mockTokenVerifier{principalID: "agent-7", caps: []string{"write"}},
		RequireAuth:   true,
	})

	data := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer some-jwt")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	sessionID := rr.Header().Get("Mcp-Session-Id")
	if sessionID == "" {
		t.Fatal("expected session ID")
	}

	_, resp := postRPC(t, mux, "/mcp", sessionID, map[string]any{
		"jsonrpc": "2.0", "id": 2, "method": "tools/call",
		"params": map[string]any{"name": "write-tool"},
	})
	if resp.Error != nil {
		t.Fatalf("write-tool should be callable with write cap: %+v", resp.Error)
	}
}

func TestNotification_Returns202(t *testing.T) {
	mux := newTestServer(t, Config{Registry: setupTestRegistry(t)})
	sessionID := initialize(t, mux, "/mcp")

	data := []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(data))
	req.Header.Set("Mcp-Session-Id", sessionID)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", rr.Code)
	}
}

func TestMissingSession_Returns404(t *testing.T) {
	mux := newTestServer(t, Config{Registry: setupTestRegistry(t)})

	rr, _ := postRPC(t, mux, "/mcp", "nonexistent-session", map[string]any{
		"jsonrpc": "2.0", "id": 2, "method": "tools/list",
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestDelete_TerminatesOwnSession(t *testing.T) {
	store := NewTokenStore()
	store.Add("tok-1", "owner", nil)

	mux := newTestServer(t, Config{
		Registry:    setupTestRegistry(t),
		TokenStore:  store,
		RequireAuth: true,
	})
	sessionID := initialize(t, mux, "/mcp/tok-1")

	// A caller with different credentials must not terminate the session.
	req := httptest.NewRequest(http.MethodDelete, "/mcp/tok-other", nil)
	req.Header.Set("Mcp-Session-Id", sessionID)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}

	// The owner can.
	req = httptest.NewRequest(http.MethodDelete, "/mcp/tok-1", nil)
	req.Header.Set("Mcp-Session-Id", sessionID)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rr.Code)
	}

	// Session gone: subsequent calls 404.
	rr2, _ := postRPC(t, mux, "/mcp", sessionID, map[string]any{
		"jsonrpc": "2.0", "id": 9, "method": "tools/list",
	})
	if rr2.Code != http.StatusNotFound {
		t.Errorf("expected status 404 after delete, got %d", rr2.Code)
	}
}

func TestGet_MethodNotAllowed(t *testing.T) {
	mux := newTestServer(t, Config{Registry: setupTestRegistry(t)})

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rr.Code)
	}
}
