// Package mcp implements the Model Context Protocol server surface.
//
// The server speaks the MCP Streamable HTTP transport: JSON-RPC 2.0 messages
// over POST with Mcp-Session-Id session tracking. It exposes the ARIA tool
// catalog through initialize, tools/list, and tools/call.
//
// Tool failures never become transport faults. A failed tool call returns an
// MCPCallToolResult with isError set and the failure rendered as text, so the
// calling agent always receives a completed response.
//
// Access control is optional: static bearer tokens from configuration (path
// or query token), or HS256 JWTs via the auth.TokenVerifier. Each token maps
// to a principal and a capability list; tools/list and tools/call are
// filtered by capability.
package mcp
