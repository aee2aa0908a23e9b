// Package gateway wires the ARIA session, tool catalog, audit store, and MCP
// server into one HTTP service and manages its lifecycle.
package gateway
