// Package auth provides JWT-based verification of inbound MCP credentials.
package auth
