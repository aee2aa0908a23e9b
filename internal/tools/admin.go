// ABOUTME: Session administration tools: authenticate and connection_status.
// ABOUTME: These act on the local session instead of calling a remote endpoint.

package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/oncolink/aria-gateway/internal/aria"
)

// authenticateTool replaces the ARIA credentials wholesale and verifies them
// with an immediate token exchange. The previous credentials are gone either
// way; a failed exchange surfaces as the usual authentication error text.
func authenticateTool(session SessionControl) *Tool {
	return &Tool{
		Name:                 "authenticate",
		Description:          "Replace the ARIA credentials and verify them against the token endpoint",
		InputSchema:          `{"type":"object","properties":{"base_url":{"type":"string","description":"ARIA base URL; keeps the current one when omitted"},"client_id":{"type":"string"},"client_secret":{"type":"string"},"username":{"type":"string"},"password":{"type":"string"}},"required":["client_id","client_secret","username","password"]}`,
		RequiredCapabilities: []string{CapWrite},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			creds := aria.Credentials{
				BaseURL:      stringArg(args, "base_url"),
				ClientID:     stringArg(args, "client_id"),
				ClientSecret: stringArg(args, "client_secret"),
				Username:     stringArg(args, "username"),
				Password:     stringArg(args, "password"),
			}
			if creds.BaseURL == "" {
				creds.BaseURL = session.Status().BaseURL
			}

			session.SetCredentials(creds)
			if _, err := session.Token(ctx); err != nil {
				return "", err
			}
			return fmt.Sprintf("Authenticated against %s as %s.", creds.BaseURL, creds.Username), nil
		},
	}
}

// connectionStatusTool reports the session state without any network call.
func connectionStatusTool(session SessionControl) *Tool {
	return &Tool{
		Name:        "connection_status",
		Description: "Show the configured ARIA endpoint and session token state",
		InputSchema: `{"type":"object","properties":{}}`,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			status := session.Status()
			if status.TokenValid {
				return fmt.Sprintf("Connected to %s as %s. Token valid until %s.",
					status.BaseURL, status.Username, status.ExpiresAt.Format(time.RFC3339)), nil
			}
			return fmt.Sprintf("Configured for %s as %s. No valid session token; the next call will authenticate.",
				status.BaseURL, status.Username), nil
		},
	}
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}
