// Package aria is the client for the ARIA remote API.
//
// It owns the three pieces every tool handler depends on: the session (the
// credential store plus the cached bearer token and its expiry), the request
// envelope builder for the RPC-style gateway endpoint, and the authenticated
// request executor that dispatches REST and gateway calls.
//
// The token lifecycle is Unauthenticated -> Valid -> Expired -> Valid again on
// refresh. A refresh is a password-grant exchange against {base}/auth/token;
// the token's real lifetime is not introspected, so validity is tracked with a
// fixed configurable TTL. Concurrent refreshes are collapsed to a single
// in-flight exchange. Nothing in this package retries: one failure is final
// for the operation that triggered it.
package aria
