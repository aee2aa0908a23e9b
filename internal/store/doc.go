// Package store persists the tool-call audit log in SQLite.
//
// Every dispatched tool call is recorded with its principal, outcome, and
// duration. The store implements the registry's Observer interface, so wiring
// it up is a single AddObserver call.
package store
