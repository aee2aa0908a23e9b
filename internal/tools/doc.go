// Package tools defines the ARIA tool catalog and the registry that serves it.
//
// Every tool is one row of a declarative table: a name, a JSON Schema for its
// arguments, a binding to either the gateway Process endpoint or a plain REST
// path, and a set of output columns. The registry validates arguments against
// the declared schema, dispatches to the bound handler, and converts every
// failure into a descriptive text block so callers always receive a completed
// response.
package tools
