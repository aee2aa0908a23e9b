// ABOUTME: Thread-safe registry of ARIA tools with JSON Schema argument validation.
// ABOUTME: Converts handler failures into text blocks per the error taxonomy.

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/oncolink/aria-gateway/internal/aria"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// Handler executes one tool call and returns a human-readable text block.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool is one registered tool: its published definition plus its handler.
type Tool struct {
	Name                 string
	Description          string
	InputSchema          string // JSON Schema document
	RequiredCapabilities []string
	Handler              Handler

	schema *jsonschema.Schema
}

// Result is the outcome of a tool call. IsError marks failures, but even a
// failure is plain text: errors never propagate past the registry.
type Result struct {
	Text    string
	IsError bool
}

// Observer receives the outcome of every dispatched tool call.
type Observer interface {
	ObserveToolCall(ctx context.Context, principal, tool, outcome string, elapsed time.Duration)
}

// Registry holds the tool catalog and dispatches calls to handlers.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]*Tool
	order     []string
	observers []Observer
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// AddObserver registers an observer for tool call outcomes.
func (r *Registry) AddObserver(o Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

// Register compiles the tool's input schema and adds it to the catalog.
func (r *Registry) Register(t *Tool) error {
	if t.Name == "" {
		return errors.New("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s has no handler", t.Name)
	}

	schema, err := compileSchema(t.Name, t.InputSchema)
	if err != nil {
		return fmt.Errorf("compiling schema for %s: %w", t.Name, err)
	}
	t.schema = schema

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolCollision, t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// RegisterAll registers every tool, stopping at the first failure.
func (r *Registry) RegisterAll(ts []*Tool) error {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the tool with the given name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns tools visible to a caller with the given capabilities, in
// registration order. Empty caps means an unrestricted caller and returns
// the whole catalog.
func (r *Registry) List(caps []string) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	capSet := make(map[string]struct{}, len(caps))
	for _, c := range caps {
		capSet[c] = struct{}{}
	}

	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		if len(caps) == 0 || hasAll(capSet, t.RequiredCapabilities) {
			out = append(out, t)
		}
	}
	return out
}

// Call validates the raw arguments against the tool's schema and dispatches
// to its handler. Handler and validation failures come back as error-flagged
// text results; only an unknown tool name is reported as a Go error.
func (r *Registry) Call(ctx context.Context, principal, name string, input json.RawMessage) (Result, error) {
	tool := r.Get(name)
	if tool == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	start := time.Now()
	result := r.dispatch(ctx, tool, input)

	outcome := "ok"
	if result.IsError {
		outcome = "error"
	}

	r.mu.RLock()
	observers := r.observers
	r.mu.RUnlock()
	for _, o := range observers {
		o.ObserveToolCall(ctx, principal, name, outcome, time.Since(start))
	}

	r.logger.Debug("tool call",
		"tool", name,
		"principal", principal,
		"outcome", outcome,
		"elapsed", time.Since(start),
	)
	return result, nil
}

func (r *Registry) dispatch(ctx context.Context, tool *Tool, input json.RawMessage) Result {
	if len(input) == 0 || string(input) == "null" {
		input = json.RawMessage("{}")
	}

	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(input))
	if err != nil {
		return Result{Text: "Invalid arguments: " + err.Error(), IsError: true}
	}
	if err := tool.schema.Validate(value); err != nil {
		return Result{Text: "Invalid arguments: " + err.Error(), IsError: true}
	}

	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return Result{Text: "Invalid arguments: " + err.Error(), IsError: true}
	}

	text, err := tool.Handler(ctx, args)
	if err != nil {
		r.logger.Warn("tool handler failed", "tool", tool.Name, "error", err)
		return Result{Text: errorText(err), IsError: true}
	}
	return Result{Text: text}
}

// errorText maps an error onto the user-visible taxonomy: authentication
// failure, non-2xx API response, or transport failure. No stack traces, no
// internal state.
func errorText(err error) string {
	var authErr *aria.AuthError
	if errors.As(err, &authErr) {
		return "Authentication failed: " + authErr.Error()
	}
	var apiErr *aria.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("ARIA API error: %d %s", apiErr.StatusCode, statusText(apiErr.Status))
	}
	return "Request failed: " + err.Error()
}

// statusText strips the numeric prefix Go keeps in http.Response.Status so
// the code is not printed twice.
func statusText(status string) string {
	if i := strings.IndexByte(status, ' '); i > 0 {
		return status[i+1:]
	}
	return status
}

func compileSchema(name, doc string) (*jsonschema.Schema, error) {
	if doc == "" {
		doc = `{"type":"object"}`
	}
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(doc))
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	url := "mem://tools/" + name + ".schema.json"
	if err := compiler.AddResource(url, parsed); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

func hasAll(capSet map[string]struct{}, required []string) bool {
	for _, req := range required {
		if _, ok := capSet[req]; !ok {
			return false
		}
	}
	return true
}
