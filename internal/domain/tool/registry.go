// Package tool holds the static tool table and the dispatcher that turns
// tool invocations into result envelopes. Every failure — unknown tool, bad
// arguments, credential trouble, upstream rejection — is folded into an
// unsuccessful envelope so the host always receives a well-formed result.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/openbridge-io/slack-mcp-server/internal/infra/credential"
	"github.com/openbridge-io/slack-mcp-server/internal/infra/slack"
)

var (
	ErrToolAlreadyRegistered = errors.New("tool already registered")
	ErrInvalidDescriptor     = errors.New("invalid tool descriptor")
)

// ErrorKind tags the failure class carried in an unsuccessful envelope.
type ErrorKind string

const (
	ErrorUnknownTool           ErrorKind = "unknown_tool"
	ErrorInvalidArguments      ErrorKind = "invalid_arguments"
	ErrorCredentialUnavailable ErrorKind = "credential_unavailable"
	ErrorRemoteOperation       ErrorKind = "remote_operation_failed"
)

// ResultError describes why an invocation failed.
type ResultError struct {
	Kind    ErrorKind `json:"kind"`
	Field   string    `json:"field,omitempty"`
	Status  string    `json:"status,omitempty"`
	Message string    `json:"message"`
}

// Result is the envelope returned for every invocation, success or failure.
type Result struct {
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ResultError    `json:"error,omitempty"`
}

// Handler executes one tool call with already-validated arguments.
type Handler func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Descriptor declares one tool: its name, a description for the host, the
// input schema arguments are validated against, and the bound handler.
// Descriptors are built once at start-up and never mutated.
type Descriptor struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Handler     Handler
}

// Registry is the static name → descriptor table.
type Registry struct {
	tools map[string]Descriptor
	names []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Descriptor)}
}

// Register adds a descriptor. Empty names, nil handlers and duplicate names
// are rejected.
func (r *Registry) Register(d Descriptor) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" || d.Handler == nil {
		return ErrInvalidDescriptor
	}
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, d.Name)
	}
	r.tools[d.Name] = d
	r.names = append(r.names, d.Name)
	return nil
}

// Descriptors returns all registered descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.tools[name])
	}
	return out
}

// Dispatch validates args against the named tool's schema, invokes its
// handler and wraps the outcome in a Result. It never returns an error and
// never panics a well-formed call up to the transport.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) Result {
	d, ok := r.tools[name]
	if !ok {
		return failure(&ResultError{
			Kind:    ErrorUnknownTool,
			Message: fmt.Sprintf("unknown tool: %s", name),
		})
	}

	if resErr := validateArgs(args, d.InputSchema); resErr != nil {
		return failure(resErr)
	}

	payload, err := d.Handler(ctx, normalizeArgs(args))
	if err != nil {
		return failure(errorToResultError(err))
	}
	return Result{OK: true, Payload: payload}
}

func failure(e *ResultError) Result {
	return Result{OK: false, Error: e}
}

// errorToResultError maps handler errors onto envelope error kinds.
func errorToResultError(err error) *ResultError {
	if errors.Is(err, credential.ErrUnavailable) {
		return &ResultError{Kind: ErrorCredentialUnavailable, Message: err.Error()}
	}

	var opErr *slack.OperationError
	if errors.As(err, &opErr) {
		return &ResultError{
			Kind:    ErrorRemoteOperation,
			Status:  opErr.Status,
			Message: opErr.Error(),
		}
	}

	// Anything else still reaches the host as a structured failure.
	return &ResultError{Kind: ErrorRemoteOperation, Status: "internal", Message: err.Error()}
}

// validateArgs checks args against the declared schema before any network
// call is issued: must be a JSON object, required fields present, values of
// the declared type, integers integral and within declared minimums.
func validateArgs(args json.RawMessage, schema *jsonschema.Schema) *ResultError {
	if schema == nil {
		return nil
	}

	input := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return &ResultError{
				Kind:    ErrorInvalidArguments,
				Message: "arguments must be a JSON object",
			}
		}
	}

	for _, field := range schema.Required {
		v, present := input[field]
		if !present {
			return &ResultError{
				Kind:    ErrorInvalidArguments,
				Field:   field,
				Message: fmt.Sprintf("missing required argument: %s", field),
			}
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return &ResultError{
				Kind:    ErrorInvalidArguments,
				Field:   field,
				Message: fmt.Sprintf("argument %s must not be empty", field),
			}
		}
	}

	for field, value := range input {
		prop, declared := schema.Properties[field]
		if !declared {
			continue
		}
		if resErr := checkType(field, value, prop); resErr != nil {
			return resErr
		}
	}
	return nil
}

func checkType(field string, value any, prop *jsonschema.Schema) *ResultError {
	invalid := func(reason string) *ResultError {
		return &ResultError{Kind: ErrorInvalidArguments, Field: field, Message: reason}
	}

	switch prop.Type {
	case "string":
		if _, ok := value.(string); !ok {
			return invalid(fmt.Sprintf("argument %s must be a string", field))
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return invalid(fmt.Sprintf("argument %s must be a boolean", field))
		}
	case "number", "integer":
		n, ok := value.(float64)
		if !ok {
			return invalid(fmt.Sprintf("argument %s must be a number", field))
		}
		if prop.Type == "integer" && n != math.Trunc(n) {
			return invalid(fmt.Sprintf("argument %s must be an integer", field))
		}
		if prop.Minimum != nil && n < *prop.Minimum {
			return invalid(fmt.Sprintf("argument %s must be at least %v", field, *prop.Minimum))
		}
	}
	return nil
}

// normalizeArgs hands handlers a valid JSON object even when the host sent
// no arguments at all.
func normalizeArgs(args json.RawMessage) json.RawMessage {
	if len(args) == 0 {
		return json.RawMessage(`{}`)
	}
	return args
}

// Names returns the sorted tool names, mostly for logging.
func (r *Registry) Names() []string {
	out := append([]string(nil), r.names...)
	sort.Strings(out)
	return out
}
