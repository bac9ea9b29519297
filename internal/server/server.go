// Package server wires the tool registry into an MCP server and runs it
// over the configured transport. stdio is the default; the streamable HTTP
// transport is for remote hosts or multiple concurrent clients. All adapter
// logging goes to stderr so stdout stays clean for the stdio framing.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/openbridge-io/slack-mcp-server/internal/domain/audit"
	"github.com/openbridge-io/slack-mcp-server/internal/domain/tool"
	"github.com/openbridge-io/slack-mcp-server/internal/infra/config"
	"github.com/openbridge-io/slack-mcp-server/internal/version"
)

// Server hosts the MCP endpoint for the Slack tool registry.
type Server struct {
	cfg      config.Config
	registry *tool.Registry
	audit    *audit.Service // nil disables the audit trail
	logger   *log.Logger
	mcp      *mcp.Server
}

// New builds the MCP server and registers every tool in the registry.
func New(cfg config.Config, registry *tool.Registry, auditSvc *audit.Service, logger *log.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		audit:    auditSvc,
		logger:   logger,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "slack-mcp-server",
			Version: version.Version,
		}, nil),
	}

	for _, d := range registry.Descriptors() {
		// The SDK dereferences the schema at AddTool time, so a descriptor
		// without one gets an open object schema instead of a typed nil.
		schema := d.InputSchema
		if schema == nil {
			schema = &jsonschema.Schema{Type: "object"}
		}
		s.mcp.AddTool(&mcp.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: schema,
		}, s.bridge(d.Name))
	}

	return s
}

// Run serves until ctx is cancelled or the transport fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Printf("starting slack-mcp-server (%s transport), tools: %v", s.cfg.Transport, s.registry.Names())

	if s.cfg.Transport == config.TransportHTTP {
		return s.runHTTP(ctx)
	}
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// bridge adapts one registered tool to the MCP handler contract. Dispatch
// already folds every failure into an envelope, so the handler never
// returns a protocol-level error for a well-formed call.
func (s *Server) bridge(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.logger.Printf("received CallToolRequest: %s", name)

		args, err := json.Marshal(req.Params.Arguments)
		if err != nil {
			return nil, err
		}
		if string(args) == "null" {
			args = nil
		}
		res := s.dispatch(ctx, name, args)

		body, err := json.Marshal(res)
		if err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
			IsError: !res.OK,
		}, nil
	}
}

// dispatch invokes the registry and records the outcome in the audit trail.
// Audit write failures are logged and swallowed; they never fail the call.
func (s *Server) dispatch(ctx context.Context, name string, args json.RawMessage) tool.Result {
	start := time.Now()
	res := s.registry.Dispatch(ctx, name, args)

	outcome := audit.OutcomeSuccess
	errorKind, errorStatus := "", ""
	if !res.OK {
		outcome = audit.OutcomeError
		errorKind = string(res.Error.Kind)
		errorStatus = res.Error.Status
	}
	if err := s.audit.Record(ctx, name, outcome, errorKind, errorStatus, time.Since(start)); err != nil {
		s.logger.Printf("audit record failed: %v", err)
	}

	return res
}

// runHTTP serves the streamable HTTP transport plus a health endpoint,
// shutting down gracefully when ctx is cancelled.
func (s *Server) runHTTP(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.handler(),
		// No WriteTimeout: the streamable transport holds responses open.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", s.cfg.HTTPAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// handler builds the HTTP routing: the MCP endpoint and a liveness probe.
func (s *Server) handler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
			"status":  "ok",
			"version": version.Version,
		})
	})
	r.Handle("/mcp", streamable)
	r.Handle("/mcp/*", streamable)

	return r
}
