package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sentinel/internal/logger"
)

// Version is the MCP server version.
const Version = "0.1.0"

// shutdownGrace bounds in-flight HTTP requests after cancellation.
const shutdownGrace = 5 * time.Second

// instructions tells connected agents how the data is partitioned.
const instructions = `Sentinel stores chunks of public AI model documentation (system cards,
papers, usage policies, model READMEs) partitioned by (company, model).
Every chunk tool takes a company and a model; names are matched
case-insensitively and punctuation-insensitively. A model with no stored
chunks returns an empty list, while an unreachable store returns an error.
Use get_stats to discover which models are stored.`

var log = logger.For("mcp")

// Server exposes the query and catalog ports to audit agents.
type Server struct {
	ports     *Ports
	server    *mcp.Server
	version   string
	keepAlive time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithVersion overrides the advertised implementation version.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// WithKeepAlive pings idle sessions at the given interval.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		s.keepAlive = d
	}
}

// NewServer registers every tool and resource over ports.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{ports: ports, version: Version}
	for _, opt := range opts {
		opt(s)
	}

	s.server = mcp.NewServer(
		&mcp.Implementation{Name: "sentinel", Version: s.version},
		&mcp.ServerOptions{Instructions: instructions, KeepAlive: s.keepAlive},
	)
	s.server.AddReceivingMiddleware(logCalls)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// logCalls records each tool call with its duration.
func logCalls(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		params, ok := req.GetParams().(*mcp.CallToolParamsRaw)
		if !ok {
			return next(ctx, method, req)
		}
		start := time.Now()
		res, err := next(ctx, method, req)
		if err != nil {
			log.Warn("tool %s failed after %s: %v", params.Name, time.Since(start).Round(time.Millisecond), err)
			return res, err
		}
		log.Debug("tool %s took %s", params.Name, time.Since(start).Round(time.Millisecond))
		return res, nil
	}
}

// Run serves one session over stdio until ctx is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunHTTP serves on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown: %v", err)
		}
	}()

	log.Info("listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
