package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/server"

	"github.com/helixml/artsearch"
	apimiddleware "github.com/helixml/artsearch/infrastructure/api/middleware"
	v1 "github.com/helixml/artsearch/infrastructure/api/v1"
	mcpinternal "github.com/helixml/artsearch/internal/mcp"
)

// requestTimeout bounds every /api/v1 request.
const requestTimeout = 60 * time.Second

// APIServer provides the HTTP API backed by an artsearch Client.
type APIServer struct {
	client       *artsearch.Client
	corsOrigins  []string
	version      string
	server       *Server
	router       chi.Router
	routerCalled bool
	logger       *slog.Logger
}

// NewAPIServer creates an APIServer wired to client. corsOrigins lists the
// origins allowed to call the API; empty allows any.
func NewAPIServer(client *artsearch.Client, corsOrigins []string, version string) *APIServer {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	return &APIServer{
		client:      client,
		corsOrigins: corsOrigins,
		version:     version,
		logger:      client.Logger(),
	}
}

// Router returns the chi router for customization before starting.
// Call this first, add custom middleware with router.Use(), then call MountRoutes().
func (a *APIServer) Router() chi.Router {
	if a.router != nil {
		return a.router
	}

	a.router = chi.NewRouter()
	a.routerCalled = true
	return a.router
}

// MountRoutes wires up all routes on the router.
func (a *APIServer) MountRoutes() {
	if a.router == nil {
		a.Router()
	}
	a.mountRoutes(a.router)
}

func (a *APIServer) mountRoutes(router chi.Router) {
	c := a.client

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{apimiddleware.CorrelationHeader},
		MaxAge:         300,
	}))
	router.Use(apimiddleware.CorrelationID)
	router.Use(apimiddleware.Logging(a.logger))

	router.Mount("/health", v1.NewHealthRouter(c, a.logger).Routes())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))
		r.Mount("/search", v1.NewSearchRouter(c.Search, a.logger).Routes())
	})

	router.Mount("/docs", NewDocsRouter("/docs/doc.json").Routes())

	// No timeout here: MCP streams responses.
	mcpSrv := mcpinternal.NewServer(c.Search, a.version, a.logger)
	router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))
}

// ListenAndServe serves the API on addr until ctx is cancelled.
func (a *APIServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := NewServer(addr, a.logger)
	a.server = srv

	if a.routerCalled && a.router != nil {
		srv.Router().Mount("/", a.router)
	} else {
		a.mountRoutes(srv.Router())
	}

	return srv.Serve(ctx)
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Handler returns the router as an http.Handler for use with custom servers.
func (a *APIServer) Handler() http.Handler {
	if a.router == nil {
		a.Router()
		a.MountRoutes()
	}
	return a.router
}
