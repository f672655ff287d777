// Package httpapi serves the REST API, the websocket change feed and the
// streamable MCP endpoint behind one bearer-authenticated router.
package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/auth"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/logger"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/metrics"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/server"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/service"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/storage"
)

// Options configures the router.
type Options struct {
	Service  *service.Service
	Servers  *server.Servers
	Verifier auth.Verifier
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
	// BaseURL is the externally visible URL of this server, used as the
	// OAuth resource identifier.
	BaseURL              string
	AuthorizationServers []string
}

// API holds the dependencies of the REST handlers.
type API struct {
	svc *service.Service
	log *logger.Logger
}

const protectedResourcePath = "/.well-known/oauth-protected-resource"

// New builds the complete HTTP handler.
func New(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	a := &API{svc: opts.Service, log: opts.Logger}

	router := mux.NewRouter()
	router.Use(instrument(opts.Logger, opts.Metrics))

	resourceMetadata := ""
	if opts.BaseURL != "" {
		resourceMetadata = strings.TrimRight(opts.BaseURL, "/") + protectedResourcePath
	}
	authenticate := auth.Middleware(opts.Verifier, opts.Service.Store(), resourceMetadata)

	// Public endpoints
	router.HandleFunc("/health", a.handleHealth).Methods("GET")
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics.Handler()).Methods("GET")
	}
	router.Handle(protectedResourcePath,
		auth.ProtectedResourceHandler(opts.BaseURL, opts.AuthorizationServers)).Methods("GET")

	// MCP over streamable HTTP, one server per authenticated user
	if opts.Servers != nil {
		mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
			id, ok := auth.FromContext(r.Context())
			if !ok {
				return nil
			}
			return opts.Servers.For(id.UserID)
		}, nil)
		router.PathPrefix("/mcp").Handler(authenticate(mcpHandler))
	}

	api := router.PathPrefix("/api").Subrouter()
	api.Use(authenticate)

	api.HandleFunc("/me", a.handleMe).Methods("GET")

	// Notes
	api.HandleFunc("/notes", a.handleCreateNote).Methods("POST")
	api.HandleFunc("/notes/by-human-id/{hid}", a.handleGetNoteByHumanID).Methods("GET")
	api.HandleFunc("/notes/{id}", a.handleGetNote).Methods("GET")
	api.HandleFunc("/notes/{id}", a.handleUpdateNote).Methods("PUT")
	api.HandleFunc("/notes/{id}", a.handleDeleteNote).Methods("DELETE")
	api.HandleFunc("/notes/{id}/children", a.handleChildren).Methods("GET")
	api.HandleFunc("/notes/{id}/children", a.handleCreateChild).Methods("POST")
	api.HandleFunc("/notes/{id}/mentioned-by", a.handleMentionedBy).Methods("GET")
	api.HandleFunc("/notes/{id}/ui/{itemId}", a.handleGetCollapsed).Methods("GET")
	api.HandleFunc("/notes/{id}/ui/{itemId}", a.handleSetCollapsed).Methods("PUT")

	// Search
	api.HandleFunc("/search", a.handleSearch).Methods("GET")
	api.HandleFunc("/search-or-recent", a.handleSearchOrRecent).Methods("GET")
	api.HandleFunc("/recent", a.handleRecent).Methods("GET")
	api.HandleFunc("/similar", a.handleSimilarToText).Methods("GET")
	api.HandleFunc("/notes/{id}/similar", a.handleSimilarNotes).Methods("GET")

	// Canvas
	api.HandleFunc("/canvas", a.handleGetCanvas).Methods("GET")
	api.HandleFunc("/canvases/{id}/origin", a.handleSetOrigin).Methods("PUT")
	api.HandleFunc("/canvases/{id}/items", a.handlePlaceNote).Methods("POST")
	api.HandleFunc("/items/{id}", a.handleGetItem).Methods("GET")
	api.HandleFunc("/items/{id}/position", a.handleSetPosition).Methods("PUT")
	api.HandleFunc("/items/{id}", a.handleRemoveItem).Methods("DELETE")

	// Embeddings
	api.HandleFunc("/embeddings/run", a.handleEmbedAll).Methods("POST")
	api.HandleFunc("/embeddings/status", a.handleEmbeddingStatus).Methods("GET")
	api.HandleFunc("/embeddings", a.handleRemoveEmbeddings).Methods("DELETE")
	api.HandleFunc("/notes/{id}/embedding", a.handleEmbedNote).Methods("POST")

	// Change feed
	api.HandleFunc("/events", a.handleEvents).Methods("GET")

	return router
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"embedding": a.svc.PipelineStatus(),
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	respondJSON(w, http.StatusOK, id)
}

// statusRecorder captures the status code written by a handler. It passes
// Flush and Hijack through so streaming and websocket handlers keep working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// instrument logs and counts every request by its route template.
func instrument(log *logger.Logger, m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			route := "unmatched"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			dur := time.Since(start)
			log.LogHTTPRequest(r.Method, route, rec.status, dur)
			m.RecordRequest(r.Method, route, strconv.Itoa(rec.status), dur)
		})
	}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidParent), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrEmbeddingDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err with its mapped status. Internal errors are
// logged and not echoed.
func (a *API) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log := a.log.Component("http")
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
