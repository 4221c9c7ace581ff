// Package gateway exposes a GDS client over HTTP.
//
// Routes:
//
//	GET  /healthz                   liveness
//	GET  /v1/version                connected server version and channel mode
//	GET  /v1/procedures?prefix=...  procedure catalog
//	POST /v1/call/{namespace}       invoke a procedure
//	GET  /metrics                   Prometheus metrics, when configured
//
// A call body has the shape {"args": [...], "params": {...}, "config": {...}}
// and the response is a result table {"columns": [...], "rows": [[...]]}.
// Client errors map to HTTP statuses by code: NO_SUCH_PROCEDURE is 404,
// parameter errors are 400, INCOMPATIBLE_SERVER_VERSION is 409 and TRANSPORT
// is 502.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/channel"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/marshal"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/namespace"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/observability"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/version"
)

// maxBodyBytes bounds call request bodies.
const maxBodyBytes = 1 << 20

// Client is the subset of gds.Client the gateway serves.
type Client interface {
	Call(ctx context.Context, ns namespace.Namespace, args marshal.Args) (*table.Table, error)
	Procedures(ctx context.Context, prefix string) ([]namespace.Procedure, error)
	ServerVersion() version.ServerVersion
	Mode(ctx context.Context) channel.State
}

// Server is the HTTP gateway.
type Server struct {
	client  Client
	logger  *log.Logger
	hooks   observability.HTTPHooks
	metrics http.Handler
	timeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHooks reports requests to h.
func WithHooks(h observability.HTTPHooks) Option {
	return func(s *Server) {
		if h != nil {
			s.hooks = h
		}
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithTimeout bounds each request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a gateway for client.
func New(client Client, opts ...Option) *Server {
	s := &Server{
		client: client,
		logger: log.New(io.Discard),
		hooks:  observability.NoopHTTPHooks{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	if s.timeout > 0 {
		r.Use(middleware.Timeout(s.timeout))
	}

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Get("/procedures", s.handleProcedures)
		r.Post("/call/{namespace}", s.handleCall)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// instrument reports each request to the HTTP hooks and the logger.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.hooks.OnRequest(r.Context(), r.Method, route)
		s.hooks.OnResponse(r.Context(), r.Method, route, status, time.Since(start))
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", status,
			"duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type versionResponse struct {
	ServerVersion string `json:"server_version"`
	Mode          string `json:"mode"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{
		ServerVersion: s.client.ServerVersion().String(),
		Mode:          s.client.Mode(r.Context()).String(),
	})
}

type procedureResponse struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	Signature   string `json:"signature"`
}

func (s *Server) handleProcedures(w http.ResponseWriter, r *http.Request) {
	procs, err := s.client.Procedures(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]procedureResponse, 0, len(procs))
	for _, p := range procs {
		out = append(out, procedureResponse{
			Name:        p.Name,
			Kind:        string(p.Kind),
			Description: p.Description,
			Signature:   p.Signature.Raw,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// CallRequest is the body of POST /v1/call/{namespace}.
type CallRequest struct {
	Args   []any          `json:"args"`
	Params map[string]any `json:"params"`
	Config map[string]any `json:"config"`
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "namespace")
	if err := errors.ValidateNamespace(ns); err != nil {
		s.writeError(w, err)
		return
	}

	var req CallRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, err, "%s: malformed request body", ns))
		return
	}

	args := marshal.Args{Positional: req.Args, Named: req.Params, Config: req.Config}
	res, err := s.client.Call(r.Context(), namespace.Parse(ns), args)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decodeBody decodes JSON keeping integers as int64 so they satisfy
// INTEGER parameters. An empty body decodes to the zero value.
func decodeBody(r *http.Request, v *CallRequest) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	for i, a := range v.Args {
		v.Args[i] = Normalise(a)
	}
	for k, a := range v.Params {
		v.Params[k] = Normalise(a)
	}
	for k, a := range v.Config {
		v.Config[k] = Normalise(a)
	}
	return nil
}

// Normalise converts json.Number values decoded with UseNumber into int64
// when integral and float64 otherwise, recursing into lists and maps.
func Normalise(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = Normalise(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = Normalise(x[k])
		}
		return x
	}
	return v
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := StatusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("call failed", "code", code, "err", err)
	}
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: string(code), Message: err.Error()}})
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeNoSuchProcedure:
		return http.StatusNotFound
	case errors.ErrCodeMissingParameter, errors.ErrCodeInvalidParameter:
		return http.StatusBadRequest
	case errors.ErrCodeIncompatibleServer, errors.ErrCodeUploadInProgress:
		return http.StatusConflict
	case errors.ErrCodeTransport, errors.ErrCodeNegotiationFailed:
		return http.StatusBadGateway
	case errors.ErrCodeClosed:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
