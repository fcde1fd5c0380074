// Package debug serves a read-mostly HTTP view of a running engine.
//
// Routes:
//
//	GET  /info                    engine summary
//	GET  /state                   committed state
//	GET  /config                  current configuration
//	GET  /nodes/{id}              one node
//	GET  /nodes/{id}/children     direct children of a group
//	GET  /nodes/{id}/edges        edges touching a node
//	GET  /nodes/{id}/overlaps     nodes overlapping a node
//	GET  /edges/{id}              one edge
//	GET  /range?x=&y=&w=&h=       nodes intersecting a rectangle
//	POST /commands                emit a command envelope
//	GET  /metrics                 Prometheus metrics, when a gatherer is set
package debug

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/flowcore/pkg/command"
	"github.com/matzehuels/flowcore/pkg/errors"
	"github.com/matzehuels/flowcore/pkg/flowcore"
	"github.com/matzehuels/flowcore/pkg/model"
)

// maxCommandBody bounds POST /commands payloads.
const maxCommandBody = 1 << 20

// Options configures the handler.
type Options struct {
	Logger   *log.Logger
	Gatherer prom.Gatherer // enables /metrics when set
	ReadOnly bool          // rejects POST /commands
}

type server struct {
	d      *flowcore.Debug
	logger *log.Logger
	opts   Options
}

// NewHandler returns an http.Handler exposing d.
func NewHandler(d *flowcore.Debug, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	s := &server{d: d, logger: opts.Logger, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/info", s.info)
	r.Get("/state", s.state)
	r.Get("/config", s.config)
	r.Route("/nodes/{id}", func(r chi.Router) {
		r.Get("/", s.node)
		r.Get("/children", s.children)
		r.Get("/edges", s.connected)
		r.Get("/overlaps", s.overlaps)
	})
	r.Get("/edges/{id}", s.edge)
	r.Get("/range", s.inRange)
	r.Post("/commands", s.emit)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("debug request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *server) info(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.d.Info())
}

func (s *server) state(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.d.State())
}

func (s *server) config(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.d.Config())
}

func (s *server) node(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, ok := s.d.Node(id)
	if !ok {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "node %q not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, n)
}

func (s *server) edge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	e, ok := s.d.Edge(id)
	if !ok {
		s.writeError(w, errors.New(errors.ErrCodeNotFound, "edge %q not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *server) children(w http.ResponseWriter, r *http.Request) {
	writeList(s, w, s.d.Children(chi.URLParam(r, "id")))
}

func (s *server) connected(w http.ResponseWriter, r *http.Request) {
	writeList(s, w, s.d.ConnectedEdges(chi.URLParam(r, "id")))
}

func (s *server) overlaps(w http.ResponseWriter, r *http.Request) {
	writeList(s, w, s.d.Overlapping(chi.URLParam(r, "id")))
}

func (s *server) inRange(w http.ResponseWriter, r *http.Request) {
	var rect model.Rect
	fields := []struct {
		key string
		dst *float64
	}{{"x", &rect.X}, {"y", &rect.Y}, {"w", &rect.Width}, {"h", &rect.Height}}
	for _, f := range fields {
		v, err := strconv.ParseFloat(r.URL.Query().Get(f.key), 64)
		if err != nil {
			s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "query parameter %q", f.key))
			return
		}
		*f.dst = v
	}
	writeList(s, w, s.d.InRange(rect))
}

func (s *server) emit(w http.ResponseWriter, r *http.Request) {
	if s.opts.ReadOnly {
		s.writeError(w, errors.New(errors.ErrCodeUnsupported, "commands are disabled"))
		return
	}
	var env command.Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBody)).Decode(&env); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidCommand, err, "decode envelope"))
		return
	}
	cmd, err := env.Decode()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.d.Emit(r.Context(), cmd); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.d.Info())
}

// writeList encodes an empty list as [] rather than null.
func writeList[T any](s *server, w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	s.writeJSON(w, http.StatusOK, items)
}

type errorBody struct {
	Code    errors.Code `json:"code,omitempty"`
	Message string      `json:"message"`
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(errors.GetCode(err))
	if status >= http.StatusInternalServerError {
		s.logger.Error("debug request failed", "err", err)
	}
	s.writeJSON(w, status, errorBody{Code: errors.GetCode(err), Message: errors.UserMessage(err)})
}

func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidID, errors.ErrCodeInvalidConfig, errors.ErrCodeInvalidCommand:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeTransaction, errors.ErrCodeDuplicateMiddleware:
		return http.StatusConflict
	case errors.ErrCodeUnsupported:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", "err", err)
	}
}
