package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jask/cloudanchors/internal/shortcode"
)

// Server exposes a shortcode.Store over HTTP.
type Server struct {
	store  shortcode.Store
	logger *slog.Logger
}

func NewServer(store shortcode.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{store: store, logger: logger}
}

// NewRouter wires the short-code endpoints:
//
//	POST /codes          allocate a fresh code
//	PUT  /codes/{code}   bind a code to an anchor id
//	GET  /codes/{code}   look up the anchor id
//	GET  /health
func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, "OK")
	}).Methods("GET")
	r.HandleFunc("/codes", s.AllocateHandler).Methods("POST")
	r.HandleFunc("/codes/{code}", s.PutHandler).Methods("PUT")
	r.HandleFunc("/codes/{code}", s.LookupHandler).Methods("GET")
	r.Use(s.logRequests)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http", "method", r.Method, "path", r.URL.Path, "status", rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
