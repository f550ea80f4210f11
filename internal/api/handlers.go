package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jask/cloudanchors/internal/shortcode"
)

// CodeResponse is the body of allocate and lookup responses.
type CodeResponse struct {
	Code     int64  `json:"code"`
	AnchorID string `json:"anchor_id,omitempty"`
}

// PutRequest is the body of PUT /codes/{code}.
type PutRequest struct {
	AnchorID string `json:"anchor_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// AllocateHandler hands out a fresh code.
func (s *Server) AllocateHandler(w http.ResponseWriter, r *http.Request) {
	code, err := s.store.Allocate(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CodeResponse{Code: int64(code)})
}

// PutHandler binds {code} to the anchor id in the body.
func (s *Server) PutHandler(w http.ResponseWriter, r *http.Request) {
	code, err := shortcode.ParseCode(mux.Vars(r)["code"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req PutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.AnchorID) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "anchor_id required"})
		return
	}
	if err := s.store.Put(r.Context(), code, req.AnchorID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CodeResponse{Code: int64(code), AnchorID: req.AnchorID})
}

// LookupHandler returns the anchor id bound to {code}.
func (s *Server) LookupHandler(w http.ResponseWriter, r *http.Request) {
	code, err := shortcode.ParseCode(mux.Vars(r)["code"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	id, err := s.store.Lookup(r.Context(), code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CodeResponse{Code: int64(code), AnchorID: id})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("store error", "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shortcode.ErrInvalidCode):
		return http.StatusBadRequest
	case errors.Is(err, shortcode.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shortcode.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, shortcode.ErrExhausted):
		return http.StatusInsufficientStorage
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
