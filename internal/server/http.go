package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/store"
	"github.com/alfredjeanlab/orggraph/internal/workspace"
)

// maxBodyBytes bounds request bodies; structures of a few thousand nodes fit.
const maxBodyBytes = 8 << 20

// Error codes returned alongside HTTP errors.
const (
	CodeInvalid         = "INVALID"
	CodeNotFound        = store.CodeNotFound
	CodeProfileExists   = store.CodeProfileExists
	CodeLastProfile     = store.CodeLastProfile
	CodeSuperseded      = "SUPERSEDED"
	CodeNoProfile       = "NO_PROFILE"
	CodeNoCatalog       = "NO_CATALOG"
	CodeWorkspaceClosed = "WORKSPACE_NOT_OPEN"
	CodePersistence     = "PERSISTENCE"
)

var errWorkspaceNotOpen = errors.New("workspace is not open")

// HTTPOptions configure the HTTP handler.
type HTTPOptions struct {
	// AuthToken, when non-empty, is required as a Bearer token on every
	// route except health and metrics.
	AuthToken string
	// CORSOrigins lists the origins browser editors may call from.
	CORSOrigins []string
}

// NewHTTPHandler returns an http.Handler with all routes registered.
func (s *Server) NewHTTPHandler(opts HTTPOptions) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/profiles", s.handleListProfiles)
	mux.HandleFunc("POST /v1/profiles", s.handleCreateProfile)
	mux.HandleFunc("GET /v1/profiles/{id}", s.handleGetProfile)
	mux.HandleFunc("DELETE /v1/profiles/{id}", s.handleDeleteProfile)
	mux.HandleFunc("PUT /v1/profiles/{id}/active", s.handleSetActive)
	mux.HandleFunc("GET /v1/profiles/{id}/structure", s.handleGetStructure)
	mux.HandleFunc("PUT /v1/profiles/{id}/structure", s.handlePutStructure)

	mux.HandleFunc("GET /v1/workspaces", s.handleListWorkspaces)
	mux.HandleFunc("POST /v1/workspaces/{ws}/open", s.handleOpenWorkspace)
	mux.HandleFunc("GET /v1/workspaces/{ws}/graph", s.handleGetGraph)
	mux.HandleFunc("POST /v1/workspaces/{ws}/nodes", s.handleAddNode)
	mux.HandleFunc("PUT /v1/workspaces/{ws}/nodes/{id}", s.handleUpdateNode)
	mux.HandleFunc("DELETE /v1/workspaces/{ws}/nodes/{id}", s.handleRemoveNode)
	mux.HandleFunc("POST /v1/workspaces/{ws}/edges", s.handleAddEdge)
	mux.HandleFunc("PUT /v1/workspaces/{ws}/edges/{id}", s.handleUpdateEdge)
	mux.HandleFunc("DELETE /v1/workspaces/{ws}/edges/{id}", s.handleRemoveEdge)
	mux.HandleFunc("POST /v1/workspaces/{ws}/save", s.handleSaveWorkspace)
	mux.HandleFunc("POST /v1/workspaces/{ws}/synthesize", s.handleSynthesize)
	mux.HandleFunc("GET /v1/workspaces/{ws}/layout", s.handleGetLayout)
	mux.HandleFunc("PUT /v1/workspaces/{ws}/layout", s.handleApplyLayout)
	mux.HandleFunc("GET /v1/workspaces/{ws}/search", s.handleSearch)
	mux.HandleFunc("GET /v1/workspaces/{ws}/events", s.handleWorkspaceEvents)

	mux.HandleFunc("GET /v1/catalog/palette", s.handlePalette)
	mux.HandleFunc("POST /v1/trigger", s.handleTrigger)
	mux.HandleFunc("POST /v1/access", s.handleAccess)

	var h http.Handler = mux
	h = AuthMiddleware(opts.AuthToken, h)
	h = s.LoggingMiddleware(h)
	h = RequestIDMiddleware(h)
	h = CORSMiddleware(opts.CORSOrigins, h)
	return h
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string             `json:"error"`
	Code   string             `json:"code,omitempty"`
	Fields []model.FieldError `json:"fields,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeErr maps err onto a status code and error body.
func writeErr(w http.ResponseWriter, err error) {
	var (
		ve *model.ValidationError
		pe *workspace.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Code: CodeInvalid, Fields: ve.Errors})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "profile not found", Code: CodeNotFound})
	case errors.Is(err, store.ErrProfileExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: CodeProfileExists})
	case errors.Is(err, store.ErrLastProfile):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: CodeLastProfile})
	case errors.Is(err, workspace.ErrSuperseded):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: CodeSuperseded})
	case errors.Is(err, workspace.ErrNoProfile):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: CodeNoProfile})
	case errors.Is(err, errNoCatalog):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: CodeNoCatalog})
	case errors.Is(err, errWorkspaceNotOpen):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: CodeWorkspaceClosed})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: pe.Error(), Code: CodePersistence})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decode reads a JSON body into v and validates struct tags.
func (s *Server) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return model.Invalid("body", "is required")
		}
		return model.Invalid("body", "invalid JSON: %v", err)
	}
	if reflect.Indirect(reflect.ValueOf(v)).Kind() != reflect.Struct {
		return nil
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		ve := &model.ValidationError{}
		for _, fe := range verrs {
			ve.Add(fieldPath(fe), "failed %s", describeTag(fe))
		}
		return ve
	}
	return nil
}

// fieldPath strips the top-level struct name from a validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	for i := 0; i < len(ns); i++ {
		if ns[i] == '.' {
			return ns[i+1:]
		}
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
}
