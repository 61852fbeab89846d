package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/orggraph/internal/events"
	"github.com/alfredjeanlab/orggraph/internal/graph"
	"github.com/alfredjeanlab/orggraph/internal/idgen"
	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/schema"
	"github.com/alfredjeanlab/orggraph/internal/store"
)

// handleListProfiles handles GET /v1/profiles.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.ListProfiles(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	if profiles == nil {
		profiles = []*model.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

type createProfileRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// handleCreateProfile handles POST /v1/profiles.
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := s.decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeErr(w, model.Invalid("name", "profile name is required"))
		return
	}
	id, err := idgen.Profile()
	if err != nil {
		writeErr(w, err)
		return
	}
	p := &model.Profile{
		ID:          id,
		Name:        name,
		Description: req.Description,
		IsActive:    req.Active,
	}
	if err := s.store.CreateProfile(r.Context(), p); err != nil {
		writeErr(w, err)
		return
	}
	s.publish(r.Context(), events.TopicProfileCreated, "", events.ProfileCreated{Profile: p})
	writeJSON(w, http.StatusCreated, p)
}

// handleGetProfile handles GET /v1/profiles/{id}.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleDeleteProfile handles DELETE /v1/profiles/{id}.
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteProfile(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	s.publish(r.Context(), events.TopicProfileDeleted, "", events.ProfileDeleted{ProfileID: id})
	w.WriteHeader(http.StatusNoContent)
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// handleSetActive handles PUT /v1/profiles/{id}/active.
func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := s.decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	id := r.PathValue("id")
	if err := s.store.SetActive(r.Context(), id, *req.Active); err != nil {
		writeErr(w, err)
		return
	}
	p, err := s.store.GetProfile(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.publish(r.Context(), events.TopicProfileActivated, "", events.ProfileActivated{ProfileID: id, Active: *req.Active})
	writeJSON(w, http.StatusOK, p)
}

type structureResponse struct {
	Graph     model.Graph   `json:"graph"`
	Migration schema.Report `json:"migration"`
}

// handleGetStructure handles GET /v1/profiles/{id}/structure. The stored
// document is migrated on the way out but not written back.
func (s *Server) handleGetStructure(w http.ResponseWriter, r *http.Request) {
	raw, err := s.store.LoadStructure(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	g, rep, err := schema.Decode(raw)
	if err != nil {
		writeErr(w, model.Invalid("structure", "%v", err))
		return
	}
	writeJSON(w, http.StatusOK, structureResponse{Graph: nonNil(g), Migration: rep})
}

// handlePutStructure handles PUT /v1/profiles/{id}/structure. The body is a
// graph document in any supported schema generation. It is checked the way
// interactive edits are, so every node and edge must be valid on its own and
// every edge must connect existing nodes through a supported relation.
func (s *Server) handlePutStructure(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := s.decode(r, &raw); err != nil {
		writeErr(w, err)
		return
	}
	g, decoded, err := schema.Decode(raw)
	if err != nil {
		writeErr(w, model.Invalid("body", "%v", err))
		return
	}
	built, err := graph.Build(g)
	if err != nil {
		writeErr(w, err)
		return
	}
	g = built.Snapshot()
	doc, rep, err := schema.Migrator{MigratedAt: decoded.MigratedAt}.Document(g)
	if err != nil {
		writeErr(w, err)
		return
	}
	rep = decoded.Add(rep)
	b, err := json.Marshal(doc)
	if err != nil {
		writeErr(w, err)
		return
	}
	id := r.PathValue("id")
	err = s.store.SaveStructure(r.Context(), id, store.Structure{
		Document:      b,
		SchemaVersion: schema.CurrentVersion,
		Relationships: len(g.Edges),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	s.publish(r.Context(), events.TopicStructureSaved, "", events.StructureSaved{
		ProfileID: id,
		Nodes:     len(g.Nodes),
		Edges:     len(g.Edges),
	})
	writeJSON(w, http.StatusOK, structureResponse{Graph: nonNil(g), Migration: rep})
}

// nonNil makes empty graphs encode as empty arrays.
func nonNil(g model.Graph) model.Graph {
	if g.Nodes == nil {
		g.Nodes = []model.Node{}
	}
	if g.Edges == nil {
		g.Edges = []model.Edge{}
	}
	return g
}
