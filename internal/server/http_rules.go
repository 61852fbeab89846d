package server

import (
	"net/http"

	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/notify"
	"github.com/alfredjeanlab/orggraph/internal/visibility"
)

type triggerRequest struct {
	notify.Trigger
	// Workspace evaluates against a live, possibly unsaved graph.
	Workspace string `json:"workspace,omitempty"`
}

type triggerResponse struct {
	ProfileID  string             `json:"profileId,omitempty"`
	Recipients []notify.Recipient `json:"recipients"`
}

// handleTrigger handles POST /v1/trigger. Recipients are resolved, published
// and returned.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := s.decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	roster, err := s.roster()
	if err != nil {
		writeErr(w, err)
		return
	}
	g, profileID, err := s.graphFor(r.Context(), req.Workspace, req.ProfileID)
	if err != nil {
		writeErr(w, err)
		return
	}
	t := req.Trigger
	t.ProfileID = profileID
	recipients := s.dispatcher.Dispatch(r.Context(), g, roster, t)
	if recipients == nil {
		recipients = []notify.Recipient{}
	}
	writeJSON(w, http.StatusOK, triggerResponse{ProfileID: profileID, Recipients: recipients})
}

type accessRequest struct {
	ViewerID  string            `json:"viewerId" validate:"required"`
	Module    model.Module      `json:"module" validate:"required"`
	Record    visibility.Record `json:"record"`
	EdgeID    string            `json:"edgeId,omitempty"`
	ProfileID string            `json:"profileId,omitempty"`
	Workspace string            `json:"workspace,omitempty"`
}

// handleAccess handles POST /v1/access. With an edgeId the single edge is
// evaluated; otherwise every visibility edge is, and the strongest grant
// wins.
func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := s.decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if !req.Module.IsValid() {
		writeErr(w, model.Invalid("module", "unknown module %q", req.Module))
		return
	}
	if req.Record.OwnerID == "" {
		writeErr(w, model.Invalid("record.ownerId", "is required"))
		return
	}
	roster, err := s.roster()
	if err != nil {
		writeErr(w, err)
		return
	}
	g, _, err := s.graphFor(r.Context(), req.Workspace, req.ProfileID)
	if err != nil {
		writeErr(w, err)
		return
	}

	if req.EdgeID == "" {
		writeJSON(w, http.StatusOK, visibility.Evaluate(g, roster, req.Module, req.ViewerID, req.Record))
		return
	}

	var (
		edge  model.Edge
		found bool
	)
	for _, e := range g.Edges {
		if e.ID == req.EdgeID {
			edge, found = e, true
			break
		}
	}
	src, okS := g.NodeByID(edge.Source)
	dst, okT := g.NodeByID(edge.Target)
	if !found || !okS || !okT {
		writeErr(w, model.Invalid("edgeId", "edge %q does not exist", req.EdgeID))
		return
	}
	writeJSON(w, http.StatusOK, visibility.CanAccess(visibility.Request{
		Edge:     edge,
		Source:   src,
		Target:   dst,
		Module:   req.Module,
		ViewerID: req.ViewerID,
		Record:   req.Record,
		Roster:   roster,
	}))
}
