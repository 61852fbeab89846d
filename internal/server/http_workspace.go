package server

import (
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/orggraph/internal/events"
	"github.com/alfredjeanlab/orggraph/internal/graph"
	"github.com/alfredjeanlab/orggraph/internal/idgen"
	"github.com/alfredjeanlab/orggraph/internal/layout"
	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/schema"
	"github.com/alfredjeanlab/orggraph/internal/synth"
	"github.com/alfredjeanlab/orggraph/internal/workspace"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 200
)

// openWorkspace returns the workspace named in the path, or writes a 404.
func (s *Server) openWorkspace(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	ws, ok := s.workspaces.Lookup(r.PathValue("ws"))
	if !ok {
		writeErr(w, errWorkspaceNotOpen)
		return nil, false
	}
	return ws, true
}

type workspaceInfo struct {
	ID        string `json:"id"`
	ProfileID string `json:"profileId,omitempty"`
	Dirty     bool   `json:"dirty"`
}

// handleListWorkspaces handles GET /v1/workspaces.
func (s *Server) handleListWorkspaces(w http.ResponseWriter, _ *http.Request) {
	out := []workspaceInfo{}
	for _, id := range s.workspaces.IDs() {
		ws, ok := s.workspaces.Lookup(id)
		if !ok {
			continue
		}
		out = append(out, workspaceInfo{ID: id, ProfileID: ws.ProfileID(), Dirty: ws.Graph().Dirty()})
	}
	writeJSON(w, http.StatusOK, out)
}

type openRequest struct {
	ProfileID string `json:"profileId" validate:"required"`
}

type openResponse struct {
	*workspace.LoadResult
	Graph       model.Graph `json:"graph"`
	RemoteError string      `json:"remoteError,omitempty"`
}

// handleOpenWorkspace handles POST /v1/workspaces/{ws}/open.
func (s *Server) handleOpenWorkspace(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := s.decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	ws := s.workspaces.Get(r.PathValue("ws"))
	res, err := ws.Open(r.Context(), req.ProfileID)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := openResponse{LoadResult: res, Graph: nonNil(ws.Graph().Snapshot())}
	if res.RemoteErr != nil {
		resp.RemoteError = res.RemoteErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type graphResponse struct {
	Graph     model.Graph `json:"graph"`
	Dirty     bool        `json:"dirty"`
	Version   uint64      `json:"version"`
	ProfileID string      `json:"profileId,omitempty"`
}

// handleGetGraph handles GET /v1/workspaces/{ws}/graph.
func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.openWorkspace(w, r)
	if !ok {
		return
	}
	g, version := ws.Graph().SnapshotVersion()
	writeJSON(w, http.StatusOK, graphResponse{
		Graph:     nonNil(g),
		Dirty:     ws.Graph().Dirty(),
		Version:   version,
		ProfileID: ws.ProfileID(),
	})
}

// handleAddNode handles POST /v1/workspaces/{ws}/nodes.
func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.openWorkspace(w, r)
	if !ok {
		return
	}
	var n model.Node
	if err := s.decode(r, &n); err != nil {
		writeErr(w, err)
		return
	}
	if n.ID == "" {
		id, err := idgen.Node()
		if err != nil {
			writeErr(w, err)
			return
		}
		n.ID = id
	}
	if err := ws.Graph().AddNode(n); err != nil {
		writeErr(w, err)
		return
	}
	stored, _ := ws.Graph().Node(n.ID)
	writeJSON(w, http.StatusCreated, stored)
}

// handleUpdateNode handles PUT /v1/workspaces/{ws}/nodes/{id}.
func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.openWorkspace(w, r)
	if !ok {
		return
	}
	var n model.Node
	if err := s.decode(r, &n); err != nil {
		writeErr(w, err)
		return
	}
	n.ID = r.PathValue("id")
	if err := ws.Graph().UpdateNode(n); err != nil {
		writeErr(w, err)
		return
	}
	stored, _ := ws.Graph().Node(n.ID)
	writeJSON(w, http.StatusOK, stored)
}

// handleRemoveNode handles DELETE /v1/workspaces/{ws}/nodes/{id}. Edges
// touching the node are removed with it and listed in the response.
func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.openWorkspace(w, r)
	if !ok {
		return
	}
	removed, err := ws.Graph().RemoveNode(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"removedEdges": removed})
}

// handleAddEdge handles POST /v1/workspaces/{ws}/edges.
func (s *Server) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.openWorkspace(w, r)
	if !ok {
		return
	}
	var e model.Edge
	if err := s.decode(r, &e); err != nil {
		writeErr(w, err)
		return
	}
	if e.ID == "" {
		id, err := idgen.Edge()
		if err != nil {
			writeErr(w, err)
			return
		}
		e.ID = id
	}
	if err := ws.Graph().AddEdge(e); err != nil {
		writeErr(w, err)
		return
	}
	stored, _ := ws.Graph().Edge(e.ID)
	writeJSON(w, http.StatusCreated, stored)
}

// handleUpdateEdge handles PUT /v1/workspaces/{ws}/edges/{id}.
func (s *Server) handleUpdateEdge(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.openWorkspace(w, r)
	if !ok {
		return
	}
	var e model.Edge
	if err := s.decode(r, &e); err != nil {
		writeErr(w, err)
		return
	}
	e.ID = r.PathValue("id")
	if err := ws.Graph().UpdateEdge(e); err != nil {
		writeErr(w, err)
		return
	}
	stored, _ := ws.Graph().Edge(e.ID)
	writeJSON(w, http.StatusOK, stored)
}

// handleRemoveEdge handles DELETE /v1/workspaces/{ws}/edges/{id}.
func (s *Server) handleRemoveEdge(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.openWorkspace(w, r)
	if !ok {
		return
	}
	if err := ws.Graph().RemoveEdge(r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type saveResponse struct {
	ProfileID string        `json:"profileId"`
	Migration schema.Report `json:"migration"`
	Nodes     int           `json:"nodes"`
	Edges     int           `json:"edges"`
}

// handleSaveWorkspace handles POST /v1/workspaces/{ws}/save.
func (s *Server) handleSaveWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.openWorkspace(w, r)
	if !ok {
		return
	}
	rep, err := ws.Save(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	nodes, edges := ws.Graph().Len()
	resp := saveResponse{ProfileID: ws.ProfileID(), Migration: rep, Nodes: nodes, Edges: edges}
	s.publish(r.Context(), events.TopicStructureSaved, ws.ID(), events.StructureSaved{
		ProfileID: resp.ProfileID,
		Workspace: ws.ID(),
		Nodes:     nodes,
		Edges:     edges,
	})
	writeJSON(w, http.StatusOK, resp)
}

type synthesizeRequest struct {
	// Users overrides the catalog roster when non-empty.
	Users []model.RosterUser `json:"users" validate:"omitempty,dive"`
	// UserIDs restricts generation to these users.
	UserIDs []string `json:"userIds"`
}

type synthesizeResponse struct {
	AddedNodes int                `json:"addedNodes"`
	AddedEdges int                `json:"addedEdges"`
	Tiers      map[synth.Tier]int `json:"tiers"`
	Orphans    []string           `json:"orphans,omitempty"`
}

// handleSynthesize handles POST /v1/workspaces/{ws}/synthesize. The
// generated hierarchy is merged into the live graph; existing nodes and
// edges with the same ids are kept as they are.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.openWorkspace(w, r)
	if !ok {
		return
	}
	var req synthesizeRequest
	if r.ContentLength != 0 {
		if err := s.decode(r, &req); err != nil {
			writeErr(w, err)
			return
		}
	}
	users := req.Users
	if len(users) == 0 {
		roster, err := s.roster()
		if err != nil {
			writeErr(w, err)
			return
		}
		users = roster.Users()
	}

	var res synth.Result
	if len(req.UserIDs) > 0 {
		res = synth.SynthesizeSelected(users, req.UserIDs)
	} else {
		res = synth.Synthesize(users)
	}
	nodes, edges, err := ws.Graph().Merge(res.Graph)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, synthesizeResponse{AddedNodes: nodes, AddedEdges: edges, Tiers: res.Tiers, Orphans: res.Orphan})
}

// handleGetLayout handles GET /v1/workspaces/{ws}/layout. The response is
// the input for the external layout engine.
func (s *Server) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.openWorkspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, layout.BuildRequest(ws.Graph().Snapshot()))
}

// handleApplyLayout handles PUT /v1/workspaces/{ws}/layout with the engine's
// center coordinates keyed by node id.
func (s *Server) handleApplyLayout(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.openWorkspace(w, r)
	if !ok {
		return
	}
	var res layout.Result
	if err := s.decode(r, &res); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"moved": layout.Apply(ws.Graph(), res)})
}

// handleSearch handles GET /v1/workspaces/{ws}/search?q=&limit=.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.openWorkspace(w, r)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeErr(w, model.Invalid("q", "is required"))
		return
	}
	limit := defaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeErr(w, model.Invalid("limit", "must be a positive integer"))
			return
		}
		limit = min(n, maxSearchLimit)
	}
	matches := ws.Graph().Search(q, limit)
	if matches == nil {
		matches = []graph.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

// handlePalette handles GET /v1/catalog/palette.
func (s *Server) handlePalette(w http.ResponseWriter, _ *http.Request) {
	c := s.currentCatalog()
	if c == nil {
		writeErr(w, errNoCatalog)
		return
	}
	nodes := c.Palette()
	if nodes == nil {
		nodes = []model.Node{}
	}
	writeJSON(w, http.StatusOK, nodes)
}
