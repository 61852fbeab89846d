// Package layout prepares input for an external layered graph-drawing
// engine and applies its output back onto the graph. It contains no layout
// algorithm of its own.
package layout

import (
	"github.com/alfredjeanlab/orggraph/internal/model"
)

// Node box and separation constants handed to the engine.
const (
	NodeWidth  = 200
	NodeHeight = 120
	RankDir    = "TB"
	NodeSep    = 80
	RankSep    = 120
	Margin     = 50
)

// Options are the graph-level settings of a request.
type Options struct {
	RankDir string `json:"rankdir"`
	NodeSep int    `json:"nodesep"`
	RankSep int    `json:"ranksep"`
	MarginX int    `json:"marginx"`
	MarginY int    `json:"marginy"`
}

// Box is one node to be placed.
type Box struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Link is one directed edge to be respected by ranking.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Request is the full engine input.
type Request struct {
	Graph Options `json:"graph"`
	Nodes []Box   `json:"nodes"`
	Edges []Link  `json:"edges"`
}

// Result maps node ids to the engine's center coordinates.
type Result map[string]model.Position

// Positioner receives computed top-left positions. *graph.Store satisfies it.
type Positioner interface {
	SetPositions(map[string]model.Position) int
}

// DefaultOptions returns the fixed top-to-bottom settings.
func DefaultOptions() Options {
	return Options{RankDir: RankDir, NodeSep: NodeSep, RankSep: RankSep, MarginX: Margin, MarginY: Margin}
}

// BuildRequest converts g into an engine request. Edges whose endpoints are
// not in g are left out.
func BuildRequest(g model.Graph) Request {
	req := Request{
		Graph: DefaultOptions(),
		Nodes: make([]Box, 0, len(g.Nodes)),
		Edges: make([]Link, 0, len(g.Edges)),
	}
	known := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		known[n.ID] = struct{}{}
		req.Nodes = append(req.Nodes, Box{ID: n.ID, Width: NodeWidth, Height: NodeHeight})
	}
	for _, e := range g.Edges {
		_, s := known[e.Source]
		_, t := known[e.Target]
		if s && t {
			req.Edges = append(req.Edges, Link{Source: e.Source, Target: e.Target})
		}
	}
	return req
}

// TopLeft converts an engine center point into the node's canvas position.
func TopLeft(center model.Position) model.Position {
	return model.Position{X: center.X - NodeWidth/2, Y: center.Y - NodeHeight/2}
}

// Apply writes res onto dst and returns how many nodes moved. Ids unknown to
// dst are ignored.
func Apply(dst Positioner, res Result) int {
	if len(res) == 0 {
		return 0
	}
	pos := make(map[string]model.Position, len(res))
	for id, c := range res {
		pos[id] = TopLeft(c)
	}
	return dst.SetPositions(pos)
}
