package model

import "time"

// Graph is the serialized form of an organization graph.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// IsEmpty reports whether the graph has neither nodes nor edges.
func (g Graph) IsEmpty() bool {
	return len(g.Nodes) == 0 && len(g.Edges) == 0
}

// NodeByID returns the node with id, if present.
func (g Graph) NodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Profile is a named, persisted snapshot of the organization graph.
type Profile struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	IsActive           bool      `json:"isActive"`
	SchemaVersion      int       `json:"schemaVersion"`
	RelationshipsCount int       `json:"relationshipsCount"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
