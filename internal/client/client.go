// Package client provides a transport-agnostic interface for the orggraph
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"encoding/json"

	"github.com/alfredjeanlab/orggraph/internal/graph"
	"github.com/alfredjeanlab/orggraph/internal/layout"
	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/notify"
	"github.com/alfredjeanlab/orggraph/internal/schema"
	"github.com/alfredjeanlab/orggraph/internal/synth"
	"github.com/alfredjeanlab/orggraph/internal/visibility"
)

// Client is the interface the og CLI commands use to talk to the server.
type Client interface {
	// Profiles
	ListProfiles(ctx context.Context) ([]*model.Profile, error)
	CreateProfile(ctx context.Context, req *CreateProfileRequest) (*model.Profile, error)
	DeleteProfile(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) (*model.Profile, error)

	// Structures
	GetStructure(ctx context.Context, id string) (*StructureResponse, error)
	PutStructure(ctx context.Context, id string, doc json.RawMessage) (*StructureResponse, error)

	// Workspaces
	OpenWorkspace(ctx context.Context, ws, profileID string) (*OpenResponse, error)
	GetGraph(ctx context.Context, ws string) (*GraphResponse, error)
	SaveWorkspace(ctx context.Context, ws string) (*SaveResponse, error)
	Synthesize(ctx context.Context, ws string, req *SynthesizeRequest) (*SynthesizeResponse, error)
	LayoutRequest(ctx context.Context, ws string) (*layout.Request, error)
	ApplyLayout(ctx context.Context, ws string, res layout.Result) (int, error)
	Search(ctx context.Context, ws, query string, limit int) ([]graph.Match, error)

	// Rules
	Trigger(ctx context.Context, req *TriggerRequest) (*TriggerResponse, error)
	Access(ctx context.Context, req *AccessRequest) (json.RawMessage, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateProfileRequest holds parameters for creating a profile.
type CreateProfileRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active,omitempty"`
}

// StructureResponse is a stored structure after migration.
type StructureResponse struct {
	Graph     model.Graph   `json:"graph"`
	Migration schema.Report `json:"migration"`
}

// OpenResponse describes how a workspace was loaded.
type OpenResponse struct {
	ProfileID   string        `json:"profileId"`
	Source      string        `json:"source"`
	Migration   schema.Report `json:"migration"`
	Dropped     []string      `json:"droppedEdges,omitempty"`
	RemoteError string        `json:"remoteError,omitempty"`
	Graph       model.Graph   `json:"graph"`
}

// GraphResponse is the live graph of a workspace.
type GraphResponse struct {
	Graph     model.Graph `json:"graph"`
	Dirty     bool        `json:"dirty"`
	Version   uint64      `json:"version"`
	ProfileID string      `json:"profileId,omitempty"`
}

// SaveResponse is the result of saving a workspace.
type SaveResponse struct {
	ProfileID string        `json:"profileId"`
	Migration schema.Report `json:"migration"`
	Nodes     int           `json:"nodes"`
	Edges     int           `json:"edges"`
}

// SynthesizeRequest selects the users to generate a hierarchy for. Both
// fields are optional; the server's catalog is used when Users is empty.
type SynthesizeRequest struct {
	Users   []model.RosterUser `json:"users,omitempty"`
	UserIDs []string           `json:"userIds,omitempty"`
}

// SynthesizeResponse reports what a synthesis merged into the graph.
type SynthesizeResponse struct {
	AddedNodes int                `json:"addedNodes"`
	AddedEdges int                `json:"addedEdges"`
	Tiers      map[synth.Tier]int `json:"tiers"`
	Orphans    []string           `json:"orphans,omitempty"`
}

// TriggerRequest is one business event to route.
type TriggerRequest struct {
	EventType     string       `json:"eventType"`
	Entity        model.Entity `json:"entity,omitempty"`
	TriggerUserID string       `json:"triggerUserId,omitempty"`
	ProfileID     string       `json:"profileId,omitempty"`
	Workspace     string       `json:"workspace,omitempty"`
}

// TriggerResponse lists the resolved recipients.
type TriggerResponse struct {
	ProfileID  string             `json:"profileId,omitempty"`
	Recipients []notify.Recipient `json:"recipients"`
}

// AccessRequest asks what a viewer may see of a record.
type AccessRequest struct {
	ViewerID  string            `json:"viewerId"`
	Module    model.Module      `json:"module"`
	Record    visibility.Record `json:"record"`
	EdgeID    string            `json:"edgeId,omitempty"`
	ProfileID string            `json:"profileId,omitempty"`
	Workspace string            `json:"workspace,omitempty"`
}
