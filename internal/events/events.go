package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/orggraph/internal/graph"
	"github.com/alfredjeanlab/orggraph/internal/model"
)

// Event topic constants
const (
	TopicProfileCreated   = "orggraph.profile.created"
	TopicProfileDeleted   = "orggraph.profile.deleted"
	TopicProfileActivated = "orggraph.profile.activated"
	TopicStructureSaved   = "orggraph.structure.saved"

	// Live editing events, one per graph mutation.
	TopicGraphChanged = "orggraph.graph.changed"

	// Emitted once per resolved recipient of a triggered event.
	TopicNotificationDispatched = "orggraph.notification.dispatched"

	// Published by operators to make servers re-read their user catalog.
	TopicCatalogReload = "orggraph.catalog.reload"
)

// Event types

type ProfileCreated struct {
	Profile *model.Profile `json:"profile"`
}

type ProfileDeleted struct {
	ProfileID string `json:"profile_id"`
}

type ProfileActivated struct {
	ProfileID string `json:"profile_id"`
	Active    bool   `json:"active"`
}

type StructureSaved struct {
	ProfileID string `json:"profile_id"`
	Workspace string `json:"workspace,omitempty"`
	Nodes     int    `json:"nodes"`
	Edges     int    `json:"edges"`
}

type GraphChanged struct {
	Workspace string       `json:"workspace"`
	Change    graph.Change `json:"change"`
}

type NotificationDispatched struct {
	ID         string                 `json:"id"`
	EventType  string                 `json:"event_type"`
	ProfileID  string                 `json:"profile_id,omitempty"`
	UserID     string                 `json:"user_id"`
	Priority   model.Priority         `json:"priority"`
	Channels   model.DeliveryChannels `json:"channels"`
	EdgeID     string                 `json:"edge_id,omitempty"`
	TemplateID string                 `json:"template_id,omitempty"`
	SourceInfo bool                   `json:"source_info,omitempty"`
	At         time.Time              `json:"at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
