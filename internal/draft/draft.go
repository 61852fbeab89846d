// Package draft mirrors the in-progress graph of each workspace locally so
// unsaved edits survive a crash or reload. A draft is a full overwrite of
// the previous one and expires after a TTL measured with an injected clock.
package draft

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/orggraph/internal/model"
)

// DefaultTTL is how long a draft stays usable.
const DefaultTTL = 24 * time.Hour

// ErrNoDraft is returned by Load when no usable draft exists.
var ErrNoDraft = errors.New("no draft")

// Clock returns the current time.
type Clock func() time.Time

// Metadata is stored alongside every draft.
type Metadata struct {
	SchemaVersion     int       `json:"schemaVersion"`
	MultiFieldSupport bool      `json:"multiFieldSupport"`
	NodeCount         int       `json:"nodeCount"`
	EdgeCount         int       `json:"edgeCount"`
	LastSaved         time.Time `json:"lastSaved"`
}

// Draft is a recovered local copy of a workspace graph.
type Draft struct {
	Graph   model.Graph
	SavedAt time.Time
	// Age is measured by the repository clock at load time, the same clock
	// that decides expiry.
	Age      time.Duration
	Metadata Metadata
}

// Repository stores one draft per workspace.
type Repository interface {
	Save(ctx context.Context, workspace string, g model.Graph) error
	Load(ctx context.Context, workspace string) (*Draft, error)
	Discard(ctx context.Context, workspace string) error
	Close() error
}
