// Package server exposes profiles, live editing workspaces, event triggers
// and access checks over HTTP, plus a gRPC health endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/alfredjeanlab/orggraph/internal/catalog"
	"github.com/alfredjeanlab/orggraph/internal/draft"
	"github.com/alfredjeanlab/orggraph/internal/events"
	"github.com/alfredjeanlab/orggraph/internal/graph"
	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/notify"
	"github.com/alfredjeanlab/orggraph/internal/schema"
	"github.com/alfredjeanlab/orggraph/internal/store"
	"github.com/alfredjeanlab/orggraph/internal/workspace"
)

// errNoCatalog is returned by operations that need a roster when none is loaded.
var errNoCatalog = errors.New("no user catalog loaded")

// Options configure a Server.
type Options struct {
	Store         store.Store
	Drafts        draft.Repository
	Catalog       *catalog.Catalog
	Publisher     events.Publisher
	Logger        logrus.FieldLogger
	AutosaveDelay time.Duration
}

// Server holds the shared state behind the HTTP and gRPC surfaces.
type Server struct {
	store      store.Store
	workspaces *workspace.Manager
	publisher  events.Publisher
	dispatcher *notify.Dispatcher
	hub        *sseHub
	log        logrus.FieldLogger
	validate   *validator.Validate

	catMu   sync.RWMutex
	catalog *catalog.Catalog
}

// New returns a server over opts.Store.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Publisher == nil {
		opts.Publisher = &events.NoopPublisher{}
	}
	s := &Server{
		store:      opts.Store,
		publisher:  opts.Publisher,
		dispatcher: notify.NewDispatcher(opts.Publisher, opts.Logger),
		hub:        newSSEHub(),
		log:        opts.Logger.WithField("component", "server"),
		validate:   newValidator(),
		catalog:    opts.Catalog,
	}
	s.workspaces = workspace.NewManager(workspace.Options{
		Store:         opts.Store,
		Drafts:        opts.Drafts,
		Logger:        opts.Logger,
		AutosaveDelay: opts.AutosaveDelay,
		OnChange:      s.onGraphChange,
	})
	return s
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Close flushes and closes every open workspace.
func (s *Server) Close() {
	s.workspaces.Close()
}

// SetCatalog replaces the collaborator catalog.
func (s *Server) SetCatalog(c *catalog.Catalog) {
	s.catMu.Lock()
	s.catalog = c
	s.catMu.Unlock()
}

func (s *Server) currentCatalog() *catalog.Catalog {
	s.catMu.RLock()
	defer s.catMu.RUnlock()
	return s.catalog
}

// roster returns the catalog roster, or errNoCatalog.
func (s *Server) roster() (*model.Roster, error) {
	c := s.currentCatalog()
	if c == nil {
		return nil, errNoCatalog
	}
	return c.Roster(), nil
}

// publish sends an event to NATS and to SSE clients. Both are best effort.
func (s *Server) publish(ctx context.Context, topic, workspaceID string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.log.WithError(err).WithField("topic", topic).Warn("failed to publish event")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.WithError(err).WithField("topic", topic).Warn("failed to marshal event for SSE broadcast")
		return
	}
	s.hub.broadcast(topic, workspaceID, payload)
}

func (s *Server) onGraphChange(workspaceID string, c graph.Change) {
	s.publish(context.Background(), events.TopicGraphChanged, workspaceID, events.GraphChanged{Workspace: workspaceID, Change: c})
}

// graphFor returns the graph an evaluation runs against: the live graph of
// an open workspace, else the stored structure of profileID, else that of
// the active profile.
func (s *Server) graphFor(ctx context.Context, workspaceID, profileID string) (model.Graph, string, error) {
	if workspaceID != "" {
		ws, ok := s.workspaces.Lookup(workspaceID)
		if !ok {
			return model.Graph{}, "", errWorkspaceNotOpen
		}
		return ws.Graph().Snapshot(), ws.ProfileID(), nil
	}
	if profileID == "" {
		p, err := s.store.ActiveProfile(ctx)
		if err != nil {
			return model.Graph{}, "", err
		}
		profileID = p.ID
	}
	raw, err := s.store.LoadStructure(ctx, profileID)
	if err != nil {
		return model.Graph{}, "", err
	}
	g, _, err := schema.Decode(raw)
	if err != nil {
		return model.Graph{}, "", err
	}
	return g, profileID, nil
}
