package server

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/orggraph/internal/catalog"
	"github.com/alfredjeanlab/orggraph/internal/events"
)

// CatalogLoader reads a fresh catalog, typically from the configured file.
type CatalogLoader func() (*catalog.Catalog, error)

// ReloadCatalog replaces the catalog with the result of load. A failed load
// keeps the current catalog.
func (s *Server) ReloadCatalog(load CatalogLoader) error {
	c, err := load()
	if err != nil {
		return fmt.Errorf("reloading catalog: %w", err)
	}
	s.SetCatalog(c)
	s.log.WithField("users", len(c.Users)).Info("catalog reloaded")
	return nil
}

// StartCatalogReloader reloads the catalog whenever a message arrives on
// events.TopicCatalogReload. It blocks until ctx is cancelled or the
// subscription closes.
func (s *Server) StartCatalogReloader(ctx context.Context, sub events.Subscriber, load CatalogLoader) error {
	ch, cancel, err := sub.Subscribe(events.TopicCatalogReload)
	if err != nil {
		return fmt.Errorf("catalog reloader: subscribe: %w", err)
	}
	defer cancel()

	s.log.Info("catalog reloader started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				s.log.Info("catalog reload subscription closed")
				return nil
			}
			if err := s.ReloadCatalog(load); err != nil {
				s.log.WithError(err).Warn("catalog reload failed")
			}
		}
	}
}
