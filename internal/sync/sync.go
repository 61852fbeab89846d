// Package sync periodically exports every profile to backup destinations.
package sync

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/orggraph/internal/metrics"
	"github.com/alfredjeanlab/orggraph/internal/store"
)

// Destination is a backup target.
type Destination interface {
	// Name identifies the destination in logs.
	Name() string
	// Write stores the JSONL payload.
	Write(ctx context.Context, data []byte) error
}

// Scheduler exports on an interval to one or more destinations.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	log          logrus.FieldLogger
	now          func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler exporting s to destinations every interval.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		log:          log.WithField("component", "sync"),
		now:          time.Now,
	}
}

// Start runs one export immediately, then one per tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for a running export to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.Once(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Once(ctx)
		}
	}
}

// Once exports and writes to every destination concurrently. It returns the
// export error or the first destination error; every destination is tried.
func (s *Scheduler) Once(ctx context.Context) error {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf, s.now()); err != nil {
		metrics.ExportRuns.WithLabelValues(metrics.ResultError).Inc()
		s.log.WithError(err).Error("export failed")
		return err
	}
	data := buf.Bytes()

	var g errgroup.Group
	for _, dest := range s.destinations {
		g.Go(func() error {
			if err := dest.Write(ctx, data); err != nil {
				s.log.WithError(err).WithField("destination", dest.Name()).Error("destination write failed")
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	metrics.ExportRuns.WithLabelValues(metrics.Result(err)).Inc()
	if err == nil {
		s.log.WithFields(logrus.Fields{"destinations": len(s.destinations), "bytes": len(data)}).Info("export completed")
	}
	return err
}
