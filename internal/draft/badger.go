package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/schema"
)

// Per-workspace keys.
const (
	keyNodes     = "nodes"
	keyEdges     = "edges"
	keyTimestamp = "timestamp"
	keyMetadata  = "metadata"
)

// Options configure a Badger-backed repository.
type Options struct {
	// Dir holds the database files; empty means in-memory.
	Dir    string
	TTL    time.Duration
	Clock  Clock
	Logger logrus.FieldLogger
}

// BadgerRepository keeps drafts in an embedded Badger database.
type BadgerRepository struct {
	db    *badger.DB
	ttl   time.Duration
	clock Clock
	log   logrus.FieldLogger
}

var _ Repository = (*BadgerRepository)(nil)

// badgerLogger routes Badger's own logging through logrus, one level down
// for informational chatter.
type badgerLogger struct {
	log logrus.FieldLogger
}

func (l badgerLogger) Errorf(format string, args ...any)   { l.log.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...any) { l.log.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...any)    { l.log.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...any)   { l.log.Debugf(format, args...) }

// Open opens (or creates) the draft database.
func Open(opts Options) (*BadgerRepository, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		opts.Logger = l
	}
	log := opts.Logger.WithField("component", "draft")

	var bopts badger.Options
	if opts.Dir == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create draft directory %s: %w", opts.Dir, err)
		}
		bopts = badger.DefaultOptions(opts.Dir)
	}
	bopts = bopts.WithNumVersionsToKeep(1).WithLogger(badgerLogger{log: log})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open draft database: %w", err)
	}
	return &BadgerRepository{db: db, ttl: opts.TTL, clock: opts.Clock, log: log}, nil
}

func key(workspace, name string) []byte {
	return []byte("draft/" + workspace + "/" + name)
}

// Save overwrites the workspace draft with g. All four keys are written in
// one transaction.
func (r *BadgerRepository) Save(_ context.Context, workspace string, g model.Graph) error {
	doc, _, err := schema.Document(g)
	if err != nil {
		return err
	}
	nodes, err := json.Marshal(doc["nodes"])
	if err != nil {
		return fmt.Errorf("encoding draft nodes: %w", err)
	}
	edges, err := json.Marshal(doc["edges"])
	if err != nil {
		return fmt.Errorf("encoding draft edges: %w", err)
	}
	now := r.clock().UTC()
	meta, err := json.Marshal(Metadata{
		SchemaVersion:     schema.CurrentVersion,
		MultiFieldSupport: true,
		NodeCount:         len(g.Nodes),
		EdgeCount:         len(g.Edges),
		LastSaved:         now,
	})
	if err != nil {
		return fmt.Errorf("encoding draft metadata: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		for name, val := range map[string][]byte{
			keyNodes:     nodes,
			keyEdges:     edges,
			keyTimestamp: []byte(strconv.FormatInt(now.UnixMilli(), 10)),
			keyMetadata:  meta,
		} {
			if err := txn.Set(key(workspace, name), val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write draft %s: %w", workspace, err)
	}
	return nil
}

// Load returns the workspace draft, or ErrNoDraft when none exists or it has
// expired. Expired drafts are removed.
func (r *BadgerRepository) Load(ctx context.Context, workspace string) (*Draft, error) {
	raw := make(map[string][]byte, 4)
	err := r.db.View(func(txn *badger.Txn) error {
		for _, name := range []string{keyTimestamp, keyNodes, keyEdges, keyMetadata} {
			item, err := txn.Get(key(workspace, name))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if raw[name], err = item.ValueCopy(nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read draft %s: %w", workspace, err)
	}
	if raw[keyTimestamp] == nil {
		return nil, ErrNoDraft
	}

	ms, err := strconv.ParseInt(string(raw[keyTimestamp]), 10, 64)
	if err != nil {
		r.log.WithField("workspace", workspace).Warn("discarding draft with unreadable timestamp")
		return nil, r.expire(ctx, workspace)
	}
	savedAt := time.UnixMilli(ms).UTC()
	age := r.clock().Sub(savedAt)
	if age > r.ttl {
		r.log.WithFields(logrus.Fields{"workspace": workspace, "age": age.Round(time.Second)}).Info("discarding expired draft")
		return nil, r.expire(ctx, workspace)
	}

	var meta Metadata
	if raw[keyMetadata] != nil {
		if err := json.Unmarshal(raw[keyMetadata], &meta); err != nil {
			r.log.WithError(err).Warn("ignoring unreadable draft metadata")
		}
	}

	doc := map[string]any{"nodes": json.RawMessage(orEmpty(raw[keyNodes])), "edges": json.RawMessage(orEmpty(raw[keyEdges]))}
	if meta.SchemaVersion > 0 {
		doc["metadata"] = map[string]any{"schemaVersion": meta.SchemaVersion, "multiFieldSupport": meta.MultiFieldSupport}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("assembling draft: %w", err)
	}
	g, _, err := schema.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decoding draft %s: %w", workspace, err)
	}
	return &Draft{Graph: g, SavedAt: savedAt, Age: age, Metadata: meta}, nil
}

func (r *BadgerRepository) expire(ctx context.Context, workspace string) error {
	if err := r.Discard(ctx, workspace); err != nil {
		return err
	}
	return ErrNoDraft
}

// Discard removes the workspace draft. A missing draft is not an error.
func (r *BadgerRepository) Discard(_ context.Context, workspace string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		for _, name := range []string{keyNodes, keyEdges, keyTimestamp, keyMetadata} {
			if err := txn.Delete(key(workspace, name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("discard draft %s: %w", workspace, err)
	}
	return nil
}

// Close closes the database.
func (r *BadgerRepository) Close() error {
	return r.db.Close()
}

func orEmpty(b []byte) []byte {
	if len(b) == 0 {
		return []byte("[]")
	}
	return b
}
