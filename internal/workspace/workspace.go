// Package workspace binds a live graph to a persisted profile. It loads a
// profile with remote-then-draft-then-empty precedence, keeps a debounced
// local draft of unsaved edits, and saves back with last-write-wins.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/sirupsen/logrus"

	"github.com/alfredjeanlab/orggraph/internal/draft"
	"github.com/alfredjeanlab/orggraph/internal/graph"
	"github.com/alfredjeanlab/orggraph/internal/metrics"
	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/schema"
	"github.com/alfredjeanlab/orggraph/internal/store"
)

// DefaultAutosaveDelay is the quiet period before a draft is written.
const DefaultAutosaveDelay = time.Second

var (
	// ErrSuperseded is returned by Open when a later Open started before it
	// finished. Its result has been discarded.
	ErrSuperseded = errors.New("load superseded by a newer load")
	// ErrNoProfile is returned when saving a workspace with no open profile.
	ErrNoProfile = errors.New("no profile open")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("workspace closed")
)

// PersistenceError wraps a failed remote load or save.
type PersistenceError struct {
	Op        string
	ProfileID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s profile %s: %v", e.Op, e.ProfileID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Source says where an opened graph came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceDraft  Source = "draft"
	SourceEmpty  Source = "empty"
)

// LoadResult describes a completed Open.
type LoadResult struct {
	ProfileID string        `json:"profileId"`
	Source    Source        `json:"source"`
	Migration schema.Report `json:"migration"`
	Dropped   []string      `json:"droppedEdges,omitempty"`
	DraftAge  time.Duration `json:"draftAge,omitempty"`
	RemoteErr error         `json:"-"`
	Graph     model.Graph   `json:"-"`
}

// Options configure a Workspace.
type Options struct {
	Store         store.Store
	Drafts        draft.Repository
	Logger        logrus.FieldLogger
	AutosaveDelay time.Duration
	// OnChange, when set, is called after every graph mutation.
	OnChange func(workspaceID string, c graph.Change)
}

// Workspace is one editing session over a profile.
type Workspace struct {
	id     string
	graph  *graph.Store
	store  store.Store
	drafts draft.Repository
	log    logrus.FieldLogger

	debounced   func(func())
	unsubscribe func()

	mu         sync.Mutex
	gen        uint64
	profileID  string
	migratedAt string
	closed     bool
}

// New creates an empty workspace with no profile open.
func New(id string, opts Options) *Workspace {
	if opts.AutosaveDelay <= 0 {
		opts.AutosaveDelay = DefaultAutosaveDelay
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	w := &Workspace{
		id:        id,
		graph:     graph.New(),
		store:     opts.Store,
		drafts:    opts.Drafts,
		log:       opts.Logger.WithFields(logrus.Fields{"component": "workspace", "workspace": id}),
		debounced: debounce.New(opts.AutosaveDelay),
	}
	onChange := opts.OnChange
	w.unsubscribe = w.graph.Subscribe(func(c graph.Change) {
		w.debounced(w.autosave)
		if onChange != nil {
			onChange(id, c)
		}
	})
	return w
}

// ID returns the workspace id.
func (w *Workspace) ID() string { return w.id }

// Graph returns the live graph. Mutations go through it directly.
func (w *Workspace) Graph() *graph.Store { return w.graph }

// ProfileID returns the open profile, or "" before the first Open.
func (w *Workspace) ProfileID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.profileID
}

func (w *Workspace) draftKey(profileID string) string {
	return w.id + "/" + profileID
}

// Open loads profileID into the workspace, discarding whatever graph was
// there. The remote graph wins when non-empty, then a fresh draft, then an
// empty graph; a remote failure falls through the same chain and is
// reported in LoadResult.RemoteErr. If another Open starts before this one
// finishes, this one returns ErrSuperseded and changes nothing.
func (w *Workspace) Open(ctx context.Context, profileID string) (*LoadResult, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	w.gen++
	gen := w.gen
	w.mu.Unlock()

	res, err := w.load(ctx, profileID)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		w.log.WithField("profile", profileID).Debug("discarding superseded load")
		return nil, ErrSuperseded
	}
	w.profileID = profileID
	w.migratedAt = res.Migration.MigratedAt
	res.Dropped = w.graph.Replace(res.Graph)
	if res.Source == SourceDraft {
		// Draft contents are edits the profile has not seen yet.
		w.graph.MarkDirty()
	}
	w.mu.Unlock()

	metrics.WorkspaceLoads.WithLabelValues(string(res.Source)).Inc()
	w.log.WithFields(logrus.Fields{
		"profile":  profileID,
		"source":   res.Source,
		"migrated": res.Migration.Applied,
	}).Info("profile opened")
	return res, nil
}

func (w *Workspace) load(ctx context.Context, profileID string) (*LoadResult, error) {
	res := &LoadResult{ProfileID: profileID, Source: SourceEmpty}

	raw, err := w.store.LoadStructure(ctx, profileID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, err
	case err != nil:
		res.RemoteErr = &PersistenceError{Op: "load", ProfileID: profileID, Err: err}
		w.log.WithError(err).Warn("remote load failed, falling back to draft")
	default:
		g, rep, derr := schema.Decode(raw)
		if derr != nil {
			res.RemoteErr = &PersistenceError{Op: "load", ProfileID: profileID, Err: derr}
			w.log.WithError(derr).Warn("stored structure unreadable, falling back to draft")
		} else if !g.IsEmpty() {
			res.Source, res.Graph, res.Migration = SourceRemote, g, rep
			return res, nil
		}
	}

	if w.drafts == nil {
		return res, nil
	}
	d, err := w.drafts.Load(ctx, w.draftKey(profileID))
	switch {
	case errors.Is(err, draft.ErrNoDraft):
	case err != nil:
		w.log.WithError(err).Warn("draft load failed, starting empty")
	default:
		res.Source, res.Graph = SourceDraft, d.Graph
		res.DraftAge = d.Age
	}
	return res, nil
}

// Save writes the current graph to the open profile. On failure the graph,
// its dirty state, and the local draft are left as they were.
func (w *Workspace) Save(ctx context.Context) (schema.Report, error) {
	w.mu.Lock()
	profileID, migratedAt := w.profileID, w.migratedAt
	w.mu.Unlock()
	if profileID == "" {
		return schema.Report{}, ErrNoProfile
	}

	g, version := w.graph.SnapshotVersion()
	doc, rep, err := schema.Migrator{MigratedAt: migratedAt}.Document(g)
	if err != nil {
		return rep, err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return rep, fmt.Errorf("encoding structure: %w", err)
	}

	err = w.store.SaveStructure(ctx, profileID, store.Structure{
		Document:      b,
		SchemaVersion: schema.CurrentVersion,
		Relationships: len(g.Edges),
	})
	metrics.WorkspaceSaves.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return rep, &PersistenceError{Op: "save", ProfileID: profileID, Err: err}
	}

	w.graph.MarkClean(version)
	w.mu.Lock()
	if w.profileID == profileID {
		w.migratedAt = rep.MigratedAt
	}
	w.mu.Unlock()
	if w.drafts != nil {
		if err := w.drafts.Discard(ctx, w.draftKey(profileID)); err != nil {
			w.log.WithError(err).Warn("discarding draft after save")
		}
	}
	w.log.WithFields(logrus.Fields{"profile": profileID, "nodes": len(g.Nodes), "edges": len(g.Edges)}).Info("structure saved")
	return rep, nil
}

// autosave writes a draft of unsaved edits. Clean or empty graphs are
// skipped.
func (w *Workspace) autosave() {
	w.mu.Lock()
	profileID, closed := w.profileID, w.closed
	w.mu.Unlock()
	if closed || w.drafts == nil || profileID == "" || !w.graph.Dirty() {
		return
	}
	w.writeDraft(profileID)
}

func (w *Workspace) writeDraft(profileID string) {
	g := w.graph.Snapshot()
	if g.IsEmpty() {
		metrics.Autosaves.WithLabelValues(metrics.ResultSkip).Inc()
		return
	}
	err := w.drafts.Save(context.Background(), w.draftKey(profileID), g)
	metrics.Autosaves.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		w.log.WithError(err).Warn("autosave failed")
		return
	}
	w.log.WithField("profile", profileID).Debug("draft saved")
}

// Close stops autosave and flushes unsaved edits to the draft.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	profileID := w.profileID
	w.mu.Unlock()

	if w.drafts != nil && profileID != "" && w.graph.Dirty() {
		w.writeDraft(profileID)
	}

	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.unsubscribe()
}
