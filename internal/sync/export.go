package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	ProfileCount int       `json:"profile_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// profileRecord is a profile with its stored structure document.
type profileRecord struct {
	*model.Profile
	Structure json.RawMessage `json:"structure,omitempty"`
}

// ExportJSONL writes every profile and its structure as JSONL to w, sorted
// by profile id. Structures are written as stored; they are not migrated.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer, now time.Time) error {
	profiles, err := s.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].ID < profiles[j].ID
	})

	recs := make([]profileRecord, 0, len(profiles))
	for _, p := range profiles {
		raw, err := s.LoadStructure(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("load structure for %s: %w", p.ID, err)
		}
		rec := profileRecord{Profile: p}
		if len(raw) > 0 && json.Valid(raw) {
			rec.Structure = raw
		}
		recs = append(recs, rec)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    now.UTC(),
		ProfileCount: len(recs),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, rec := range recs {
		if err := enc.Encode(record{Type: "profile", Data: rec}); err != nil {
			return fmt.Errorf("encode profile %s: %w", rec.ID, err)
		}
	}
	return nil
}
