package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/store"
	"github.com/alfredjeanlab/orggraph/internal/store/memory"
)

var exportTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	for _, p := range []*model.Profile{
		{ID: "prf-zzz", Name: "Zima"},
		{ID: "prf-aaa", Name: "Jaro", IsActive: true},
	} {
		if err := s.CreateProfile(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}
	doc := []byte(`{"nodes":[],"edges":[],"metadata":{"schemaVersion":2,"multiFieldSupport":true}}`)
	if err := s.SaveStructure(ctx, "prf-aaa", store.Structure{Document: doc, SchemaVersion: 2}); err != nil {
		t.Fatalf("save structure: %v", err)
	}
	return s
}

func TestExportJSONL_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), memory.New(), &buf, exportTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}
	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != "1" || h.Type != "header" || h.ProfileCount != 0 || !h.Timestamp.Equal(exportTime) {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_Profiles(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), seededStore(t), &buf, exportTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), buf.String())
	}

	type exported struct {
		Type string `json:"type"`
		Data struct {
			ID        string          `json:"id"`
			IsActive  bool            `json:"isActive"`
			Structure json.RawMessage `json:"structure"`
		} `json:"data"`
	}
	var got []exported
	for _, line := range lines[1:] {
		var rec exported
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		got = append(got, rec)
	}

	if got[0].Data.ID != "prf-aaa" || got[1].Data.ID != "prf-zzz" {
		t.Fatalf("profiles not sorted by id: %s, %s", got[0].Data.ID, got[1].Data.ID)
	}
	if got[0].Type != "profile" || !got[0].Data.IsActive {
		t.Fatalf("unexpected first record: %+v", got[0])
	}
	if !strings.Contains(string(got[0].Data.Structure), `"multiFieldSupport":true`) {
		t.Fatalf("structure missing from export: %s", got[0].Data.Structure)
	}
	if len(got[1].Data.Structure) != 0 {
		t.Fatalf("profile without structure exported %s", got[1].Data.Structure)
	}
}

func nonEmptyLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}
