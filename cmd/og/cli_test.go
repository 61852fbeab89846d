package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/alfredjeanlab/orggraph/internal/catalog"
	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/server"
	"github.com/alfredjeanlab/orggraph/internal/store/memory"
)

// startServer runs an in-memory orggraph server for CLI tests.
func startServer(t *testing.T) string {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	srv := server.New(server.Options{
		Store:  memory.New(),
		Logger: log,
		Catalog: &catalog.Catalog{Users: []model.RosterUser{
			{ID: "1", DisplayName: "Ředitel", PositionTitle: "ředitel", DepartmentCode: "PTN"},
			{ID: "2", DisplayName: "Jana", PositionTitle: "referent", DepartmentCode: "PTN"},
		}},
	})
	ts := httptest.NewServer(srv.NewHTTPHandler(server.HTTPOptions{}))
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts.URL
}

// runCLI executes og with args and returns stdout.
func runCLI(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--url", url, "--json=false"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_ProfilesAndStructure(t *testing.T) {
	url := startServer(t)

	out, err := runCLI(t, url, "profiles", "create", "Hlavní", "--active")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Created profile") {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = runCLI(t, url, "--json", "profiles", "list")
	if err != nil {
		t.Fatal(err)
	}
	var profiles []model.Profile
	if err := json.Unmarshal([]byte(out), &profiles); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(profiles) != 1 || profiles[0].Name != "Hlavní" || !profiles[0].IsActive {
		t.Fatalf("unexpected profiles %+v", profiles)
	}
	id := profiles[0].ID

	doc := filepath.Join(t.TempDir(), "structure.json")
	raw := `{"nodes":[{"id":"user-1","kind":"user","position":{"x":0,"y":0},"data":{"userId":"1","name":"Ředitel"}}],"edges":[]}`
	if err := os.WriteFile(doc, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err = runCLI(t, url, "structure", "put", id, doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Saved 1 nodes, 0 edges") {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := runCLI(t, url, "profiles", "delete", id); err == nil {
		t.Fatal("deleting the last profile should fail")
	}
}

func TestCLI_SynthesizeAndTrigger(t *testing.T) {
	url := startServer(t)

	out, err := runCLI(t, url, "--json", "profiles", "create", "Návrh")
	if err != nil {
		t.Fatal(err)
	}
	var p model.Profile
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}

	if _, err := runCLI(t, url, "synthesize"); err == nil {
		t.Fatal("synthesize without an open workspace should fail")
	}

	out, err = runCLI(t, url, "synthesize", "--profile", p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Added 2 nodes, 1 edges") {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = runCLI(t, url, "search", "jana", "--profile", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Jana") {
		t.Fatalf("search did not find Jana: %q", out)
	}

	// Hierarchy edges carry no notification rules.
	out, err = runCLI(t, url, "trigger", "ORDER_APPROVED", "--workspace", defaultWorkspace, "--entity", `{"uzivatel_id":1}`)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "no recipients" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCLI_Migrate(t *testing.T) {
	legacy := filepath.Join(t.TempDir(), "legacy.json")
	if err := os.WriteFile(legacy, []byte(`{"nodes":[],"edges":[]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, "http://127.0.0.1:1", "--json", "migrate", legacy)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Graph     model.Graph `json:"graph"`
		Migration struct {
			Applied bool `json:"applied"`
		} `json:"migration"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if !got.Migration.Applied {
		t.Fatal("expected the legacy document to be migrated")
	}
}

func TestParseObject(t *testing.T) {
	file := filepath.Join(t.TempDir(), "entity.json")
	if err := os.WriteFile(file, []byte(`{"id":7}`), 0o600); err != nil {
		t.Fatal(err)
	}

	var inline, fromFile model.Entity
	if err := parseObject("entity", `{"id":5}`, &inline); err != nil {
		t.Fatal(err)
	}
	if err := parseObject("entity", "@"+file, &fromFile); err != nil {
		t.Fatal(err)
	}
	if inline["id"] != float64(5) || fromFile["id"] != float64(7) {
		t.Fatalf("unexpected entities %v %v", inline, fromFile)
	}
	if err := parseObject("entity", "{", &inline); err == nil || !strings.Contains(err.Error(), "--entity") {
		t.Fatalf("expected flag-named error, got %v", err)
	}
}
