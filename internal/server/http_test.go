package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/alfredjeanlab/orggraph/internal/catalog"
	"github.com/alfredjeanlab/orggraph/internal/idgen"
	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/notify"
	"github.com/alfredjeanlab/orggraph/internal/store"
	"github.com/alfredjeanlab/orggraph/internal/store/memory"
	"github.com/alfredjeanlab/orggraph/internal/visibility"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{Users: []model.RosterUser{
		{ID: "1", DisplayName: "Ředitel", PositionTitle: "ředitel", DepartmentCode: "PTN"},
		{ID: "2", DisplayName: "Jana", PositionTitle: "referent", DepartmentCode: "PTN"},
	}}
}

// newTestServer returns a fresh server, its store, and an HTTP handler.
func newTestServer(t *testing.T, cat *catalog.Catalog) (*Server, *memory.Store, http.Handler) {
	t.Helper()
	ms := memory.New()
	s := New(Options{Store: ms, Catalog: cat, Logger: quietLogger()})
	t.Cleanup(s.Close)
	return s, ms, s.NewHTTPHandler(HTTPOptions{})
}

// doJSON performs an HTTP request with an optional JSON body and returns the recorder.
func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// requireStatus asserts the recorder has the expected HTTP status code.
func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected status %d, got %d; body: %s", code, rec.Code, rec.Body.String())
	}
}

// decodeJSON decodes the recorder's response body into v.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// seedProfile stores an active profile with the given structure.
func seedProfile(t *testing.T, ms *memory.Store, id string, g model.Graph) {
	t.Helper()
	ctx := context.Background()
	if err := ms.CreateProfile(ctx, &model.Profile{ID: id, Name: "Profile " + id, IsActive: true}); err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	if err := ms.SaveStructure(ctx, id, store.Structure{Document: b, Relationships: len(g.Edges)}); err != nil {
		t.Fatal(err)
	}
}

func userNode(id string) model.Node {
	return model.Node{ID: "user-" + id, Kind: model.KindUser, Data: &model.UserData{UserID: id, DisplayName: "User " + id}}
}

func TestHandleHealth(t *testing.T) {
	_, _, h := newTestServer(t, nil)
	rec := doJSON(t, h, "GET", "/v1/health", nil)
	requireStatus(t, rec, 200)
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("expected status=ok, got %q", body["status"])
	}
}

func TestHandleHTTPErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		method   string
		path     string
		body     any
		code     int
		wantCode string
	}{
		{"CreateProfile/MissingName", "POST", "/v1/profiles", map[string]any{}, 400, CodeInvalid},
		{"CreateProfile/BlankName", "POST", "/v1/profiles", map[string]any{"name": "  "}, 400, CodeInvalid},
		{"GetProfile/NotFound", "GET", "/v1/profiles/prf-nope", nil, 404, CodeNotFound},
		{"DeleteProfile/NotFound", "DELETE", "/v1/profiles/prf-nope", nil, 404, CodeNotFound},
		{"SetActive/MissingFlag", "PUT", "/v1/profiles/prf-nope/active", map[string]any{}, 400, CodeInvalid},
		{"Structure/NotFound", "GET", "/v1/profiles/prf-nope/structure", nil, 404, CodeNotFound},
		{"Graph/NotOpen", "GET", "/v1/workspaces/w1/graph", nil, 404, CodeWorkspaceClosed},
		{"Open/MissingProfile", "POST", "/v1/workspaces/w1/open", map[string]any{}, 400, CodeInvalid},
		{"Open/UnknownProfile", "POST", "/v1/workspaces/w1/open", map[string]any{"profileId": "prf-nope"}, 404, CodeNotFound},
		{"Trigger/MissingEvent", "POST", "/v1/trigger", map[string]any{}, 400, CodeInvalid},
		{"Trigger/NoCatalog", "POST", "/v1/trigger", map[string]any{"eventType": "E"}, 409, CodeNoCatalog},
		{"Access/MissingViewer", "POST", "/v1/access", map[string]any{"module": "objednavky"}, 400, CodeInvalid},
		{"Palette/NoCatalog", "GET", "/v1/catalog/palette", nil, 409, CodeNoCatalog},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, h := newTestServer(t, nil)
			rec := doJSON(t, h, tc.method, tc.path, tc.body)
			requireStatus(t, rec, tc.code)
			var body errorBody
			decodeJSON(t, rec, &body)
			if body.Code != tc.wantCode {
				t.Fatalf("expected code=%q, got %q (%s)", tc.wantCode, body.Code, body.Error)
			}
		})
	}
}

func TestHandleValidationFields(t *testing.T) {
	_, _, h := newTestServer(t, nil)
	rec := doJSON(t, h, "POST", "/v1/profiles", map[string]any{"description": "x"})
	requireStatus(t, rec, 400)
	var body errorBody
	decodeJSON(t, rec, &body)
	if len(body.Fields) != 1 || body.Fields[0].Field != "name" {
		t.Fatalf("expected one field error on name, got %+v", body.Fields)
	}
}

func TestProfileLifecycle(t *testing.T) {
	_, _, h := newTestServer(t, nil)

	rec := doJSON(t, h, "POST", "/v1/profiles", map[string]any{"name": "Main", "active": true})
	requireStatus(t, rec, 201)
	var first model.Profile
	decodeJSON(t, rec, &first)
	if !strings.HasPrefix(first.ID, "prf-") || !first.IsActive {
		t.Fatalf("unexpected profile %+v", first)
	}

	rec = doJSON(t, h, "POST", "/v1/profiles", map[string]any{"name": "main"})
	requireStatus(t, rec, 409)

	rec = doJSON(t, h, "DELETE", "/v1/profiles/"+first.ID, nil)
	requireStatus(t, rec, 409)
	var body errorBody
	decodeJSON(t, rec, &body)
	if body.Code != CodeLastProfile {
		t.Fatalf("expected %s, got %q", CodeLastProfile, body.Code)
	}

	rec = doJSON(t, h, "POST", "/v1/profiles", map[string]any{"name": "Draft"})
	requireStatus(t, rec, 201)
	var second model.Profile
	decodeJSON(t, rec, &second)

	rec = doJSON(t, h, "PUT", "/v1/profiles/"+second.ID+"/active", map[string]any{"active": true})
	requireStatus(t, rec, 200)

	rec = doJSON(t, h, "GET", "/v1/profiles", nil)
	requireStatus(t, rec, 200)
	var list []model.Profile
	decodeJSON(t, rec, &list)
	if len(list) != 2 || list[0].ID != second.ID || list[1].IsActive {
		t.Fatalf("expected %s active and first, got %+v", second.ID, list)
	}

	rec = doJSON(t, h, "DELETE", "/v1/profiles/"+first.ID, nil)
	requireStatus(t, rec, 204)
}

func TestStructureRoundTrip(t *testing.T) {
	_, ms, h := newTestServer(t, nil)
	seedProfile(t, ms, "p1", model.Graph{})

	g := model.Graph{
		Nodes: []model.Node{userNode("1"), userNode("2")},
		Edges: []model.Edge{{ID: "e1", Source: "user-1", Target: "user-2"}},
	}
	rec := doJSON(t, h, "PUT", "/v1/profiles/p1/structure", g)
	requireStatus(t, rec, 200)

	rec = doJSON(t, h, "GET", "/v1/profiles/p1/structure", nil)
	requireStatus(t, rec, 200)
	var got structureResponse
	decodeJSON(t, rec, &got)
	if len(got.Graph.Nodes) != 2 || len(got.Graph.Edges) != 1 {
		t.Fatalf("expected 2 nodes and 1 edge, got %d/%d", len(got.Graph.Nodes), len(got.Graph.Edges))
	}

	p, err := ms.GetProfile(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if p.RelationshipsCount != 1 {
		t.Fatalf("expected relationships=1, got %d", p.RelationshipsCount)
	}
}

func TestPutStructure_RejectsBrokenGraph(t *testing.T) {
	_, ms, h := newTestServer(t, nil)
	seedProfile(t, ms, "p1", model.Graph{Nodes: []model.Node{userNode("1")}})

	g := model.Graph{
		Nodes: []model.Node{
			{ID: "t1", Kind: model.KindTemplate, Data: &model.TemplateData{TemplateID: "1", Title: "Silent"}},
			{ID: "u1", Kind: model.KindUser, Data: &model.UserData{UserID: "1"}},
			{ID: "r1", Kind: model.KindRole, Data: &model.RoleData{RoleID: "1"}},
		},
		Edges: []model.Edge{
			{ID: "dangling", Source: "u1", Target: "ghost"},
			{ID: "silent", Source: "t1", Target: "u1"},
			{ID: "unsupported", Source: "r1", Target: "t1"},
		},
	}
	rec := doJSON(t, h, "PUT", "/v1/profiles/p1/structure", g)
	requireStatus(t, rec, 400)
	var body errorBody
	decodeJSON(t, rec, &body)
	if body.Code != CodeInvalid {
		t.Fatalf("expected %s, got %q", CodeInvalid, body.Code)
	}
	fields := map[string]bool{}
	for _, fe := range body.Fields {
		fields[fe.Field] = true
	}
	for _, want := range []string{"edges[0].target", "edges[1].source", "edges[2].kind"} {
		if !fields[want] {
			t.Errorf("missing field error %s in %+v", want, body.Fields)
		}
	}

	// The stored structure is untouched.
	rec = doJSON(t, h, "GET", "/v1/profiles/p1/structure", nil)
	requireStatus(t, rec, 200)
	var got structureResponse
	decodeJSON(t, rec, &got)
	if len(got.Graph.Nodes) != 1 || got.Graph.Nodes[0].ID != "user-1" || len(got.Graph.Edges) != 0 {
		t.Fatalf("structure changed after rejected save: %+v", got.Graph)
	}
}

func TestPutStructure_KeepsMigrationStamp(t *testing.T) {
	_, ms, h := newTestServer(t, nil)
	seedProfile(t, ms, "p1", model.Graph{})

	body := json.RawMessage(`{"metadata":{"schemaVersion":2,"multiFieldSupport":true,"migratedAt":"2026-01-02T03:04:05Z"},
		"nodes":[{"id":"user-1","kind":"user","data":{"userId":"1"}}],"edges":[]}`)
	rec := doJSON(t, h, "PUT", "/v1/profiles/p1/structure", body)
	requireStatus(t, rec, 200)
	var got structureResponse
	decodeJSON(t, rec, &got)
	if got.Migration.Applied {
		t.Fatalf("current document reported as migrated: %+v", got.Migration)
	}

	raw, err := ms.LoadStructure(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(raw, []byte(`"migratedAt":"2026-01-02T03:04:05Z"`)) {
		t.Fatalf("expected original migration stamp, got %s", raw)
	}
}

func TestWorkspaceEditing(t *testing.T) {
	_, ms, h := newTestServer(t, nil)
	seedProfile(t, ms, "p1", model.Graph{})

	rec := doJSON(t, h, "POST", "/v1/workspaces/w1/open", map[string]any{"profileId": "p1"})
	requireStatus(t, rec, 200)
	var opened map[string]any
	decodeJSON(t, rec, &opened)
	if opened["source"] != "empty" {
		t.Fatalf("expected empty source, got %v", opened["source"])
	}

	rec = doJSON(t, h, "POST", "/v1/workspaces/w1/nodes", userNode("1"))
	requireStatus(t, rec, 201)
	rec = doJSON(t, h, "POST", "/v1/workspaces/w1/nodes", model.Node{Kind: model.KindUser, Data: &model.UserData{UserID: "2"}})
	requireStatus(t, rec, 201)
	var generated model.Node
	decodeJSON(t, rec, &generated)
	if !strings.HasPrefix(generated.ID, idgen.NodePrefix) {
		t.Fatalf("expected generated node id, got %q", generated.ID)
	}

	rec = doJSON(t, h, "POST", "/v1/workspaces/w1/edges", model.Edge{Source: "user-1", Target: generated.ID})
	requireStatus(t, rec, 201)
	var edge model.Edge
	decodeJSON(t, rec, &edge)
	if edge.Kind != "user-user" {
		t.Fatalf("expected derived kind user-user, got %q", edge.Kind)
	}
	if !strings.HasPrefix(edge.ID, idgen.EdgePrefix) {
		t.Fatalf("expected generated edge id, got %q", edge.ID)
	}

	rec = doJSON(t, h, "POST", "/v1/workspaces/w1/edges", model.Edge{Source: "user-1", Target: "user-ghost"})
	requireStatus(t, rec, 400)

	rec = doJSON(t, h, "GET", "/v1/workspaces/w1/graph", nil)
	requireStatus(t, rec, 200)
	var before graphResponse
	decodeJSON(t, rec, &before)
	if !before.Dirty || len(before.Graph.Nodes) != 2 || before.ProfileID != "p1" {
		t.Fatalf("unexpected graph state %+v", before)
	}

	rec = doJSON(t, h, "POST", "/v1/workspaces/w1/save", nil)
	requireStatus(t, rec, 200)

	rec = doJSON(t, h, "GET", "/v1/workspaces/w1/graph", nil)
	var after graphResponse
	decodeJSON(t, rec, &after)
	if after.Dirty {
		t.Fatal("expected clean graph after save")
	}

	rec = doJSON(t, h, "DELETE", "/v1/workspaces/w1/nodes/user-1", nil)
	requireStatus(t, rec, 200)
	var removed map[string][]string
	decodeJSON(t, rec, &removed)
	if len(removed["removedEdges"]) != 1 || removed["removedEdges"][0] != edge.ID {
		t.Fatalf("expected edge %s removed with node, got %v", edge.ID, removed)
	}

	raw, err := ms.LoadStructure(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(raw, []byte(edge.ID)) {
		t.Fatal("expected saved structure to contain the edge")
	}
}

func TestSynthesizeAndLayout(t *testing.T) {
	_, ms, h := newTestServer(t, testCatalog())
	seedProfile(t, ms, "p1", model.Graph{})
	requireStatus(t, doJSON(t, h, "POST", "/v1/workspaces/w1/open", map[string]any{"profileId": "p1"}), 200)

	rec := doJSON(t, h, "POST", "/v1/workspaces/w1/synthesize", map[string]any{})
	requireStatus(t, rec, 200)
	var res synthesizeResponse
	decodeJSON(t, rec, &res)
	if res.AddedNodes != 2 || res.AddedEdges != 1 {
		t.Fatalf("expected 2 nodes and 1 edge, got %+v", res)
	}

	rec = doJSON(t, h, "POST", "/v1/workspaces/w1/synthesize", map[string]any{})
	requireStatus(t, rec, 200)
	decodeJSON(t, rec, &res)
	if res.AddedNodes != 0 || res.AddedEdges != 0 {
		t.Fatalf("expected merge to skip existing ids, got %+v", res)
	}

	rec = doJSON(t, h, "GET", "/v1/workspaces/w1/layout", nil)
	requireStatus(t, rec, 200)
	var req struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}
	decodeJSON(t, rec, &req)
	if len(req.Nodes) != 2 || len(req.Edges) != 1 {
		t.Fatalf("unexpected layout request %+v", req)
	}

	rec = doJSON(t, h, "PUT", "/v1/workspaces/w1/layout", map[string]model.Position{
		"user-1":     {X: 300, Y: 100},
		"user-ghost": {X: 0, Y: 0},
	})
	requireStatus(t, rec, 200)
	var moved map[string]int
	decodeJSON(t, rec, &moved)
	if moved["moved"] != 1 {
		t.Fatalf("expected 1 node moved, got %v", moved)
	}

	rec = doJSON(t, h, "GET", "/v1/workspaces/w1/search?q=jana", nil)
	requireStatus(t, rec, 200)
	var matches []struct {
		Node model.Node `json:"node"`
	}
	decodeJSON(t, rec, &matches)
	if len(matches) != 1 || matches[0].Node.ID != "user-2" {
		t.Fatalf("expected to find user-2, got %+v", matches)
	}

	requireStatus(t, doJSON(t, h, "GET", "/v1/workspaces/w1/search", nil), 400)
	requireStatus(t, doJSON(t, h, "GET", "/v1/workspaces/w1/search?q=x&limit=0", nil), 400)
}

func TestHandleTrigger(t *testing.T) {
	_, ms, h := newTestServer(t, testCatalog())
	seedProfile(t, ms, "p1", model.Graph{
		Nodes: []model.Node{userNode("1"), userNode("2")},
		Edges: []model.Edge{{ID: "e1", Source: "user-1", Target: "user-2", Data: model.EdgeData{
			Notifications: &model.NotificationRule{EventTypes: []string{"ORDER_APPROVED"}, Priority: model.PriorityInfo},
		}}},
	})

	rec := doJSON(t, h, "POST", "/v1/trigger", map[string]any{"eventType": "ORDER_APPROVED"})
	requireStatus(t, rec, 200)
	var res triggerResponse
	decodeJSON(t, rec, &res)
	if res.ProfileID != "p1" {
		t.Fatalf("expected the active profile, got %q", res.ProfileID)
	}
	if len(res.Recipients) != 1 {
		t.Fatalf("expected one recipient, got %+v", res.Recipients)
	}
	want := notify.Recipient{UserID: "2", Priority: model.PriorityInfo, Channels: model.DefaultDelivery, EdgeIDs: []string{"e1"}}
	got := res.Recipients[0]
	if got.UserID != want.UserID || got.Priority != want.Priority || got.Channels != want.Channels || len(got.EdgeIDs) != 1 {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	rec = doJSON(t, h, "POST", "/v1/trigger", map[string]any{"eventType": "OTHER"})
	requireStatus(t, rec, 200)
	decodeJSON(t, rec, &res)
	if len(res.Recipients) != 0 {
		t.Fatalf("expected no recipients, got %+v", res.Recipients)
	}

	rec = doJSON(t, h, "POST", "/v1/trigger", map[string]any{"eventType": "E", "workspace": "closed"})
	requireStatus(t, rec, 404)
}

func TestHandleAccess(t *testing.T) {
	_, ms, h := newTestServer(t, testCatalog())
	seedProfile(t, ms, "p1", model.Graph{
		Nodes: []model.Node{userNode("1"), userNode("2")},
		Edges: []model.Edge{{ID: "e1", Source: "user-1", Target: "user-2", Data: model.EdgeData{
			Visibility: &model.VisibilityRule{
				Scope:       model.ScopeAll,
				Modules:     map[model.Module]bool{model.ModuleOrders: true},
				Permissions: map[model.Module]model.PermissionLevel{model.ModuleOrders: model.PermReadWrite},
			},
		}}},
	})

	rec := doJSON(t, h, "POST", "/v1/access", map[string]any{
		"viewerId": "1", "module": "objednavky", "edgeId": "e1", "record": map[string]any{"ownerId": "2"},
	})
	requireStatus(t, rec, 200)
	var d visibility.Decision
	decodeJSON(t, rec, &d)
	if !d.Visible || d.Permission != model.PermReadWrite {
		t.Fatalf("expected READ_WRITE access, got %+v", d)
	}

	rec = doJSON(t, h, "POST", "/v1/access", map[string]any{
		"viewerId": "2", "module": "objednavky", "record": map[string]any{"ownerId": "1"},
	})
	requireStatus(t, rec, 200)
	var sum visibility.Summary
	decodeJSON(t, rec, &sum)
	if sum.Visible || len(sum.Edges) != 1 {
		t.Fatalf("expected the viewer on the target side to be denied, got %+v", sum)
	}

	rec = doJSON(t, h, "POST", "/v1/access", map[string]any{
		"viewerId": "1", "module": "objednavky", "edgeId": "e9", "record": map[string]any{"ownerId": "2"},
	})
	requireStatus(t, rec, 400)

	rec = doJSON(t, h, "POST", "/v1/access", map[string]any{
		"viewerId": "1", "module": "nope", "record": map[string]any{"ownerId": "2"},
	})
	requireStatus(t, rec, 400)
}

func TestHandlePalette(t *testing.T) {
	_, _, h := newTestServer(t, testCatalog())
	rec := doJSON(t, h, "GET", "/v1/catalog/palette", nil)
	requireStatus(t, rec, 200)
	var nodes []model.Node
	decodeJSON(t, rec, &nodes)
	if len(nodes) != 2 || nodes[0].ID != "user-1" {
		t.Fatalf("unexpected palette %+v", nodes)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	h := s.NewHTTPHandler(HTTPOptions{AuthToken: "secret"})

	requireStatus(t, doJSON(t, h, "GET", "/v1/health", nil), 200)
	requireStatus(t, doJSON(t, h, "GET", "/metrics", nil), 200)
	requireStatus(t, doJSON(t, h, "GET", "/v1/profiles", nil), 401)

	req := httptest.NewRequest("GET", "/v1/profiles", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	requireStatus(t, rec, 401)

	req = httptest.NewRequest("GET", "/v1/profiles", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	requireStatus(t, rec, 200)
}

func TestRequestID(t *testing.T) {
	_, _, h := newTestServer(t, nil)
	rec := doJSON(t, h, "GET", "/v1/health", nil)
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}

	req := httptest.NewRequest("GET", "/v1/health", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc" {
		t.Fatalf("expected caller's request id, got %q", got)
	}
}
