package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/orggraph/internal/model"
)

const legacyDoc = `{
  "nodes": [
    {"id": "t1", "kind": "template", "position": {"x": 0, "y": 0},
     "data": {"templateId": "7", "name": "Order approved", "eventTypes": ["ORDER_APPROVED"]}},
    {"id": "r1", "kind": "role", "position": {"x": 0, "y": 0},
     "data": {"roleId": "3", "name": "Approvers",
              "scopeDefinition": {"type": "DYNAMIC_FROM_ENTITY", "field": "prikazce_id"}}},
    {"id": "g1", "kind": "genericRecipient", "position": {"x": 0, "y": 0},
     "data": {"genericType": "ENTITY_AUTHOR"}},
    {"id": "u1", "kind": "user", "position": {"x": 0, "y": 0},
     "data": {"userId": "1", "scopeDefinition": {"type": "DYNAMIC_FROM_ENTITY", "fields": ["objednatel_id", "nope"]}}}
  ],
  "edges": [
    {"id": "e1", "source": "t1", "target": "r1", "kind": "template-role",
     "data": {"notifications": {"eventTypes": ["ORDER_APPROVED"], "onlyOrderParticipants": true},
              "source_info_recipients": {"enabled": true, "field": "garant_uzivatel_id"}}},
    {"id": "e2", "source": "t1", "target": "g1", "kind": "template-genericRecipient",
     "data": {"notifications": {"eventTypes": ["ORDER_APPROVED"]}}},
    {"id": "e3", "source": "t1", "target": "u1", "kind": "template-user",
     "data": {"notifications": {"recipientType": "USER", "scopeFilter": "NONE"}}}
  ]
}`

func parse(t *testing.T, raw string) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func fixedMigrator() Migrator {
	return Migrator{Now: func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }}
}

func TestMigrate_LegacyDocument(t *testing.T) {
	doc := parse(t, legacyDoc)
	rep := fixedMigrator().Migrate(doc)

	assert.True(t, rep.Applied)
	assert.Equal(t, 3, rep.FieldsRewritten, "scope field, legacy source-info section, its field")
	assert.Equal(t, 1, rep.ValuesDropped)
	assert.Equal(t, 2, rep.RecipientTypesAdded)

	nodes := objects(doc["nodes"])
	scope, _ := object(nodes[1], "data", "scopeDefinition")
	assert.Equal(t, []any{"prikazce_id"}, scope["fields"])
	assert.NotContains(t, scope, "field")

	userScope, _ := object(nodes[3], "data", "scopeDefinition")
	assert.Equal(t, []any{"objednatel_id"}, userScope["fields"])

	edges := objects(doc["edges"])
	n1, _ := object(edges[0], "data", "notifications")
	assert.Equal(t, "ROLE", n1["recipientType"])
	assert.Equal(t, "ENTITY_PARTICIPANTS", n1["scopeFilter"])
	assert.NotContains(t, n1, "onlyOrderParticipants")
	si := n1["sourceInfoRecipients"].(map[string]any)
	assert.Equal(t, []any{"garant_uzivatel_id"}, si["fields"])
	assert.NotContains(t, si, "field")
	assert.NotContains(t, edges[0]["data"], "source_info_recipients")

	n2, _ := object(edges[1], "data", "notifications")
	assert.Equal(t, "ENTITY_AUTHOR", n2["recipientType"])
	assert.Equal(t, "NONE", n2["scopeFilter"])

	meta := Metadata(doc)
	assert.Equal(t, CurrentVersion, meta["schemaVersion"])
	assert.Equal(t, true, meta["multiFieldSupport"])
	assert.Equal(t, "2026-01-02T03:04:05Z", meta["migratedAt"])
}

func TestMigrate_Idempotent(t *testing.T) {
	once := parse(t, legacyDoc)
	fixedMigrator().Migrate(once)
	first, err := json.Marshal(once)
	require.NoError(t, err)

	again := parse(t, string(first))
	rep := Migrator{Now: func() time.Time { return time.Now() }}.Migrate(again)
	assert.False(t, rep.Changed())

	second, err := json.Marshal(again)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}

func TestMigrate_MalformedMetadataTriggersFullPass(t *testing.T) {
	for name, meta := range map[string]string{
		"not an object":  `"v2"`,
		"string version": `{"schemaVersion": "2", "multiFieldSupport": true}`,
		"stale version":  `{"schemaVersion": 1, "multiFieldSupport": true}`,
		"no multi-field": `{"schemaVersion": 2}`,
	} {
		t.Run(name, func(t *testing.T) {
			doc := parse(t, `{"nodes": [{"id": "r", "kind": "role",
				"data": {"scopeDefinition": {"type": "DYNAMIC_FROM_ENTITY", "field": "prikazce_id"}}}],
				"edges": [], "metadata": `+meta+`}`)
			rep := Migrate(doc)
			assert.True(t, rep.Applied)
			assert.Equal(t, 1, rep.FieldsRewritten)
			assert.True(t, Migrated(doc))
		})
	}
}

func TestMigrate_WhitelistRunsEveryPass(t *testing.T) {
	doc := parse(t, `{"metadata": {"schemaVersion": 2, "multiFieldSupport": true},
		"nodes": [{"id": "r", "kind": "role", "data": {"scopeDefinition": {"fields": ["prikazce_id", "made_up", 7]}}}],
		"edges": []}`)
	rep := Migrate(doc)
	assert.False(t, rep.Applied)
	assert.Equal(t, 2, rep.ValuesDropped)
	scope, _ := object(objects(doc["nodes"])[0], "data", "scopeDefinition")
	assert.Equal(t, []any{"prikazce_id"}, scope["fields"])
}

func TestDecode_LegacyFieldBecomesFieldsAndStaysGone(t *testing.T) {
	g, rep, err := Decode([]byte(legacyDoc))
	require.NoError(t, err)
	assert.True(t, rep.Applied)
	require.Len(t, g.Nodes, 4)

	role := g.Nodes[1]
	require.NotNil(t, role.Scope())
	assert.Equal(t, []string{"prikazce_id"}, role.Scope().EntityFieldNames)

	out, err := Encode(g)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"field":`)
	assert.Contains(t, string(out), `"fields":["prikazce_id"]`)
	assert.Contains(t, string(out), `"multiFieldSupport":true`)
}

func TestDecode_EmptyAndInvalid(t *testing.T) {
	g, _, err := Decode(nil)
	require.NoError(t, err)
	assert.True(t, g.IsEmpty())

	g, _, err = Decode([]byte("null"))
	require.NoError(t, err)
	assert.True(t, g.IsEmpty())

	_, _, err = Decode([]byte("{"))
	assert.Error(t, err)
}

func TestDocument_TypedGraph(t *testing.T) {
	g := model.Graph{
		Nodes: []model.Node{
			{ID: "t", Kind: model.KindTemplate, Data: &model.TemplateData{TemplateID: "1", EventTypes: []string{"X"}}},
			{ID: "r", Kind: model.KindRole, Data: &model.RoleData{RoleID: "2"}},
		},
		Edges: []model.Edge{{ID: "e", Source: "t", Target: "r", Kind: "template-role", Data: model.EdgeData{
			Notifications: &model.NotificationRule{EventTypes: []string{"X"}},
		}}},
	}
	doc, rep, err := Document(g)
	require.NoError(t, err)
	assert.True(t, rep.Applied)
	assert.Equal(t, 1, rep.RecipientTypesAdded)
	notif, _ := object(objects(doc["edges"])[0], "data", "notifications")
	assert.Equal(t, "ROLE", notif["recipientType"])
}

func TestMigrate_LegacyKeysUnderCurrentMarker(t *testing.T) {
	doc := parse(t, `{"metadata": {"schemaVersion": 2, "multiFieldSupport": true, "migratedAt": "2025-01-01T00:00:00Z"},
		"nodes": [{"id": "r", "kind": "role",
			"data": {"scopeDefinition": {"type": "DYNAMIC_FROM_ENTITY", "field": "prikazce_id"}}}],
		"edges": []}`)
	rep := fixedMigrator().Migrate(doc)
	assert.True(t, rep.Applied)
	assert.Equal(t, 1, rep.FieldsRewritten)
	assert.Equal(t, "2026-01-02T03:04:05Z", rep.MigratedAt)

	g, err := FromDocument(doc)
	require.NoError(t, err)
	require.NotNil(t, g.Nodes[0].Scope())
	assert.Equal(t, []string{"prikazce_id"}, g.Nodes[0].Scope().EntityFieldNames)

	again := Migrate(doc)
	assert.False(t, again.Changed())
}

func TestDocument_CurrentGraphKeepsStamp(t *testing.T) {
	g := model.Graph{
		Nodes: []model.Node{
			{ID: "t", Kind: model.KindTemplate, Data: &model.TemplateData{TemplateID: "1", EventTypes: []string{"X"}}},
			{ID: "r", Kind: model.KindRole, Data: &model.RoleData{RoleID: "2"}},
		},
		Edges: []model.Edge{{ID: "e", Source: "t", Target: "r", Kind: "template-role", Data: model.EdgeData{
			Notifications: &model.NotificationRule{EventTypes: []string{"X"}, RecipientType: model.RecipientRole, ScopeFilter: model.FilterNone},
		}}},
	}
	doc, rep, err := Migrator{MigratedAt: "2025-06-01T08:00:00Z"}.Document(g)
	require.NoError(t, err)
	assert.False(t, rep.Applied)
	assert.Equal(t, "2025-06-01T08:00:00Z", rep.MigratedAt)
	assert.Equal(t, "2025-06-01T08:00:00Z", Metadata(doc)["migratedAt"])
	assert.True(t, Migrated(doc))
}
