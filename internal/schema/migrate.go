// Package schema upgrades stored structure documents to the current format.
//
// Migration works on the raw JSON tree rather than on model types so that
// legacy keys the model no longer knows about can still be read and removed.
// It runs on every load, save, and autosave and is idempotent.
package schema

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/orggraph/internal/model"
)

// CurrentVersion is the schema version written into migrated documents.
const CurrentVersion = 2

// Raw document keys.
const (
	keyNodes    = "nodes"
	keyEdges    = "edges"
	keyMetadata = "metadata"
	keyData     = "data"

	keySchemaVersion     = "schemaVersion"
	keyMultiFieldSupport = "multiFieldSupport"
	keyMigratedAt        = "migratedAt"

	keyScope          = "scopeDefinition"
	keyFields         = "fields"
	keyLegacyField    = "field"
	keyLegacyFieldSet = "entityFieldNames"

	keyNotifications    = "notifications"
	keySourceInfo       = "sourceInfoRecipients"
	keyLegacySourceInfo = "source_info_recipients"
	keyRecipientType    = "recipientType"
	keyScopeFilter      = "scopeFilter"
	keyOnlyParticipants = "onlyOrderParticipants"
	keyGenericType      = "genericType"
)

// Report summarizes one migration pass.
type Report struct {
	Applied             bool   `json:"applied"`
	FieldsRewritten     int    `json:"fieldsRewritten"`
	ValuesDropped       int    `json:"valuesDropped"`
	RecipientTypesAdded int    `json:"recipientTypesAdded"`
	MigratedAt          string `json:"migratedAt,omitempty"`
}

// Changed reports whether the pass altered the document.
func (r Report) Changed() bool {
	return r.Applied || r.FieldsRewritten > 0 || r.ValuesDropped > 0 || r.RecipientTypesAdded > 0
}

// Add combines two passes over the same document.
func (r Report) Add(o Report) Report {
	r.Applied = r.Applied || o.Applied
	r.FieldsRewritten += o.FieldsRewritten
	r.ValuesDropped += o.ValuesDropped
	r.RecipientTypesAdded += o.RecipientTypesAdded
	if o.MigratedAt != "" {
		r.MigratedAt = o.MigratedAt
	}
	return r
}

// Migrator rewrites documents in place. The zero value is ready to use.
type Migrator struct {
	// Now stamps migratedAt; time.Now when nil.
	Now func() time.Time
	// MigratedAt, when set, is written as the marker stamp instead of Now,
	// keeping the time a structure was first migrated across saves.
	MigratedAt string
}

func (m Migrator) stamp() string {
	if m.MigratedAt != "" {
		return m.MigratedAt
	}
	if m.Now != nil {
		return m.Now().UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

// Migrate upgrades doc in place. The legacy rewrites and the whitelist run on
// every pass. A document is reported as applied, and gets a fresh marker,
// when its marker is absent or unusable or when legacy keys turn up next to
// a current marker.
func (m Migrator) Migrate(doc map[string]any) Report {
	var r Report
	nodes := objects(doc[keyNodes])
	edges := objects(doc[keyEdges])

	kinds := nodeKinds(nodes)
	for _, n := range nodes {
		r.FieldsRewritten += rewriteNode(n)
	}
	for _, e := range edges {
		rewritten, added := rewriteEdge(e, kinds)
		r.FieldsRewritten += rewritten
		r.RecipientTypesAdded += added
	}
	if !Migrated(doc) || r.FieldsRewritten > 0 || r.RecipientTypesAdded > 0 {
		r.Applied = true
		doc[keyMetadata] = map[string]any{
			keySchemaVersion:     CurrentVersion,
			keyMultiFieldSupport: true,
			keyMigratedAt:        m.stamp(),
		}
	}

	for _, n := range nodes {
		if scope, ok := object(n, keyData, keyScope); ok {
			r.ValuesDropped += filterFields(scope)
		}
	}
	for _, e := range edges {
		if si, ok := object(e, keyData, keyNotifications, keySourceInfo); ok {
			r.ValuesDropped += filterFields(si)
		}
	}
	r.MigratedAt, _ = Metadata(doc)[keyMigratedAt].(string)
	return r
}

// Migrate upgrades doc with the default migrator.
func Migrate(doc map[string]any) Report {
	return Migrator{}.Migrate(doc)
}

// Migrated reports whether doc carries a usable current-version marker.
// Malformed metadata counts as not migrated.
func Migrated(doc map[string]any) bool {
	meta, ok := doc[keyMetadata].(map[string]any)
	if !ok {
		return false
	}
	v, ok := number(meta[keySchemaVersion])
	if !ok || v < CurrentVersion {
		return false
	}
	multi, _ := meta[keyMultiFieldSupport].(bool)
	return multi
}

// Decode parses raw JSON, migrates it and returns the typed graph.
// An empty input yields an empty graph.
func Decode(raw []byte) (model.Graph, Report, error) {
	if len(raw) == 0 {
		return model.Graph{}, Report{}, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.Graph{}, Report{}, fmt.Errorf("parsing structure: %w", err)
	}
	if doc == nil {
		return model.Graph{}, Report{}, nil
	}
	rep := Migrate(doc)
	g, err := FromDocument(doc)
	return g, rep, err
}

// FromDocument converts an already-migrated raw document to a graph.
func FromDocument(doc map[string]any) (model.Graph, error) {
	b, err := json.Marshal(map[string]any{keyNodes: orEmpty(doc[keyNodes]), keyEdges: orEmpty(doc[keyEdges])})
	if err != nil {
		return model.Graph{}, fmt.Errorf("encoding structure: %w", err)
	}
	var g model.Graph
	if err := json.Unmarshal(b, &g); err != nil {
		return model.Graph{}, fmt.Errorf("decoding structure: %w", err)
	}
	return g, nil
}

// Document renders g as a migrated raw document, ready to store. A typed
// graph never carries a marker, so Applied is reported only when the pass had
// to rewrite content.
func (m Migrator) Document(g model.Graph) (map[string]any, Report, error) {
	b, err := json.Marshal(g)
	if err != nil {
		return nil, Report{}, fmt.Errorf("encoding graph: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, Report{}, fmt.Errorf("re-reading graph: %w", err)
	}
	rep := m.Migrate(doc)
	rep.Applied = rep.FieldsRewritten > 0 || rep.RecipientTypesAdded > 0
	return doc, rep, nil
}

// Document renders g with the default migrator.
func Document(g model.Graph) (map[string]any, Report, error) {
	return Migrator{}.Document(g)
}

// Encode renders g as migrated JSON.
func Encode(g model.Graph) ([]byte, error) {
	doc, _, err := Document(g)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// Metadata returns the marker of doc, if any, for reporting.
func Metadata(doc map[string]any) map[string]any {
	meta, _ := doc[keyMetadata].(map[string]any)
	return meta
}

func rewriteNode(n map[string]any) int {
	scope, ok := object(n, keyData, keyScope)
	if !ok {
		return 0
	}
	return rewriteFieldKeys(scope, keyLegacyField, keyLegacyFieldSet)
}

// rewriteEdge moves the legacy source-info section under notifications and
// fills in the generic-recipient settings.
func rewriteEdge(e map[string]any, kinds map[string]targetKind) (rewritten, added int) {
	data, ok := e[keyData].(map[string]any)
	if !ok {
		return 0, 0
	}
	notif, hasNotif := data[keyNotifications].(map[string]any)

	if legacy, ok := data[keyLegacySourceInfo].(map[string]any); ok {
		if !hasNotif {
			notif = map[string]any{}
			data[keyNotifications] = notif
			hasNotif = true
		}
		if _, exists := notif[keySourceInfo]; !exists {
			notif[keySourceInfo] = legacy
		}
		delete(data, keyLegacySourceInfo)
		rewritten++
	}
	if !hasNotif {
		return rewritten, 0
	}
	if si, ok := notif[keySourceInfo].(map[string]any); ok {
		rewritten += rewriteFieldKeys(si, keyLegacyField)
	}

	if _, ok := notif[keyRecipientType]; !ok {
		target, _ := e["target"].(string)
		tk := kinds[target]
		notif[keyRecipientType] = string(model.RecipientTypeFor(tk.kind, tk.resolution))
		added++
	}
	if _, ok := notif[keyScopeFilter]; !ok {
		filter := model.FilterNone
		if only, _ := notif[keyOnlyParticipants].(bool); only {
			filter = model.FilterEntityParticipants
		}
		notif[keyScopeFilter] = string(filter)
	}
	delete(notif, keyOnlyParticipants)
	return rewritten, added
}

// rewriteFieldKeys folds legacy single or alternate keys into "fields",
// legacy values first, and removes them. It returns the number of keys
// folded.
func rewriteFieldKeys(obj map[string]any, legacyKeys ...string) int {
	n := 0
	for _, k := range legacyKeys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		merged := append(stringList(v), stringList(obj[keyFields])...)
		obj[keyFields] = toAny(uniq(merged))
		delete(obj, k)
		n++
	}
	return n
}

// filterFields applies the entity-field whitelist to obj["fields"].
func filterFields(obj map[string]any) int {
	v, ok := obj[keyFields]
	if !ok {
		return 0
	}
	vals := stringList(v)
	kept, dropped := model.FilterEntityFields(vals)
	list, isList := v.([]any)
	if isList {
		// Non-string entries are dropped too.
		dropped += len(list) - len(vals)
		if dropped == 0 && len(kept) == len(vals) {
			return 0
		}
	}
	obj[keyFields] = toAny(kept)
	return dropped
}

type targetKind struct {
	kind       model.NodeKind
	resolution model.Resolution
}

func nodeKinds(nodes []map[string]any) map[string]targetKind {
	out := make(map[string]targetKind, len(nodes))
	for _, n := range nodes {
		id, _ := n["id"].(string)
		kind, _ := n["kind"].(string)
		tk := targetKind{kind: model.NodeKind(kind)}
		if data, ok := n[keyData].(map[string]any); ok {
			res, _ := data[keyGenericType].(string)
			tk.resolution = model.Resolution(res)
		}
		out[id] = tk
	}
	return out
}

func objects(v any) []map[string]any {
	list, _ := v.([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// object walks nested keys and returns the object at the end of path.
func object(root map[string]any, path ...string) (map[string]any, bool) {
	cur := root
	for _, k := range path {
		next, ok := cur[k].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// stringList accepts a single string or a list and returns its string values.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	}
	return nil
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

func orEmpty(v any) any {
	if v == nil {
		return []any{}
	}
	return v
}
