// Package scope resolves recipient scope definitions to concrete users.
//
// Resolution is pure: it reads the roster, the scope owner node, the
// population of the routing edge's source node and, for entity-driven
// scopes, the business entity. It never touches the graph store.
package scope

import (
	"github.com/alfredjeanlab/orggraph/internal/model"
)

// ReportsFunc returns the direct reports of a user id.
type ReportsFunc func(userID string) []string

// Request carries everything a resolution needs.
type Request struct {
	// Scope to resolve; a nil scope resolves as ALL.
	Scope *model.RecipientScope
	// Owner is the node the scope belongs to (the edge target).
	Owner model.Node
	// Roster of active users; it fixes membership and ordering.
	Roster *model.Roster
	// Population is the member set of the edge's source node.
	Population []string
	// Entity is the business record; nil when the event has none.
	Entity model.Entity
	// TriggerUserID is the user who caused the event.
	TriggerUserID string
	// Reports looks up direct reports for includeSubordinates.
	Reports ReportsFunc
}

// Resolve returns the recipients for req as an ordered, de-duplicated list.
// The order is roster order, except for SELECTED which keeps the selection
// order. Entity-driven scopes without an entity resolve to nothing.
func Resolve(req Request) []string {
	if req.Owner.Kind == model.KindGenericRecipient {
		return resolveGeneric(req)
	}

	def := req.Scope
	if def == nil {
		def = &model.RecipientScope{Type: model.ScopeTypeAll}
	}
	if def.Type.NeedsEntity() && req.Entity == nil {
		return nil
	}

	switch def.Type {
	case model.ScopeTypeSelected:
		return selected(def.SelectedUserIDs, req.Roster)
	case model.ScopeTypeDynamicFromEntity:
		return dynamic(def, req)
	case model.ScopeTypeEntityParticipants:
		return Participants(req.Entity, req.Population, req.Roster)
	default:
		return req.Roster.MembersOf(ownerWithRole(req.Owner, def))
	}
}

// selected keeps the selection order and drops ids that are not on the roster.
func selected(ids []string, roster *model.Roster) []string {
	var out []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || !roster.Contains(id) {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func dynamic(def *model.RecipientScope, req Request) []string {
	fields, _ := model.FilterEntityFields(def.EntityFieldNames)
	var ids []string
	for _, f := range fields {
		ids = append(ids, req.Entity.IDs(f)...)
	}
	if def.IncludeSubordinates && req.Reports != nil {
		ids = append(ids, Subtree(ids, req.Reports)...)
	}
	return req.Roster.Ordered(ids)
}

// Participants returns the entity's participant ids that belong to
// population, in roster order.
func Participants(entity model.Entity, population []string, roster *model.Roster) []string {
	if entity == nil {
		return nil
	}
	members := make(map[string]struct{}, len(population))
	for _, id := range population {
		members[id] = struct{}{}
	}
	var ids []string
	for _, f := range model.ParticipantFields {
		for _, id := range entity.IDs(f) {
			if _, ok := members[id]; ok {
				ids = append(ids, id)
			}
		}
	}
	return roster.Ordered(ids)
}

// Subtree walks direct reports breadth-first from roots and returns every
// user reached, excluding the roots. Cycles are tolerated.
func Subtree(roots []string, reports ReportsFunc) []string {
	seen := make(map[string]struct{}, len(roots))
	for _, r := range roots {
		seen[r] = struct{}{}
	}
	queue := append([]string(nil), roots...)
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, sub := range reports(cur) {
			if _, ok := seen[sub]; ok {
				continue
			}
			seen[sub] = struct{}{}
			out = append(out, sub)
			queue = append(queue, sub)
		}
	}
	return out
}

func resolveGeneric(req Request) []string {
	d, ok := req.Owner.Data.(*model.GenericRecipientData)
	if !ok {
		return nil
	}
	var id string
	switch d.Resolution {
	case model.ResolveTriggerUser:
		id = req.TriggerUserID
	case model.ResolveEntityAuthor:
		id = req.Entity.FirstID(model.AuthorFields...)
	case model.ResolveEntityOwner:
		id = req.Entity.FirstID(model.OwnerFields...)
	}
	if id == "" || !req.Roster.Contains(id) {
		return nil
	}
	return []string{id}
}

// ownerWithRole lets a role scope name its role explicitly, for role nodes
// saved before they carried a roleId of their own.
func ownerWithRole(owner model.Node, def *model.RecipientScope) model.Node {
	if owner.Kind != model.KindRole || def.RoleID == "" {
		return owner
	}
	if d, ok := owner.Data.(*model.RoleData); ok && d.RoleID == "" {
		c := owner.Clone()
		c.Data.(*model.RoleData).RoleID = def.RoleID
		return c
	}
	return owner
}
