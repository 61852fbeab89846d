// Package visibility computes what a superior may see of a subordinate's
// records along one edge. It only decides; enforcing the decision against
// business data belongs to the caller.
package visibility

import (
	"github.com/alfredjeanlab/orggraph/internal/model"
)

// Record locates a business record. DepartmentID and LocationID are where
// the record originated; when empty the owner's roster entry is used.
type Record struct {
	OwnerID      string `json:"ownerId"`
	DepartmentID string `json:"departmentId,omitempty"`
	LocationID   string `json:"locationId,omitempty"`
}

// Request is a single access question.
type Request struct {
	Edge     model.Edge
	Source   model.Node
	Target   model.Node
	Module   model.Module
	ViewerID string
	Record   Record
	Roster   *model.Roster
}

// Decision is the effective access along the edge.
type Decision struct {
	Visible    bool                  `json:"visible"`
	Permission model.PermissionLevel `json:"permission,omitempty"`
	Reason     string                `json:"reason"`
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// CanAccess resolves the edge's visibility and permission rules for one
// viewer and record.
func CanAccess(req Request) Decision {
	rule := req.Edge.Data.Visibility
	if rule == nil {
		return deny("edge carries no visibility rule")
	}
	if !rule.Modules[req.Module] {
		return deny("module hidden on this edge")
	}
	if !viewerOnSource(req) {
		return deny("viewer is not on the source side of the edge")
	}

	owner, _ := req.Roster.Get(req.Record.OwnerID)
	dept := firstNonEmpty(req.Record.DepartmentID, owner.DepartmentID)
	loc := firstNonEmpty(req.Record.LocationID, owner.LocationID)

	if rule.AppliesToEntityOnly && !originMatchesSource(req.Source, dept, loc) {
		return deny("record does not originate in the source unit")
	}

	visible, reason := scopeAllows(req, rule.Scope, owner)
	if !visible && extendedAllows(rule.Extended, owner) {
		visible, reason = true, "extended visibility"
	}
	if !visible {
		return deny(reason)
	}
	return Decision{Visible: true, Permission: permission(rule, req.Module, owner), Reason: reason}
}

// viewerOnSource reports whether the viewer is the source node or one of
// its members.
func viewerOnSource(req Request) bool {
	for _, id := range req.Roster.MembersOf(req.Source) {
		if id == req.ViewerID {
			return true
		}
	}
	return false
}

func scopeAllows(req Request, scope model.VisibilityScope, owner model.RosterUser) (bool, string) {
	switch scope {
	case model.ScopeAll:
		return true, "scope ALL"
	case model.ScopeOwn:
		if req.Record.OwnerID == req.ViewerID {
			return true, "viewer owns the record"
		}
		if u := req.Target.User(); u != nil && u.UserID == req.Record.OwnerID {
			return true, "record owned by the subordinate"
		}
		return false, "scope OWN excludes this record"
	case model.ScopeTeam:
		if owner.ID != "" && contains(subordinateUnits(req, func(u model.RosterUser) string { return u.DepartmentID }, model.KindDepartment), owner.DepartmentID) {
			return true, "owner in subordinate's department"
		}
		return false, "owner outside subordinate's department"
	case model.ScopeLocation:
		if owner.ID != "" && contains(subordinateUnits(req, func(u model.RosterUser) string { return u.LocationID }, model.KindLocation), owner.LocationID) {
			return true, "owner in subordinate's location"
		}
		return false, "owner outside subordinate's location"
	}
	return false, "unknown scope"
}

// subordinateUnits collects the department or location ids of the edge
// target: the unit itself, or the units of its members.
func subordinateUnits(req Request, unitOf func(model.RosterUser) string, unitKind model.NodeKind) []string {
	if req.Target.Kind == unitKind {
		return []string{req.Target.EntityRef()}
	}
	var out []string
	for _, id := range req.Roster.MembersOf(req.Target) {
		u, _ := req.Roster.Get(id)
		if v := unitOf(u); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func extendedAllows(ext *model.ExtendedVisibility, owner model.RosterUser) bool {
	if ext.IsEmpty() || owner.ID == "" {
		return false
	}
	if contains(ext.Locations, owner.LocationID) || contains(ext.Departments, owner.DepartmentID) {
		return true
	}
	for _, c := range ext.Combinations {
		if c.LocationID == owner.LocationID && c.DepartmentID == owner.DepartmentID {
			return true
		}
	}
	return false
}

func originMatchesSource(source model.Node, dept, loc string) bool {
	switch source.Kind {
	case model.KindDepartment:
		return dept != "" && dept == source.EntityRef()
	case model.KindLocation:
		return loc != "" && loc == source.EntityRef()
	}
	return true
}

// permission returns the level granted on module. INHERIT adopts the owner's
// own permission for the module.
func permission(rule *model.VisibilityRule, module model.Module, owner model.RosterUser) model.PermissionLevel {
	lvl := rule.Permissions[module]
	if lvl == model.PermInherit {
		lvl = owner.Permissions[module]
		if lvl == model.PermInherit {
			lvl = ""
		}
	}
	if !lvl.IsValid() {
		return model.PermReadOnly
	}
	return lvl
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// EdgeDecision is the decision of one edge during Evaluate.
type EdgeDecision struct {
	EdgeID string `json:"edgeId"`
	Decision
}

// Summary combines the decisions of every visibility edge in a graph.
type Summary struct {
	Visible    bool                  `json:"visible"`
	Permission model.PermissionLevel `json:"permission,omitempty"`
	Edges      []EdgeDecision        `json:"edges"`
}

var permissionRank = map[model.PermissionLevel]int{
	model.PermReadOnly:        1,
	model.PermReadWrite:       2,
	model.PermReadWriteDelete: 3,
}

// Evaluate runs CanAccess over every edge carrying a visibility rule. The
// record is visible when any edge admits it, with the strongest permission
// granted among those edges.
func Evaluate(g model.Graph, roster *model.Roster, module model.Module, viewerID string, rec Record) Summary {
	nodes := make(map[string]model.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes[n.ID] = n
	}
	sum := Summary{Edges: []EdgeDecision{}}
	for _, e := range g.Edges {
		if e.Data.Visibility == nil {
			continue
		}
		src, okS := nodes[e.Source]
		dst, okT := nodes[e.Target]
		if !okS || !okT {
			continue
		}
		d := CanAccess(Request{Edge: e, Source: src, Target: dst, Module: module, ViewerID: viewerID, Record: rec, Roster: roster})
		sum.Edges = append(sum.Edges, EdgeDecision{EdgeID: e.ID, Decision: d})
		if !d.Visible {
			continue
		}
		sum.Visible = true
		if permissionRank[d.Permission] > permissionRank[sum.Permission] {
			sum.Permission = d.Permission
		}
	}
	return sum
}
