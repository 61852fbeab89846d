// Package synth generates an initial reporting hierarchy from a flat user
// roster. It is a one-shot generator: its output is merged into the graph
// and may be edited freely afterwards.
package synth

import (
	"github.com/alfredjeanlab/orggraph/internal/model"
)

// Result is the generated subgraph plus per-tier counts.
type Result struct {
	Graph  model.Graph  `json:"graph"`
	Tiers  map[Tier]int `json:"tiers"`
	Orphan []string     `json:"orphans,omitempty"`
}

// NodeID is the graph node id used for a roster user.
func NodeID(userID string) string {
	return "user-" + userID
}

// EdgeID is the id of a generated reporting edge.
func EdgeID(superiorNode, subordinateNode string) string {
	return "e-" + superiorNode + "-" + subordinateNode
}

type member struct {
	user model.RosterUser
	node string
}

// Synthesize builds user nodes and direct reporting edges for every roster
// user. Edges point from superior (source) to subordinate (target). Users
// with nowhere to attach are listed in Result.Orphan.
func Synthesize(users []model.RosterUser) Result {
	var (
		director      *member
		deputies      []member
		directorHeads []member
		heads         []member
		staff         []member
	)
	res := Result{Tiers: make(map[Tier]int)}

	for _, u := range users {
		m := member{user: u, node: NodeID(u.ID)}
		res.Graph.Nodes = append(res.Graph.Nodes, userNode(u))

		tier := Classify(u.PositionTitle, departmentLabel(u))
		if tier == TierDirector && director != nil {
			tier = TierStaff
		}
		res.Tiers[tier]++
		switch tier {
		case TierDirector:
			d := m
			director = &d
		case TierDeputy:
			deputies = append(deputies, m)
		case TierDirectorHead:
			directorHeads = append(directorHeads, m)
		case TierHead:
			heads = append(heads, m)
		default:
			staff = append(staff, m)
		}
	}

	link := func(sup *member, sub member) {
		if sup == nil {
			res.Orphan = append(res.Orphan, sub.node)
			return
		}
		res.Graph.Edges = append(res.Graph.Edges, model.Edge{
			ID:     EdgeID(sup.node, sub.node),
			Source: sup.node,
			Target: sub.node,
			Kind:   model.RelationFor(model.KindUser, model.KindUser),
			Data:   model.EdgeData{RelationshipType: model.RelationDirect},
		})
	}

	for _, d := range deputies {
		link(director, d)
	}
	for _, h := range directorHeads {
		link(director, h)
	}
	for _, h := range heads {
		if i := BestMatch(h.user.DepartmentCode, codes(deputies)); i >= 0 {
			link(&deputies[i], h)
			continue
		}
		link(firstOf(director, deputies), h)
	}

	pool := make([]member, 0, len(heads)+len(directorHeads)+len(deputies))
	pool = append(pool, heads...)
	pool = append(pool, directorHeads...)
	pool = append(pool, deputies...)
	for _, s := range staff {
		if i := BestMatch(s.user.DepartmentCode, codes(pool)); i >= 0 {
			link(&pool[i], s)
			continue
		}
		link(fallback(deputies, director), s)
	}
	return res
}

// SynthesizeSelected runs Synthesize on the roster users whose ids are in ids,
// preserving roster order.
func SynthesizeSelected(users []model.RosterUser, ids []string) Result {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var subset []model.RosterUser
	for _, u := range users {
		if _, ok := want[u.ID]; ok {
			subset = append(subset, u)
		}
	}
	return Synthesize(subset)
}

func userNode(u model.RosterUser) model.Node {
	return model.Node{
		ID:   NodeID(u.ID),
		Kind: model.KindUser,
		Data: &model.UserData{
			UserID:         u.ID,
			DisplayName:    u.DisplayName,
			PositionTitle:  u.PositionTitle,
			LocationRef:    u.LocationID,
			DepartmentRef:  u.DepartmentID,
			DepartmentCode: u.DepartmentCode,
		},
	}
}

func departmentLabel(u model.RosterUser) string {
	if u.DepartmentName != "" {
		return u.DepartmentName
	}
	return u.DepartmentCode
}

func codes(ms []member) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.user.DepartmentCode
	}
	return out
}

// firstOf returns the director, or the first deputy when there is none.
func firstOf(director *member, deputies []member) *member {
	if director != nil {
		return director
	}
	if len(deputies) > 0 {
		return &deputies[0]
	}
	return nil
}

// fallback returns the first deputy, or the director when there are none.
func fallback(deputies []member, director *member) *member {
	if len(deputies) > 0 {
		return &deputies[0]
	}
	return director
}
