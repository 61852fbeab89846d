package scope

import "github.com/alfredjeanlab/orggraph/internal/model"

// DirectReports indexes direct reporting lines of a graph: user-user edges
// whose relationship type is direct, from superior (source) to subordinate
// (target). Ids are catalog user ids, not node ids.
func DirectReports(g model.Graph) ReportsFunc {
	userOf := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		if u := n.User(); u != nil {
			userOf[n.ID] = u.UserID
		}
	}
	reports := make(map[string][]string)
	for _, e := range g.Edges {
		if e.Kind != model.RelationFor(model.KindUser, model.KindUser) {
			continue
		}
		if rt := e.Data.RelationshipType; rt != "" && rt != model.RelationDirect {
			continue
		}
		sup, okS := userOf[e.Source]
		sub, okT := userOf[e.Target]
		if !okS || !okT {
			continue
		}
		reports[sup] = append(reports[sup], sub)
	}
	return func(userID string) []string { return reports[userID] }
}
