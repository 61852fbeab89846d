package graph

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/alfredjeanlab/orggraph/internal/model"
)

// Match is a node found by Search with its edit distance to the query.
type Match struct {
	Node     model.Node `json:"node"`
	Distance int        `json:"distance"`
}

// Search ranks nodes whose label fuzzily contains query, closest first.
// Matching ignores case and diacritics, so "namestek" finds "Náměstek".
func (s *Store) Search(query string, limit int) []Match {
	g := s.Snapshot()
	labels := make([]string, len(g.Nodes))
	byLabel := make(map[string][]int, len(g.Nodes))
	for i, n := range g.Nodes {
		labels[i] = n.Label()
		byLabel[labels[i]] = append(byLabel[labels[i]], i)
	}

	ranks := fuzzy.RankFindNormalizedFold(query, labels)
	sort.Stable(ranks)

	var out []Match
	seen := make(map[int]struct{}, len(ranks))
	for _, r := range ranks {
		for _, idx := range byLabel[r.Target] {
			if _, dup := seen[idx]; dup {
				continue
			}
			seen[idx] = struct{}{}
			out = append(out, Match{Node: g.Nodes[idx], Distance: r.Distance})
		}
		if limit > 0 && len(out) >= limit {
			return out[:limit]
		}
	}
	return out
}
