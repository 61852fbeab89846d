package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/orggraph/internal/model"
)

func TestDepartmentMatchScore(t *testing.T) {
	for _, tc := range []struct {
		a, b string
		want int
	}{
		{"PTN BN", "PTN BN", 100},
		{" ptn bn ", "PTN BN", 100},
		{"PTN BN", "PTN", 40},
		{"PTN BN KL", "PTN KL", 53},
		{"PTN", "IT", 0},
		{"", "IT", 0},
	} {
		assert.Equal(t, tc.want, DepartmentMatchScore(tc.a, tc.b), "%q vs %q", tc.a, tc.b)
	}

	partial := DepartmentMatchScore("PTN BN", "PTN")
	assert.True(t, partial > 0 && partial < 100)
}

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		title, dept string
		want        Tier
	}{
		{"Ředitel", "", TierDirector},
		{"ŘEDITELKA", "", TierDirector},
		{"Náměstek pro IT", "", TierDeputy},
		{"Vedoucí odboru", "Úsek ředitele", TierDirectorHead},
		{"Vedoucí kanceláře ředitele", "", TierDirectorHead},
		{"Vedoucí", "IT", TierHead},
		{"Referent", "IT", TierStaff},
		{"Zástupce ředitele", "", TierStaff},
	} {
		assert.Equal(t, tc.want, Classify(tc.title, tc.dept), "%q/%q", tc.title, tc.dept)
	}
}

func TestBestMatch(t *testing.T) {
	assert.Equal(t, -1, BestMatch("IT", nil))
	assert.Equal(t, 0, BestMatch("", []string{"A", "B"}), "empty code takes the first candidate")
	assert.Equal(t, 1, BestMatch("PTN BN", []string{"PTN", "PTN BN", "PTN BN"}), "strictly highest, first on ties")
	assert.Equal(t, 0, BestMatch("PTN BN", []string{"PTN KL", "BN KL"}), "equal partial scores keep first seen")
	assert.Equal(t, -1, BestMatch("HR", []string{"IT", "FIN"}))
}

func edgePairs(g model.Graph) [][2]string {
	var out [][2]string
	for _, e := range g.Edges {
		out = append(out, [2]string{e.Source, e.Target})
	}
	return out
}

func TestSynthesize_ThreeTierRoster(t *testing.T) {
	roster := []model.RosterUser{
		{ID: "1", DisplayName: "Ředitel", PositionTitle: "Ředitel", DepartmentCode: "ŘED"},
		{ID: "2", DisplayName: "Náměstek", PositionTitle: "Náměstek", DepartmentCode: "IT"},
		{ID: "3", DisplayName: "Vedoucí", PositionTitle: "Vedoucí", DepartmentCode: "IT"},
	}
	res := Synthesize(roster)

	require.Len(t, res.Graph.Nodes, 3)
	require.Len(t, res.Graph.Edges, 2)
	assert.Equal(t, [][2]string{
		{"user-1", "user-2"}, // deputy reports to director
		{"user-2", "user-3"}, // IT head reports to IT deputy
	}, edgePairs(res.Graph))
	for _, e := range res.Graph.Edges {
		assert.Equal(t, model.RelationKind("user-user"), e.Kind)
		assert.Equal(t, model.RelationDirect, e.Data.RelationshipType)
	}
	assert.Empty(t, res.Orphan)
}

func TestSynthesize_StaffUseWidestPoolAndFallback(t *testing.T) {
	roster := []model.RosterUser{
		{ID: "d", PositionTitle: "Ředitel", DepartmentCode: "ŘED"},
		{ID: "n1", PositionTitle: "Náměstek", DepartmentCode: "EKO"},
		{ID: "n2", PositionTitle: "Náměstek", DepartmentCode: "PTN"},
		{ID: "dh", PositionTitle: "Vedoucí", DepartmentName: "Úsek ředitele", DepartmentCode: "KŘ"},
		{ID: "h", PositionTitle: "Vedoucí", DepartmentCode: "PTN BN"},
		{ID: "h2", PositionTitle: "Vedoucí", DepartmentCode: "HR"},
		{ID: "s1", PositionTitle: "Referent", DepartmentCode: "PTN BN"},
		{ID: "s2", PositionTitle: "Asistentka", DepartmentCode: "KŘ"},
		{ID: "s3", PositionTitle: "Referent", DepartmentCode: "XYZ"},
	}
	res := Synthesize(roster)

	parent := make(map[string]string)
	for _, e := range res.Graph.Edges {
		parent[e.Target] = e.Source
	}
	assert.Equal(t, "user-d", parent["user-n1"])
	assert.Equal(t, "user-d", parent["user-n2"])
	assert.Equal(t, "user-d", parent["user-dh"], "director-head goes straight to the director")
	assert.Equal(t, "user-n2", parent["user-h"], "PTN BN head matches PTN deputy")
	assert.Equal(t, "user-d", parent["user-h2"], "unmatched head attaches to the director")
	assert.Equal(t, "user-h", parent["user-s1"], "exact match among heads wins")
	assert.Equal(t, "user-dh", parent["user-s2"])
	assert.Equal(t, "user-n1", parent["user-s3"], "no match falls back to the first deputy")

	assert.Equal(t, 1, res.Tiers[TierDirector])
	assert.Equal(t, 2, res.Tiers[TierDeputy])
	assert.Equal(t, 3, res.Tiers[TierStaff])
}

func TestSynthesize_NoDirector(t *testing.T) {
	res := Synthesize([]model.RosterUser{
		{ID: "n", PositionTitle: "Náměstek", DepartmentCode: "IT"},
		{ID: "h", PositionTitle: "Vedoucí", DepartmentCode: "HR"},
	})
	require.Len(t, res.Graph.Edges, 1)
	assert.Equal(t, [2]string{"user-n", "user-h"}, edgePairs(res.Graph)[0])
	assert.Equal(t, []string{"user-n"}, res.Orphan)
}

func TestSynthesizeSelected(t *testing.T) {
	roster := []model.RosterUser{
		{ID: "1", PositionTitle: "Ředitel"},
		{ID: "2", PositionTitle: "Náměstek"},
		{ID: "3", PositionTitle: "Referent"},
	}
	res := SynthesizeSelected(roster, []string{"3", "1"})
	require.Len(t, res.Graph.Nodes, 2)
	assert.Equal(t, "user-1", res.Graph.Nodes[0].ID)
	assert.Equal(t, [][2]string{{"user-1", "user-3"}}, edgePairs(res.Graph))
}
