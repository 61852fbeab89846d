package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/orggraph/internal/model"
)

func user(id, name string) model.Node {
	return model.Node{ID: id, Kind: model.KindUser, Data: &model.UserData{UserID: id, DisplayName: name}}
}

func template(id string, events ...string) model.Node {
	return model.Node{ID: id, Kind: model.KindTemplate, Data: &model.TemplateData{TemplateID: id, Title: "Template " + id, EventTypes: events}}
}

func edge(id, src, dst string) model.Edge {
	return model.Edge{ID: id, Source: src, Target: dst}
}

func isValidation(err error) bool {
	var ve *model.ValidationError
	return errors.As(err, &ve)
}

func TestAddEdge_RejectsMissingEndpoint(t *testing.T) {
	s := New()
	require.NoError(t, s.AddNode(user("u1", "Alice")))

	err := s.AddEdge(edge("e1", "u1", "ghost"))
	require.Error(t, err)
	assert.True(t, isValidation(err))

	_, edges := s.Len()
	assert.Equal(t, 0, edges)
}

func TestAddEdge_TemplateNeedsEventTypes(t *testing.T) {
	s := New()
	require.NoError(t, s.AddNode(template("tpl")))
	require.NoError(t, s.AddNode(user("u1", "Alice")))
	before := s.Version()

	err := s.AddEdge(edge("e1", "tpl", "u1"))
	require.Error(t, err)
	assert.True(t, isValidation(err))
	assert.Equal(t, before, s.Version(), "rejected edge must not mutate the graph")

	tpl, _ := s.Node("tpl")
	tpl.Template().EventTypes = []string{"ORDER_APPROVED"}
	require.NoError(t, s.UpdateNode(tpl))

	require.NoError(t, s.AddEdge(edge("e1", "tpl", "u1")))
	e, ok := s.Edge("e1")
	require.True(t, ok)
	assert.Equal(t, model.RelationKind("template-user"), e.Kind)
}

func TestUpdateEdge_KeepsTemplateEdgeEditable(t *testing.T) {
	s := New()
	require.NoError(t, s.AddNode(template("tpl", "ORDER_APPROVED")))
	require.NoError(t, s.AddNode(user("u1", "Alice")))
	require.NoError(t, s.AddEdge(edge("e1", "tpl", "u1")))

	tpl, _ := s.Node("tpl")
	tpl.Template().EventTypes = nil
	require.NoError(t, s.UpdateNode(tpl))

	e, _ := s.Edge("e1")
	e.Data.Notifications = &model.NotificationRule{Priority: model.PriorityUrgent}
	require.NoError(t, s.UpdateEdge(e))
}

func TestRemoveNode_Cascades(t *testing.T) {
	s := New()
	for _, n := range []model.Node{user("a", "A"), user("b", "B"), user("c", "C")} {
		require.NoError(t, s.AddNode(n))
	}
	require.NoError(t, s.AddEdge(edge("ab", "a", "b")))
	require.NoError(t, s.AddEdge(edge("bc", "b", "c")))
	require.NoError(t, s.AddEdge(edge("ca", "c", "a")))

	removed, err := s.RemoveNode("b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ab", "bc"}, removed)

	g := s.Snapshot()
	for _, e := range g.Edges {
		assert.False(t, e.Touches("b"), "edge %s still references removed node", e.ID)
	}
	assert.Len(t, g.Edges, 1)
	assert.Len(t, g.Nodes, 2)
}

func TestMutationsMarkDirty(t *testing.T) {
	s := New()
	assert.False(t, s.Dirty())

	require.NoError(t, s.AddNode(user("a", "A")))
	assert.True(t, s.Dirty())

	v := s.Version()
	s.MarkClean(v - 1)
	assert.True(t, s.Dirty(), "stale version must not clear dirty")
	s.MarkClean(v)
	assert.False(t, s.Dirty())

	require.NoError(t, s.AddNode(user("b", "B")))
	require.NoError(t, s.AddEdge(edge("ab", "a", "b")))
	require.NoError(t, s.RemoveEdge("ab"))
	assert.True(t, s.Dirty())
}

func TestDuplicateAndMissingIds(t *testing.T) {
	s := New()
	require.NoError(t, s.AddNode(user("a", "A")))
	assert.True(t, isValidation(s.AddNode(user("a", "again"))))
	assert.True(t, isValidation(s.UpdateNode(user("zzz", "Z"))))
	_, err := s.RemoveNode("zzz")
	assert.True(t, isValidation(err))
	assert.True(t, isValidation(s.RemoveEdge("zzz")))
}

func TestUpdateNode_KindChangeBlockedByEdges(t *testing.T) {
	s := New()
	require.NoError(t, s.AddNode(user("a", "A")))
	require.NoError(t, s.AddNode(user("b", "B")))
	require.NoError(t, s.AddEdge(edge("ab", "a", "b")))

	role := model.Node{ID: "a", Kind: model.KindRole, Data: &model.RoleData{RoleID: "r"}}
	assert.True(t, isValidation(s.UpdateNode(role)))
}

func TestObserversSeeChanges(t *testing.T) {
	s := New()
	var got []Op
	cancel := s.Subscribe(func(c Change) { got = append(got, c.Op) })

	require.NoError(t, s.AddNode(user("a", "A")))
	require.NoError(t, s.AddNode(user("b", "B")))
	require.NoError(t, s.AddEdge(edge("ab", "a", "b")))
	_, err := s.RemoveNode("a")
	require.NoError(t, err)

	cancel()
	require.NoError(t, s.AddNode(user("c", "C")))

	assert.Equal(t, []Op{OpNodeAdded, OpNodeAdded, OpEdgeAdded, OpNodeRemoved}, got)
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := New()
	require.NoError(t, s.AddNode(template("tpl", "A")))
	g := s.Snapshot()
	g.Nodes[0].Template().EventTypes[0] = "mutated"

	n, _ := s.Node("tpl")
	assert.Equal(t, []string{"A"}, n.Template().EventTypes)
}

func TestReplace_DropsDanglingEdgesAndClearsDirty(t *testing.T) {
	s := New()
	require.NoError(t, s.AddNode(user("old", "Old")))

	dropped := s.Replace(model.Graph{
		Nodes: []model.Node{user("a", "A"), user("b", "B")},
		Edges: []model.Edge{edge("ab", "a", "b"), edge("ax", "a", "x")},
	})
	assert.Equal(t, []string{"ax"}, dropped)
	assert.False(t, s.Dirty())

	_, ok := s.Node("old")
	assert.False(t, ok, "replace must discard the previous graph")
	e, ok := s.Edge("ab")
	require.True(t, ok)
	assert.Equal(t, model.RelationDirect, e.Data.RelationshipType)
}

func TestMerge_SkipsExisting(t *testing.T) {
	s := New()
	require.NoError(t, s.AddNode(user("a", "A")))

	nodes, edges, err := s.Merge(model.Graph{
		Nodes: []model.Node{user("a", "A"), user("b", "B")},
		Edges: []model.Edge{edge("ab", "a", "b")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 1, edges)
}

func TestSetPositions(t *testing.T) {
	s := New()
	require.NoError(t, s.AddNode(user("a", "A")))
	n := s.SetPositions(map[string]model.Position{"a": {X: 5, Y: 6}, "ghost": {X: 1}})
	assert.Equal(t, 1, n)
	a, _ := s.Node("a")
	assert.Equal(t, model.Position{X: 5, Y: 6}, a.Position)
}

func TestSearch(t *testing.T) {
	s := New()
	require.NoError(t, s.AddNode(user("u1", "Jana Nováková")))
	require.NoError(t, s.AddNode(user("u2", "Petr Svoboda")))

	got := s.Search("novakova", 10)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].Node.ID)
}

func TestBuild(t *testing.T) {
	t.Run("valid graph", func(t *testing.T) {
		s, err := Build(model.Graph{
			Nodes: []model.Node{user("u1", "Alice"), user("u2", "Bob")},
			Edges: []model.Edge{edge("e1", "u1", "u2")},
		})
		require.NoError(t, err)
		assert.False(t, s.Dirty())
		e, ok := s.Edge("e1")
		require.True(t, ok)
		assert.Equal(t, model.RelationKind("user-user"), e.Kind)
	})

	t.Run("collects every failure", func(t *testing.T) {
		_, err := Build(model.Graph{
			Nodes: []model.Node{template("t1"), user("u1", "Alice"), {ID: "x", Kind: model.KindUser}},
			Edges: []model.Edge{edge("e1", "u1", "ghost"), edge("e2", "t1", "u1")},
		})
		require.Error(t, err)
		var ve *model.ValidationError
		require.ErrorAs(t, err, &ve)
		var fields []string
		for _, fe := range ve.Errors {
			fields = append(fields, fe.Field)
		}
		assert.Equal(t, []string{"nodes[2].data", "edges[0].target", "edges[1].source"}, fields)
	})
}
