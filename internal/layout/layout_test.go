package layout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/orggraph/internal/graph"
	"github.com/alfredjeanlab/orggraph/internal/model"
)

func sample() model.Graph {
	return model.Graph{
		Nodes: []model.Node{
			{ID: "user-1", Kind: model.KindUser, Data: &model.UserData{UserID: "1"}},
			{ID: "user-2", Kind: model.KindUser, Data: &model.UserData{UserID: "2"}},
		},
		Edges: []model.Edge{
			{ID: "e1", Source: "user-1", Target: "user-2", Kind: "user-user"},
			{ID: "dangling", Source: "user-1", Target: "user-9", Kind: "user-user"},
		},
	}
}

func TestBuildRequest(t *testing.T) {
	req := BuildRequest(sample())

	assert.Equal(t, Options{RankDir: "TB", NodeSep: 80, RankSep: 120, MarginX: 50, MarginY: 50}, req.Graph)
	require.Len(t, req.Nodes, 2)
	assert.Equal(t, Box{ID: "user-1", Width: 200, Height: 120}, req.Nodes[0])
	assert.Equal(t, []Link{{Source: "user-1", Target: "user-2"}}, req.Edges)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"rankdir":"TB"`)
}

func TestBuildRequest_Empty(t *testing.T) {
	req := BuildRequest(model.Graph{})
	assert.Empty(t, req.Nodes)
	assert.NotNil(t, req.Edges)
}

func TestApply_OffsetsByHalfBox(t *testing.T) {
	s := graph.New()
	g := sample()
	g.Edges = g.Edges[:1]
	s.Replace(g)

	n := Apply(s, Result{
		"user-1":  {X: 150, Y: 110},
		"user-2":  {X: 400, Y: 350},
		"missing": {X: 1, Y: 1},
	})
	assert.Equal(t, 2, n)

	u1, _ := s.Node("user-1")
	assert.Equal(t, model.Position{X: 50, Y: 50}, u1.Position)
	u2, _ := s.Node("user-2")
	assert.Equal(t, model.Position{X: 300, Y: 290}, u2.Position)
	assert.True(t, s.Dirty())
}

func TestApply_NothingToDo(t *testing.T) {
	s := graph.New()
	assert.Zero(t, Apply(s, nil))
	assert.False(t, s.Dirty())
}
