package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/store"
)

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateProfile(ctx, &model.Profile{ID: "a", Name: "Beta", IsActive: true}))
	require.NoError(t, s.CreateProfile(ctx, &model.Profile{ID: "b", Name: "Alpha"}))
	assert.ErrorIs(t, s.CreateProfile(ctx, &model.Profile{ID: "c", Name: "alpha"}), store.ErrProfileExists)

	list, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID, "active first")

	require.NoError(t, s.SetActive(ctx, "b", true))
	active, err := s.ActiveProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", active.ID)
	a, _ := s.GetProfile(ctx, "a")
	assert.False(t, a.IsActive)

	require.NoError(t, s.DeleteProfile(ctx, "a"))
	assert.ErrorIs(t, s.DeleteProfile(ctx, "b"), store.ErrLastProfile)
	assert.ErrorIs(t, s.DeleteProfile(ctx, "a"), store.ErrNotFound)
}

func TestStructures(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateProfile(ctx, &model.Profile{ID: "a", Name: "A"}))

	doc, err := s.LoadStructure(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, doc)

	require.NoError(t, s.SaveStructure(ctx, "a", store.Structure{Document: []byte(`{"nodes":[]}`), SchemaVersion: 2, Relationships: 3}))
	doc, _ = s.LoadStructure(ctx, "a")
	assert.JSONEq(t, `{"nodes":[]}`, string(doc))
	p, _ := s.GetProfile(ctx, "a")
	assert.Equal(t, 3, p.RelationshipsCount)

	assert.ErrorIs(t, s.SaveStructure(ctx, "x", store.Structure{}), store.ErrNotFound)
	_, err = s.LoadStructure(ctx, "x")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
