package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

func summaryIDs(hits []DraftSummary) []models.ObjectID {
	ids := make([]models.ObjectID, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ObjectID)
	}
	return ids
}

func TestSearch(t *testing.T) {
	s := setupDraftStore(t)

	tutorial := draft(models.PersistedID(1), "Go tutorial")
	notes := draft(models.PersistedID(2), "Rust notes")
	notes.ObjectDescription = "compared with golang"
	other := draft(models.NewID(1), "Shopping")
	require.NoError(t, s.Put(tutorial, notes, other))

	hits, err := s.Search("go", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.ObjectID{models.PersistedID(1), models.PersistedID(2)}, summaryIDs(hits))

	hits, err = s.Search("rust NOTES", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Rust notes", hits[0].ObjectName)
	assert.Equal(t, models.ObjectTypeLink, hits[0].ObjectType)

	hits, err = s.Search(`sho"pping OR`, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = s.Search("", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	hits, err = s.Search("", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchFollowsUpdatesAndRemovals(t *testing.T) {
	s := setupDraftStore(t)
	require.NoError(t, s.Put(draft(models.PersistedID(1), "alpha")))
	require.NoError(t, s.Put(draft(models.PersistedID(1), "beta")))

	hits, err := s.Search("alpha", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = s.Search("beta", 10)
	require.NoError(t, err)
	assert.Equal(t, []models.ObjectID{models.PersistedID(1)}, summaryIDs(hits))

	require.NoError(t, s.Remove(models.PersistedID(1)))
	hits, err = s.Search("beta", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"go"* "lang"*`, ftsQuery("  go lang "))
	assert.Equal(t, `"a""b"*`, ftsQuery(`a"b`))
	assert.Empty(t, ftsQuery("   "))
}
