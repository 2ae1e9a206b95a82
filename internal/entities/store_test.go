package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

func TestRemoveObjectsStripsCompositeReferences(t *testing.T) {
	s := New()
	parent := models.PersistedID(1)
	child := models.PersistedID(2)
	other := models.PersistedID(3)

	s.AddObjects(
		models.Attributes{ObjectID: parent, ObjectType: models.ObjectTypeComposite},
		models.Attributes{ObjectID: child, ObjectType: models.ObjectTypeLink},
	)
	s.AddObjectData(parent, models.CompositeData{
		Subobjects: map[models.ObjectID]models.SubobjectEntry{
			child: models.NewSubobjectEntry(0, 0),
			other: models.NewSubobjectEntry(1, 0),
		},
	})
	s.AddObjectData(child, models.LinkData{Link: "https://example.com"})
	s.SetCurrentTagIDs(child, []int{1})

	s.RemoveObjects(child)

	_, ok := s.Object(child)
	assert.False(t, ok)
	assert.Empty(t, s.CurrentTagIDs(child))

	d, ok := s.Data(parent)
	require.True(t, ok)
	c := d.(models.CompositeData)
	assert.NotContains(t, c.Subobjects, child)
	assert.Contains(t, c.Subobjects, other)
}

func TestTagByNameIgnoresCase(t *testing.T) {
	s := New()
	s.AddTags(models.Tag{TagID: 4, TagName: "Golang"})

	tag, ok := s.TagByName("golang")
	require.True(t, ok)
	assert.Equal(t, 4, tag.TagID)

	_, ok = s.TagByName("rust")
	assert.False(t, ok)
}

func TestCommonTagIDs(t *testing.T) {
	s := New()
	a, b := models.PersistedID(1), models.PersistedID(2)
	s.SetCurrentTagIDs(a, []int{1, 2, 3})
	s.SetCurrentTagIDs(b, []int{3, 2, 5})

	assert.Equal(t, []int{2, 3}, s.CommonTagIDs([]models.ObjectID{a, b}))
	assert.Nil(t, s.CommonTagIDs(nil))

	s.RemoveTags(2)
	assert.Equal(t, []int{3}, s.CommonTagIDs([]models.ObjectID{a, b}))
}
