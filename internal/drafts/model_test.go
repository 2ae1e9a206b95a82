package drafts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/entities"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

type recordingObserver struct {
	changed []models.ObjectID
	removed []models.ObjectID
}

func (r *recordingObserver) EditedObjectChanged(id models.ObjectID, _ *models.EditedObject) {
	r.changed = append(r.changed, id)
}

func (r *recordingObserver) EditedObjectRemoved(id models.ObjectID) {
	r.removed = append(r.removed, id)
}

func newStoreWithLink(t *testing.T, id int, name string) *entities.Store {
	t.Helper()
	s := entities.New()
	oid := models.PersistedID(id)
	s.AddObjects(models.Attributes{
		ObjectID:        oid,
		ObjectType:      models.ObjectTypeLink,
		ObjectName:      name,
		ShowDescription: true,
	})
	s.AddObjectData(oid, models.LinkData{Link: "https://example.com"})
	s.SetCurrentTagIDs(oid, []int{1, 2})
	return s
}

func ptr[T any](v T) *T { return &v }

func TestResetSeedsFromEntity(t *testing.T) {
	m := New(newStoreWithLink(t, 1, "A"))
	id := models.PersistedID(1)

	m.Reset(id)
	obj, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, "A", obj.ObjectName)
	assert.Equal(t, "https://example.com", obj.Link.Link)
	assert.Equal(t, []int{1, 2}, obj.CurrentTagIDs)
	assert.Empty(t, obj.AddedTags)

	require.NoError(t, m.Update(id, Patch{ObjectName: ptr("B")}))
	m.Reset(id)
	m.Reset(id)
	obj, _ = m.Get(id)
	assert.Equal(t, "A", obj.ObjectName)
}

func TestResetNewIDUsesTemplate(t *testing.T) {
	m := New(entities.New())
	m.Reset(models.NewID(0))

	obj, ok := m.Get(models.NewID(0))
	require.True(t, ok)
	assert.Equal(t, models.ObjectTypeLink, obj.ObjectType)
	assert.Equal(t, models.DisplayModeBasic, obj.Composite.DisplayMode)
	assert.NotNil(t, obj.Composite.Subobjects)
}

func TestUpdateMergesWithoutDroppingSiblings(t *testing.T) {
	m := New(newStoreWithLink(t, 1, "A"))
	id := models.PersistedID(1)
	m.Reset(id)
	before, _ := m.Get(id)

	require.NoError(t, m.Update(id, Patch{
		ObjectDescription: ptr("desc"),
		Link:              &LinkPatch{ShowDescriptionAsLink: ptr(true)},
	}))

	obj, _ := m.Get(id)
	assert.Equal(t, "A", obj.ObjectName)
	assert.Equal(t, "desc", obj.ObjectDescription)
	assert.Equal(t, "https://example.com", obj.Link.Link)
	assert.True(t, obj.Link.ShowDescriptionAsLink)

	// The previous snapshot is untouched.
	assert.Equal(t, "", before.ObjectDescription)
	assert.False(t, before.Link.ShowDescriptionAsLink)
}

func TestUpdateErrors(t *testing.T) {
	m := New(newStoreWithLink(t, 1, "A"))
	id := models.PersistedID(1)

	err := m.Update(id, Patch{ObjectName: ptr("x")})
	assert.ErrorIs(t, err, ErrNoEditedObject)

	m.Reset(id)
	err = m.Update(id, Patch{ObjectType: ptr(models.ObjectTypeMarkdown)})
	assert.ErrorIs(t, err, ErrTypeChange)

	err = m.Update(id, Patch{ObjectType: ptr(models.ObjectType("video"))})
	assert.Error(t, err)

	m.Reset(models.NewID(0))
	assert.NoError(t, m.Update(models.NewID(0), Patch{ObjectType: ptr(models.ObjectTypeComposite)}))
}

func TestNextNewIDIsGloballyLowest(t *testing.T) {
	m := New(entities.New())
	m.Reset(models.NewID(0))

	obj := models.DefaultEditedObject(models.PersistedID(5))
	obj.ObjectType = models.ObjectTypeComposite
	obj.Composite.Subobjects[models.NewID(4)] = models.NewSubobjectEntry(0, 0)
	m.Put(models.PersistedID(5), obj)

	assert.Equal(t, models.NewID(5), m.NextNewID())
	// Allocation never reuses an ID, even when nothing references it.
	assert.Equal(t, models.NewID(6), m.NextNewID())
}

func TestObserverNotified(t *testing.T) {
	m := New(newStoreWithLink(t, 1, "A"))
	rec := &recordingObserver{}
	m.AddObserver(rec)

	id := models.PersistedID(1)
	m.Reset(id)
	require.NoError(t, m.Update(id, Patch{ObjectName: ptr("B")}))
	m.Delete(id, models.PersistedID(99))

	assert.Equal(t, []models.ObjectID{id, id}, rec.changed)
	assert.Equal(t, []models.ObjectID{id}, rec.removed)
}

func TestRestoreSkipsObservers(t *testing.T) {
	m := New(entities.New())
	rec := &recordingObserver{}
	m.AddObserver(rec)

	m.Restore(map[models.ObjectID]*models.EditedObject{
		models.NewID(3): models.DefaultEditedObject(models.NewID(3)),
	})

	assert.True(t, m.Has(models.NewID(3)))
	assert.Empty(t, rec.changed)
	assert.Equal(t, models.NewID(4), m.NextNewID())
}

func TestEnsureLoadedKeepsExistingDrafts(t *testing.T) {
	m := New(newStoreWithLink(t, 1, "A"))
	id := models.PersistedID(1)
	m.Reset(id)
	require.NoError(t, m.Update(id, Patch{ObjectName: ptr("B")}))

	created := m.EnsureLoaded(id, models.NewID(2))
	assert.Equal(t, []models.ObjectID{models.NewID(2)}, created)

	obj, _ := m.Get(id)
	assert.Equal(t, "B", obj.ObjectName)
}

func TestRemoveReferences(t *testing.T) {
	m := New(entities.New())
	parent, child, other := models.PersistedID(10), models.PersistedID(11), models.PersistedID(12)
	obj := models.DefaultEditedObject(parent)
	obj.ObjectType = models.ObjectTypeComposite
	obj.Composite.Subobjects = map[models.ObjectID]models.SubobjectEntry{
		child: models.NewSubobjectEntry(0, 0),
		other: models.NewSubobjectEntry(1, 0),
	}
	m.Put(parent, obj)
	m.Reset(other)

	rec := &recordingObserver{}
	m.AddObserver(rec)
	m.RemoveReferences(child)

	got, _ := m.Get(parent)
	assert.NotContains(t, got.Composite.Subobjects, child)
	assert.Contains(t, got.Composite.Subobjects, other)
	assert.Contains(t, obj.Composite.Subobjects, child, "previous draft value is not mutated")
	assert.Equal(t, []models.ObjectID{parent}, rec.changed)
}
