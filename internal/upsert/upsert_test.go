package upsert_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/backend"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/backend/backendtest"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/composite"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/drafts"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/entities"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/upsert"
)

func ptr[T any](v T) *T { return &v }

type env struct {
	srv    *backendtest.Server
	client *backend.Client
	store  *entities.Store
	model  *drafts.Model
}

func newEnv(t *testing.T) *env {
	t.Helper()
	srv := backendtest.NewServer()
	t.Cleanup(srv.Close)
	store := entities.New()
	return &env{
		srv:    srv,
		client: backend.NewClient(srv.URL, 5*time.Second, zerolog.Nop()),
		store:  store,
		model:  drafts.New(store),
	}
}

// persist seeds an object both in the fake backend and in the entity store.
func (e *env) persist(n int, name string, data models.ObjectData) models.ObjectID {
	id := models.PersistedID(n)
	attrs := models.Attributes{ObjectID: id, ObjectType: data.Type(), ObjectName: name}
	e.srv.AddObject(attrs, data)
	e.store.AddObjects(attrs)
	e.store.AddObjectData(id, data)
	e.store.SetCurrentTagIDs(id, nil)
	return id
}

func (e *env) save(t *testing.T, root models.ObjectID) (*upsert.Request, upsert.IDMapping) {
	t.Helper()
	req, err := upsert.BuildRequest(e.model, root)
	require.NoError(t, err)

	var resp *backend.ObjectPayload
	if req.IsAdd() {
		resp, err = e.client.AddObject(context.Background(), req.Object)
	} else {
		resp, err = e.client.UpdateObject(context.Background(), req.Object)
	}
	require.NoError(t, err)

	mapping, err := upsert.Reconcile(e.model, req, resp)
	require.NoError(t, err)
	return req, mapping
}

func newComposite(t *testing.T, m *drafts.Model, id models.ObjectID, name string) {
	t.Helper()
	m.Reset(id)
	require.NoError(t, m.Update(id, drafts.Patch{ObjectType: ptr(models.ObjectTypeComposite), ObjectName: ptr(name)}))
}

func TestSaveNewCompositeWithMixedSubobjects(t *testing.T) {
	e := newEnv(t)
	two := e.persist(2, "two", models.LinkData{Link: "https://two"})
	three := e.persist(3, "three", models.LinkData{Link: "https://three"})

	root := models.NewID(0)
	newComposite(t, e.model, root, "root")
	res, err := composite.Apply(e.model, root, composite.AddNewSubobject{Row: 0, Column: 0})
	require.NoError(t, err)
	created := res.SubobjectID
	require.NoError(t, e.model.Update(created, drafts.Patch{
		ObjectType: ptr(models.ObjectTypeMarkdown),
		ObjectName: ptr("new"),
		Markdown:   &drafts.MarkdownPatch{RawText: ptr("# new")},
	}))

	e.model.Reset(two, three)
	_, err = composite.Apply(e.model, root, composite.AddExistingSubobject{SubobjectID: two, Row: 1, Column: 0})
	require.NoError(t, err)
	_, err = composite.Apply(e.model, root, composite.AddExistingSubobject{SubobjectID: three, Row: 0, Column: 1})
	require.NoError(t, err)
	require.NoError(t, e.model.Update(three, drafts.Patch{ObjectName: ptr("three edited")}))
	require.NoError(t, e.model.UpdateTags(root, drafts.TagUpdate{Added: []models.TagToken{models.TagByName("fresh")}}))

	req, mapping := e.save(t, root)

	assert.Equal(t, []models.ObjectID{created, root, three}, req.Sent)
	assert.Empty(t, req.Deleted)

	// Only modified subobjects carry their data on the wire.
	bodies := e.srv.Requests("/objects/add")
	require.Len(t, bodies, 1)
	var body struct {
		Object struct {
			ObjectData struct {
				Subobjects []map[string]any `json:"subobjects"`
			} `json:"object_data"`
		} `json:"object"`
	}
	require.NoError(t, json.Unmarshal(bodies[0], &body))
	withData := map[float64]bool{}
	for _, s := range body.Object.ObjectData.Subobjects {
		_, ok := s["object_data"]
		withData[s["object_id"].(float64)] = ok
	}
	assert.Equal(t, map[float64]bool{-1: true, 2: false, 3: true}, withData)

	// Placeholders are gone and drafts live at their final IDs.
	require.Len(t, mapping, 2)
	rootID, createdID := mapping[root], mapping[created]
	assert.False(t, rootID.IsNew())
	assert.False(t, createdID.IsNew())
	assert.ElementsMatch(t, []models.ObjectID{two, three, rootID, createdID}, e.model.IDs())

	saved, ok := e.model.Get(rootID)
	require.True(t, ok)
	assert.Equal(t, "root", saved.ObjectName)
	assert.Empty(t, saved.AddedTags)
	assert.Len(t, saved.CurrentTagIDs, 1)
	require.Len(t, saved.Composite.Subobjects, 3)
	assert.Equal(t, [2]int{0, 0}, [2]int{saved.Composite.Subobjects[createdID].Row, saved.Composite.Subobjects[createdID].Column})
	assert.Equal(t, [2]int{1, 0}, [2]int{saved.Composite.Subobjects[two].Row, saved.Composite.Subobjects[two].Column})
	assert.Equal(t, [2]int{0, 1}, [2]int{saved.Composite.Subobjects[three].Row, saved.Composite.Subobjects[three].Column})

	attrs, ok := e.store.Object(three)
	require.True(t, ok)
	assert.Equal(t, "three edited", attrs.ObjectName)
	assert.True(t, e.store.HasObject(rootID))
	data, _ := e.store.Data(createdID)
	assert.Equal(t, models.MarkdownData{RawText: "# new"}, data)

	unchanged, ok := e.model.Get(two)
	require.True(t, ok)
	assert.Equal(t, "two", unchanged.ObjectName)
}

func TestDeleteModesInRequest(t *testing.T) {
	e := newEnv(t)
	kept := e.persist(11, "detached", models.LinkData{Link: "https://11"})
	removed := e.persist(12, "removed", models.LinkData{Link: "https://12"})
	other := e.persist(13, "other", models.LinkData{Link: "https://13"})
	parent := e.persist(10, "parent", models.CompositeData{
		Subobjects: map[models.ObjectID]models.SubobjectEntry{
			kept:    models.NewSubobjectEntry(0, 0),
			removed: models.NewSubobjectEntry(1, 0),
			other:   models.NewSubobjectEntry(2, 0),
		},
		DisplayMode: models.DisplayModeBasic,
	})

	e.model.Reset(parent, kept, removed, other)
	_, err := composite.Apply(e.model, parent, composite.UpdateSubobject{SubobjectID: kept, DeleteMode: ptr(models.DeleteModeSubobjectOnly)})
	require.NoError(t, err)
	_, err = composite.Apply(e.model, parent, composite.UpdateSubobject{SubobjectID: removed, DeleteMode: ptr(models.DeleteModeFull)})
	require.NoError(t, err)

	req, mapping := e.save(t, parent)

	assert.Empty(t, mapping)
	assert.Equal(t, []models.ObjectID{removed}, req.Deleted)
	c, ok := req.Object.Data.(backend.CompositePayload)
	require.True(t, ok)
	assert.Equal(t, []int{12}, c.DeletedObjectIDs)
	require.Len(t, c.Subobjects, 1)
	assert.Equal(t, other, c.Subobjects[0].ObjectID)

	assert.False(t, e.model.Has(removed))
	assert.False(t, e.store.HasObject(removed))
	assert.True(t, e.model.Has(kept))
	assert.True(t, e.store.HasObject(kept))
	_, _, stillOnServer := e.srv.Object(kept)
	assert.True(t, stillOnServer)

	saved, _ := e.model.Get(parent)
	assert.Equal(t, []models.ObjectID{other}, saved.Composite.SubobjectIDs())
}

func TestSaveNewObjectsReferencingEachOther(t *testing.T) {
	e := newEnv(t)
	a := models.NewID(0)
	newComposite(t, e.model, a, "A")
	res, err := composite.Apply(e.model, a, composite.AddNewSubobject{})
	require.NoError(t, err)
	b := res.SubobjectID
	require.NoError(t, e.model.Update(b, drafts.Patch{ObjectType: ptr(models.ObjectTypeComposite), ObjectName: ptr("B")}))
	_, err = composite.Apply(e.model, b, composite.AddExistingSubobject{SubobjectID: a})
	require.NoError(t, err)

	_, mapping := e.save(t, a)

	finalA, finalB := mapping[a], mapping[b]
	assert.ElementsMatch(t, []models.ObjectID{finalA, finalB}, e.model.IDs())
	draftA, _ := e.model.Get(finalA)
	draftB, _ := e.model.Get(finalB)
	assert.Equal(t, []models.ObjectID{finalB}, draftA.Composite.SubobjectIDs())
	assert.Equal(t, []models.ObjectID{finalA}, draftB.Composite.SubobjectIDs())
}

func TestReferencesOutsideTheSubtreeAreRewritten(t *testing.T) {
	e := newEnv(t)
	outside := e.persist(20, "outside", models.CompositeData{Subobjects: map[models.ObjectID]models.SubobjectEntry{}})
	e.model.Reset(outside)

	root := models.NewID(0)
	newComposite(t, e.model, root, "root")
	res, err := composite.Apply(e.model, root, composite.AddNewSubobject{})
	require.NoError(t, err)
	sub := res.SubobjectID
	require.NoError(t, e.model.Update(sub, drafts.Patch{ObjectName: ptr("link"), Link: &drafts.LinkPatch{Link: ptr("https://x")}}))
	_, err = composite.Apply(e.model, outside, composite.AddExistingSubobject{SubobjectID: sub, Row: 0, Column: 3})
	require.NoError(t, err)

	_, mapping := e.save(t, root)

	draft, _ := e.model.Get(outside)
	entry, ok := draft.Composite.Subobjects[mapping[sub]]
	require.True(t, ok)
	assert.Equal(t, 0, entry.Column)
	assert.NotContains(t, draft.Composite.Subobjects, sub)
}

func TestValidationHappensBeforeSerialization(t *testing.T) {
	m := drafts.New(entities.New())
	root := models.NewID(0)
	newComposite(t, m, root, "root")
	_, err := composite.Apply(m, root, composite.AddNewSubobject{})
	require.NoError(t, err)

	_, err = upsert.BuildRequest(m, root)
	var verr *upsert.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, models.NewID(1), verr.ObjectID)
	assert.Equal(t, "object_name", verr.Field)

	empty := models.NewID(5)
	m.Reset(empty)
	_, err = upsert.BuildRequest(m, empty)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "object_name", verr.Field)

	_, err = upsert.BuildRequest(m, models.PersistedID(9))
	assert.ErrorIs(t, err, drafts.ErrNoEditedObject)
}

func TestReconcileRejectsBadResponseWithoutChanges(t *testing.T) {
	e := newEnv(t)
	root := models.NewID(0)
	e.model.Reset(root)
	require.NoError(t, e.model.Update(root, drafts.Patch{ObjectName: ptr("x"), Link: &drafts.LinkPatch{Link: ptr("https://x")}}))
	req, err := upsert.BuildRequest(e.model, root)
	require.NoError(t, err)

	bad := req.Object
	_, err = upsert.Reconcile(e.model, req, &bad)
	assert.Error(t, err, "root still has a placeholder ID")
	assert.Equal(t, []models.ObjectID{root}, e.model.IDs())
	assert.False(t, e.store.HasObject(models.PersistedID(1)))

	badMapping := backend.ObjectPayload{
		Attributes: models.Attributes{ObjectID: models.PersistedID(5), ObjectType: models.ObjectTypeComposite, ObjectName: "x"},
		Data:       backend.CompositePayload{IDMapping: map[string]int{"abc": 1}},
	}
	_, err = upsert.Reconcile(e.model, req, &badMapping)
	assert.Error(t, err)
	assert.Equal(t, []models.ObjectID{root}, e.model.IDs())
	assert.False(t, e.store.HasObject(models.PersistedID(5)))
}

func TestReconcileRequiresEverySentObject(t *testing.T) {
	e := newEnv(t)
	root := models.NewID(0)
	newComposite(t, e.model, root, "root")
	res, err := composite.Apply(e.model, root, composite.AddNewSubobject{Row: 0, Column: 0})
	require.NoError(t, err)
	created := res.SubobjectID
	require.NoError(t, e.model.Update(created, drafts.Patch{ObjectName: ptr("child"), Link: &drafts.LinkPatch{Link: ptr("https://child")}}))

	req, err := upsert.BuildRequest(e.model, root)
	require.NoError(t, err)
	require.Equal(t, []models.ObjectID{created, root}, req.Sent)

	// The subobject is mapped but comes back as a plain reference.
	resp := backend.ObjectPayload{
		Attributes: models.Attributes{ObjectID: models.PersistedID(10), ObjectType: models.ObjectTypeComposite, ObjectName: "root"},
		Data: backend.CompositePayload{
			Subobjects: []backend.SubobjectPayload{{ObjectID: models.PersistedID(11), IsExpanded: true}},
			IDMapping:  map[string]int{"-1": 11},
		},
	}
	_, err = upsert.Reconcile(e.model, req, &resp)
	assert.ErrorContains(t, err, "missing from the response")

	assert.Equal(t, []models.ObjectID{created, root}, e.model.IDs())
	child, ok := e.model.Get(created)
	require.True(t, ok)
	assert.Equal(t, "child", child.ObjectName)
	assert.False(t, e.store.HasObject(models.PersistedID(10)))
	assert.False(t, e.store.HasObject(models.PersistedID(11)))
}
