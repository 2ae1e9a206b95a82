// Package drafts implements the edited-object model: the arena of client-side
// drafts keyed by object ID. Drafts are replaced, never mutated in place, so
// a pointer obtained from Get stays a consistent snapshot.
package drafts

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/entities"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

var (
	// ErrNoEditedObject is returned when an operation targets an ID that has
	// no draft.
	ErrNoEditedObject = errors.New("edited object not found")
	// ErrTypeChange is returned when a patch changes the type of a persisted object.
	ErrTypeChange = errors.New("object type of a persisted object cannot be changed")
)

// Observer is notified after every change of the model.
type Observer interface {
	EditedObjectChanged(id models.ObjectID, obj *models.EditedObject)
	EditedObjectRemoved(id models.ObjectID)
}

// Model is the edited-object arena. It is not safe for concurrent use.
type Model struct {
	entities  *entities.Store
	objects   map[models.ObjectID]*models.EditedObject
	lastNewID int
	observers []Observer
}

// New creates an empty model seeded from the given entity store.
func New(store *entities.Store) *Model {
	return &Model{
		entities: store,
		objects:  make(map[models.ObjectID]*models.EditedObject),
	}
}

// Entities returns the entity store the model is seeded from.
func (m *Model) Entities() *entities.Store { return m.entities }

// AddObserver registers o for change notifications.
func (m *Model) AddObserver(o Observer) {
	m.observers = append(m.observers, o)
}

// Get returns the draft for id. The returned value must not be modified.
func (m *Model) Get(id models.ObjectID) (*models.EditedObject, bool) {
	obj, ok := m.objects[id]
	return obj, ok
}

// Has reports whether id has a draft.
func (m *Model) Has(id models.ObjectID) bool {
	_, ok := m.objects[id]
	return ok
}

// Len returns the number of drafts.
func (m *Model) Len() int { return len(m.objects) }

// IDs returns the IDs of all drafts ordered by wire value.
func (m *Model) IDs() []models.ObjectID {
	return slices.SortedFunc(maps.Keys(m.objects), models.CompareIDs)
}

// Put stores obj as the draft for id, replacing any previous draft.
func (m *Model) Put(id models.ObjectID, obj *models.EditedObject) {
	obj.ObjectID = id
	m.objects[id] = obj
	for _, o := range m.observers {
		o.EditedObjectChanged(id, obj)
	}
}

// Delete removes drafts. Missing IDs are ignored.
func (m *Model) Delete(ids ...models.ObjectID) {
	for _, id := range ids {
		if _, ok := m.objects[id]; !ok {
			continue
		}
		delete(m.objects, id)
		for _, o := range m.observers {
			o.EditedObjectRemoved(id)
		}
	}
}

// RemoveReferences drops ids from the subobject maps of every composite
// draft. Drafts that do not reference any of them are left untouched.
func (m *Model) RemoveReferences(ids ...models.ObjectID) {
	if len(ids) == 0 {
		return
	}
	for _, id := range m.IDs() {
		obj := m.objects[id]
		var refs bool
		for _, removed := range ids {
			if _, ok := obj.Composite.Subobjects[removed]; ok {
				refs = true
				break
			}
		}
		if !refs {
			continue
		}
		updated := obj.Clone()
		for _, removed := range ids {
			delete(updated.Composite.Subobjects, removed)
		}
		m.Put(id, updated)
	}
}

// Restore loads drafts read back from local storage without notifying
// observers. Existing drafts with the same IDs are replaced.
func (m *Model) Restore(objects map[models.ObjectID]*models.EditedObject) {
	for id, obj := range objects {
		obj.ObjectID = id
		m.objects[id] = obj
		if id.IsNew() && id.Seq() > m.lastNewID {
			m.lastNewID = id.Seq()
		}
	}
}

// Reset (re)initializes drafts as copies of their persisted entities,
// discarding unsaved changes. IDs without a loaded entity get the default
// template.
func (m *Model) Reset(ids ...models.ObjectID) {
	for _, id := range ids {
		m.Put(id, m.seed(id))
	}
}

// EnsureLoaded creates drafts seeded from entities for IDs that have none and
// leaves existing drafts untouched. It returns the IDs that were created.
func (m *Model) EnsureLoaded(ids ...models.ObjectID) []models.ObjectID {
	var created []models.ObjectID
	for _, id := range ids {
		if m.Has(id) {
			continue
		}
		m.Put(id, m.seed(id))
		created = append(created, id)
	}
	return created
}

func (m *Model) seed(id models.ObjectID) *models.EditedObject {
	obj := models.DefaultEditedObject(id)
	if id.IsNew() || !m.entities.HasObject(id) {
		return obj
	}

	attrs, _ := m.entities.Object(id)
	obj.Attributes = attrs
	obj.ObjectID = id
	obj.CurrentTagIDs = m.entities.CurrentTagIDs(id)
	if obj.CurrentTagIDs == nil {
		obj.CurrentTagIDs = []int{}
	}

	data, _ := m.entities.Data(id)
	obj.SetData(data)
	// The entity payload is shared with the store; give the draft its own copy.
	return obj.Clone()
}

// NextNewID allocates a placeholder ID lower than every ID in use, including
// IDs only referenced from composite subobject maps. Allocation is monotonic
// for the lifetime of the model.
func (m *Model) NextNewID() models.ObjectID {
	next := m.lastNewID
	for id, obj := range m.objects {
		if id.IsNew() && id.Seq() > next {
			next = id.Seq()
		}
		for subID := range obj.Composite.Subobjects {
			if subID.IsNew() && subID.Seq() > next {
				next = subID.Seq()
			}
		}
	}
	m.lastNewID = next + 1
	return models.NewID(m.lastNewID)
}

// Patch is a partial update of a draft. Nil fields are left unchanged; nested
// patches are merged one level deep.
type Patch struct {
	ObjectType        *models.ObjectType `json:"object_type,omitempty"`
	ObjectName        *string            `json:"object_name,omitempty"`
	ObjectDescription *string            `json:"object_description,omitempty"`
	IsPublished       *bool              `json:"is_published,omitempty"`
	DisplayInFeed     *bool              `json:"display_in_feed,omitempty"`
	FeedTimestamp     *string            `json:"feed_timestamp,omitempty"`
	ShowDescription   *bool              `json:"show_description,omitempty"`
	OwnerID           *int               `json:"owner_id,omitempty"`

	Link      *LinkPatch      `json:"link,omitempty"`
	Markdown  *MarkdownPatch  `json:"markdown,omitempty"`
	ToDoList  *ToDoListPatch  `json:"toDoList,omitempty"`
	Composite *CompositePatch `json:"composite,omitempty"`
}

type LinkPatch struct {
	Link                  *string `json:"link,omitempty"`
	ShowDescriptionAsLink *bool   `json:"show_description_as_link,omitempty"`
}

type MarkdownPatch struct {
	RawText *string `json:"raw_text,omitempty"`
}

type ToDoListPatch struct {
	SortType *models.ToDoListSortType `json:"sort_type,omitempty"`
}

type CompositePatch struct {
	DisplayMode      *models.CompositeDisplayMode `json:"display_mode,omitempty"`
	NumerateChapters *bool                        `json:"numerate_chapters,omitempty"`
}

// Update merges p into the draft of id.
func (m *Model) Update(id models.ObjectID, p Patch) error {
	cur, ok := m.objects[id]
	if !ok {
		return fmt.Errorf("update %s: %w", id, ErrNoEditedObject)
	}
	if p.ObjectType != nil {
		if !p.ObjectType.Valid() {
			return fmt.Errorf("update %s: unknown object type %q", id, *p.ObjectType)
		}
		if !id.IsNew() && *p.ObjectType != cur.ObjectType {
			return fmt.Errorf("update %s: %w", id, ErrTypeChange)
		}
	}

	obj := cur.Clone()
	setIf(&obj.ObjectType, p.ObjectType)
	setIf(&obj.ObjectName, p.ObjectName)
	setIf(&obj.ObjectDescription, p.ObjectDescription)
	setIf(&obj.IsPublished, p.IsPublished)
	setIf(&obj.DisplayInFeed, p.DisplayInFeed)
	setIf(&obj.FeedTimestamp, p.FeedTimestamp)
	setIf(&obj.ShowDescription, p.ShowDescription)
	setIf(&obj.OwnerID, p.OwnerID)

	if p.Link != nil {
		setIf(&obj.Link.Link, p.Link.Link)
		setIf(&obj.Link.ShowDescriptionAsLink, p.Link.ShowDescriptionAsLink)
	}
	if p.Markdown != nil {
		setIf(&obj.Markdown.RawText, p.Markdown.RawText)
	}
	if p.ToDoList != nil {
		setIf(&obj.ToDoList.SortType, p.ToDoList.SortType)
	}
	if p.Composite != nil {
		setIf(&obj.Composite.DisplayMode, p.Composite.DisplayMode)
		setIf(&obj.Composite.NumerateChapters, p.Composite.NumerateChapters)
	}

	m.Put(id, obj)
	return nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
