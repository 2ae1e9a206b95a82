// Package changes decides which drafts differ from their persisted entities
// and evicts the ones that do not.
package changes

import (
	"maps"
	"slices"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/entities"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// AttributesEqual compares the user-editable attributes. IDs and timestamps
// are assigned by the backend and ignored.
func AttributesEqual(a, b models.Attributes) bool {
	return a.ObjectType == b.ObjectType &&
		a.ObjectName == b.ObjectName &&
		a.ObjectDescription == b.ObjectDescription &&
		a.IsPublished == b.IsPublished &&
		a.DisplayInFeed == b.DisplayInFeed &&
		a.FeedTimestamp == b.FeedTimestamp &&
		a.ShowDescription == b.ShowDescription &&
		a.OwnerID == b.OwnerID
}

// TagsEqual reports whether obj has no pending tag changes and its current
// tags match the persisted ones, ignoring order.
func TagsEqual(obj *models.EditedObject, persisted []int) bool {
	if len(obj.AddedTags) > 0 || len(obj.RemovedTagIDs) > 0 {
		return false
	}
	a, b := slices.Clone(obj.CurrentTagIDs), slices.Clone(persisted)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}

// DataEqual compares two payloads of the same object type.
func DataEqual(a, b models.ObjectData) bool {
	switch x := a.(type) {
	case models.LinkData:
		y, ok := b.(models.LinkData)
		return ok && x == y
	case models.MarkdownData:
		y, ok := b.(models.MarkdownData)
		return ok && x == y
	case models.ToDoListData:
		y, ok := b.(models.ToDoListData)
		return ok && toDoListEqual(x, y)
	case models.CompositeData:
		y, ok := b.(models.CompositeData)
		return ok && compositeEqual(x, y)
	}
	return false
}

func toDoListEqual(a, b models.ToDoListData) bool {
	return a.SortType == b.SortType &&
		slices.Equal(a.ItemOrder, b.ItemOrder) &&
		maps.Equal(a.Items, b.Items)
}

func compositeEqual(a, b models.CompositeData) bool {
	if a.DisplayMode != b.DisplayMode || a.NumerateChapters != b.NumerateChapters {
		return false
	}
	return maps.EqualFunc(a.Subobjects, b.Subobjects, SubobjectEntryEqual)
}

// SubobjectEntryEqual compares the persisted fields of two subobject entries.
// selected_tab and fetchError are display state. An entry pending deletion
// never equals anything.
func SubobjectEntryEqual(a, b models.SubobjectEntry) bool {
	if a.DeleteMode.IsPending() || b.DeleteMode.IsPending() {
		return false
	}
	return a.Row == b.Row &&
		a.Column == b.Column &&
		a.IsExpanded == b.IsExpanded &&
		a.ShowDescriptionComposite == b.ShowDescriptionComposite &&
		a.ShowDescriptionAsLinkComposite == b.ShowDescriptionAsLinkComposite
}

// DiffersFromEntity reports whether the draft has changes relative to the
// persisted entity. A draft without a fully loaded entity always differs.
func DiffersFromEntity(store *entities.Store, obj *models.EditedObject) bool {
	id := obj.ObjectID
	if id.IsNew() || !store.HasObject(id) {
		return true
	}
	attrs, _ := store.Object(id)
	if !AttributesEqual(obj.Attributes, attrs) {
		return true
	}
	if !TagsEqual(obj, store.CurrentTagIDs(id)) {
		return true
	}
	data, _ := store.Data(id)
	return !DataEqual(obj.Data(), data)
}
