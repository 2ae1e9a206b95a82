package drafts

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/entities"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// TagUpdate lists tags to add and tag IDs to remove.
type TagUpdate struct {
	Added   []models.TagToken `json:"added,omitempty"`
	Removed []int             `json:"removed,omitempty"`
}

// tagKey is the identity used for de-duplication: a name that matches a
// persisted tag (ignoring case) is the same tag as that tag's ID.
type tagKey string

func keyOf(store *entities.Store, tok models.TagToken) (tagKey, int, bool) {
	if !tok.IsName() {
		return tagKey("id:" + strconv.Itoa(tok.ID)), tok.ID, true
	}
	if tag, ok := store.TagByName(tok.Name); ok {
		return tagKey("id:" + strconv.Itoa(tag.TagID)), tag.TagID, true
	}
	return tagKey("name:" + strings.ToLower(tok.Name)), 0, false
}

func indexOfKey(store *entities.Store, tokens []models.TagToken, key tagKey) int {
	return slices.IndexFunc(tokens, func(t models.TagToken) bool {
		k, _, _ := keyOf(store, t)
		return k == key
	})
}

// UpdateTags applies pending tag changes to the draft of id.
//
// An added tag that is already applied is ignored unless it is pending
// removal, in which case the removal is cancelled. A removed tag that is only
// pending addition is dropped from the additions; otherwise its removal is
// toggled.
func (m *Model) UpdateTags(id models.ObjectID, u TagUpdate) error {
	cur, ok := m.objects[id]
	if !ok {
		return fmt.Errorf("update tags %s: %w", id, ErrNoEditedObject)
	}

	obj := cur.Clone()
	added := slices.Clone(obj.AddedTags)
	removed := slices.Clone(obj.RemovedTagIDs)

	for _, tok := range u.Added {
		if tok.IsName() && strings.TrimSpace(tok.Name) == "" {
			continue
		}
		key, tagID, known := keyOf(m.entities, tok)
		if known {
			if i := slices.Index(removed, tagID); i >= 0 {
				removed = slices.Delete(removed, i, i+1)
				continue
			}
			if slices.Contains(obj.CurrentTagIDs, tagID) {
				continue
			}
		}
		if indexOfKey(m.entities, added, key) >= 0 {
			continue
		}
		added = append(added, tok)
	}

	for _, tagID := range u.Removed {
		key := tagKey("id:" + strconv.Itoa(tagID))
		if i := indexOfKey(m.entities, added, key); i >= 0 {
			added = slices.Delete(added, i, i+1)
			continue
		}
		if i := slices.Index(removed, tagID); i >= 0 {
			removed = slices.Delete(removed, i, i+1)
		} else if slices.Contains(obj.CurrentTagIDs, tagID) {
			removed = append(removed, tagID)
		}
	}

	obj.AddedTags = added
	obj.RemovedTagIDs = removed
	m.Put(id, obj)
	return nil
}

// BulkTags is the pending tag change for a selection of persisted objects,
// edited in the objects list rather than in a single object's editor.
type BulkTags struct {
	Added         []models.TagToken `json:"added_tags"`
	RemovedTagIDs []int             `json:"removed_tag_ids"`
}

// IsEmpty reports whether there is nothing to save.
func (b BulkTags) IsEmpty() bool {
	return len(b.Added) == 0 && len(b.RemovedTagIDs) == 0
}

// Update returns b with u applied for the selected objects. Tags common to
// every selected object cannot be added again; adding one moves it to the
// removed set instead. Removing a tag toggles its pending removal, or drops
// it from the pending additions.
func (b BulkTags) Update(store *entities.Store, selected []models.ObjectID, u TagUpdate) BulkTags {
	common := store.CommonTagIDs(selected)
	added := slices.Clone(b.Added)
	removed := slices.Clone(b.RemovedTagIDs)

	for _, tok := range u.Added {
		if tok.IsName() && strings.TrimSpace(tok.Name) == "" {
			continue
		}
		key, tagID, known := keyOf(store, tok)
		if known && slices.Contains(common, tagID) {
			if !slices.Contains(removed, tagID) {
				removed = append(removed, tagID)
			}
			continue
		}
		if known {
			removed = slices.DeleteFunc(removed, func(id int) bool { return id == tagID })
		}
		if indexOfKey(store, added, key) >= 0 {
			continue
		}
		added = append(added, tok)
	}

	for _, tagID := range u.Removed {
		key := tagKey("id:" + strconv.Itoa(tagID))
		if i := indexOfKey(store, added, key); i >= 0 {
			added = slices.Delete(added, i, i+1)
			continue
		}
		if i := slices.Index(removed, tagID); i >= 0 {
			removed = slices.Delete(removed, i, i+1)
		} else {
			removed = append(removed, tagID)
		}
	}

	return BulkTags{Added: added, RemovedTagIDs: removed}
}
