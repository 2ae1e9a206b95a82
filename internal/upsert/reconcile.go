package upsert

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/backend"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/drafts"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// IDMapping maps placeholder IDs to the IDs assigned by the backend.
type IDMapping map[models.ObjectID]models.ObjectID

// Resolve returns the final ID of id.
func (m IDMapping) Resolve(id models.ObjectID) models.ObjectID {
	if to, ok := m[id]; ok {
		return to
	}
	return id
}

// saved is one object returned by the backend.
type saved struct {
	original models.ObjectID
	payload  backend.ObjectPayload
}

// Reconcile applies a successful save response to the entity store and the
// drafts and returns the placeholder mapping.
//
// Every upserted object is written to the entity store at its final ID and
// its draft is updated to the saved state there; drafts at placeholder IDs
// are discarded once every reference to them in any draft has been
// rewritten. Fully deleted subobjects are removed everywhere. The response
// is checked completely before anything is changed.
func Reconcile(m *drafts.Model, req *Request, resp *backend.ObjectPayload) (IDMapping, error) {
	mapping, err := buildMapping(req, resp)
	if err != nil {
		return nil, err
	}
	reverse := make(map[models.ObjectID]models.ObjectID, len(mapping))
	for from, to := range mapping {
		reverse[to] = from
	}

	var objects []saved
	var collect func(p backend.ObjectPayload)
	collect = func(p backend.ObjectPayload) {
		final := p.ObjectID
		original := final
		if from, ok := reverse[final]; ok {
			original = from
		}
		objects = append(objects, saved{original: original, payload: p})
		if c, ok := p.Data.(backend.CompositePayload); ok {
			for _, sub := range c.Subobjects {
				if sub.Object != nil {
					collect(*sub.Object)
				}
			}
		}
	}
	collect(*resp)
	returned := make(map[models.ObjectID]bool, len(objects))
	for _, o := range objects {
		if o.payload.ObjectID.IsNew() {
			return nil, fmt.Errorf("reconcile: response object %s has no assigned ID", o.payload.ObjectID)
		}
		if o.payload.Data == nil {
			return nil, fmt.Errorf("reconcile: response object %s has no data", o.payload.ObjectID)
		}
		returned[o.payload.ObjectID] = true
	}
	// Every sent draft must come back in full, or its content would be lost
	// when the placeholder draft is discarded.
	for _, id := range req.Sent {
		if final := mapping.Resolve(id); !returned[final] {
			return nil, fmt.Errorf("reconcile: saved object %s is missing from the response", final)
		}
	}

	deleted := make(map[models.ObjectID]bool, len(req.Deleted))
	for _, id := range req.Deleted {
		deleted[id] = true
	}

	store := m.Entities()
	next := make(map[models.ObjectID]*models.EditedObject, len(objects))
	for _, o := range objects {
		final := o.payload.ObjectID
		data := backend.DecodeData(o.payload.Data)

		var obj *models.EditedObject
		if cur, ok := m.Get(o.original); ok {
			obj = cur.Clone()
		} else {
			obj = models.DefaultEditedObject(final)
		}
		tagIDs := currentTags(obj.CurrentTagIDs, o.payload)

		store.AddObjects(o.payload.Attributes)
		store.AddObjectData(final, data)
		store.SetCurrentTagIDs(final, tagIDs)

		obj.Attributes = o.payload.Attributes
		obj.CurrentTagIDs = tagIDs
		obj.AddedTags = []models.TagToken{}
		obj.RemovedTagIDs = []int{}
		obj.FetchError = ""
		obj.SetData(data)
		next[final] = obj
	}

	// Rewrite references in every other draft before any placeholder draft
	// is discarded, so cycles between new objects resolve consistently.
	for _, id := range m.IDs() {
		_, replaced := next[id]
		_, placeholder := mapping[id]
		if replaced || placeholder {
			continue
		}
		obj, _ := m.Get(id)
		if updated, changed := rewriteRefs(obj, mapping, deleted); changed {
			m.Put(id, updated)
		}
	}
	for _, id := range slices.SortedFunc(maps.Keys(next), models.CompareIDs) {
		obj, _ := rewriteRefs(next[id], mapping, deleted)
		m.Put(id, obj)
	}
	for from := range mapping {
		m.Delete(from)
	}

	if len(req.Deleted) > 0 {
		store.RemoveObjects(req.Deleted...)
		m.Delete(req.Deleted...)
	}
	return mapping, nil
}

func buildMapping(req *Request, resp *backend.ObjectPayload) (IDMapping, error) {
	mapping := make(IDMapping)
	if c, ok := resp.Data.(backend.CompositePayload); ok {
		for k, v := range c.IDMapping {
			n, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("reconcile: id_mapping key %q: %w", k, err)
			}
			from, to := models.FromWire(n), models.FromWire(v)
			if !from.IsNew() || to.IsNew() {
				return nil, fmt.Errorf("reconcile: invalid id_mapping entry %d -> %d", n, v)
			}
			mapping[from] = to
		}
	}
	if req.Root.IsNew() {
		if resp.ObjectID.IsNew() {
			return nil, fmt.Errorf("reconcile: root %s has no assigned ID", req.Root)
		}
		mapping[req.Root] = resp.ObjectID
	} else if resp.ObjectID != req.Root {
		return nil, fmt.Errorf("reconcile: response is for %s, saved %s", resp.ObjectID, req.Root)
	}
	return mapping, nil
}

// currentTags returns the tags applied after the save.
func currentTags(before []int, p backend.ObjectPayload) []int {
	if p.CurrentTagIDs != nil {
		return slices.Clone(p.CurrentTagIDs)
	}
	tags := slices.Clone(before)
	if tags == nil {
		tags = []int{}
	}
	if p.TagUpdates == nil {
		return tags
	}
	tags = slices.DeleteFunc(tags, func(t int) bool { return slices.Contains(p.TagUpdates.RemovedTagIDs, t) })
	for _, t := range p.TagUpdates.AddedTagIDs {
		if !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	return tags
}

// rewriteRefs substitutes mapped subobject IDs in place, keeping each
// entry's position, and drops references to deleted objects. The returned
// draft is a copy when anything changed.
func rewriteRefs(obj *models.EditedObject, mapping IDMapping, deleted map[models.ObjectID]bool) (*models.EditedObject, bool) {
	var changed bool
	for id := range obj.Composite.Subobjects {
		if _, ok := mapping[id]; ok || deleted[id] {
			changed = true
			break
		}
	}
	if !changed {
		return obj, false
	}

	out := obj.Clone()
	subobjects := make(map[models.ObjectID]models.SubobjectEntry, len(obj.Composite.Subobjects))
	for id, entry := range obj.Composite.Subobjects {
		if deleted[id] {
			continue
		}
		subobjects[mapping.Resolve(id)] = entry
	}
	out.Composite.Subobjects = subobjects
	return out, true
}
