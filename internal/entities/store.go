// Package entities holds the normalized, server-authoritative state: object
// attributes, per-type object data, current tags of objects and tags.
package entities

import (
	"slices"
	"strings"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// Store keeps persisted entities keyed by ID. It is not safe for concurrent
// use; the session serializes access.
type Store struct {
	objects       map[models.ObjectID]models.Attributes
	data          map[models.ObjectID]models.ObjectData
	currentTagIDs map[models.ObjectID][]int
	tags          map[int]models.Tag
}

// New creates an empty store.
func New() *Store {
	return &Store{
		objects:       make(map[models.ObjectID]models.Attributes),
		data:          make(map[models.ObjectID]models.ObjectData),
		currentTagIDs: make(map[models.ObjectID][]int),
		tags:          make(map[int]models.Tag),
	}
}

// AddObjects inserts or replaces object attributes.
func (s *Store) AddObjects(objects ...models.Attributes) {
	for _, o := range objects {
		s.objects[o.ObjectID] = o
	}
}

// AddObjectData inserts or replaces the payload of an object.
func (s *Store) AddObjectData(id models.ObjectID, data models.ObjectData) {
	s.data[id] = data
}

// SetCurrentTagIDs replaces the tags applied to an object.
func (s *Store) SetCurrentTagIDs(id models.ObjectID, tagIDs []int) {
	s.currentTagIDs[id] = slices.Clone(tagIDs)
}

// Object returns the attributes of a persisted object.
func (s *Store) Object(id models.ObjectID) (models.Attributes, bool) {
	o, ok := s.objects[id]
	return o, ok
}

// Data returns the payload of a persisted object.
func (s *Store) Data(id models.ObjectID) (models.ObjectData, bool) {
	d, ok := s.data[id]
	return d, ok
}

// CurrentTagIDs returns a copy of the tags applied to an object.
func (s *Store) CurrentTagIDs(id models.ObjectID) []int {
	return slices.Clone(s.currentTagIDs[id])
}

// HasObject reports whether both attributes and data of id are present.
func (s *Store) HasObject(id models.ObjectID) bool {
	_, okAttrs := s.objects[id]
	_, okData := s.data[id]
	return okAttrs && okData
}

// RemoveObjects deletes objects and strips references to them from the
// persisted data of composite objects.
func (s *Store) RemoveObjects(ids ...models.ObjectID) {
	if len(ids) == 0 {
		return
	}
	removed := make(map[models.ObjectID]bool, len(ids))
	for _, id := range ids {
		removed[id] = true
		delete(s.objects, id)
		delete(s.data, id)
		delete(s.currentTagIDs, id)
	}

	for id, d := range s.data {
		c, ok := d.(models.CompositeData)
		if !ok {
			continue
		}
		var changed bool
		subobjects := make(map[models.ObjectID]models.SubobjectEntry, len(c.Subobjects))
		for subID, entry := range c.Subobjects {
			if removed[subID] {
				changed = true
				continue
			}
			subobjects[subID] = entry
		}
		if changed {
			c.Subobjects = subobjects
			s.data[id] = c
		}
	}
}

// AddTags inserts or replaces tags.
func (s *Store) AddTags(tags ...models.Tag) {
	for _, t := range tags {
		s.tags[t.TagID] = t
	}
}

// Tag returns a tag by ID.
func (s *Store) Tag(id int) (models.Tag, bool) {
	t, ok := s.tags[id]
	return t, ok
}

// TagByName looks a tag up by name, ignoring case.
func (s *Store) TagByName(name string) (models.Tag, bool) {
	for _, t := range s.tags {
		if strings.EqualFold(t.TagName, name) {
			return t, true
		}
	}
	return models.Tag{}, false
}

// RemoveTags deletes tags and removes them from every object's current tags.
func (s *Store) RemoveTags(ids ...int) {
	for _, id := range ids {
		delete(s.tags, id)
	}
	for objectID, tagIDs := range s.currentTagIDs {
		s.currentTagIDs[objectID] = slices.DeleteFunc(tagIDs, func(tagID int) bool {
			return slices.Contains(ids, tagID)
		})
	}
}

// CommonTagIDs returns the tags applied to every one of the given objects,
// sorted ascending.
func (s *Store) CommonTagIDs(ids []models.ObjectID) []int {
	if len(ids) == 0 {
		return nil
	}
	counts := make(map[int]int)
	for _, id := range ids {
		seen := make(map[int]bool)
		for _, tagID := range s.currentTagIDs[id] {
			if !seen[tagID] {
				seen[tagID] = true
				counts[tagID]++
			}
		}
	}
	var common []int
	for tagID, n := range counts {
		if n == len(ids) {
			common = append(common, tagID)
		}
	}
	slices.Sort(common)
	return common
}
