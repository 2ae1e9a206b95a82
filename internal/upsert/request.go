// Package upsert serializes the draft graph under a saved object into an
// add/update request and applies the backend's answer back to the entity
// store and the drafts.
package upsert

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/backend"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/changes"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/drafts"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// ValidationError is a draft that cannot be saved. It is reported before
// any request is sent.
type ValidationError struct {
	ObjectID models.ObjectID
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("object %s: %s: %s", e.ObjectID, e.Field, e.Message)
}

// Request is a serialized save of one root object.
type Request struct {
	Root   models.ObjectID
	Object backend.ObjectPayload
	// Sent lists the objects serialized in full, root included.
	Sent []models.ObjectID
	// Deleted lists subobjects marked for full deletion.
	Deleted []models.ObjectID
}

// IsAdd reports whether the request creates the root object.
func (r *Request) IsAdd() bool { return r.Root.IsNew() }

type builder struct {
	m       *drafts.Model
	graph   *changes.Graph
	visited map[models.ObjectID]bool
	req     *Request
}

// BuildRequest validates and serializes the drafts reachable from root.
// Subobjects without unsaved changes are sent as plain references; new and
// modified ones are embedded in full. Subobjects marked for deletion are
// left out, and fully deleted ones are listed in deleted_object_ids.
func BuildRequest(m *drafts.Model, root models.ObjectID) (*Request, error) {
	if !m.Has(root) {
		return nil, fmt.Errorf("save %s: %w", root, drafts.ErrNoEditedObject)
	}
	b := &builder{
		m:       m,
		graph:   changes.Analyze(m, root),
		visited: make(map[models.ObjectID]bool),
		req:     &Request{Root: root},
	}
	obj, err := b.serialize(root)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(b.req.Sent, models.CompareIDs)
	slices.SortFunc(b.req.Deleted, models.CompareIDs)
	if c, ok := obj.Data.(backend.CompositePayload); ok && len(b.req.Deleted) > 0 {
		c.DeletedObjectIDs = make([]int, 0, len(b.req.Deleted))
		for _, id := range b.req.Deleted {
			c.DeletedObjectIDs = append(c.DeletedObjectIDs, id.Wire())
		}
		obj.Data = c
	}
	b.req.Object = obj
	return b.req, nil
}

// embeddable reports whether the draft of id can be sent in full.
func (b *builder) embeddable(id models.ObjectID, entry models.SubobjectEntry) bool {
	obj, ok := b.m.Get(id)
	if !ok || obj.FetchError != "" || entry.FetchError != "" {
		return false
	}
	if !id.IsNew() && !b.m.Entities().HasObject(id) {
		return false
	}
	return b.graph.IsModified(id) && !b.visited[id]
}

func (b *builder) serialize(id models.ObjectID) (backend.ObjectPayload, error) {
	b.visited[id] = true
	b.req.Sent = append(b.req.Sent, id)

	obj, _ := b.m.Get(id)
	if err := validate(obj); err != nil {
		return backend.ObjectPayload{}, err
	}

	p := backend.ObjectPayload{
		Attributes:    obj.Attributes,
		AddedTags:     slices.Clone(obj.AddedTags),
		RemovedTagIDs: slices.Clone(obj.RemovedTagIDs),
	}
	if !obj.IsComposite() {
		p.Data = backend.EncodeData(obj.Data())
		return p, nil
	}

	c := backend.CompositePayload{
		Subobjects:       []backend.SubobjectPayload{},
		DisplayMode:      obj.Composite.DisplayMode,
		NumerateChapters: obj.Composite.NumerateChapters,
	}
	for _, subID := range slices.SortedFunc(maps.Keys(obj.Composite.Subobjects), models.CompareIDs) {
		entry := obj.Composite.Subobjects[subID]
		switch entry.DeleteMode {
		case models.DeleteModeFull:
			if !subID.IsNew() && !slices.Contains(b.req.Deleted, subID) {
				b.req.Deleted = append(b.req.Deleted, subID)
			}
			continue
		case models.DeleteModeSubobjectOnly:
			continue
		}

		sp := backend.NewSubobjectPayload(subID, entry)
		if b.embeddable(subID, entry) {
			sub, err := b.serialize(subID)
			if err != nil {
				return backend.ObjectPayload{}, err
			}
			sp.Object = &sub
		} else if subID.IsNew() && !b.visited[subID] {
			return backend.ObjectPayload{}, &ValidationError{ObjectID: subID, Field: "object_data", Message: "new subobject has no data"}
		}
		c.Subobjects = append(c.Subobjects, sp)
	}
	p.Data = c
	return p, nil
}

func validate(obj *models.EditedObject) error {
	id := obj.ObjectID
	if strings.TrimSpace(obj.ObjectName) == "" {
		return &ValidationError{ObjectID: id, Field: "object_name", Message: "name is required"}
	}
	if !obj.ObjectType.Valid() {
		return &ValidationError{ObjectID: id, Field: "object_type", Message: fmt.Sprintf("unknown type %q", obj.ObjectType)}
	}
	switch obj.ObjectType {
	case models.ObjectTypeLink:
		if strings.TrimSpace(obj.Link.Link) == "" {
			return &ValidationError{ObjectID: id, Field: "link", Message: "link is required"}
		}
	case models.ObjectTypeMarkdown:
		if strings.TrimSpace(obj.Markdown.RawText) == "" {
			return &ValidationError{ObjectID: id, Field: "raw_text", Message: "text is required"}
		}
	case models.ObjectTypeToDoList:
		if len(obj.ToDoList.ItemOrder) == 0 {
			return &ValidationError{ObjectID: id, Field: "items", Message: "at least one item is required"}
		}
	case models.ObjectTypeComposite:
		for _, entry := range obj.Composite.Subobjects {
			if !entry.DeleteMode.IsPending() {
				return nil
			}
		}
		return &ValidationError{ObjectID: id, Field: "subobjects", Message: "at least one subobject is required"}
	}
	return nil
}
