package composite

import (
	"fmt"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/drafts"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// Result reports what a command did.
type Result struct {
	// SubobjectID is the subobject the command created or placed.
	SubobjectID models.ObjectID
}

// Apply runs cmd against the composite data of the draft parentID.
func Apply(m *drafts.Model, parentID models.ObjectID, cmd Command) (Result, error) {
	cur, ok := m.Get(parentID)
	if !ok {
		return Result{}, fmt.Errorf("composite %s: %w", parentID, drafts.ErrNoEditedObject)
	}

	switch c := cmd.(type) {
	case AddNewSubobject:
		subID := m.NextNewID()
		m.Reset(subID)
		parent := cloneParent(cur)
		insert(parent.Composite.Subobjects, subID, c.Row, c.Column)
		m.Put(parentID, parent)
		return Result{SubobjectID: subID}, nil

	case AddExistingSubobject:
		if c.SubobjectID == parentID {
			return Result{}, fmt.Errorf("add %s to %s: %w", c.SubobjectID, parentID, ErrSelfReference)
		}
		if c.ResetEditedObject {
			m.Reset(c.SubobjectID)
		}
		if _, exists := cur.Composite.Subobjects[c.SubobjectID]; exists {
			return Result{SubobjectID: c.SubobjectID}, nil
		}
		parent := cloneParent(cur)
		insert(parent.Composite.Subobjects, c.SubobjectID, c.Row, c.Column)
		m.Put(parentID, parent)
		return Result{SubobjectID: c.SubobjectID}, nil

	case UpdateSubobject:
		entry, exists := cur.Composite.Subobjects[c.SubobjectID]
		if !exists {
			return Result{}, nil
		}
		if c.DeleteMode != nil {
			if err := checkDeleteMode(entry.DeleteMode, *c.DeleteMode); err != nil {
				return Result{}, fmt.Errorf("update subobject %s: %w", c.SubobjectID, err)
			}
		}
		setIf(&entry.Row, c.Row)
		setIf(&entry.Column, c.Column)
		setIf(&entry.SelectedTab, c.SelectedTab)
		setIf(&entry.IsExpanded, c.IsExpanded)
		setIf(&entry.ShowDescriptionComposite, c.ShowDescriptionComposite)
		setIf(&entry.ShowDescriptionAsLinkComposite, c.ShowDescriptionAsLinkComposite)
		setIf(&entry.DeleteMode, c.DeleteMode)
		setIf(&entry.FetchError, c.FetchError)
		parent := cloneParent(cur)
		parent.Composite.Subobjects[c.SubobjectID] = entry
		m.Put(parentID, parent)
		return Result{SubobjectID: c.SubobjectID}, nil

	case UpdatePositionsOnDrop:
		if _, exists := cur.Composite.Subobjects[c.SubobjectID]; !exists {
			return Result{}, nil
		}
		parent := cloneParent(cur)
		drop(parent.Composite.Subobjects, c)
		m.Put(parentID, parent)
		return Result{SubobjectID: c.SubobjectID}, nil

	case ToggleSubobjectsIsPublished:
		ids := NonDeletedSubobjects(cur)
		publish := IsPublishedState(m, cur) != PublishedYes
		for _, id := range ids {
			sub, ok := persistedDraft(m, id)
			if !ok || sub.IsPublished == publish {
				continue
			}
			sub = sub.Clone()
			sub.IsPublished = publish
			m.Put(id, sub)
		}
		return Result{}, nil

	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

// checkDeleteMode enforces none -> subobjectOnly|full -> none.
func checkDeleteMode(from, to models.DeleteMode) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown delete mode %q", ErrDeleteModeTransition, to)
	}
	if from.IsPending() && to.IsPending() && from != to {
		return fmt.Errorf("%w: %s -> %s", ErrDeleteModeTransition, from, to)
	}
	return nil
}

// PublishedState is the aggregated is_published flag of a composite's subobjects.
type PublishedState string

const (
	PublishedYes       PublishedState = "yes"
	PublishedPartially PublishedState = "partially"
	PublishedNo        PublishedState = "no"
)

// IsPublishedState aggregates is_published over the non-deleted subobjects of
// parent that exist in the entity store and have drafts. New subobjects are
// not counted.
func IsPublishedState(m *drafts.Model, parent *models.EditedObject) PublishedState {
	var total, published int
	for _, id := range NonDeletedSubobjects(parent) {
		sub, ok := persistedDraft(m, id)
		if !ok {
			continue
		}
		total++
		if sub.IsPublished {
			published++
		}
	}
	switch {
	case total > 0 && published == total:
		return PublishedYes
	case published > 0:
		return PublishedPartially
	default:
		return PublishedNo
	}
}

// NonDeletedSubobjects returns the subobjects of parent that are not marked
// for deletion, in display order.
func NonDeletedSubobjects(parent *models.EditedObject) []models.ObjectID {
	var ids []models.ObjectID
	for _, column := range grid(parent.Composite.Subobjects) {
		for _, id := range column {
			if !parent.Composite.Subobjects[id].DeleteMode.IsPending() {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// persistedDraft returns the draft of a subobject that has a persisted entity.
func persistedDraft(m *drafts.Model, id models.ObjectID) (*models.EditedObject, bool) {
	if id.IsNew() || !m.Entities().HasObject(id) {
		return nil, false
	}
	return m.Get(id)
}

func cloneParent(cur *models.EditedObject) *models.EditedObject {
	parent := cur.Clone()
	if parent.Composite.Subobjects == nil {
		parent.Composite.Subobjects = map[models.ObjectID]models.SubobjectEntry{}
	}
	return parent
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
