// Package composite edits the subobject maps of composite drafts.
package composite

import (
	"errors"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

var (
	ErrUnknownCommand       = errors.New("unknown composite command")
	ErrSelfReference        = errors.New("composite object cannot contain itself")
	ErrDeleteModeTransition = errors.New("invalid delete mode transition")
)

// Command is a change of one composite's subobjects. The set is closed; Apply
// handles every implementation.
type Command interface {
	compositeCommand()
}

// AddNewSubobject creates a new draft with a fresh placeholder ID and places
// it at Row in Column.
type AddNewSubobject struct {
	Row    int
	Column int
}

// AddExistingSubobject places a reference to an already known object. Loading
// the subobject is up to the caller; ResetEditedObject discards its draft first.
type AddExistingSubobject struct {
	SubobjectID       models.ObjectID
	Row               int
	Column            int
	ResetEditedObject bool
}

// UpdateSubobject changes the non-nil fields of one subobject entry.
type UpdateSubobject struct {
	SubobjectID                    models.ObjectID
	Row                            *int
	Column                         *int
	SelectedTab                    *int
	IsExpanded                     *bool
	ShowDescriptionComposite       *models.DescriptionDisplay
	ShowDescriptionAsLinkComposite *models.DescriptionDisplay
	DeleteMode                     *models.DeleteMode
	FetchError                     *string
}

// UpdatePositionsOnDrop moves a dragged subobject. With either side flag set
// the subobject gets a column of its own left or right of NewColumn;
// otherwise it is placed in NewColumn before DropTargetSubobjectID, or at
// NewRow when there is no drop target.
type UpdatePositionsOnDrop struct {
	SubobjectID           models.ObjectID
	DropTargetSubobjectID models.ObjectID
	NewColumn             int
	NewRow                int
	IsDroppedToTheLeft    bool
	IsDroppedToTheRight   bool
}

// ToggleSubobjectsIsPublished publishes every subobject unless all of them
// already are, in which case it unpublishes them.
type ToggleSubobjectsIsPublished struct{}

func (AddNewSubobject) compositeCommand()             {}
func (AddExistingSubobject) compositeCommand()        {}
func (UpdateSubobject) compositeCommand()             {}
func (UpdatePositionsOnDrop) compositeCommand()       {}
func (ToggleSubobjectsIsPublished) compositeCommand() {}
