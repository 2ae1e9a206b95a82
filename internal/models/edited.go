package models

import (
	"github.com/brunoga/deep"
)

// DeleteMode is the pending removal state of one subobject reference.
type DeleteMode string

const (
	DeleteModeNone          DeleteMode = "none"
	DeleteModeSubobjectOnly DeleteMode = "subobjectOnly"
	DeleteModeFull          DeleteMode = "full"
)

// Valid reports whether m is a known delete mode. The empty string is treated
// as DeleteModeNone.
func (m DeleteMode) Valid() bool {
	switch m {
	case "", DeleteModeNone, DeleteModeSubobjectOnly, DeleteModeFull:
		return true
	}
	return false
}

// IsPending reports whether the reference is marked for removal.
func (m DeleteMode) IsPending() bool {
	return m == DeleteModeSubobjectOnly || m == DeleteModeFull
}

// DescriptionDisplay overrides a subobject's description settings inside one
// composite.
type DescriptionDisplay string

const (
	DescriptionInherit DescriptionDisplay = "inherit"
	DescriptionYes     DescriptionDisplay = "yes"
	DescriptionNo      DescriptionDisplay = "no"
)

// SubobjectEntry is what a composite stores about one referenced child.
type SubobjectEntry struct {
	Row                            int                `json:"row"`
	Column                         int                `json:"column"`
	SelectedTab                    int                `json:"selected_tab"`
	IsExpanded                     bool               `json:"is_expanded"`
	ShowDescriptionComposite       DescriptionDisplay `json:"show_description_composite"`
	ShowDescriptionAsLinkComposite DescriptionDisplay `json:"show_description_as_link_composite"`
	DeleteMode                     DeleteMode         `json:"deleteMode"`
	FetchError                     string             `json:"fetchError,omitempty"`
}

// NewSubobjectEntry returns an entry at the given position with default
// display settings.
func NewSubobjectEntry(row, column int) SubobjectEntry {
	return SubobjectEntry{
		Row:                            row,
		Column:                         column,
		IsExpanded:                     true,
		ShowDescriptionComposite:       DescriptionInherit,
		ShowDescriptionAsLinkComposite: DescriptionInherit,
		DeleteMode:                     DeleteModeNone,
	}
}

// EditedObject is the client-side draft of an object. It keeps the data of
// every object type so that switching the type of a new object does not lose
// input; only the data matching ObjectType is saved and compared.
//
// Drafts are values: the edited-object model never mutates a stored draft,
// it replaces it with an updated copy.
type EditedObject struct {
	Attributes

	CurrentTagIDs []int      `json:"current_tag_ids"`
	AddedTags     []TagToken `json:"addedTags"`
	RemovedTagIDs []int      `json:"removedTagIDs"`

	Link      LinkData      `json:"link"`
	Markdown  MarkdownData  `json:"markdown"`
	ToDoList  ToDoListData  `json:"toDoList"`
	Composite CompositeData `json:"composite"`

	// FetchError is set when the object's data could not be loaded.
	FetchError string `json:"fetchError,omitempty"`
}

// DefaultEditedObject returns the template used for new objects.
func DefaultEditedObject(id ObjectID) *EditedObject {
	return &EditedObject{
		Attributes: Attributes{
			ObjectID:        id,
			ObjectType:      ObjectTypeLink,
			ShowDescription: true,
		},
		CurrentTagIDs: []int{},
		AddedTags:     []TagToken{},
		RemovedTagIDs: []int{},
		ToDoList: ToDoListData{
			SortType:  SortTypeDefault,
			Items:     map[int]ToDoListItem{},
			ItemOrder: []int{},
		},
		Composite: CompositeData{
			Subobjects:  map[ObjectID]SubobjectEntry{},
			DisplayMode: DisplayModeBasic,
		},
	}
}

// Clone returns a deep copy of e.
func (e *EditedObject) Clone() *EditedObject {
	return deep.MustCopy(e)
}

// Data returns the payload matching the object's type.
func (e *EditedObject) Data() ObjectData {
	switch e.ObjectType {
	case ObjectTypeMarkdown:
		return e.Markdown
	case ObjectTypeToDoList:
		return e.ToDoList
	case ObjectTypeComposite:
		return e.Composite
	default:
		return e.Link
	}
}

// SetData stores data in the field matching its type. It does not change
// ObjectType.
func (e *EditedObject) SetData(data ObjectData) {
	switch d := data.(type) {
	case LinkData:
		e.Link = d
	case MarkdownData:
		e.Markdown = d
	case ToDoListData:
		e.ToDoList = d
	case CompositeData:
		e.Composite = d
	}
}

// IsComposite reports whether the draft currently is a composite object.
func (e *EditedObject) IsComposite() bool {
	return e.ObjectType == ObjectTypeComposite
}
