package models

// ObjectType selects which per-type data an object carries.
type ObjectType string

const (
	ObjectTypeLink      ObjectType = "link"
	ObjectTypeMarkdown  ObjectType = "markdown"
	ObjectTypeToDoList  ObjectType = "to_do_list"
	ObjectTypeComposite ObjectType = "composite"
)

// Valid reports whether t is one of the known object types.
func (t ObjectType) Valid() bool {
	switch t {
	case ObjectTypeLink, ObjectTypeMarkdown, ObjectTypeToDoList, ObjectTypeComposite:
		return true
	}
	return false
}

// Attributes are the type-independent fields of an object.
type Attributes struct {
	ObjectID          ObjectID   `json:"object_id"`
	ObjectType        ObjectType `json:"object_type"`
	ObjectName        string     `json:"object_name"`
	ObjectDescription string     `json:"object_description"`
	CreatedAt         string     `json:"created_at"`
	ModifiedAt        string     `json:"modified_at"`
	IsPublished       bool       `json:"is_published"`
	DisplayInFeed     bool       `json:"display_in_feed"`
	FeedTimestamp     string     `json:"feed_timestamp"`
	ShowDescription   bool       `json:"show_description"`
	OwnerID           int        `json:"owner_id"`
}

// ObjectData is the type-specific payload of an object.
type ObjectData interface {
	Type() ObjectType
}

// LinkData is the payload of a link object.
type LinkData struct {
	Link                  string `json:"link"`
	ShowDescriptionAsLink bool   `json:"show_description_as_link"`
}

func (LinkData) Type() ObjectType { return ObjectTypeLink }

// MarkdownData is the payload of a markdown object.
type MarkdownData struct {
	RawText string `json:"raw_text"`
}

func (MarkdownData) Type() ObjectType { return ObjectTypeMarkdown }

// ToDoListSortType controls how the items of a to-do list are displayed.
type ToDoListSortType string

const (
	SortTypeDefault ToDoListSortType = "default"
	SortTypeState   ToDoListSortType = "state"
)

// ToDoListItemState is the completion state of a to-do list item.
type ToDoListItemState string

const (
	ItemStateActive    ToDoListItemState = "active"
	ItemStateOptional  ToDoListItemState = "optional"
	ItemStateCompleted ToDoListItemState = "completed"
	ItemStateCancelled ToDoListItemState = "cancelled"
)

// ToDoListItem is a single to-do list entry. Items are identified by the
// item_number they are stored under, never by position.
type ToDoListItem struct {
	ItemState  ToDoListItemState `json:"item_state"`
	ItemText   string            `json:"item_text"`
	Commentary string            `json:"commentary"`
	Indent     int               `json:"indent"`
	IsExpanded bool              `json:"is_expanded"`
}

// ToDoListData is the payload of a to-do list object.
type ToDoListData struct {
	SortType  ToDoListSortType     `json:"sort_type"`
	Items     map[int]ToDoListItem `json:"items"`
	ItemOrder []int                `json:"item_order"`
}

func (ToDoListData) Type() ObjectType { return ObjectTypeToDoList }

// CompositeDisplayMode selects how a composite renders its subobjects.
type CompositeDisplayMode string

const (
	DisplayModeBasic        CompositeDisplayMode = "basic"
	DisplayModeGroupedLinks CompositeDisplayMode = "grouped_links"
	DisplayModeMulticolumn  CompositeDisplayMode = "multicolumn"
	DisplayModeChapters     CompositeDisplayMode = "chapters"
)

// CompositeData is the payload of a composite object: positioned references
// to other objects. References are plain IDs and imply no ownership.
type CompositeData struct {
	Subobjects       map[ObjectID]SubobjectEntry `json:"subobjects"`
	DisplayMode      CompositeDisplayMode        `json:"display_mode"`
	NumerateChapters bool                        `json:"numerate_chapters"`
}

func (CompositeData) Type() ObjectType { return ObjectTypeComposite }

// SubobjectIDs returns the referenced IDs in no particular order.
func (c CompositeData) SubobjectIDs() []ObjectID {
	ids := make([]ObjectID, 0, len(c.Subobjects))
	for id := range c.Subobjects {
		ids = append(ids, id)
	}
	return ids
}

// Tag is a persisted tag.
type Tag struct {
	TagID          int    `json:"tag_id"`
	TagName        string `json:"tag_name"`
	TagDescription string `json:"tag_description"`
	IsPublished    bool   `json:"is_published"`
	CreatedAt      string `json:"created_at"`
	ModifiedAt     string `json:"modified_at"`
}
