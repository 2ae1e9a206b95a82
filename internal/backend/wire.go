package backend

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// ObjectRecord is an object's attributes as returned by /objects/view.
type ObjectRecord struct {
	models.Attributes
	CurrentTagIDs []int `json:"current_tag_ids"`
}

// DataRecord is an object's payload as returned by /objects/view. Data is
// decoded into the entity store representation.
type DataRecord struct {
	ObjectID   models.ObjectID   `json:"object_id"`
	ObjectType models.ObjectType `json:"object_type"`
	Data       models.ObjectData `json:"object_data"`
}

func (r *DataRecord) UnmarshalJSON(b []byte) error {
	var aux struct {
		ObjectID   models.ObjectID   `json:"object_id"`
		ObjectType models.ObjectType `json:"object_type"`
		Data       json.RawMessage   `json:"object_data"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	data, err := decodeData(aux.ObjectType, aux.Data)
	if err != nil {
		return fmt.Errorf("object %s: %w", aux.ObjectID, err)
	}
	*r = DataRecord{ObjectID: aux.ObjectID, ObjectType: aux.ObjectType, Data: DecodeData(data)}
	return nil
}

// TagUpdates lists the tags a save actually added and removed.
type TagUpdates struct {
	AddedTagIDs   []int `json:"added_tag_ids"`
	RemovedTagIDs []int `json:"removed_tag_ids"`
}

// ObjectPayload is one object in an add/update request or response. Data
// holds LinkData, MarkdownData, ToDoListPayload or CompositePayload.
type ObjectPayload struct {
	models.Attributes
	AddedTags     []models.TagToken `json:"added_tags,omitempty"`
	RemovedTagIDs []int             `json:"removed_tag_ids,omitempty"`
	CurrentTagIDs []int             `json:"current_tag_ids,omitempty"`
	TagUpdates    *TagUpdates       `json:"tag_updates,omitempty"`
	Data          models.ObjectData `json:"object_data"`
}

func (p *ObjectPayload) UnmarshalJSON(b []byte) error {
	type plain ObjectPayload
	aux := struct {
		*plain
		Data json.RawMessage `json:"object_data"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	data, err := decodeData(p.ObjectType, aux.Data)
	if err != nil {
		return fmt.Errorf("object %s: %w", p.ObjectID, err)
	}
	p.Data = data
	return nil
}

// SubobjectPayload is one entry of a composite's subobject list. Object is
// set when the subobject itself is upserted; its fields are flattened into
// the entry on the wire.
type SubobjectPayload struct {
	ObjectID                       models.ObjectID           `json:"object_id"`
	Row                            int                       `json:"row"`
	Column                         int                       `json:"column"`
	SelectedTab                    int                       `json:"selected_tab"`
	IsExpanded                     bool                      `json:"is_expanded"`
	ShowDescriptionComposite       models.DescriptionDisplay `json:"show_description_composite"`
	ShowDescriptionAsLinkComposite models.DescriptionDisplay `json:"show_description_as_link_composite"`

	Object *ObjectPayload `json:"-"`
}

func (s SubobjectPayload) MarshalJSON() ([]byte, error) {
	type plain SubobjectPayload
	entry, err := json.Marshal(plain(s))
	if err != nil {
		return nil, err
	}
	if s.Object == nil {
		return entry, nil
	}

	fields := make(map[string]json.RawMessage)
	obj, err := json.Marshal(s.Object)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(obj, &fields); err != nil {
		return nil, err
	}
	var entryFields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &entryFields); err != nil {
		return nil, err
	}
	maps.Copy(fields, entryFields)
	return json.Marshal(fields)
}

func (s *SubobjectPayload) UnmarshalJSON(b []byte) error {
	type plain SubobjectPayload
	if err := json.Unmarshal(b, (*plain)(s)); err != nil {
		return err
	}
	var probe struct {
		ObjectType models.ObjectType `json:"object_type"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if probe.ObjectType == "" {
		s.Object = nil
		return nil
	}
	s.Object = new(ObjectPayload)
	return json.Unmarshal(b, s.Object)
}

// Entry returns the subobject entry stored by a composite.
func (s SubobjectPayload) Entry() models.SubobjectEntry {
	return models.SubobjectEntry{
		Row:                            s.Row,
		Column:                         s.Column,
		SelectedTab:                    s.SelectedTab,
		IsExpanded:                     s.IsExpanded,
		ShowDescriptionComposite:       s.ShowDescriptionComposite,
		ShowDescriptionAsLinkComposite: s.ShowDescriptionAsLinkComposite,
		DeleteMode:                     models.DeleteModeNone,
	}
}

// NewSubobjectPayload returns the wire form of a subobject entry.
func NewSubobjectPayload(id models.ObjectID, e models.SubobjectEntry) SubobjectPayload {
	return SubobjectPayload{
		ObjectID:                       id,
		Row:                            e.Row,
		Column:                         e.Column,
		SelectedTab:                    e.SelectedTab,
		IsExpanded:                     e.IsExpanded,
		ShowDescriptionComposite:       e.ShowDescriptionComposite,
		ShowDescriptionAsLinkComposite: e.ShowDescriptionAsLinkComposite,
	}
}

// CompositePayload is the wire form of composite data. IDMapping and
// DeletedObjectIDs are only set on the root object of a save.
type CompositePayload struct {
	Subobjects       []SubobjectPayload          `json:"subobjects"`
	DisplayMode      models.CompositeDisplayMode `json:"display_mode"`
	NumerateChapters bool                        `json:"numerate_chapters"`
	DeletedObjectIDs []int                       `json:"deleted_object_ids,omitempty"`
	IDMapping        map[string]int              `json:"id_mapping,omitempty"`
}

func (CompositePayload) Type() models.ObjectType { return models.ObjectTypeComposite }

// Data converts the payload into composite data keyed by subobject ID.
func (c CompositePayload) Data() models.CompositeData {
	subobjects := make(map[models.ObjectID]models.SubobjectEntry, len(c.Subobjects))
	for _, s := range c.Subobjects {
		subobjects[s.ObjectID] = s.Entry()
	}
	return models.CompositeData{
		Subobjects:       subobjects,
		DisplayMode:      c.DisplayMode,
		NumerateChapters: c.NumerateChapters,
	}
}

// ToDoListItemPayload is a to-do list item with its stable number.
type ToDoListItemPayload struct {
	ItemNumber int `json:"item_number"`
	models.ToDoListItem
}

// ToDoListPayload is the wire form of to-do list data: items in display order.
type ToDoListPayload struct {
	SortType models.ToDoListSortType `json:"sort_type"`
	Items    []ToDoListItemPayload   `json:"items"`
}

func (ToDoListPayload) Type() models.ObjectType { return models.ObjectTypeToDoList }

// Data converts the payload into to-do list data keyed by item number.
func (l ToDoListPayload) Data() models.ToDoListData {
	d := models.ToDoListData{
		SortType:  l.SortType,
		Items:     make(map[int]models.ToDoListItem, len(l.Items)),
		ItemOrder: make([]int, 0, len(l.Items)),
	}
	for _, it := range l.Items {
		d.Items[it.ItemNumber] = it.ToDoListItem
		d.ItemOrder = append(d.ItemOrder, it.ItemNumber)
	}
	return d
}

// EncodeData returns the wire form of data. Composite subobjects are encoded
// as plain references.
func EncodeData(data models.ObjectData) models.ObjectData {
	switch d := data.(type) {
	case models.ToDoListData:
		items := make([]ToDoListItemPayload, 0, len(d.ItemOrder))
		for _, n := range d.ItemOrder {
			if it, ok := d.Items[n]; ok {
				items = append(items, ToDoListItemPayload{ItemNumber: n, ToDoListItem: it})
			}
		}
		return ToDoListPayload{SortType: d.SortType, Items: items}
	case models.CompositeData:
		c := CompositePayload{
			Subobjects:       make([]SubobjectPayload, 0, len(d.Subobjects)),
			DisplayMode:      d.DisplayMode,
			NumerateChapters: d.NumerateChapters,
		}
		for _, id := range slices.SortedFunc(maps.Keys(d.Subobjects), models.CompareIDs) {
			c.Subobjects = append(c.Subobjects, NewSubobjectPayload(id, d.Subobjects[id]))
		}
		return c
	}
	return data
}

// DecodeData converts wire data into the representation kept in the entity
// store.
func DecodeData(data models.ObjectData) models.ObjectData {
	switch d := data.(type) {
	case ToDoListPayload:
		return d.Data()
	case CompositePayload:
		return d.Data()
	}
	return data
}

func decodeData(t models.ObjectType, raw json.RawMessage) (models.ObjectData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var (
		data models.ObjectData
		err  error
	)
	switch t {
	case models.ObjectTypeLink:
		var d models.LinkData
		err = json.Unmarshal(raw, &d)
		data = d
	case models.ObjectTypeMarkdown:
		var d models.MarkdownData
		err = json.Unmarshal(raw, &d)
		data = d
	case models.ObjectTypeToDoList:
		var d ToDoListPayload
		err = json.Unmarshal(raw, &d)
		data = d
	case models.ObjectTypeComposite:
		var d CompositePayload
		err = json.Unmarshal(raw, &d)
		data = d
	default:
		return nil, fmt.Errorf("unknown object type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s data: %w", t, err)
	}
	return data, nil
}
