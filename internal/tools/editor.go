package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/composite"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/drafts"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/session"
)

// EditorTools holds references needed by edited object tool handlers.
type EditorTools struct {
	Session *session.Session
}

// --- Input types ---

type LoadObjectInput struct {
	ObjectID int  `json:"object_id" jsonschema:"ID of a persisted object (positive)"`
	Reset    bool `json:"reset,omitempty" jsonschema:"Discard unsaved changes of the object before loading"`
}

type NewObjectInput struct {
	Reset bool `json:"reset,omitempty" jsonschema:"Start over with an empty new object"`
}

type ObjectIDInput struct {
	ObjectID int `json:"object_id" jsonschema:"Object ID; 0 is the new object, negative IDs are new subobjects"`
}

type ListEditedObjectsInput struct {
	Query string `json:"query,omitempty" jsonschema:"Only return edited objects whose name or description match every word"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of search results (default 50)"`
}

type ResetEditedObjectsInput struct {
	ObjectIDs []int `json:"object_ids" jsonschema:"IDs of the edited objects to reset"`
}

type UpdateAttributesInput struct {
	ObjectID int          `json:"object_id" jsonschema:"ID of the edited object"`
	Changes  drafts.Patch `json:"changes" jsonschema:"Fields to change; omitted fields are kept"`
}

type UpdateTagsInput struct {
	ObjectID      int      `json:"object_id" jsonschema:"ID of the edited object"`
	AddedTagIDs   []int    `json:"added_tag_ids,omitempty" jsonschema:"IDs of existing tags to add"`
	AddedTagNames []string `json:"added_tag_names,omitempty" jsonschema:"Names of tags to add; unknown names create tags on save"`
	RemovedTagIDs []int    `json:"removed_tag_ids,omitempty" jsonschema:"IDs of tags to remove"`
}

type UpdateToDoListInput struct {
	ObjectID       int     `json:"object_id" jsonschema:"ID of the edited to-do list"`
	Command        string  `json:"command" jsonschema:"One of add_item, update_item, delete_item, move_item, set_sort_type"`
	ItemNumber     *int    `json:"item_number,omitempty" jsonschema:"Item to change; add_item picks a free number when omitted"`
	Position       *int    `json:"position,omitempty" jsonschema:"Position in the display order for add_item and move_item; omitted appends"`
	ItemState      *string `json:"item_state,omitempty" jsonschema:"active, optional, completed or cancelled"`
	ItemText       *string `json:"item_text,omitempty"`
	Commentary     *string `json:"commentary,omitempty"`
	Indent         *int    `json:"indent,omitempty" jsonschema:"Indent level from 0 to 5"`
	IsExpanded     *bool   `json:"is_expanded,omitempty"`
	DeleteChildren bool    `json:"delete_children,omitempty" jsonschema:"delete_item also removes the items indented below"`
	SortType       string  `json:"sort_type,omitempty" jsonschema:"default or state, for set_sort_type"`
}

type UpdateCompositeInput struct {
	ObjectID    int    `json:"object_id" jsonschema:"ID of the edited composite object"`
	Command     string `json:"command" jsonschema:"One of add_new_subobject, add_existing_subobject, update_subobject, update_positions_on_drop, toggle_subobjects_is_published"`
	SubobjectID int    `json:"subobject_id,omitempty" jsonschema:"Subobject the command applies to"`

	Row               int  `json:"row,omitempty" jsonschema:"Row for add commands"`
	Column            int  `json:"column,omitempty" jsonschema:"Column for add commands"`
	ResetEditedObject bool `json:"reset_edited_object,omitempty" jsonschema:"add_existing_subobject discards unsaved changes of the subobject"`

	SelectedTab                    *int    `json:"selected_tab,omitempty"`
	IsExpanded                     *bool   `json:"is_expanded,omitempty"`
	ShowDescriptionComposite       *string `json:"show_description_composite,omitempty" jsonschema:"yes, no or inherit"`
	ShowDescriptionAsLinkComposite *string `json:"show_description_as_link_composite,omitempty" jsonschema:"yes, no or inherit"`
	DeleteMode                     *string `json:"delete_mode,omitempty" jsonschema:"none, subobjectOnly or full"`

	DropTargetSubobjectID int  `json:"drop_target_subobject_id,omitempty" jsonschema:"Subobject to drop before; omit to use new_row"`
	NewColumn             int  `json:"new_column,omitempty"`
	NewRow                int  `json:"new_row,omitempty"`
	IsDroppedToTheLeft    bool `json:"is_dropped_to_the_left,omitempty"`
	IsDroppedToTheRight   bool `json:"is_dropped_to_the_right,omitempty"`
}

type ClearUnchangedInput struct {
	ObjectID          int   `json:"object_id" jsonschema:"Root of the edited object graph to clean up"`
	ExcludedObjectIDs []int `json:"excluded_object_ids,omitempty" jsonschema:"Edited objects to keep even when unchanged"`
}

type DeleteObjectsInput struct {
	ObjectIDs        []int `json:"object_ids" jsonschema:"IDs of persisted objects to delete"`
	DeleteSubobjects bool  `json:"delete_subobjects,omitempty" jsonschema:"Also delete the subobjects of deleted composite objects"`
}

// --- Handlers ---

func (t *EditorTools) LoadObject(ctx context.Context, _ *mcp.CallToolRequest, input LoadObjectInput) (*mcp.CallToolResult, any, error) {
	if input.ObjectID <= 0 {
		return toolError("object_id must be a persisted object ID"), nil, nil
	}
	obj, err := t.Session.LoadObject(ctx, models.PersistedID(input.ObjectID), input.Reset)
	if err != nil {
		return toolFailure("Failed to load object", err), nil, nil
	}
	return toolJSON(obj)
}

func (t *EditorTools) NewObject(_ context.Context, _ *mcp.CallToolRequest, input NewObjectInput) (*mcp.CallToolResult, any, error) {
	obj, err := t.Session.NewObject(input.Reset)
	if err != nil {
		return toolFailure("Failed to start a new object", err), nil, nil
	}
	return toolJSON(obj)
}

func (t *EditorTools) GetEditedObject(_ context.Context, _ *mcp.CallToolRequest, input ObjectIDInput) (*mcp.CallToolResult, any, error) {
	obj, err := t.Session.EditedObject(models.FromWire(input.ObjectID))
	if err != nil {
		return toolFailure("Failed to get edited object", err), nil, nil
	}
	return toolJSON(obj)
}

func (t *EditorTools) ListEditedObjects(_ context.Context, _ *mcp.CallToolRequest, input ListEditedObjectsInput) (*mcp.CallToolResult, any, error) {
	if input.Query == "" {
		return toolJSON(t.Session.ListEditedObjects())
	}
	hits, err := t.Session.SearchEditedObjects(input.Query, input.Limit)
	if err != nil {
		return toolFailure("Search failed", err), nil, nil
	}
	if hits == nil {
		return toolText("No edited objects match the query."), nil, nil
	}
	return toolJSON(hits)
}

func (t *EditorTools) ResetEditedObjects(ctx context.Context, _ *mcp.CallToolRequest, input ResetEditedObjectsInput) (*mcp.CallToolResult, any, error) {
	if len(input.ObjectIDs) == 0 {
		return toolError("object_ids is required"), nil, nil
	}
	if err := t.Session.Reset(ctx, objectIDs(input.ObjectIDs)...); err != nil {
		return toolFailure("Failed to reset edited objects", err), nil, nil
	}
	return toolText(fmt.Sprintf("Reset %d edited objects.", len(input.ObjectIDs))), nil, nil
}

func (t *EditorTools) UpdateAttributes(_ context.Context, _ *mcp.CallToolRequest, input UpdateAttributesInput) (*mcp.CallToolResult, any, error) {
	obj, err := t.Session.UpdateAttributes(models.FromWire(input.ObjectID), input.Changes)
	if err != nil {
		return toolFailure("Failed to update attributes", err), nil, nil
	}
	return toolJSON(obj)
}

func (t *EditorTools) UpdateTags(_ context.Context, _ *mcp.CallToolRequest, input UpdateTagsInput) (*mcp.CallToolResult, any, error) {
	u := drafts.TagUpdate{
		Added:   tagTokens(input.AddedTagIDs, input.AddedTagNames),
		Removed: input.RemovedTagIDs,
	}
	obj, err := t.Session.UpdateTags(models.FromWire(input.ObjectID), u)
	if err != nil {
		return toolFailure("Failed to update tags", err), nil, nil
	}
	return toolJSON(obj)
}

func (t *EditorTools) UpdateToDoList(_ context.Context, _ *mcp.CallToolRequest, input UpdateToDoListInput) (*mcp.CallToolResult, any, error) {
	id := models.FromWire(input.ObjectID)
	cmd, err := t.toDoListCommand(id, input)
	if err != nil {
		return toolError("%v", err), nil, nil
	}
	obj, err := t.Session.UpdateToDoList(id, cmd)
	if err != nil {
		return toolFailure("Failed to update to-do list", err), nil, nil
	}
	return toolJSON(obj)
}

func (t *EditorTools) toDoListCommand(id models.ObjectID, in UpdateToDoListInput) (drafts.ToDoListCommand, error) {
	position := -1
	if in.Position != nil {
		position = *in.Position
	}
	var state *models.ToDoListItemState
	if in.ItemState != nil {
		s := models.ToDoListItemState(*in.ItemState)
		state = &s
	}

	switch in.Command {
	case "add_item":
		n := 0
		if in.ItemNumber != nil {
			n = *in.ItemNumber
		} else {
			obj, err := t.Session.EditedObject(id)
			if err != nil {
				return nil, err
			}
			n = drafts.NextItemNumber(obj.ToDoList)
		}
		item := models.ToDoListItem{IsExpanded: true}
		if state != nil {
			item.ItemState = *state
		}
		if in.ItemText != nil {
			item.ItemText = *in.ItemText
		}
		if in.Commentary != nil {
			item.Commentary = *in.Commentary
		}
		if in.Indent != nil {
			item.Indent = *in.Indent
		}
		if in.IsExpanded != nil {
			item.IsExpanded = *in.IsExpanded
		}
		return drafts.AddItem{ItemNumber: n, Position: position, Item: item}, nil
	case "update_item", "delete_item", "move_item":
		if in.ItemNumber == nil {
			return nil, fmt.Errorf("item_number is required for %s", in.Command)
		}
		switch in.Command {
		case "update_item":
			return drafts.UpdateItem{
				ItemNumber: *in.ItemNumber,
				ItemState:  state,
				ItemText:   in.ItemText,
				Commentary: in.Commentary,
				Indent:     in.Indent,
				IsExpanded: in.IsExpanded,
			}, nil
		case "delete_item":
			return drafts.DeleteItem{ItemNumber: *in.ItemNumber, DeleteChildren: in.DeleteChildren}, nil
		default:
			return drafts.MoveItem{ItemNumber: *in.ItemNumber, Position: position}, nil
		}
	case "set_sort_type":
		return drafts.SetSortType{SortType: models.ToDoListSortType(in.SortType)}, nil
	default:
		return nil, fmt.Errorf("unknown to-do list command %q", in.Command)
	}
}

// CompositeResult is returned by update_composite.
type CompositeResult struct {
	SubobjectID *models.ObjectID     `json:"subobject_id,omitempty"`
	Object      *models.EditedObject `json:"object"`
}

func (t *EditorTools) UpdateComposite(ctx context.Context, _ *mcp.CallToolRequest, input UpdateCompositeInput) (*mcp.CallToolResult, any, error) {
	parentID := models.FromWire(input.ObjectID)
	cmd, err := compositeCommand(input)
	if err != nil {
		return toolError("%v", err), nil, nil
	}
	res, err := t.Session.UpdateComposite(ctx, parentID, cmd)
	if err != nil {
		return toolFailure("Failed to update composite object", err), nil, nil
	}
	obj, err := t.Session.EditedObject(parentID)
	if err != nil {
		return toolFailure("Failed to read composite object", err), nil, nil
	}

	out := CompositeResult{Object: obj}
	if !res.SubobjectID.IsZero() {
		out.SubobjectID = &res.SubobjectID
	}
	return toolJSON(out)
}

func compositeCommand(in UpdateCompositeInput) (composite.Command, error) {
	sub := models.FromWire(in.SubobjectID)
	switch in.Command {
	case "add_new_subobject":
		return composite.AddNewSubobject{Row: in.Row, Column: in.Column}, nil
	case "add_existing_subobject":
		if in.SubobjectID <= 0 {
			return nil, fmt.Errorf("subobject_id must be a persisted object ID")
		}
		return composite.AddExistingSubobject{SubobjectID: sub, Row: in.Row, Column: in.Column, ResetEditedObject: in.ResetEditedObject}, nil
	case "update_subobject":
		cmd := composite.UpdateSubobject{
			SubobjectID: sub,
			SelectedTab: in.SelectedTab,
			IsExpanded:  in.IsExpanded,
		}
		if in.ShowDescriptionComposite != nil {
			v := models.DescriptionDisplay(*in.ShowDescriptionComposite)
			cmd.ShowDescriptionComposite = &v
		}
		if in.ShowDescriptionAsLinkComposite != nil {
			v := models.DescriptionDisplay(*in.ShowDescriptionAsLinkComposite)
			cmd.ShowDescriptionAsLinkComposite = &v
		}
		if in.DeleteMode != nil {
			v := models.DeleteMode(*in.DeleteMode)
			if !v.Valid() {
				return nil, fmt.Errorf("unknown delete_mode %q", *in.DeleteMode)
			}
			cmd.DeleteMode = &v
		}
		return cmd, nil
	case "update_positions_on_drop":
		cmd := composite.UpdatePositionsOnDrop{
			SubobjectID:         sub,
			NewColumn:           in.NewColumn,
			NewRow:              in.NewRow,
			IsDroppedToTheLeft:  in.IsDroppedToTheLeft,
			IsDroppedToTheRight: in.IsDroppedToTheRight,
		}
		if in.DropTargetSubobjectID != 0 {
			cmd.DropTargetSubobjectID = models.FromWire(in.DropTargetSubobjectID)
		}
		return cmd, nil
	case "toggle_subobjects_is_published":
		return composite.ToggleSubobjectsIsPublished{}, nil
	default:
		return nil, fmt.Errorf("unknown composite command %q", in.Command)
	}
}

func (t *EditorTools) ClearUnchangedEditedObjects(_ context.Context, _ *mcp.CallToolRequest, input ClearUnchangedInput) (*mcp.CallToolResult, any, error) {
	removed, err := t.Session.Cancel(models.FromWire(input.ObjectID), objectIDs(input.ExcludedObjectIDs)...)
	if err != nil {
		return toolFailure("Failed to clear edited objects", err), nil, nil
	}
	return toolJSON(map[string][]models.ObjectID{"removed_object_ids": nonNil(removed)})
}

func (t *EditorTools) SaveObject(ctx context.Context, _ *mcp.CallToolRequest, input ObjectIDInput) (*mcp.CallToolResult, any, error) {
	res, err := t.Session.Save(ctx, models.FromWire(input.ObjectID))
	if err != nil {
		return toolFailure("Failed to save object", err), nil, nil
	}
	res.Deleted = nonNil(res.Deleted)
	return toolJSON(res)
}

func (t *EditorTools) DeleteObjects(ctx context.Context, _ *mcp.CallToolRequest, input DeleteObjectsInput) (*mcp.CallToolResult, any, error) {
	if len(input.ObjectIDs) == 0 {
		return toolError("object_ids is required"), nil, nil
	}
	removed, err := t.Session.DeleteObjects(ctx, objectIDs(input.ObjectIDs), input.DeleteSubobjects)
	if err != nil {
		return toolFailure("Failed to delete objects", err), nil, nil
	}
	return toolJSON(map[string][]models.ObjectID{"deleted_object_ids": removed})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
