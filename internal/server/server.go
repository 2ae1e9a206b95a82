package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/session"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/tools"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// New creates a fully configured MCP server with all tools registered.
func New(sess *session.Session) *mcp.Server {
	et := &tools.EditorTools{Session: sess}
	tt := &tools.TagTools{Session: sess}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "editor-mcp",
		Version: Version,
	}, nil)

	// Edited object tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "load_object",
		Description: "Load a persisted object and its subobjects into the editor, creating drafts for them (reset discards unsaved changes)",
	}, et.LoadObject)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "new_object",
		Description: "Open the draft of the new object (ID 0), creating it if needed",
	}, et.NewObject)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_edited_object",
		Description: "Get the current draft of an edited object",
	}, et.GetEditedObject)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_edited_objects",
		Description: "List edited objects with their modification state, or search them by name and description",
	}, et.ListEditedObjects)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "reset_edited_objects",
		Description: "Discard unsaved changes of edited objects, restoring their persisted state",
	}, et.ResetEditedObjects)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_attributes",
		Description: "Change attributes and type-specific data of an edited object",
	}, et.UpdateAttributes)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_tags",
		Description: "Add or remove tags of an edited object; changes are applied on save",
	}, et.UpdateTags)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_to_do_list",
		Description: "Add, change, delete or move items of an edited to-do list, or change its sort type",
	}, et.UpdateToDoList)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_composite",
		Description: "Add, change, mark for deletion or move subobjects of an edited composite object",
	}, et.UpdateComposite)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "clear_unchanged_edited_objects",
		Description: "Stop editing an object: discard its drafts and those of its subobjects that hold no unsaved changes",
	}, et.ClearUnchangedEditedObjects)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "save_object",
		Description: "Save an edited object with its new and modified subobjects to the backend",
	}, et.SaveObject)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_objects",
		Description: "Permanently delete persisted objects, optionally with their subobjects (irreversible)",
	}, et.DeleteObjects)

	// Tag tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_objects_tags",
		Description: "Add or remove tags on several persisted objects at once",
	}, tt.UpdateObjectsTags)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "view_tags",
		Description: "Get tags by ID",
	}, tt.ViewTags)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_tags",
		Description: "Search tags by name",
	}, tt.SearchTags)

	return srv
}
