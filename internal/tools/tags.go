package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/drafts"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/session"
)

// TagTools holds references needed by tag tool handlers.
type TagTools struct {
	Session *session.Session
}

type UpdateObjectsTagsInput struct {
	ObjectIDs     []int    `json:"object_ids" jsonschema:"IDs of persisted objects to tag"`
	AddedTagIDs   []int    `json:"added_tag_ids,omitempty" jsonschema:"IDs of tags to add; a tag every object already has is removed instead"`
	AddedTagNames []string `json:"added_tag_names,omitempty" jsonschema:"Names of tags to add; unknown names create tags"`
	RemovedTagIDs []int    `json:"removed_tag_ids,omitempty" jsonschema:"IDs of tags to remove"`
}

type ViewTagsInput struct {
	TagIDs []int `json:"tag_ids" jsonschema:"IDs of tags to view"`
}

type SearchTagsInput struct {
	Query string `json:"query" jsonschema:"Text to match against tag names"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 10)"`
}

func (t *TagTools) UpdateObjectsTags(ctx context.Context, _ *mcp.CallToolRequest, input UpdateObjectsTagsInput) (*mcp.CallToolResult, any, error) {
	if len(input.ObjectIDs) == 0 {
		return toolError("object_ids is required"), nil, nil
	}
	u := drafts.TagUpdate{
		Added:   tagTokens(input.AddedTagIDs, input.AddedTagNames),
		Removed: input.RemovedTagIDs,
	}
	res, err := t.Session.UpdateObjectsTags(ctx, objectIDs(input.ObjectIDs), u)
	if err != nil {
		return toolFailure("Failed to update tags", err), nil, nil
	}
	return toolJSON(res)
}

func (t *TagTools) ViewTags(ctx context.Context, _ *mcp.CallToolRequest, input ViewTagsInput) (*mcp.CallToolResult, any, error) {
	if len(input.TagIDs) == 0 {
		return toolError("tag_ids is required"), nil, nil
	}
	tags, err := t.Session.ViewTags(ctx, input.TagIDs)
	if err != nil {
		return toolFailure("Failed to view tags", err), nil, nil
	}
	return toolJSON(tags)
}

func (t *TagTools) SearchTags(ctx context.Context, _ *mcp.CallToolRequest, input SearchTagsInput) (*mcp.CallToolResult, any, error) {
	if input.Query == "" {
		return toolError("query is required"), nil, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}
	tags, err := t.Session.SearchTags(ctx, input.Query, limit)
	if err != nil {
		return toolFailure("Failed to search tags", err), nil, nil
	}
	if len(tags) == 0 {
		return toolText("No tags found."), nil, nil
	}
	return toolJSON(tags)
}
