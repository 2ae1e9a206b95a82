package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/backend"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/upsert"
)

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

// toolFailure reports err with a hint matching its kind.
func toolFailure(action string, err error) *mcp.CallToolResult {
	var verr *upsert.ValidationError
	switch {
	case errors.As(err, &verr):
		return toolError("%s: validation failed for object %d: %s: %s", action, verr.ObjectID.Wire(), verr.Field, verr.Message)
	case errors.Is(err, backend.ErrUnauthorized):
		return toolError("%s: not authorized, the access token was cleared: %v", action, err)
	default:
		return toolError("%s: %v", action, err)
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func objectIDs(ns []int) []models.ObjectID {
	ids := make([]models.ObjectID, 0, len(ns))
	for _, n := range ns {
		ids = append(ids, models.FromWire(n))
	}
	return ids
}

func tagTokens(ids []int, names []string) []models.TagToken {
	tokens := make([]models.TagToken, 0, len(ids)+len(names))
	for _, id := range ids {
		tokens = append(tokens, models.TagByID(id))
	}
	for _, name := range names {
		tokens = append(tokens, models.TagByName(name))
	}
	return tokens
}
