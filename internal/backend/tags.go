package backend

import (
	"context"
	"net/http"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// TagInput is the editable part of a tag.
type TagInput struct {
	TagID          int    `json:"tag_id,omitempty"`
	TagName        string `json:"tag_name"`
	TagDescription string `json:"tag_description"`
	IsPublished    bool   `json:"is_published"`
}

type tagEnvelope struct {
	Tag models.Tag `json:"tag"`
}

// AddTag creates a tag.
func (c *Client) AddTag(ctx context.Context, tag TagInput) (*models.Tag, error) {
	var resp tagEnvelope
	if err := c.do(ctx, http.MethodPost, "/tags/add", map[string]TagInput{"tag": tag}, &resp); err != nil {
		return nil, err
	}
	return &resp.Tag, nil
}

// UpdateTag changes an existing tag.
func (c *Client) UpdateTag(ctx context.Context, tag TagInput) (*models.Tag, error) {
	var resp tagEnvelope
	if err := c.do(ctx, http.MethodPut, "/tags/update", map[string]TagInput{"tag": tag}, &resp); err != nil {
		return nil, err
	}
	return &resp.Tag, nil
}

// ViewTags fetches tags by ID.
func (c *Client) ViewTags(ctx context.Context, ids []int) ([]models.Tag, error) {
	var resp struct {
		Tags []models.Tag `json:"tags"`
	}
	if err := c.do(ctx, http.MethodPost, "/tags/view", map[string][]int{"tag_ids": ids}, &resp); err != nil {
		return nil, err
	}
	return resp.Tags, nil
}

// DeleteTags deletes tags. A 404 is not an error.
func (c *Client) DeleteTags(ctx context.Context, ids []int) error {
	err := c.do(ctx, http.MethodDelete, "/tags/delete", map[string][]int{"tag_ids": ids}, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

// SearchTags returns up to limit IDs of tags whose names match text,
// skipping the IDs in exclude. No match is an empty result.
func (c *Client) SearchTags(ctx context.Context, text string, limit int, exclude []int) ([]int, error) {
	type query struct {
		QueryText     string `json:"query_text"`
		MaximumValues int    `json:"maximum_values"`
		ExistingIDs   []int  `json:"existing_ids"`
	}
	req := map[string]query{"query": {QueryText: text, MaximumValues: limit, ExistingIDs: exclude}}

	var resp struct {
		TagIDs []int `json:"tag_ids"`
	}
	err := c.do(ctx, http.MethodPost, "/tags/search", req, &resp)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp.TagIDs, nil
}
