package backend

import (
	"context"
	"net/http"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// ViewObjectsResponse is the body returned by /objects/view.
type ViewObjectsResponse struct {
	Objects    []ObjectRecord `json:"objects"`
	ObjectData []DataRecord   `json:"object_data"`
}

// ViewObjects fetches attributes for objectIDs and data for dataIDs. The
// backend answers 404 when none of the requested objects exist.
func (c *Client) ViewObjects(ctx context.Context, objectIDs, dataIDs []models.ObjectID) (*ViewObjectsResponse, error) {
	req := struct {
		ObjectIDs     []models.ObjectID `json:"object_ids,omitempty"`
		ObjectDataIDs []models.ObjectID `json:"object_data_ids,omitempty"`
	}{objectIDs, dataIDs}

	var resp ViewObjectsResponse
	if err := c.do(ctx, http.MethodPost, "/objects/view", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type objectEnvelope struct {
	Object ObjectPayload `json:"object"`
}

// AddObject saves a new object.
func (c *Client) AddObject(ctx context.Context, obj ObjectPayload) (*ObjectPayload, error) {
	var resp objectEnvelope
	if err := c.do(ctx, http.MethodPost, "/objects/add", objectEnvelope{obj}, &resp); err != nil {
		return nil, err
	}
	return &resp.Object, nil
}

// UpdateObject saves changes of a persisted object.
func (c *Client) UpdateObject(ctx context.Context, obj ObjectPayload) (*ObjectPayload, error) {
	var resp objectEnvelope
	if err := c.do(ctx, http.MethodPut, "/objects/update", objectEnvelope{obj}, &resp); err != nil {
		return nil, err
	}
	return &resp.Object, nil
}

// DeleteObjects deletes objects, and their subobjects when deleteSubobjects
// is set. A 404 means the objects are already gone and is not an error.
func (c *Client) DeleteObjects(ctx context.Context, ids []models.ObjectID, deleteSubobjects bool) error {
	req := struct {
		ObjectIDs        []models.ObjectID `json:"object_ids"`
		DeleteSubobjects bool              `json:"delete_subobjects"`
	}{ids, deleteSubobjects}

	err := c.do(ctx, http.MethodDelete, "/objects/delete", req, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

// UpdateObjectsTagsResponse is the body returned by /objects/update_tags.
type UpdateObjectsTagsResponse struct {
	TagUpdates TagUpdates `json:"tag_updates"`
	ModifiedAt string     `json:"modified_at"`
}

// UpdateObjectsTags adds and removes tags of several objects at once.
func (c *Client) UpdateObjectsTags(ctx context.Context, ids []models.ObjectID, added []models.TagToken, removed []int) (*UpdateObjectsTagsResponse, error) {
	req := struct {
		ObjectIDs     []models.ObjectID `json:"object_ids"`
		AddedTags     []models.TagToken `json:"added_tags"`
		RemovedTagIDs []int             `json:"removed_tag_ids"`
	}{ids, added, removed}

	var resp UpdateObjectsTagsResponse
	if err := c.do(ctx, http.MethodPut, "/objects/update_tags", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
