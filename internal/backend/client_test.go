package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/backend"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/backend/backendtest"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

func newClient(t *testing.T) (*backend.Client, *backendtest.Server) {
	t.Helper()
	srv := backendtest.NewServer()
	t.Cleanup(srv.Close)
	return backend.NewClient(srv.URL, 5*time.Second, zerolog.Nop()), srv
}

func TestViewObjects(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)

	linkID := srv.AddObject(models.Attributes{ObjectType: models.ObjectTypeLink, ObjectName: "link"},
		models.LinkData{Link: "https://example.com"}, 7)
	listID := srv.AddObject(models.Attributes{ObjectType: models.ObjectTypeToDoList, ObjectName: "list"},
		models.ToDoListData{
			SortType:  models.SortTypeDefault,
			Items:     map[int]models.ToDoListItem{3: {ItemText: "b"}, 1: {ItemText: "a"}},
			ItemOrder: []int{3, 1},
		})
	compositeID := srv.AddObject(models.Attributes{ObjectType: models.ObjectTypeComposite, ObjectName: "composite"},
		models.CompositeData{Subobjects: map[models.ObjectID]models.SubobjectEntry{linkID: models.NewSubobjectEntry(0, 0)}})

	resp, err := c.ViewObjects(ctx, []models.ObjectID{linkID, compositeID}, []models.ObjectID{linkID, listID, compositeID})
	require.NoError(t, err)
	require.Len(t, resp.Objects, 2)
	assert.Equal(t, "link", resp.Objects[0].ObjectName)
	assert.Equal(t, []int{7}, resp.Objects[0].CurrentTagIDs)

	require.Len(t, resp.ObjectData, 3)
	assert.Equal(t, models.LinkData{Link: "https://example.com"}, resp.ObjectData[0].Data)

	list, ok := resp.ObjectData[1].Data.(models.ToDoListData)
	require.True(t, ok)
	assert.Equal(t, []int{3, 1}, list.ItemOrder)
	assert.Equal(t, "b", list.Items[3].ItemText)

	comp, ok := resp.ObjectData[2].Data.(models.CompositeData)
	require.True(t, ok)
	assert.Contains(t, comp.Subobjects, linkID)
	assert.Equal(t, models.DeleteModeNone, comp.Subobjects[linkID].DeleteMode)

	_, err = c.ViewObjects(ctx, []models.ObjectID{models.PersistedID(404)}, nil)
	assert.True(t, backend.IsNotFound(err))
}

func TestAPIErrors(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)

	srv.FailNext("/tags/view", http.StatusInternalServerError, "database is down")
	_, err := c.ViewTags(ctx, []int{1})
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "database is down", apiErr.Message)
	assert.NotErrorIs(t, err, backend.ErrUnauthorized)

	srv.RequireToken("secret")
	_, err = c.ViewTags(ctx, []int{1})
	assert.ErrorIs(t, err, backend.ErrUnauthorized)

	c.SetAccessToken("secret")
	srv.AddTag(models.Tag{TagID: 1, TagName: "go"})
	tags, err := c.ViewTags(ctx, []int{1})
	require.NoError(t, err)
	assert.Equal(t, "go", tags[0].TagName)
}

func TestExpiredTokenIsRejectedLocally(t *testing.T) {
	c, srv := newClient(t)
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("key"))
	require.NoError(t, err)
	c.SetAccessToken(token)

	_, err = c.ViewTags(context.Background(), []int{1})
	assert.ErrorIs(t, err, backend.ErrUnauthorized)
	assert.Empty(t, srv.Requests("/tags/view"))
}

func TestDeleteObjectsTreatsNotFoundAsSuccess(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)
	id := srv.AddObject(models.Attributes{ObjectType: models.ObjectTypeMarkdown, ObjectName: "md"}, models.MarkdownData{RawText: "x"})

	require.NoError(t, c.DeleteObjects(ctx, []models.ObjectID{id}, false))
	_, _, ok := srv.Object(id)
	assert.False(t, ok)

	assert.NoError(t, c.DeleteObjects(ctx, []models.ObjectID{id}, false))
}

func TestUpdateObjectsTags(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)
	srv.AddTag(models.Tag{TagID: 1, TagName: "go"})
	a := srv.AddObject(models.Attributes{ObjectType: models.ObjectTypeLink, ObjectName: "a"}, models.LinkData{}, 1)
	b := srv.AddObject(models.Attributes{ObjectType: models.ObjectTypeLink, ObjectName: "b"}, models.LinkData{})

	resp, err := c.UpdateObjectsTags(ctx, []models.ObjectID{a, b}, []models.TagToken{models.TagByName("New")}, []int{1})
	require.NoError(t, err)
	require.Len(t, resp.TagUpdates.AddedTagIDs, 1)
	assert.Equal(t, []int{1}, resp.TagUpdates.RemovedTagIDs)
	assert.NotEmpty(t, resp.ModifiedAt)
	assert.Equal(t, resp.TagUpdates.AddedTagIDs, srv.ObjectTags(a))
	assert.Equal(t, resp.TagUpdates.AddedTagIDs, srv.ObjectTags(b))
}

func TestTagsAndSettings(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t)

	tag, err := c.AddTag(ctx, backend.TagInput{TagName: "golang", TagDescription: "lang"})
	require.NoError(t, err)
	assert.NotZero(t, tag.TagID)

	ids, err := c.SearchTags(ctx, "GO", 10, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{tag.TagID}, ids)

	ids, err = c.SearchTags(ctx, "rust", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)

	updated, err := c.UpdateTag(ctx, backend.TagInput{TagID: tag.TagID, TagName: "go"})
	require.NoError(t, err)
	assert.Equal(t, "go", updated.TagName)

	require.NoError(t, c.DeleteTags(ctx, []int{tag.TagID}))
	require.NoError(t, c.DeleteTags(ctx, []int{tag.TagID}))

	require.NoError(t, c.UpdateSettings(ctx, backend.Settings{"non_admin_registration_allowed": true}))
	settings, err := c.ViewSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, settings["non_admin_registration_allowed"])
}

func TestRequestHeaders(t *testing.T) {
	var (
		mu  sync.Mutex
		got http.Header
	)
	header := func() http.Header {
		mu.Lock()
		defer mu.Unlock()
		return got
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = r.Header.Clone()
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"settings":{}}`))
	}))
	defer srv.Close()

	c := backend.NewClient(srv.URL+"/", time.Second, zerolog.Nop())
	c.SetAccessToken("opaque")
	_, err := c.ViewSettings(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, "Bearer opaque", header().Get("Authorization"))
	_, err = uuid.Parse(header().Get(backend.RequestIDHeader))
	assert.NoError(t, err)

	c.ClearAccessToken()
	_, err = c.ViewSettings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, header().Get("Authorization"))
}

func TestSubobjectPayloadFlattening(t *testing.T) {
	plainRef := backend.NewSubobjectPayload(models.PersistedID(2), models.NewSubobjectEntry(1, 0))
	embedded := backend.NewSubobjectPayload(models.NewID(1), models.NewSubobjectEntry(0, 0))
	embedded.Object = &backend.ObjectPayload{
		Attributes: models.Attributes{ObjectID: models.NewID(1), ObjectType: models.ObjectTypeMarkdown, ObjectName: "md"},
		Data:       models.MarkdownData{RawText: "text"},
	}

	raw, err := json.Marshal(backend.CompositePayload{Subobjects: []backend.SubobjectPayload{plainRef, embedded}})
	require.NoError(t, err)

	var fields struct {
		Subobjects []map[string]any `json:"subobjects"`
	}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields.Subobjects[0], "object_type")
	assert.Equal(t, float64(-1), fields.Subobjects[1]["object_id"])
	assert.Equal(t, "markdown", fields.Subobjects[1]["object_type"])
	assert.Equal(t, float64(0), fields.Subobjects[1]["row"])

	var decoded backend.CompositePayload
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Nil(t, decoded.Subobjects[0].Object)
	require.NotNil(t, decoded.Subobjects[1].Object)
	assert.Equal(t, models.NewID(1), decoded.Subobjects[1].ObjectID)
	assert.Equal(t, models.MarkdownData{RawText: "text"}, decoded.Subobjects[1].Object.Data)
}

func TestAPIErrorUnwrap(t *testing.T) {
	err := error(&backend.APIError{StatusCode: http.StatusForbidden})
	assert.True(t, errors.Is(err, backend.ErrUnauthorized))
	assert.Equal(t, "backend: status 403", err.Error())
}
