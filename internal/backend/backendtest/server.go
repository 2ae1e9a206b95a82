// Package backendtest provides an in-memory backend speaking the same REST
// API as the real one, for tests.
package backendtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/backend"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

type failure struct {
	status  int
	message string
}

// Server is a fake backend. Its zero value is not usable; call NewServer.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	token        string
	objects      map[int]models.Attributes
	data         map[int]models.ObjectData
	objectTags   map[int][]int
	tags         map[int]models.Tag
	settings     backend.Settings
	nextObjectID int
	nextTagID    int
	failures     map[string]failure
	requests     map[string][][]byte
}

// NewServer starts a fake backend. Close it when done.
func NewServer() *Server {
	s := &Server{
		objects:      make(map[int]models.Attributes),
		data:         make(map[int]models.ObjectData),
		objectTags:   make(map[int][]int),
		tags:         make(map[int]models.Tag),
		settings:     backend.Settings{},
		nextObjectID: 1000,
		nextTagID:    100,
		failures:     make(map[string]failure),
		requests:     make(map[string][][]byte),
	}

	r := mux.NewRouter()
	r.Use(s.middleware)
	r.HandleFunc("/objects/view", s.handleViewObjects).Methods(http.MethodPost)
	r.HandleFunc("/objects/add", s.handleUpsertObject).Methods(http.MethodPost)
	r.HandleFunc("/objects/update", s.handleUpsertObject).Methods(http.MethodPut)
	r.HandleFunc("/objects/delete", s.handleDeleteObjects).Methods(http.MethodDelete)
	r.HandleFunc("/objects/update_tags", s.handleUpdateObjectsTags).Methods(http.MethodPut)
	r.HandleFunc("/tags/add", s.handleUpsertTag).Methods(http.MethodPost)
	r.HandleFunc("/tags/update", s.handleUpsertTag).Methods(http.MethodPut)
	r.HandleFunc("/tags/view", s.handleViewTags).Methods(http.MethodPost)
	r.HandleFunc("/tags/delete", s.handleDeleteTags).Methods(http.MethodDelete)
	r.HandleFunc("/tags/search", s.handleSearchTags).Methods(http.MethodPost)
	r.HandleFunc("/settings/view", s.handleViewSettings).Methods(http.MethodPost)
	r.HandleFunc("/settings/update", s.handleUpdateSettings).Methods(http.MethodPut)

	s.Server = httptest.NewServer(r)
	return s
}

// RequireToken makes every request without "Bearer token" fail with 401.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// FailNext makes the next request to path fail with status and message.
func (s *Server) FailNext(path string, status int, message string) {
	s.mu.Lock()
	s.failures[path] = failure{status: status, message: message}
	s.mu.Unlock()
}

// Requests returns the bodies received on path, oldest first.
func (s *Server) Requests(path string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests[path])
}

// AddObject seeds a persisted object and returns it with its assigned ID
// when attrs.ObjectID is zero.
func (s *Server) AddObject(attrs models.Attributes, data models.ObjectData, tagIDs ...int) models.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attrs.ObjectID.IsZero() {
		s.nextObjectID++
		attrs.ObjectID = models.PersistedID(s.nextObjectID)
	}
	id := attrs.ObjectID.Wire()
	s.objects[id] = attrs
	s.data[id] = backend.DecodeData(data)
	s.objectTags[id] = slices.Clone(tagIDs)
	return attrs.ObjectID
}

// AddTag seeds a tag.
func (s *Server) AddTag(tag models.Tag) {
	s.mu.Lock()
	s.tags[tag.TagID] = tag
	s.mu.Unlock()
}

// Object returns a persisted object.
func (s *Server) Object(id models.ObjectID) (models.Attributes, models.ObjectData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs, ok := s.objects[id.Wire()]
	return attrs, s.data[id.Wire()], ok
}

// ObjectTags returns the tags of a persisted object.
func (s *Server) ObjectTags(id models.ObjectID) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.objectTags[id.Wire()])
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests[r.URL.Path] = append(s.requests[r.URL.Path], body)
		f, failing := s.failures[r.URL.Path]
		delete(s.failures, r.URL.Path)
		token := s.token
		s.mu.Unlock()

		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			respondError(w, http.StatusUnauthorized, "Invalid token.")
			return
		}
		if failing {
			respondError(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"_error": message})
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *Server) handleViewObjects(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ObjectIDs     []models.ObjectID `json:"object_ids"`
		ObjectDataIDs []models.ObjectID `json:"object_data_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	resp := backend.ViewObjectsResponse{Objects: []backend.ObjectRecord{}, ObjectData: []backend.DataRecord{}}
	for _, id := range req.ObjectIDs {
		if attrs, ok := s.objects[id.Wire()]; ok {
			resp.Objects = append(resp.Objects, backend.ObjectRecord{Attributes: attrs, CurrentTagIDs: slices.Clone(s.objectTags[id.Wire()])})
		}
	}
	for _, id := range req.ObjectDataIDs {
		if data, ok := s.data[id.Wire()]; ok {
			resp.ObjectData = append(resp.ObjectData, backend.DataRecord{ObjectID: id, ObjectType: data.Type(), Data: backend.EncodeData(data)})
		}
	}
	if len(resp.Objects) == 0 && len(resp.ObjectData) == 0 {
		respondError(w, http.StatusNotFound, "Objects not found.")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// upsert is the state of one add/update request.
type upsert struct {
	s       *Server
	mapping map[int]int
	deleted []int
	err     string
}

func (s *Server) handleUpsertObject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Object backend.ObjectPayload `json:"object"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	root := req.Object
	isAdd := r.Method == http.MethodPost
	if isAdd != root.ObjectID.IsNew() {
		respondError(w, http.StatusBadRequest, "Invalid object_id for this route.")
		return
	}
	if !isAdd {
		if _, ok := s.objects[root.ObjectID.Wire()]; !ok {
			respondError(w, http.StatusNotFound, "Object not found.")
			return
		}
	}

	// Validate the whole tree before touching state.
	u := &upsert{s: s, mapping: make(map[int]int)}
	if msg := validate(root); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	if c, ok := root.Data.(backend.CompositePayload); ok {
		u.deleted = c.DeletedObjectIDs
	}
	saved := u.save(root)

	for _, id := range u.deleted {
		s.deleteObject(id)
	}
	if c, ok := saved.Data.(backend.CompositePayload); ok {
		c.IDMapping = make(map[string]int, len(u.mapping))
		for from, to := range u.mapping {
			c.IDMapping[strconv.Itoa(from)] = to
		}
		c.DeletedObjectIDs = u.deleted
		saved.Data = c
	}
	respondJSON(w, http.StatusOK, map[string]backend.ObjectPayload{"object": saved})
}

func validate(obj backend.ObjectPayload) string {
	if strings.TrimSpace(obj.ObjectName) == "" {
		return "object_name is required."
	}
	if !obj.ObjectType.Valid() || obj.Data == nil || obj.Data.Type() != obj.ObjectType {
		return "Invalid object_data for object " + obj.ObjectID.String() + "."
	}
	if c, ok := obj.Data.(backend.CompositePayload); ok {
		for _, sub := range c.Subobjects {
			if sub.Object == nil {
				continue
			}
			if msg := validate(*sub.Object); msg != "" {
				return msg
			}
		}
	}
	return ""
}

func (u *upsert) finalID(id models.ObjectID) int {
	if !id.IsNew() {
		return id.Wire()
	}
	if to, ok := u.mapping[id.Wire()]; ok {
		return to
	}
	u.s.nextObjectID++
	u.mapping[id.Wire()] = u.s.nextObjectID
	return u.s.nextObjectID
}

func (u *upsert) save(obj backend.ObjectPayload) backend.ObjectPayload {
	s := u.s
	id := u.finalID(obj.ObjectID)
	ts := now()

	attrs := obj.Attributes
	attrs.ObjectID = models.PersistedID(id)
	attrs.ModifiedAt = ts
	if prev, ok := s.objects[id]; ok {
		attrs.CreatedAt = prev.CreatedAt
	} else {
		attrs.CreatedAt = ts
	}
	s.objects[id] = attrs

	data := obj.Data
	if c, ok := data.(backend.CompositePayload); ok {
		subs := make([]backend.SubobjectPayload, 0, len(c.Subobjects))
		for _, sub := range c.Subobjects {
			if sub.Object != nil {
				saved := u.save(*sub.Object)
				sub.Object = &saved
			}
			sub.ObjectID = models.PersistedID(u.finalID(sub.ObjectID))
			subs = append(subs, sub)
		}
		c.Subobjects = subs
		c.IDMapping, c.DeletedObjectIDs = nil, nil
		data = c
	}
	s.data[id] = backend.DecodeData(data)

	updates := s.applyTags(id, obj.AddedTags, obj.RemovedTagIDs)
	return backend.ObjectPayload{
		Attributes:    attrs,
		CurrentTagIDs: slices.Clone(s.objectTags[id]),
		TagUpdates:    &updates,
		Data:          data,
	}
}

func (s *Server) tagIDFor(tok models.TagToken) int {
	if !tok.IsName() {
		return tok.ID
	}
	for _, t := range s.tags {
		if strings.EqualFold(t.TagName, tok.Name) {
			return t.TagID
		}
	}
	s.nextTagID++
	ts := now()
	s.tags[s.nextTagID] = models.Tag{TagID: s.nextTagID, TagName: tok.Name, CreatedAt: ts, ModifiedAt: ts}
	return s.nextTagID
}

func (s *Server) applyTags(id int, added []models.TagToken, removed []int) backend.TagUpdates {
	updates := backend.TagUpdates{AddedTagIDs: []int{}, RemovedTagIDs: []int{}}
	current := s.objectTags[id]
	for _, tok := range added {
		tagID := s.tagIDFor(tok)
		if !slices.Contains(current, tagID) {
			current = append(current, tagID)
			updates.AddedTagIDs = append(updates.AddedTagIDs, tagID)
		}
	}
	for _, tagID := range removed {
		if i := slices.Index(current, tagID); i >= 0 {
			current = slices.Delete(current, i, i+1)
			updates.RemovedTagIDs = append(updates.RemovedTagIDs, tagID)
		}
	}
	s.objectTags[id] = current
	return updates
}

// deleteObject removes an object and its references from composites.
func (s *Server) deleteObject(id int) bool {
	if _, ok := s.objects[id]; !ok {
		return false
	}
	delete(s.objects, id)
	delete(s.data, id)
	delete(s.objectTags, id)
	for parentID, d := range s.data {
		if c, ok := d.(models.CompositeData); ok {
			if _, refs := c.Subobjects[models.PersistedID(id)]; refs {
				delete(c.Subobjects, models.PersistedID(id))
				s.data[parentID] = c
			}
		}
	}
	return true
}

func (s *Server) handleDeleteObjects(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ObjectIDs        []models.ObjectID `json:"object_ids"`
		DeleteSubobjects bool              `json:"delete_subobjects"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int
	for _, id := range req.ObjectIDs {
		if req.DeleteSubobjects {
			if c, ok := s.data[id.Wire()].(models.CompositeData); ok {
				for subID := range c.Subobjects {
					s.deleteObject(subID.Wire())
				}
			}
		}
		if s.deleteObject(id.Wire()) {
			deleted++
		}
	}
	if deleted == 0 {
		respondError(w, http.StatusNotFound, "Objects not found.")
		return
	}
	respondJSON(w, http.StatusOK, map[string][]models.ObjectID{"object_ids": req.ObjectIDs})
}

func (s *Server) handleUpdateObjectsTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ObjectIDs     []models.ObjectID `json:"object_ids"`
		AddedTags     []models.TagToken `json:"added_tags"`
		RemovedTagIDs []int             `json:"removed_tag_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	resp := backend.UpdateObjectsTagsResponse{
		TagUpdates: backend.TagUpdates{AddedTagIDs: []int{}, RemovedTagIDs: []int{}},
		ModifiedAt: now(),
	}
	for _, id := range req.ObjectIDs {
		if _, ok := s.objects[id.Wire()]; !ok {
			respondError(w, http.StatusBadRequest, "Object "+id.String()+" does not exist.")
			return
		}
	}
	for _, id := range req.ObjectIDs {
		u := s.applyTags(id.Wire(), req.AddedTags, req.RemovedTagIDs)
		for _, t := range u.AddedTagIDs {
			if !slices.Contains(resp.TagUpdates.AddedTagIDs, t) {
				resp.TagUpdates.AddedTagIDs = append(resp.TagUpdates.AddedTagIDs, t)
			}
		}
		for _, t := range u.RemovedTagIDs {
			if !slices.Contains(resp.TagUpdates.RemovedTagIDs, t) {
				resp.TagUpdates.RemovedTagIDs = append(resp.TagUpdates.RemovedTagIDs, t)
			}
		}
		attrs := s.objects[id.Wire()]
		attrs.ModifiedAt = resp.ModifiedAt
		s.objects[id.Wire()] = attrs
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpsertTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tag backend.TagInput `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Tag.TagName) == "" {
		respondError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ts := now()
	tag := models.Tag{
		TagID:          req.Tag.TagID,
		TagName:        req.Tag.TagName,
		TagDescription: req.Tag.TagDescription,
		IsPublished:    req.Tag.IsPublished,
		CreatedAt:      ts,
		ModifiedAt:     ts,
	}
	if r.Method == http.MethodPost {
		s.nextTagID++
		tag.TagID = s.nextTagID
	} else {
		prev, ok := s.tags[tag.TagID]
		if !ok {
			respondError(w, http.StatusNotFound, "Tag not found.")
			return
		}
		tag.CreatedAt = prev.CreatedAt
	}
	s.tags[tag.TagID] = tag
	respondJSON(w, http.StatusOK, map[string]models.Tag{"tag": tag})
}

func (s *Server) handleViewTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TagIDs []int `json:"tag_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tags := []models.Tag{}
	for _, id := range req.TagIDs {
		if t, ok := s.tags[id]; ok {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		respondError(w, http.StatusNotFound, "Tags not found.")
		return
	}
	respondJSON(w, http.StatusOK, map[string][]models.Tag{"tags": tags})
}

func (s *Server) handleDeleteTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TagIDs []int `json:"tag_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int
	for _, id := range req.TagIDs {
		if _, ok := s.tags[id]; ok {
			delete(s.tags, id)
			deleted++
		}
	}
	for objectID, tagIDs := range s.objectTags {
		s.objectTags[objectID] = slices.DeleteFunc(tagIDs, func(t int) bool { return slices.Contains(req.TagIDs, t) })
	}
	if deleted == 0 {
		respondError(w, http.StatusNotFound, "Tags not found.")
		return
	}
	respondJSON(w, http.StatusOK, map[string][]int{"tag_ids": req.TagIDs})
}

func (s *Server) handleSearchTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query struct {
			QueryText     string `json:"query_text"`
			MaximumValues int    `json:"maximum_values"`
			ExistingIDs   []int  `json:"existing_ids"`
		} `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	text := strings.ToLower(req.Query.QueryText)
	var ids []int
	for id, t := range s.tags {
		if strings.Contains(strings.ToLower(t.TagName), text) && !slices.Contains(req.Query.ExistingIDs, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if req.Query.MaximumValues > 0 && len(ids) > req.Query.MaximumValues {
		ids = ids[:req.Query.MaximumValues]
	}
	if len(ids) == 0 {
		respondError(w, http.StatusNotFound, "No tags found.")
		return
	}
	respondJSON(w, http.StatusOK, map[string][]int{"tag_ids": ids})
}

func (s *Server) handleViewSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SettingNames []string `json:"setting_names"`
		ViewAll      bool     `json:"view_all"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	settings := backend.Settings{}
	for k, v := range s.settings {
		if req.ViewAll || slices.Contains(req.SettingNames, k) {
			settings[k] = v
		}
	}
	respondJSON(w, http.StatusOK, map[string]backend.Settings{"settings": settings})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Settings backend.Settings `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Settings) == 0 {
		respondError(w, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range req.Settings {
		s.settings[k] = v
	}
	w.WriteHeader(http.StatusOK)
}
