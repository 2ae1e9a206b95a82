// Package session owns the editor state of one running server: the entity
// store, the drafts, their local persistence and the backend client. Every
// tool call goes through a Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/backend"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/changes"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/composite"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/drafts"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/entities"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/storage"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/upsert"
)

var (
	// ErrSaveInProgress rejects a save or an edit while a save is waiting
	// for the backend.
	ErrSaveInProgress = errors.New("a save is already in progress")
	// ErrNotFound is returned when the backend has no object with the
	// requested ID.
	ErrNotFound = errors.New("object not found")
)

// FetchErrorMessage is stored on subobject entries whose object could not
// be loaded.
const FetchErrorMessage = "Could not fetch object data."

// Options configures a Session.
type Options struct {
	Client *backend.Client
	// Drafts keeps drafts across restarts. Nil keeps them in memory only.
	Drafts          *storage.DraftStore
	PersistDebounce time.Duration
	Logger          zerolog.Logger
}

// Session is safe for concurrent use. Calls are serialized, except that a
// save releases the lock while it waits for the backend; edits made during
// that time are rejected with ErrSaveInProgress.
type Session struct {
	mu        sync.Mutex
	client    *backend.Client
	store     *entities.Store
	model     *drafts.Model
	drafts    *storage.DraftStore
	persister *storage.Persister
	log       zerolog.Logger
	saving    bool
}

// Open creates a session. Stored drafts are loaded before anything is
// fetched from the backend.
func Open(opts Options) (*Session, error) {
	if opts.Client == nil {
		return nil, errors.New("session: backend client is required")
	}
	store := entities.New()
	s := &Session{
		client: opts.Client,
		store:  store,
		model:  drafts.New(store),
		drafts: opts.Drafts,
		log:    opts.Logger.With().Str("component", "session").Logger(),
	}
	if opts.Drafts != nil {
		stored, err := opts.Drafts.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("load stored drafts: %w", err)
		}
		s.model.Restore(stored)
		s.persister = storage.NewPersister(opts.Drafts, opts.PersistDebounce, opts.Logger)
		s.model.AddObserver(s.persister)
		s.log.Info().Int("drafts", len(stored)).Msg("restored edited objects")
	}
	return s, nil
}

// Close writes pending drafts and closes local storage.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drafts == nil {
		return nil
	}
	err := errors.Join(s.persister.Close(), s.drafts.Close())
	s.drafts = nil
	return err
}

// lockIdle takes the lock for an edit. The caller must unlock.
func (s *Session) lockIdle() error {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	return nil
}

// backendError wraps err and drops the access token when the backend
// rejected it, so the next call does not reuse it.
func (s *Session) backendError(op string, err error) error {
	if errors.Is(err, backend.ErrUnauthorized) {
		s.client.ClearAccessToken()
		s.log.Warn().Err(err).Str("op", op).Msg("authentication failed, access token cleared")
	}
	return fmt.Errorf("%s: %w", op, err)
}

// fetchObjects loads attributes and data of ids into the entity store and
// returns the IDs the backend does not know.
func (s *Session) fetchObjects(ctx context.Context, ids []models.ObjectID) ([]models.ObjectID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	resp, err := s.client.ViewObjects(ctx, ids, ids)
	if backend.IsNotFound(err) {
		return slices.Clone(ids), nil
	}
	if err != nil {
		return nil, s.backendError("view objects", err)
	}

	found := make(map[models.ObjectID]bool, len(resp.ObjectData))
	for _, o := range resp.Objects {
		s.store.AddObjects(o.Attributes)
		s.store.SetCurrentTagIDs(o.ObjectID, o.CurrentTagIDs)
	}
	for _, d := range resp.ObjectData {
		s.store.AddObjectData(d.ObjectID, d.Data)
		found[d.ObjectID] = true
	}

	var missing []models.ObjectID
	for _, id := range ids {
		if !found[id] || !s.store.HasObject(id) {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// fetchUnknownTags loads tags missing from the entity store. Failures are
// logged; tag names are cosmetic for the editor.
func (s *Session) fetchUnknownTags(ctx context.Context, ids []int) {
	var unknown []int
	for _, id := range ids {
		if _, ok := s.store.Tag(id); !ok && !slices.Contains(unknown, id) {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) == 0 {
		return
	}
	tags, err := s.client.ViewTags(ctx, unknown)
	if err != nil {
		if !backend.IsNotFound(err) {
			s.log.Warn().Err(s.backendError("view tags", err)).Ints("tag_ids", unknown).Msg("failed to load tags")
		}
		return
	}
	s.store.AddTags(tags...)
}

// LoadObject starts or resumes editing a persisted object. An existing
// draft is kept unless reset is set. The subobjects of a composite are
// loaded as well; those the backend cannot return are flagged with a fetch
// error on their entry.
func (s *Session) LoadObject(ctx context.Context, id models.ObjectID, reset bool) (*models.EditedObject, error) {
	if id.IsNew() {
		return nil, fmt.Errorf("load %s: new objects are edited with NewObject", id)
	}
	if err := s.lockIdle(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	missing, err := s.fetchObjects(ctx, []models.ObjectID{id})
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("load %s: %w", id, ErrNotFound)
	}
	if reset || !s.model.Has(id) {
		s.model.Reset(id)
	}

	obj, _ := s.model.Get(id)
	tagIDs := slices.Clone(obj.CurrentTagIDs)
	if obj.IsComposite() {
		if err := s.loadSubobjects(ctx, id); err != nil {
			return nil, err
		}
		obj, _ = s.model.Get(id)
		for subID := range obj.Composite.Subobjects {
			tagIDs = append(tagIDs, s.store.CurrentTagIDs(subID)...)
		}
	}
	s.fetchUnknownTags(ctx, tagIDs)

	obj, _ = s.model.Get(id)
	return obj.Clone(), nil
}

func (s *Session) loadSubobjects(ctx context.Context, parentID models.ObjectID) error {
	parent, _ := s.model.Get(parentID)
	var toFetch []models.ObjectID
	for _, subID := range slices.SortedFunc(maps.Keys(parent.Composite.Subobjects), models.CompareIDs) {
		if !subID.IsNew() && !s.store.HasObject(subID) {
			toFetch = append(toFetch, subID)
		}
	}
	missing, err := s.fetchObjects(ctx, toFetch)
	if err != nil {
		return err
	}

	for subID, entry := range parent.Composite.Subobjects {
		if subID.IsNew() {
			continue
		}
		msg := ""
		if slices.Contains(missing, subID) {
			msg = FetchErrorMessage
		} else {
			s.model.EnsureLoaded(subID)
		}
		if entry.FetchError != msg {
			if _, err := composite.Apply(s.model, parentID, composite.UpdateSubobject{SubobjectID: subID, FetchError: &msg}); err != nil {
				return err
			}
		}
	}
	if len(missing) > 0 {
		s.log.Warn().Stringer("object_id", parentID).Int("missing", len(missing)).Msg("some subobjects could not be loaded")
	}
	return nil
}

// NewObject returns the draft of the new-object page, creating it if needed.
func (s *Session) NewObject(reset bool) (*models.EditedObject, error) {
	if err := s.lockIdle(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	id := models.NewID(0)
	if reset || !s.model.Has(id) {
		s.model.Reset(id)
	}
	obj, _ := s.model.Get(id)
	return obj.Clone(), nil
}

// EditedObject returns a copy of the draft of id.
func (s *Session) EditedObject(id models.ObjectID) (*models.EditedObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.model.Get(id)
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, drafts.ErrNoEditedObject)
	}
	return obj.Clone(), nil
}

// EditedObjectSummary describes one draft in a listing.
type EditedObjectSummary struct {
	ObjectID   models.ObjectID   `json:"object_id"`
	ObjectType models.ObjectType `json:"object_type"`
	ObjectName string            `json:"object_name"`
	IsNew      bool              `json:"is_new"`
	IsModified bool              `json:"is_modified"`
	FetchError string            `json:"fetch_error,omitempty"`
}

// ListEditedObjects describes every draft, ordered by ID.
func (s *Session) ListEditedObjects() []EditedObjectSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.model.IDs()
	out := make([]EditedObjectSummary, 0, len(ids))
	for _, id := range ids {
		obj, _ := s.model.Get(id)
		out = append(out, EditedObjectSummary{
			ObjectID:   id,
			ObjectType: obj.ObjectType,
			ObjectName: obj.ObjectName,
			IsNew:      id.IsNew(),
			IsModified: changes.Analyze(s.model, id).IsModified(id),
			FetchError: obj.FetchError,
		})
	}
	return out
}

// Reset discards unsaved changes of ids. Persisted objects not loaded yet
// are fetched first.
func (s *Session) Reset(ctx context.Context, ids ...models.ObjectID) error {
	if err := s.lockIdle(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	var toFetch []models.ObjectID
	for _, id := range ids {
		if !id.IsNew() && !s.store.HasObject(id) {
			toFetch = append(toFetch, id)
		}
	}
	missing, err := s.fetchObjects(ctx, toFetch)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("reset %s: %w", missing[0], ErrNotFound)
	}
	s.model.Reset(ids...)
	return nil
}

// UpdateAttributes merges p into the draft of id.
func (s *Session) UpdateAttributes(id models.ObjectID, p drafts.Patch) (*models.EditedObject, error) {
	if err := s.lockIdle(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	if err := s.model.Update(id, p); err != nil {
		return nil, err
	}
	obj, _ := s.model.Get(id)
	return obj.Clone(), nil
}

// UpdateTags changes the pending tags of the draft of id.
func (s *Session) UpdateTags(id models.ObjectID, u drafts.TagUpdate) (*models.EditedObject, error) {
	if err := s.lockIdle(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	if err := s.model.UpdateTags(id, u); err != nil {
		return nil, err
	}
	obj, _ := s.model.Get(id)
	return obj.Clone(), nil
}

// UpdateToDoList applies cmd to the to-do list of the draft of id.
func (s *Session) UpdateToDoList(id models.ObjectID, cmd drafts.ToDoListCommand) (*models.EditedObject, error) {
	if err := s.lockIdle(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	if err := s.model.UpdateToDoList(id, cmd); err != nil {
		return nil, err
	}
	obj, _ := s.model.Get(id)
	return obj.Clone(), nil
}

// UpdateComposite applies cmd to the composite draft parentID. A persisted
// subobject added with AddExistingSubobject is fetched first and gets a
// draft of its own.
func (s *Session) UpdateComposite(ctx context.Context, parentID models.ObjectID, cmd composite.Command) (composite.Result, error) {
	if err := s.lockIdle(); err != nil {
		return composite.Result{}, err
	}
	defer s.mu.Unlock()

	add, isAdd := cmd.(composite.AddExistingSubobject)
	if isAdd && !add.SubobjectID.IsNew() && !s.store.HasObject(add.SubobjectID) {
		missing, err := s.fetchObjects(ctx, []models.ObjectID{add.SubobjectID})
		if err != nil {
			return composite.Result{}, err
		}
		if len(missing) > 0 {
			return composite.Result{}, fmt.Errorf("add subobject %s: %w", add.SubobjectID, ErrNotFound)
		}
		s.fetchUnknownTags(ctx, s.store.CurrentTagIDs(add.SubobjectID))
	}

	res, err := composite.Apply(s.model, parentID, cmd)
	if err != nil {
		return composite.Result{}, err
	}
	if isAdd {
		s.model.EnsureLoaded(add.SubobjectID)
	}
	return res, nil
}

// Cancel stops editing root: drafts reachable from it that hold no unsaved
// changes are discarded. Drafts in excluded are kept. It returns the IDs of
// the discarded drafts.
func (s *Session) Cancel(root models.ObjectID, excluded ...models.ObjectID) ([]models.ObjectID, error) {
	if err := s.lockIdle(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	removed := changes.ClearUnchangedEditedObjects(s.model, root, excluded...)
	s.log.Debug().Stringer("root", root).Int("removed", len(removed)).Msg("cleared unchanged edited objects")
	return removed, nil
}

// SaveResult describes a successful save.
type SaveResult struct {
	ObjectID  models.ObjectID   `json:"object_id"`
	IDMapping upsert.IDMapping  `json:"id_mapping"`
	Saved     []models.ObjectID `json:"saved"`
	Deleted   []models.ObjectID `json:"deleted"`
}

// Save sends root and its modified subobjects to the backend. Nothing
// changes locally unless the backend accepts the save; afterwards drafts
// live at their final IDs.
func (s *Session) Save(ctx context.Context, root models.ObjectID) (*SaveResult, error) {
	if err := s.lockIdle(); err != nil {
		return nil, err
	}
	req, err := upsert.BuildRequest(s.model, root)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.saving = true
	s.mu.Unlock()

	start := time.Now()
	var resp *backend.ObjectPayload
	if req.IsAdd() {
		resp, err = s.client.AddObject(ctx, req.Object)
	} else {
		resp, err = s.client.UpdateObject(ctx, req.Object)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	if err != nil {
		return nil, s.backendError("save", err)
	}

	mapping, err := upsert.Reconcile(s.model, req, resp)
	if err != nil {
		return nil, err
	}

	result := &SaveResult{
		ObjectID:  mapping.Resolve(root),
		IDMapping: mapping,
		Saved:     make([]models.ObjectID, 0, len(req.Sent)),
		Deleted:   req.Deleted,
	}
	var tagIDs []int
	for _, id := range req.Sent {
		final := mapping.Resolve(id)
		result.Saved = append(result.Saved, final)
		tagIDs = append(tagIDs, s.store.CurrentTagIDs(final)...)
	}
	s.fetchUnknownTags(ctx, tagIDs)

	s.log.Info().
		Stringer("object_id", result.ObjectID).
		Int("saved", len(result.Saved)).
		Int("deleted", len(result.Deleted)).
		Dur("duration", time.Since(start)).
		Msg("object saved")
	return result, nil
}

// DeleteObjects deletes persisted objects, and the subobjects of deleted
// composites when deleteSubobjects is set, both on the backend and locally.
func (s *Session) DeleteObjects(ctx context.Context, ids []models.ObjectID, deleteSubobjects bool) ([]models.ObjectID, error) {
	if err := s.lockIdle(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	for _, id := range ids {
		if id.IsNew() {
			return nil, fmt.Errorf("delete %s: object is not persisted", id)
		}
	}
	if err := s.client.DeleteObjects(ctx, ids, deleteSubobjects); err != nil {
		return nil, s.backendError("delete objects", err)
	}

	removed := slices.Clone(ids)
	if deleteSubobjects {
		for _, id := range ids {
			if data, ok := s.store.Data(id); ok {
				if c, ok := data.(models.CompositeData); ok {
					for subID := range c.Subobjects {
						if !slices.Contains(removed, subID) {
							removed = append(removed, subID)
						}
					}
				}
			}
		}
	}
	slices.SortFunc(removed, models.CompareIDs)
	s.store.RemoveObjects(removed...)
	s.model.Delete(removed...)
	s.model.RemoveReferences(removed...)
	return removed, nil
}

// UpdateObjectsTags changes the tags of several persisted objects at once.
// Adding a tag every selected object already has removes it instead.
func (s *Session) UpdateObjectsTags(ctx context.Context, ids []models.ObjectID, u drafts.TagUpdate) (*backend.TagUpdates, error) {
	if err := s.lockIdle(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var toFetch []models.ObjectID
	for _, id := range ids {
		if id.IsNew() {
			return nil, fmt.Errorf("update tags of %s: object is not persisted", id)
		}
		if !s.store.HasObject(id) {
			toFetch = append(toFetch, id)
		}
	}
	missing, err := s.fetchObjects(ctx, toFetch)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("update tags of %s: %w", missing[0], ErrNotFound)
	}

	bulk := drafts.BulkTags{}.Update(s.store, ids, u)
	if bulk.IsEmpty() {
		return &backend.TagUpdates{AddedTagIDs: []int{}, RemovedTagIDs: []int{}}, nil
	}
	resp, err := s.client.UpdateObjectsTags(ctx, ids, bulk.Added, bulk.RemovedTagIDs)
	if err != nil {
		return nil, s.backendError("update objects tags", err)
	}

	apply := func(tags []int) []int {
		tags = slices.DeleteFunc(slices.Clone(tags), func(t int) bool {
			return slices.Contains(resp.TagUpdates.RemovedTagIDs, t)
		})
		for _, t := range resp.TagUpdates.AddedTagIDs {
			if !slices.Contains(tags, t) {
				tags = append(tags, t)
			}
		}
		if tags == nil {
			tags = []int{}
		}
		return tags
	}
	for _, id := range ids {
		attrs, _ := s.store.Object(id)
		attrs.ModifiedAt = resp.ModifiedAt
		s.store.AddObjects(attrs)
		s.store.SetCurrentTagIDs(id, apply(s.store.CurrentTagIDs(id)))

		if cur, ok := s.model.Get(id); ok {
			obj := cur.Clone()
			obj.ModifiedAt = resp.ModifiedAt
			obj.CurrentTagIDs = apply(obj.CurrentTagIDs)
			s.model.Put(id, obj)
		}
	}
	s.fetchUnknownTags(ctx, resp.TagUpdates.AddedTagIDs)
	return &resp.TagUpdates, nil
}

// ViewTags returns tags by ID, loading them from the backend.
func (s *Session) ViewTags(ctx context.Context, ids []int) ([]models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, err := s.client.ViewTags(ctx, ids)
	if backend.IsNotFound(err) {
		return []models.Tag{}, nil
	}
	if err != nil {
		return nil, s.backendError("view tags", err)
	}
	s.store.AddTags(tags...)
	return tags, nil
}

// SearchTags returns tags whose names match text.
func (s *Session) SearchTags(ctx context.Context, text string, limit int) ([]models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.client.SearchTags(ctx, text, limit, nil)
	if err != nil {
		return nil, s.backendError("search tags", err)
	}
	s.fetchUnknownTags(ctx, ids)
	out := make([]models.Tag, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.store.Tag(id); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// SearchEditedObjects finds drafts by name or description. Every word of
// query must match. With local storage disabled the drafts in memory are
// searched by substring.
func (s *Session) SearchEditedObjects(query string, limit int) ([]storage.DraftSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drafts != nil {
		if err := s.persister.Flush(); err != nil {
			return nil, err
		}
		return s.drafts.Search(query, limit)
	}

	if limit <= 0 {
		limit = 50
	}
	words := strings.Fields(strings.ToLower(query))
	var out []storage.DraftSummary
	for _, id := range s.model.IDs() {
		obj, _ := s.model.Get(id)
		text := strings.ToLower(obj.ObjectName + " " + obj.ObjectDescription)
		if !containsAll(text, words) {
			continue
		}
		out = append(out, storage.DraftSummary{
			ObjectID:          id,
			ObjectType:        obj.ObjectType,
			ObjectName:        obj.ObjectName,
			ObjectDescription: obj.ObjectDescription,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func containsAll(text string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}
