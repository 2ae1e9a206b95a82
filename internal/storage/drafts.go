// Package storage keeps edited objects in a local SQLite database so that
// unsaved drafts survive a restart.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// KeyPrefix prefixes the storage key of every draft.
const KeyPrefix = "editedObject_"

// Key returns the storage key of the draft with the given ID.
func Key(id models.ObjectID) string {
	return KeyPrefix + strconv.Itoa(id.Wire())
}

// ParseKey is the inverse of Key.
func ParseKey(key string) (models.ObjectID, error) {
	rest, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok {
		return models.ObjectID{}, fmt.Errorf("storage key %q: missing prefix", key)
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return models.ObjectID{}, fmt.Errorf("storage key %q: %w", key, err)
	}
	return models.FromWire(n), nil
}

// DraftStore manages drafts.db.
type DraftStore struct {
	db      *sql.DB
	dataDir string
}

// OpenDrafts opens (or creates) drafts.db in dataDir and runs migrations.
func OpenDrafts(dataDir string) (*DraftStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "drafts.db")
	db, err := sql.Open("sqlite3", "file:"+dbPath+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open drafts db: %w", err)
	}
	// One connection serializes writers and keeps WAL reads consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(DraftsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate drafts db: %w", err)
	}
	if _, err := db.Exec(DraftsTriggers); err != nil {
		db.Close()
		return nil, fmt.Errorf("create drafts triggers: %w", err)
	}
	return &DraftStore{db: db, dataDir: dataDir}, nil
}

// Close closes the database connection.
func (s *DraftStore) Close() error {
	return s.db.Close()
}

// DataDir returns the directory holding drafts.db.
func (s *DraftStore) DataDir() string {
	return s.dataDir
}

// Put writes drafts, replacing stored versions.
func (s *DraftStore) Put(objects ...*models.EditedObject) error {
	changes := make(map[models.ObjectID]*models.EditedObject, len(objects))
	for _, obj := range objects {
		changes[obj.ObjectID] = obj
	}
	return s.Apply(changes)
}

// Remove deletes stored drafts. Missing IDs are ignored.
func (s *DraftStore) Remove(ids ...models.ObjectID) error {
	changes := make(map[models.ObjectID]*models.EditedObject, len(ids))
	for _, id := range ids {
		changes[id] = nil
	}
	return s.Apply(changes)
}

// Apply writes a batch of changes in one transaction. A nil draft removes
// the stored entry.
func (s *DraftStore) Apply(changes map[models.ObjectID]*models.EditedObject) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for id, obj := range changes {
		if obj == nil {
			if _, err := tx.Exec(`DELETE FROM edited_objects WHERE storage_key = ?`, Key(id)); err != nil {
				return fmt.Errorf("delete draft %s: %w", id, err)
			}
			continue
		}
		body, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("encode draft %s: %w", id, err)
		}
		_, err = tx.Exec(
			`INSERT INTO edited_objects (storage_key, object_id, object_type, object_name, object_description, body)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(storage_key) DO UPDATE SET
			     object_type = excluded.object_type,
			     object_name = excluded.object_name,
			     object_description = excluded.object_description,
			     body = excluded.body,
			     updated_at = datetime('now')`,
			Key(id), id.Wire(), string(obj.ObjectType), obj.ObjectName, obj.ObjectDescription, string(body),
		)
		if err != nil {
			return fmt.Errorf("write draft %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get reads one stored draft.
func (s *DraftStore) Get(id models.ObjectID) (*models.EditedObject, bool, error) {
	var body string
	err := s.db.QueryRow(`SELECT body FROM edited_objects WHERE storage_key = ?`, Key(id)).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read draft %s: %w", id, err)
	}
	obj, err := decodeDraft(id, body)
	if err != nil {
		return nil, false, err
	}
	return obj, true, nil
}

// LoadAll reads every stored draft, keyed by ID.
func (s *DraftStore) LoadAll() (map[models.ObjectID]*models.EditedObject, error) {
	rows, err := s.db.Query(`SELECT storage_key, body FROM edited_objects`)
	if err != nil {
		return nil, fmt.Errorf("load drafts: %w", err)
	}
	defer rows.Close()

	out := make(map[models.ObjectID]*models.EditedObject)
	for rows.Next() {
		var key, body string
		if err := rows.Scan(&key, &body); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		id, err := ParseKey(key)
		if err != nil {
			return nil, err
		}
		obj, err := decodeDraft(id, body)
		if err != nil {
			return nil, err
		}
		out[id] = obj
	}
	return out, rows.Err()
}

// Count returns the number of stored drafts.
func (s *DraftStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM edited_objects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count drafts: %w", err)
	}
	return n, nil
}

// Clear removes every stored draft.
func (s *DraftStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM edited_objects`); err != nil {
		return fmt.Errorf("clear drafts: %w", err)
	}
	return nil
}

func decodeDraft(id models.ObjectID, body string) (*models.EditedObject, error) {
	obj := models.DefaultEditedObject(id)
	if err := json.Unmarshal([]byte(body), obj); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	obj.ObjectID = id
	return obj, nil
}
