package storage

// DraftsSchema is the SQL schema of drafts.db. Each row mirrors one
// editedObject_<id> entry; the name and description columns are copied out
// of the JSON body for full-text search.
const DraftsSchema = `
CREATE TABLE IF NOT EXISTS edited_objects (
    storage_key        TEXT PRIMARY KEY,
    object_id          INTEGER NOT NULL UNIQUE,
    object_type        TEXT NOT NULL,
    object_name        TEXT NOT NULL DEFAULT '',
    object_description TEXT NOT NULL DEFAULT '',
    body               TEXT NOT NULL,
    updated_at         TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE VIRTUAL TABLE IF NOT EXISTS edited_objects_fts USING fts5(
    object_name,
    object_description,
    content='edited_objects',
    content_rowid='rowid'
);

CREATE INDEX IF NOT EXISTS idx_edited_objects_type ON edited_objects(object_type);
`

// DraftsTriggers keep edited_objects_fts in sync with edited_objects.
const DraftsTriggers = `
CREATE TRIGGER IF NOT EXISTS edited_objects_ai AFTER INSERT ON edited_objects BEGIN
    INSERT INTO edited_objects_fts(rowid, object_name, object_description)
    VALUES (new.rowid, new.object_name, new.object_description);
END;
CREATE TRIGGER IF NOT EXISTS edited_objects_ad AFTER DELETE ON edited_objects BEGIN
    INSERT INTO edited_objects_fts(edited_objects_fts, rowid, object_name, object_description)
    VALUES ('delete', old.rowid, old.object_name, old.object_description);
END;
CREATE TRIGGER IF NOT EXISTS edited_objects_au AFTER UPDATE ON edited_objects BEGIN
    INSERT INTO edited_objects_fts(edited_objects_fts, rowid, object_name, object_description)
    VALUES ('delete', old.rowid, old.object_name, old.object_description);
    INSERT INTO edited_objects_fts(rowid, object_name, object_description)
    VALUES (new.rowid, new.object_name, new.object_description);
END;
`

// dsnPragmas configures SQLite for a single-writer local cache.
const dsnPragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=cache_size(-16000)"
