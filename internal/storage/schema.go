package storage

// Schema is the SQL schema for the notes database.
//
// parent_id deliberately carries no foreign key: deleting a note leaves its
// children in place with a dangling parent. note_ui_states has no foreign
// keys either, orphaned rows are harmless.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    subject       TEXT NOT NULL UNIQUE,
    name          TEXT NOT NULL DEFAULT '',
    embedding_rev INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);

CREATE TABLE IF NOT EXISTS notes (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL REFERENCES users(id),
    parent_id         TEXT NULL,
    human_readable_id TEXT NOT NULL UNIQUE,
    title             TEXT NOT NULL DEFAULT '',
    content           TEXT NOT NULL DEFAULT '',
    metadata          TEXT NOT NULL DEFAULT '',
    search_text       TEXT NOT NULL DEFAULT '',
    embedding         BLOB NULL,
    created_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
    updated_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);

CREATE TABLE IF NOT EXISTS mentions (
    id        TEXT PRIMARY KEY,
    from_note TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
    to_note   TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
    UNIQUE(from_note, to_note)
);

CREATE TABLE IF NOT EXISTS canvases (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL UNIQUE REFERENCES users(id),
    origin_x   REAL NOT NULL DEFAULT 0,
    origin_y   REAL NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);

CREATE TABLE IF NOT EXISTS canvas_items (
    id         TEXT PRIMARY KEY,
    canvas_id  TEXT NOT NULL REFERENCES canvases(id) ON DELETE CASCADE,
    note_id    TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
    x          REAL NOT NULL,
    y          REAL NOT NULL,
    created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);

CREATE TABLE IF NOT EXISTS note_ui_states (
    note_id        TEXT NOT NULL,
    canvas_item_id TEXT NOT NULL,
    collapsed      INTEGER NOT NULL,
    PRIMARY KEY (note_id, canvas_item_id)
);

CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
    search_text,
    content='notes',
    content_rowid='rowid'
);

CREATE INDEX IF NOT EXISTS idx_notes_user_created ON notes(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notes_parent ON notes(parent_id);
CREATE INDEX IF NOT EXISTS idx_notes_missing_embedding ON notes(created_at) WHERE embedding IS NULL;
CREATE INDEX IF NOT EXISTS idx_mentions_to ON mentions(to_note);
CREATE INDEX IF NOT EXISTS idx_canvas_items_canvas ON canvas_items(canvas_id);
CREATE INDEX IF NOT EXISTS idx_canvas_items_note ON canvas_items(note_id);
`

// Triggers keep notes_fts in sync with notes.search_text. Embedding writes do
// not touch the index.
const Triggers = `
CREATE TRIGGER IF NOT EXISTS notes_ai AFTER INSERT ON notes BEGIN
    INSERT INTO notes_fts(rowid, search_text) VALUES (new.rowid, new.search_text);
END;
CREATE TRIGGER IF NOT EXISTS notes_ad AFTER DELETE ON notes BEGIN
    INSERT INTO notes_fts(notes_fts, rowid, search_text) VALUES('delete', old.rowid, old.search_text);
END;
CREATE TRIGGER IF NOT EXISTS notes_au AFTER UPDATE OF search_text ON notes BEGIN
    INSERT INTO notes_fts(notes_fts, rowid, search_text) VALUES('delete', old.rowid, old.search_text);
    INSERT INTO notes_fts(rowid, search_text) VALUES (new.rowid, new.search_text);
END;
`

// dsnPragmas configures every connection. Write transactions take the lock
// up front so concurrent writers wait on busy_timeout instead of failing.
const dsnPragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)&_txlock=immediate"
