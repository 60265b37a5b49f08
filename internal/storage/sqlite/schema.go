package sqlite

// Schema is applied on every open; every statement is idempotent.
//
// items_fts is an external-content FTS5 index over items kept in sync by
// triggers. Embeddings are little-endian float64 blobs.
const Schema = `
CREATE TABLE IF NOT EXISTS items (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	text         TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	extracted_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_items_created_at ON items(created_at);
CREATE INDEX IF NOT EXISTS idx_items_source ON items(source);
CREATE INDEX IF NOT EXISTS idx_items_unextracted ON items(id) WHERE extracted_at IS NULL;

CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
	text, title,
	content='items',
	content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS items_ai AFTER INSERT ON items BEGIN
	INSERT INTO items_fts(rowid, text, title) VALUES (new.id, new.text, new.title);
END;

CREATE TRIGGER IF NOT EXISTS items_ad AFTER DELETE ON items BEGIN
	INSERT INTO items_fts(items_fts, rowid, text, title) VALUES ('delete', old.id, old.text, old.title);
END;

CREATE TRIGGER IF NOT EXISTS items_au AFTER UPDATE OF text, title ON items BEGIN
	INSERT INTO items_fts(items_fts, rowid, text, title) VALUES ('delete', old.id, old.text, old.title);
	INSERT INTO items_fts(rowid, text, title) VALUES (new.id, new.text, new.title);
END;

CREATE TABLE IF NOT EXISTS embeddings (
	item_id   INTEGER PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE,
	vector    BLOB NOT NULL,
	dimension INTEGER NOT NULL,
	model     TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE COLLATE NOCASE,
	type       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS facts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id    INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	subject_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	predicate  TEXT NOT NULL,
	object_id  INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	confidence REAL NOT NULL DEFAULT 0.5,
	created_at TEXT NOT NULL,
	UNIQUE(item_id, subject_id, predicate, object_id)
);

CREATE INDEX IF NOT EXISTS idx_facts_subject ON facts(subject_id);
CREATE INDEX IF NOT EXISTS idx_facts_object ON facts(object_id);

CREATE TABLE IF NOT EXISTS meta (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`
