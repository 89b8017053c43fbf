package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create conversations and messages",
		SQL: `
			CREATE TABLE conversations (
				id           TEXT PRIMARY KEY,
				channel      TEXT NOT NULL,
				contact_id   TEXT NOT NULL,
				contact_name TEXT NOT NULL DEFAULT '',
				ai_enabled   INTEGER NOT NULL DEFAULT 1,
				created_at   TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE UNIQUE INDEX idx_conversations_contact ON conversations (channel, contact_id);
			CREATE INDEX idx_conversations_updated ON conversations (updated_at);

			CREATE TABLE messages (
				seq             INTEGER PRIMARY KEY AUTOINCREMENT,
				id              TEXT NOT NULL UNIQUE,
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				content         TEXT NOT NULL,
				status          TEXT NOT NULL CHECK (status IN ('received', 'sent')),
				sender_name     TEXT NOT NULL DEFAULT '',
				sender_id       TEXT NOT NULL DEFAULT '',
				created_at      TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_messages_conversation ON messages (conversation_id, seq);
		`,
	},
	{
		Version: 2,
		Name:    "create knowledge snippets with FTS5",
		SQL: `
			CREATE TABLE knowledge_snippets (
				id          TEXT PRIMARY KEY,
				content     TEXT NOT NULL,
				source_name TEXT NOT NULL DEFAULT '',
				embedding   BLOB,
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE VIRTUAL TABLE knowledge_fts USING fts5(
				content,
				content='knowledge_snippets',
				content_rowid='rowid'
			);

			CREATE TRIGGER knowledge_ai AFTER INSERT ON knowledge_snippets BEGIN
				INSERT INTO knowledge_fts(rowid, content)
				VALUES (new.rowid, new.content);
			END;

			CREATE TRIGGER knowledge_ad AFTER DELETE ON knowledge_snippets BEGIN
				INSERT INTO knowledge_fts(knowledge_fts, rowid, content)
				VALUES ('delete', old.rowid, old.content);
			END;

			CREATE TRIGGER knowledge_au AFTER UPDATE ON knowledge_snippets BEGIN
				INSERT INTO knowledge_fts(knowledge_fts, rowid, content)
				VALUES ('delete', old.rowid, old.content);
				INSERT INTO knowledge_fts(rowid, content)
				VALUES (new.rowid, new.content);
			END;
		`,
	},
	{
		Version: 3,
		Name:    "create singleton ai_settings",
		SQL: `
			CREATE TABLE ai_settings (
				id             INTEGER PRIMARY KEY CHECK (id = 1),
				tone           TEXT NOT NULL DEFAULT 'Professional',
				behaviour      TEXT NOT NULL DEFAULT '',
				context_memory TEXT NOT NULL DEFAULT '3',
				timeout_hours  INTEGER NOT NULL DEFAULT 2,
				updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
			);

			INSERT INTO ai_settings (id) VALUES (1);
		`,
	},
}
