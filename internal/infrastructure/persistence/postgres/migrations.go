package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE KV ENTRIES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create kv_entries table
-- Version: 001

-- The engine persists its whole state through a key-value contract:
-- credibility profiles, XP ledgers, and guardian PIN hashes each live
-- under their own key prefix.
CREATE TABLE IF NOT EXISTS kv_entries (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- Prefix scans back the sweep jobs (decay, daily digest).
CREATE INDEX IF NOT EXISTS idx_kv_entries_prefix ON kv_entries(key text_pattern_ops);
`

const migration001Down = `
DROP INDEX IF EXISTS idx_kv_entries_prefix;
DROP TABLE IF EXISTS kv_entries;
`

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_kv_entries",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
	}
}
