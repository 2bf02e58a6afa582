package store

// Schema contains the complete DDL for the library tables.
const Schema = `
CREATE TABLE IF NOT EXISTS categories (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    parent_id   TEXT NOT NULL DEFAULT '',
    sort        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS prompts (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    title         TEXT NOT NULL DEFAULT '',
    content       TEXT NOT NULL,
    tags          TEXT NOT NULL DEFAULT '[]',
    category_id   TEXT NOT NULL DEFAULT '',
    usage_count   INTEGER NOT NULL DEFAULT 0,
    last_used_at  INTEGER NOT NULL DEFAULT 0,
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prompts_last_used ON prompts(last_used_at DESC);
CREATE INDEX IF NOT EXISTS idx_prompts_usage ON prompts(usage_count DESC);

-- Key/value settings; values are JSON.
CREATE TABLE IF NOT EXISTS settings (
    key    TEXT PRIMARY KEY,
    value  TEXT NOT NULL
);

-- User site profiles, in registration order.
CREATE TABLE IF NOT EXISTS sites (
    id          TEXT PRIMARY KEY,
    pattern     TEXT NOT NULL,
    selectors   TEXT NOT NULL,
    strategy    TEXT NOT NULL DEFAULT '',
    extra       TEXT NOT NULL DEFAULT '{}',
    override    INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL
);
`
