package store

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// Store tests run against in-memory sqlite with the same table shapes the
// Postgres migrations create: upsert-by-id, FK from snapshots to videos,
// non-negative CHECK constraints.
const testSchema = `
CREATE TABLE videos (
    id TEXT PRIMARY KEY,
    creator_id TEXT NOT NULL,
    video_created_at TIMESTAMP NOT NULL,
    views_count BIGINT NOT NULL DEFAULT 0 CHECK (views_count >= 0),
    likes_count BIGINT NOT NULL DEFAULT 0 CHECK (likes_count >= 0),
    comments_count BIGINT NOT NULL DEFAULT 0 CHECK (comments_count >= 0),
    reports_count BIGINT NOT NULL DEFAULT 0 CHECK (reports_count >= 0),
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP
);

CREATE TABLE video_snapshots (
    id TEXT PRIMARY KEY,
    video_id TEXT NOT NULL REFERENCES videos (id) ON DELETE CASCADE,
    views_count BIGINT NOT NULL DEFAULT 0 CHECK (views_count >= 0),
    likes_count BIGINT NOT NULL DEFAULT 0 CHECK (likes_count >= 0),
    comments_count BIGINT NOT NULL DEFAULT 0 CHECK (comments_count >= 0),
    reports_count BIGINT NOT NULL DEFAULT 0 CHECK (reports_count >= 0),
    delta_views_count BIGINT NOT NULL DEFAULT 0 CHECK (delta_views_count >= 0),
    delta_likes_count BIGINT NOT NULL DEFAULT 0 CHECK (delta_likes_count >= 0),
    delta_comments_count BIGINT NOT NULL DEFAULT 0 CHECK (delta_comments_count >= 0),
    delta_reports_count BIGINT NOT NULL DEFAULT 0 CHECK (delta_reports_count >= 0),
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP
);
`

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}
