package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/grvbrk/vidmetrics_server/internal/models"
)

type PostgresMetricsStore struct {
	db *sql.DB
}

func NewPostgresMetricsStore(db *sql.DB) *PostgresMetricsStore {
	if db == nil {
		panic("db cannot be nil for PostgresMetricsStore")
	}
	return &PostgresMetricsStore{db: db}
}

type MetricsStore interface {
	UpsertBatch(ctx context.Context, batch []models.VideoWithSnapshots) error
}

// UpsertBatch writes one batch of videos and their snapshots inside a single
// transaction. Upserts are keyed by id so re-running the same feed leaves the
// store unchanged. Referential and non-negative constraints are enforced by
// the schema and surface here as wrapped database errors.
func (pg *PostgresMetricsStore) UpsertBatch(ctx context.Context, batch []models.VideoWithSnapshots) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := pg.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range batch {
		if err := upsertVideo(ctx, tx, item.Video); err != nil {
			return err
		}
		for _, snap := range item.Snapshots {
			if err := upsertSnapshot(ctx, tx, snap); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

func upsertVideo(ctx context.Context, tx *sql.Tx, video models.Video) error {
	query := `
		INSERT INTO videos (
			id, creator_id, video_created_at,
			views_count, likes_count, comments_count, reports_count,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			creator_id = excluded.creator_id,
			video_created_at = excluded.video_created_at,
			views_count = excluded.views_count,
			likes_count = excluded.likes_count,
			comments_count = excluded.comments_count,
			reports_count = excluded.reports_count,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`

	_, err := tx.ExecContext(ctx, query,
		video.ID,
		video.CreatorID,
		video.VideoCreatedAt,
		video.ViewsCount,
		video.LikesCount,
		video.CommentsCount,
		video.ReportsCount,
		video.CreatedAt,
		video.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert video %s: %w", video.ID, err)
	}

	return nil
}

func upsertSnapshot(ctx context.Context, tx *sql.Tx, snap models.VideoSnapshot) error {
	query := `
		INSERT INTO video_snapshots (
			id, video_id,
			views_count, likes_count, comments_count, reports_count,
			delta_views_count, delta_likes_count, delta_comments_count, delta_reports_count,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			video_id = excluded.video_id,
			views_count = excluded.views_count,
			likes_count = excluded.likes_count,
			comments_count = excluded.comments_count,
			reports_count = excluded.reports_count,
			delta_views_count = excluded.delta_views_count,
			delta_likes_count = excluded.delta_likes_count,
			delta_comments_count = excluded.delta_comments_count,
			delta_reports_count = excluded.delta_reports_count,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`

	_, err := tx.ExecContext(ctx, query,
		snap.ID,
		snap.VideoID,
		snap.ViewsCount,
		snap.LikesCount,
		snap.CommentsCount,
		snap.ReportsCount,
		snap.DeltaViewsCount,
		snap.DeltaLikesCount,
		snap.DeltaCommentsCount,
		snap.DeltaReportsCount,
		snap.CreatedAt,
		snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot %s: %w", snap.ID, err)
	}

	return nil
}
