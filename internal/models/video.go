package models

import (
	"time"

	"github.com/google/uuid"
)

// Video is one row per published video. The cumulative counters hold the
// current totals as of the latest known snapshot, or the load-time values
// when no snapshots exist yet.
type Video struct {
	ID             uuid.UUID  `json:"id"`
	CreatorID      string     `json:"creator_id"`
	VideoCreatedAt time.Time  `json:"video_created_at"`
	ViewsCount     int64      `json:"views_count"`
	LikesCount     int64      `json:"likes_count"`
	CommentsCount  int64      `json:"comments_count"`
	ReportsCount   int64      `json:"reports_count"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// VideoWithSnapshots is the unit the ingestion path hands to the store:
// a video plus its hourly snapshots, ordered by snapshot created_at.
type VideoWithSnapshots struct {
	Video     Video
	Snapshots []VideoSnapshot
}
