package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoSnapshot is one hourly observation of a video. The absolute counters
// are the totals at observation time; the delta counters are the increase
// since the immediately preceding snapshot of the same video (or since video
// creation for the first snapshot). CreatedAt is the observation timestamp
// and the ordering key for "preceding snapshot", not the row insertion time.
type VideoSnapshot struct {
	ID                 uuid.UUID  `json:"id"`
	VideoID            uuid.UUID  `json:"video_id"`
	ViewsCount         int64      `json:"views_count"`
	LikesCount         int64      `json:"likes_count"`
	CommentsCount      int64      `json:"comments_count"`
	ReportsCount       int64      `json:"reports_count"`
	DeltaViewsCount    int64      `json:"delta_views_count"`
	DeltaLikesCount    int64      `json:"delta_likes_count"`
	DeltaCommentsCount int64      `json:"delta_comments_count"`
	DeltaReportsCount  int64      `json:"delta_reports_count"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}
