package ingest

// Feed is the bulk record collection delivered by the external batch source.
// All timestamps are ISO-8601 strings with timezone offset; counters are
// pointers so a missing field can be told apart from a zero.
type Feed struct {
	Videos []VideoRecord `json:"videos"`
}

type VideoRecord struct {
	ID             string           `json:"id"`
	CreatorID      string           `json:"creator_id"`
	VideoCreatedAt string           `json:"video_created_at"`
	ViewsCount     *int64           `json:"views_count"`
	LikesCount     *int64           `json:"likes_count"`
	CommentsCount  *int64           `json:"comments_count"`
	ReportsCount   *int64           `json:"reports_count"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
	Snapshots      []SnapshotRecord `json:"snapshots"`
}

type SnapshotRecord struct {
	ID                 string `json:"id"`
	VideoID            string `json:"video_id"`
	ViewsCount         *int64 `json:"views_count"`
	LikesCount         *int64 `json:"likes_count"`
	CommentsCount      *int64 `json:"comments_count"`
	ReportsCount       *int64 `json:"reports_count"`
	DeltaViewsCount    *int64 `json:"delta_views_count"`
	DeltaLikesCount    *int64 `json:"delta_likes_count"`
	DeltaCommentsCount *int64 `json:"delta_comments_count"`
	DeltaReportsCount  *int64 `json:"delta_reports_count"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}
