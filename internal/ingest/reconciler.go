package ingest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/grvbrk/vidmetrics_server/internal/models"
	"github.com/grvbrk/vidmetrics_server/internal/store"
)

const defaultBatchSize = 50

var metricNames = [4]string{"views_count", "likes_count", "comments_count", "reports_count"}

// RecordFault is a single malformed or inconsistent input record. Faults are
// recorded and skipped; they never abort the run.
type RecordFault struct {
	VideoID    string `json:"video_id"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Field      string `json:"field,omitempty"`
	Reason     string `json:"reason"`
}

func (f RecordFault) String() string {
	if f.SnapshotID != "" {
		return fmt.Sprintf("video %s snapshot %s: field %q: %s", f.VideoID, f.SnapshotID, f.Field, f.Reason)
	}
	return fmt.Sprintf("video %s: field %q: %s", f.VideoID, f.Field, f.Reason)
}

type Summary struct {
	VideosCommitted    int           `json:"videos_committed"`
	SnapshotsCommitted int           `json:"snapshots_committed"`
	Failures           []RecordFault `json:"failures,omitempty"`
	Notes              []string      `json:"notes,omitempty"`
}

// Reconciler builds the metrics store from a bulk feed. Validated videos and
// their snapshots are committed in bounded-size batches so a fault partway
// through a large run loses at most one uncommitted batch, not the whole run.
// Re-running the same feed is safe: all writes are upserts keyed by id.
//
// A feed is expected to carry each video's full snapshot history: the delta
// of the first supplied snapshot is verified against zero absolutes, i.e.
// against the state at video creation. A partial feed starting mid-history
// gets its first snapshot rejected when the delta cannot account for the
// full absolute value.
type Reconciler struct {
	store     store.MetricsStore
	logger    *log.Logger
	batchSize int
}

func NewReconciler(metricsStore store.MetricsStore, logger *log.Logger) *Reconciler {
	return &Reconciler{
		store:     metricsStore,
		logger:    logger,
		batchSize: defaultBatchSize,
	}
}

// Run processes the feed in order. Per-record faults are collected in the
// summary and the run continues; a store error is fatal and returns the
// summary of what was committed before it.
func (r *Reconciler) Run(ctx context.Context, feed Feed) (*Summary, error) {
	summary := &Summary{}

	batch := make([]models.VideoWithSnapshots, 0, r.batchSize)
	pendingSnapshots := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.store.UpsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to commit batch: %w", err)
		}
		summary.VideosCommitted += len(batch)
		summary.SnapshotsCommitted += pendingSnapshots
		r.logger.Printf("Committed %d videos and %d snapshots (%d videos total)",
			len(batch), pendingSnapshots, summary.VideosCommitted)
		batch = batch[:0]
		pendingSnapshots = 0
		return nil
	}

	for _, record := range feed.Videos {
		item := r.reconcileVideo(record, summary)
		if item == nil {
			continue
		}

		batch = append(batch, *item)
		pendingSnapshots += len(item.Snapshots)

		if len(batch) >= r.batchSize {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}

	if err := flush(); err != nil {
		return summary, err
	}

	return summary, nil
}

// reconcileVideo validates one video record with its nested snapshots.
// A video-level fault rejects the whole record; a snapshot-level fault
// rejects only that snapshot. Returns nil when the video is rejected.
func (r *Reconciler) reconcileVideo(record VideoRecord, summary *Summary) *models.VideoWithSnapshots {
	video, fault := parseVideo(record)
	if fault != nil {
		summary.Failures = append(summary.Failures, *fault)
		return nil
	}

	snapshots := r.reconcileSnapshots(record, video, summary)

	// The cumulative counters must reflect the latest known snapshot.
	if len(snapshots) > 0 {
		latest := snapshots[len(snapshots)-1]
		if latest.ViewsCount != video.ViewsCount ||
			latest.LikesCount != video.LikesCount ||
			latest.CommentsCount != video.CommentsCount ||
			latest.ReportsCount != video.ReportsCount {
			summary.Notes = append(summary.Notes,
				fmt.Sprintf("video %s: cumulative counters corrected from latest snapshot %s", video.ID, latest.ID))
			video.ViewsCount = latest.ViewsCount
			video.LikesCount = latest.LikesCount
			video.CommentsCount = latest.CommentsCount
			video.ReportsCount = latest.ReportsCount
		}
	}

	return &models.VideoWithSnapshots{Video: *video, Snapshots: snapshots}
}

func (r *Reconciler) reconcileSnapshots(record VideoRecord, video *models.Video, summary *Summary) []models.VideoSnapshot {
	parsed := make([]models.VideoSnapshot, 0, len(record.Snapshots))
	for _, snapRecord := range record.Snapshots {
		snap, fault := parseSnapshot(snapRecord, video.ID)
		if fault != nil {
			summary.Failures = append(summary.Failures, *fault)
			continue
		}
		parsed = append(parsed, *snap)
	}

	if len(parsed) == 0 {
		return parsed
	}

	// Snapshots are totally ordered by created_at; a feed that supplies them
	// out of order carries stale deltas, so the chain is rebuilt instead of
	// trusted.
	reordered := !sort.SliceIsSorted(parsed, func(i, j int) bool {
		return parsed[i].CreatedAt.Before(parsed[j].CreatedAt)
	})
	if reordered {
		sort.SliceStable(parsed, func(i, j int) bool {
			return parsed[i].CreatedAt.Before(parsed[j].CreatedAt)
		})
		summary.Notes = append(summary.Notes,
			fmt.Sprintf("video %s: snapshots supplied out of order, deltas recomputed", video.ID))
	}

	accepted := make([]models.VideoSnapshot, 0, len(parsed))
	prevAbs := [4]int64{}

	for i := range parsed {
		snap := parsed[i]
		abs := absoluteCounts(snap)

		if reordered {
			ok := true
			for m := 0; m < 4; m++ {
				delta := abs[m] - prevAbs[m]
				if delta < 0 {
					summary.Failures = append(summary.Failures, RecordFault{
						VideoID:    video.ID.String(),
						SnapshotID: snap.ID.String(),
						Field:      metricNames[m],
						Reason:     fmt.Sprintf("absolute count decreased from %d to %d", prevAbs[m], abs[m]),
					})
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			setDeltaCounts(&snap, [4]int64{
				abs[0] - prevAbs[0],
				abs[1] - prevAbs[1],
				abs[2] - prevAbs[2],
				abs[3] - prevAbs[3],
			})
		} else {
			// Verify the reconciliation identity against the immediately
			// preceding supplied snapshot (zeros at video creation).
			deltas := deltaCounts(snap)
			fault := (*RecordFault)(nil)
			for m := 0; m < 4; m++ {
				expected := abs[m] - prevAbs[m]
				if expected < 0 {
					fault = &RecordFault{
						VideoID:    video.ID.String(),
						SnapshotID: snap.ID.String(),
						Field:      metricNames[m],
						Reason:     fmt.Sprintf("absolute count decreased from %d to %d", prevAbs[m], abs[m]),
					}
					break
				}
				if deltas[m] != expected {
					fault = &RecordFault{
						VideoID:    video.ID.String(),
						SnapshotID: snap.ID.String(),
						Field:      "delta_" + metricNames[m],
						Reason:     fmt.Sprintf("delta %d does not match absolute difference %d", deltas[m], expected),
					}
					break
				}
			}
			if fault != nil {
				summary.Failures = append(summary.Failures, *fault)
				prevAbs = abs
				continue
			}
		}

		accepted = append(accepted, snap)
		prevAbs = abs
	}

	return accepted
}

func parseVideo(record VideoRecord) (*models.Video, *RecordFault) {
	videoFault := func(field, reason string) *RecordFault {
		return &RecordFault{VideoID: record.ID, Field: field, Reason: reason}
	}

	if record.ID == "" {
		return nil, videoFault("id", "missing")
	}
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return nil, videoFault("id", "not a valid UUID")
	}

	if record.CreatorID == "" {
		return nil, videoFault("creator_id", "missing")
	}

	videoCreatedAt, err := parseTimestamp(record.VideoCreatedAt)
	if err != nil {
		return nil, videoFault("video_created_at", err.Error())
	}

	views, err := requireCount(record.ViewsCount)
	if err != nil {
		return nil, videoFault("views_count", err.Error())
	}
	likes, err := requireCount(record.LikesCount)
	if err != nil {
		return nil, videoFault("likes_count", err.Error())
	}
	comments, err := requireCount(record.CommentsCount)
	if err != nil {
		return nil, videoFault("comments_count", err.Error())
	}
	reports, err := requireCount(record.ReportsCount)
	if err != nil {
		return nil, videoFault("reports_count", err.Error())
	}

	// Record creation time defaults to ingestion time when absent.
	createdAt := time.Now().UTC()
	if record.CreatedAt != "" {
		createdAt, err = parseTimestamp(record.CreatedAt)
		if err != nil {
			return nil, videoFault("created_at", err.Error())
		}
	}

	var updatedAt *time.Time
	if record.UpdatedAt != "" {
		t, err := parseTimestamp(record.UpdatedAt)
		if err != nil {
			return nil, videoFault("updated_at", err.Error())
		}
		updatedAt = &t
	}

	return &models.Video{
		ID:             id,
		CreatorID:      record.CreatorID,
		VideoCreatedAt: videoCreatedAt,
		ViewsCount:     views,
		LikesCount:     likes,
		CommentsCount:  comments,
		ReportsCount:   reports,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

func parseSnapshot(record SnapshotRecord, videoID uuid.UUID) (*models.VideoSnapshot, *RecordFault) {
	snapFault := func(field, reason string) *RecordFault {
		return &RecordFault{VideoID: videoID.String(), SnapshotID: record.ID, Field: field, Reason: reason}
	}

	if record.ID == "" {
		return nil, snapFault("id", "missing")
	}
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return nil, snapFault("id", "not a valid UUID")
	}

	// A snapshot pointing at a different video than the one it is nested
	// under is a referential-integrity violation.
	if record.VideoID != videoID.String() {
		return nil, snapFault("video_id", fmt.Sprintf("does not match owning video %s", videoID))
	}

	createdAt, err := parseTimestamp(record.CreatedAt)
	if err != nil {
		return nil, snapFault("created_at", err.Error())
	}

	absFields := [4]*int64{record.ViewsCount, record.LikesCount, record.CommentsCount, record.ReportsCount}
	deltaFields := [4]*int64{record.DeltaViewsCount, record.DeltaLikesCount, record.DeltaCommentsCount, record.DeltaReportsCount}

	var abs, deltas [4]int64
	for m := 0; m < 4; m++ {
		abs[m], err = requireCount(absFields[m])
		if err != nil {
			return nil, snapFault(metricNames[m], err.Error())
		}
		deltas[m], err = requireCount(deltaFields[m])
		if err != nil {
			return nil, snapFault("delta_"+metricNames[m], err.Error())
		}
	}

	var updatedAt *time.Time
	if record.UpdatedAt != "" {
		t, err := parseTimestamp(record.UpdatedAt)
		if err != nil {
			return nil, snapFault("updated_at", err.Error())
		}
		updatedAt = &t
	}

	return &models.VideoSnapshot{
		ID:                 id,
		VideoID:            videoID,
		ViewsCount:         abs[0],
		LikesCount:         abs[1],
		CommentsCount:      abs[2],
		ReportsCount:       abs[3],
		DeltaViewsCount:    deltas[0],
		DeltaLikesCount:    deltas[1],
		DeltaCommentsCount: deltas[2],
		DeltaReportsCount:  deltas[3],
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("missing")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("not a valid ISO-8601 timestamp")
	}
	return t, nil
}

func requireCount(value *int64) (int64, error) {
	if value == nil {
		return 0, fmt.Errorf("missing")
	}
	if *value < 0 {
		return 0, fmt.Errorf("negative count %d", *value)
	}
	return *value, nil
}

func absoluteCounts(snap models.VideoSnapshot) [4]int64 {
	return [4]int64{snap.ViewsCount, snap.LikesCount, snap.CommentsCount, snap.ReportsCount}
}

func deltaCounts(snap models.VideoSnapshot) [4]int64 {
	return [4]int64{snap.DeltaViewsCount, snap.DeltaLikesCount, snap.DeltaCommentsCount, snap.DeltaReportsCount}
}

func setDeltaCounts(snap *models.VideoSnapshot, deltas [4]int64) {
	snap.DeltaViewsCount = deltas[0]
	snap.DeltaLikesCount = deltas[1]
	snap.DeltaCommentsCount = deltas[2]
	snap.DeltaReportsCount = deltas[3]
}
