package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/grvbrk/vidmetrics_server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMetricsStore records every committed batch. Batches are copied because
// the reconciler reuses its batch buffer between commits.
type fakeMetricsStore struct {
	batches [][]models.VideoWithSnapshots
	err     error
}

func (f *fakeMetricsStore) UpsertBatch(_ context.Context, batch []models.VideoWithSnapshots) error {
	if f.err != nil {
		return f.err
	}
	copied := make([]models.VideoWithSnapshots, len(batch))
	copy(copied, batch)
	f.batches = append(f.batches, copied)
	return nil
}

func (f *fakeMetricsStore) committed() []models.VideoWithSnapshots {
	var all []models.VideoWithSnapshots
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

func i64(v int64) *int64 { return &v }

func testReconciler(store *fakeMetricsStore) *Reconciler {
	return NewReconciler(store, log.New(os.Stdout, "TEST: ", 0))
}

func validVideoRecord(id uuid.UUID, views int64) VideoRecord {
	return VideoRecord{
		ID:             id.String(),
		CreatorID:      "creator-1",
		VideoCreatedAt: "2025-11-28T10:00:00+00:00",
		ViewsCount:     i64(views),
		LikesCount:     i64(0),
		CommentsCount:  i64(0),
		ReportsCount:   i64(0),
		CreatedAt:      "2025-11-28T10:00:00+00:00",
	}
}

func snapshotRecord(id, videoID uuid.UUID, createdAt string, views, deltaViews int64) SnapshotRecord {
	return SnapshotRecord{
		ID:                 id.String(),
		VideoID:            videoID.String(),
		ViewsCount:         i64(views),
		LikesCount:         i64(0),
		CommentsCount:      i64(0),
		ReportsCount:       i64(0),
		DeltaViewsCount:    i64(deltaViews),
		DeltaLikesCount:    i64(0),
		DeltaCommentsCount: i64(0),
		DeltaReportsCount:  i64(0),
		CreatedAt:          createdAt,
	}
}

func TestRunCommitsValidVideosAndSnapshots(t *testing.T) {
	store := &fakeMetricsStore{}
	videoID := uuid.New()

	video := validVideoRecord(videoID, 35)
	video.Snapshots = []SnapshotRecord{
		snapshotRecord(uuid.New(), videoID, "2025-11-28T11:00:00+00:00", 10, 10),
		snapshotRecord(uuid.New(), videoID, "2025-11-28T12:00:00+00:00", 30, 20),
		snapshotRecord(uuid.New(), videoID, "2025-11-28T13:00:00+00:00", 35, 5),
	}

	summary, err := testReconciler(store).Run(context.Background(), Feed{Videos: []VideoRecord{video}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.VideosCommitted)
	assert.Equal(t, 3, summary.SnapshotsCommitted)
	assert.Empty(t, summary.Failures)

	committed := store.committed()
	require.Len(t, committed, 1)
	require.Len(t, committed[0].Snapshots, 3)
}

func TestRunReconciliationIdentityHolds(t *testing.T) {
	store := &fakeMetricsStore{}
	videoID := uuid.New()

	video := validVideoRecord(videoID, 35)
	video.Snapshots = []SnapshotRecord{
		snapshotRecord(uuid.New(), videoID, "2025-11-28T11:00:00+00:00", 10, 10),
		snapshotRecord(uuid.New(), videoID, "2025-11-28T12:00:00+00:00", 30, 20),
		snapshotRecord(uuid.New(), videoID, "2025-11-28T13:00:00+00:00", 35, 5),
	}

	_, err := testReconciler(store).Run(context.Background(), Feed{Videos: []VideoRecord{video}})
	require.NoError(t, err)

	committed := store.committed()
	require.Len(t, committed, 1)

	// sum(delta over S1..Sk) == absolute(Sk) for every k
	var runningSum int64
	for _, snap := range committed[0].Snapshots {
		runningSum += snap.DeltaViewsCount
		assert.Equal(t, snap.ViewsCount, runningSum)
	}
}

func TestRunRejectsVideoWithMissingField(t *testing.T) {
	store := &fakeMetricsStore{}

	bad := validVideoRecord(uuid.New(), 10)
	bad.CreatorID = ""
	good := validVideoRecord(uuid.New(), 20)

	summary, err := testReconciler(store).Run(context.Background(), Feed{Videos: []VideoRecord{bad, good}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.VideosCommitted)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "creator_id", summary.Failures[0].Field)
	assert.Equal(t, bad.ID, summary.Failures[0].VideoID)
}

func TestRunRejectsMalformedTimestamp(t *testing.T) {
	store := &fakeMetricsStore{}

	bad := validVideoRecord(uuid.New(), 10)
	bad.VideoCreatedAt = "yesterday"

	summary, err := testReconciler(store).Run(context.Background(), Feed{Videos: []VideoRecord{bad}})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.VideosCommitted)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "video_created_at", summary.Failures[0].Field)
}

func TestRunRejectsSnapshotWithForeignVideoID(t *testing.T) {
	store := &fakeMetricsStore{}
	videoID := uuid.New()

	video := validVideoRecord(videoID, 10)
	stray := snapshotRecord(uuid.New(), uuid.New(), "2025-11-28T11:00:00+00:00", 10, 10)
	ok := snapshotRecord(uuid.New(), videoID, "2025-11-28T11:00:00+00:00", 10, 10)
	video.Snapshots = []SnapshotRecord{stray, ok}

	summary, err := testReconciler(store).Run(context.Background(), Feed{Videos: []VideoRecord{video}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.VideosCommitted)
	assert.Equal(t, 1, summary.SnapshotsCommitted)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "video_id", summary.Failures[0].Field)

	committed := store.committed()
	require.Len(t, committed[0].Snapshots, 1)
	assert.Equal(t, ok.ID, committed[0].Snapshots[0].ID.String())
}

func TestRunRejectsSnapshotWithDeltaMismatch(t *testing.T) {
	store := &fakeMetricsStore{}
	videoID := uuid.New()

	video := validVideoRecord(videoID, 30)
	video.Snapshots = []SnapshotRecord{
		snapshotRecord(uuid.New(), videoID, "2025-11-28T11:00:00+00:00", 10, 10),
		// delta claims 15 but the absolute moved 10 -> 30
		snapshotRecord(uuid.New(), videoID, "2025-11-28T12:00:00+00:00", 30, 15),
	}

	summary, err := testReconciler(store).Run(context.Background(), Feed{Videos: []VideoRecord{video}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SnapshotsCommitted)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "delta_views_count", summary.Failures[0].Field)
}

func TestRunVerifiesFirstSnapshotAgainstVideoCreation(t *testing.T) {
	store := &fakeMetricsStore{}
	videoID := uuid.New()

	// Mid-history snapshot: absolute 100 but delta only 10. The feed contract
	// is full history per video, so the first delta must cover the whole
	// absolute value.
	video := validVideoRecord(videoID, 100)
	video.Snapshots = []SnapshotRecord{
		snapshotRecord(uuid.New(), videoID, "2025-11-28T11:00:00+00:00", 100, 10),
	}

	summary, err := testReconciler(store).Run(context.Background(), Feed{Videos: []VideoRecord{video}})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SnapshotsCommitted)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "delta_views_count", summary.Failures[0].Field)
}

func TestRunRejectsNegativeDelta(t *testing.T) {
	store := &fakeMetricsStore{}
	videoID := uuid.New()

	video := validVideoRecord(videoID, 10)
	snap := snapshotRecord(uuid.New(), videoID, "2025-11-28T11:00:00+00:00", 10, 10)
	snap.DeltaLikesCount = i64(-3)
	video.Snapshots = []SnapshotRecord{snap}

	summary, err := testReconciler(store).Run(context.Background(), Feed{Videos: []VideoRecord{video}})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SnapshotsCommitted)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "delta_likes_count", summary.Failures[0].Field)
}

func TestRunRejectsDecreasingAbsoluteCounts(t *testing.T) {
	store := &fakeMetricsStore{}
	videoID := uuid.New()

	video := validVideoRecord(videoID, 5)
	video.Snapshots = []SnapshotRecord{
		snapshotRecord(uuid.New(), videoID, "2025-11-28T11:00:00+00:00", 10, 10),
		// counts never decrease; this is a data-quality fault, not a clamp
		snapshotRecord(uuid.New(), videoID, "2025-11-28T12:00:00+00:00", 5, 0),
	}

	summary, err := testReconciler(store).Run(context.Background(), Feed{Videos: []VideoRecord{video}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SnapshotsCommitted)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[0].Reason, "decreased")
}

func TestRunRecomputesDeltasForOutOfOrderSnapshots(t *testing.T) {
	store := &fakeMetricsStore{}
	videoID := uuid.New()

	video := validVideoRecord(videoID, 30)
	video.Snapshots = []SnapshotRecord{
		snapshotRecord(uuid.New(), videoID, "2025-11-28T12:00:00+00:00", 30, 20),
		snapshotRecord(uuid.New(), videoID, "2025-11-28T11:00:00+00:00", 10, 10),
	}

	summary, err := testReconciler(store).Run(context.Background(), Feed{Videos: []VideoRecord{video}})
	require.NoError(t, err)

	require.Len(t, summary.Notes, 1)
	assert.Contains(t, summary.Notes[0], "out of order")

	committed := store.committed()
	require.Len(t, committed[0].Snapshots, 2)
	assert.Equal(t, int64(10), committed[0].Snapshots[0].ViewsCount)
	assert.Equal(t, int64(10), committed[0].Snapshots[0].DeltaViewsCount)
	assert.Equal(t, int64(30), committed[0].Snapshots[1].ViewsCount)
	assert.Equal(t, int64(20), committed[0].Snapshots[1].DeltaViewsCount)
}

func TestRunCorrectsCumulativeCountersFromLatestSnapshot(t *testing.T) {
	store := &fakeMetricsStore{}
	videoID := uuid.New()

	video := validVideoRecord(videoID, 9999)
	video.Snapshots = []SnapshotRecord{
		snapshotRecord(uuid.New(), videoID, "2025-11-28T11:00:00+00:00", 10, 10),
		snapshotRecord(uuid.New(), videoID, "2025-11-28T12:00:00+00:00", 30, 20),
	}

	summary, err := testReconciler(store).Run(context.Background(), Feed{Videos: []VideoRecord{video}})
	require.NoError(t, err)

	require.Len(t, summary.Notes, 1)
	assert.Contains(t, summary.Notes[0], "corrected")

	committed := store.committed()
	assert.Equal(t, int64(30), committed[0].Video.ViewsCount)
}

func TestRunCommitsInBatchesOfFifty(t *testing.T) {
	store := &fakeMetricsStore{}

	var records []VideoRecord
	for i := 0; i < 120; i++ {
		records = append(records, validVideoRecord(uuid.New(), int64(i)))
	}

	summary, err := testReconciler(store).Run(context.Background(), Feed{Videos: records})
	require.NoError(t, err)

	assert.Equal(t, 120, summary.VideosCommitted)
	require.Len(t, store.batches, 3)
	assert.Len(t, store.batches[0], 50)
	assert.Len(t, store.batches[1], 50)
	assert.Len(t, store.batches[2], 20)
}

func TestRunStoreFailureIsFatal(t *testing.T) {
	storeErr := errors.New("connection refused")
	store := &fakeMetricsStore{err: storeErr}

	_, err := testReconciler(store).Run(context.Background(), Feed{Videos: []VideoRecord{validVideoRecord(uuid.New(), 1)}})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}

func TestRunIsDeterministicAcrossRuns(t *testing.T) {
	videoID := uuid.New()
	video := validVideoRecord(videoID, 35)
	video.Snapshots = []SnapshotRecord{
		snapshotRecord(uuid.New(), videoID, "2025-11-28T11:00:00+00:00", 10, 10),
		snapshotRecord(uuid.New(), videoID, "2025-11-28T12:00:00+00:00", 30, 20),
		snapshotRecord(uuid.New(), videoID, "2025-11-28T13:00:00+00:00", 35, 5),
	}
	feed := Feed{Videos: []VideoRecord{video}}

	first := &fakeMetricsStore{}
	second := &fakeMetricsStore{}

	_, err := testReconciler(first).Run(context.Background(), feed)
	require.NoError(t, err)
	_, err = testReconciler(second).Run(context.Background(), feed)
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("%+v", first.committed()), fmt.Sprintf("%+v", second.committed()))
}
