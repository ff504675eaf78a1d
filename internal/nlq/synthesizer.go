package nlq

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"

	"github.com/grvbrk/vidmetrics_server/internal/llm"
)

// schemaPrompt is the fixed synthesis instruction set. It is embedded here,
// not user-controllable: the question is the only untrusted input.
const schemaPrompt = `You are an expert PostgreSQL Data Analyst.
Your task is to convert natural language questions into a SINGLE SQL query to retrieve a specific metric.
The database schema is as follows:

Table "videos":
- id (UUID string): Unique video identifier.
- creator_id (string): Creator identifier.
- video_created_at (timestamp): When the video was published.
- views_count (int): Current total view count.
- likes_count (int): Current total like count.
- comments_count (int): Current total comment count.
- reports_count (int): Current total report count.
- created_at (timestamp), updated_at (timestamp).

Table "video_snapshots" (hourly stats for each video):
- id (UUID string): Unique snapshot identifier.
- video_id (UUID string): FK to videos.id.
- created_at (timestamp): The time of this snapshot (hourly).
- views_count, likes_count, comments_count, reports_count: Values at that specific time.
- delta_views_count, delta_likes_count, delta_comments_count, delta_reports_count: The INCREASE since the previous snapshot.

IMPORTANT RULES:
1. Return ONLY the raw SQL query. Do not wrap it in markdown (` + "```sql ... ```" + `). Do not add explanations.
2. The query must return exactly ONE row with ONE column (a single number).
3. If the user asks for "how many videos", count rows in "videos".
4. If the user asks for "sum of view growth on date X", use SUM(delta_views_count) from "video_snapshots" where "created_at" is within that day.
5. Pay attention to dates. "November 28th" means created_at >= '2025-11-28 00:00:00' AND created_at < '2025-11-29 00:00:00'.
6. Use valid PostgreSQL syntax.`

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:sql)?[ \t]*\n?")
	trailingFence = regexp.MustCompile("\n?[ \t]*```$")
)

type Synthesizer struct {
	client llm.Client
	logger *log.Logger
}

func NewSynthesizer(client llm.Client, logger *log.Logger) *Synthesizer {
	return &Synthesizer{client: client, logger: logger}
}

// Synthesize turns a free-text question into a single candidate SQL string.
// The oracle output is normalized (fences, trailing semicolon) but not
// validated here; that is the validator's job. No automatic retry.
func (s *Synthesizer) Synthesize(ctx context.Context, question string) (string, error) {
	raw, err := s.client.Complete(ctx, schemaPrompt, question)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", failf(KindTimeout, "oracle call timed out: %w", err)
		}
		return "", failf(KindSynthesisFailure, "oracle call failed: %w", err)
	}

	query := normalizeCompletion(raw)
	if query == "" {
		return "", failf(KindSynthesisFailure, "oracle returned an empty completion")
	}

	s.logger.Printf("Generated SQL: %s", query)
	return query, nil
}

// normalizeCompletion strips formatting artifacts the oracle may add despite
// instructions: markdown code fences and a single trailing semicolon.
func normalizeCompletion(raw string) string {
	query := strings.TrimSpace(raw)
	query = leadingFence.ReplaceAllString(query, "")
	query = trailingFence.ReplaceAllString(query, "")
	query = strings.TrimSpace(query)
	query = strings.TrimSuffix(query, ";")
	return strings.TrimSpace(query)
}
