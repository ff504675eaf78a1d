package nlq

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOracle is a deterministic text-completion oracle for tests.
type stubOracle struct {
	response string
	err      error
}

func (s *stubOracle) Complete(_ context.Context, _, _ string) (string, error) {
	return s.response, s.err
}

func testLogger() *log.Logger {
	return log.New(os.Stdout, "TEST: ", 0)
}

func TestSynthesizeReturnsNormalizedQuery(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"raw sql", "SELECT COUNT(*) FROM videos", "SELECT COUNT(*) FROM videos"},
		{"sql fence", "```sql\nSELECT COUNT(*) FROM videos\n```", "SELECT COUNT(*) FROM videos"},
		{"bare fence", "```\nSELECT COUNT(*) FROM videos\n```", "SELECT COUNT(*) FROM videos"},
		{"trailing semicolon", "SELECT COUNT(*) FROM videos;", "SELECT COUNT(*) FROM videos"},
		{"fence and semicolon", "```sql\nSELECT COUNT(*) FROM videos;\n```", "SELECT COUNT(*) FROM videos"},
		{"surrounding whitespace", "  \nSELECT COUNT(*) FROM videos \n ", "SELECT COUNT(*) FROM videos"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSynthesizer(&stubOracle{response: tc.response}, testLogger())

			query, err := s.Synthesize(context.Background(), "How many videos are there?")
			require.NoError(t, err)
			assert.Equal(t, tc.want, query)
		})
	}
}

func TestSynthesizeEmptyCompletionIsSynthesisFailure(t *testing.T) {
	s := NewSynthesizer(&stubOracle{response: "```sql\n```"}, testLogger())

	_, err := s.Synthesize(context.Background(), "How many videos are there?")
	require.Error(t, err)

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, KindSynthesisFailure, failure.Kind)
}

func TestSynthesizeOracleErrorIsSynthesisFailure(t *testing.T) {
	oracleErr := fmt.Errorf("request failed: connection refused")
	s := NewSynthesizer(&stubOracle{err: oracleErr}, testLogger())

	_, err := s.Synthesize(context.Background(), "How many videos are there?")
	require.Error(t, err)

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, KindSynthesisFailure, failure.Kind)
	assert.ErrorIs(t, err, oracleErr)
}

func TestSynthesizeOracleTimeoutIsTimeout(t *testing.T) {
	oracleErr := fmt.Errorf("request failed: %w", context.DeadlineExceeded)
	s := NewSynthesizer(&stubOracle{err: oracleErr}, testLogger())

	_, err := s.Synthesize(context.Background(), "How many videos are there?")
	require.Error(t, err)

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, KindTimeout, failure.Kind)
}
