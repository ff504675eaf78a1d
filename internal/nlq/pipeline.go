package nlq

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/grvbrk/vidmetrics_server/internal/store"
)

// Executor runs a validated query and extracts the single scalar value.
// Satisfied by store.PostgresScalarStore.
type Executor interface {
	QueryScalar(ctx context.Context, query string) (float64, error)
}

type OutcomeKind string

const (
	OutcomeScalar   OutcomeKind = "scalar"
	OutcomeNoResult OutcomeKind = "no_result"
	OutcomeFailure  OutcomeKind = "failure"
)

type Outcome struct {
	Kind    OutcomeKind
	Value   float64
	Failure *Failure
}

// Pipeline is the generate -> validate -> execute chain. Each stage is
// independently testable; the pipeline just wires them and maps errors to
// outcomes. There is no regenerate-on-failure loop: a failed or invalid
// query is reported to the caller as-is.
type Pipeline struct {
	synthesizer *Synthesizer
	executor    Executor
	logger      *log.Logger
}

func NewPipeline(synthesizer *Synthesizer, executor Executor, logger *log.Logger) *Pipeline {
	return &Pipeline{
		synthesizer: synthesizer,
		executor:    executor,
		logger:      logger,
	}
}

func (p *Pipeline) Ask(ctx context.Context, question string) Outcome {
	query, err := p.synthesizer.Synthesize(ctx, question)
	if err != nil {
		return failureOutcome(err)
	}

	if err := ValidateQuery(query); err != nil {
		p.logger.Printf("Rejected generated query %q: %v", query, err)
		return failureOutcome(err)
	}

	value, err := p.executor.QueryScalar(ctx, query)
	if err != nil {
		if errors.Is(err, store.ErrNoResult) {
			return Outcome{Kind: OutcomeNoResult}
		}

		var shapeErr *store.ShapeError
		if errors.As(err, &shapeErr) {
			return failureOutcome(failf(KindShapeViolation, "%w", err))
		}

		if errors.Is(err, context.DeadlineExceeded) {
			return failureOutcome(failf(KindTimeout, "query execution timed out: %w", err))
		}

		return failureOutcome(failf(KindExecutionFailure, "%w", err))
	}

	return Outcome{Kind: OutcomeScalar, Value: value}
}

func failureOutcome(err error) Outcome {
	var failure *Failure
	if !errors.As(err, &failure) {
		failure = &Failure{Kind: KindExecutionFailure, Err: err}
	}
	return Outcome{Kind: OutcomeFailure, Failure: failure}
}

// Message maps an outcome to its user-facing form. Failures collapse to a
// generic apology; the details belong in the log, never in the reply.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeScalar:
		return strconv.FormatFloat(o.Value, 'f', -1, 64)
	case OutcomeNoResult:
		return "No data found for that question."
	default:
		return "Something went wrong while answering your question. Please try again."
	}
}
