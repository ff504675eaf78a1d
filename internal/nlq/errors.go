package nlq

import "fmt"

type FailureKind string

const (
	KindSynthesisFailure    FailureKind = "synthesis_failure"
	KindValidationRejection FailureKind = "validation_rejection"
	KindExecutionFailure    FailureKind = "execution_failure"
	KindShapeViolation      FailureKind = "shape_violation"
	KindTimeout             FailureKind = "timeout"
)

// Failure is a per-question pipeline failure. It is caught at the handler
// boundary and turned into a generic user message plus a detailed log entry;
// it never crashes the serving process.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func failf(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Err: fmt.Errorf(format, args...)}
}
