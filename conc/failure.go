package conc

// FailureKind classifies why an execution ended other than by a clean Stop
// of the main thread (§6, §7).
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureDeadlock
	FailureStmDeadlock
	FailureUncaughtException
	FailureInternalError
)

func (f FailureKind) String() string {
	switch f {
	case FailureNone:
		return "None"
	case FailureDeadlock:
		return "Deadlock"
	case FailureStmDeadlock:
		return "StmDeadlock"
	case FailureUncaughtException:
		return "UncaughtException"
	case FailureInternalError:
		return "InternalError"
	default:
		return "FailureKind(?)"
	}
}

// Failure is the error value an execution can end in (§6). Program-level
// failures (Deadlock, StmDeadlock, UncaughtException) are expected outcomes
// of one execution and never abort a campaign; InternalError means the
// scheduler violated its contract and the campaign must abort (§7).
type Failure struct {
	Kind FailureKind
	Err  error // populated for UncaughtException and InternalError
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return f.Kind.String() + ": " + f.Err.Error()
	}
	return f.Kind.String()
}

func newFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

// NewDeadlock builds the Failure a campaign records when no thread (and no
// pending commit) is runnable.
func NewDeadlock() *Failure { return newFailure(FailureDeadlock, nil) }

// NewStmDeadlock builds the Failure for the special case where every
// blocked thread is waiting on an STM transaction retry.
func NewStmDeadlock() *Failure { return newFailure(FailureStmDeadlock, nil) }
