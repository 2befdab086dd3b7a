package conc

// Decision records how the scheduler picked the thread for one trace entry
// (§6).
type Decision int

const (
	DecisionStart Decision = iota
	DecisionContinue
	DecisionSwitchTo
	DecisionCommit
)

func (d Decision) String() string {
	switch d {
	case DecisionStart:
		return "Start"
	case DecisionContinue:
		return "Continue"
	case DecisionSwitchTo:
		return "SwitchTo"
	case DecisionCommit:
		return "Commit"
	default:
		return "Decision(?)"
	}
}

// ThreadAction is the simplification of what a step actually did, attached
// to the trace entry for that step — enough detail for a human trace
// printer or the dependency oracle's "already executed" half, without
// retaining the full continuation closures (§3 Trace model).
type ThreadAction struct {
	Thread ThreadID
	Kind   Kind
	Var    VarID
	Ref    RefID
	Target ThreadID // meaningful only for ThrowTo and Commit
	Detail string   // e.g. "put", "take", "blocked", "woke T2" — human-readable, not parsed
}

// Lookahead is a one-step preview of a thread's pending action: enough
// shape for the dependency oracle to simplify without executing it (§4.6,
// §9 "Dependency relation via lookahead").
type Lookahead struct {
	Thread ThreadID
	Kind   Kind
	Var    VarID
	Ref    RefID
	Target ThreadID // meaningful only for ThrowTo and Commit
}

// TraceEntry is one step of a full execution trace (§6): the decision that
// picked the thread, the lookahead available for every runnable thread at
// that point (used by findBacktrack), and what actually happened.
type TraceEntry struct {
	Decision  Decision
	Runnable  []Lookahead
	Action    ThreadAction
	Preempted bool // this decision switched away from a still-runnable thread
}

// Trace is the ordered sequence of steps one execution produced.
type Trace []TraceEntry

// PreemptionCount is the number of decisions in the trace that switched
// away from a still-runnable thread (§4.7's preemption bound accounting).
func (t Trace) PreemptionCount() int {
	n := 0
	for _, e := range t {
		if e.Preempted {
			n++
		}
	}
	return n
}
