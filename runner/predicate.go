package runner

import (
	"reflect"

	"github.com/jwaldmann/dejafu/bpor"
	"github.com/jwaldmann/dejafu/conc"
	"github.com/jwaldmann/dejafu/sched"
)

// Predicate judges a single execution's outcome. Built-ins here cover the
// S1-S6 scenario assertions (§8); a campaign checks a predicate with Always
// or Sometimes depending on whether the property must hold everywhere or
// just somewhere in the explored space.
type Predicate func(Execution) bool

// AlwaysDeadlocks (as a per-execution test) is true for an execution that
// deadlocked, either plainly or via STM retry.
func AlwaysDeadlocks(e Execution) bool {
	return e.Failure != nil && (e.Failure.Kind == conc.FailureDeadlock || e.Failure.Kind == conc.FailureStmDeadlock)
}

// NeverDeadlocks is true for an execution that did not deadlock.
func NeverDeadlocks(e Execution) bool { return !AlwaysDeadlocks(e) }

// Always reports whether p holds for every execution in the campaign.
func Always(execs []Execution, p Predicate) bool {
	for _, e := range execs {
		if !p(e) {
			return false
		}
	}
	return true
}

// Sometimes reports whether p holds for at least one execution.
func Sometimes(execs []Execution, p Predicate) bool {
	for _, e := range execs {
		if p(e) {
			return true
		}
	}
	return false
}

// Deterministic implements P1: running program with the exact same forced
// decision sequence twice must produce equal traces and equal failures.
func Deterministic(program Program, memType conc.MemType, maxSteps int, decisions []conc.ThreadID) bool {
	run := func() Execution {
		return runOnce(program, memType, maxSteps, bpor.ForcedScheduler{
			Prefix:   decisions,
			Fallback: sched.RoundRobin{},
		})
	}
	a, b := run(), run()
	return executionsEqual(a, b)
}

func executionsEqual(a, b Execution) bool {
	if a.Truncated != b.Truncated {
		return false
	}
	if (a.Failure == nil) != (b.Failure == nil) {
		return false
	}
	if a.Failure != nil && a.Failure.Kind != b.Failure.Kind {
		return false
	}
	if len(a.Trace) != len(b.Trace) {
		return false
	}
	for i := range a.Trace {
		if a.Trace[i].Action.Thread != b.Trace[i].Action.Thread {
			return false
		}
		if a.Trace[i].Action.Kind != b.Trace[i].Action.Kind {
			return false
		}
		if !reflect.DeepEqual(a.Trace[i].Action.Ref, b.Trace[i].Action.Ref) {
			return false
		}
		if !reflect.DeepEqual(a.Trace[i].Action.Var, b.Trace[i].Action.Var) {
			return false
		}
	}
	return true
}
