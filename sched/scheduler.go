// Package sched defines the pluggable scheduler contract (§6) and a
// round-robin fallback the BPOR driver delegates residual decisions to once
// its forced prefix is exhausted and the thread that ran last can no longer
// continue.
package sched

import "github.com/jwaldmann/dejafu/conc"

// Runnable pairs a runnable thread with a preview of what it would do next.
// The contract calls for a non-empty list of Lookahead per thread; in this
// interpreter every thread has exactly one pending action; the slice always
// has length one, kept as a slice to match the contract's shape.
type Runnable struct {
	ID         conc.ThreadID
	Lookaheads []conc.Lookahead
}

// State is opaque scheduler-private state threaded across Pick calls.
type State interface{}

// Scheduler is the pluggable extension point (§6): given the previous
// decision and the current runnable set, pick who goes next. Picking a
// thread absent from runnable is a contract violation the caller must treat
// as InternalError.
type Scheduler interface {
	Pick(state State, prior *conc.ThreadAction, runnable []Runnable) (conc.ThreadID, State)
}

// RoundRobin is the simplest conforming scheduler: cycle through runnable
// threads in ascending ID order, resuming after whichever thread ran last.
// It is not a polished exploration strategy — it exists so the BPOR driver
// has somewhere to delegate once its forced prefix runs out and the thread
// that ran last is no longer runnable.
type RoundRobin struct{}

type roundRobinState struct {
	last conc.ThreadID
	seen bool
}

func (RoundRobin) Pick(state State, prior *conc.ThreadAction, runnable []Runnable) (conc.ThreadID, State) {
	st, _ := state.(roundRobinState)
	if prior != nil {
		st.last = prior.Thread
		st.seen = true
	}
	if len(runnable) == 0 {
		return 0, st
	}
	if !st.seen {
		return runnable[0].ID, roundRobinState{last: runnable[0].ID, seen: true}
	}
	for _, r := range runnable {
		if r.ID > st.last {
			return r.ID, roundRobinState{last: r.ID, seen: true}
		}
	}
	return runnable[0].ID, roundRobinState{last: runnable[0].ID, seen: true}
}
