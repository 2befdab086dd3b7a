package bpor

import (
	"github.com/jwaldmann/dejafu/conc"
	"github.com/jwaldmann/dejafu/sched"
)

// ForcedScheduler is the scheduler the driver installs for one execution
// (§6): it forces the tree-selected prefix in order, then keeps running the
// thread that ran last for as long as it stays runnable, and delegates every
// other residual decision to Fallback. The residual run therefore adds no
// preemptions of its own.
type ForcedScheduler struct {
	Prefix   []conc.ThreadID
	Fallback sched.Scheduler
}

// ForcedState threads the prefix cursor alongside the fallback's own state.
type ForcedState struct {
	Index    int
	Fallback sched.State
}

func (f ForcedScheduler) Pick(state sched.State, prior *conc.ThreadAction, runnable []sched.Runnable) (conc.ThreadID, sched.State) {
	st, _ := state.(ForcedState)
	if st.Index < len(f.Prefix) {
		return f.Prefix[st.Index], ForcedState{Index: st.Index + 1, Fallback: st.Fallback}
	}
	if prior != nil {
		for _, r := range runnable {
			if r.ID == prior.Thread {
				return prior.Thread, st
			}
		}
	}
	tid, fbState := f.Fallback.Pick(st.Fallback, prior, runnable)
	return tid, ForcedState{Index: st.Index, Fallback: fbState}
}
