// Package runner implements runTest (§5, §6): the campaign loop that drives
// a program under test through repeated executions, each scheduled by the
// BPOR driver, until the tree is exhausted or a configured execution limit
// is reached.
package runner

import (
	"github.com/jwaldmann/dejafu/bpor"
	"github.com/jwaldmann/dejafu/conc"
	"github.com/jwaldmann/dejafu/sched"
)

// Program is the entry point of one thread-0 computation under test.
type Program func() conc.Action

// Execution is the outcome of one scheduled run: its full trace, and a
// Failure if it ended in anything other than a clean Stop of thread 0.
// Truncated marks an execution the campaign gave up on for exceeding
// MaxSteps, not because the program itself misbehaved.
type Execution struct {
	Trace     conc.Trace
	Failure   *conc.Failure
	Truncated bool
}

// Config bounds one campaign.
type Config struct {
	MemType    conc.MemType
	Bound      int // preemption bound k (§4.7, default 2)
	MaxSteps   int // per-execution step cap guarding a runaway program
	MaxRuns    int // campaign-wide execution cap guarding an unbounded tree
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{MemType: conc.SequentialConsistency, Bound: 2, MaxSteps: 100000, MaxRuns: 100000}
}

// Result is the full campaign output.
type Result struct {
	Executions []Execution
	Aborted    *conc.Failure // set iff a scheduler contract violation aborted the campaign (§7)
}

// RunTest runs program systematically under cfg: one free exploration to
// seed the tree, then repeated forced-prefix executions until next()
// reports nothing left to explore or the run budget is exhausted (§4.7,
// §5's "runTest").
func RunTest(program Program, cfg Config) Result {
	tree := bpor.NewTree(cfg.Bound, cfg.MemType == conc.SequentialConsistency)
	var result Result

	first := runOnce(program, cfg.MemType, cfg.MaxSteps, bpor.ForcedScheduler{Fallback: sched.RoundRobin{}})
	result.Executions = append(result.Executions, first)
	if first.Failure != nil && first.Failure.Kind == conc.FailureInternalError {
		result.Aborted = first.Failure
		return result
	}
	growAndBacktrack(tree, first, cfg)

	for len(result.Executions) < cfg.MaxRuns {
		prefix, ok := tree.Next()
		if !ok {
			break
		}
		exec := runOnce(program, cfg.MemType, cfg.MaxSteps, bpor.ForcedScheduler{
			Prefix:   prefix.Decisions,
			Fallback: sched.RoundRobin{},
		})
		result.Executions = append(result.Executions, exec)
		if exec.Failure != nil && exec.Failure.Kind == conc.FailureInternalError {
			result.Aborted = exec.Failure
			break
		}
		growAndBacktrack(tree, exec, cfg)
	}
	return result
}

func growAndBacktrack(tree *bpor.Tree, exec Execution, cfg Config) {
	sc := cfg.MemType == conc.SequentialConsistency
	tree.Grow(exec.Trace, sc, nil)
	tree.InstallTodo(tree.FindBacktrack(exec.Trace))
	tree.PruneCommits()
}

// runOnce drives one execution to termination, deadlock, or MaxSteps,
// building its trace as it goes (§4.8, §6's Trace shape).
func runOnce(program Program, memType conc.MemType, maxSteps int, scheduler sched.Scheduler) Execution {
	w := conc.NewWorld(memType, program())
	var trace conc.Trace
	var state sched.State
	var prior *conc.ThreadAction

	for step := 0; ; step++ {
		if w.Terminated() {
			return Execution{Trace: trace}
		}
		if step >= maxSteps {
			return Execution{Trace: trace, Truncated: true}
		}
		// A local deadlock (§4.4) can hold well before every thread in the
		// world is stuck — main and whatever it knows about may be wedged
		// while an unrelated thread keeps running on its own. Check it
		// ahead of GlobalDeadlock so such an execution ends as soon as
		// main's own corner of the world is settled, instead of waiting on
		// unrelated threads to run out their own schedule first.
		if w.LocalDeadlock() {
			return Execution{Trace: trace, Failure: classifyDeadlock(w)}
		}
		runnableIDs := w.Runnable()
		if len(runnableIDs) == 0 {
			return Execution{Trace: trace, Failure: classifyDeadlock(w)}
		}

		opts := make([]sched.Runnable, len(runnableIDs))
		lookaheads := make([]conc.Lookahead, len(runnableIDs))
		for i, tid := range runnableIDs {
			la := w.Lookahead(tid)
			lookaheads[i] = la
			opts[i] = sched.Runnable{ID: tid, Lookaheads: []conc.Lookahead{la}}
		}

		tid, newState := scheduler.Pick(state, prior, opts)
		state = newState

		ta, failure := conc.Step(w, tid)
		if failure != nil {
			return Execution{Trace: trace, Failure: failure}
		}

		preempted := false
		if prior != nil && prior.Thread != tid {
			for _, r := range runnableIDs {
				if r == prior.Thread {
					preempted = true
					break
				}
			}
		}
		trace = append(trace, conc.TraceEntry{
			Decision:  decisionFor(prior, tid),
			Runnable:  lookaheads,
			Action:    ta,
			Preempted: preempted,
		})
		taCopy := ta
		prior = &taCopy
	}
}

func decisionFor(prior *conc.ThreadAction, tid conc.ThreadID) conc.Decision {
	switch {
	case prior == nil:
		return conc.DecisionStart
	case tid.IsCommit():
		return conc.DecisionCommit
	case prior.Thread == tid:
		return conc.DecisionContinue
	default:
		return conc.DecisionSwitchTo
	}
}

// classifyDeadlock distinguishes StmDeadlock (every blocked thread is
// waiting on a transaction retry) from a plain Deadlock (§4.4, §7). It's
// used for both GlobalDeadlock and LocalDeadlock endings: the distinction
// between the two is which threads had to be stuck, not what kind of stuck.
func classifyDeadlock(w *conc.World) *conc.Failure {
	if w.AllBlockedOnStm() {
		return conc.NewStmDeadlock()
	}
	return conc.NewDeadlock()
}
