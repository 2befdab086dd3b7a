package bpor

import (
	"testing"

	"github.com/jwaldmann/dejafu/conc"
)

// raceTrace models two threads writing the same ref: thread 0 writes then
// stops, thread 1 writes then stops. Both were runnable at each decision, so
// findBacktrack should propose backtracking to explore thread 1 first.
func raceTrace() conc.Trace {
	write0 := conc.Lookahead{Thread: 0, Kind: conc.KWriteRef, Ref: 1}
	write1 := conc.Lookahead{Thread: 1, Kind: conc.KWriteRef, Ref: 1}
	stop0 := conc.Lookahead{Thread: 0, Kind: conc.KStop}
	stop1 := conc.Lookahead{Thread: 1, Kind: conc.KStop}
	return conc.Trace{
		{Action: conc.ThreadAction{Thread: 0, Kind: conc.KWriteRef, Ref: 1}, Runnable: []conc.Lookahead{write0, write1}},
		{Action: conc.ThreadAction{Thread: 0, Kind: conc.KStop}, Runnable: []conc.Lookahead{stop0, write1}},
		{Action: conc.ThreadAction{Thread: 1, Kind: conc.KWriteRef, Ref: 1}, Runnable: []conc.Lookahead{write1}},
		{Action: conc.ThreadAction{Thread: 1, Kind: conc.KStop}, Runnable: []conc.Lookahead{stop1}},
	}
}

func TestGrowBuildsADoneChainMatchingTheTrace(t *testing.T) {
	tree := NewTree(2, true)
	trace := raceTrace()
	tree.Grow(trace, true, nil)

	n := tree.Root
	for _, entry := range trace {
		child, ok := n.Done[entry.Action.Thread]
		if !ok {
			t.Fatalf("expected a Done edge for thread %d", entry.Action.Thread)
		}
		n = child
	}
}

func TestFindBacktrackProposesTheRacingThread(t *testing.T) {
	tree := NewTree(2, true)
	trace := raceTrace()
	candidates := tree.FindBacktrack(trace)

	found := false
	for _, c := range candidates {
		if c.Thread == 1 && c.Index == 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a candidate proposing thread 1 at index 0, got %+v", candidates)
	}
}

func TestInstallTodoThenNextReturnsTheDeepestTodo(t *testing.T) {
	tree := NewTree(2, true)
	trace := raceTrace()
	tree.Grow(trace, true, nil)
	tree.InstallTodo(tree.FindBacktrack(trace))

	prefix, ok := tree.Next()
	if !ok {
		t.Fatal("expected Next to find an installed todo")
	}
	if len(prefix.Decisions) == 0 || prefix.Decisions[len(prefix.Decisions)-1] != 1 {
		t.Fatalf("expected the last forced decision to be thread 1, got %v", prefix.Decisions)
	}
}

func TestNextReturnsFalseOnAnEmptyTree(t *testing.T) {
	tree := NewTree(2, true)
	if _, ok := tree.Next(); ok {
		t.Fatal("expected no todo in a freshly grown tree with nothing installed")
	}
}

func TestInstallTodoSkipsAlreadyExploredThread(t *testing.T) {
	tree := NewTree(2, true)
	trace := raceTrace()
	tree.Grow(trace, true, nil)

	// Thread 0 was already explored (it's the Done edge at index 0); a
	// candidate proposing it again must not be installed as a todo.
	tree.InstallTodo([]Candidate{{Index: 0, Thread: 0}})
	if tree.Root.Todo[0] {
		t.Fatal("installTodo installed a thread that already has a Done edge at that node")
	}
}
