package sched

import (
	"testing"

	"github.com/jwaldmann/dejafu/conc"
)

func runnables(ids ...conc.ThreadID) []Runnable {
	out := make([]Runnable, len(ids))
	for i, id := range ids {
		out[i] = Runnable{ID: id}
	}
	return out
}

func TestRoundRobinCyclesAscending(t *testing.T) {
	var rr RoundRobin
	var state State
	var prior *conc.ThreadAction

	ids := []conc.ThreadID{0, 1, 2}
	var order []conc.ThreadID
	for i := 0; i < 6; i++ {
		tid, next := rr.Pick(state, prior, runnables(ids...))
		order = append(order, tid)
		state = next
		prior = &conc.ThreadAction{Thread: tid}
	}
	want := []conc.ThreadID{0, 1, 2, 0, 1, 2}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRoundRobinSkipsThreadsThatAreNotRunnable(t *testing.T) {
	var rr RoundRobin
	var state State
	prior := &conc.ThreadAction{Thread: 1}
	tid, _ := rr.Pick(state, prior, runnables(0, 3))
	if tid != 3 {
		t.Fatalf("got %v, want 3 (next runnable ID above the prior thread)", tid)
	}
}
