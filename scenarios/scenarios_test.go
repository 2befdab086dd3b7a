package scenarios

import (
	"testing"

	"github.com/jwaldmann/dejafu/conc"
	"github.com/jwaldmann/dejafu/memmodel"
	"github.com/jwaldmann/dejafu/runner"
)

func runScenario(t *testing.T, s Scenario, observations *[]memmodel.Outcome) runner.Result {
	t.Helper()
	cfg := runner.DefaultConfig()
	cfg.MemType = s.MemType
	cfg.MaxRuns = 2000
	observe := func(vals ...interface{}) {
		if observations != nil {
			*observations = append(*observations, memmodel.Outcome(vals))
		}
	}
	res := runner.RunTest(s.New(observe), cfg)
	if res.Aborted != nil {
		t.Fatalf("%s: campaign aborted: %v", s.Name, res.Aborted)
	}
	if len(res.Executions) == 0 {
		t.Fatalf("%s: no executions explored", s.Name)
	}
	return res
}

func TestTwoDeadlockAlwaysDeadlocks(t *testing.T) {
	res := runScenario(t, TwoDeadlock, nil)
	if !runner.Always(res.Executions, runner.AlwaysDeadlocks) {
		t.Fatal("two-deadlock: expected every execution to deadlock")
	}
}

func TestDiningPhilosophersSometimesDeadlocks(t *testing.T) {
	res := runScenario(t, DiningPhilosophers, nil)
	if !runner.Sometimes(res.Executions, runner.AlwaysDeadlocks) {
		t.Fatal("dining-philosophers: expected at least one deadlocking interleaving")
	}
	if !runner.Sometimes(res.Executions, runner.NeverDeadlocks) {
		t.Fatal("dining-philosophers: expected at least one clean interleaving")
	}
}

func TestForgottenUnlockAlwaysDeadlocks(t *testing.T) {
	res := runScenario(t, ForgottenUnlock, nil)
	if !runner.Always(res.Executions, runner.AlwaysDeadlocks) {
		t.Fatal("forgotten-unlock: expected every execution to deadlock")
	}
}

func TestRacyReadObservesBothValues(t *testing.T) {
	var seen []memmodel.Outcome
	res := runScenario(t, RacyRead, &seen)
	if !runner.Always(res.Executions, runner.NeverDeadlocks) {
		t.Fatal("racy-read: expected no execution to deadlock")
	}
	set := memmodel.NewOutcomeSet()
	for _, o := range seen {
		set.Add(o)
	}
	want := memmodel.NewOutcomeSet()
	want.Add(memmodel.Outcome{0})
	want.Add(memmodel.Outcome{1})
	if !set.Contains(want) {
		t.Fatalf("racy-read: expected to observe both 0 and 1, got %s", set)
	}
}

func TestDekkerReorderCanObserveBothZero(t *testing.T) {
	var seen []memmodel.Outcome
	res := runScenario(t, DekkerReorder, &seen)
	if !runner.Always(res.Executions, runner.NeverDeadlocks) {
		t.Fatal("dekker-reorder: expected no execution to deadlock")
	}
	set := memmodel.NewOutcomeSet()
	for i := 0; i+1 < len(seen); i += 2 {
		set.Add(memmodel.Outcome{seen[i][0], seen[i+1][0]})
	}
	bothZero := memmodel.Outcome{0, 0}
	if !set.Has(bothZero) {
		t.Fatalf("dekker-reorder: expected a TotalStoreOrder execution where both threads read 0, got %s", set)
	}
}

func TestDekkerReorderNeverBothZeroUnderSC(t *testing.T) {
	sc := DekkerReorder
	sc.MemType = conc.SequentialConsistency
	var seen []memmodel.Outcome
	runScenario(t, sc, &seen)
	for i := 0; i+1 < len(seen); i += 2 {
		if seen[i][0] == 0 && seen[i+1][0] == 0 {
			t.Fatalf("dekker-reorder under sequential consistency: both threads read 0, which sequential consistency forbids")
		}
	}
}

func TestMaskedKillIsSafeNeverDeadlocks(t *testing.T) {
	var seen []memmodel.Outcome
	res := runScenario(t, MaskedKillIsSafe, &seen)
	if !runner.Always(res.Executions, runner.NeverDeadlocks) {
		t.Fatal("masked-kill-is-safe: a kill racing a mask must never deadlock the execution")
	}
}

func TestLocalDeadlockAlwaysDeadlocks(t *testing.T) {
	res := runScenario(t, LocalDeadlock, nil)
	if !runner.Always(res.Executions, runner.AlwaysDeadlocks) {
		t.Fatal("local-deadlock: expected every execution to deadlock, including schedules where the unrelated thread is still running")
	}
}
