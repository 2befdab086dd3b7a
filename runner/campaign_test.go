package runner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jwaldmann/dejafu/conc"
)

// racyProgram forks a writer against main's own read of a shared ref, so
// different schedules produce different observed values — enough to give
// RunTest more than one execution to discover.
func racyProgram(seen *[]interface{}) Program {
	return func() conc.Action {
		return conc.NewVar(func(done *conc.SVar) conc.Action {
			return conc.NewRef(0, func(r *conc.Ref) conc.Action {
				return conc.Fork(func() conc.Action {
					return conc.WriteRef(r, 1, func() conc.Action {
						return conc.PutVar(done, true, func() conc.Action { return conc.Stop() })
					})
				}, func(conc.ThreadID) conc.Action {
					return conc.ReadRef(r, func(val interface{}) conc.Action {
						return conc.Lift(func() interface{} {
							*seen = append(*seen, val)
							return nil
						}, func(interface{}) conc.Action {
							return conc.TakeVar(done, func(interface{}) conc.Action { return conc.Stop() })
						})
					})
				})
			})
		})
	}
}

func TestRunTestExploresMultipleSchedules(t *testing.T) {
	var seen []interface{}
	cfg := DefaultConfig()
	cfg.MaxRuns = 200
	res := RunTest(racyProgram(&seen), cfg)
	require.Nil(t, res.Aborted)
	require.Greater(t, len(res.Executions), 1)
	require.True(t, Always(res.Executions, NeverDeadlocks))
}

func TestDeterministicRepeatsTheSameForcedSchedule(t *testing.T) {
	var seen []interface{}
	program := racyProgram(&seen)
	require.True(t, Deterministic(program, conc.SequentialConsistency, 1000, []conc.ThreadID{0}))
}
