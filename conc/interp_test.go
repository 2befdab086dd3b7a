package conc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errTest = errors.New("test exception")

// drive runs w to completion using the simplest possible policy: always pick
// the lowest-numbered runnable thread (commit pseudo-threads, being
// negative, drain first). It returns the terminating Failure, if any, and
// fails the test if the run doesn't terminate within maxSteps.
func drive(t *testing.T, w *World, maxSteps int) *Failure {
	t.Helper()
	for i := 0; i < maxSteps; i++ {
		if w.Terminated() {
			return nil
		}
		runnable := w.Runnable()
		if len(runnable) == 0 {
			if w.AllBlockedOnStm() {
				return NewStmDeadlock()
			}
			return NewDeadlock()
		}
		_, failure := Step(w, runnable[0])
		if failure != nil {
			return failure
		}
	}
	t.Fatalf("did not terminate within %d steps", maxSteps)
	return nil
}

func TestPutTakeVar(t *testing.T) {
	var got interface{}
	prog := NewVar(func(v *SVar) Action {
		return Fork(func() Action {
			return PutVar(v, 42, func() Action { return Stop() })
		}, func(ThreadID) Action {
			return TakeVar(v, func(val interface{}) Action {
				got = val
				return Stop()
			})
		})
	})
	w := NewWorld(SequentialConsistency, prog)
	require.Nil(t, drive(t, w, 1000))
	require.Equal(t, 42, got)
}

func TestTakeVarBlocksUntilPut(t *testing.T) {
	// The taker is forked first and must block until the putter, forked
	// second, supplies a value — exercising the fullWaiters wake path. Main
	// waits on done before stopping, since the world ends when main stops.
	var got interface{}
	prog := NewVar(func(v *SVar) Action {
		return NewVar(func(done *SVar) Action {
			return Fork(func() Action {
				return TakeVar(v, func(val interface{}) Action {
					got = val
					return PutVar(done, true, func() Action { return Stop() })
				})
			}, func(ThreadID) Action {
				return Fork(func() Action {
					return PutVar(v, "hello", func() Action { return Stop() })
				}, func(ThreadID) Action {
					return TakeVar(done, func(interface{}) Action { return Stop() })
				})
			})
		})
	})
	w := NewWorld(SequentialConsistency, prog)
	require.Nil(t, drive(t, w, 1000))
	require.Equal(t, "hello", got)
}

func TestTwoTakersDeadlock(t *testing.T) {
	prog := NewVar(func(v *SVar) Action {
		taker := func() Action {
			return TakeVar(v, func(interface{}) Action { return Stop() })
		}
		return Fork(taker, func(ThreadID) Action {
			return TakeVar(v, func(interface{}) Action { return Stop() })
		})
	})
	w := NewWorld(SequentialConsistency, prog)
	f := drive(t, w, 1000)
	require.NotNil(t, f)
	require.Equal(t, FailureDeadlock, f.Kind)
}

func TestSequentialConsistencyReadSeesLatestWrite(t *testing.T) {
	var got interface{}
	prog := NewRef(0, func(r *Ref) Action {
		return WriteRef(r, 1, func() Action {
			return ReadRef(r, func(val interface{}) Action {
				got = val
				return Stop()
			})
		})
	})
	w := NewWorld(SequentialConsistency, prog)
	require.Nil(t, drive(t, w, 1000))
	require.Equal(t, 1, got)
}

func TestTotalStoreOrderReadOwnWriteEarly(t *testing.T) {
	// Under TSO a thread sees its own write immediately, before it's
	// committed to memory, since readOwn checks the write buffer first. Main
	// is stepped alone through NewRef, WriteRef and ReadRef, so no commit
	// runs before the read.
	var got interface{}
	prog := NewRef(0, func(r *Ref) Action {
		return WriteRef(r, 7, func() Action {
			return ReadRef(r, func(val interface{}) Action {
				got = val
				return Stop()
			})
		})
	})
	w := NewWorld(TotalStoreOrder, prog)
	for i := 0; i < 3; i++ {
		_, f := Step(w, MainThread)
		require.Nil(t, f)
	}
	require.Equal(t, 7, got)
	require.Nil(t, drive(t, w, 1000))
}

func TestCasRefSucceedsOnUnchangedTicket(t *testing.T) {
	var result CasResult
	prog := NewRef(0, func(r *Ref) Action {
		return ReadForCas(r, func(ticket CasTicket) Action {
			return CasRef(ticket, 1, func(res CasResult) Action {
				result = res
				return Stop()
			})
		})
	})
	w := NewWorld(SequentialConsistency, prog)
	require.Nil(t, drive(t, w, 1000))
	require.True(t, result.Swapped)
}

func TestMaskedThrowToBlocksThenWakesOnTargetDone(t *testing.T) {
	// A ThrowTo issued while the target is MaskedUninterruptible must not
	// permanently strand the caller: once the target finishes, its
	// wakeMaskWaiters call must retry the caller's delivery. Fork applies
	// the worker's leading Masking as part of the fork step, so the target
	// is already masked when the caller's ThrowTo first runs; the schedule
	// is driven by hand here to pin that order.
	var reached bool
	workerBody := func() Action {
		return Masking(MaskedUninterruptible, func() Action {
			return Stop()
		})
	}
	prog := Fork(workerBody, func(target ThreadID) Action {
		return ThrowTo(target, errTest, func() Action {
			reached = true
			return Stop()
		})
	})
	w := NewWorld(SequentialConsistency, prog)

	_, f := Step(w, MainThread) // main forks the worker
	require.Nil(t, f)
	worker := ThreadID(1)
	// the fork step already put the worker in MaskedUninterruptible
	require.Equal(t, MaskedUninterruptible, w.Threads.get(worker).Masking)
	_, f = Step(w, MainThread) // main's ThrowTo, must block
	require.Nil(t, f)
	mainThread := w.Threads.get(MainThread)
	require.True(t, mainThread.Blocked)
	require.NotNil(t, mainThread.BlockReason.OnMask)
	_, f = Step(w, worker) // worker stops while still masked
	require.Nil(t, f)
	require.False(t, mainThread.Blocked, "main stayed blocked on mask after the target finished; wakeMaskWaiters did not run")
	_, f = Step(w, MainThread) // main's ThrowTo retries, target is gone
	require.Nil(t, f)
	require.True(t, reached, "caller's continuation after ThrowTo never ran")
}

func TestGlobalDeadlockClassifiedAsStmWhenAllBlockedOnStm(t *testing.T) {
	touched := map[StmVarID]bool{0: true}
	retry := func() TxResult { return TxResult{Outcome: TxRetry, Touched: touched} }
	prog := Atomic(retry, func(interface{}) Action { return Stop() })
	w := NewWorld(SequentialConsistency, prog)
	f := drive(t, w, 1000)
	require.NotNil(t, f)
	require.Equal(t, FailureStmDeadlock, f.Kind)
}
