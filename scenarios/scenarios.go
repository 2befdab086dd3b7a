// Package scenarios holds the example programs under test §8 uses to
// demonstrate the campaign runner: classic concurrency bugs (a two-way
// deadlock, dining philosophers, a forgotten unlock) and classic memory-model
// surprises (a racy ref under sequential consistency, Dekker's algorithm
// under total store order), a program that must never deadlock no matter how
// its kill races with its mask, and a forgotten unlock restaged alongside an
// unrelated thread to exercise local- rather than global-deadlock detection.
package scenarios

import (
	"errors"

	"github.com/jwaldmann/dejafu/conc"
	"github.com/jwaldmann/dejafu/runner"
)

// Scenario bundles a program under test with the memory model it should be
// explored under. New takes an observe callback that a program may call (via
// conc.Lift) to record a value for later assertion against the campaign's
// set of outcomes; programs that don't observe anything ignore it.
type Scenario struct {
	Name    string
	MemType conc.MemType
	New     func(observe func(...interface{})) runner.Program
}

// All is every scenario, in the order §8 presents them, plus LocalDeadlock
// at the end exercising the §4.4 knowledge-annotation refinement the S1-S6
// set never touches.
var All = []Scenario{TwoDeadlock, DiningPhilosophers, ForgottenUnlock, RacyRead, DekkerReorder, MaskedKillIsSafe, LocalDeadlock}

// TwoDeadlock (S1) forks two threads that each block forever taking from an
// SVar nobody ever puts into, then has main join the same race itself — so
// the deadlock is visible to the campaign regardless of how the three
// contend, instead of being silently orphaned once main's own Stop (which
// never blocks on anything) ends the execution first.
var TwoDeadlock = Scenario{
	Name:    "two-deadlock",
	MemType: conc.SequentialConsistency,
	New: func(observe func(...interface{})) runner.Program {
		return func() conc.Action {
			return conc.NewVar(func(v *conc.SVar) conc.Action {
				taker := func() conc.Action {
					return conc.TakeVar(v, func(interface{}) conc.Action {
						return conc.Stop()
					})
				}
				return conc.Fork(taker, func(conc.ThreadID) conc.Action {
					return conc.Fork(taker, func(conc.ThreadID) conc.Action {
						return conc.TakeVar(v, func(interface{}) conc.Action {
							return conc.Stop()
						})
					})
				})
			})
		}
	},
}

// DiningPhilosophers (S2) seats three philosophers around three forks (one
// SVar per fork, each holding the "fork present" token) that each pick up
// their left fork then their right, eat, and put both back. All three
// picking up left-before-right can deadlock. A shared done SVar lets main
// wait for every philosopher to finish before stopping, so a deadlock among
// them always surfaces as a GlobalDeadlock rather than an orphaned stall.
var DiningPhilosophers = Scenario{
	Name:    "dining-philosophers",
	MemType: conc.SequentialConsistency,
	New: func(observe func(...interface{})) runner.Program {
		const n = 3
		return func() conc.Action {
			return conc.NewVar(func(done *conc.SVar) conc.Action {
				return makeForks(n, func(forks []*conc.SVar) conc.Action {
					var body func(int) conc.Action
					body = func(i int) conc.Action {
						if i == n {
							return joinN(n, done, conc.Stop)
						}
						left, right := forks[i], forks[(i+1)%n]
						philosopher := func() conc.Action {
							return conc.TakeVar(left, func(interface{}) conc.Action {
								return conc.TakeVar(right, func(interface{}) conc.Action {
									return conc.PutVar(right, true, func() conc.Action {
										return conc.PutVar(left, true, func() conc.Action {
											return conc.PutVar(done, true, func() conc.Action {
												return conc.Stop()
											})
										})
									})
								})
							})
						}
						return conc.Fork(philosopher, func(conc.ThreadID) conc.Action {
							return body(i + 1)
						})
					}
					return body(0)
				})
			})
		}
	},
}

// makeForks allocates n SVars, each initially holding a fork token, and
// passes the resulting slice to cont.
func makeForks(n int, cont func([]*conc.SVar) conc.Action) conc.Action {
	forks := make([]*conc.SVar, 0, n)
	var alloc func(int) conc.Action
	alloc = func(i int) conc.Action {
		if i == n {
			return cont(forks)
		}
		return conc.NewVar(func(v *conc.SVar) conc.Action {
			return conc.PutVar(v, true, func() conc.Action {
				forks = append(forks, v)
				return alloc(i + 1)
			})
		})
	}
	return alloc(0)
}

// joinN takes from done n times before running cont, so main doesn't stop
// (and thereby end the whole execution, per §4.4) until n forked threads
// have each signalled completion through it.
func joinN(n int, done *conc.SVar, cont func() conc.Action) conc.Action {
	if n == 0 {
		return cont()
	}
	return conc.TakeVar(done, func(interface{}) conc.Action {
		return joinN(n-1, done, cont)
	})
}

// ForgottenUnlock (S3) models a lock as an SVar: PutVar acquires, nothing
// ever TakeVars it back out. A forked thread acquires and never releases;
// main waits with ReadVar until the lock is held and then also tries to
// acquire, so main's own permanent block is what the campaign observes as a
// GlobalDeadlock, whichever thread runs first.
var ForgottenUnlock = Scenario{
	Name:    "forgotten-unlock",
	MemType: conc.SequentialConsistency,
	New: func(observe func(...interface{})) runner.Program {
		return func() conc.Action {
			return conc.NewVar(func(lock *conc.SVar) conc.Action {
				holder := func() conc.Action {
					return conc.PutVar(lock, true, func() conc.Action {
						return conc.Stop()
					})
				}
				return conc.Fork(holder, func(conc.ThreadID) conc.Action {
					return conc.ReadVar(lock, func(interface{}) conc.Action {
						return conc.PutVar(lock, true, func() conc.Action {
							return conc.Stop()
						})
					})
				})
			})
		}
	},
}

// RacyRead (S4) has two threads race a write and a read against one shared
// Ref under sequential consistency: one writes 1, the other reads whatever
// is there (0 if it runs first, 1 if it runs second), observing its result.
// Main joins both before stopping so every execution gets an observation.
var RacyRead = Scenario{
	Name:    "racy-read",
	MemType: conc.SequentialConsistency,
	New: func(observe func(...interface{})) runner.Program {
		return func() conc.Action {
			return conc.NewVar(func(done *conc.SVar) conc.Action {
				return conc.NewRef(0, func(r *conc.Ref) conc.Action {
					writer := func() conc.Action {
						return conc.WriteRef(r, 1, func() conc.Action {
							return conc.PutVar(done, true, func() conc.Action { return conc.Stop() })
						})
					}
					reader := func() conc.Action {
						return conc.ReadRef(r, func(val interface{}) conc.Action {
							return conc.Lift(func() interface{} {
								observe(val)
								return nil
							}, func(interface{}) conc.Action {
								return conc.PutVar(done, true, func() conc.Action { return conc.Stop() })
							})
						})
					}
					return conc.Fork(writer, func(conc.ThreadID) conc.Action {
						return conc.Fork(reader, func(conc.ThreadID) conc.Action {
							return joinN(2, done, conc.Stop)
						})
					})
				})
			})
		}
	},
}

// DekkerReorder (S5) is the classic store-buffer reordering witness: each of
// two threads writes its own flag then reads the other's. Under sequential
// consistency at least one thread must see the other's write (so "both read
// 0" never happens); under total store order each thread's write can sit in
// its own FIFO behind the read of the other thread's flag, letting both
// observe 0 — the anomaly this scenario is built to expose.
var DekkerReorder = Scenario{
	Name:    "dekker-reorder",
	MemType: conc.TotalStoreOrder,
	New: func(observe func(...interface{})) runner.Program {
		return func() conc.Action {
			return conc.NewVar(func(done *conc.SVar) conc.Action {
				return conc.NewRef(0, func(r1 *conc.Ref) conc.Action {
					return conc.NewRef(0, func(r2 *conc.Ref) conc.Action {
						side := func(mine, other *conc.Ref) func() conc.Action {
							return func() conc.Action {
								return conc.WriteRef(mine, 1, func() conc.Action {
									return conc.ReadRef(other, func(val interface{}) conc.Action {
										return conc.Lift(func() interface{} {
											observe(val)
											return nil
										}, func(interface{}) conc.Action {
											return conc.PutVar(done, true, func() conc.Action { return conc.Stop() })
										})
									})
								})
							}
						}
						return conc.Fork(side(r1, r2), func(conc.ThreadID) conc.Action {
							return conc.Fork(side(r2, r1), func(conc.ThreadID) conc.Action {
								return joinN(2, done, conc.Stop)
							})
						})
					})
				})
			})
		}
	},
}

// errKilled is the exception a kill delivers in MaskedKillIsSafe.
var errKilled = errors.New("killed")

// MaskedKillIsSafe (S6) forks a thread that masks itself uninterruptible
// while it puts then (non-blockingly) tries to put a value, and has main
// immediately try to kill it via ThrowTo. The worker is masked from the fork
// step until it stops, so the kill either finds it already finished or
// blocks main until wakeMaskWaiters releases it once the target becomes
// done; main then reads the value the worker put. It must never deadlock
// the whole execution. A
// second PutVar would itself block forever since nothing ever drains the
// SVar again, so the forked thread's second attempt is a TryPutVar.
var MaskedKillIsSafe = Scenario{
	Name:    "masked-kill-is-safe",
	MemType: conc.SequentialConsistency,
	New: func(observe func(...interface{})) runner.Program {
		return func() conc.Action {
			return conc.NewVar(func(v *conc.SVar) conc.Action {
				worker := func() conc.Action {
					return conc.Masking(conc.MaskedUninterruptible, func() conc.Action {
						return conc.PutVar(v, struct{}{}, func() conc.Action {
							return conc.TryPutVar(v, struct{}{}, func(bool) conc.Action {
								return conc.Stop()
							})
						})
					})
				}
				return conc.Fork(worker, func(target conc.ThreadID) conc.Action {
					return conc.ThrowTo(target, errKilled, func() conc.Action {
						return conc.ReadVar(v, func(val interface{}) conc.Action {
							return conc.Lift(func() interface{} {
								observe(val)
								return nil
							}, func(interface{}) conc.Action {
								return conc.Stop()
							})
						})
					})
				})
			})
		}
	},
}

// LocalDeadlock is the same forgotten-unlock bug as ForgottenUnlock, run
// alongside a third thread that never touches the lock at all and is still
// doing its own unrelated work when main gets stuck. Global deadlock can't
// fire yet — the unrelated thread is still runnable — but every thread that
// ever knows about the lock (main and its holder) narrates that knowledge
// with KnowsAboutVar and raises AllKnown before it can matter (main then
// waits with ReadVar until the holder has the lock), so §4.4's
// local-deadlock refinement recognises main's own corner of the world is
// permanently stuck without waiting for the unrelated thread to run itself
// out on its own schedule. Main also briefly knows about, then forgets, a
// decoy SVar nobody else ever touches, exercising ForgetsVar alongside
// KnowsAboutVar/AllKnown.
var LocalDeadlock = Scenario{
	Name:    "local-deadlock",
	MemType: conc.SequentialConsistency,
	New: func(observe func(...interface{})) runner.Program {
		return func() conc.Action {
			return conc.NewVar(func(lock *conc.SVar) conc.Action {
				return conc.NewVar(func(unrelated *conc.SVar) conc.Action {
					return conc.NewVar(func(decoy *conc.SVar) conc.Action {
						holder := func() conc.Action {
							return conc.KnowsAboutVar(lock.ID, func() conc.Action {
								return conc.AllKnown(func() conc.Action {
									return conc.PutVar(lock, true, func() conc.Action {
										return conc.Stop()
									})
								})
							})
						}
						background := func() conc.Action {
							return conc.AllKnown(func() conc.Action {
								return conc.PutVar(unrelated, true, func() conc.Action {
									return conc.TakeVar(unrelated, func(interface{}) conc.Action {
										return conc.Stop()
									})
								})
							})
						}
						return conc.Fork(holder, func(conc.ThreadID) conc.Action {
							return conc.Fork(background, func(conc.ThreadID) conc.Action {
								return conc.KnowsAboutVar(decoy.ID, func() conc.Action {
									return conc.ForgetsVar(decoy.ID, func() conc.Action {
										return conc.KnowsAboutVar(lock.ID, func() conc.Action {
											return conc.AllKnown(func() conc.Action {
												return conc.ReadVar(lock, func(interface{}) conc.Action {
													return conc.PutVar(lock, true, func() conc.Action {
														return conc.Stop()
													})
												})
											})
										})
									})
								})
							})
						})
					})
				})
			})
		}
	},
}
