package conc

import "fmt"

// Step advances the world by exactly one primitive action of the chosen
// thread (§4.8). It mutates w in place — the World is owned by the
// single-stepper and there is exactly one physical thread of control, so no
// internal synchronisation is needed (§5). On success it returns the
// ThreadAction that was actually performed; *Failure is non-nil only for
// one of the four kinds listed in §6, and a non-nil Failure always means
// the run is over.
func Step(w *World, tid ThreadID) (ThreadAction, *Failure) {
	if tid.IsCommit() {
		return stepCommit(w, tid)
	}

	t := w.Threads.get(tid)
	if t == nil {
		return ThreadAction{}, newFailure(FailureInternalError, fmt.Errorf("thread %d does not exist", tid))
	}
	if t.IsDone {
		return ThreadAction{}, newFailure(FailureInternalError, fmt.Errorf("thread %d has already finished", tid))
	}
	if t.Blocked {
		return ThreadAction{}, newFailure(FailureInternalError, fmt.Errorf("scheduler chose blocked thread %d", tid))
	}

	act := t.Pending
	switch act.Kind {
	case KFork:
		return stepFork(w, t, act)
	case KMyThreadID:
		t.Pending = act.Cont(tid)
		return ThreadAction{Thread: tid, Kind: act.Kind}, nil
	case KYield:
		t.Pending = act.Cont(nil)
		return ThreadAction{Thread: tid, Kind: act.Kind}, nil
	case KStop, KReturn:
		t.IsDone = true
		if tid == MainThread {
			w.MainStopped = true
		}
		wakeMaskWaiters(w, tid)
		return ThreadAction{Thread: tid, Kind: act.Kind, Detail: "finished"}, nil

	case KNewVar:
		v := w.newSVar()
		t.Pending = act.Cont(v)
		return ThreadAction{Thread: tid, Kind: act.Kind, Var: v.ID}, nil
	case KPutVar:
		return stepPutVar(w, t, act)
	case KTryPutVar:
		return stepTryPutVar(w, t, act)
	case KReadVar:
		return stepReadVar(w, t, act)
	case KTakeVar:
		return stepTakeVar(w, t, act)
	case KTryTakeVar:
		return stepTryTakeVar(w, t, act)

	case KNewRef:
		r := w.newRef(act.WriteVal)
		t.Pending = act.Cont(r)
		return ThreadAction{Thread: tid, Kind: act.Kind, Ref: r.ID}, nil
	case KReadRef:
		return stepReadRef(w, t, act)
	case KWriteRef:
		return stepWriteRef(w, t, act)
	case KModifyRef:
		return stepModifyRef(w, t, act)
	case KReadForCas:
		return stepReadForCas(w, t, act)
	case KCasRef:
		return stepCasRef(w, t, act)
	case KCasRef2:
		return stepCasRef2(w, t, act)
	case KAtomicModifyRefCas:
		return stepAtomicModifyRefCas(w, t, act)

	case KStoreLoadBarrier, KWriteBarrier:
		w.Buffers.flushAll(tid)
		t.Pending = act.Cont(nil)
		return ThreadAction{Thread: tid, Kind: act.Kind, Detail: "flushed"}, nil
	case KLoadLoadBarrier:
		// No-op under SC, TSO, and PSO alike (§4.1).
		t.Pending = act.Cont(nil)
		return ThreadAction{Thread: tid, Kind: act.Kind}, nil

	case KAtomic:
		return stepAtomic(w, t, act)

	case KThrow:
		return stepThrow(w, t, act)
	case KThrowTo:
		return stepThrowTo(w, t, act)
	case KCatching:
		t.Handlers = append(t.Handlers, act.Handler)
		t.Pending = act.ForkBody()
		return ThreadAction{Thread: tid, Kind: act.Kind, Detail: "pushed handler"}, nil
	case KPopCatching:
		if len(t.Handlers) == 0 {
			panic("PopCatching with an empty handler stack")
		}
		t.Handlers = t.Handlers[:len(t.Handlers)-1]
		t.Pending = act.Cont(nil)
		return ThreadAction{Thread: tid, Kind: act.Kind}, nil
	case KMasking:
		t.Masking = act.MaskLevel
		t.Pending = act.ForkBody()
		return ThreadAction{Thread: tid, Kind: act.Kind, Detail: act.MaskLevel.String()}, nil
	case KResetMask:
		t.Masking = act.MaskLevel
		t.Pending = act.Cont(nil)
		if act.MaskLevel != MaskedUninterruptible {
			wakeMaskWaiters(w, tid)
		}
		return ThreadAction{Thread: tid, Kind: act.Kind, Detail: act.MaskLevel.String()}, nil

	case KKnowsAbout:
		if act.KnownSVar != nil {
			t.KnownSVars[*act.KnownSVar] = true
		}
		if act.KnownStmVar != nil {
			t.KnownStmVars[*act.KnownStmVar] = true
		}
		t.Pending = act.Cont(nil)
		return ThreadAction{Thread: tid, Kind: act.Kind}, nil
	case KForgets:
		if act.KnownSVar != nil {
			delete(t.KnownSVars, *act.KnownSVar)
		}
		t.Pending = act.Cont(nil)
		return ThreadAction{Thread: tid, Kind: act.Kind}, nil
	case KAllKnown:
		t.FullyKnown = true
		t.Pending = act.Cont(nil)
		return ThreadAction{Thread: tid, Kind: act.Kind}, nil

	case KLift, KPrim:
		val := act.External()
		t.Pending = act.Cont(val)
		return ThreadAction{Thread: tid, Kind: act.Kind, Detail: "opaque effect"}, nil

	default:
		panic(fmt.Sprintf("conc: unhandled action kind %v", act.Kind))
	}
}

func stepCommit(w *World, tid ThreadID) (ThreadAction, *Failure) {
	thread, ref, ok := w.ResolveCommit(tid)
	if !ok {
		return ThreadAction{}, newFailure(FailureInternalError, fmt.Errorf("commit pseudo-thread %d does not exist", tid))
	}
	if !w.Buffers.commitOldest(thread, ref) {
		return ThreadAction{}, newFailure(FailureInternalError, fmt.Errorf("commit pseudo-thread %d has nothing pending", tid))
	}
	return ThreadAction{Thread: tid, Kind: KCommit, Ref: ref.ID, Target: thread, Detail: fmt.Sprintf("commit T%d's write", thread)}, nil
}

func stepFork(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	newID := w.ids.thread()
	worker := newThread(newID, act.ForkBody())
	// A Masking action at the very start of a forked body takes effect
	// atomically with the fork itself, so there's no window in which the
	// new thread is runnable-but-still-Unmasked and therefore killable by a
	// ThrowTo that a scheduler picks before the new thread ever runs.
	for worker.Pending.Kind == KMasking {
		worker.Masking = worker.Pending.MaskLevel
		worker.Pending = worker.Pending.ForkBody()
	}
	w.Threads.add(worker)
	t.Pending = act.Cont(newID)
	return ThreadAction{Thread: t.ID, Kind: KFork, Detail: fmt.Sprintf("forked T%d", newID)}, nil
}

func stepPutVar(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	if !act.Var.put(act.PutVal) {
		t.Blocked = true
		t.BlockReason = blockedOnSVarEmpty(act.Var.ID)
		act.Var.emptyWaiters = append(act.Var.emptyWaiters, t.ID)
		wakeMaskWaiters(w, t.ID)
		return ThreadAction{Thread: t.ID, Kind: KPutVar, Var: act.Var.ID, Detail: "blocked"}, nil
	}
	woken := act.Var.fullWaiters
	act.Var.fullWaiters = nil
	unblockThreads(w, woken)
	t.Pending = act.Cont(nil)
	return ThreadAction{Thread: t.ID, Kind: KPutVar, Var: act.Var.ID, Detail: "put"}, nil
}

func stepTryPutVar(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	ok := act.Var.put(act.PutVal)
	detail := "full"
	if ok {
		woken := act.Var.fullWaiters
		act.Var.fullWaiters = nil
		unblockThreads(w, woken)
		detail = "put"
	}
	t.Pending = act.Cont(ok)
	return ThreadAction{Thread: t.ID, Kind: KTryPutVar, Var: act.Var.ID, Detail: detail}, nil
}

func stepReadVar(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	val, ok := act.Var.read()
	if !ok {
		t.Blocked = true
		t.BlockReason = blockedOnSVarFull(act.Var.ID)
		act.Var.fullWaiters = append(act.Var.fullWaiters, t.ID)
		wakeMaskWaiters(w, t.ID)
		return ThreadAction{Thread: t.ID, Kind: KReadVar, Var: act.Var.ID, Detail: "blocked"}, nil
	}
	t.Pending = act.Cont(val)
	return ThreadAction{Thread: t.ID, Kind: KReadVar, Var: act.Var.ID, Detail: "read"}, nil
}

func stepTakeVar(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	val, ok := act.Var.take()
	if !ok {
		t.Blocked = true
		t.BlockReason = blockedOnSVarFull(act.Var.ID)
		act.Var.fullWaiters = append(act.Var.fullWaiters, t.ID)
		wakeMaskWaiters(w, t.ID)
		return ThreadAction{Thread: t.ID, Kind: KTakeVar, Var: act.Var.ID, Detail: "blocked"}, nil
	}
	woken := act.Var.emptyWaiters
	act.Var.emptyWaiters = nil
	unblockThreads(w, woken)
	t.Pending = act.Cont(val)
	return ThreadAction{Thread: t.ID, Kind: KTakeVar, Var: act.Var.ID, Detail: "take"}, nil
}

func stepTryTakeVar(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	val, ok := act.Var.take()
	detail := "empty"
	if ok {
		woken := act.Var.emptyWaiters
		act.Var.emptyWaiters = nil
		unblockThreads(w, woken)
		detail = "take"
	}
	t.Pending = act.Cont(TryTakeResult{Val: val, OK: ok})
	return ThreadAction{Thread: t.ID, Kind: KTryTakeVar, Var: act.Var.ID, Detail: detail}, nil
}

func stepReadRef(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	var val interface{}
	if w.MemType == SequentialConsistency {
		val = act.Ref.global
	} else if v, ok := w.Buffers.readOwn(t.ID, act.Ref); ok {
		val = v
	} else {
		val = act.Ref.global
	}
	t.Pending = act.Cont(val)
	return ThreadAction{Thread: t.ID, Kind: KReadRef, Ref: act.Ref.ID, Detail: "read"}, nil
}

func stepWriteRef(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	if w.MemType == SequentialConsistency {
		act.Ref.global = act.WriteVal
		act.Ref.commitCount++
	} else {
		w.Buffers.write(t.ID, act.Ref, act.WriteVal)
	}
	t.Pending = act.Cont(nil)
	return ThreadAction{Thread: t.ID, Kind: KWriteRef, Ref: act.Ref.ID, Detail: "write"}, nil
}

func stepModifyRef(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	if w.MemType != SequentialConsistency {
		w.Buffers.flushRefForSync(act.Ref)
	}
	act.Ref.global = act.ModifyFn(act.Ref.global)
	act.Ref.commitCount++
	t.Pending = act.Cont(nil)
	return ThreadAction{Thread: t.ID, Kind: KModifyRef, Ref: act.Ref.ID, Detail: "modify"}, nil
}

func stepReadForCas(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	if w.MemType != SequentialConsistency {
		w.Buffers.flushRefForSync(act.Ref)
	}
	ticket := CasTicket{ref: act.Ref, commitCount: act.Ref.commitCount, val: act.Ref.global}
	t.Pending = act.Cont(ticket)
	return ThreadAction{Thread: t.ID, Kind: KReadForCas, Ref: act.Ref.ID}, nil
}

func stepCasRef(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	if w.MemType != SequentialConsistency {
		w.Buffers.flushRefForSync(act.Ref)
	}
	swapped := act.Ticket.commitCount == act.Ref.commitCount
	if swapped {
		act.Ref.global = act.CasNew
		act.Ref.commitCount++
	}
	newTicket := CasTicket{ref: act.Ref, commitCount: act.Ref.commitCount, val: act.Ref.global}
	t.Pending = act.Cont(CasResult{Swapped: swapped, Ticket: newTicket})
	detail := "cas failed"
	if swapped {
		detail = "cas succeeded"
	}
	return ThreadAction{Thread: t.ID, Kind: KCasRef, Ref: act.Ref.ID, Detail: detail}, nil
}

func stepCasRef2(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	if w.MemType != SequentialConsistency {
		w.Buffers.flushRefForSync(act.Ref)
		w.Buffers.flushRefForSync(act.Ref2)
	}
	swapped := act.Ticket.commitCount == act.Ref.commitCount && act.Ticket2.commitCount == act.Ref2.commitCount
	if swapped {
		act.Ref.global = act.CasNew
		act.Ref.commitCount++
		act.Ref2.global = act.CasNew2
		act.Ref2.commitCount++
	}
	t1 := CasTicket{ref: act.Ref, commitCount: act.Ref.commitCount, val: act.Ref.global}
	t2 := CasTicket{ref: act.Ref2, commitCount: act.Ref2.commitCount, val: act.Ref2.global}
	t.Pending = act.Cont(Cas2Result{Swapped: swapped, T1: t1, T2: t2})
	detail := "cas2 failed"
	if swapped {
		detail = "cas2 succeeded"
	}
	return ThreadAction{Thread: t.ID, Kind: KCasRef2, Ref: act.Ref.ID, Detail: detail}, nil
}

// stepAtomicModifyRefCas performs a CAS-loop-style read-modify-write in a
// single step (the stepper, not the program, owns atomicity here — there is
// no real contention to loop over). It returns the value observed before
// the modification, which is what "AtomicModifyRefCas" callers generally
// want (§9 open question: the source leaves the return shape undefined).
func stepAtomicModifyRefCas(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	if w.MemType != SequentialConsistency {
		w.Buffers.flushRefForSync(act.Ref)
	}
	old := act.Ref.global
	act.Ref.global = act.ModifyFn(old)
	act.Ref.commitCount++
	t.Pending = act.Cont(old)
	return ThreadAction{Thread: t.ID, Kind: KAtomicModifyRefCas, Ref: act.Ref.ID, Detail: "modify"}, nil
}

func stepAtomic(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	res := runAtomic(act.Tx)
	switch res.Outcome {
	case TxSuccess:
		wakeStmWaiters(w, res.Write)
		t.Pending = act.Cont(res.Val)
		return ThreadAction{Thread: t.ID, Kind: KAtomic, Detail: "committed"}, nil
	case TxRetry:
		t.Blocked = true
		t.BlockReason = blockedOnStm(res.Touched)
		// t.Pending stays `act`: the next Step on this thread re-runs the
		// same Transaction attempt from scratch once something it touched
		// is written.
		return ThreadAction{Thread: t.ID, Kind: KAtomic, Detail: "retry"}, nil
	case TxException:
		next, ok := unwind(t, res.Err)
		if !ok {
			return dieOrFail(w, t, res.Err)
		}
		t.Pending = next
		return ThreadAction{Thread: t.ID, Kind: KAtomic, Detail: "exception"}, nil
	default:
		panic("conc: unhandled TxOutcome")
	}
}

func wakeStmWaiters(w *World, write map[StmVarID]bool) {
	for _, id := range w.Threads.order {
		th := w.Threads.get(id)
		if !th.Blocked || th.BlockReason.OnStm == nil {
			continue
		}
		for v := range th.BlockReason.OnStm {
			if write[v] {
				th.Blocked = false
				th.BlockReason = BlockReason{}
				break
			}
		}
	}
}

func stepThrow(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	next, ok := unwind(t, act.Exn)
	if !ok {
		return dieOrFail(w, t, act.Exn)
	}
	t.Pending = next
	return ThreadAction{Thread: t.ID, Kind: KThrow, Detail: "caught"}, nil
}

// dieOrFail handles an exception that unwound past the top of a thread's
// handler stack (§4.5): the main thread terminates the whole world as
// UncaughtException, any other thread simply vanishes.
func dieOrFail(w *World, t *Thread, err error) (ThreadAction, *Failure) {
	t.IsDone = true
	if t.ID == MainThread {
		w.MainStopped = true
		return ThreadAction{Thread: t.ID, Kind: KThrow, Detail: "uncaught"}, newFailure(FailureUncaughtException, err)
	}
	return ThreadAction{Thread: t.ID, Kind: KThrow, Detail: "died silently"}, nil
}

func stepThrowTo(w *World, t *Thread, act Action) (ThreadAction, *Failure) {
	target := w.Threads.get(act.Target)
	if target == nil || target.IsDone {
		t.Pending = act.Cont(nil)
		return ThreadAction{Thread: t.ID, Kind: KThrowTo, Target: act.Target, Detail: "target gone"}, nil
	}
	if !canDeliverAsync(target) {
		t.Blocked = true
		t.BlockReason = blockedOnMask(act.Target)
		return ThreadAction{Thread: t.ID, Kind: KThrowTo, Target: act.Target, Detail: "blocked on mask"}, nil
	}
	if target.Blocked {
		w.unblockFromWaitQueue(target)
	}
	next, ok := unwind(target, act.Exn)
	if !ok {
		fa, failure := dieOrFail(w, target, act.Exn)
		if failure != nil {
			return fa, failure
		}
	} else {
		target.Pending = next
	}
	t.Pending = act.Cont(nil)
	return ThreadAction{Thread: t.ID, Kind: KThrowTo, Target: act.Target, Detail: fmt.Sprintf("delivered to T%d", act.Target)}, nil
}
