package conc

// World is the tuple (threads, write-buffer, id-source) that fully
// describes an in-progress execution (§3, §5). It is owned exclusively by
// the single-stepper and mutated in place — there is exactly one physical
// thread of control driving it, so no internal locking is needed.
type World struct {
	Threads *ThreadTable
	Buffers *WriteBuffer
	MemType MemType

	ids *idSource

	MainStopped bool

	commitIDs    map[bufKey]ThreadID
	commitIDsRev map[ThreadID]bufKey

	svars map[VarID]*SVar
	refs  map[RefID]*Ref
}

// bufKey identifies one write-buffer FIFO: under TotalStoreOrder, ref is
// unused (one FIFO per thread); under PartialStoreOrder it's (thread, ref).
type bufKey struct {
	thread ThreadID
	ref    RefID
	tso    bool
}

// commitPseudoID returns a stable negative ThreadID for the FIFO identified
// by (thread, ref), allocating one via the id source the first time this
// FIFO is seen. Stability matters: the BPOR driver refers to commit
// pseudo-threads across repeated replays of a prefix, and those replays
// must assign the identical ID to the identical FIFO (P1).
func (w *World) commitPseudoID(thread ThreadID, ref RefID) ThreadID {
	key := bufKey{thread: thread, ref: ref, tso: w.MemType == TotalStoreOrder}
	if key.tso {
		key.ref = 0
	}
	if id, ok := w.commitIDs[key]; ok {
		return id
	}
	if w.commitIDs == nil {
		w.commitIDs = make(map[bufKey]ThreadID)
		w.commitIDsRev = make(map[ThreadID]bufKey)
	}
	id := w.ids.commitThread()
	w.commitIDs[key] = id
	w.commitIDsRev[id] = key
	return id
}

// ResolveCommit maps a commit pseudo-thread ID back to the (thread, ref)
// whose buffer it drains, and the ref to pass to WriteBuffer.commitOldest.
func (w *World) ResolveCommit(id ThreadID) (thread ThreadID, ref *Ref, ok bool) {
	key, ok := w.commitIDsRev[id]
	if !ok {
		return 0, nil, false
	}
	for _, p := range w.Buffers.Pending() {
		if p.Thread == key.thread && (key.tso || p.Ref.ID == key.ref) {
			return key.thread, p.Ref, true
		}
	}
	return key.thread, nil, false
}

// NewWorld builds the initial World for one execution: a single runnable
// main thread (ID 0) whose first action is start.
func NewWorld(memType MemType, start Action) *World {
	w := &World{
		Threads: newThreadTable(),
		Buffers: newWriteBuffer(memType),
		MemType: memType,
		ids:     newIDSource(),
		svars:   make(map[VarID]*SVar),
		refs:    make(map[RefID]*Ref),
	}
	w.Threads.add(newThread(MainThread, start))
	return w
}

// Runnable lists every thread the scheduler could legally pick next,
// including commit pseudo-threads for any non-empty write-buffer FIFO
// (§4.3). Commit pseudo-threads always sort before user threads (negative
// IDs), matching the "defer commits" preference of §4.7's next().
func (w *World) Runnable() []ThreadID {
	ids := w.Threads.Runnable()
	if w.MemType == SequentialConsistency {
		return ids
	}
	pending := w.Buffers.Pending()
	if len(pending) == 0 {
		return ids
	}
	out := make([]ThreadID, 0, len(ids)+len(pending))
	for _, p := range pending {
		out = append(out, w.commitPseudoID(p.Thread, p.Ref.ID))
	}
	out = append(out, ids...)
	return out
}

// Terminated reports whether the main thread has executed Stop (§4.4).
func (w *World) Terminated() bool { return w.MainStopped }

// GlobalDeadlock reports whether no thread is runnable (§4.4). Commit
// pseudo-threads count as runnable for this check: a world stuck only with
// pending buffered writes isn't deadlocked, it's just waiting to be
// flushed.
func (w *World) GlobalDeadlock() bool {
	return len(w.Threads.Runnable()) == 0 && len(w.Buffers.Pending()) == 0
}

// LocalDeadlock reports whether thread 0 is blocked and every thread
// reachable from its known-variable set is also blocked, per §4.4. Only
// meaningful once every thread has raised AllKnown.
func (w *World) LocalDeadlock() bool {
	main := w.Threads.get(MainThread)
	if main == nil || !main.Blocked {
		return false
	}
	for _, id := range w.Threads.order {
		t := w.Threads.get(id)
		if !t.FullyKnown {
			return false
		}
	}
	reachable := w.reachableFrom(main)
	for id := range reachable {
		t := w.Threads.get(id)
		if t == nil || t.IsDone {
			continue
		}
		if !t.Blocked {
			return false
		}
	}
	return true
}

// AllBlockedOnStm reports whether every blocked thread is waiting on an STM
// transaction retry — the campaign uses this to tell a plain Deadlock from
// an StmDeadlock (§4.4, §7).
func (w *World) AllBlockedOnStm() bool {
	any := false
	for _, id := range w.Threads.order {
		t := w.Threads.get(id)
		if t.IsDone {
			continue
		}
		if !t.Blocked {
			return false
		}
		if t.BlockReason.OnStm == nil {
			return false
		}
		any = true
	}
	return any
}

// reachableFrom computes the set of threads transitively reachable from t's
// known SVars/StmVars: any other thread that also knows about one of those
// variables. This is a coarse over-approximation deliberately — the exact
// notion of "reachable" a real implementation would use (following values
// through SVars) isn't modelled here; KnowsAbout/Forgets annotations are
// the program's own narration of what it still needs, and that's the
// contract §4.4 asks for.
func (w *World) reachableFrom(main *Thread) map[ThreadID]bool {
	seen := map[ThreadID]bool{main.ID: true}
	changed := true
	for changed {
		changed = false
		for _, id := range w.Threads.order {
			if seen[id] {
				continue
			}
			t := w.Threads.get(id)
			for other := range seen {
				ot := w.Threads.get(other)
				if sharesKnowledge(t, ot) {
					seen[id] = true
					changed = true
					break
				}
			}
		}
	}
	return seen
}

// newSVar allocates and registers a fresh SVar so later ThrowTo/kill logic
// can find it by ID to remove a thread from its wait queues.
func (w *World) newSVar() *SVar {
	v := newSVar(w.ids.svar())
	w.svars[v.ID] = v
	return v
}

// newRef allocates and registers a fresh Ref.
func (w *World) newRef(initial interface{}) *Ref {
	r := newRef(w.ids.ref(), initial)
	w.refs[r.ID] = r
	return r
}

// unblockThreads clears Blocked on every listed thread, making it runnable
// again. Used when an SVar operation wakes its waiters (§4.2); STM commit
// wakes its OnStm waiters through wakeStmWaiters instead.
func unblockThreads(w *World, ids []ThreadID) {
	for _, id := range ids {
		if t := w.Threads.get(id); t != nil {
			t.Blocked = false
			t.BlockReason = BlockReason{}
		}
	}
}

// unblockFromWaitQueue removes target from whatever SVar wait queue its
// current BlockReason names, preserving invariant 2 of §4.2 when an async
// exception or kill interrupts a thread out of band.
func (w *World) unblockFromWaitQueue(target *Thread) {
	switch {
	case target.BlockReason.OnSVarFull != nil:
		if v := w.svars[*target.BlockReason.OnSVarFull]; v != nil {
			v.fullWaiters = removeThreadID(v.fullWaiters, target.ID)
		}
	case target.BlockReason.OnSVarEmpty != nil:
		if v := w.svars[*target.BlockReason.OnSVarEmpty]; v != nil {
			v.emptyWaiters = removeThreadID(v.emptyWaiters, target.ID)
		}
	}
	target.Blocked = false
	target.BlockReason = BlockReason{}
}

// wakeMaskWaiters wakes every thread blocked delivering a ThrowTo to target,
// so it retries the delivery now that target's masking state or done-ness may
// have changed (§4.5). The retried ThrowTo itself re-checks canDeliverAsync
// and blocks again if still ineligible.
func wakeMaskWaiters(w *World, target ThreadID) {
	for _, id := range w.Threads.order {
		t := w.Threads.get(id)
		if t.Blocked && t.BlockReason.OnMask != nil && *t.BlockReason.OnMask == target {
			t.Blocked = false
			t.BlockReason = BlockReason{}
		}
	}
}

func removeThreadID(ids []ThreadID, id ThreadID) []ThreadID {
	for i, x := range ids {
		if x == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

func sharesKnowledge(a, b *Thread) bool {
	for v := range a.KnownSVars {
		if b.KnownSVars[v] {
			return true
		}
	}
	for v := range a.KnownStmVars {
		if b.KnownStmVars[v] {
			return true
		}
	}
	return false
}
