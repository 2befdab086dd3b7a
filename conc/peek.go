package conc

// Lookahead produces a one-step preview of what thread tid would do if
// picked next, without running it — the shape the dependency oracle needs
// to decide commutativity ahead of execution (§4.6, §4.7's next()/grow()).
// Commit pseudo-threads are resolved against the write buffer; everything
// else is read straight off the thread's Pending action.
func (w *World) Lookahead(tid ThreadID) Lookahead {
	if tid.IsCommit() {
		thread, ref, ok := w.ResolveCommit(tid)
		la := Lookahead{Thread: tid, Kind: KCommit}
		if ok {
			la.Ref = ref.ID
			la.Target = thread
		}
		return la
	}
	t := w.Threads.get(tid)
	if t == nil {
		return Lookahead{Thread: tid}
	}
	act := t.Pending
	la := Lookahead{Thread: tid, Kind: act.Kind, Target: act.Target}
	if act.Var != nil {
		la.Var = act.Var.ID
	}
	if act.Ref != nil {
		la.Ref = act.Ref.ID
	}
	return la
}
