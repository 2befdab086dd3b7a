package conc

import "sort"

// MemType selects which of the three relaxed memory models governs Ref
// reads/writes for one campaign (§4.3, §6).
type MemType int

const (
	SequentialConsistency MemType = iota
	TotalStoreOrder
	PartialStoreOrder
)

func (m MemType) String() string {
	switch m {
	case SequentialConsistency:
		return "SequentialConsistency"
	case TotalStoreOrder:
		return "TotalStoreOrder"
	case PartialStoreOrder:
		return "PartialStoreOrder"
	default:
		return "MemType(?)"
	}
}

// Ref is a mutable cell with non-synchronising reads/writes and optional
// CAS (§3, §4.3). Equality goes through ID, not pointer identity, so traces
// stay serialisable (§9) — but within one run a *Ref is also a stable
// pointer, which the stepper uses directly.
type Ref struct {
	ID          RefID
	global      interface{}
	commitCount uint64
}

func newRef(id RefID, initial interface{}) *Ref {
	return &Ref{ID: id, global: initial}
}

type pendingWrite struct {
	ref *Ref
	val interface{}
}

// psoKey identifies one write-buffer FIFO under PartialStoreOrder: writes by
// a given thread to a given ref. Under TotalStoreOrder the ref is ignored
// (one FIFO per thread, shared across every ref it writes).
type psoKey struct {
	thread ThreadID
	ref    RefID
}

// WriteBuffer holds every thread's uncommitted writes (§3). Which keying
// scheme is live is determined by MemType; under SequentialConsistency it is
// never populated.
type WriteBuffer struct {
	memType MemType
	tso     map[ThreadID][]pendingWrite
	pso     map[psoKey][]pendingWrite
}

func newWriteBuffer(m MemType) *WriteBuffer {
	return &WriteBuffer{
		memType: m,
		tso:     make(map[ThreadID][]pendingWrite),
		pso:     make(map[psoKey][]pendingWrite),
	}
}

// write buffers val for r under TSO/PSO. Under SC the caller must have
// already committed directly to r.global; write is never called.
func (wb *WriteBuffer) write(t ThreadID, r *Ref, val interface{}) {
	switch wb.memType {
	case TotalStoreOrder:
		wb.tso[t] = append(wb.tso[t], pendingWrite{r, val})
	case PartialStoreOrder:
		k := psoKey{t, r.ID}
		wb.pso[k] = append(wb.pso[k], pendingWrite{r, val})
	default:
		panic("WriteBuffer.write called under SequentialConsistency")
	}
}

// readOwn returns the most recent not-yet-committed write by t to r, if
// any. Under TSO that's the last matching entry in t's single FIFO; under
// PSO it's simply the tail of the (t,r) FIFO.
func (wb *WriteBuffer) readOwn(t ThreadID, r *Ref) (interface{}, bool) {
	switch wb.memType {
	case TotalStoreOrder:
		q := wb.tso[t]
		for i := len(q) - 1; i >= 0; i-- {
			if q[i].ref == r {
				return q[i].val, true
			}
		}
		return nil, false
	case PartialStoreOrder:
		q := wb.pso[psoKey{t, r.ID}]
		if len(q) == 0 {
			return nil, false
		}
		return q[len(q)-1].val, true
	default:
		return nil, false
	}
}

// HasPending reports whether r currently has any buffered write from any
// thread, which the dependency oracle needs for the "barrier would flush a
// value the read could observe" rule (§4.6).
func (wb *WriteBuffer) HasPending(r RefID) bool {
	switch wb.memType {
	case TotalStoreOrder:
		for _, q := range wb.tso {
			for _, pw := range q {
				if pw.ref.ID == r {
					return true
				}
			}
		}
	case PartialStoreOrder:
		for k, q := range wb.pso {
			if k.ref == r && len(q) > 0 {
				return true
			}
		}
	}
	return false
}

// PendingKey names one non-empty write-buffer FIFO, i.e. one candidate
// commit pseudo-thread (§4.3: "for each outstanding [FIFO], a commit
// pseudo-thread ... is added").
type PendingKey struct {
	Thread ThreadID
	Ref    *Ref // head-of-queue ref; ResolveCommit passes it to commitOldest
}

// Pending enumerates every FIFO with at least one queued write, in a fixed
// deterministic order (ascending thread, then ascending ref) — map
// iteration in Go is randomized, and the BPOR driver's determinism (P1)
// depends on this list never reordering itself between otherwise-identical
// executions.
func (wb *WriteBuffer) Pending() []PendingKey {
	var out []PendingKey
	switch wb.memType {
	case TotalStoreOrder:
		for t, q := range wb.tso {
			if len(q) > 0 {
				out = append(out, PendingKey{Thread: t, Ref: q[0].ref})
			}
		}
	case PartialStoreOrder:
		for k, q := range wb.pso {
			if len(q) > 0 {
				out = append(out, PendingKey{Thread: k.thread, Ref: q[0].ref})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Thread != out[j].Thread {
			return out[i].Thread < out[j].Thread
		}
		return out[i].Ref.ID < out[j].Ref.ID
	})
	return out
}

// commitOldest drains the head of t's FIFO (TSO: the single FIFO for t;
// PSO: the FIFO for (t, r)), committing it to the global cell.
func (wb *WriteBuffer) commitOldest(t ThreadID, r *Ref) (committed bool) {
	switch wb.memType {
	case TotalStoreOrder:
		q := wb.tso[t]
		if len(q) == 0 {
			return false
		}
		head := q[0]
		if head.ref != r {
			panic("Commit action targets a ref that is not the head of the buffer")
		}
		head.ref.global = head.val
		head.ref.commitCount++
		wb.tso[t] = q[1:]
		return true
	case PartialStoreOrder:
		k := psoKey{t, r.ID}
		q := wb.pso[k]
		if len(q) == 0 {
			return false
		}
		head := q[0]
		head.ref.global = head.val
		head.ref.commitCount++
		wb.pso[k] = q[1:]
		return true
	default:
		return false
	}
}

// flushAll drains every pending write of thread t, in order, as a barrier
// or synchronising action does (§4.3).
func (wb *WriteBuffer) flushAll(t ThreadID) {
	switch wb.memType {
	case TotalStoreOrder:
		q := wb.tso[t]
		for _, pw := range q {
			pw.ref.global = pw.val
			pw.ref.commitCount++
		}
		wb.tso[t] = nil
	case PartialStoreOrder:
		for k, q := range wb.pso {
			if k.thread != t {
				continue
			}
			for _, pw := range q {
				pw.ref.global = pw.val
				pw.ref.commitCount++
			}
			wb.pso[k] = nil
		}
	}
}

// flushRefForSync drains every thread's pending write to r. Synchronising
// accesses to r (CAS, AtomicModifyRefCas) must see a consistent value, so
// they flush regardless of who buffered it (§4.3).
func (wb *WriteBuffer) flushRefForSync(r *Ref) {
	switch wb.memType {
	case TotalStoreOrder:
		for t, q := range wb.tso {
			var rest []pendingWrite
			for _, pw := range q {
				if pw.ref == r {
					pw.ref.global = pw.val
					pw.ref.commitCount++
				} else {
					rest = append(rest, pw)
				}
			}
			wb.tso[t] = rest
		}
	case PartialStoreOrder:
		for k, q := range wb.pso {
			if k.ref != r.ID || len(q) == 0 {
				continue
			}
			for _, pw := range q {
				pw.ref.global = pw.val
				pw.ref.commitCount++
			}
			wb.pso[k] = nil
		}
	}
}
