// Package dep implements the dependency oracle used by the systematic
// scheduler to decide whether two steps could be reordered without changing
// the observable outcome of an execution.
package dep

import "github.com/jwaldmann/dejafu/conc"

// ActionType is the coarse classification a Lookahead or executed
// ThreadAction is simplified to before the commutativity rules are applied.
type ActionType int

const (
	Other ActionType = iota
	UnsynchronisedRead
	UnsynchronisedWrite
	SynchronisedModify
	SynchronisedCommit
	SynchronisedRead
	SynchronisedWrite
	Barrier
	Opaque // Lift/Prim: always dependent with another Opaque
	STM    // Atomic: always dependent with another STM
	Kill   // ThrowTo: dependent with every action of its target
)

// Simplified is one step reduced to the shape the oracle needs: its
// classification plus whichever identifier (SVar or Ref) that
// classification cares about.
type Simplified struct {
	Type   ActionType
	Var    conc.VarID
	Ref    conc.RefID
	Target conc.ThreadID // Kill only
}

// Simplify reduces a Lookahead to its dependency-relevant shape.
func Simplify(la conc.Lookahead) Simplified {
	switch la.Kind {
	case conc.KPutVar, conc.KTryPutVar, conc.KTakeVar, conc.KTryTakeVar:
		return Simplified{Type: SynchronisedWrite, Var: la.Var}
	case conc.KReadVar:
		return Simplified{Type: SynchronisedRead, Var: la.Var}
	case conc.KReadRef:
		return Simplified{Type: UnsynchronisedRead, Ref: la.Ref}
	case conc.KWriteRef:
		return Simplified{Type: UnsynchronisedWrite, Ref: la.Ref}
	case conc.KModifyRef, conc.KReadForCas, conc.KCasRef, conc.KCasRef2, conc.KAtomicModifyRefCas:
		return Simplified{Type: SynchronisedModify, Ref: la.Ref}
	case conc.KCommit:
		return Simplified{Type: SynchronisedCommit, Ref: la.Ref}
	case conc.KStoreLoadBarrier, conc.KWriteBarrier:
		return Simplified{Type: Barrier}
	case conc.KAtomic:
		return Simplified{Type: STM}
	case conc.KLift, conc.KPrim:
		return Simplified{Type: Opaque}
	case conc.KThrowTo:
		return Simplified{Type: Kill, Target: la.Target}
	default:
		// Fork, MyThreadID, Yield, Stop, Return, NewVar, NewRef,
		// LoadLoadBarrier, Throw, Catching, PopCatching, Masking,
		// ResetMask, KnowsAbout, Forgets, AllKnown: none of these touch
		// shared state another thread can observe an ordering effect on.
		return Simplified{Type: Other}
	}
}

// BufferState answers, for a given ref, whether some thread currently has a
// buffered write to it pending — needed for the TSO/PSO barrier rule.
type BufferState interface {
	HasPending(ref conc.RefID) bool
}

// Dependent reports whether la1 (thread t1) and la2 (thread t2) are
// dependent, i.e. whether reordering them could change the outcome, per the
// ordered rule list.
//
// bufs and sc are only consulted for the ref/barrier rules; pass sc=true
// under SequentialConsistency, false under TSO/PSO. bufs may be nil under
// SC, where it is never consulted.
func Dependent(t1 conc.ThreadID, la1 conc.Lookahead, t2 conc.ThreadID, la2 conc.Lookahead, sc bool, bufs BufferState) bool {
	if t1 == t2 {
		return true
	}
	s1, s2 := Simplify(la1), Simplify(la2)

	if s1.Type == Opaque && s2.Type == Opaque {
		return true
	}
	if s1.Type == STM && s2.Type == STM {
		return true
	}
	if s1.Type == Kill && s1.Target == t2 {
		return true
	}
	if s2.Type == Kill && s2.Target == t1 {
		return true
	}

	if isVarOp(s1.Type) && isVarOp(s2.Type) && s1.Var == s2.Var {
		return s1.Type == SynchronisedWrite || s2.Type == SynchronisedWrite
	}

	if isRefOp(s1.Type) && isRefOp(s2.Type) && s1.Ref == s2.Ref {
		if isSynchronised(s1.Type) || isSynchronised(s2.Type) {
			return true
		}
		// both unsynchronised
		if sc {
			return s1.Type == UnsynchronisedWrite || s2.Type == UnsynchronisedWrite
		}
		return false
	}

	if s1.Type == Barrier && isRefOp(s2.Type) && s2.Type == UnsynchronisedRead && bufs != nil {
		return bufs.HasPending(s2.Ref)
	}
	if s2.Type == Barrier && isRefOp(s1.Type) && s1.Type == UnsynchronisedRead && bufs != nil {
		return bufs.HasPending(s1.Ref)
	}

	return false
}

func isVarOp(t ActionType) bool {
	return t == SynchronisedRead || t == SynchronisedWrite
}

func isRefOp(t ActionType) bool {
	switch t {
	case UnsynchronisedRead, UnsynchronisedWrite, SynchronisedModify, SynchronisedCommit:
		return true
	default:
		return false
	}
}

func isSynchronised(t ActionType) bool {
	return t == SynchronisedModify || t == SynchronisedCommit
}
