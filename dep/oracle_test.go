package dep

import (
	"testing"

	"github.com/jwaldmann/dejafu/conc"
)

func TestTwoReadsOfSameVarAreIndependent(t *testing.T) {
	la := conc.Lookahead{Kind: conc.KReadVar, Var: 1}
	if Dependent(0, la, 1, la, true, nil) {
		t.Fatal("two reads of the same SVar must be independent")
	}
}

func TestReadAndTakeOfSameVarAreDependent(t *testing.T) {
	read := conc.Lookahead{Kind: conc.KReadVar, Var: 1}
	take := conc.Lookahead{Kind: conc.KTakeVar, Var: 1}
	if !Dependent(0, read, 1, take, true, nil) {
		t.Fatal("a read and a take of the same SVar must be dependent")
	}
}

func TestUnsynchronisedReadsOfSameRefIndependentUnderSC(t *testing.T) {
	la := conc.Lookahead{Kind: conc.KReadRef, Ref: 1}
	if Dependent(0, la, 1, la, true, nil) {
		t.Fatal("two unsynchronised reads must be independent even under SC")
	}
}

func TestUnsynchronisedReadWriteDependentUnderSC(t *testing.T) {
	read := conc.Lookahead{Kind: conc.KReadRef, Ref: 1}
	write := conc.Lookahead{Kind: conc.KWriteRef, Ref: 1}
	if !Dependent(0, read, 1, write, true, nil) {
		t.Fatal("an unsynchronised read and write of the same ref must be dependent under SC")
	}
}

func TestUnsynchronisedReadWriteIndependentUnderRelaxedModel(t *testing.T) {
	read := conc.Lookahead{Kind: conc.KReadRef, Ref: 1}
	write := conc.Lookahead{Kind: conc.KWriteRef, Ref: 1}
	if Dependent(0, read, 1, write, false, nil) {
		t.Fatal("under TSO/PSO, one thread's unsynchronised read is independent of another's unsynchronised write")
	}
}

func TestSynchronisedModifyAlwaysDependentOnSameRef(t *testing.T) {
	read := conc.Lookahead{Kind: conc.KReadRef, Ref: 1}
	modify := conc.Lookahead{Kind: conc.KModifyRef, Ref: 1}
	if !Dependent(0, read, 1, modify, false, nil) {
		t.Fatal("a synchronised modify is dependent on any other access to the same ref, in any memory model")
	}
}

type fakeBufs struct{ pending map[conc.RefID]bool }

func (f fakeBufs) HasPending(r conc.RefID) bool { return f.pending[r] }

func TestBarrierDependentOnUnsynchronisedReadOnlyIfBuffered(t *testing.T) {
	barrier := conc.Lookahead{Kind: conc.KStoreLoadBarrier}
	read := conc.Lookahead{Kind: conc.KReadRef, Ref: 1}

	if Dependent(0, barrier, 1, read, false, fakeBufs{pending: map[conc.RefID]bool{}}) {
		t.Fatal("a barrier is independent of a read if nothing is buffered for that ref")
	}
	if !Dependent(0, barrier, 1, read, false, fakeBufs{pending: map[conc.RefID]bool{1: true}}) {
		t.Fatal("a barrier is dependent on a read of a ref that has a buffered write pending")
	}
}

func TestThrowToDependentOnlyWithItsTarget(t *testing.T) {
	kill := conc.Lookahead{Kind: conc.KThrowTo, Target: 2}
	other := conc.Lookahead{Kind: conc.KYield}
	if Dependent(0, kill, 2, other, true, nil) != true {
		t.Fatal("a ThrowTo must be dependent on every action of its target thread")
	}
	if Dependent(0, kill, 3, other, true, nil) {
		t.Fatal("a ThrowTo must not be dependent on an unrelated thread's action")
	}
}

func TestOpaqueActionsAlwaysDependent(t *testing.T) {
	la := conc.Lookahead{Kind: conc.KLift}
	if !Dependent(0, la, 1, la, true, nil) {
		t.Fatal("two opaque (Lift/Prim) actions must always be treated as dependent")
	}
}
