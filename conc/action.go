package conc

// Kind tags the primitive a program under test is suspended on. Adding a
// variant here means extending the dependency oracle, its lookahead
// simplification, and the stepper in lockstep — see dep.Simplify and
// Step.
type Kind int

const (
	KFork Kind = iota
	KMyThreadID
	KYield
	KStop
	KReturn

	KNewVar
	KPutVar
	KTryPutVar
	KReadVar
	KTakeVar
	KTryTakeVar

	KNewRef
	KReadRef
	KWriteRef
	KModifyRef
	KCommit // internal, injected only by the driver for a commit pseudo-thread
	KReadForCas
	KCasRef
	KCasRef2
	KAtomicModifyRefCas

	KStoreLoadBarrier
	KLoadLoadBarrier
	KWriteBarrier

	KAtomic

	KThrow
	KThrowTo
	KCatching
	KPopCatching
	KMasking
	KResetMask

	KKnowsAbout
	KForgets
	KAllKnown

	KLift
	KPrim
)

func (k Kind) String() string {
	switch k {
	case KFork:
		return "Fork"
	case KMyThreadID:
		return "MyThreadID"
	case KYield:
		return "Yield"
	case KStop:
		return "Stop"
	case KReturn:
		return "Return"
	case KNewVar:
		return "NewVar"
	case KPutVar:
		return "PutVar"
	case KTryPutVar:
		return "TryPutVar"
	case KReadVar:
		return "ReadVar"
	case KTakeVar:
		return "TakeVar"
	case KTryTakeVar:
		return "TryTakeVar"
	case KNewRef:
		return "NewRef"
	case KReadRef:
		return "ReadRef"
	case KWriteRef:
		return "WriteRef"
	case KModifyRef:
		return "ModifyRef"
	case KCommit:
		return "Commit"
	case KReadForCas:
		return "ReadForCas"
	case KCasRef:
		return "CasRef"
	case KCasRef2:
		return "CasRef2"
	case KAtomicModifyRefCas:
		return "AtomicModifyRefCas"
	case KStoreLoadBarrier:
		return "StoreLoadBarrier"
	case KLoadLoadBarrier:
		return "LoadLoadBarrier"
	case KWriteBarrier:
		return "WriteBarrier"
	case KAtomic:
		return "Atomic"
	case KThrow:
		return "Throw"
	case KThrowTo:
		return "ThrowTo"
	case KCatching:
		return "Catching"
	case KPopCatching:
		return "PopCatching"
	case KMasking:
		return "Masking"
	case KResetMask:
		return "ResetMask"
	case KKnowsAbout:
		return "KnowsAbout"
	case KForgets:
		return "Forgets"
	case KAllKnown:
		return "AllKnown"
	case KLift:
		return "Lift"
	case KPrim:
		return "Prim"
	default:
		return "Kind(?)"
	}
}

// Result is the value an action's continuation receives. It's boxed because
// the operations in the algebra return values of many shapes (ThreadID,
// bool, arbitrary program data); Cont immediately type-asserts it back to
// something concrete.
type Result = interface{}

// Cont maps an action's result to the next action, per the "continuation"
// half of the Action/continuation pair in spec §3. A CPS-encoded program is
// just a chain of these: the interpreter invokes one, stores the returned
// Action on the thread, and stops.
type Cont func(Result) Action

// Action is one primitive a thread may suspend on, together with enough
// operands for the stepper to execute it and enough shape for the
// dependency oracle to simplify it without running it (lookahead).
type Action struct {
	Kind Kind

	// Fork
	ForkBody func() Action

	// Blocking vars (SVar)
	Var    *SVar
	PutVal interface{}

	// Refs
	Ref      *Ref
	WriteVal interface{}
	ModifyFn func(interface{}) interface{}
	Ticket   CasTicket
	Ticket2  CasTicket
	Ref2     *Ref
	CasNew   interface{}
	CasNew2  interface{}

	// STM
	Tx Transaction

	// Exceptions & masking
	Exn       error
	Target    ThreadID
	Handler   func(error) (Action, bool)
	MaskLevel MaskLevel

	// Knowledge annotations
	KnownSVar   *VarID
	KnownStmVar *StmVarID

	// External effects (opaque to the interpreter)
	External func() interface{}

	Cont Cont
}

// Stop ends the calling thread. The thread stays in the thread table,
// marked done, and is never runnable again.
func Stop() Action { return Action{Kind: KStop} }

// Return is the terminal "pure value, nothing more to do" leaf of a
// continuation chain; behaviourally identical to Stop at the single-stepper
// level (see DESIGN.md, "Open questions resolved elsewhere").
func Return() Action { return Action{Kind: KReturn} }

func Yield(cont func() Action) Action {
	return Action{Kind: KYield, Cont: func(Result) Action { return cont() }}
}

func MyThreadID(cont func(ThreadID) Action) Action {
	return Action{Kind: KMyThreadID, Cont: func(r Result) Action { return cont(r.(ThreadID)) }}
}

func Fork(body func() Action, cont func(ThreadID) Action) Action {
	return Action{Kind: KFork, ForkBody: body, Cont: func(r Result) Action { return cont(r.(ThreadID)) }}
}

func NewVar(cont func(*SVar) Action) Action {
	return Action{Kind: KNewVar, Cont: func(r Result) Action { return cont(r.(*SVar)) }}
}

func PutVar(v *SVar, val interface{}, cont func() Action) Action {
	return Action{Kind: KPutVar, Var: v, PutVal: val, Cont: func(Result) Action { return cont() }}
}

func TryPutVar(v *SVar, val interface{}, cont func(ok bool) Action) Action {
	return Action{Kind: KTryPutVar, Var: v, PutVal: val, Cont: func(r Result) Action { return cont(r.(bool)) }}
}

func ReadVar(v *SVar, cont func(interface{}) Action) Action {
	return Action{Kind: KReadVar, Var: v, Cont: func(r Result) Action { return cont(r) }}
}

func TakeVar(v *SVar, cont func(interface{}) Action) Action {
	return Action{Kind: KTakeVar, Var: v, Cont: func(r Result) Action { return cont(r) }}
}

// TryTakeResult is the boxed result of TryTakeVar.
type TryTakeResult struct {
	Val interface{}
	OK  bool
}

func TryTakeVar(v *SVar, cont func(TryTakeResult) Action) Action {
	return Action{Kind: KTryTakeVar, Var: v, Cont: func(r Result) Action { return cont(r.(TryTakeResult)) }}
}

func NewRef(initial interface{}, cont func(*Ref) Action) Action {
	return Action{Kind: KNewRef, WriteVal: initial, Cont: func(r Result) Action { return cont(r.(*Ref)) }}
}

func ReadRef(r *Ref, cont func(interface{}) Action) Action {
	return Action{Kind: KReadRef, Ref: r, Cont: func(res Result) Action { return cont(res) }}
}

func WriteRef(r *Ref, val interface{}, cont func() Action) Action {
	return Action{Kind: KWriteRef, Ref: r, WriteVal: val, Cont: func(Result) Action { return cont() }}
}

func ModifyRef(r *Ref, fn func(interface{}) interface{}, cont func() Action) Action {
	return Action{Kind: KModifyRef, Ref: r, ModifyFn: fn, Cont: func(Result) Action { return cont() }}
}

// CasTicket is the read-side witness of a ReadForCas; it records the
// commit-count observed at the time of the read so a later CasRef can tell
// whether the ref was touched in between.
type CasTicket struct {
	ref         *Ref
	commitCount uint64
	val         interface{}
}

func ReadForCas(r *Ref, cont func(CasTicket) Action) Action {
	return Action{Kind: KReadForCas, Ref: r, Cont: func(res Result) Action { return cont(res.(CasTicket)) }}
}

// CasResult is the boxed result of CasRef: whether the swap took effect,
// and a fresh ticket usable for a follow-up CAS either way.
type CasResult struct {
	Swapped bool
	Ticket  CasTicket
}

func CasRef(t CasTicket, new interface{}, cont func(CasResult) Action) Action {
	return Action{Kind: KCasRef, Ref: t.ref, Ticket: t, CasNew: new, Cont: func(r Result) Action { return cont(r.(CasResult)) }}
}

// Cas2Result is the boxed result of CasRef2.
type Cas2Result struct {
	Swapped bool
	T1, T2  CasTicket
}

func CasRef2(t1, t2 CasTicket, new1, new2 interface{}, cont func(Cas2Result) Action) Action {
	return Action{
		Kind: KCasRef2, Ref: t1.ref, Ticket: t1, CasNew: new1,
		Ref2: t2.ref, Ticket2: t2, CasNew2: new2,
		Cont: func(r Result) Action { return cont(r.(Cas2Result)) },
	}
}

func AtomicModifyRefCas(r *Ref, fn func(interface{}) interface{}, cont func(interface{}) Action) Action {
	return Action{Kind: KAtomicModifyRefCas, Ref: r, ModifyFn: fn, Cont: func(res Result) Action { return cont(res) }}
}

func StoreLoadBarrier(cont func() Action) Action {
	return Action{Kind: KStoreLoadBarrier, Cont: func(Result) Action { return cont() }}
}

func LoadLoadBarrier(cont func() Action) Action {
	return Action{Kind: KLoadLoadBarrier, Cont: func(Result) Action { return cont() }}
}

func WriteBarrier(cont func() Action) Action {
	return Action{Kind: KWriteBarrier, Cont: func(Result) Action { return cont() }}
}

func Atomic(tx Transaction, cont func(interface{}) Action) Action {
	return Action{Kind: KAtomic, Tx: tx, Cont: func(r Result) Action { return cont(r) }}
}

// Throw unwinds the calling thread's handler stack looking for a handler
// that accepts err, i.e. one whose call with err returns ok.
func Throw(err error) Action {
	return Action{Kind: KThrow, Exn: err}
}

func ThrowTo(target ThreadID, err error, cont func() Action) Action {
	return Action{Kind: KThrowTo, Target: target, Exn: err, Cont: func(Result) Action { return cont() }}
}

// Catching pushes handler onto the calling thread's handler stack, then
// continues with body. The protected region must end with PopCatching once
// it completes without throwing.
func Catching(handler func(error) (Action, bool), body func() Action) Action {
	return Action{Kind: KCatching, Handler: handler, ForkBody: body}
}

func PopCatching(cont func() Action) Action {
	return Action{Kind: KPopCatching, Cont: func(Result) Action { return cont() }}
}

func Masking(level MaskLevel, body func() Action) Action {
	return Action{Kind: KMasking, MaskLevel: level, ForkBody: body}
}

func ResetMask(level MaskLevel, cont func() Action) Action {
	return Action{Kind: KResetMask, MaskLevel: level, Cont: func(Result) Action { return cont() }}
}

func KnowsAboutVar(v VarID, cont func() Action) Action {
	return Action{Kind: KKnowsAbout, KnownSVar: &v, Cont: func(Result) Action { return cont() }}
}

func KnowsAboutStmVar(v StmVarID, cont func() Action) Action {
	return Action{Kind: KKnowsAbout, KnownStmVar: &v, Cont: func(Result) Action { return cont() }}
}

func ForgetsVar(v VarID, cont func() Action) Action {
	return Action{Kind: KForgets, KnownSVar: &v, Cont: func(Result) Action { return cont() }}
}

func AllKnown(cont func() Action) Action {
	return Action{Kind: KAllKnown, Cont: func(Result) Action { return cont() }}
}

func Lift(io func() interface{}, cont func(interface{}) Action) Action {
	return Action{Kind: KLift, External: io, Cont: func(r Result) Action { return cont(r) }}
}

func Prim(io func() interface{}, cont func(interface{}) Action) Action {
	return Action{Kind: KPrim, External: io, Cont: func(r Result) Action { return cont(r) }}
}

// MaskLevel is a thread's current asynchronous-exception masking state.
type MaskLevel int

const (
	Unmasked MaskLevel = iota
	MaskedInterruptible
	MaskedUninterruptible
)

func (m MaskLevel) String() string {
	switch m {
	case Unmasked:
		return "Unmasked"
	case MaskedInterruptible:
		return "MaskedInterruptible"
	case MaskedUninterruptible:
		return "MaskedUninterruptible"
	default:
		return "MaskLevel(?)"
	}
}
