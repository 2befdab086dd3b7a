package conc

// BlockReason explains why a thread is not runnable.
type BlockReason struct {
	OnSVarFull  *VarID
	OnSVarEmpty *VarID
	OnStm       map[StmVarID]bool
	OnMask      *ThreadID
}

func (b BlockReason) String() string {
	switch {
	case b.OnSVarFull != nil:
		return "OnSVarFull"
	case b.OnSVarEmpty != nil:
		return "OnSVarEmpty"
	case b.OnStm != nil:
		return "OnStm"
	case b.OnMask != nil:
		return "OnMask"
	default:
		return "not blocked"
	}
}

func blockedOnSVarFull(id VarID) BlockReason  { return BlockReason{OnSVarFull: &id} }
func blockedOnSVarEmpty(id VarID) BlockReason { return BlockReason{OnSVarEmpty: &id} }
func blockedOnStm(touched map[StmVarID]bool) BlockReason {
	return BlockReason{OnStm: touched}
}
func blockedOnMask(target ThreadID) BlockReason { return BlockReason{OnMask: &target} }

// Thread is one entry of the thread table (§4.2).
type Thread struct {
	ID ThreadID

	// Pending is the next action this thread will execute once chosen.
	// Absent (IsDone) once the thread has finished.
	Pending Action
	IsDone  bool

	Blocked     bool
	BlockReason BlockReason

	Handlers []func(error) (Action, bool)
	Masking  MaskLevel

	KnownSVars   map[VarID]bool
	KnownStmVars map[StmVarID]bool
	FullyKnown   bool
}

func newThread(id ThreadID, start Action) *Thread {
	return &Thread{
		ID:           id,
		Pending:      start,
		KnownSVars:   make(map[VarID]bool),
		KnownStmVars: make(map[StmVarID]bool),
	}
}

// Runnable reports whether the scheduler may legally pick this thread
// (invariant 1 of §4.2).
func (t *Thread) Runnable() bool { return !t.IsDone && !t.Blocked }

// ThreadTable is the map ThreadID -> *Thread plus the bookkeeping needed to
// add/remove threads and enumerate who's runnable.
type ThreadTable struct {
	threads map[ThreadID]*Thread
	order   []ThreadID // insertion order, for deterministic iteration
}

func newThreadTable() *ThreadTable {
	return &ThreadTable{threads: make(map[ThreadID]*Thread)}
}

func (tt *ThreadTable) add(t *Thread) {
	tt.threads[t.ID] = t
	tt.order = append(tt.order, t.ID)
}

func (tt *ThreadTable) get(id ThreadID) *Thread { return tt.threads[id] }

// Runnable returns the IDs of every thread the scheduler could legally pick
// next, in a fixed deterministic order (ascending ID). The thread table
// holds no commit pseudo-threads, so none appear here.
func (tt *ThreadTable) Runnable() []ThreadID {
	var out []ThreadID
	for _, id := range tt.order {
		if tt.threads[id].Runnable() {
			out = append(out, id)
		}
	}
	sortThreadIDs(out)
	return out
}

func sortThreadIDs(ids []ThreadID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
