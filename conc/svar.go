package conc

// SVar is a single-slot blocking channel (§3). At most one value is present
// at a time; put/take/read wake waiters by wake-all semantics (§4.2) and the
// scheduler picks which woken thread actually runs next.
type SVar struct {
	ID   VarID
	full bool
	val  interface{}

	fullWaiters  []ThreadID // threads blocked OnSVarFull, i.e. waiting to take/read
	emptyWaiters []ThreadID // threads blocked OnSVarEmpty, i.e. waiting to put
}

func newSVar(id VarID) *SVar {
	return &SVar{ID: id}
}

// put stores val if the slot is empty, reporting success. It does not wake
// anyone directly; the caller (the stepper) is responsible for moving woken
// threads back to runnable once it knows who actually wakes.
func (v *SVar) put(val interface{}) bool {
	if v.full {
		return false
	}
	v.full = true
	v.val = val
	return true
}

func (v *SVar) take() (interface{}, bool) {
	if !v.full {
		return nil, false
	}
	val := v.val
	v.full = false
	v.val = nil
	return val, true
}

func (v *SVar) read() (interface{}, bool) {
	if !v.full {
		return nil, false
	}
	return v.val, true
}
