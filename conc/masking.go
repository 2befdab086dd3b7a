package conc

// canDeliverAsync reports whether an async exception may be delivered to t
// right now (§4.5): a MaskedUninterruptible thread never accepts one: a
// MaskedInterruptible thread only accepts one while it is itself blocked.
func canDeliverAsync(t *Thread) bool {
	switch t.Masking {
	case MaskedUninterruptible:
		return false
	case MaskedInterruptible:
		return t.Blocked
	default:
		return true
	}
}

// unwind searches t's handler stack top-down for a handler that accepts
// err, popping it (and everything above it) off the stack. ok is false if
// no handler matches, in which case the caller must treat this as an
// uncaught exception (§4.5).
func unwind(t *Thread, err error) (next Action, ok bool) {
	for len(t.Handlers) > 0 {
		top := t.Handlers[len(t.Handlers)-1]
		t.Handlers = t.Handlers[:len(t.Handlers)-1]
		if next, ok = top(err); ok {
			return next, true
		}
	}
	return Action{}, false
}
