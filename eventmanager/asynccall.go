package eventmanager

// Call schedules fn to run once on the dispatch-or-executor thread
// selected by ct, through a one-shot listener that self-unregisters
// after firing. No result is delivered to the caller.
func Call(em *Manager, fn func(), ct CallType) {
	CallR(em, func() struct{} { fn(); return struct{}{} }, ct)
}

// CallR is like Call but fn's return value is discarded; R only
// constrains the type the self-unregistering listener closes over.
func CallR[R any](em *Manager, fn func() R, ct CallType) {
	var id ListenerID
	id = em.AddTargetedListener(func(ev *Event) {
		fn()
		em.RemoveListener(id)
	}, ct)
	em.FireEvent(NewTargetedEvent(id, nil))
}

// CallCB runs fn() then cb(result), both under call-type ct. Since the
// fn and cb call-types match here, cb runs inline in the same listener
// invocation — see CallCBTyped for split call-types.
func CallCB[R any](em *Manager, fn func() R, cb func(R), ct CallType) {
	CallCBTyped(em, fn, cb, ct, ct)
}

// CallCBTyped runs fn() under fnCT, then runs cb(result): if fnCT
// equals cbCT, cb is invoked inline in the same executor as fn;
// otherwise cb is scheduled as a fresh async call under cbCT.
func CallCBTyped[R any](em *Manager, fn func() R, cb func(R), fnCT, cbCT CallType) {
	var id ListenerID
	id = em.AddTargetedListener(func(ev *Event) {
		result := fn()
		em.RemoveListener(id)
		if fnCT == cbCT {
			cb(result)
			return
		}
		CallR(em, func() struct{} { cb(result); return struct{}{} }, cbCT)
	}, fnCT)
	em.FireEvent(NewTargetedEvent(id, nil))
}
