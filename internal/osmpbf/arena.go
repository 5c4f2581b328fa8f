package osmpbf

// span is an index range into an arena, recorded while the arena may still
// grow. It is bound to a real subslice only after all appends for the group
// have settled.
type span struct {
	begin, end int
}

// arena stages entity children (tags, node refs, relation members) for one
// primitive group. The backing slice is reused across groups to amortize
// allocation, which creates the one hazard of this package: append can move
// the backing array, and any subslice taken earlier would keep pointing at
// the old one. Entities therefore record spans during decode, and the group
// loop watches for capacity growth via grown(); a grown arena means the
// in-progress entity must be rolled back (truncate) and replayed after
// rearm(). Once a full pass runs without growth, span() bindings are stable
// for the handler call.
type arena[T any] struct {
	items   []T
	baseCap int
}

// reset clears the arena for a new group and records the starting capacity.
func (a *arena[T]) reset() {
	a.items = a.items[:0]
	a.baseCap = cap(a.items)
}

// rearm accepts the current capacity as the new baseline after a growth was
// detected and handled.
func (a *arena[T]) rearm() {
	a.baseCap = cap(a.items)
}

// grown reports whether append moved the backing array since reset/rearm.
func (a *arena[T]) grown() bool {
	return cap(a.items) != a.baseCap
}

func (a *arena[T]) add(v T) {
	a.items = append(a.items, v)
}

func (a *arena[T]) len() int {
	return len(a.items)
}

// truncate rolls back the partial appends of an aborted entity.
func (a *arena[T]) truncate(n int) {
	a.items = a.items[:n]
}

// span binds an index range to a full-capacity-capped subslice.
func (a *arena[T]) span(s span) []T {
	return a.items[s.begin:s.end:s.end]
}
