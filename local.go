// Package localof provides per-owner local variables: each Owner that
// touches a LocalOf through Get or Set holds its own, independently
// initialized copy of the value.
//
// Values live in one open-addressed hash table per owner. The tables
// key on weakly referenced local identities, so dropping every
// reference to a LocalOf lets the garbage collector reclaim it and the
// tables discover and expunge its slots lazily, during later probing.
// No registration with the collector and no notification channel is
// involved.
package localof

// localKind selects what a LocalOf materializes on first Get, and
// whether it participates in owner spawning. The kind is fixed at
// construction.
type localKind uint8

const (
	// kindDefault materializes the zero value.
	kindDefault localKind = iota
	// kindSupplied invokes a user supplier.
	kindSupplied
	// kindInheritable is copied from the parent owner on Spawn, with an
	// optional transform; a first Get with no inherited value
	// materializes the zero value.
	kindInheritable
)

// localState is the untyped identity core of a LocalOf. Per-owner
// tables key on *localState through weak pointers: identity is pointer
// identity, and the hash code is allocated once here rather than
// computed from any content.
type localState struct {
	hash      uint32
	kind      localKind
	supply    func() any
	transform func(any) any
}

// childValue maps a parent owner's value to the value a spawned child
// owner starts with. Only inheritable locals support this.
func (s *localState) childValue(parent any) any {
	if s.kind != kindInheritable {
		panic("localof: childValue on a non-inheritable local")
	}
	if s.transform == nil {
		return parent
	}
	return s.transform(parent)
}

// LocalOf is a per-owner variable of type V. A LocalOf is an immutable
// identity token: it holds no value itself, only the hash code and
// initialization behavior used by the per-owner tables. Construct one
// with NewLocalOf, NewLocalOfWith or NewInheritableLocalOf and reuse it
// across any number of owners and operations.
//
// A LocalOf is safe to share between goroutines; the Owner passed to
// its methods is not (see Owner).
type LocalOf[V any] struct {
	state *localState
}

// NewLocalOf creates a LocalOf whose initial value per owner is the
// zero value of V.
func NewLocalOf[V any]() *LocalOf[V] {
	return &LocalOf[V]{state: &localState{hash: nextLocalHash(), kind: kindDefault}}
}

// NewLocalOfWith creates a LocalOf whose initial value per owner is
// produced by supply. The supplier runs at most once per owner, on the
// first Get with no value present.
func NewLocalOfWith[V any](supply func() V) *LocalOf[V] {
	if supply == nil {
		panic("localof: nil supplier")
	}
	return &LocalOf[V]{state: &localState{
		hash:   nextLocalHash(),
		kind:   kindSupplied,
		supply: func() any { return supply() },
	}}
}

// NewInheritableLocalOf creates a LocalOf whose value is passed from an
// owner to its spawned children: when a child owner is constructed from
// a parent snapshot, every value the parent holds for an inheritable
// local is run through transform and stored in the child. A nil
// transform inherits the parent value unchanged.
func NewInheritableLocalOf[V any](transform func(parent V) V) *LocalOf[V] {
	s := &localState{hash: nextLocalHash(), kind: kindInheritable}
	if transform != nil {
		s.transform = func(parent any) any {
			p, _ := parent.(V)
			return transform(p)
		}
	}
	return &LocalOf[V]{state: s}
}

// Get returns the value of l for owner o. If o holds no value yet, the
// initial value is materialized, stored, and returned, so subsequent
// Gets observe the same value until Set or Remove.
func (l *LocalOf[V]) Get(o *Owner) V {
	if t := o.table(l.state); t != nil {
		if e := t.getEntry(l.state); e != nil {
			v, _ := e.value.(V)
			return v
		}
	}
	return l.setInitial(o)
}

// setInitial is the Get miss path, split out to keep the hit path
// inlinable.
func (l *LocalOf[V]) setInitial(o *Owner) V {
	var v V
	if l.state.kind == kindSupplied {
		v, _ = l.state.supply().(V)
	}
	o.tableOrCreate(l.state).set(l.state, v)
	return v
}

// Peek reports the value of l for owner o without materializing an
// initial value on a miss.
func (l *LocalOf[V]) Peek(o *Owner) (V, bool) {
	if t := o.table(l.state); t != nil {
		if e := t.getEntry(l.state); e != nil {
			v, _ := e.value.(V)
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Set stores v as the value of l for owner o.
func (l *LocalOf[V]) Set(o *Owner, v V) {
	o.tableOrCreate(l.state).set(l.state, v)
}

// Remove deletes the value of l for owner o. Removing an absent value
// is a no-op. A later Get materializes a fresh initial value.
func (l *LocalOf[V]) Remove(o *Owner) {
	if t := o.table(l.state); t != nil {
		t.remove(l.state)
	}
}
