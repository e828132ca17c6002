package localof

// Owner is one logical execution context. Every LocalOf value is stored
// under exactly one owner, in tables the owner creates lazily on first
// insertion and drops with itself.
//
// An Owner must not be used from more than one goroutine at a time: the
// tables have no internal synchronization, by construction. The only
// sanctioned cross-context interaction is the one-shot Snapshot taken
// when spawning a child; the surrounding handoff protocol must order
// the snapshot before the child starts operating independently.
type Owner struct {
	// locals holds values of plain and supplied locals; inheritables
	// holds values of inheritable locals. Keeping the two populations
	// apart means a child construction only ever walks entries whose
	// keys support childValue.
	locals       *ownerTable
	inheritables *ownerTable
}

// NewOwner creates an owner with no values.
func NewOwner() *Owner {
	return &Owner{}
}

// table returns the table responsible for s, or nil if it has not been
// created yet.
func (o *Owner) table(s *localState) *ownerTable {
	if s.kind == kindInheritable {
		return o.inheritables
	}
	return o.locals
}

// tableOrCreate returns the table responsible for s, creating it on
// first insertion.
func (o *Owner) tableOrCreate(s *localState) *ownerTable {
	if s.kind == kindInheritable {
		if o.inheritables == nil {
			o.inheritables = newOwnerTable()
		}
		return o.inheritables
	}
	if o.locals == nil {
		o.locals = newOwnerTable()
	}
	return o.locals
}

// Len returns the number of occupied slots across the owner's tables,
// including stale slots that have not been expunged yet.
func (o *Owner) Len() int {
	n := 0
	if o.locals != nil {
		n += o.locals.size
	}
	if o.inheritables != nil {
		n += o.inheritables.size
	}
	return n
}

// Snapshot is an opaque reference to an owner's inheritable state,
// consumed by NewOwnerFrom. It does not copy anything by itself.
type Snapshot struct {
	table *ownerTable
}

// Snapshot captures o's inheritable locals for constructing a child
// owner. The parent must not mutate its inheritable values between
// taking the snapshot and passing it to NewOwnerFrom.
func (o *Owner) Snapshot() Snapshot {
	return Snapshot{table: o.inheritables}
}

// NewOwnerFrom constructs a child owner from a parent snapshot. Every
// live inheritable value in the snapshot is run through its local's
// transform and stored in the child; the result shares no state with
// the parent, and mutating either afterwards does not affect the other.
func NewOwnerFrom(snap Snapshot) *Owner {
	o := &Owner{}
	if snap.table != nil {
		o.inheritables = newInheritedTable(snap.table)
	}
	return o
}

// Spawn is shorthand for NewOwnerFrom(o.Snapshot()).
func (o *Owner) Spawn() *Owner {
	return NewOwnerFrom(o.Snapshot())
}
