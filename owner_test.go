package localof

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestOwnerSpawnInheritsValues(t *testing.T) {
	parent := NewOwner()

	inherited := NewInheritableLocalOf[int](nil)
	doubled := NewInheritableLocalOf(func(p int) int { return p * 2 })
	plain := NewLocalOf[int]()
	supplied := NewLocalOfWith(func() int { return 9 })

	inherited.Set(parent, 1)
	doubled.Set(parent, 21)
	plain.Set(parent, 3)
	supplied.Set(parent, 4)

	child := parent.Spawn()

	// Inheritable values cross over, transformed; everything else
	// starts fresh in the child.
	require.Equal(t, 1, inherited.Get(child))
	require.Equal(t, 42, doubled.Get(child))

	_, ok := plain.Peek(child)
	require.False(t, ok, "plain local leaked into child")
	_, ok = supplied.Peek(child)
	require.False(t, ok, "supplied local leaked into child")
	require.Equal(t, 2, child.Len())
}

func TestOwnerSpawnIndependence(t *testing.T) {
	parent := NewOwner()
	a := NewInheritableLocalOf[string](nil)
	b := NewInheritableLocalOf[string](nil)
	a.Set(parent, "pa")
	b.Set(parent, "pb")

	child := parent.Spawn()
	a.Set(child, "ca")
	b.Remove(child)
	a.Set(parent, "pa2")

	collect := func(o *Owner) map[string]any {
		out := map[string]any{}
		if v, ok := a.Peek(o); ok {
			out["a"] = v
		}
		if v, ok := b.Peek(o); ok {
			out["b"] = v
		}
		return out
	}

	wantParent := map[string]any{"a": "pa2", "b": "pb"}
	if diff := cmp.Diff(wantParent, collect(parent)); diff != "" {
		t.Fatalf("parent state mismatch (-want +got):\n%s", diff)
	}
	wantChild := map[string]any{"a": "ca"}
	if diff := cmp.Diff(wantChild, collect(child)); diff != "" {
		t.Fatalf("child state mismatch (-want +got):\n%s", diff)
	}
}

func TestOwnerSpawnEmpty(t *testing.T) {
	child := NewOwner().Spawn()
	require.Equal(t, 0, child.Len())

	l := NewInheritableLocalOf[int](nil)
	_, ok := l.Peek(child)
	require.False(t, ok)

	// A spawned owner is a fully functional owner.
	l.Set(child, 5)
	require.Equal(t, 5, l.Get(child))
}

func TestOwnerSnapshotConsumedLater(t *testing.T) {
	parent := NewOwner()
	l := NewInheritableLocalOf[int](nil)
	l.Set(parent, 7)

	snap := parent.Snapshot()
	child := NewOwnerFrom(snap)
	require.Equal(t, 7, l.Get(child))

	// Grandchildren inherit through the same mechanism.
	grandchild := child.Spawn()
	require.Equal(t, 7, l.Get(grandchild))
}

func TestOwnerSpawnTransformChain(t *testing.T) {
	depth := NewInheritableLocalOf(func(p int) int { return p + 1 })

	o := NewOwner()
	depth.Set(o, 0)
	for want := 1; want <= 3; want++ {
		o = o.Spawn()
		require.Equal(t, want, depth.Get(o))
	}
}

func TestOwnerLenCountsBothTables(t *testing.T) {
	o := NewOwner()
	require.Equal(t, 0, o.Len())

	NewLocalOf[int]().Set(o, 1)
	NewInheritableLocalOf[int](nil).Set(o, 2)
	require.Equal(t, 2, o.Len())
}

func TestChildValueNonInheritablePanics(t *testing.T) {
	require.Panics(t, func() {
		newStateWithHash(1).childValue(0)
	})
	require.Panics(t, func() {
		s := &localState{hash: 2, kind: kindSupplied}
		s.childValue(0)
	})
}
