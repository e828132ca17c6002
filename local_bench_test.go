package localof

import (
	"testing"
)

func BenchmarkLocalOfGet(b *testing.B) {
	b.ReportAllocs()
	o := NewOwner()
	l := NewLocalOf[int]()
	l.Set(o, 42)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = l.Get(o)
	}
}

func BenchmarkLocalOfGetMany(b *testing.B) {
	b.ReportAllocs()
	o := NewOwner()
	locals := make([]*LocalOf[int], 128)
	for i := range locals {
		locals[i] = NewLocalOf[int]()
		locals[i].Set(o, i)
	}
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		_ = locals[i].Get(o)
		i++
		if i >= len(locals) {
			i = 0
		}
	}
}

func BenchmarkLocalOfPeekMiss(b *testing.B) {
	b.ReportAllocs()
	o := NewOwner()
	NewLocalOf[int]().Set(o, 1)
	miss := NewLocalOf[int]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = miss.Peek(o)
	}
}

func BenchmarkLocalOfSet(b *testing.B) {
	b.ReportAllocs()
	o := NewOwner()
	l := NewLocalOf[int]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Set(o, i)
	}
}

func BenchmarkLocalOfSetRemove(b *testing.B) {
	b.ReportAllocs()
	o := NewOwner()
	l := NewLocalOf[int]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Set(o, i)
		l.Remove(o)
	}
}

func BenchmarkOwnerSpawn(b *testing.B) {
	b.ReportAllocs()
	parent := NewOwner()
	locals := make([]*LocalOf[int], 16)
	for i := range locals {
		locals[i] = NewInheritableLocalOf[int](nil)
		locals[i].Set(parent, i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = parent.Spawn()
	}
}
