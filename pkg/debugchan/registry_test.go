// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

import (
	"errors"
	"math/rand"
	"testing"
)

// checkLookupInvariant verifies that slots and the key lookup agree both ways
func checkLookupInvariant(t *testing.T, r *Registry) {
	t.Helper()
	for slot, f := range r.Fields() {
		got, ok := r.Slot(f.Key)
		if !ok || got != slot {
			t.Fatalf("slot %d holds key %d but lookup gives %d, %v", slot, f.Key, got, ok)
		}
	}
	for key := 0; key < KeySpace; key++ {
		slot, ok := r.Slot(uint8(key))
		if !ok {
			continue
		}
		if slot >= r.Size() || r.field(slot).Key != uint8(key) {
			t.Fatalf("lookup[%d] = %d does not point back at key", key, slot)
		}
	}
}

func TestRegistry_SetGet(t *testing.T) {
	r := NewRegistry(DefaultCapacity)

	if err := r.Set(5, 100); err != nil {
		t.Fatalf("Set(5) error: %v", err)
	}
	if err := r.Set(9, 7); err != nil {
		t.Fatalf("Set(9) error: %v", err)
	}
	if err := r.Set(5, 200); err != nil {
		t.Fatalf("Set(5) again error: %v", err)
	}

	if r.Size() != 2 {
		t.Errorf("Size() = %d, want 2 (re-setting a key must not allocate)", r.Size())
	}
	if v, ok := r.Get(5); !ok || v != 200 {
		t.Errorf("Get(5) = %d, %v; want 200, true", v, ok)
	}
	if v, ok := r.Get(9); !ok || v != 7 {
		t.Errorf("Get(9) = %d, %v; want 7, true", v, ok)
	}
	if slot, _ := r.Slot(9); slot != 1 {
		t.Errorf("key 9 should own slot 1 (insertion order), got %d", slot)
	}
	checkLookupInvariant(t, r)
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry(DefaultCapacity)

	// Nothing registered: must not read slot 0
	if _, ok := r.Get(0); ok {
		t.Error("Get(0) on empty registry should report absent")
	}

	r.Set(3, 42)
	for _, key := range []uint8{0, 1, 2, 4, 254, FieldInvalid} {
		if v, ok := r.Get(key); ok {
			t.Errorf("Get(%d) = %d, true; want absent", key, v)
		}
	}
}

func TestRegistry_ReservedKey(t *testing.T) {
	r := NewRegistry(DefaultCapacity)
	if err := r.Set(FieldInvalid, 1); !errors.Is(err, ErrReservedKey) {
		t.Fatalf("Set(0xFF) error = %v, want ErrReservedKey", err)
	}
	if r.Size() != 0 {
		t.Errorf("reserved key must not be registered, size = %d", r.Size())
	}
}

func TestRegistry_CapacityBoundary(t *testing.T) {
	const capacity = 4
	r := NewRegistry(capacity)

	for key := uint8(0); key < capacity; key++ {
		if err := r.Set(key, uint16(key)); err != nil {
			t.Fatalf("Set(%d) error: %v", key, err)
		}
	}

	err := r.Set(capacity, 1)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Set on full registry error = %v, want ErrCapacityExceeded", err)
	}
	if _, ok := r.Get(capacity); ok {
		t.Error("rejected key must stay absent")
	}

	// Existing keys can still be updated when full
	if err := r.Set(2, 999); err != nil {
		t.Errorf("updating existing key on full registry: %v", err)
	}
	if r.Size() != capacity {
		t.Errorf("Size() = %d, want %d", r.Size(), capacity)
	}
	checkLookupInvariant(t, r)
}

func TestRegistry_FullKeySpace(t *testing.T) {
	r := NewRegistry(DefaultCapacity)
	for key := 0; key < MaxFields; key++ {
		if err := r.Set(uint8(key), uint16(key)); err != nil {
			t.Fatalf("Set(%d) error: %v", key, err)
		}
	}
	if r.Size() != MaxFields {
		t.Errorf("Size() = %d, want %d", r.Size(), MaxFields)
	}
	checkLookupInvariant(t, r)
}

func TestNewRegistry_ClampsCapacity(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, MaxFields},
		{-3, MaxFields},
		{1000, MaxFields},
		{16, 16},
	}
	for _, tt := range tests {
		if got := NewRegistry(tt.in).Capacity(); got != tt.want {
			t.Errorf("NewRegistry(%d).Capacity() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRegistry_Increment(t *testing.T) {
	r := NewRegistry(DefaultCapacity)

	if _, ok := r.Increment(7); ok {
		t.Error("Increment on absent key should report false")
	}
	if _, ok := r.Get(7); ok {
		t.Error("Increment must not register an absent key")
	}

	r.Set(7, 41)
	if v, ok := r.Increment(7); !ok || v != 42 {
		t.Errorf("Increment(7) = %d, %v; want 42, true", v, ok)
	}

	r.Set(8, 0xFFFF)
	if v, _ := r.Increment(8); v != 0 {
		t.Errorf("Increment should wrap 65535 to 0, got %d", v)
	}
	if r.Size() != 2 {
		t.Errorf("Size() = %d, want 2", r.Size())
	}
}

func TestRegistry_RandomSequenceKeepsInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	r := NewRegistry(32)
	last := map[uint8]uint16{}

	for i := 0; i < 2000; i++ {
		key := uint8(rng.Intn(40))
		value := uint16(rng.Intn(1 << 16))
		err := r.Set(key, value)
		if err == nil {
			last[key] = value
		} else if !errors.Is(err, ErrCapacityExceeded) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if r.Size() != len(last) {
		t.Errorf("Size() = %d, distinct stored keys = %d", r.Size(), len(last))
	}
	for key, want := range last {
		if got, ok := r.Get(key); !ok || got != want {
			t.Errorf("Get(%d) = %d, %v; want %d", key, got, ok, want)
		}
	}
	checkLookupInvariant(t, r)
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry(8)
	r.Set(1, 1)
	r.Include(2)
	r.SetSelective(true)

	r.Reset()

	if r.Size() != 0 || r.Selective() {
		t.Errorf("after Reset: size=%d selective=%v", r.Size(), r.Selective())
	}
	if _, ok := r.Get(1); ok {
		t.Error("Reset should drop fields")
	}
	if r.Capacity() != 8 {
		t.Errorf("Reset should keep capacity, got %d", r.Capacity())
	}
}

// ============================================================
// Filter Tests
// ============================================================

func TestRegistry_IncludeRegistersUnknownKey(t *testing.T) {
	r := NewRegistry(DefaultCapacity)
	r.Set(1, 10)

	if err := r.Include(30); err != nil {
		t.Fatalf("Include(30) error: %v", err)
	}
	if v, ok := r.Get(30); !ok || v != PlaceholderValue {
		t.Errorf("Get(30) = %d, %v; want placeholder 0xFFFF", v, ok)
	}
	if !r.Included(30) || r.Included(1) {
		t.Errorf("Included: 30=%v 1=%v", r.Included(30), r.Included(1))
	}

	// Including again keeps one slot and the current value
	r.Set(30, 5)
	r.Include(30)
	if r.Size() != 2 {
		t.Errorf("Size() = %d, want 2", r.Size())
	}
	if v, _ := r.Get(30); v != 5 {
		t.Errorf("Include must not overwrite an existing value, got %d", v)
	}
}

func TestRegistry_Eligible(t *testing.T) {
	r := NewRegistry(DefaultCapacity)
	r.Set(1, 0)
	r.Set(2, 0)
	r.Include(2)

	if r.EligibleCount() != 2 {
		t.Errorf("with selective off every field is eligible, got %d", r.EligibleCount())
	}

	r.SetSelective(true)
	if r.Eligible(0) || !r.Eligible(1) {
		t.Errorf("selective: slot0=%v slot1=%v", r.Eligible(0), r.Eligible(1))
	}

	r.ClearFilter()
	if r.Selective() || r.Included(2) {
		t.Error("ClearFilter should turn selective off and exclude every field")
	}
}
