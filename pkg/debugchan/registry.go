// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned when a new key is set on a full registry
	ErrCapacityExceeded = errors.New("debug field registry full")
	// ErrReservedKey is returned when key 0xFF is used as a field key
	ErrReservedKey = errors.New("debug field key 0xFF is reserved")
)

// Field is one named debug value
type Field struct {
	Key      uint8
	Value    uint16
	Included bool // Eligible for transmission while selective mode is on
}

// Registry is a fixed-capacity store of debug fields.
//
// Fields live in insertion order in a dense slice of slots. A table indexed
// directly by key maps every key to its slot (or to the 0xFF sentinel), so
// set, get and increment are O(1) and never allocate once the registry is
// created. Fields are never removed individually; Reset drops all of them.
type Registry struct {
	fields    []Field
	lookup    [KeySpace]uint8
	selective bool
}

// NewRegistry creates an empty registry holding at most capacity fields.
// Capacities outside 1..MaxFields are clamped to MaxFields.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 || capacity > MaxFields {
		capacity = MaxFields
	}
	r := &Registry{fields: make([]Field, 0, capacity)}
	r.Reset()
	return r
}

// Reset drops every field and leaves selective mode off
func (r *Registry) Reset() {
	r.fields = r.fields[:0]
	for i := range r.lookup {
		r.lookup[i] = noSlot
	}
	r.selective = false
}

// Capacity returns the maximum number of fields
func (r *Registry) Capacity() int {
	return cap(r.fields)
}

// Size returns the number of registered fields
func (r *Registry) Size() int {
	return len(r.fields)
}

// Slot returns the storage slot of key
func (r *Registry) Slot(key uint8) (int, bool) {
	slot := r.lookup[key]
	if slot == noSlot {
		return 0, false
	}
	return int(slot), true
}

// Set stores value under key, registering the key in the next free slot the
// first time it is seen. New fields start excluded from the filter.
func (r *Registry) Set(key uint8, value uint16) error {
	if key == FieldInvalid {
		return ErrReservedKey
	}

	slot, ok := r.Slot(key)
	if !ok {
		if len(r.fields) == cap(r.fields) {
			return fmt.Errorf("%w: cannot add key %d (capacity %d)", ErrCapacityExceeded, key, cap(r.fields))
		}
		slot = len(r.fields)
		r.fields = append(r.fields, Field{Key: key})
		r.lookup[key] = uint8(slot)
	}

	r.fields[slot].Value = value
	return nil
}

// Get returns the value stored under key
func (r *Registry) Get(key uint8) (uint16, bool) {
	slot, ok := r.Slot(key)
	if !ok {
		return 0, false
	}
	return r.fields[slot].Value, true
}

// Increment adds one to the value under key, wrapping at 65536.
// Unknown keys are left unregistered.
func (r *Registry) Increment(key uint8) (uint16, bool) {
	value, ok := r.Get(key)
	if !ok {
		return 0, false
	}
	value++
	// Set cannot fail for a registered key
	_ = r.Set(key, value)
	return value, true
}

// Fields returns a copy of all fields in slot order
func (r *Registry) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// field returns the field in slot; callers keep slot within Size
func (r *Registry) field(slot int) Field {
	return r.fields[slot]
}
