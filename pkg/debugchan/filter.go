// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

// Selective reports whether only included fields are transmitted
func (r *Registry) Selective() bool {
	return r.selective
}

// SetSelective switches selective mode on or off without touching inclusion flags
func (r *Registry) SetSelective(on bool) {
	r.selective = on
}

// Include marks key as eligible while selective mode is on. A key nobody has
// set yet is registered first with PlaceholderValue so it owns a slot.
func (r *Registry) Include(key uint8) error {
	slot, ok := r.Slot(key)
	if !ok {
		if err := r.Set(key, PlaceholderValue); err != nil {
			return err
		}
		slot, _ = r.Slot(key)
	}
	r.fields[slot].Included = true
	return nil
}

// Included reports whether key is registered and included in the filter
func (r *Registry) Included(key uint8) bool {
	slot, ok := r.Slot(key)
	return ok && r.fields[slot].Included
}

// ClearFilter leaves selective mode and excludes every field again
func (r *Registry) ClearFilter() {
	r.selective = false
	for i := range r.fields {
		r.fields[i].Included = false
	}
}

// Eligible reports whether the field in slot may go into the next page
func (r *Registry) Eligible(slot int) bool {
	if !r.selective {
		return true
	}
	return r.fields[slot].Included
}

// EligibleCount returns how many registered fields are currently eligible
func (r *Registry) EligibleCount() int {
	n := 0
	for slot := range r.fields {
		if r.Eligible(slot) {
			n++
		}
	}
	return n
}
