// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

// Scheduler picks the fields for each outgoing page.
//
// It walks the registry slots round-robin from a persistent cursor, taking the
// first two eligible fields it meets. The walk is bounded by the registry
// size: when fewer than two fields are eligible the page carries what was
// found and the rest is reserved fill. The cursor always ends one past the
// last slot examined, so every eligible field is visited equally often.
type Scheduler struct {
	reg    *Registry
	cursor int
}

// NewScheduler creates a scheduler over reg with the cursor at slot 0
func NewScheduler(reg *Registry) *Scheduler {
	return &Scheduler{reg: reg}
}

// Cursor returns the slot the next scan starts from
func (s *Scheduler) Cursor() int {
	return s.cursor
}

// Reset moves the cursor back to slot 0
func (s *Scheduler) Reset() {
	s.cursor = 0
}

// Next builds the next page and advances the cursor
func (s *Scheduler) Next(fastByte uint8) Page {
	page := Page{FastByte: fastByte}

	size := s.reg.Size()
	if size == 0 {
		return page
	}
	if s.cursor >= size {
		s.cursor = 0
	}

	slot := s.cursor
	for steps := 0; steps < size && page.Count < PairsPerPage; steps++ {
		if s.reg.Eligible(slot) {
			f := s.reg.field(slot)
			page.Pairs[page.Count] = Pair{Key: f.Key, Value: f.Value}
			page.Count++
		}
		slot++
		if slot == size {
			slot = 0
		}
	}
	s.cursor = slot

	return page
}

// BuildPage builds the next page straight into dst (at least PageSize bytes)
func (s *Scheduler) BuildPage(dst []byte, fastByte uint8) Page {
	page := s.Next(fastByte)
	page.Encode(dst)
	return page
}
