// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// FieldState is one field as recorded in a snapshot
type FieldState struct {
	Key      uint8  `cbor:"0,keyasint"`
	Value    uint16 `cbor:"1,keyasint"`
	Included bool   `cbor:"2,keyasint"`
}

// Snapshot is a diagnostic copy of a channel's state.
// Snapshots are never loaded back into a channel.
type Snapshot struct {
	TakenMs   int64        `cbor:"0,keyasint"`
	Capacity  int          `cbor:"1,keyasint"`
	Selective bool         `cbor:"2,keyasint"`
	FastByte  uint8        `cbor:"3,keyasint"`
	Cursor    int          `cbor:"4,keyasint"`
	Fields    []FieldState `cbor:"5,keyasint"`
}

var snapshotEncMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("debugchan: cbor enc mode: %v", err))
	}
	return em
}

// MarshalSnapshot encodes a snapshot as deterministic CBOR
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	data, err := snapshotEncMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes a CBOR snapshot
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s, nil
}

// Lookup returns the recorded field for key
func (s Snapshot) Lookup(key uint8) (FieldState, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldState{}, false
}
