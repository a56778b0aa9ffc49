// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

import (
	"encoding/binary"
	"fmt"
)

// AnomalyType represents different types of page anomalies
type AnomalyType int

const (
	AnomalyLengthMismatch AnomalyType = iota
	AnomalyWrongTag
	AnomalyReservedKeyData
	AnomalyDuplicateKey
	AnomalyFillOrder
)

// ValidationError represents a page validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePage checks a received debug page against what a well-behaved
// device can emit. Returns an empty slice for a valid page or error report.
func ValidatePage(data []byte) []ValidationError {
	if len(data) != PageSize {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("page length %d (expected %d)", len(data), PageSize),
			Details: map[string]interface{}{"length": len(data), "expected": PageSize},
		}}
	}
	if data[PageTagIndex] != PageDebug {
		return []ValidationError{{
			Type:    AnomalyWrongTag,
			Message: fmt.Sprintf("page tag 0x%02X (expected 0x%02X)", data[PageTagIndex], PageDebug),
			Details: map[string]interface{}{"tag": data[PageTagIndex]},
		}}
	}
	if IsErrorReport(data) {
		return []ValidationError{}
	}

	errors := []ValidationError{}
	seenFill := false
	var (
		firstKey   uint8
		firstValue uint16
	)
	for i := 0; i < PairsPerPage; i++ {
		off := Key0Index + i*PairSize
		key := data[off]
		value := binary.LittleEndian.Uint16(data[off+1:])

		if key == FieldInvalid {
			if value != PlaceholderValue {
				errors = append(errors, ValidationError{
					Type:    AnomalyReservedKeyData,
					Message: fmt.Sprintf("pair %d: reserved key carries value %d", i, value),
					Details: map[string]interface{}{"pair": i, "value": value},
				})
			}
			seenFill = true
			continue
		}

		if seenFill {
			errors = append(errors, ValidationError{
				Type:    AnomalyFillOrder,
				Message: fmt.Sprintf("pair %d: data after fill", i),
				Details: map[string]interface{}{"pair": i, "key": key},
			})
		}
		// A device with one eligible field may repeat it in both pairs
		if i > 0 && !seenFill && key == firstKey && value != firstValue {
			errors = append(errors, ValidationError{
				Type:    AnomalyDuplicateKey,
				Message: fmt.Sprintf("key %d sent twice in one page with values %d and %d", key, firstValue, value),
				Details: map[string]interface{}{"key": key, "values": []uint16{firstValue, value}},
			})
		}
		if i == 0 {
			firstKey, firstValue = key, value
		}
	}

	return errors
}

// ValidateMessage validates a received data message. Broadcast messages are
// pages and go through ValidatePage. Acknowledged messages are commands:
// only their length is checked, and any page tag other than PageDebug is a
// custom command.
func ValidateMessage(data []byte, acknowledged bool) []ValidationError {
	if !acknowledged {
		return ValidatePage(data)
	}
	if len(data) != PageSize {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("command length %d (expected %d)", len(data), PageSize),
			Details: map[string]interface{}{"length": len(data), "expected": PageSize},
		}}
	}
	return []ValidationError{}
}
