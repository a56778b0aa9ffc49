// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package antlink

import (
	"errors"
	"fmt"
)

// ErrPayloadTooLarge is returned when a frame payload exceeds MaxPayloadSize
var ErrPayloadTooLarge = errors.New("antlink: payload too large")

// Encode creates a complete wire-formatted frame.
// Returns the bytes ready for transmission, including framing and byte stuffing.
func Encode(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(f.Payload), MaxPayloadSize)
	}

	// length + msg id + channel + payload is what gets CRC'd and stuffed
	data := make([]byte, 0, HeaderSize+len(f.Payload)+2)
	data = append(data, uint8(len(f.Payload)), f.MsgID, f.Channel)
	data = append(data, f.Payload...)

	crc := CalculateCRC(data)
	data = append(data, byte(crc>>8), byte(crc))

	stuffed := stuffBytes(data)

	out := make([]byte, 0, len(stuffed)+2)
	out = append(out, StartByte)
	out = append(out, stuffed...)
	out = append(out, EndByte)
	return out, nil
}

// MustEncode encodes a frame and panics on error.
// Only use it with payloads known to fit.
func MustEncode(f Frame) []byte {
	data, err := Encode(f)
	if err != nil {
		panic(fmt.Sprintf("antlink: encode error: %v", err))
	}
	return data
}

// stuffBytes replaces START, END and ESC with ESC + (byte XOR EscXor)
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)
	for _, b := range data {
		switch b {
		case StartByte, EndByte, EscByte:
			result = append(result, EscByte, b^EscXor)
		default:
			result = append(result, b)
		}
	}
	return result
}
