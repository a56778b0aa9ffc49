// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package antlink

import (
	"errors"
	"fmt"
	"time"
)

// ErrCRCMismatch is returned when a complete frame fails its CRC check
var ErrCRCMismatch = errors.New("CRC mismatch")

// Decoder implements the link frame decoder state machine
type Decoder struct {
	state       int
	buffer      []byte
	bufferIndex int
	escapeNext  bool
	length      int
	frame       *Frame
	rawBuffer   []byte // Wire bytes of the frame in progress, from START
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, MaxFrameSize),
		rawBuffer: make([]byte, 0, MaxFrameSize*2),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.bufferIndex = 0
	d.length = 0
	d.escapeNext = false
	d.frame = nil
	d.rawBuffer = d.rawBuffer[:0]
}

// Decode feeds a chunk of bytes through the decoder and returns every
// complete frame found in it. Decode errors are reported through onErr
// (which may be nil) and do not stop the scan.
func (d *Decoder) Decode(chunk []byte, onErr func(error)) []Frame {
	var frames []Frame
	for _, b := range chunk {
		f, err := d.DecodeByte(b)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			continue
		}
		if f != nil {
			frames = append(frames, *f)
		}
	}
	return frames
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil if the frame is incomplete.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	// Framing bytes are never stuffed, so they resync regardless of state
	if b == StartByte {
		d.Reset()
		d.rawBuffer = append(d.rawBuffer, b)
		d.state = stateLength
		return nil, nil
	}
	if d.state != stateIdle {
		d.rawBuffer = append(d.rawBuffer, b)
	}

	if b == EndByte {
		state := d.state
		if state == stateEnd && !d.escapeNext {
			frame := d.frame
			frame.Raw = append([]byte(nil), d.rawBuffer...)
			calculated := CalculateCRC(d.buffer[:d.bufferIndex])
			d.Reset()
			if frame.CRC != calculated {
				return nil, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRCMismatch, calculated, frame.CRC)
			}
			frame.Timestamp = time.Now()
			return frame, nil
		}
		d.Reset()
		if state == stateIdle {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected END byte in state %d", state)
	}

	if d.state == stateIdle {
		return nil, nil
	}

	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}
	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}

	switch d.state {
	case stateLength:
		if b > MaxPayloadSize {
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (max %d)", b, MaxPayloadSize)
		}
		d.length = int(b)
		d.frame = &Frame{Payload: make([]byte, 0, b)}
		d.push(b)
		d.state = stateMsgID
		return nil, nil

	case stateMsgID:
		d.frame.MsgID = b
		d.push(b)
		d.state = stateChannel
		return nil, nil

	case stateChannel:
		d.frame.Channel = b
		d.push(b)
		if d.length == 0 {
			d.state = stateCRC1
		} else {
			d.state = statePayload
		}
		return nil, nil

	case statePayload:
		d.frame.Payload = append(d.frame.Payload, b)
		d.push(b)
		if len(d.frame.Payload) >= d.length {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.frame.CRC = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.frame.CRC |= uint16(b)
		d.state = stateEnd
		return nil, nil

	case stateEnd:
		d.Reset()
		return nil, fmt.Errorf("expected END byte, got 0x%02X", b)

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// push appends b to the CRC'd section of the frame
func (d *Decoder) push(b byte) {
	d.buffer[d.bufferIndex] = b
	d.bufferIndex++
}
