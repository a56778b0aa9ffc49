// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrShortMessage is returned for messages shorter than PageSize
	ErrShortMessage = errors.New("debug message too short")
	// ErrNotDebugPage is returned for messages not tagged PageDebug
	ErrNotDebugPage = errors.New("not a debug page")
)

// Pair is one (key, value) slot of a page
type Pair struct {
	Key   uint8
	Value uint16
}

// Page is one outgoing debug page.
// Pairs[:Count] carry data; the remaining pairs are sent as reserved fill.
type Page struct {
	FastByte uint8
	Pairs    [PairsPerPage]Pair
	Count    int
}

// Empty reports whether the page carries no field data
func (p Page) Empty() bool {
	return p.Count == 0
}

// Encode writes the page into dst, which must hold at least PageSize bytes
func (p Page) Encode(dst []byte) {
	_ = dst[PageSize-1] // bounds check

	dst[PageTagIndex] = PageDebug
	dst[FastByteIndex] = p.FastByte
	for i := 0; i < PairsPerPage; i++ {
		off := Key0Index + i*PairSize
		if i >= p.Count {
			dst[off] = ReservedByte
			dst[off+1] = ReservedByte
			dst[off+2] = ReservedByte
			continue
		}
		dst[off] = p.Pairs[i].Key
		binary.LittleEndian.PutUint16(dst[off+1:], p.Pairs[i].Value)
	}
}

// Bytes returns the encoded page
func (p Page) Bytes() [PageSize]byte {
	var buf [PageSize]byte
	p.Encode(buf[:])
	return buf
}

// ParsePage decodes a received debug page. Pairs whose key is FieldInvalid
// are treated as fill and skipped.
func ParsePage(data []byte) (Page, error) {
	if len(data) < PageSize {
		return Page{}, fmt.Errorf("%w: %d bytes", ErrShortMessage, len(data))
	}
	if data[PageTagIndex] != PageDebug {
		return Page{}, fmt.Errorf("%w: tag 0x%02X", ErrNotDebugPage, data[PageTagIndex])
	}

	page := Page{FastByte: data[FastByteIndex]}
	for i := 0; i < PairsPerPage; i++ {
		off := Key0Index + i*PairSize
		if data[off] == FieldInvalid {
			continue
		}
		page.Pairs[page.Count] = Pair{
			Key:   data[off],
			Value: binary.LittleEndian.Uint16(data[off+1:]),
		}
		page.Count++
	}
	return page, nil
}
