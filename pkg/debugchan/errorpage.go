// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

import (
	"encoding/binary"
	"errors"
)

// ErrNotErrorReport is returned when a page does not carry the error report tags
var ErrNotErrorReport = errors.New("not an error report page")

// ErrorReport is the one-shot page a device sends on a fatal fault
//
//	[F9][code][FieldFileName][name[1]][name[0]][FieldErrorLine][line lo][line hi]
type ErrorReport struct {
	Code     uint8
	FileName string // Only the first two characters are sent
	Line     uint16
}

// Bytes encodes the report
func (e ErrorReport) Bytes() [PageSize]byte {
	var name [2]byte
	copy(name[:], e.FileName)

	buf := [PageSize]byte{PageDebug, e.Code, FieldFileName, name[1], name[0], FieldErrorLine}
	binary.LittleEndian.PutUint16(buf[6:], e.Line)
	return buf
}

// IsErrorReport reports whether data is tagged as an error report page
func IsErrorReport(data []byte) bool {
	return len(data) >= PageSize &&
		data[PageTagIndex] == PageDebug &&
		data[2] == FieldFileName &&
		data[5] == FieldErrorLine
}

// ParseErrorReport decodes an error report page
func ParseErrorReport(data []byte) (ErrorReport, error) {
	if !IsErrorReport(data) {
		return ErrorReport{}, ErrNotErrorReport
	}

	name := make([]byte, 0, 2)
	for _, c := range []byte{data[4], data[3]} {
		if c == 0 {
			break
		}
		name = append(name, c)
	}

	return ErrorReport{
		Code:     data[1],
		FileName: string(name),
		Line:     binary.LittleEndian.Uint16(data[6:]),
	}, nil
}
