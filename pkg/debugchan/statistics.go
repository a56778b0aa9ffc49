// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/debugcast/pkg/antlink"
)

// Statistics tracks debug channel traffic.
// The transmit counters are kept by Channel, the receive counters by monitors.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Transmit side
	PagesSent       uint64
	FillPages       uint64 // Pages without any field data
	PartialPages    uint64 // Pages with a single field
	TxFailures      uint64
	Collisions      uint64
	CommandsApplied uint64
	CommandsIgnored uint64
	CustomCommands  uint64
	TransportErrors uint64
	ErrorPages      uint64
	Fields          int // Registered fields when the copy was taken
	EligibleFields  int // Fields the page builder may currently send

	// Receive side
	PagesReceived uint64
	ErrorReports  uint64
	InvalidPages  uint64
	CRCErrors     uint64
	DecodeErrors  uint64

	// Rates (calculated)
	PageRate  float64 // pages/sec, sent + received
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordSent counts a page handed to the transport for the given trigger
func (s *Statistics) RecordSent(page Page, trigger EventKind) {
	s.PagesSent++
	switch page.Count {
	case 0:
		s.FillPages++
	case 1:
		s.PartialPages++
	}
	switch trigger {
	case EventTransferTxFailed:
		s.TxFailures++
	case EventChannelCollision:
		s.Collisions++
	}
	s.LastUpdateTime = time.Now()
}

// RecordReceived counts a received message and its validation result
func (s *Statistics) RecordReceived(data []byte, validationErrors []ValidationError) {
	s.LastUpdateTime = time.Now()
	if len(validationErrors) > 0 {
		s.InvalidPages++
		return
	}
	if IsErrorReport(data) {
		s.ErrorReports++
		return
	}
	s.PagesReceived++
}

// RecordDecodeError counts a link-level decode failure
func (s *Statistics) RecordDecodeError(err error) {
	if errors.Is(err, antlink.ErrCRCMismatch) {
		s.CRCErrors++
	} else {
		s.DecodeErrors++
	}
	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates page and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PageRate = float64(s.PagesSent+s.PagesReceived) / elapsed
		s.ErrorRate = float64(s.errorCount()) / elapsed
	}
}

func (s *Statistics) errorCount() uint64 {
	return s.TransportErrors + s.InvalidPages + s.CRCErrors + s.DecodeErrors
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()
	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	if s.PagesSent > 0 {
		result += fmt.Sprintf("Pages Sent:      %8d\n", s.PagesSent)
		result += fmt.Sprintf("  Fill Pages:       %5d\n", s.FillPages)
		result += fmt.Sprintf("  Partial Pages:    %5d\n", s.PartialPages)
		if s.TxFailures > 0 || s.Collisions > 0 {
			result += fmt.Sprintf("  Retransmits:      %5d (failed %d, collision %d)\n", s.TxFailures+s.Collisions, s.TxFailures, s.Collisions)
		}
	}
	if s.Fields > 0 {
		result += fmt.Sprintf("Fields:          %8d registered, %d eligible\n", s.Fields, s.EligibleFields)
	}
	if s.CommandsApplied > 0 || s.CommandsIgnored > 0 {
		result += fmt.Sprintf("Commands:        %8d applied, %d ignored\n", s.CommandsApplied, s.CommandsIgnored)
	}
	if s.CustomCommands > 0 {
		result += fmt.Sprintf("Custom Commands: %8d\n", s.CustomCommands)
	}
	if s.ErrorPages > 0 {
		result += fmt.Sprintf("Error Pages:     %8d\n", s.ErrorPages)
	}
	if s.PagesReceived > 0 || s.InvalidPages > 0 {
		result += fmt.Sprintf("Pages Received:  %8d\n", s.PagesReceived)
	}
	if s.ErrorReports > 0 {
		result += fmt.Sprintf("Error Reports:   %8d\n", s.ErrorReports)
	}
	if s.InvalidPages > 0 {
		result += fmt.Sprintf("Invalid Pages:   %8d\n", s.InvalidPages)
	}
	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d\n", s.CRCErrors)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
	}
	if s.TransportErrors > 0 {
		result += fmt.Sprintf("Transport Errors:%8d\n", s.TransportErrors)
	}

	result += fmt.Sprintf("Page Rate:       %8.1f pages/sec\n", s.PageRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
