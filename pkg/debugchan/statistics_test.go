// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Thermoquad/debugcast/pkg/antlink"
)

func TestStatistics_RecordSent(t *testing.T) {
	s := NewStatistics()
	s.RecordSent(Page{Count: 2}, EventTx)
	s.RecordSent(Page{Count: 1}, EventTransferTxFailed)
	s.RecordSent(Page{}, EventChannelCollision)

	if s.PagesSent != 3 || s.PartialPages != 1 || s.FillPages != 1 || s.TxFailures != 1 || s.Collisions != 1 {
		t.Errorf("stats = %+v", s)
	}
	if !strings.Contains(s.String(), "Retransmits:") {
		t.Error("summary should list retransmits")
	}
}

func TestStatistics_RecordReceived(t *testing.T) {
	s := NewStatistics()
	page := []byte{0xF9, 0xFF, 1, 0, 0, 0xFF, 0xFF, 0xFF}
	report := ErrorReport{Code: 1, FileName: "ab", Line: 2}.Bytes()
	bad := []byte{0x00}

	s.RecordReceived(page, ValidatePage(page))
	s.RecordReceived(report[:], ValidatePage(report[:]))
	s.RecordReceived(bad, ValidatePage(bad))

	if s.PagesReceived != 1 || s.ErrorReports != 1 || s.InvalidPages != 1 {
		t.Errorf("received=%d reports=%d invalid=%d", s.PagesReceived, s.ErrorReports, s.InvalidPages)
	}
}

func TestStatistics_RecordDecodeError(t *testing.T) {
	s := NewStatistics()
	s.RecordDecodeError(fmt.Errorf("frame: %w", antlink.ErrCRCMismatch))
	s.RecordDecodeError(errors.New("unexpected END byte"))

	if s.CRCErrors != 1 || s.DecodeErrors != 1 {
		t.Errorf("crc=%d decode=%d", s.CRCErrors, s.DecodeErrors)
	}

	s.Reset()
	if s.CRCErrors != 0 || s.DecodeErrors != 0 {
		t.Error("Reset should clear counters")
	}
}
