// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

import (
	"errors"
	"fmt"
	"strings"
)

// FormatMessage formats any message seen on the debug channel. Devices
// broadcast pages and error reports; commands travel as acknowledged
// messages, so acknowledged decides how an ambiguous payload is read.
func FormatMessage(data []byte, acknowledged bool) string {
	if acknowledged {
		cmd, err := ParseCommand(data)
		switch {
		case errors.Is(err, ErrNotDebugPage):
			return fmt.Sprintf("CUSTOM_COMMAND % X", data)
		case err != nil:
			return fmt.Sprintf("INVALID (%v)", err)
		}
		return FormatCommand(cmd)
	}

	if report, err := ParseErrorReport(data); err == nil {
		return FormatErrorReport(report)
	}
	page, err := ParsePage(data)
	if err != nil {
		return fmt.Sprintf("INVALID (%v)", err)
	}
	return FormatPage(page)
}

// FormatPage formats a data page on one line
func FormatPage(p Page) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "DEBUG_PAGE fast=0x%02X", p.FastByte)
	if p.Empty() {
		sb.WriteString(" (no fields)")
		return sb.String()
	}
	for _, pair := range p.Pairs[:p.Count] {
		fmt.Fprintf(&sb, " [%d]=%d", pair.Key, pair.Value)
	}
	return sb.String()
}

// FormatCommand formats a control command on one line
func FormatCommand(c Command) string {
	switch c.Kind {
	case CommandFilterAdd:
		keys := make([]string, len(c.Keys))
		for i, k := range c.Keys {
			keys[i] = fmt.Sprintf("%d", k)
		}
		return fmt.Sprintf("FILTER_ADD keys=[%s]", strings.Join(keys, ","))
	case CommandFilterClear:
		return "FILTER_CLEAR"
	default:
		return fmt.Sprintf("UNKNOWN_COMMAND cmd=0x%02X sub=0x%02X", c.Command, c.SubCommand)
	}
}

// FormatErrorReport formats an error report page on one line
func FormatErrorReport(e ErrorReport) string {
	return fmt.Sprintf("ERROR_REPORT code=0x%02X file=%q line=%d", e.Code, e.FileName, e.Line)
}
