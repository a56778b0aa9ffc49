// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/debugcast/pkg/antlink"
	"github.com/Thermoquad/debugcast/pkg/debugchan"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// commandSender sends control messages to the device
type commandSender interface {
	Send(msg []byte) error
}

// Event log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// Latest state of one debug field
type fieldState struct {
	value    uint16
	updates  uint64
	lastSeen time.Time
}

// TUI model
type monitorModel struct {
	connInfo      string
	sender        commandSender
	started       time.Time
	stats         *debugchan.Statistics
	fields        map[uint8]*fieldState
	lastFastByte  uint8
	lastReport    *debugchan.ErrorReport
	filterKeys    []uint8
	filterInput   textinput.Model
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  int
	connected     bool
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type pageMsg received
type decodeErrMsg struct {
	err error
}
type syncMsg struct {
	invalidBytes int
}
type connectionLostMsg struct {
	err error
}
type filterSentMsg struct {
	keys  []uint8
	clear bool
	err   error
}

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	unit := func(n int64, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, unit(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, unit(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, unit(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, unit(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

// parseKeyList parses filter keys typed as "1,2 17"
func parseKeyList(s string) ([]uint8, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("no keys given")
	}

	keys := make([]uint8, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseUint(f, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid key %q", f)
		}
		if n == debugchan.FieldInvalid {
			return nil, fmt.Errorf("key %d is reserved", n)
		}
		keys = append(keys, uint8(n))
	}
	return keys, nil
}

// sendFilterAdd sends the filter add messages for keys
func sendFilterAdd(sender commandSender, keys []uint8) tea.Cmd {
	return func() tea.Msg {
		for _, msg := range debugchan.NewFilterAdd(keys...) {
			if err := sender.Send(msg[:]); err != nil {
				return filterSentMsg{keys: keys, err: err}
			}
		}
		return filterSentMsg{keys: keys}
	}
}

// sendFilterClear sends the filter clear message
func sendFilterClear(sender commandSender) tea.Cmd {
	return func() tea.Msg {
		msg := debugchan.NewFilterClear()
		return filterSentMsg{clear: true, err: sender.Send(msg[:])}
	}
}

func initialMonitorModel(connInfo string, sender commandSender) monitorModel {
	// Text input for filter keys
	ti := textinput.New()
	ti.Placeholder = "1,2,17"
	ti.CharLimit = 64
	ti.Width = 24

	return monitorModel{
		connInfo:      connInfo,
		sender:        sender,
		started:       time.Now(),
		stats:         debugchan.NewStatistics(),
		fields:        make(map[uint8]*fieldState),
		filterInput:   ti,
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		connected:     true,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		if msg.invalidBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after %d decode errors", msg.invalidBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case decodeErrMsg:
		m.stats.RecordDecodeError(msg.err)
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.err), true)

	case pageMsg:
		m.processPage(received(msg))

	case filterSentMsg:
		switch {
		case msg.err != nil:
			m.addLogEntry(fmt.Sprintf("Filter command failed: %v", msg.err), true)
		case msg.clear:
			m.filterKeys = nil
			m.addLogEntry("Sent FILTER_CLEAR", false)
		default:
			m.filterKeys = mergeKeys(m.filterKeys, msg.keys)
			m.addLogEntry(debugchan.FormatCommand(debugchan.Command{Kind: debugchan.CommandFilterAdd, Keys: msg.keys}), false)
		}

	case connectionLostMsg:
		m.connected = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", true)
		}
	}

	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filterInput.Focused() {
		switch msg.String() {
		case "esc":
			m.filterInput.Blur()
			return m, nil
		case "enter":
			keys, err := parseKeyList(m.filterInput.Value())
			if err != nil {
				m.addLogEntry(err.Error(), true)
				return m, nil
			}
			m.filterInput.Reset()
			m.filterInput.Blur()
			return m, sendFilterAdd(m.sender, keys)
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.filterInput, cmd = m.filterInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "f":
		cmd := m.filterInput.Focus()
		return m, cmd
	case "c":
		return m, sendFilterClear(m.sender)
	}
	return m, nil
}

// processPage updates statistics, field values and the event log
func (m *monitorModel) processPage(r received) {
	m.stats.RecordReceived(r.data, r.validationErrors)

	if len(r.validationErrors) > 0 {
		for _, verr := range r.validationErrors {
			m.addLogEntry(fmt.Sprintf("%s: %s", antlink.FormatHex(r.data), verr.Message), true)
		}
		return
	}

	// Commands from other receivers change no field values
	if r.acknowledged {
		m.addLogEntry(describeMessage(r.data, true), false)
		return
	}

	if report, err := debugchan.ParseErrorReport(r.data); err == nil {
		m.lastReport = &report
		m.addLogEntry(debugchan.FormatErrorReport(report), true)
		return
	}

	page, err := debugchan.ParsePage(r.data)
	if err != nil {
		return
	}
	m.lastFastByte = page.FastByte
	for i, pair := range page.Pairs[:page.Count] {
		if i > 0 && pair == page.Pairs[0] {
			continue
		}
		f, ok := m.fields[pair.Key]
		if !ok {
			f = &fieldState{}
			m.fields[pair.Key] = f
		}
		f.value = pair.Value
		f.updates++
		f.lastSeen = r.timestamp
	}
	if monitorShowAll {
		m.addLogEntry(describeMessage(r.data, false), false)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// mergeKeys adds keys to a sorted key set
func mergeKeys(set, keys []uint8) []uint8 {
	seen := make(map[uint8]bool, len(set))
	for _, k := range set {
		seen[k] = true
	}
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			set = append(set, k)
		}
	}
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	return set
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("DEBUGCAST - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Up %s | 'f' filter, 'c' clear, 'q' quit",
		m.connInfo, formatUptime(time.Since(m.started)))))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case !m.connected:
		s.WriteString(errorStyle.Render("✗ Disconnected"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (after %d decode errors)", m.invalidBytes)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	total := m.stats.PagesReceived + m.stats.ErrorReports + m.stats.InvalidPages
	totalErrors := m.stats.InvalidPages + m.stats.CRCErrors + m.stats.DecodeErrors
	var validPercent float64
	if total > 0 {
		validPercent = float64(m.stats.PagesReceived+m.stats.ErrorReports) * 100.0 / float64(total)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", total)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.PagesReceived+m.stats.ErrorReports, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", totalErrors)),
	))
	if m.stats.CRCErrors > 0 || m.stats.DecodeErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.CRCErrors)),
			statsLabelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.DecodeErrors)),
		))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Page Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f pages/s", m.stats.PageRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Fields
	s.WriteString(statsLabelStyle.Render(fmt.Sprintf("Fields (fast byte 0x%02X):", m.lastFastByte)))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.renderFields(statsLabelStyle, statsValueStyle, headerStyle)))
	s.WriteString("\n")

	// Filter
	filter := "off"
	if len(m.filterKeys) > 0 {
		filter = debugchan.FormatCommand(debugchan.Command{Kind: debugchan.CommandFilterAdd, Keys: m.filterKeys})
	}
	s.WriteString(fmt.Sprintf("%s %s  %s\n",
		statsLabelStyle.Render("Filter:"), statsValueStyle.Render(filter), m.filterInput.View()))

	if m.lastReport != nil {
		s.WriteString(errorStyle.Render(debugchan.FormatErrorReport(*m.lastReport)))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 20 - len(m.fields) // Reserve space for header, stats and fields
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

// renderFields lists every field seen so far, sorted by key
func (m monitorModel) renderFields(labelStyle, valueStyle, dimStyle lipgloss.Style) string {
	if len(m.fields) == 0 {
		return dimStyle.Render("(no fields yet)")
	}

	keys := make([]int, 0, len(m.fields))
	for k := range m.fields {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)

	var b strings.Builder
	for i, k := range keys {
		f := m.fields[uint8(k)]
		name := cfg.FieldName(uint8(k))
		if name == "" {
			name = "-"
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%s %-16s %s %s",
			labelStyle.Render(fmt.Sprintf("[%3d]", k)),
			name,
			valueStyle.Render(fmt.Sprintf("%5d (0x%04X)", f.value, f.value)),
			dimStyle.Render(fmt.Sprintf("x%d, %s ago", f.updates, time.Since(f.lastSeen).Truncate(time.Second))),
		))
	}
	return b.String()
}
