// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/debugcast/internal/recorder"
	"github.com/Thermoquad/debugcast/pkg/antlink"
	"github.com/Thermoquad/debugcast/pkg/debugchan"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	monitorChannel       uint8
	monitorShowAll       bool
	monitorStatsInterval int
	monitorTUI           bool
	monitorRecord        string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode, validate and record debug channel pages",
	Long: `Receive debug channel pages and check them as they arrive.

Each page is validated against what a well-behaved device emits:
  - Page length and page tag
  - Fill pairs carrying data, or data after fill
  - The same key sent twice in one page with different values
Error report pages are always shown.

By default, only errors are displayed. Use --show-all to display valid pages too.
Field names from the configuration file are shown next to their keys.

The terminal UI keeps the latest value of every field and can send filter
commands: press 'f', type the keys (e.g. "1,2,17") and Enter; press 'c' to
clear the filter.

With --record (or recorder.path), every received message is stored in a
SQLite database for later analysis.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Uint8Var(&monitorChannel, "channel", 0, "Channel number on the bridge")
	monitorCmd.Flags().BoolVar(&monitorShowAll, "show-all", false, "Show all pages (not just errors)")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&monitorTUI, "tui", true, "Use terminal UI (false for text mode)")
	monitorCmd.Flags().StringVar(&monitorRecord, "record", "", "Record received messages to this SQLite database (overrides recorder.path)")
}

// received is one debug channel message taken off the link
type received struct {
	data             []byte
	acknowledged     bool
	timestamp        time.Time
	validationErrors []debugchan.ValidationError
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	recordPath := cfg.Recorder.Path
	if monitorRecord != "" {
		recordPath = monitorRecord
	}
	var rec *recorder.Recorder
	if recordPath != "" {
		rec, err = recorder.Open(ctx, recordPath)
		if err != nil {
			return err
		}
		defer rec.Close()
		logger.Info("[monitor] recording", "path", recordPath, "session", rec.Session())
	}

	transport := newLinkTransport(conn, monitorChannel)

	if monitorTUI {
		err = runMonitorTUI(ctx, conn, transport, rec, connInfo)
	} else {
		err = runMonitorText(ctx, conn, rec, connInfo)
	}
	if rec != nil {
		// ctx is usually cancelled by now
		logRecorded(context.Background(), rec)
	}
	return err
}

// logRecorded logs how many messages of each kind this run recorded
func logRecorded(ctx context.Context, rec *recorder.Recorder) {
	args := []any{"session", rec.Session()}
	for _, kind := range recorder.Kinds {
		n, err := rec.Count(ctx, kind)
		if err != nil {
			logger.Warn("[monitor] recorder count failed", "error", err)
			return
		}
		args = append(args, kind, n)
	}
	logger.Info("[monitor] recorded", args...)
}

// receive validates and records one data frame
func receive(ctx context.Context, rec *recorder.Recorder, f antlink.Frame) received {
	r := received{
		data:             f.Payload,
		acknowledged:     f.IsAcknowledged(),
		timestamp:        f.Timestamp,
		validationErrors: debugchan.ValidateMessage(f.Payload, f.IsAcknowledged()),
	}
	if r.timestamp.IsZero() {
		r.timestamp = time.Now()
	}
	if rec != nil {
		if err := rec.Record(ctx, r.data, r.acknowledged, r.timestamp); err != nil {
			logger.Warn("[monitor] record failed", "error", err)
		}
	}
	return r
}

// describeMessage formats a message, naming the configured fields of data pages
func describeMessage(data []byte, acknowledged bool) string {
	s := debugchan.FormatMessage(data, acknowledged)
	if recorder.Classify(data, acknowledged) != recorder.KindData {
		return s
	}
	page, err := debugchan.ParsePage(data)
	if err != nil {
		return s
	}

	var names []string
	for _, pair := range page.Pairs[:page.Count] {
		if name := cfg.FieldName(pair.Key); name != "" {
			names = append(names, fmt.Sprintf("%d=%s", pair.Key, name))
		}
	}
	if len(names) > 0 {
		s += " (" + strings.Join(names, ", ") + ")"
	}
	return s
}

// runMonitorText prints errors (and optionally every page) as plain text
func runMonitorText(ctx context.Context, conn Connection, rec *recorder.Recorder, connInfo string) error {
	fmt.Printf("Debugcast - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", monitorStatsInterval)
	if monitorShowAll {
		fmt.Printf("Mode: All pages\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := debugchan.NewStatistics()
	synchronized := false
	invalidBytesBeforeSync := 0

	// Frames and decode errors share one channel to keep their order
	type linkItem struct {
		frame antlink.Frame
		err   error
	}
	items := make(chan linkItem, 32)
	readerDone := make(chan error, 1)
	go func() {
		readerDone <- readFrames(ctx, conn, frameHandler{
			onFrame: func(f antlink.Frame) { deliver(ctx, items, linkItem{frame: f}) },
			onError: func(err error) { deliver(ctx, items, linkItem{err: err}) },
		})
	}()

	statsTicker := time.NewTicker(time.Duration(max(monitorStatsInterval, 1)) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Print(stats.String())
			return nil

		case err := <-readerDone:
			if err == ErrConnectionClosed {
				logger.Info("[monitor] connection closed")
				return nil
			}
			return err

		case item := <-items:
			if item.err != nil {
				if !synchronized {
					invalidBytesBeforeSync++
					continue
				}
				stats.RecordDecodeError(item.err)
				timestamp := time.Now().Format("15:04:05.000")
				fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, item.err)
				continue
			}

			f := item.frame
			if !synchronized {
				synchronized = true
				if invalidBytesBeforeSync > 0 {
					fmt.Printf("[SYNC] Synchronized after %d decode errors\n\n", invalidBytesBeforeSync)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}
			if !f.IsData() {
				if monitorShowAll {
					fmt.Println(antlink.FormatFrame(f))
				}
				continue
			}

			r := receive(ctx, rec, f)
			stats.RecordReceived(r.data, r.validationErrors)
			timestamp := r.timestamp.Format("15:04:05.000")

			switch {
			case len(r.validationErrors) > 0:
				fmt.Printf("[%s] \033[1;31mINVALID PAGE:\033[0m %s\n", timestamp, antlink.FormatHex(r.data))
				for _, verr := range r.validationErrors {
					fmt.Printf("  - %s\n", verr.Message)
				}
			case debugchan.IsErrorReport(r.data):
				fmt.Printf("[%s] \033[1;33m%s\033[0m\n", timestamp, describeMessage(r.data, r.acknowledged))
			case monitorShowAll:
				fmt.Printf("[%s] %s\n", timestamp, describeMessage(r.data, r.acknowledged))
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// deliver hands item to the consumer of items unless ctx ends first
func deliver[T any](ctx context.Context, items chan<- T, item T) {
	select {
	case items <- item:
	case <-ctx.Done():
	}
}

// runMonitorTUI runs the monitor terminal UI until the user quits
func runMonitorTUI(ctx context.Context, conn Connection, sender commandSender, rec *recorder.Recorder, connInfo string) error {
	m := initialMonitorModel(connInfo, sender)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		synchronized := false
		invalidBytesBeforeSync := 0

		err := readFrames(ctx, conn, frameHandler{
			onFrame: func(f antlink.Frame) {
				if !synchronized {
					synchronized = true
					p.Send(syncMsg{invalidBytes: invalidBytesBeforeSync})
				}
				if f.IsData() {
					p.Send(pageMsg(receive(ctx, rec, f)))
				}
			},
			onError: func(err error) {
				if !synchronized {
					invalidBytesBeforeSync++
					return
				}
				p.Send(decodeErrMsg{err: err})
			},
		})
		p.Send(connectionLostMsg{err: err})
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
