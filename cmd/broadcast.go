// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/Thermoquad/debugcast/internal/config"
	"github.com/Thermoquad/debugcast/pkg/antlink"
	"github.com/Thermoquad/debugcast/pkg/debugchan"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// Error codes sent in error report pages
const (
	errorCodeConfig   = 0x01
	errorCodeLink     = 0x02
	errorCodeSnapshot = 0x03
)

var (
	broadcastChannel     uint8
	broadcastRadioEvents bool
	broadcastWatch       bool
	broadcastSnapshot    string
	broadcastStats       int
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Broadcast debug fields as a debug channel device",
	Long: `Act as a debug channel device: register the configured fields and cycle
them, two per page, onto the broadcast at the channel period.

Fields and the heartbeat key come from the configuration file. The heartbeat
field is incremented once per period, so a receiver can tell the device is alive.

Filter commands received from a monitor narrow the cycle down to the requested
keys. Other received messages are logged as custom commands.

By default pages are sent from a local ticker. With --radio-events, pages are
only sent when the bridge reports a transmit opportunity (EVENT_TX) or a failed
or collided transfer.

With --watch, edits to the configuration file are applied while running.`,
	RunE: runBroadcast,
}

func init() {
	rootCmd.AddCommand(broadcastCmd)
	broadcastCmd.Flags().Uint8Var(&broadcastChannel, "channel", 0, "Channel number on the bridge")
	broadcastCmd.Flags().BoolVar(&broadcastRadioEvents, "radio-events", false, "Send pages on bridge channel events instead of a local ticker")
	broadcastCmd.Flags().BoolVar(&broadcastWatch, "watch", false, "Reload fields when the configuration file changes")
	broadcastCmd.Flags().StringVar(&broadcastSnapshot, "snapshot", "", "Write a CBOR state snapshot to this file (overrides snapshot.path)")
	broadcastCmd.Flags().IntVar(&broadcastStats, "stats-interval", 0, "Print statistics every N seconds (0 = off)")
}

func runBroadcast(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	params := cfg.Params()
	params.Number = broadcastChannel

	transport := newLinkTransport(conn, broadcastChannel)
	ch := debugchan.NewChannel(transport, debugchan.Config{
		Capacity: cfg.Channel.Capacity,
		Params:   params,
		Logger:   logger,
	})
	if err := ch.Init(); err != nil {
		return err
	}

	if err := applyConfig(ch, cfg); err != nil {
		return reportFatal(ch, errorCodeConfig, err)
	}
	ch.RegisterCustomCommandHandler(debugchan.CustomCommandFunc(func(msg []byte) {
		logger.Info("[broadcast] custom command", "payload", antlink.FormatHex(msg))
	}))

	fmt.Printf("Debugcast - Broadcast\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Channel: %d, period %v, %d fields\n", params.Number, params.Interval(), len(ch.Fields()))
	fmt.Printf("Press Ctrl+C to exit\n\n")

	// Reader: received messages and bridge events
	readerDone := make(chan error, 1)
	go func() {
		readerDone <- readFrames(ctx, conn, frameHandler{
			onFrame: func(f antlink.Frame) { handleBroadcastFrame(ch, f) },
			onError: func(err error) { logger.Debug("[broadcast] decode error", "error", err) },
		})
	}()

	if broadcastWatch && configPath != "" {
		go watchConfig(ctx, configPath, ch)
	}

	snapshotPath := cfg.Snapshot.Path
	if broadcastSnapshot != "" {
		snapshotPath = broadcastSnapshot
	}
	var snapshotTick <-chan time.Time
	if snapshotPath != "" {
		interval := time.Duration(cfg.Snapshot.IntervalMs) * time.Millisecond
		if interval <= 0 {
			interval = time.Second
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		snapshotTick = t.C
	}

	var statsTick <-chan time.Time
	if broadcastStats > 0 {
		t := time.NewTicker(time.Duration(broadcastStats) * time.Second)
		defer t.Stop()
		statsTick = t.C
	}

	var pageTick <-chan time.Time
	if !broadcastRadioEvents {
		t := time.NewTicker(params.Interval())
		defer t.Stop()
		pageTick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Print(statsOf(ch).String())
			if snapshotPath != "" {
				writeSnapshot(ch, snapshotPath)
			}
			return nil

		case err := <-readerDone:
			if err != nil {
				return reportFatal(ch, errorCodeLink, err)
			}
			return nil

		case <-pageTick:
			sendPage(ch, debugchan.EventTx)

		case <-snapshotTick:
			if err := writeSnapshot(ch, snapshotPath); err != nil {
				return reportFatal(ch, errorCodeSnapshot, err)
			}

		case <-statsTick:
			fmt.Println()
			fmt.Print(statsOf(ch).String())
			fmt.Println()
		}
	}
}

// sendPage bumps the heartbeat and hands the next page to the channel
func sendPage(ch *debugchan.Channel, kind debugchan.EventKind) {
	if kind == debugchan.EventTx && cfg.Heartbeat.Key != nil {
		ch.IncrementField(*cfg.Heartbeat.Key)
	}
	if err := ch.ProcessEvent(debugchan.Event{Kind: kind}); err != nil {
		logger.Warn("[broadcast] page not sent", "error", err)
	}
}

// handleBroadcastFrame routes a received frame into the channel
func handleBroadcastFrame(ch *debugchan.Channel, f antlink.Frame) {
	if f.IsData() {
		if err := ch.ProcessEvent(debugchan.Event{Kind: debugchan.EventRx, Payload: f.Payload}); err != nil {
			logger.Warn("[broadcast] command failed", "error", err)
		}
		return
	}

	code, ok := f.Event()
	if !ok {
		return
	}
	kind, ok := linkEvent(code)
	if !ok {
		logger.Debug("[broadcast] ignoring channel event", "event", antlink.FormatEvent(code))
		return
	}
	if broadcastRadioEvents {
		sendPage(ch, kind)
	}
}

// applyConfig registers the configured fields and the heartbeat key
func applyConfig(ch *debugchan.Channel, c *config.Config) error {
	for _, f := range c.Fields {
		if err := ch.SetField(f.Key, f.Value); err != nil {
			return fmt.Errorf("field %d (%s): %w", f.Key, f.Name, err)
		}
	}
	if c.Heartbeat.Key != nil {
		if _, ok := ch.GetField(*c.Heartbeat.Key); !ok {
			if err := ch.SetField(*c.Heartbeat.Key, 0); err != nil {
				return fmt.Errorf("heartbeat field %d: %w", *c.Heartbeat.Key, err)
			}
		}
	}
	ch.SetFastByte(c.Channel.FastByte)
	return nil
}

// reportFatal broadcasts an error report naming the caller, then returns err
func reportFatal(ch *debugchan.Channel, code uint8, err error) error {
	file, line := "??", 0
	if _, f, l, ok := runtime.Caller(1); ok {
		file, line = filepath.Base(f), l
	}
	if sendErr := ch.ForceErrorPage(code, reportLine(line), file); sendErr != nil {
		logger.Error("[broadcast] error page not sent", "error", sendErr)
	}
	return err
}

// reportLine fits a source line into the 16-bit line field of an error report
func reportLine(line int) uint16 {
	return uint16(min(max(line, 0), math.MaxUint16))
}

// watchConfig applies configuration edits until ctx is done.
// Fields are only ever added or updated; removed fields keep their last value.
func watchConfig(ctx context.Context, path string, ch *debugchan.Channel) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("[broadcast] config watch failed", "error", err)
		return
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Error("[broadcast] config watch failed", "path", path, "error", err)
		return
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := reloadConfig(path, ch); err != nil {
				logger.Warn("[broadcast] config reload rejected", "error", err)
				continue
			}
			logger.Info("[broadcast] config reloaded", "fields", len(ch.Fields()))

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("[broadcast] config watch error", "error", err)
		}
	}
}

func reloadConfig(path string, ch *debugchan.Channel) error {
	next, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := config.Validate(next); err != nil {
		return err
	}
	return applyConfig(ch, next)
}

// writeSnapshot replaces path with the current channel snapshot
func writeSnapshot(ch *debugchan.Channel, path string) error {
	data, err := debugchan.MarshalSnapshot(ch.Snapshot())
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func statsOf(ch *debugchan.Channel) *debugchan.Statistics {
	s := ch.Stats()
	return &s
}
