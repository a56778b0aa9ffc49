// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// EventKind identifies a transport notification
type EventKind int

// Event kinds delivered to Channel.ProcessEvent
const (
	EventNone EventKind = iota
	EventTx               // Transmit opportunity
	EventTransferTxFailed // Previous transfer failed
	EventChannelCollision // Previous transfer collided
	EventRx               // Message received
)

// String returns the human-readable event name
func (k EventKind) String() string {
	switch k {
	case EventTx:
		return "TX"
	case EventTransferTxFailed:
		return "TRANSFER_TX_FAILED"
	case EventChannelCollision:
		return "CHANNEL_COLLISION"
	case EventRx:
		return "RX"
	default:
		return "NONE"
	}
}

// Event is one transport notification. Payload is only used by EventRx.
type Event struct {
	Kind    EventKind
	Payload []byte
}

// ChannelParams describes the broadcast channel the transport opens
type ChannelParams struct {
	Number           uint8
	Network          uint8
	RFFrequency      uint8  // MHz above 2400
	Period           uint16 // In 1/32768 s
	DeviceType       uint8
	TransmissionType uint8
	DeviceNumber     uint16
}

// DefaultChannelParams returns the standard debug channel setup
func DefaultChannelParams() ChannelParams {
	return ChannelParams{
		Network:          DefaultNetwork,
		RFFrequency:      DefaultRFFrequency,
		Period:           DefaultPeriod,
		DeviceType:       DefaultDeviceType,
		TransmissionType: DefaultTransmissionType,
	}
}

// Interval returns the channel period as a duration
func (p ChannelParams) Interval() time.Duration {
	period := p.Period
	if period == 0 {
		period = DefaultPeriod
	}
	return time.Duration(period) * time.Second / PeriodTicksPerSecond
}

// Transport is the broadcast link the channel transmits on
type Transport interface {
	Open(params ChannelParams) error
	Broadcast(page []byte) error
}

// CustomCommandHandler receives messages that are not debug channel commands
type CustomCommandHandler interface {
	HandleCustomCommand(msg []byte)
}

// CustomCommandFunc adapts a function to CustomCommandHandler
type CustomCommandFunc func(msg []byte)

// HandleCustomCommand calls f(msg)
func (f CustomCommandFunc) HandleCustomCommand(msg []byte) {
	f(msg)
}

// Config configures a Channel
type Config struct {
	Capacity int // Registry capacity, DefaultCapacity when zero
	Params   ChannelParams
	Logger   *slog.Logger
}

// Channel is one debug channel instance.
//
// All state is guarded by a single mutex, so events may be delivered from
// several goroutines (a transmit ticker and a receive loop, typically). The
// transport and the custom command handler are always called with the lock
// released, which lets a handler update fields from inside the callback.
type Channel struct {
	mu        sync.Mutex
	transport Transport
	params    ChannelParams
	reg       *Registry
	sched     *Scheduler
	fastByte  uint8
	tx        [PageSize]byte
	custom    CustomCommandHandler
	stats     *Statistics
	logger    *slog.Logger
}

// NewChannel creates a channel transmitting on t. Call Init before use.
func NewChannel(t Transport, cfg Config) *Channel {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := NewRegistry(cfg.Capacity)
	return &Channel{
		transport: t,
		params:    cfg.Params,
		reg:       reg,
		sched:     NewScheduler(reg),
		fastByte:  DefaultFastByte,
		stats:     NewStatistics(),
		logger:    logger,
	}
}

// Params returns the channel parameters
func (c *Channel) Params() ChannelParams {
	return c.params
}

// Init clears all fields, the filter, the cursor and the fast byte, then
// opens the channel on the transport
func (c *Channel) Init() error {
	c.mu.Lock()
	c.reg.Reset()
	c.sched.Reset()
	c.fastByte = DefaultFastByte
	c.tx = [PageSize]byte{}
	c.stats.Reset()
	c.mu.Unlock()

	if err := c.transport.Open(c.params); err != nil {
		return fmt.Errorf("failed to open debug channel: %w", err)
	}
	c.logger.Info("[debugchan] channel open",
		"rfFreq", c.params.RFFrequency,
		"period", c.params.Period,
		"deviceType", c.params.DeviceType,
		"deviceNumber", c.params.DeviceNumber)
	return nil
}

// RegisterCustomCommandHandler sets the handler for non-debug messages.
// Passing nil unregisters it; such messages are then dropped.
func (c *Channel) RegisterCustomCommandHandler(h CustomCommandHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.custom = h
}

// SetField stores a debug field value
func (c *Channel) SetField(key uint8, value uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.Set(key, value)
}

// GetField returns a debug field value
func (c *Channel) GetField(key uint8) (uint16, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.Get(key)
}

// IncrementField adds one to a registered debug field
func (c *Channel) IncrementField(key uint8) (uint16, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.Increment(key)
}

// SetFastByte sets the byte sent at offset 1 of every page
func (c *Channel) SetFastByte(b uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fastByte = b
}

// FastByte returns the current fast byte
func (c *Channel) FastByte() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fastByte
}

// Selective reports whether the channel only sends filtered fields
func (c *Channel) Selective() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.Selective()
}

// Fields returns a copy of all registered fields in slot order
func (c *Channel) Fields() []Field {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.Fields()
}

// ForceErrorPage broadcasts an error report immediately, outside the page cycle
func (c *Channel) ForceErrorPage(code uint8, line uint16, fileName string) error {
	c.mu.Lock()
	c.tx = ErrorReport{Code: code, FileName: fileName, Line: line}.Bytes()
	out := c.tx
	c.stats.ErrorPages++
	c.mu.Unlock()

	c.logger.Warn("[debugchan] error page", "code", code, "file", fileName, "line", line)
	return c.broadcast(out[:])
}

// ProcessEvent handles one transport notification
func (c *Channel) ProcessEvent(ev Event) error {
	switch ev.Kind {
	case EventChannelCollision, EventTransferTxFailed, EventTx:
		return c.updateTx(ev.Kind)
	case EventRx:
		return c.handleRx(ev.Payload)
	default:
		return nil
	}
}

// updateTx builds the next page and hands it to the transport
func (c *Channel) updateTx(trigger EventKind) error {
	c.mu.Lock()
	page := c.sched.BuildPage(c.tx[:], c.fastByte)
	out := c.tx
	c.stats.RecordSent(page, trigger)
	c.mu.Unlock()

	if trigger != EventTx {
		c.logger.Debug("[debugchan] resending after link event", "event", trigger.String())
	}
	return c.broadcast(out[:])
}

func (c *Channel) broadcast(page []byte) error {
	if err := c.transport.Broadcast(page); err != nil {
		c.mu.Lock()
		c.stats.TransportErrors++
		c.mu.Unlock()
		c.logger.Error("[debugchan] broadcast failed", "error", err)
		return fmt.Errorf("failed to broadcast debug page: %w", err)
	}
	return nil
}

// handleRx decodes debug commands and forwards everything else to the
// custom command handler
func (c *Channel) handleRx(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}

	if payload[PageTagIndex] != PageDebug {
		c.mu.Lock()
		handler := c.custom
		if handler != nil {
			c.stats.CustomCommands++
		}
		c.mu.Unlock()

		if handler != nil {
			handler.HandleCustomCommand(payload)
		}
		return nil
	}

	cmd, err := ParseCommand(payload)
	if err != nil || cmd.Kind == CommandUnknown {
		c.mu.Lock()
		c.stats.CommandsIgnored++
		c.mu.Unlock()
		c.logger.Debug("[debugchan] ignoring debug message", "payload", fmt.Sprintf("% X", payload), "error", err)
		return nil
	}

	c.mu.Lock()
	err = cmd.Apply(c.reg)
	c.stats.CommandsApplied++
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("[debugchan] command failed", "command", cmd.Kind.String(), "error", err)
		return fmt.Errorf("failed to apply %s: %w", cmd.Kind, err)
	}
	c.logger.Debug("[debugchan] command applied", "command", cmd.Kind.String(), "keys", cmd.Keys)
	return nil
}

// Snapshot returns a diagnostic copy of the channel state
func (c *Channel) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	fields := c.reg.Fields()
	states := make([]FieldState, len(fields))
	for i, f := range fields {
		states[i] = FieldState{Key: f.Key, Value: f.Value, Included: f.Included}
	}
	return Snapshot{
		TakenMs:   time.Now().UnixMilli(),
		Capacity:  c.reg.Capacity(),
		Selective: c.reg.Selective(),
		FastByte:  c.fastByte,
		Cursor:    c.sched.Cursor(),
		Fields:    states,
	}
}

// Stats returns a copy of the channel statistics
func (c *Channel) Stats() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := *c.stats
	stats.Fields = c.reg.Size()
	stats.EligibleFields = c.reg.EligibleCount()
	stats.CalculateRates()
	return stats
}
