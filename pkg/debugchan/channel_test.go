// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// fakeTransport records every broadcast page
type fakeTransport struct {
	mu      sync.Mutex
	opened  []ChannelParams
	pages   [][]byte
	failErr error
}

func (f *fakeTransport) Open(params ChannelParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, params)
	return nil
}

func (f *fakeTransport) Broadcast(page []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.pages = append(f.pages, append([]byte(nil), page...))
	return nil
}

func (f *fakeTransport) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pages) == 0 {
		return nil
	}
	return f.pages[len(f.pages)-1]
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pages)
}

func newTestChannel(t *testing.T, capacity int) (*Channel, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	ch := NewChannel(tr, Config{
		Capacity: capacity,
		Params:   DefaultChannelParams(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := ch.Init(); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	return ch, tr
}

func rx(data ...byte) Event {
	return Event{Kind: EventRx, Payload: data}
}

func TestChannel_InitOpensTransport(t *testing.T) {
	ch, tr := newTestChannel(t, 0)
	if len(tr.opened) != 1 || tr.opened[0] != DefaultChannelParams() {
		t.Fatalf("opened = %+v", tr.opened)
	}

	ch.SetField(1, 10)
	ch.SetFastByte(0x42)
	ch.ProcessEvent(rx(NewFilterAdd(1)[0][:]...))

	if err := ch.Init(); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	if len(ch.Fields()) != 0 || ch.FastByte() != DefaultFastByte || ch.Selective() {
		t.Error("Init should reset fields, fast byte and filter")
	}
}

func TestChannel_TxEventsSendPages(t *testing.T) {
	ch, tr := newTestChannel(t, 0)
	ch.SetField(5, 100)
	ch.SetField(9, 7)

	for _, kind := range []EventKind{EventTx, EventTransferTxFailed, EventChannelCollision} {
		if err := ch.ProcessEvent(Event{Kind: kind}); err != nil {
			t.Fatalf("%v: %v", kind, err)
		}
	}
	if tr.count() != 3 {
		t.Fatalf("sent %d pages, want 3", tr.count())
	}

	want := []byte{0xF9, 0xFF, 0x05, 0x64, 0x00, 0x09, 0x07, 0x00}
	for i, page := range tr.pages {
		if string(page) != string(want) {
			t.Errorf("page %d = % X, want % X", i, page, want)
		}
	}

	stats := ch.Stats()
	if stats.PagesSent != 3 || stats.TxFailures != 1 || stats.Collisions != 1 {
		t.Errorf("stats = sent %d failed %d collision %d", stats.PagesSent, stats.TxFailures, stats.Collisions)
	}
}

func TestChannel_EmptyChannelSendsFill(t *testing.T) {
	ch, tr := newTestChannel(t, 0)
	ch.SetFastByte(0x10)
	ch.ProcessEvent(Event{Kind: EventTx})

	want := []byte{0xF9, 0x10, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	if string(tr.last()) != string(want) {
		t.Errorf("page = % X, want % X", tr.last(), want)
	}
	if ch.Stats().FillPages != 1 {
		t.Error("fill page not counted")
	}
}

func TestChannel_NoneEventIsIgnored(t *testing.T) {
	ch, tr := newTestChannel(t, 0)
	if err := ch.ProcessEvent(Event{}); err != nil || tr.count() != 0 {
		t.Errorf("EventNone: err=%v pages=%d", err, tr.count())
	}
}

func TestChannel_FilterCommands(t *testing.T) {
	ch, tr := newTestChannel(t, 0)
	for k := uint8(1); k <= 6; k++ {
		ch.SetField(k, uint16(k)*10)
	}

	if err := ch.ProcessEvent(rx(0xF9, 0x03, 0x01, 2, 0xFF, 4, 0xFF, 0xFF)); err != nil {
		t.Fatalf("filter add: %v", err)
	}
	if !ch.Selective() {
		t.Fatal("selective mode should be on")
	}
	if st := ch.Stats(); st.Fields != 6 || st.EligibleFields != 2 {
		t.Errorf("fields = %d eligible = %d, want 6 and 2", st.Fields, st.EligibleFields)
	}

	for i := 0; i < 6; i++ {
		ch.ProcessEvent(Event{Kind: EventTx})
		page, _ := ParsePage(tr.last())
		for _, key := range pageKeys(page) {
			if key != 2 && key != 4 {
				t.Fatalf("page % X carries key %d", tr.last(), key)
			}
		}
	}

	msg := NewFilterClear()
	if err := ch.ProcessEvent(rx(msg[:]...)); err != nil {
		t.Fatalf("filter clear: %v", err)
	}
	if ch.Selective() {
		t.Fatal("selective mode should be off")
	}
	if st := ch.Stats(); st.EligibleFields != 6 {
		t.Errorf("eligible = %d after clear, want 6", st.EligibleFields)
	}
	if ch.Stats().CommandsApplied != 2 {
		t.Errorf("CommandsApplied = %d, want 2", ch.Stats().CommandsApplied)
	}
}

func TestChannel_UnknownCommandIgnored(t *testing.T) {
	ch, _ := newTestChannel(t, 0)
	ch.SetField(1, 1)

	for _, msg := range [][]byte{
		{0xF9, 0x07, 0x01, 1, 2, 3, 4, 5},
		{0xF9, 0x03, 0x09, 1, 2, 3, 4, 5},
		{0xF9, 0x03},
	} {
		if err := ch.ProcessEvent(rx(msg...)); err != nil {
			t.Errorf("% X: %v", msg, err)
		}
	}
	if ch.Selective() || len(ch.Fields()) != 1 {
		t.Error("ignored commands must not change state")
	}
	if ch.Stats().CommandsIgnored != 3 {
		t.Errorf("CommandsIgnored = %d, want 3", ch.Stats().CommandsIgnored)
	}
}

func TestChannel_FilterAddCapacityExceeded(t *testing.T) {
	ch, _ := newTestChannel(t, 2)
	ch.SetField(1, 1)

	err := ch.ProcessEvent(rx(0xF9, 0x03, 0x01, 2, 3, 0xFF, 0xFF, 0xFF))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("error = %v, want ErrCapacityExceeded", err)
	}
	if _, ok := ch.GetField(2); !ok {
		t.Error("key 2 should have been registered before the failure")
	}
}

func TestChannel_CustomCommandHandler(t *testing.T) {
	ch, _ := newTestChannel(t, 0)

	// No handler registered: dropped silently
	if err := ch.ProcessEvent(rx(0x10, 1, 2, 3, 4, 5, 6, 7)); err != nil {
		t.Fatalf("unhandled custom message: %v", err)
	}

	var got []byte
	ch.RegisterCustomCommandHandler(CustomCommandFunc(func(msg []byte) {
		got = append([]byte(nil), msg...)
		// Handlers may update fields from inside the callback
		ch.SetField(200, uint16(msg[1]))
	}))

	msg := []byte{0x10, 0x22, 0, 0, 0, 0, 0, 0}
	if err := ch.ProcessEvent(rx(msg...)); err != nil {
		t.Fatalf("custom message: %v", err)
	}
	if string(got) != string(msg) {
		t.Errorf("handler got % X, want % X", got, msg)
	}
	if v, ok := ch.GetField(200); !ok || v != 0x22 {
		t.Errorf("GetField(200) = %d, %v", v, ok)
	}

	ch.ProcessEvent(rx(0xF9, 0x03, 0x02, 0, 0, 0, 0, 0))
	if ch.Stats().CustomCommands != 1 {
		t.Errorf("CustomCommands = %d, want 1", ch.Stats().CustomCommands)
	}

	ch.RegisterCustomCommandHandler(nil)
	got = nil
	ch.ProcessEvent(rx(msg...))
	if got != nil {
		t.Error("unregistered handler was called")
	}
}

func TestChannel_ForceErrorPage(t *testing.T) {
	ch, tr := newTestChannel(t, 0)
	ch.SetField(1, 1)

	if err := ch.ForceErrorPage(0x12, 0x0159, "main.c"); err != nil {
		t.Fatalf("ForceErrorPage error: %v", err)
	}
	want := []byte{0xF9, 0x12, 0xFB, 'a', 'm', 0xFC, 0x59, 0x01}
	if string(tr.last()) != string(want) {
		t.Errorf("page = % X, want % X", tr.last(), want)
	}
	if ch.Stats().ErrorPages != 1 {
		t.Error("error page not counted")
	}

	// The normal cycle resumes afterwards
	ch.ProcessEvent(Event{Kind: EventTx})
	page, err := ParsePage(tr.last())
	if err != nil || page.Count != 1 || page.Pairs[0].Key != 1 {
		t.Errorf("next page = % X", tr.last())
	}
}

func TestChannel_TransportError(t *testing.T) {
	ch, tr := newTestChannel(t, 0)
	linkErr := errors.New("link down")
	tr.failErr = linkErr

	err := ch.ProcessEvent(Event{Kind: EventTx})
	if !errors.Is(err, linkErr) {
		t.Fatalf("error = %v, want wrapped link error", err)
	}
	if ch.Stats().TransportErrors != 1 {
		t.Error("transport error not counted")
	}
}

func TestChannel_ConcurrentAccess(t *testing.T) {
	ch, tr := newTestChannel(t, 0)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := uint8(g*50 + i%50)
				ch.SetField(key, uint16(i))
				ch.IncrementField(key)
				ch.ProcessEvent(Event{Kind: EventTx})
				if i%20 == 0 {
					ch.ProcessEvent(rx(NewFilterAdd(key)[0][:]...))
					msg := NewFilterClear()
					ch.ProcessEvent(rx(msg[:]...))
				}
			}
		}(g)
	}
	wg.Wait()

	if tr.count() != 800 {
		t.Errorf("sent %d pages, want 800", tr.count())
	}
	if len(ch.Fields()) != 200 {
		t.Errorf("registered %d fields, want 200", len(ch.Fields()))
	}
	for _, page := range tr.pages {
		if errs := ValidatePage(page); len(errs) != 0 {
			t.Fatalf("invalid page % X: %v", page, errs[0].Message)
		}
	}
}

func TestChannel_Snapshot(t *testing.T) {
	ch, _ := newTestChannel(t, 16)
	ch.SetField(3, 30)
	ch.SetField(4, 40)
	ch.SetFastByte(0x05)
	ch.ProcessEvent(rx(NewFilterAdd(4)[0][:]...))
	ch.ProcessEvent(Event{Kind: EventTx})

	snap := ch.Snapshot()
	data, err := MarshalSnapshot(snap)
	if err != nil {
		t.Fatalf("MarshalSnapshot error: %v", err)
	}
	got, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot error: %v", err)
	}

	if got.Capacity != 16 || !got.Selective || got.FastByte != 0x05 || len(got.Fields) != 2 {
		t.Errorf("snapshot = %+v", got)
	}
	if f, ok := got.Lookup(4); !ok || f.Value != 40 || !f.Included {
		t.Errorf("Lookup(4) = %+v, %v", f, ok)
	}
	if f, ok := got.Lookup(3); !ok || f.Included {
		t.Errorf("Lookup(3) = %+v, %v", f, ok)
	}
	if _, ok := got.Lookup(9); ok {
		t.Error("Lookup(9) should miss")
	}
	if got.Cursor != snap.Cursor {
		t.Errorf("Cursor = %d, want %d", got.Cursor, snap.Cursor)
	}

	again, _ := MarshalSnapshot(snap)
	if string(again) != string(data) {
		t.Error("snapshot encoding is not deterministic")
	}
}

func TestChannelParams_Interval(t *testing.T) {
	p := DefaultChannelParams()
	if got := p.Interval().Milliseconds(); got != 250 {
		t.Errorf("default interval = %dms, want 250", got)
	}
	p.Period = 32768
	if got := p.Interval().Seconds(); got != 1 {
		t.Errorf("interval = %vs, want 1", got)
	}
}
