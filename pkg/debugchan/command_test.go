// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantKind CommandKind
		wantKeys []uint8
	}{
		{
			name:     "filter add with skips",
			data:     []byte{PageDebug, CommandFilter, SubCommandFilterAdd, 5, 0xFF, 9, 0xFF, 0xFF},
			wantKind: CommandFilterAdd,
			wantKeys: []uint8{5, 9},
		},
		{
			name:     "filter add all five",
			data:     []byte{PageDebug, CommandFilter, SubCommandFilterAdd, 1, 2, 3, 4, 0},
			wantKind: CommandFilterAdd,
			wantKeys: []uint8{1, 2, 3, 4, 0},
		},
		{
			name:     "filter add nothing",
			data:     []byte{PageDebug, CommandFilter, SubCommandFilterAdd, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
			wantKind: CommandFilterAdd,
		},
		{
			name:     "filter clear",
			data:     []byte{PageDebug, CommandFilter, SubCommandFilterClear, 1, 2, 3, 4, 5},
			wantKind: CommandFilterClear,
		},
		{
			name:     "unknown sub-command",
			data:     []byte{PageDebug, CommandFilter, 0x07, 1, 2, 3, 4, 5},
			wantKind: CommandUnknown,
		},
		{
			name:     "unknown command",
			data:     []byte{PageDebug, SubCommandFilterAdd, SubCommandFilterAdd, 1, 2, 3, 4, 5},
			wantKind: CommandUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand(tt.data)
			if err != nil {
				t.Fatalf("ParseCommand error: %v", err)
			}
			if cmd.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", cmd.Kind, tt.wantKind)
			}
			if !reflect.DeepEqual(cmd.Keys, tt.wantKeys) {
				t.Errorf("Keys = %v, want %v", cmd.Keys, tt.wantKeys)
			}
		})
	}
}

func TestParseCommand_Rejects(t *testing.T) {
	if _, err := ParseCommand([]byte{PageDebug, CommandFilter}); !errors.Is(err, ErrShortMessage) {
		t.Errorf("short message error = %v", err)
	}
	if _, err := ParseCommand([]byte{0x10, CommandFilter, 1, 2, 3, 4, 5, 6}); !errors.Is(err, ErrNotDebugPage) {
		t.Errorf("wrong tag error = %v", err)
	}
}

func TestCommand_FilterIsolation(t *testing.T) {
	r := newFilledRegistry(t, 1, 2, 3, 4)
	s := NewScheduler(r)

	add, _ := ParseCommand([]byte{PageDebug, CommandFilter, SubCommandFilterAdd, 50, 51, 0xFF, 0xFF, 0xFF})
	if err := add.Apply(r); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if !r.Selective() {
		t.Fatal("filter add should turn selective mode on")
	}
	for _, key := range []uint8{50, 51} {
		if v, ok := r.Get(key); !ok || v != PlaceholderValue {
			t.Errorf("Get(%d) = %d, %v; want placeholder", key, v, ok)
		}
	}

	for i := 0; i < 10; i++ {
		for _, key := range pageKeys(s.Next(DefaultFastByte)) {
			if key != 50 && key != 51 {
				t.Fatalf("page %d carries filtered-out key %d", i, key)
			}
		}
	}

	msg := NewFilterClear()
	clr, _ := ParseCommand(msg[:])
	clr.Apply(r)
	if r.Selective() || r.Included(50) {
		t.Fatal("filter clear should reset the filter")
	}

	seen := map[uint8]bool{}
	for i := 0; i < 3; i++ {
		for _, key := range pageKeys(s.Next(DefaultFastByte)) {
			seen[key] = true
		}
	}
	if len(seen) != r.Size() {
		t.Errorf("after clear saw %d distinct keys, want all %d", len(seen), r.Size())
	}
}

func TestCommand_FilterAddIdempotent(t *testing.T) {
	r := NewRegistry(DefaultCapacity)
	msg := []byte{PageDebug, CommandFilter, SubCommandFilterAdd, 8, 8, 0xFF, 8, 0xFF}

	for i := 0; i < 2; i++ {
		cmd, _ := ParseCommand(msg)
		if err := cmd.Apply(r); err != nil {
			t.Fatalf("Apply error: %v", err)
		}
	}
	if r.Size() != 1 || !r.Included(8) {
		t.Errorf("size=%d included=%v, want one included slot", r.Size(), r.Included(8))
	}
}

func TestCommand_UnknownIsNoop(t *testing.T) {
	r := newFilledRegistry(t, 1)
	cmd, _ := ParseCommand([]byte{PageDebug, 0x09, 0x09, 2, 3, 4, 5, 6})
	if err := cmd.Apply(r); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if r.Size() != 1 || r.Selective() {
		t.Error("unknown command must not change state")
	}
}

func TestCommand_FilterAddCapacityExceeded(t *testing.T) {
	r := NewRegistry(2)
	r.Set(1, 1)

	cmd, _ := ParseCommand([]byte{PageDebug, CommandFilter, SubCommandFilterAdd, 2, 3, 0xFF, 0xFF, 0xFF})
	err := cmd.Apply(r)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Apply error = %v, want ErrCapacityExceeded", err)
	}
	if !r.Included(2) {
		t.Error("keys handled before the failure should stay included")
	}
	if _, ok := r.Get(3); ok {
		t.Error("key 3 should not be registered")
	}
}

func TestNewFilterAdd_Chunks(t *testing.T) {
	msgs := NewFilterAdd(1, 2, 3, 4, 5, 6, 7)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}

	var keys []uint8
	for _, m := range msgs {
		cmd, err := ParseCommand(m[:])
		if err != nil || cmd.Kind != CommandFilterAdd {
			t.Fatalf("message % X: kind=%v err=%v", m, cmd.Kind, err)
		}
		keys = append(keys, cmd.Keys...)
	}
	if !reflect.DeepEqual(keys, []uint8{1, 2, 3, 4, 5, 6, 7}) {
		t.Errorf("keys = %v", keys)
	}

	empty := NewFilterAdd()
	if len(empty) != 1 {
		t.Fatalf("NewFilterAdd() gave %d messages, want 1", len(empty))
	}
	cmd, _ := ParseCommand(empty[0][:])
	if cmd.Kind != CommandFilterAdd || len(cmd.Keys) != 0 {
		t.Errorf("empty filter add = %+v", cmd)
	}
}

func TestCommandKind_String(t *testing.T) {
	if CommandFilterAdd.String() != "FILTER_ADD" || CommandFilterClear.String() != "FILTER_CLEAR" || CommandUnknown.String() != "UNKNOWN" {
		t.Error("unexpected command kind names")
	}
}
