package server

import (
	"testing"
	"time"

	"github.com/raniellyferreira/redis-inmemory-cache/protocol"
	"github.com/raniellyferreira/redis-inmemory-cache/storage"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestDispatcher() (*Dispatcher, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewDispatcher(storage.NewMemory(storage.WithClock(clock.Now))), clock
}

func dispatchLine(d *Dispatcher, ns, line string) string {
	reply, _ := d.Dispatch(ns, protocol.ParseInline([]byte(line)))
	return render(reply)
}

func TestDispatch(t *testing.T) {
	d, _ := newTestDispatcher()

	tests := []struct {
		line string
		want string
	}{
		{"ping", "+pong"},
		{"PING extra", "+No match"},
		{"echo", "$"},
		{"Echo  spaced   out ", "$spaced   out"},
		{"echo\ttab\tkept", "$tab\tkept"},
		{"set k v", "+OK"},
		{"SET k v EXPIRES 10", "+OK"},
		{"SET k v expires", "+No match"},
		{"SET k v ttl 10", "+No match"},
		{"SET k v expires -1", "+No match"},
		{"SET k v 10 extra", "+No match"},
		{"SET k", "+No match"},
		{"GET k", "$v"},
		{"GET", "+No match"},
		{"GET a b", "+No match"},
		{"DEL", "+No match"},
		{"FLUSHALL now", "+No match"},
		{"INCR", "+No match"},
		{"SET max 9223372036854775807", "+OK"},
		{"INCR max", "+Increment would overflow"},
		{"GET max", "$9223372036854775807"},
		{"SET neg -5", "+OK"},
		{"INCR neg", ":-4"},
		{"SET float 1.5", "+OK"},
		{"INCR float", "+Cannot increment non-integer entries"},
		{"HGET k f", "+No match"},
	}

	for _, tt := range tests {
		if got := dispatchLine(d, "a", tt.line); got != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.line, tt.want, got)
		}
	}
}

func TestDispatchExitQuits(t *testing.T) {
	d, _ := newTestDispatcher()

	reply, quit := d.Dispatch("a", protocol.ParseInline([]byte("exit")))
	if !quit {
		t.Error("Expected EXIT to end the session")
	}
	if got := render(reply); got != "+Goodbye" {
		t.Errorf("Expected Goodbye, got %q", got)
	}

	if _, quit := d.Dispatch("a", protocol.ParseInline([]byte("PING"))); quit {
		t.Error("PING must not end the session")
	}
}

func TestDispatchEchoArrayJoinsArguments(t *testing.T) {
	d, _ := newTestDispatcher()

	cmd, err := protocol.ParseCommand(protocol.Value{Type: protocol.TypeArray, Array: []protocol.Value{
		protocol.BulkString("ECHO"),
		protocol.BulkString("a  b"),
		protocol.BulkString("c"),
	}})
	if err != nil {
		t.Fatalf("ParseCommand failed: %v", err)
	}

	reply, _ := d.Dispatch("a", cmd)
	if got := render(reply); got != "$a  b c" {
		t.Errorf("Expected arguments joined by one space, got %q", got)
	}
}

func TestDispatchNilCommand(t *testing.T) {
	d, _ := newTestDispatcher()

	reply, quit := d.Dispatch("a", nil)
	if quit || render(reply) != "+No match" {
		t.Errorf("Expected No match without quitting, got %q quit=%v", render(reply), quit)
	}
}

func TestDispatchSweepsBeforeEachRequest(t *testing.T) {
	d, clock := newTestDispatcher()

	dispatchLine(d, "a", "SET short v expires 1")
	dispatchLine(d, "a", "SET bare v 1")
	dispatchLine(d, "a", "SET keep v")

	clock.now = clock.now.Add(1500 * time.Millisecond)

	// Any request runs the sweep, even one for another namespace
	dispatchLine(d, "b", "PING")

	if n := d.storage.KeyCount("a"); n != 1 {
		t.Errorf("Expected 1 key after sweep, got %d", n)
	}
	if got := dispatchLine(d, "a", "GET short"); got != ":-1" {
		t.Errorf("Expected expired key to be absent, got %q", got)
	}
	if got := dispatchLine(d, "a", "DEL bare"); got != ":-1" {
		t.Errorf("Expected expired key to be absent, got %q", got)
	}
}

func TestDispatchSetExpiryBoundary(t *testing.T) {
	d, clock := newTestDispatcher()

	dispatchLine(d, "a", "SET k v expires 2")

	clock.now = clock.now.Add(2 * time.Second)
	if got := dispatchLine(d, "a", "GET k"); got != "$v" {
		t.Errorf("Expected value at exactly the TTL, got %q", got)
	}

	clock.now = clock.now.Add(time.Millisecond)
	if got := dispatchLine(d, "a", "GET k"); got != ":-1" {
		t.Errorf("Expected absent past the TTL, got %q", got)
	}
}

func TestDispatchArrayAndInlineAgree(t *testing.T) {
	d, _ := newTestDispatcher()

	array := protocol.Value{Type: protocol.TypeArray, Array: []protocol.Value{
		protocol.BulkString("set"),
		protocol.BulkString("k"),
		protocol.BulkString("7"),
	}}
	cmd, err := protocol.ParseCommand(array)
	if err != nil {
		t.Fatalf("ParseCommand failed: %v", err)
	}

	reply, _ := d.Dispatch("a", cmd)
	if got := render(reply); got != "+OK" {
		t.Fatalf("Expected OK, got %q", got)
	}
	if got := dispatchLine(d, "a", "incr k"); got != ":8" {
		t.Errorf("Expected 8, got %q", got)
	}
}
