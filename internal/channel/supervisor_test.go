package channel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/homytech-sync/internal/device"
)

func newTestSupervisor(t *testing.T, cfg Config) *Supervisor {
	t.Helper()
	if cfg.Category == "" {
		cfg.Category = device.CategoryDoor
	}
	if cfg.URL == "" {
		cfg.URL = "ws://127.0.0.1:1/ws/door"
	}
	if cfg.Handler == nil {
		cfg.Handler = func(device.Event) {}
	}
	sup, err := NewSupervisor(cfg)
	if err != nil {
		t.Fatalf("NewSupervisor() error = %v", err)
	}
	t.Cleanup(func() { _ = sup.Close() })
	return sup
}

func TestSupervisor_BackoffOnRepeatedFailure(t *testing.T) {
	clock := newFakeClock()
	obs := &recordingObserver{}
	sup := newTestSupervisor(t, Config{
		Dialer:   &flakyDialer{failures: 1000},
		Clock:    clock,
		Observer: obs,
	})

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, wantDelay := range want {
		if got := clock.waitDelay(t); got != wantDelay {
			t.Fatalf("retry %d delay = %v, want %v", i+1, got, wantDelay)
		}
		if got := sup.Attempt(); got != i+1 {
			t.Fatalf("after retry %d attempt = %d", i+1, got)
		}
		if got := sup.State(); got != StateClosed {
			t.Fatalf("state = %s, want closed", got)
		}
		if n := clock.pending(); n != 1 {
			t.Fatalf("pending timers = %d, want 1", n)
		}
		clock.fireLatest(t)
	}

	_ = clock.waitDelay(t)
	if err := sup.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if n := clock.pending(); n != 0 {
		t.Errorf("pending timers after Close = %d, want 0", n)
	}
	if sup.State() != StateStopped {
		t.Errorf("state after Close = %s, want stopped", sup.State())
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	for i, a := range obs.attempts[:3] {
		if a != i+1 {
			t.Errorf("observer attempt %d = %d, want %d", i, a, i+1)
		}
	}
}

func TestSupervisor_ResetsAttemptOnOpen(t *testing.T) {
	url := newPushServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, doorEvent("Bo", "open"))
		closeNormally(conn)
	})

	clock := newFakeClock()
	obs := &recordingObserver{}
	var delivered atomic.Int32
	dialer := &flakyDialer{failures: 2}
	sup := newTestSupervisor(t, Config{
		URL:      url,
		Dialer:   dialer,
		Clock:    clock,
		Observer: obs,
		Handler:  func(device.Event) { delivered.Add(1) },
	})

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if d := clock.waitDelay(t); d != 2*time.Second {
		t.Fatalf("first delay = %v, want 2s", d)
	}
	clock.fireLatest(t)
	if d := clock.waitDelay(t); d != 4*time.Second {
		t.Fatalf("second delay = %v, want 4s", d)
	}
	clock.fireLatest(t)

	// Third dial succeeds, one event arrives, then the server closes.
	if d := clock.waitDelay(t); d != 2*time.Second {
		t.Errorf("delay after successful open = %v, want 2s", d)
	}
	if got := sup.Attempt(); got != 1 {
		t.Errorf("attempt after open and close = %d, want 1", got)
	}
	if got := delivered.Load(); got != 1 {
		t.Errorf("delivered = %d, want 1", got)
	}
	if dialer.count() != 3 {
		t.Errorf("dials = %d, want 3", dialer.count())
	}

	eventually(t, "third close reported", func() bool {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return len(obs.attempts) == 3
	})
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.opened != 1 {
		t.Errorf("opened = %d, want 1", obs.opened)
	}
	if len(obs.attempts) != 3 || obs.attempts[2] != 1 {
		t.Errorf("attempts = %v, want [1 2 1]", obs.attempts)
	}
}

func TestSupervisor_NoHandlerAfterClose(t *testing.T) {
	url := newPushServer(t, func(conn *websocket.Conn) {
		for {
			if err := conn.WriteMessage(websocket.TextMessage, doorEvent("Bo", "open")); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	})

	var delivered atomic.Int32
	sup := newTestSupervisor(t, Config{
		URL:     url,
		Clock:   newFakeClock(),
		Handler: func(device.Event) { delivered.Add(1) },
	})
	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	eventually(t, "three events", func() bool { return delivered.Load() >= 3 })
	if sup.State() != StateOpen {
		t.Errorf("state = %s, want open", sup.State())
	}

	if err := sup.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	after := delivered.Load()
	time.Sleep(50 * time.Millisecond)
	if got := delivered.Load(); got != after {
		t.Errorf("handler ran %d times after Close returned", got-after)
	}

	if err := sup.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := sup.Start(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Start() after Close error = %v, want ErrStopped", err)
	}
}

func TestSupervisor_ContextCancelStopsRetries(t *testing.T) {
	clock := newFakeClock()
	sup := newTestSupervisor(t, Config{
		Dialer: &flakyDialer{failures: 1000},
		Clock:  clock,
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	_ = clock.waitDelay(t)

	cancel()
	eventually(t, "timer cancelled", func() bool { return clock.pending() == 0 })
	eventually(t, "stopped state", func() bool { return sup.State() == StateStopped })
}

func TestSupervisor_StartTwice(t *testing.T) {
	sup := newTestSupervisor(t, Config{
		Dialer: &flakyDialer{failures: 1000},
		Clock:  newFakeClock(),
	})
	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := sup.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestSupervisor_CloseBeforeStart(t *testing.T) {
	sup := newTestSupervisor(t, Config{Clock: newFakeClock()})
	if err := sup.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if sup.State() != StateStopped {
		t.Errorf("state = %s, want stopped", sup.State())
	}
}

func TestNewSupervisor_InvalidConfig(t *testing.T) {
	handler := func(device.Event) {}
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown category", Config{Category: "garage", URL: "ws://x/ws/garage", Handler: handler}},
		{"missing url", Config{Category: device.CategoryDoor, Handler: handler}},
		{"missing handler", Config{Category: device.CategoryDoor, URL: "ws://x/ws/door"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSupervisor(tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewSupervisor() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestSupervisor_Stats(t *testing.T) {
	clock := newFakeClock()
	sup := newTestSupervisor(t, Config{
		Dialer: &flakyDialer{failures: 1000},
		Clock:  clock,
	})
	_ = sup.Start(context.Background())
	_ = clock.waitDelay(t)

	stats := sup.Stats()
	if stats.Category != device.CategoryDoor || stats.State != StateClosed {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.Attempt != 1 || stats.Reconnects != 1 {
		t.Errorf("attempt=%d reconnects=%d, want 1 and 1", stats.Attempt, stats.Reconnects)
	}
	if stats.LastError == "" {
		t.Error("LastError is empty after a failed dial")
	}
}
