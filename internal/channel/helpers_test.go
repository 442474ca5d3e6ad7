package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/homytech-sync/internal/device"
)

// fakeClock records timers and fires them only on request.
type fakeClock struct {
	mu        sync.Mutex
	timers    []*fakeTimer
	scheduled chan time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{scheduled: make(chan time.Duration, 64)}
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{d: d, f: f}
	c.mu.Lock()
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	c.scheduled <- d
	return t
}

// pending counts timers that were neither stopped nor fired.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if t.isPending() {
			n++
		}
	}
	return n
}

// fireLatest runs the most recently scheduled timer.
func (c *fakeClock) fireLatest(t *testing.T) {
	t.Helper()
	c.mu.Lock()
	if len(c.timers) == 0 {
		c.mu.Unlock()
		t.Fatal("no timer scheduled")
	}
	timer := c.timers[len(c.timers)-1]
	c.mu.Unlock()
	if !timer.fire() {
		t.Fatal("latest timer was already stopped or fired")
	}
}

// waitDelay returns the next scheduled delay or fails the test.
func (c *fakeClock) waitDelay(t *testing.T) time.Duration {
	t.Helper()
	select {
	case d := <-c.scheduled:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no retry scheduled")
		return 0
	}
}

type fakeTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (t *fakeTimer) fire() bool {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return false
	}
	t.fired = true
	t.mu.Unlock()
	go t.f()
	return true
}

func (t *fakeTimer) isPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && !t.fired
}

// flakyDialer fails the first n dials and then dials for real.
type flakyDialer struct {
	mu       sync.Mutex
	failures int
	dials    int
}

func (d *flakyDialer) DialContext(ctx context.Context, url string, h http.Header) (*websocket.Conn, *http.Response, error) {
	d.mu.Lock()
	d.dials++
	fail := d.dials <= d.failures
	d.mu.Unlock()
	if fail {
		return nil, nil, errors.New("connection refused")
	}
	return websocket.DefaultDialer.DialContext(ctx, url, h)
}

func (d *flakyDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type recordingObserver struct {
	mu       sync.Mutex
	opened   int
	attempts []int
	received int
	dropped  int
}

func (o *recordingObserver) ChannelOpened(device.Category) {
	o.mu.Lock()
	o.opened++
	o.mu.Unlock()
}

func (o *recordingObserver) ChannelClosed(_ device.Category, attempt int, _ time.Duration) {
	o.mu.Lock()
	o.attempts = append(o.attempts, attempt)
	o.mu.Unlock()
}

func (o *recordingObserver) EventReceived(device.Category) {
	o.mu.Lock()
	o.received++
	o.mu.Unlock()
}

func (o *recordingObserver) EventDropped(device.Category, error) {
	o.mu.Lock()
	o.dropped++
	o.mu.Unlock()
}

// newPushServer starts a websocket server that runs serve for each connection.
func newPushServer(t *testing.T, serve func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func doorEvent(user, action string) []byte {
	return []byte(`{"user":"` + user + `","action":"` + action + `","timestamp":"2026-03-01T09:30:00Z"}`)
}

// closeNormally sends a clean close frame and waits briefly for the echo.
func closeNormally(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
