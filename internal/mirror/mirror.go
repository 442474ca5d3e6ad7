package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/homytech-sync/internal/device"
	"github.com/nerrad567/homytech-sync/internal/infrastructure/mqtt"
	"github.com/nerrad567/homytech-sync/internal/remote"
)

// State groups, used as the last segment of the retained state topics.
const (
	GroupLights      = "lights"
	GroupDoor        = "door"
	GroupClothesline = "clothesline"
)

// alertQueueSize bounds the alerts waiting for the publisher. State
// messages are not bounded: there is at most one pending per topic.
const alertQueueSize = 64

// Publisher sends one MQTT message. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Toggler executes a toggle request. *control.Commander satisfies it.
type Toggler interface {
	Toggle(ctx context.Context, target string, index int) (remote.Ack, error)
}

// Logger is the logging interface used by the Mirror.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// LightsPayload is published retained on {prefix}/state/lights.
type LightsPayload struct {
	Lights  [device.LightCount]bool          `json:"lights"`
	Updates [device.LightCount]device.Update `json:"updates"`
}

// DoorPayload is published retained on {prefix}/state/door.
type DoorPayload struct {
	Open   bool          `json:"open"`
	Update device.Update `json:"update"`
}

// ClotheslinePayload is published retained on {prefix}/state/clothesline.
type ClotheslinePayload struct {
	Extended   bool          `json:"extended"`
	ManualMode bool          `json:"manual_mode"`
	Update     device.Update `json:"update"`
}

// Command is the payload accepted on {prefix}/command/+.
//
// Target falls back to the last topic segment when omitted. Index is the
// 0-based light and is ignored for other targets.
type Command struct {
	Target string `json:"target"`
	Index  int    `json:"index"`
}

// Stats is a point-in-time view of mirror activity.
//
// Superseded counts state messages replaced by a newer one for the same
// topic before they were sent. Dropped counts alerts refused because the
// alert queue was full, and anything offered after Close.
type Stats struct {
	Published  int64 `json:"published"`
	Failed     int64 `json:"failed"`
	Superseded int64 `json:"superseded"`
	Dropped    int64 `json:"dropped"`
	Commands   int64 `json:"commands"`
}

type message struct {
	topic    string
	payload  []byte
	retained bool
}

// Mirror republishes the reconciled device state to an MQTT broker.
//
// It implements device.Listener. Store callbacks only record what must be
// sent; a single worker publishes it, so a slow broker never stalls the
// store. Retained state is coalesced per topic: when the worker falls
// behind, only the newest payload for each topic is sent, so the broker
// always ends up holding the current state. Alerts are queued in order and
// dropped when the queue is full.
type Mirror struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
	logger Logger

	togglerMu sync.RWMutex
	toggler   Toggler

	mu      sync.Mutex
	pending map[string][]byte // retained topic -> newest unsent payload
	order   []string          // pending topics, first-dirtied first
	latest  map[string][]byte // retained topic -> newest payload seen
	alerts  []message
	closed  bool

	wake      chan struct{}
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup

	published  atomic.Int64
	failed     atomic.Int64
	superseded atomic.Int64
	dropped    atomic.Int64
	commands   atomic.Int64
}

// New creates a mirror publishing under topics with qos. Call Start to
// begin publishing.
func New(pub Publisher, topics mqtt.Topics, qos byte) *Mirror {
	ctx, cancel := context.WithCancel(context.Background())
	return &Mirror{
		pub:     pub,
		topics:  topics,
		qos:     qos,
		logger:  noopLogger{},
		pending: make(map[string][]byte),
		latest:  make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetLogger sets the logger. Call before Start.
func (m *Mirror) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// SetToggler enables inbound commands.
func (m *Mirror) SetToggler(t Toggler) {
	m.togglerMu.Lock()
	m.toggler = t
	m.togglerMu.Unlock()
}

// Start launches the publishing worker. It is idempotent.
func (m *Mirror) Start() {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.run()
	})
}

// Close publishes whatever is still pending, stops the worker and cancels
// running commands. It is idempotent.
func (m *Mirror) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		m.cancel()
		close(m.done)
	})
	m.wg.Wait()
}

// Resync marks the newest state of every group as unsent. Call it after
// the broker connection is re-established so retained messages lost while
// disconnected are replaced.
func (m *Mirror) Resync() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	for topic, payload := range m.latest {
		if _, ok := m.pending[topic]; !ok {
			m.markPendingLocked(topic, payload)
		}
	}
	m.mu.Unlock()
	m.signal()
}

// Stats returns publishing counters.
func (m *Mirror) Stats() Stats {
	return Stats{
		Published:  m.published.Load(),
		Failed:     m.failed.Load(),
		Superseded: m.superseded.Load(),
		Dropped:    m.dropped.Load(),
		Commands:   m.commands.Load(),
	}
}

// StateChanged implements device.Listener. A snapshot load republishes
// every group; any other change only the group it touched.
func (m *Mirror) StateChanged(change device.Change) {
	state := change.State
	if change.Snapshot || change.Category == device.CategoryLight {
		m.setState(m.topics.State(GroupLights), LightsPayload{Lights: state.Lights, Updates: state.LightUpdates})
	}
	if change.Snapshot || change.Category == device.CategoryDoor {
		m.setState(m.topics.State(GroupDoor), DoorPayload{Open: state.Door, Update: state.DoorUpdate})
	}
	if change.Snapshot || change.Category == device.CategoryClothesline {
		m.setState(m.topics.State(GroupClothesline), ClotheslinePayload{
			Extended:   state.Clothesline.Extended,
			ManualMode: state.Clothesline.ManualMode,
			Update:     state.ClotheslineUpdate,
		})
	}
}

// AlertRaised implements device.Listener. Alerts are not retained.
func (m *Mirror) AlertRaised(alert device.Alert) {
	payload, ok := m.encode(m.topics.Alert(), alert)
	if !ok {
		return
	}
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		m.dropped.Add(1)
		return
	case len(m.alerts) >= alertQueueSize:
		m.mu.Unlock()
		m.dropped.Add(1)
		m.logger.Warn("mqtt alert queue full, alert dropped", "action", alert.Action)
		return
	}
	m.alerts = append(m.alerts, message{topic: m.topics.Alert(), payload: payload})
	m.mu.Unlock()
	m.signal()
}

// HandleCommand decodes a command message and runs the toggle. It has the
// mqtt.MessageHandler signature so it can be subscribed directly.
//
// The toggle gets no deadline; Close cancels it.
func (m *Mirror) HandleCommand(topic string, payload []byte) error {
	m.togglerMu.RLock()
	toggler := m.toggler
	m.togglerMu.RUnlock()
	if toggler == nil {
		return ErrCommandsDisabled
	}

	cmd, err := ParseCommand(topic, payload)
	if err != nil {
		return err
	}

	m.commands.Add(1)
	if _, err := toggler.Toggle(m.ctx, cmd.Target, cmd.Index); err != nil {
		return fmt.Errorf("toggling %s: %w", cmd.Target, err)
	}
	m.logger.Info("mqtt command executed", "target", cmd.Target, "index", cmd.Index)
	return nil
}

// ParseCommand decodes a command payload received on topic. An empty
// payload means the target named by the topic.
func ParseCommand(topic string, payload []byte) (Command, error) {
	var cmd Command
	if len(strings.TrimSpace(string(payload))) > 0 {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
	}
	if cmd.Target == "" {
		if i := strings.LastIndexByte(topic, '/'); i >= 0 {
			cmd.Target = topic[i+1:]
		}
	}
	if cmd.Target == "" || cmd.Target == "+" {
		return Command{}, fmt.Errorf("%w: no target", ErrInvalidCommand)
	}
	return cmd, nil
}

func (m *Mirror) encode(topic string, v any) ([]byte, bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		m.logger.Warn("mqtt payload encode failed", "topic", topic, "error", err)
		return nil, false
	}
	return payload, true
}

// setState records v as the newest retained payload for topic.
func (m *Mirror) setState(topic string, v any) {
	payload, ok := m.encode(topic, v)
	if !ok {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.dropped.Add(1)
		return
	}
	m.latest[topic] = payload
	m.markPendingLocked(topic, payload)
	m.mu.Unlock()
	m.signal()
}

func (m *Mirror) markPendingLocked(topic string, payload []byte) {
	if _, waiting := m.pending[topic]; waiting {
		m.superseded.Add(1)
	} else {
		m.order = append(m.order, topic)
	}
	m.pending[topic] = payload
}

func (m *Mirror) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// take removes and returns everything waiting: alerts first, then state
// topics in the order they first became pending.
func (m *Mirror) take() []message {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := m.alerts
	m.alerts = nil
	for _, topic := range m.order {
		batch = append(batch, message{topic: topic, payload: m.pending[topic], retained: true})
	}
	m.order = m.order[:0]
	clear(m.pending)
	return batch
}

func (m *Mirror) run() {
	defer m.wg.Done()
	for {
		select {
		case <-m.wake:
			m.publishAll()
		case <-m.done:
			m.publishAll()
			return
		}
	}
}

func (m *Mirror) publishAll() {
	for {
		batch := m.take()
		if len(batch) == 0 {
			return
		}
		for _, msg := range batch {
			m.publish(msg)
		}
	}
}

func (m *Mirror) publish(msg message) {
	if err := m.pub.Publish(msg.topic, msg.payload, m.qos, msg.retained); err != nil {
		m.failed.Add(1)
		m.logger.Warn("mqtt publish failed", "topic", msg.topic, "error", err)
		return
	}
	m.published.Add(1)
}
