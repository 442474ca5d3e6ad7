package device

import (
	"sync"
)

// Listener receives every change applied by a Store and every alert it raises.
//
// Calls are made synchronously, one at a time, in the order the store
// applied them. Implementations must not block for long and must not
// mutate the store from inside a callback.
type Listener interface {
	StateChanged(change Change)
	AlertRaised(alert Alert)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnChange func(Change)
	OnAlert  func(Alert)
}

// StateChanged implements Listener.
func (f ListenerFuncs) StateChanged(change Change) {
	if f.OnChange != nil {
		f.OnChange(change)
	}
}

// AlertRaised implements Listener.
func (f ListenerFuncs) AlertRaised(alert Alert) {
	if f.OnAlert != nil {
		f.OnAlert(alert)
	}
}

// Logger is the optional logging interface used by Store.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

// Store owns the device state of one session.
//
// All mutation goes through Load, Apply and SetManualMode. Each call is
// atomic with respect to the others, so events from concurrent channels
// interleave but never tear. After Close every mutation fails with
// ErrStoreClosed.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Store struct {
	mu     sync.RWMutex
	state  State
	known  bool
	closed bool

	// notifyMu is taken before mu is released so listeners observe changes
	// in exactly the order they were applied.
	notifyMu  sync.Mutex
	listeners []Listener

	logger Logger
}

// NewStore creates an empty store. Its state is unknown until Load.
func NewStore() *Store {
	return &Store{logger: noopLogger{}}
}

// SetLogger sets a logger for listener panics.
func (s *Store) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.notifyMu.Lock()
	s.logger = logger
	s.notifyMu.Unlock()
}

// AddListener registers l for all future changes and alerts.
func (s *Store) AddListener(l Listener) {
	s.notifyMu.Lock()
	s.listeners = append(s.listeners, l)
	s.notifyMu.Unlock()
}

// State returns a copy of the current state and whether a snapshot has loaded.
// Callers must treat known == false as "unknown", not as everything off.
func (s *Store) State() (state State, known bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.known
}

// Known reports whether a snapshot has been loaded.
func (s *Store) Known() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.known
}

// Load replaces the whole state with a snapshot result and marks it known.
func (s *Store) Load(state State) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	s.state = state
	s.known = true
	change := Change{LightIndex: -1, State: state, Snapshot: true}

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.emitChange(change)
	return nil
}

// Apply reduces one push event into the state.
//
// Alert events leave the state untouched and are delivered to listeners
// as an Alert.
//
// Returns:
//   - Change: The applied change (zero for alerts)
//   - error: ErrStoreClosed after Close, or the Reduce error
func (s *Store) Apply(ev Event) (Change, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Change{}, ErrStoreClosed
	}

	next, update, err := Reduce(s.state, ev)
	if err != nil {
		s.mu.Unlock()
		return Change{}, err
	}

	if ev.Category == CategoryAlert {
		alert := Alert{
			User:      update.User,
			Action:    update.Action,
			Timestamp: update.Timestamp,
			Message:   AlertMessage(update.Action),
		}
		s.notifyMu.Lock()
		s.mu.Unlock()
		defer s.notifyMu.Unlock()
		s.emitAlert(alert)
		return Change{}, nil
	}

	s.state = next
	change := Change{
		Category:   ev.Category,
		LightIndex: -1,
		Update:     update,
		State:      next,
	}
	if ev.Category == CategoryLight {
		change.LightIndex = ev.LightIndex()
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.emitChange(change)
	return change, nil
}

// SetManualMode records the clothesline control mode chosen locally.
func (s *Store) SetManualMode(manual bool) (State, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return State{}, ErrStoreClosed
	}
	s.state.Clothesline.ManualMode = manual
	state := s.state
	change := Change{
		Category:   CategoryClothesline,
		LightIndex: -1,
		Update:     state.ClotheslineUpdate,
		State:      state,
		ModeChange: true,
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.emitChange(change)
	return state, nil
}

// Close stops all further mutation. It is idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Store) emitChange(change Change) {
	for _, l := range s.listeners {
		s.safely(func() { l.StateChanged(change) })
	}
}

func (s *Store) emitAlert(alert Alert) {
	for _, l := range s.listeners {
		s.safely(func() { l.AlertRaised(alert) })
	}
}

// safely runs fn and logs a recovered panic so one listener cannot break the others.
func (s *Store) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("device listener panic recovered", "panic", r)
		}
	}()
	fn()
}
