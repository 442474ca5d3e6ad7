package device

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingListener struct {
	mu      sync.Mutex
	changes []Change
	alerts  []Alert
}

func (r *recordingListener) StateChanged(c Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recordingListener) AlertRaised(a Alert) {
	r.mu.Lock()
	r.alerts = append(r.alerts, a)
	r.mu.Unlock()
}

func TestStore_UnknownUntilLoad(t *testing.T) {
	s := NewStore()
	if _, known := s.State(); known {
		t.Fatal("new store reports known state")
	}

	if err := s.Load(State{Door: true}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	state, known := s.State()
	if !known || !state.Door {
		t.Errorf("State() = %+v, %v; want door open and known", state, known)
	}
}

func TestStore_ApplyNotifiesListeners(t *testing.T) {
	s := NewStore()
	rec := &recordingListener{}
	s.AddListener(rec)

	if err := s.Load(State{}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	change, err := s.Apply(Event{Category: CategoryLight, User: "Ann", Action: ActionOn, LightID: 3, Timestamp: t2})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if change.LightIndex != 2 {
		t.Errorf("LightIndex = %d, want 2", change.LightIndex)
	}
	if len(rec.changes) != 2 {
		t.Fatalf("listener saw %d changes, want 2", len(rec.changes))
	}
	if !rec.changes[0].Snapshot {
		t.Error("first change should be the snapshot load")
	}
	if !rec.changes[1].State.Lights[2] {
		t.Error("second change should carry light 3 on")
	}
}

func TestStore_AlertDoesNotMutate(t *testing.T) {
	s := NewStore()
	rec := &recordingListener{}
	s.AddListener(rec)
	_ = s.Load(State{Door: false})

	if _, err := s.Apply(Event{Category: CategoryAlert, Action: ActionOpen, Timestamp: t2}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	state, _ := s.State()
	if state.Door {
		t.Error("alert opened the door")
	}
	if len(rec.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(rec.alerts))
	}
	if rec.alerts[0].Message != "Someone tried to open the door!" {
		t.Errorf("Message = %q", rec.alerts[0].Message)
	}
	if len(rec.changes) != 1 {
		t.Errorf("changes = %d, want only the snapshot", len(rec.changes))
	}
}

func TestStore_RejectedEventLeavesState(t *testing.T) {
	s := NewStore()
	_ = s.Load(State{Lights: [LightCount]bool{true, true, true}})

	_, err := s.Apply(Event{Category: CategoryLight, User: "Ann", Action: ActionOff, LightID: 9, Timestamp: t2})
	if !errors.Is(err, ErrLightOutOfRange) {
		t.Fatalf("Apply() error = %v, want ErrLightOutOfRange", err)
	}
	if state, _ := s.State(); state.Lights != [LightCount]bool{true, true, true} {
		t.Errorf("Lights = %v, want unchanged", state.Lights)
	}
}

func TestStore_SnapshotResetsManualMode(t *testing.T) {
	s := NewStore()
	_ = s.Load(State{})

	if _, err := s.SetManualMode(true); err != nil {
		t.Fatalf("SetManualMode() error = %v", err)
	}
	if state, _ := s.State(); !state.Clothesline.ManualMode {
		t.Fatal("ManualMode = false after SetManualMode(true)")
	}

	loaded, _ := FromSnapshot(Snapshot{})
	_ = s.Load(loaded)
	if state, _ := s.State(); state.Clothesline.ManualMode {
		t.Error("ManualMode survived a snapshot load")
	}
}

func TestStore_ClosedRejectsMutation(t *testing.T) {
	s := NewStore()
	_ = s.Load(State{})
	s.Close()
	s.Close()

	if _, err := s.Apply(Event{Category: CategoryDoor, User: "Bo", Action: ActionOpen, Timestamp: t2}); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Apply() after Close error = %v, want ErrStoreClosed", err)
	}
	if err := s.Load(State{}); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Load() after Close error = %v, want ErrStoreClosed", err)
	}
	if _, err := s.SetManualMode(true); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("SetManualMode() after Close error = %v, want ErrStoreClosed", err)
	}
}

func TestStore_ListenerPanicIsContained(t *testing.T) {
	s := NewStore()
	rec := &recordingListener{}
	s.AddListener(ListenerFuncs{OnChange: func(Change) { panic("boom") }})
	s.AddListener(rec)

	if err := s.Load(State{}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rec.changes) != 1 {
		t.Errorf("second listener saw %d changes, want 1", len(rec.changes))
	}
}

func TestStore_ConcurrentChannelsPreservePerChannelOrder(t *testing.T) {
	s := NewStore()
	_ = s.Load(State{})

	var doorSeen []string
	var mu sync.Mutex
	s.AddListener(ListenerFuncs{OnChange: func(c Change) {
		if c.Category == CategoryDoor {
			mu.Lock()
			doorSeen = append(doorSeen, c.Update.User)
			mu.Unlock()
		}
	}})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 50 {
			ts := t2.Add(time.Duration(i) * time.Second)
			_, _ = s.Apply(Event{Category: CategoryLight, User: "Ann", Action: ActionOn, LightID: i%3 + 1, Timestamp: ts})
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 50 {
			action := ActionOpen
			if i%2 == 1 {
				action = ActionClose
			}
			_, _ = s.Apply(Event{Category: CategoryDoor, User: string(rune('a' + i%26)), Action: action, Timestamp: t2})
		}
	}()
	wg.Wait()

	if len(doorSeen) != 50 {
		t.Fatalf("door changes = %d, want 50", len(doorSeen))
	}
	for i, user := range doorSeen {
		if want := string(rune('a' + i%26)); user != want {
			t.Fatalf("door change %d from %q, want %q", i, user, want)
		}
	}
	state, _ := s.State()
	if state.Door {
		t.Error("last door event was close but door is open")
	}
}
