package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/homytech-sync/internal/device"
	"github.com/nerrad567/homytech-sync/internal/remote"
)

type fakeSource struct {
	lights      func() (remote.LightsState, error)
	door        func() (remote.DeviceRecord, error)
	clothesline func() (remote.DeviceRecord, error)
	syncErr     error
	syncCalls   atomic.Int32
}

func (f *fakeSource) LatestLights(context.Context) (remote.LightsState, error) { return f.lights() }
func (f *fakeSource) LatestDoor(context.Context) (remote.DeviceRecord, error)  { return f.door() }
func (f *fakeSource) LatestClothesline(context.Context) (remote.DeviceRecord, error) {
	return f.clothesline()
}

func (f *fakeSource) SyncState(context.Context) error {
	f.syncCalls.Add(1)
	return f.syncErr
}

// scenarioSource returns light 2 on, door closed and clothesline retracted.
func scenarioSource() *fakeSource {
	return &fakeSource{
		lights: func() (remote.LightsState, error) {
			return remote.LightsState{Lights: []remote.LightRecord{
				{LightID: 2, User: "Ann", Action: "on", Timestamp: "2026-03-01T15:00:00+07:00"},
			}}, nil
		},
		door: func() (remote.DeviceRecord, error) {
			return remote.DeviceRecord{User: "Bo", Action: "close", Timestamp: "2026-03-01T08:00:00", Source: "RFID"}, nil
		},
		clothesline: func() (remote.DeviceRecord, error) {
			return remote.DeviceRecord{User: "System", Action: "retract", Timestamp: "2026-03-01T08:00:00Z", Source: "Rain Sensor"}, nil
		},
	}
}

type countingObserver struct {
	mu       sync.Mutex
	ok, fail int
}

func (o *countingObserver) SnapshotLoaded(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.fail++
		return
	}
	o.ok++
}

func TestLoader_Scenario(t *testing.T) {
	src := scenarioSource()
	store := device.NewStore()
	_ = store.Load(device.State{})
	if _, err := store.SetManualMode(true); err != nil {
		t.Fatalf("SetManualMode() error = %v", err)
	}

	l := NewLoader(src, store, Config{})
	state, err := l.Load(context.Background())
	l.Close()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if state.Lights != [device.LightCount]bool{false, true, false} {
		t.Errorf("Lights = %v, want [false true false]", state.Lights)
	}
	if state.Door || state.Clothesline.Extended || state.Clothesline.ManualMode {
		t.Errorf("door/clothesline = %v/%+v, want all false", state.Door, state.Clothesline)
	}
	want := device.Update{User: "Ann", Action: device.LabelTurnedOn, Timestamp: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	if !state.LightUpdates[1].Timestamp.Equal(want.Timestamp) || state.LightUpdates[1].Action != want.Action {
		t.Errorf("LightUpdates[1] = %+v, want %+v", state.LightUpdates[1], want)
	}
	if state.DoorUpdate.Source != "RFID" {
		t.Errorf("DoorUpdate.Source = %q, want RFID", state.DoorUpdate.Source)
	}

	stored, known := store.State()
	if !known || stored != state {
		t.Error("store does not hold the loaded state")
	}
	if src.syncCalls.Load() != 1 {
		t.Errorf("sync calls = %d, want 1", src.syncCalls.Load())
	}
}

func TestLoader_AnyFailureLeavesStateUnknown(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		fail func(*fakeSource)
	}{
		{"lights", func(f *fakeSource) { f.lights = func() (remote.LightsState, error) { return remote.LightsState{}, boom } }},
		{"door", func(f *fakeSource) { f.door = func() (remote.DeviceRecord, error) { return remote.DeviceRecord{}, boom } }},
		{"clothesline", func(f *fakeSource) {
			f.clothesline = func() (remote.DeviceRecord, error) { return remote.DeviceRecord{}, boom }
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := scenarioSource()
			tt.fail(src)
			store := device.NewStore()
			obs := &countingObserver{}

			l := NewLoader(src, store, Config{Observer: obs})
			_, err := l.Load(context.Background())
			l.Close()

			if !errors.Is(err, ErrLoadFailed) || !errors.Is(err, boom) {
				t.Errorf("Load() error = %v, want ErrLoadFailed wrapping boom", err)
			}
			if store.Known() {
				t.Error("state became known after a failed load")
			}
			if src.syncCalls.Load() != 0 {
				t.Error("sync requested after a failed load")
			}
			if obs.fail != 1 || obs.ok != 0 {
				t.Errorf("observer ok=%d fail=%d, want 0 and 1", obs.ok, obs.fail)
			}
		})
	}
}

func TestLoader_EmptyHistoryIsSuccess(t *testing.T) {
	src := scenarioSource()
	src.lights = func() (remote.LightsState, error) { return remote.LightsState{}, nil }
	src.door = func() (remote.DeviceRecord, error) { return remote.DeviceRecord{}, nil }
	src.clothesline = func() (remote.DeviceRecord, error) { return remote.DeviceRecord{}, nil }

	store := device.NewStore()
	l := NewLoader(src, store, Config{})
	defer l.Close()

	state, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state != (device.State{}) || !store.Known() {
		t.Errorf("state = %+v known=%v, want zero and known", state, store.Known())
	}
}

func TestLoader_SkipsOutOfRangeLight(t *testing.T) {
	src := scenarioSource()
	src.lights = func() (remote.LightsState, error) {
		return remote.LightsState{Lights: []remote.LightRecord{
			{LightID: 4, User: "Ann", Action: "on", Timestamp: "2026-03-01T08:00:00Z"},
			{LightID: 1, User: "Ann", Action: "on", Timestamp: "2026-03-01T08:00:00Z"},
		}}, nil
	}

	l := NewLoader(src, device.NewStore(), Config{})
	defer l.Close()
	state, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state.Lights != [device.LightCount]bool{true, false, false} {
		t.Errorf("Lights = %v", state.Lights)
	}
}

func TestLoader_UnexpectedRecordsStillLoad(t *testing.T) {
	tests := []struct {
		name      string
		door      remote.DeviceRecord
		wantUser  string
		wantZeroT bool
	}{
		{
			name:     "rfid record without action",
			door:     remote.DeviceRecord{User: "-", Action: "-", Timestamp: "2026-03-01T08:00:00+07:00", Source: "RFID"},
			wantUser: "-",
		},
		{
			name:      "unparsable timestamp",
			door:      remote.DeviceRecord{User: "Bo", Action: "open", Timestamp: "yesterday"},
			wantUser:  "Bo",
			wantZeroT: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := scenarioSource()
			src.door = func() (remote.DeviceRecord, error) { return tt.door, nil }

			store := device.NewStore()
			l := NewLoader(src, store, Config{})
			defer l.Close()

			state, err := l.Load(context.Background())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !store.Known() {
				t.Fatal("state unknown after a successful load")
			}
			if state.Door != (tt.door.Action == device.ActionOpen) {
				t.Errorf("Door = %v for action %q", state.Door, tt.door.Action)
			}
			if state.DoorUpdate.User != tt.wantUser || state.DoorUpdate.Action != tt.door.Action {
				t.Errorf("DoorUpdate = %+v, want raw record kept", state.DoorUpdate)
			}
			if state.DoorUpdate.Timestamp.IsZero() != tt.wantZeroT {
				t.Errorf("DoorUpdate.Timestamp = %v, zero want %v", state.DoorUpdate.Timestamp, tt.wantZeroT)
			}
			if state.Lights != [device.LightCount]bool{false, true, false} {
				t.Errorf("Lights = %v, other categories must load normally", state.Lights)
			}
		})
	}
}

func TestLoader_UnexpectedLightAction(t *testing.T) {
	src := scenarioSource()
	src.lights = func() (remote.LightsState, error) {
		return remote.LightsState{Lights: []remote.LightRecord{
			{LightID: 1, User: "Ann", Action: "dim", Timestamp: "2026-03-01T08:00:00Z"},
			{LightID: 3, User: "Ann", Action: "on", Timestamp: "2026-03-01T08:00:00Z"},
		}}, nil
	}

	l := NewLoader(src, device.NewStore(), Config{})
	defer l.Close()
	state, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state.Lights != [device.LightCount]bool{false, false, true} {
		t.Errorf("Lights = %v, want [false false true]", state.Lights)
	}
}

func TestLoader_Retry(t *testing.T) {
	src := scenarioSource()
	var calls atomic.Int32
	src.door = func() (remote.DeviceRecord, error) {
		if calls.Add(1) == 1 {
			return remote.DeviceRecord{}, remote.ErrRequestFailed
		}
		return remote.DeviceRecord{User: "Bo", Action: "open", Timestamp: "2026-03-01T08:00:00Z"}, nil
	}

	obs := &countingObserver{}
	l := NewLoader(src, device.NewStore(), Config{RetryAttempts: 2, RetryDelay: time.Millisecond, Observer: obs})
	defer l.Close()

	state, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !state.Door {
		t.Error("Door = false after retried load")
	}
	if obs.fail != 1 || obs.ok != 1 {
		t.Errorf("observer ok=%d fail=%d, want 1 and 1", obs.ok, obs.fail)
	}
}

func TestLoader_SyncFailureIsIgnored(t *testing.T) {
	src := scenarioSource()
	src.syncErr = remote.ErrUnexpectedStatus

	l := NewLoader(src, device.NewStore(), Config{})
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	l.Close()
	if src.syncCalls.Load() != 1 {
		t.Errorf("sync calls = %d, want exactly 1 (no retry)", src.syncCalls.Load())
	}
}

func TestLoader_Closed(t *testing.T) {
	l := NewLoader(scenarioSource(), device.NewStore(), Config{RetryAttempts: 3, RetryDelay: time.Hour})
	l.Close()
	if _, err := l.Load(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Load() after Close error = %v, want ErrClosed", err)
	}
}
