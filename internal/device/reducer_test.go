package device

import (
	"errors"
	"testing"
	"time"
)

var t2 = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func TestReduce_DoorEventScenario(t *testing.T) {
	before := State{
		Lights:      [LightCount]bool{true, false, true},
		Clothesline: Clothesline{Extended: true, ManualMode: true},
	}

	after, update, err := Reduce(before, Event{
		Category:  CategoryDoor,
		User:      "Bo",
		Action:    ActionOpen,
		Timestamp: t2,
	})
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}

	if !after.Door {
		t.Error("Door = false, want true")
	}
	want := Update{User: "Bo", Action: ActionOpen, Timestamp: t2}
	if after.DoorUpdate != want {
		t.Errorf("DoorUpdate = %+v, want %+v", after.DoorUpdate, want)
	}
	if update != want {
		t.Errorf("returned update = %+v, want %+v", update, want)
	}
	if after.Lights != before.Lights {
		t.Errorf("Lights changed: %v -> %v", before.Lights, after.Lights)
	}
	if after.Clothesline != before.Clothesline {
		t.Errorf("Clothesline changed: %+v -> %+v", before.Clothesline, after.Clothesline)
	}
	if before.Door {
		t.Error("input state was mutated")
	}
}

func TestReduce_Light(t *testing.T) {
	tests := []struct {
		name      string
		lightID   int
		action    string
		wantIndex int
		wantOn    bool
		wantLabel string
	}{
		{name: "first on", lightID: 1, action: ActionOn, wantIndex: 0, wantOn: true, wantLabel: LabelTurnedOn},
		{name: "second on", lightID: 2, action: ActionOn, wantIndex: 1, wantOn: true, wantLabel: LabelTurnedOn},
		{name: "third off", lightID: 3, action: ActionOff, wantIndex: 2, wantOn: false, wantLabel: LabelTurnedOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := State{Lights: [LightCount]bool{false, false, true}}
			after, _, err := Reduce(before, Event{
				Category:  CategoryLight,
				User:      "Ann",
				Action:    tt.action,
				LightID:   tt.lightID,
				Timestamp: t2,
			})
			if err != nil {
				t.Fatalf("Reduce() error = %v", err)
			}

			for i := range LightCount {
				if i == tt.wantIndex {
					continue
				}
				if after.Lights[i] != before.Lights[i] {
					t.Errorf("Lights[%d] changed although only %d should", i, tt.wantIndex)
				}
				if !after.LightUpdates[i].IsZero() {
					t.Errorf("LightUpdates[%d] set although only %d should", i, tt.wantIndex)
				}
			}
			if after.Lights[tt.wantIndex] != tt.wantOn {
				t.Errorf("Lights[%d] = %v, want %v", tt.wantIndex, after.Lights[tt.wantIndex], tt.wantOn)
			}
			if got := after.LightUpdates[tt.wantIndex].Action; got != tt.wantLabel {
				t.Errorf("update action = %q, want %q", got, tt.wantLabel)
			}
		})
	}
}

func TestReduce_LightOutOfRange(t *testing.T) {
	before := State{Lights: [LightCount]bool{true, true, true}}

	for _, id := range []int{-1, 0, 4, 100} {
		after, _, err := Reduce(before, Event{
			Category: CategoryLight, User: "Ann", Action: ActionOff, LightID: id, Timestamp: t2,
		})
		if !errors.Is(err, ErrLightOutOfRange) {
			t.Errorf("light_id %d: error = %v, want ErrLightOutOfRange", id, err)
		}
		if after != before {
			t.Errorf("light_id %d: state changed on rejected event", id)
		}
	}
}

func TestReduce_Clothesline(t *testing.T) {
	before := State{Clothesline: Clothesline{Extended: false, ManualMode: true}}

	after, _, err := Reduce(before, Event{
		Category: CategoryClothesline, User: "System", Action: ActionExtend, Timestamp: t2, Source: "Rain Sensor",
	})
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if !after.Clothesline.Extended {
		t.Error("Extended = false, want true")
	}
	if !after.Clothesline.ManualMode {
		t.Error("ManualMode changed by push event")
	}
	if after.ClotheslineUpdate.Source != "Rain Sensor" {
		t.Errorf("Source = %q, want Rain Sensor", after.ClotheslineUpdate.Source)
	}
}

func TestReduce_AlertLeavesStateUnchanged(t *testing.T) {
	before := State{Door: true, Lights: [LightCount]bool{true, false, false}}

	after, update, err := Reduce(before, Event{Category: CategoryAlert, Action: ActionOpen, Timestamp: t2})
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if after != before {
		t.Error("alert changed state")
	}
	if update.Action != ActionOpen {
		t.Errorf("alert update action = %q, want open", update.Action)
	}
}

func TestReduce_Idempotent(t *testing.T) {
	start := State{Lights: [LightCount]bool{false, true, false}, Door: true}
	events := []Event{
		{Category: CategoryLight, User: "Ann", Action: ActionOn, LightID: 1, Timestamp: t2},
		{Category: CategoryLight, User: "Ann", Action: ActionOff, LightID: 2, Timestamp: t2},
		{Category: CategoryDoor, User: "Bo", Action: ActionClose, Timestamp: t2},
		{Category: CategoryClothesline, User: "Cy", Action: ActionRetract, Timestamp: t2},
		{Category: CategoryAlert, Action: ActionClose, Timestamp: t2},
	}

	for _, ev := range events {
		once, _, err := Reduce(start, ev)
		if err != nil {
			t.Fatalf("Reduce(%s) error = %v", ev.Category, err)
		}
		twice, _, err := Reduce(once, ev)
		if err != nil {
			t.Fatalf("Reduce(%s) replay error = %v", ev.Category, err)
		}
		if once != twice {
			t.Errorf("%s event not idempotent: %+v != %+v", ev.Category, once, twice)
		}
	}
}

func TestReduce_UnknownAction(t *testing.T) {
	_, _, err := Reduce(State{}, Event{Category: CategoryDoor, User: "Bo", Action: "explode", Timestamp: t2})
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("error = %v, want ErrUnknownAction", err)
	}
}

func TestFromSnapshot_Scenario(t *testing.T) {
	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	state, skipped := FromSnapshot(Snapshot{
		Lights: []LightRecord{
			{LightID: 2, Update: Update{User: "Ann", Action: ActionOn, Timestamp: ts}},
		},
		Door:        Update{User: "Bo", Action: ActionClose, Timestamp: ts},
		Clothesline: Update{User: "System", Action: ActionRetract, Timestamp: ts},
	})

	if len(skipped) != 0 {
		t.Errorf("skipped = %v, want none", skipped)
	}
	if state.Lights != [LightCount]bool{false, true, false} {
		t.Errorf("Lights = %v, want [false true false]", state.Lights)
	}
	if state.Door {
		t.Error("Door = true, want false")
	}
	if state.Clothesline.Extended || state.Clothesline.ManualMode {
		t.Errorf("Clothesline = %+v, want all false", state.Clothesline)
	}
	want := Update{User: "Ann", Action: LabelTurnedOn, Timestamp: ts}
	if state.LightUpdates[1] != want {
		t.Errorf("LightUpdates[1] = %+v, want %+v", state.LightUpdates[1], want)
	}
	if !state.LightUpdates[0].IsZero() || !state.LightUpdates[2].IsZero() {
		t.Error("absent lights should keep empty updates")
	}
}

func TestFromSnapshot_SkipsOutOfRange(t *testing.T) {
	state, skipped := FromSnapshot(Snapshot{
		Lights: []LightRecord{
			{LightID: 0, Update: Update{Action: ActionOn}},
			{LightID: 3, Update: Update{Action: ActionOn}},
			{LightID: 7, Update: Update{Action: ActionOn}},
		},
	})

	if len(skipped) != 2 || skipped[0] != 0 || skipped[1] != 7 {
		t.Errorf("skipped = %v, want [0 7]", skipped)
	}
	if state.Lights != [LightCount]bool{false, false, true} {
		t.Errorf("Lights = %v, want [false false true]", state.Lights)
	}
}

func TestFromSnapshot_EmptyHistory(t *testing.T) {
	state, _ := FromSnapshot(Snapshot{})
	if state != (State{}) {
		t.Errorf("state = %+v, want zero", state)
	}
}
