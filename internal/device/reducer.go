package device

import "fmt"

// Reduce folds one event into s.
//
// It is pure. s is taken by value and the result shares no storage with it.
// Applying the same event twice gives the same state as applying it once.
//
// Per category:
//   - light: only Lights[LightID-1] and its update change
//   - door: Door and DoorUpdate change
//   - clothesline: Clothesline.Extended and ClotheslineUpdate change;
//     ManualMode is never derived from events
//   - alert: state is returned unchanged; the returned Update describes the alert
//
// Returns:
//   - State: The new state (equal to s on error)
//   - Update: The audit record produced by the event
//   - error: ErrLightOutOfRange, ErrUnknownAction or ErrUnknownCategory
func Reduce(s State, ev Event) (State, Update, error) {
	if err := ValidateAction(ev.Category, ev.Action); err != nil {
		return s, Update{}, err
	}

	switch ev.Category {
	case CategoryLight:
		idx := ev.LightIndex()
		if idx < 0 || idx >= LightCount {
			return s, Update{}, fmt.Errorf("%w: %d", ErrLightOutOfRange, ev.LightID)
		}
		on := ev.Action == ActionOn
		u := Update{
			User:      ev.User,
			Action:    LightLabel(on),
			Timestamp: ev.Timestamp,
			Source:    ev.Source,
		}
		s.Lights[idx] = on
		s.LightUpdates[idx] = u
		return s, u, nil

	case CategoryDoor:
		u := updateFrom(ev)
		s.Door = ev.Action == ActionOpen
		s.DoorUpdate = u
		return s, u, nil

	case CategoryClothesline:
		u := updateFrom(ev)
		s.Clothesline.Extended = ev.Action == ActionExtend
		s.ClotheslineUpdate = u
		return s, u, nil

	default: // CategoryAlert
		return s, updateFrom(ev), nil
	}
}

// LightLabel returns the update label for a light switched on or off.
func LightLabel(on bool) string {
	if on {
		return LabelTurnedOn
	}
	return LabelTurnedOff
}

func updateFrom(ev Event) Update {
	return Update{
		User:      ev.User,
		Action:    ev.Action,
		Timestamp: ev.Timestamp,
		Source:    ev.Source,
	}
}

// LightRecord is the last action recorded for one light in a snapshot.
type LightRecord struct {
	LightID int
	Update  Update // Action holds the raw "on"/"off"
}

// Snapshot is the authoritative state returned by the backend at start-up.
// Door and Clothesline hold the raw last action, which may be empty when the
// backend has no history yet.
type Snapshot struct {
	Lights      []LightRecord
	Door        Update
	Clothesline Update
}

// FromSnapshot builds a fresh State from a snapshot.
//
// Lights missing from the snapshot keep their default (off, no update).
// Records with an id outside 1..LightCount are skipped and their ids returned.
// ManualMode is always false.
func FromSnapshot(snap Snapshot) (State, []int) {
	var s State
	var skipped []int

	for _, rec := range snap.Lights {
		idx := rec.LightID - 1
		if idx < 0 || idx >= LightCount {
			skipped = append(skipped, rec.LightID)
			continue
		}
		on := rec.Update.Action == ActionOn
		s.Lights[idx] = on
		u := rec.Update
		u.Action = LightLabel(on)
		s.LightUpdates[idx] = u
	}

	s.Door = snap.Door.Action == ActionOpen
	s.DoorUpdate = snap.Door

	s.Clothesline.Extended = snap.Clothesline.Action == ActionExtend
	s.ClotheslineUpdate = snap.Clothesline

	return s, skipped
}
