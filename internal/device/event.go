package device

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are tried in order. The backend emits ISO-8601 either
// with an offset or naive; naive values are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses a backend timestamp.
//
// Offset-carrying values keep their zone. Naive values are interpreted as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
}

// wireEvent is the JSON shape shared by all push channels.
type wireEvent struct {
	User      *string `json:"user"`
	Action    string  `json:"action"`
	LightID   *int    `json:"light_id"`
	Timestamp string  `json:"timestamp"`
	Source    string  `json:"source"`
}

// DecodeEvent parses and validates one push message for the given channel.
//
// Validation per category:
//   - light: user, action on|off, light_id 1..3, timestamp
//   - door: user, action open|close, timestamp
//   - clothesline: user, action extend|retract, timestamp
//   - alert: action open|close, timestamp; user optional
//
// Parameters:
//   - category: The channel the message arrived on
//   - data: Raw message payload (one JSON document)
//
// Returns:
//   - Event: The validated event
//   - error: Wraps ErrInvalidEvent on any schema or value failure
func DecodeEvent(category Category, data []byte) (Event, error) {
	if !category.Valid() {
		return Event{}, fmt.Errorf("%w: %w: %q", ErrInvalidEvent, ErrUnknownCategory, category)
	}

	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	ev := Event{
		Category: category,
		Action:   w.Action,
		Source:   w.Source,
	}
	if w.User != nil {
		ev.User = *w.User
	}

	if category != CategoryAlert && ev.User == "" {
		return Event{}, fmt.Errorf("%w: missing user", ErrInvalidEvent)
	}

	if err := ValidateAction(category, ev.Action); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	if category == CategoryLight {
		if w.LightID == nil {
			return Event{}, fmt.Errorf("%w: missing light_id", ErrInvalidEvent)
		}
		if *w.LightID < 1 || *w.LightID > LightCount {
			return Event{}, fmt.Errorf("%w: %w: %d", ErrInvalidEvent, ErrLightOutOfRange, *w.LightID)
		}
		ev.LightID = *w.LightID
	}

	ts, err := ParseTimestamp(w.Timestamp)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	ev.Timestamp = ts

	return ev, nil
}

// ValidateAction checks that action is allowed for category.
func ValidateAction(category Category, action string) error {
	var ok bool
	switch category {
	case CategoryLight:
		ok = action == ActionOn || action == ActionOff
	case CategoryDoor, CategoryAlert:
		ok = action == ActionOpen || action == ActionClose
	case CategoryClothesline:
		ok = action == ActionExtend || action == ActionRetract
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if !ok {
		return fmt.Errorf("%w: %q for %s", ErrUnknownAction, action, category)
	}
	return nil
}

// AlertMessage is the notification text shown for a door alert.
func AlertMessage(action string) string {
	return fmt.Sprintf("Someone tried to %s the door!", action)
}
