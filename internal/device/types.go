package device

import "time"

// Category identifies a device family and its push channel.
type Category string

// Device categories. Alert has a channel but no state of its own.
const (
	CategoryAlert       Category = "alert"
	CategoryLight       Category = "light"
	CategoryDoor        Category = "door"
	CategoryClothesline Category = "clothesline"
)

// LightCount is the number of physical lights. Index i is light id i+1.
const LightCount = 3

// Actions carried by push events and accepted by the backend.
const (
	ActionOn      = "on"
	ActionOff     = "off"
	ActionOpen    = "open"
	ActionClose   = "close"
	ActionExtend  = "extend"
	ActionRetract = "retract"
)

// Display labels recorded on light updates.
const (
	LabelTurnedOn  = "turned on"
	LabelTurnedOff = "turned off"
)

// Clothesline modes sent to the backend.
const (
	ModeManual = "manual"
	ModeAuto   = "auto"
)

// Channels returns the push-channel categories in start-up order.
func Channels() []Category {
	return []Category{CategoryAlert, CategoryLight, CategoryDoor, CategoryClothesline}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryAlert, CategoryLight, CategoryDoor, CategoryClothesline:
		return true
	default:
		return false
	}
}

// Stateful reports whether events of this category change device state.
func (c Category) Stateful() bool {
	return c.Valid() && c != CategoryAlert
}

// Update is the last known actor and action for a device.
// It is overwritten, never accumulated, on each event for that device.
type Update struct {
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

// IsZero reports whether no update has been recorded.
func (u Update) IsZero() bool {
	return u.User == "" && u.Action == "" && u.Timestamp.IsZero()
}

// Clothesline is the clothesline position and its control mode.
type Clothesline struct {
	Extended bool `json:"extended"`

	// ManualMode is only changed by an explicit local action and resets to
	// false (auto) whenever a snapshot loads.
	ManualMode bool `json:"manual_mode"`
}

// State is the reconciled view of all devices together with the last
// update recorded for each.
//
// State is a value type. Copies never share storage, which keeps Reduce pure.
type State struct {
	Lights      [LightCount]bool `json:"lights"`
	Door        bool             `json:"door"`
	Clothesline Clothesline      `json:"clothesline"`

	LightUpdates      [LightCount]Update `json:"light_updates"`
	DoorUpdate        Update             `json:"door_update"`
	ClotheslineUpdate Update             `json:"clothesline_update"`
}

// Event is a validated push event.
type Event struct {
	Category  Category
	User      string
	Action    string
	LightID   int // 1-based, light events only
	Timestamp time.Time
	Source    string
}

// LightIndex returns the zero-based array index for a light event.
func (e Event) LightIndex() int {
	return e.LightID - 1
}

// Change describes one reduction applied by the Store.
type Change struct {
	Category Category `json:"category"`

	// LightIndex is the affected light for light changes, otherwise -1.
	LightIndex int    `json:"light_index"`
	Update     Update `json:"update"`
	State      State  `json:"state"`

	// Snapshot is set when the whole state was replaced by a snapshot load.
	Snapshot bool `json:"snapshot,omitempty"`

	// ModeChange is set when only the local clothesline mode changed.
	ModeChange bool `json:"mode_change,omitempty"`
}

// Alert is a one-shot door alert notification. It never touches State.
type Alert struct {
	User      string    `json:"user,omitempty"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}
