package remote

import "time"

// Paths on the HomyTech backend.
const (
	pathLogin        = "/api/login"
	pathLatestState  = "/api/latest-state/"
	pathSyncState    = "/api/sync-state"
	pathLogs         = "/api/logs/"
	pathHourlyUsage  = "/api/light-usage/hourly"
	pathLight        = "/api/light/"
	pathDoor         = "/api/door/"
	pathClothesline  = "/api/clothesline/"
	pathClotheslineM = "/api/clothesline/mode"
)

// LightRecord is one light's latest entry in the light snapshot.
type LightRecord struct {
	LightID   int    `json:"light_id"`
	User      string `json:"user"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// LightsState is the body of GET /api/latest-state/light.
type LightsState struct {
	Lights []LightRecord `json:"lights"`
}

// DeviceRecord is the latest door or clothesline entry. An empty object
// (no history yet) decodes to the zero value.
type DeviceRecord struct {
	User      string `json:"user"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source,omitempty"`
}

// Empty reports whether the backend had no history for the device.
func (r DeviceRecord) Empty() bool {
	return r.Action == ""
}

// LogEntry is one row of a log page. Door and clothesline rows carry
// Source; light rows carry LightID or a Light label.
type LogEntry struct {
	ID        string `json:"id,omitempty"`
	User      string `json:"user"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source,omitempty"`
	LightID   int    `json:"light_id,omitempty"`
	Light     string `json:"light,omitempty"`
}

// LogPage is the body of GET /api/logs/{category}.
type LogPage struct {
	Logs  []LogEntry `json:"logs"`
	Total int        `json:"total"`
}

// LogQuery selects one upstream page. Page is 1-based.
type LogQuery struct {
	Page    int
	Limit   int
	User    string
	Action  string
	Source  string
	LightID int
	From    time.Time
	To      time.Time
}

// UsageBucket is the number of minutes each light was on during one hour.
type UsageBucket struct {
	Hour   string `json:"hour"`
	Light1 int    `json:"light1"`
	Light2 int    `json:"light2"`
	Light3 int    `json:"light3"`
}

// HourlyUsage is the body of GET /api/light-usage/hourly.
type HourlyUsage struct {
	Data []UsageBucket `json:"data"`
}

// Credentials are the body of POST /api/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the body returned by POST /api/login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Name        string `json:"name"`
}

// Command is the body of a device toggle.
type Command struct {
	User   string `json:"user"`
	Action string `json:"action"`
}

type modeCommand struct {
	Mode string `json:"mode"`
}

// Ack is the backend's reply to a command.
type Ack struct {
	Message string `json:"message"`
}

type errorBody struct {
	Detail any `json:"detail"`
}
