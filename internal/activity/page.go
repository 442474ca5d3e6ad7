package activity

import (
	"strconv"
	"time"

	"github.com/nerrad567/homytech-sync/internal/device"
)

// PageSize is the number of entries per log page.
const PageSize = 10

// Entry is one log row. Source is set for door and clothesline rows,
// Light for light rows.
type Entry struct {
	ID        string    `json:"id,omitempty"`
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
	Light     string    `json:"light,omitempty"`
}

// Page is one fetched page of a category's log.
type Page struct {
	Category device.Category `json:"category"`

	// Index is 0-based; upstream pages are Index+1.
	Index      int     `json:"index"`
	Size       int     `json:"size"`
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
	Entries    []Entry `json:"entries"`
}

// HasPrevious reports whether a previous page exists.
func (p Page) HasPrevious() bool {
	return p.Index > 0
}

// HasNext reports whether a next page exists.
func (p Page) HasNext() bool {
	return p.Index < p.TotalPages-1
}

// TotalPages returns max(1, ceil(total/size)).
func TotalPages(total, size int) int {
	if size <= 0 {
		size = PageSize
	}
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// LightLabel names a light for display: "Light 2" for id 2, otherwise
// the backend's own label.
func LightLabel(lightID int, label string) string {
	if lightID > 0 {
		return "Light " + strconv.Itoa(lightID)
	}
	return label
}

// Filter narrows a log query. Zero fields are not sent.
type Filter struct {
	User    string
	Action  string
	Source  string
	LightID int
	From    time.Time
	To      time.Time
}

// UsageHours is the length of the hourly usage series.
const UsageHours = 8

// hourLayout is the backend's bucket label format.
const hourLayout = "15:04"

// UsageBucket holds the minutes each light was on during one hour.
type UsageBucket struct {
	Hour   string `json:"hour"`
	Light1 int    `json:"light1"`
	Light2 int    `json:"light2"`
	Light3 int    `json:"light3"`
}
