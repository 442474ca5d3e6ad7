package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by this package.
const (
	MeasurementDeviceState = "device_state"
	MeasurementDoorAlert   = "door_alert"
)

// WriteDeviceState records one device update: value is 1 when the device
// is on, open or extended and 0 otherwise. The user tag is omitted when
// empty and a zero ts means now.
//
//	client.WriteDeviceState("light", "light_2", "Ann", true, ts)
func (c *Client) WriteDeviceState(category, deviceName, user string, on bool, ts time.Time) {
	value := 0
	if on {
		value = 1
	}
	p := write.NewPointWithMeasurement(MeasurementDeviceState).
		AddTag("category", category).
		AddTag("device", deviceName).
		AddField("value", value).
		SetTime(pointTime(ts))
	if user != "" {
		p.AddTag("user", user)
	}
	c.writePoint(p)
}

// WriteDoorAlert records a door alert. action is what was attempted.
func (c *Client) WriteDoorAlert(user, action string, ts time.Time) {
	p := write.NewPointWithMeasurement(MeasurementDoorAlert).
		AddTag("action", action).
		AddField("count", 1).
		SetTime(pointTime(ts))
	if user != "" {
		p.AddTag("user", user)
	}
	c.writePoint(p)
}

func pointTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}
