// Package telemetry turns applied device changes into time-series points.
package telemetry

import (
	"fmt"
	"time"

	"github.com/nerrad567/homytech-sync/internal/device"
)

// Writer stores telemetry points. *influxdb.Client satisfies it.
type Writer interface {
	WriteDeviceState(category, deviceName, user string, on bool, ts time.Time)
	WriteDoorAlert(user, action string, ts time.Time)
}

// Recorder implements device.Listener and writes one point per device
// whose state an update reported. A snapshot load writes a baseline point
// for all five devices. Local clothesline mode changes carry no device
// state and are not written.
type Recorder struct {
	w   Writer
	now func() time.Time
}

// NewRecorder creates a Recorder writing to w.
func NewRecorder(w Writer) *Recorder {
	return &Recorder{w: w, now: time.Now}
}

// DeviceName returns the device tag for a category and light index.
func DeviceName(category device.Category, lightIndex int) string {
	if category == device.CategoryLight {
		return fmt.Sprintf("light_%d", lightIndex+1)
	}
	return string(category)
}

// StateChanged implements device.Listener.
func (r *Recorder) StateChanged(change device.Change) {
	state := change.State
	switch {
	case change.Snapshot:
		ts := r.now()
		for i, on := range state.Lights {
			r.w.WriteDeviceState(string(device.CategoryLight), DeviceName(device.CategoryLight, i), state.LightUpdates[i].User, on, ts)
		}
		r.w.WriteDeviceState(string(device.CategoryDoor), DeviceName(device.CategoryDoor, -1), state.DoorUpdate.User, state.Door, ts)
		r.w.WriteDeviceState(string(device.CategoryClothesline), DeviceName(device.CategoryClothesline, -1), state.ClotheslineUpdate.User, state.Clothesline.Extended, ts)
	case change.ModeChange:
		return
	case change.Category == device.CategoryLight:
		if change.LightIndex < 0 || change.LightIndex >= device.LightCount {
			return
		}
		r.write(change, state.Lights[change.LightIndex])
	case change.Category == device.CategoryDoor:
		r.write(change, state.Door)
	case change.Category == device.CategoryClothesline:
		r.write(change, state.Clothesline.Extended)
	}
}

// AlertRaised implements device.Listener.
func (r *Recorder) AlertRaised(alert device.Alert) {
	r.w.WriteDoorAlert(alert.User, alert.Action, alert.Timestamp)
}

func (r *Recorder) write(change device.Change, on bool) {
	ts := change.Update.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}
	r.w.WriteDeviceState(string(change.Category), DeviceName(change.Category, change.LightIndex), change.Update.User, on, ts)
}
