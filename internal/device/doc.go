// Package device holds the reconciled state of the HomyTech devices.
//
// Three lights, one door and one clothesline are tracked. Their state is
// loaded once from a snapshot and then folded forward one push event at a
// time by the pure Reduce function. Door alerts travel on their own stream
// and never change state.
//
// # Key Types
//
//   - State: value-type view of all devices plus the last Update of each
//   - Event: a validated push event, produced by DecodeEvent
//   - Store: the single owner of a session's State; notifies Listeners
//
// # Usage
//
//	store := device.NewStore()
//	store.AddListener(hub)
//
//	state, _ := device.FromSnapshot(snap)
//	store.Load(state)
//
//	ev, err := device.DecodeEvent(device.CategoryDoor, payload)
//	if err != nil {
//	    // malformed: log and drop
//	}
//	store.Apply(ev)
package device
