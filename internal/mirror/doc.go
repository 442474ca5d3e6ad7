// Package mirror republishes the HomyTech device state to a local MQTT broker
// and accepts toggle commands from it.
//
// State is published retained, one topic per device group, so a late
// subscriber sees the current state at once. Door alerts are published
// without retain. Commands arrive as {"target":"light","index":0} on
// {prefix}/command/+ and go through the same Commander as every other
// caller, so they obey the same rules: the desired action is the inverse
// of the current state, and nothing changes locally until the push channel
// confirms it.
package mirror
