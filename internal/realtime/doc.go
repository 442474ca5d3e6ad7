// Package realtime wires the snapshot loader and the four push channels
// into one device store.
//
// A Service is the lifetime of one sync session. Start loads the
// authoritative snapshot and then opens the alert, light, door and
// clothesline channels, each under its own reconnect supervisor. Close
// tears all of it down; after it returns the store accepts no more events.
package realtime
