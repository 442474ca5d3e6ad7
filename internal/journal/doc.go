// Package journal records the device updates and door alerts of one run.
//
// Entries live in an in-memory SQLite database and disappear with the
// process. A Journal registered as a device.Listener records every applied
// push event, every local clothesline mode change and every alert; snapshot
// loads are skipped because they carry no new activity.
//
// Retention is per category: once configured, every fiftieth record trims
// each category back to its newest entries.
package journal
