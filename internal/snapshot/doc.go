// Package snapshot loads the authoritative device state at startup.
//
// The light, door and clothesline reads run concurrently and the load
// succeeds only when all three do. On success the Store is replaced in one
// step and a fire-and-forget sync request asks the backend to push its
// stored state to the devices.
package snapshot
