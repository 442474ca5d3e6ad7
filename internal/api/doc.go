// Package api implements the local HTTP API and WebSocket hub for the
// synced HomyTech device state.
//
// This package provides:
//   - Read endpoints for the reconciled state, channel status, backend
//     logs, hourly usage and the local journal
//   - Toggle endpoints for lights, door, clothesline and clothesline mode
//   - A WebSocket hub that relays every state change and door alert
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The server reads from the device.Store and registers its Hub as a store
// listener. Toggles go to the backend through the Commander; the result is
// observed when the backend pushes the matching event, not from the toggle
// response.
//
// # Routes
//
// All routes live under /api/v1:
//
//	GET  /health
//	GET  /state
//	GET  /channels
//	POST /lights/{index}/toggle        (index is the 1-based light id)
//	POST /door/toggle
//	POST /clothesline/toggle
//	POST /clothesline/mode/toggle
//	GET  /logs/{category}?page=N       (N is 0-based)
//	GET  /usage/hourly
//	GET  /journal/{category}?limit=N
//	GET  /ws
//
// The Prometheus handler is mounted at the configured metrics path.
package api
