// HomySync keeps a live local copy of a HomyTech home's device state.
//
// It loads a snapshot of the three lights, the door and the clothesline
// from the HomyTech backend, then follows four push channels (alert,
// light, door, clothesline) and folds every event into that state. The
// state is served over a local HTTP API and WebSocket, mirrored to MQTT,
// journalled and written to InfluxDB when those are enabled.
//
// Usage:
//
//	homysync                  run the sync daemon (same as "homysync run")
//	homysync state            print the current device state
//	homysync logs door --page 2
//	homysync usage
//	homysync toggle light 2
//	homysync service install
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
