// Package channel keeps the per-category push connections alive.
//
// A Client is one websocket connection that decodes each message into a
// device.Event and hands it to a Handler. A Supervisor wraps a Client and
// redials after every close with exponential backoff:
//
//	delay = min(initial * 2^(attempt+1), max)
//
// so with the defaults the first retry waits 2s, then 4s, 8s, 16s and 30s
// from then on. The attempt counter resets to zero whenever a connection
// opens. Events sent while a channel is down are not replayed.
//
// # Usage
//
//	sup, err := channel.NewSupervisor(channel.Config{
//	    Category: device.CategoryDoor,
//	    URL:      channel.URL("ws://hub.local:8000", device.CategoryDoor),
//	    Handler:  func(ev device.Event) { store.Apply(ev) },
//	    Logger:   log,
//	})
//	if err != nil {
//	    return err
//	}
//	sup.Start(ctx)
//	defer sup.Close()
package channel
