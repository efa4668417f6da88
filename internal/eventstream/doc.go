// Package eventstream serves reconciliation events over a websocket so other
// consoles and dashboards can follow status changes as they happen.
//
// A client that connects to /events first receives a snapshot of the cached
// device list and then one message per cycle event:
//
//	{"type":"snapshot","data":[{"dev_id":653421142357639201,...}]}
//	{"type":"event","data":{"type":"applying","cycle_id":"...","dev_id":653421142357639201,...}}
//	{"type":"event","data":{"type":"warning","kind":"convergence_timeout",...}}
//
// Identifiers are written as bare integers, the same as the REST API, so
// readers should decode with the codec package. Client and Watch do.
//
// The server pings every 54s and drops clients that miss a pong for 60s.
// A client that falls behind loses events rather than slowing the engine.
//
// # Usage Example
//
//	srv, err := eventstream.New(&eventstream.Config{Addr: "127.0.0.1:8090"}, engine)
//	if err != nil {
//	    return err
//	}
//	go srv.Start(ctx)
//
//	err = eventstream.Watch(ctx, "ws://127.0.0.1:8090/events", func(m eventstream.Message) error {
//	    fmt.Println(m.Type)
//	    return nil
//	})
package eventstream
