// Package metrics exports lifecycle counters in Prometheus format.
//
// A Collector registers a handler on the event bus and turns harness, supervisor and
// client events into counters on its own registry.
//
// # Basic Usage
//
//	c := metrics.New()
//	bus.Handle(c.Observe)
//
//	// Optionally expose /metrics while the harness runs
//	go c.Serve(ctx, ":9201")
package metrics
