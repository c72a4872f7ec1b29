// Package registry owns the live transceiver sessions.
//
// Identities ("<hex-type> <host> <mac>") live in the command store; the
// registry turns them into authenticated Device handles on first use and
// keeps at most one handle per device name. A failed open is logged and
// retried on the next reference.
//
// Usage:
//
//	reg := registry.New(st, registry.BroadlinkOpener{Timeout: 5 * time.Second})
//	reg.SetLogger(logger.With("component", "registry"))
//	reg.Warm(ctx)
//	if dev, ok := reg.Get(ctx, "kitchen-ac"); ok {
//	    _ = dev.SendData(ctx, packet)
//	}
package registry
