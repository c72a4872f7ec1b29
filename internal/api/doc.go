// Package api implements the bridge's read-only HTTP status surface.
//
// This package provides:
//   - /health for probes (503 while the broker is unreachable)
//   - /metrics in the Prometheus text format
//   - /api/v1/devices and /api/v1/commands listing the inventory
//   - /api/v1/journal listing recent routed messages
//   - Middleware stack (request ID, logging, recovery)
//
// All changes to the inventory go through MQTT; nothing here mutates state.
//
// Usage:
//
//	srv, err := api.New(api.Deps{Listen: ":9120", Logger: log, ...})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//	defer srv.Close()
package api
