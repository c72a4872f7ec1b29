// Package metrics exposes bridge activity to Prometheus.
//
// Metrics:
//
//	m2b_messages_total{handler,result}       routed messages by outcome
//	m2b_inbox_dropped_total                  messages dropped on a full inbox
//	m2b_handler_duration_seconds{handler}    handler latency
//	m2b_devices_open                         live device sessions
//
// Metrics implements router.Recorder. Handler is mounted at /metrics by the
// api package.
package metrics
