package influxdb

import (
	"context"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/mqtt2broadlink/internal/router"
)

// measurementCommand holds one point per routed message.
const measurementCommand = "m2b_command"

// Record implements router.Recorder. The write is queued and never blocks.
func (c *Client) Record(_ context.Context, o router.Outcome) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	tags := map[string]string{
		"handler": o.Handler,
		"result":  string(o.Result),
	}
	if o.Subject != "" {
		tags["subject"] = o.Subject
	}

	fields := map[string]any{
		"duration_ms":   float64(o.Duration.Microseconds()) / 1000,
		"payload_bytes": len(o.Payload),
	}

	c.writeAPI.WritePoint(write.NewPoint(measurementCommand, tags, fields, o.Started))
	return nil
}
