// Package influxdb exports bridge activity to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every routed message
// becomes one m2b_command point:
//
//	m2b_command,handler=send,result=ok,subject=kitchen-ac duration_ms=42,payload_bytes=8
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) { logger.Warn("influx write failed", "error", err) })
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Write failures are delivered to the SetOnError callback.
package influxdb
