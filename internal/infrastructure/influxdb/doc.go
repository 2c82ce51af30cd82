// Package influxdb mirrors numeric status buffer fields into InfluxDB.
//
// It wraps the official influxdb-client-go v2 library: Connect pings the
// server, then points are written through the non-blocking batched write
// API. Batch errors are delivered to the SetOnError callback.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePointWithTime("hashpipe_status",
//	    map[string]string{"gateway": "px1", "instance": "0"},
//	    map[string]any{"RA": 156.3}, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
