package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePointWithTime queues a point for the next batch. Points with no
// fields are dropped, as are all points after Close.
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Indexed key-value pairs (domain, gateway, instance)
//   - fields: Numeric status buffer fields
//   - timestamp: When the snapshot was taken
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
