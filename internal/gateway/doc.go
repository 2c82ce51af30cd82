// Package gateway bridges hashpipe status buffers to Redis.
//
// A Gateway runs two loops over a shared status.Registry and Runtime:
//
//   - Publisher copies every buffer into a Redis hash ("D://G/E/status")
//     every delay seconds, in one pipelined round trip of MULTI/EXEC blocks,
//     optionally setting an expiry and publishing on "D://G/E/update".
//   - Router subscribes to the set, req and gateway command channels and
//     applies field updates, answers field queries on "D://G/E/rep", and
//     handles the delay and quit gateway commands.
//
// Channel names follow "<domain>://<gateway>/<instance>/<kind>"; broadcast
// channels leave gateway and instance empty ("hashpipe:///set").
//
// Snapshots read by the publisher may also be handed to SnapshotSinks
// (MQTT, InfluxDB, local history) after each cycle.
package gateway
