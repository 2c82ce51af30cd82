// Package history keeps a local, pruned record of status buffer snapshots
// in SQLite so operators can see recent values after the Redis keys expire.
package history
