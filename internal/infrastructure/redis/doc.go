// Package redis provides the Redis connection used by the hashpipe gateway.
//
// It wraps github.com/redis/go-redis/v9 with the three things the gateway
// needs from its broker:
//
//   - Publish of short text messages (query replies)
//   - A pub/sub Subscription delivering Messages on a channel
//   - ReplaceHashes: one pipelined round trip that rewrites a batch of
//     hashes, each inside its own MULTI/EXEC block
//
// # Connection management
//
// Connect retries the initial PING with exponential backoff
// (github.com/cenkalti/backoff) until it succeeds, the configured
// max_elapsed time passes, or the context is cancelled. After that go-redis
// reconnects pooled connections on its own; pub/sub connections are
// re-established transparently by the library.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package redis
