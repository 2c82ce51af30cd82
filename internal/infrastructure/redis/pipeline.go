package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Field is one hash field.
type Field struct {
	Name  string
	Value string
}

// HashRecord describes the full replacement of one hash.
type HashRecord struct {
	Key    string
	Fields []Field

	// TTL sets an expiry on the key when positive (whole seconds).
	TTL time.Duration

	// Notify, when not empty, is a channel that receives Key after the update.
	Notify string
}

// ReplaceHashes rewrites every record in one pipelined round trip. Each
// record becomes its own transaction:
//
//	MULTI; DEL key; HSET key f v ...; EXPIRE key ttl; PUBLISH notify key; EXEC
//
// so readers never observe a half-written hash. A record without fields only
// deletes its key; nothing is expired or announced. Errors from individual
// transactions are joined.
func (c *Client) ReplaceHashes(ctx context.Context, records []HashRecord) error {
	if c.closed.Load() {
		return ErrNotConnected
	}
	if len(records) == 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	execs := make([]*goredis.Cmd, len(records))
	for i, rec := range records {
		pipe.Do(ctx, "multi")
		pipe.Do(ctx, "del", rec.Key)
		if len(rec.Fields) > 0 {
			args := make([]any, 0, 2+2*len(rec.Fields))
			args = append(args, "hset", rec.Key)
			for _, f := range rec.Fields {
				args = append(args, f.Name, f.Value)
			}
			pipe.Do(ctx, args...)
			if secs := int64(rec.TTL / time.Second); secs > 0 {
				pipe.Do(ctx, "expire", rec.Key, secs)
			}
			if rec.Notify != "" {
				pipe.Do(ctx, "publish", rec.Notify, rec.Key)
			}
		}
		execs[i] = pipe.Do(ctx, "exec")
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	var errs []error
	for i, cmd := range execs {
		replies, err := cmd.Slice()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", records[i].Key, err))
			continue
		}
		for _, r := range replies {
			if e, ok := r.(error); ok {
				errs = append(errs, fmt.Errorf("%s: %w", records[i].Key, e))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrTransactionFailed, errors.Join(errs...))
	}
	return nil
}
