package redis

import (
	"time"

	"github.com/cenkalti/backoff"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/config"
)

const (
	// defaultDialTimeout applies when the config leaves dial_timeout unset.
	defaultDialTimeout = 5 * time.Second

	// ioTimeout bounds reads and writes on pooled connections.
	ioTimeout = 3 * time.Second

	// messageBuffer is the capacity of a Subscription's message channel.
	messageBuffer = 256
)

func buildOptions(cfg config.RedisConfig) *goredis.Options {
	dial := time.Duration(cfg.DialTimeout) * time.Second
	if dial <= 0 {
		dial = defaultDialTimeout
	}

	return &goredis.Options{
		Addr:         addr(cfg),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dial,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	}
}

// NewBackOff returns the reconnect policy described by cfg.
func NewBackOff(cfg config.RedisReconnectConfig) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	if cfg.InitialDelay > 0 {
		bo.InitialInterval = time.Duration(cfg.InitialDelay) * time.Second
	}
	if cfg.MaxDelay > 0 {
		bo.MaxInterval = time.Duration(cfg.MaxDelay) * time.Second
	}
	bo.MaxElapsedTime = time.Duration(cfg.MaxElapsed) * time.Second
	bo.Reset()
	return bo
}
