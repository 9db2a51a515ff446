// Package redis implements the remote chunk hooks on top of Redis: the
// chunk index lives in a hash, chunk payloads in plain keys, the map
// version in a counter and chunk locks in SET-NX keys.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps the go-redis client with connection diagnostics.
type Client struct {
	*redis.Client
	log *zap.Logger
}

// ClientOptions configures the connection. Pool sizing follows the
// chunk workload rather than a generic default: every in-flight chunk
// operation (load, save, lock, index refresh) holds one connection, so
// the pool is dimensioned from the expected chunk-op concurrency.
type ClientOptions struct {
	Addr string
	DB   int

	// MaxInflightChunkOps is the number of concurrent chunk operations
	// the pool must sustain. Zero means 16 (a facade's singleflight
	// collapses most concurrent loads, so modest pools suffice).
	MaxInflightChunkOps int
}

func (o *ClientOptions) setDefaults() {
	if o.Addr == "" {
		o.Addr = "localhost:6379"
	}
	if o.MaxInflightChunkOps <= 0 {
		o.MaxInflightChunkOps = 16
	}
}

// NewClient dials Redis and logs the connection state. The client is
// usable even when the initial probe fails; operations retry.
func NewClient(log *zap.Logger, opts ClientOptions) *Client {
	opts.setDefaults()

	c := &Client{
		Client: redis.NewClient(&redis.Options{
			Addr: opts.Addr,
			DB:   opts.DB,

			// Chunk payloads run to megabytes (the HTTP surface caps
			// them at 8MB), so read/write budgets are sized for bulk
			// transfer, not point lookups.
			DialTimeout:  2 * time.Second,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,

			// One connection per in-flight chunk op; keep a quarter
			// warm for the steady mix of index refreshes and lock
			// round-trips.
			PoolSize:     opts.MaxInflightChunkOps,
			MinIdleConns: opts.MaxInflightChunkOps / 4,

			// Lock acquisition has its own retry loop above this
			// client; transport retries stay low so a held SET-NX is
			// reported, not hammered.
			MaxRetries: 2,
		}),
		log: log.Named("redis"),
	}

	c.probe(context.TODO())
	return c
}

// Close closes the underlying connection pool.
func (c *Client) Close() error { return c.Client.Close() }

// probe bounds a single ping and logs round-trip diagnostics.
func (c *Client) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	opts := c.Options()
	log := c.log.With(
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Int("pool_size", opts.PoolSize),
	)

	start := time.Now()
	err := c.Client.Ping(ctx).Err()
	rtt := time.Since(start)

	if err != nil {
		log.Warn("chunk store unreachable", zap.Error(err), zap.Duration("rtt", rtt))
		return
	}
	log.Info("chunk store ready", zap.Duration("rtt", rtt))
}
