package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tidemark/tidemark/remote"
	"github.com/tidemark/tidemark/series"
	"go.uber.org/zap"
)

// ChunkRepository handles Redis operations for chunked maps. It
// implements remote.BlobStore.
//
// Key layout per map id:
//
//	tidemark:map:<id>:version   counter, bumped on every write
//	tidemark:map:<id>:index     HASH chunk_key → chunk_version
//	tidemark:map:<id>:chunk:<k> chunk payload
//	tidemark:map:<id>:lock:<k>  lock token, SET NX PX
//
// Lock tokens expire after LockTTL so a crashed owner cannot wedge the
// chunk forever. Unlock verifies token ownership; the design assumes
// the single-logical-writer discipline of the facade, so a token
// mismatch indicates an expired lease, not a protocol race.
type ChunkRepository struct {
	client *Client
	log    *zap.Logger

	// LockTTL bounds how long a crashed lock owner blocks a chunk.
	LockTTL time.Duration
}

// NewChunkRepository creates a chunk repository on the given client.
func NewChunkRepository(log *zap.Logger, client *Client) *ChunkRepository {
	return &ChunkRepository{
		client:  client,
		log:     log.Named("chunk_repo"),
		LockTTL: 30 * time.Second,
	}
}

func keyPrefix(id remote.MapID) string { return "tidemark:map:" + id.String() + ":" }
func versionKey(id remote.MapID) string { return keyPrefix(id) + "version" }
func indexKey(id remote.MapID) string { return keyPrefix(id) + "index" }
func chunkField(chunkKey int64) string { return strconv.FormatInt(chunkKey, 10) }
func chunkKeyOf(id remote.MapID, chunkKey int64) string {
	return keyPrefix(id) + "chunk:" + chunkField(chunkKey)
}
func lockKeyOf(id remote.MapID, chunkKey int64) string {
	return keyPrefix(id) + "lock:" + chunkField(chunkKey)
}

// Keys loads the chunk index, or reports it unchanged since the given
// version.
func (r *ChunkRepository) Keys(ctx context.Context, id remote.MapID, sinceVersion uint64) (uint64, map[int64]uint64, error) {
	version, err := r.currentVersion(ctx, id)
	if err != nil {
		return 0, nil, err
	}
	if version == sinceVersion {
		return version, nil, nil
	}

	raw, err := r.client.HGetAll(ctx, indexKey(id)).Result()
	if err != nil {
		return 0, nil, fmt.Errorf("hgetall: %w", err)
	}
	chunks := make(map[int64]uint64, len(raw))
	for field, val := range raw {
		ck, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			// Non-conforming field under our hash: key collision.
			r.log.Warn("index field collision; skipping", zap.String("field", field))
			continue
		}
		cv, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			r.log.Warn("index version collision; skipping", zap.String("field", field))
			continue
		}
		chunks[ck] = cv
	}
	return version, chunks, nil
}

// Get retrieves a chunk payload (remote.ErrChunkNotFound when absent).
func (r *ChunkRepository) Get(ctx context.Context, id remote.MapID, chunkKey int64) ([]byte, error) {
	payload, err := r.client.Get(ctx, chunkKeyOf(id, chunkKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, remote.ErrChunkNotFound
		}
		return nil, fmt.Errorf("get: %w", err)
	}
	return payload, nil
}

// Put stores a chunk payload and advances the map version. The payload
// write and index update ride one transactional pipeline.
func (r *ChunkRepository) Put(ctx context.Context, id remote.MapID, chunkKey int64, payload []byte) (uint64, error) {
	version, err := r.client.Incr(ctx, versionKey(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr version: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, chunkKeyOf(id, chunkKey), payload, 0)
	pipe.HSet(ctx, indexKey(id), chunkField(chunkKey), strconv.FormatUint(uint64(version), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("set+hset: %w", err)
	}
	return uint64(version), nil
}

// Del removes the half-range of chunks selected by dir and advances the
// map version when anything was removed.
func (r *ChunkRepository) Del(ctx context.Context, id remote.MapID, chunkKey int64, dir series.Lookup) (uint64, error) {
	fields, err := r.client.HKeys(ctx, indexKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("hkeys: %w", err)
	}

	var doomed []int64
	for _, field := range fields {
		ck, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		if matchesDir(ck, chunkKey, dir) {
			doomed = append(doomed, ck)
		}
	}
	if len(doomed) == 0 {
		return r.currentVersion(ctx, id)
	}

	version, err := r.client.Incr(ctx, versionKey(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr version: %w", err)
	}

	pipe := r.client.TxPipeline()
	for _, ck := range doomed {
		pipe.Del(ctx, chunkKeyOf(id, ck))
		pipe.HDel(ctx, indexKey(id), chunkField(ck))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("del+hdel: %w", err)
	}
	return uint64(version), nil
}

// Lock acquires the chunk lock with a fresh token, or reports it held.
func (r *ChunkRepository) Lock(ctx context.Context, id remote.MapID, chunkKey int64) (string, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKeyOf(id, chunkKey), token, r.LockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return "", remote.ErrLockHeld
	}
	return token, nil
}

// Unlock releases the lock when still owned by token.
func (r *ChunkRepository) Unlock(ctx context.Context, id remote.MapID, chunkKey int64, token string) error {
	key := lockKeyOf(id, chunkKey)
	current, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return remote.ErrLockLost
		}
		return fmt.Errorf("get lock: %w", err)
	}
	if current != token {
		return remote.ErrLockLost
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del lock: %w", err)
	}
	return nil
}

func (r *ChunkRepository) currentVersion(ctx context.Context, id remote.MapID) (uint64, error) {
	val, err := r.client.Get(ctx, versionKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get version: %w", err)
	}
	version, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version: %w", err)
	}
	return version, nil
}

func matchesDir(ck, pivot int64, dir series.Lookup) bool {
	switch dir {
	case series.EQ:
		return ck == pivot
	case series.LT:
		return ck < pivot
	case series.LE:
		return ck <= pivot
	case series.GT:
		return ck > pivot
	case series.GE:
		return ck >= pivot
	default:
		return false
	}
}

var _ remote.BlobStore = (*ChunkRepository)(nil)
