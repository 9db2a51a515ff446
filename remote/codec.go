package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidemark/tidemark/series"
)

// chunkPayload is the wire form of a chunk: aligned key/value slices in
// key order.
type chunkPayload[K, V any] struct {
	Keys   []K `json:"keys"`
	Values []V `json:"values"`
}

// JSONChunks layers the typed ChunkStore surface over a BlobStore by
// encoding chunks as JSON. Key and value types must round-trip through
// encoding/json.
//
// LockChunk retries held locks with exponential back-off until the
// context expires or MaxLockWait elapses: remote writers hold chunk locks only for the
// duration of one save, so contention is short-lived.
type JSONChunks[K, V any] struct {
	Blobs    BlobStore
	Comparer series.Comparer[K]

	// MaxLockWait bounds the lock acquisition retry. Zero means 30s.
	MaxLockWait time.Duration
}

func (c JSONChunks[K, V]) LoadKeys(ctx context.Context, id MapID, sinceVersion uint64) (uint64, map[int64]uint64, error) {
	return c.Blobs.Keys(ctx, id, sinceVersion)
}

func (c JSONChunks[K, V]) LoadChunk(ctx context.Context, id MapID, chunkKey int64) (*series.SortedMap[K, V], error) {
	raw, err := c.Blobs.Get(ctx, id, chunkKey)
	if err != nil {
		return nil, err
	}
	var payload chunkPayload[K, V]
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal chunk %d: %w", chunkKey, err)
	}
	if len(payload.Keys) != len(payload.Values) {
		return nil, fmt.Errorf("chunk %d: %d keys vs %d values", chunkKey, len(payload.Keys), len(payload.Values))
	}
	chunk := series.NewSortedMap[K, V](c.Comparer)
	for i := range payload.Keys {
		if _, err := chunk.Set(payload.Keys[i], payload.Values[i]); err != nil {
			return nil, fmt.Errorf("rebuild chunk %d: %w", chunkKey, err)
		}
	}
	return chunk, nil
}

func (c JSONChunks[K, V]) SaveChunk(ctx context.Context, id MapID, chunkKey int64, chunk *series.SortedMap[K, V]) (uint64, error) {
	payload := chunkPayload[K, V]{Keys: chunk.Keys(), Values: chunk.Values()}
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal chunk %d: %w", chunkKey, err)
	}
	return c.Blobs.Put(ctx, id, chunkKey, raw)
}

func (c JSONChunks[K, V]) RemoveChunks(ctx context.Context, id MapID, chunkKey int64, dir series.Lookup) (uint64, error) {
	return c.Blobs.Del(ctx, id, chunkKey, dir)
}

func (c JSONChunks[K, V]) LockChunk(ctx context.Context, id MapID, chunkKey int64) (Unlocker, error) {
	maxWait := c.MaxLockWait
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}

	var token string
	attempt := func() error {
		t, err := c.Blobs.Lock(ctx, id, chunkKey)
		if err != nil {
			return err
		}
		token = t
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxElapsedTime = maxWait
	policy := backoff.WithContext(bo, ctx)
	retryable := func() error {
		err := attempt()
		if err != nil && err != ErrLockHeld {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(retryable, policy); err != nil {
		return nil, fmt.Errorf("lock chunk %d: %w", chunkKey, err)
	}
	return &blobUnlock[K, V]{store: c, id: id, chunkKey: chunkKey, token: token}, nil
}

type blobUnlock[K, V any] struct {
	store    JSONChunks[K, V]
	id       MapID
	chunkKey int64
	token    string
	done     bool
}

func (u *blobUnlock[K, V]) Unlock(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	return u.store.Blobs.Unlock(ctx, u.id, u.chunkKey, u.token)
}

var _ ChunkStore[int64, string] = JSONChunks[int64, string]{}
