// Package remote presents a series whose values are themselves sorted
// maps (chunks), backed by pluggable storage hooks. The outer series
// keys chunks by the 64-bit affine offset of each chunk's first key.
package remote

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tidemark/tidemark/series"
)

// MapID identifies one remotely chunked map: a 128-bit opaque id.
type MapID = uuid.UUID

var (
	// ErrChunkNotFound means the requested chunk key has no payload.
	ErrChunkNotFound = errors.New("remote: chunk not found")

	// ErrLockHeld means the chunk lock is currently owned elsewhere.
	ErrLockHeld = errors.New("remote: chunk lock held")

	// ErrLockLost means an unlock found the lock no longer owned by the
	// presented token.
	ErrLockLost = errors.New("remote: chunk lock lost")
)

// BlobStore is the transport-level storage contract: chunk payloads are
// opaque bytes, the index maps chunk keys to chunk versions. Every
// implementation (redis, HTTP) speaks this surface; the typed view for
// the facade is layered on top by JSONChunks.
type BlobStore interface {
	// Keys loads the chunk index. When the map is unchanged since
	// sinceVersion the chunk map is nil; version is always current.
	Keys(ctx context.Context, id MapID, sinceVersion uint64) (version uint64, chunks map[int64]uint64, err error)

	// Get returns the payload for chunkKey or ErrChunkNotFound.
	Get(ctx context.Context, id MapID, chunkKey int64) ([]byte, error)

	// Put stores the payload and returns the new map version.
	Put(ctx context.Context, id MapID, chunkKey int64, payload []byte) (uint64, error)

	// Del removes the half-range of chunks selected by dir around
	// chunkKey and returns the new map version.
	Del(ctx context.Context, id MapID, chunkKey int64, dir series.Lookup) (uint64, error)

	// Lock acquires the chunk's exclusive lock, returning an ownership
	// token, or ErrLockHeld.
	Lock(ctx context.Context, id MapID, chunkKey int64) (token string, err error)

	// Unlock releases a lock acquired with token.
	Unlock(ctx context.Context, id MapID, chunkKey int64, token string) error
}

// ChunkStore is the typed storage surface the facade consumes: the five
// remote hooks of a chunked series.
type ChunkStore[K, V any] interface {
	// LoadKeys synchronizes the chunk index.
	LoadKeys(ctx context.Context, id MapID, sinceVersion uint64) (uint64, map[int64]uint64, error)

	// LoadChunk materializes one chunk.
	LoadChunk(ctx context.Context, id MapID, chunkKey int64) (*series.SortedMap[K, V], error)

	// SaveChunk persists one chunk and returns the new map version.
	SaveChunk(ctx context.Context, id MapID, chunkKey int64, chunk *series.SortedMap[K, V]) (uint64, error)

	// RemoveChunks bulk-removes chunks by direction and returns the new
	// map version.
	RemoveChunks(ctx context.Context, id MapID, chunkKey int64, dir series.Lookup) (uint64, error)

	// LockChunk acquires the chunk's exclusive lock. The returned
	// handle must be released on every exit path.
	LockChunk(ctx context.Context, id MapID, chunkKey int64) (Unlocker, error)
}

// Unlocker releases a held chunk lock. Callers defer Unlock immediately
// after a successful LockChunk so the lock is released on success and
// failure alike.
type Unlocker interface {
	Unlock(ctx context.Context) error
}
