package remote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/tidemark/tidemark/series"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Options tunes a RemoteChunksSeries.
type Options struct {
	// ChunkSpan is the element count at which writers stop growing the
	// tail chunk and open a new one.
	ChunkSpan int `default:"4096"`

	// SyncTimeout bounds the construction-time index sync.
	SyncTimeout time.Duration
}

func (o *Options) setDefaults() {
	defaults.SetDefaults(o)
	if o.SyncTimeout <= 0 {
		o.SyncTimeout = 5 * time.Second
	}
}

// RemoteChunksSeries is a facade presenting remotely stored chunks as a
// series: chunk key (the affine offset of the chunk's first element
// from the zero key) → chunk. Element-level reads and writes route
// through the containing chunk.
//
// Consistency Model:
//   - The remote store is the source of truth; RAM holds the chunk
//     index and a chunk cache.
//   - The index is an immutable snapshot swapped wholesale on refresh.
//     Cursors hold the snapshot they started on and keep observing it
//     until re-initialized.
//   - Reads consult the cache first and fall back to a locked remote
//     load; concurrent loads of one chunk are coalesced.
//
// Write Path:
//  1. Acquire the remote chunk lock.
//  2. Load the current chunk (or start an empty one), mutate, save.
//  3. Publish the new map version, update cache and index snapshot,
//     and notify subscribers.
//  4. Release the lock (deferred; held on error paths too).
//
// Ownership:
//   - Single logical writer per map id, as with the key-prefix
//     ownership of a process-local store. Multiple readers are fine.
type RemoteChunksSeries[K, V any] struct {
	log      *zap.Logger
	id       MapID
	store    ChunkStore[K, V]
	comparer series.AffineComparer[K]
	zero     K
	opts     Options

	sf singleflight.Group

	mu    sync.Mutex // serializes local writers; guards cache
	cache map[int64]cachedChunk[K, V]

	index      atomic.Pointer[series.SortedMap[int64, uint64]]
	mapVersion atomic.Uint64
	completer  series.Completer
}

type cachedChunk[K, V any] struct {
	chunk   *series.SortedMap[K, V]
	version uint64
}

// New constructs the facade and synchronizes the chunk index from the
// remote before returning.
func New[K, V any](
	ctx context.Context,
	log *zap.Logger,
	store ChunkStore[K, V],
	id MapID,
	comparer series.AffineComparer[K],
	opts Options,
) (*RemoteChunksSeries[K, V], error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts.setDefaults()

	r := &RemoteChunksSeries[K, V]{
		log:      log.Named("remote_series"),
		id:       id,
		store:    store,
		comparer: comparer,
		opts:     opts,
		cache:    make(map[int64]cachedChunk[K, V]),
	}
	r.index.Store(series.NewSortedMap[int64, uint64](series.Int64Comparer{}))

	ctx, cancel := context.WithTimeout(ctx, opts.SyncTimeout)
	defer cancel()
	if err := r.Sync(ctx); err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	return r, nil
}

// Sync refreshes the chunk index from the remote. A refresh installs a
// new logical snapshot; cursors opened earlier keep the old one. Cached
// chunks whose version moved are dropped.
func (r *RemoteChunksSeries[K, V]) Sync(ctx context.Context) error {
	start := time.Now()
	since := r.mapVersion.Load()

	version, chunks, err := r.store.LoadKeys(ctx, r.id, since)
	if err != nil {
		return fmt.Errorf("load keys: %w", err)
	}
	if chunks == nil && version == since {
		return nil // unchanged
	}

	next := series.NewSortedMap[int64, uint64](series.Int64Comparer{})
	for ck, cv := range chunks {
		if _, err := next.Set(ck, cv); err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
	}

	r.mu.Lock()
	for ck, cached := range r.cache {
		cv, ok := chunks[ck]
		if !ok || cv != cached.version {
			delete(r.cache, ck)
		}
	}
	r.index.Store(next)
	r.mapVersion.Store(version)
	r.mu.Unlock()

	r.completer.Notify(false)
	r.log.Info("index sync: complete",
		zap.Stringer("map_id", r.id),
		zap.Int("chunks", next.Len()),
		zap.Uint64("version", version),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// ---- Series surface (chunk granularity) ------------------------------------

func (r *RemoteChunksSeries[K, V]) Comparer() series.Comparer[int64] {
	return series.Int64Comparer{}
}

func (r *RemoteChunksSeries[K, V]) IsIndexed() bool   { return false }
func (r *RemoteChunksSeries[K, V]) IsCompleted() bool { return false }
func (r *RemoteChunksSeries[K, V]) Version() uint64   { return r.mapVersion.Load() }

func (r *RemoteChunksSeries[K, V]) Completer() *series.Completer { return &r.completer }

// Cursor iterates chunks in key order over the current index snapshot,
// loading chunk bodies lazily through the cache. Load failures are
// logged and surface as absent values; callers needing errors use
// GetChunk.
func (r *RemoteChunksSeries[K, V]) Cursor() series.Cursor[int64, *series.SortedMap[K, V]] {
	return r.chunkView().Cursor()
}

func (r *RemoteChunksSeries[K, V]) chunkView() series.Series[int64, *series.SortedMap[K, V]] {
	snapshot := r.index.Load()
	return series.Map(series.Series[int64, uint64](snapshot), func(ck int64, _ uint64) *series.SortedMap[K, V] {
		chunk, err := r.GetChunk(context.Background(), ck)
		if err != nil {
			r.log.Warn("cursor chunk load failed", zap.Int64("chunk_key", ck), zap.Error(err))
			return nil
		}
		return chunk
	})
}

func (r *RemoteChunksSeries[K, V]) First() (series.Pair[int64, *series.SortedMap[K, V]], bool) {
	return r.chunkView().First()
}

func (r *RemoteChunksSeries[K, V]) Last() (series.Pair[int64, *series.SortedMap[K, V]], bool) {
	return r.chunkView().Last()
}

func (r *RemoteChunksSeries[K, V]) TryGetValue(chunkKey int64) (*series.SortedMap[K, V], bool) {
	if !r.index.Load().ContainsKey(chunkKey) {
		return nil, false
	}
	chunk, err := r.GetChunk(context.Background(), chunkKey)
	if err != nil {
		r.log.Warn("chunk load failed", zap.Int64("chunk_key", chunkKey), zap.Error(err))
		return nil, false
	}
	return chunk, true
}

// GetChunk returns the chunk at chunkKey, serving from cache when the
// cached version is current. A miss takes the remote lock, loads and
// caches; concurrent loads of one chunk are coalesced.
func (r *RemoteChunksSeries[K, V]) GetChunk(ctx context.Context, chunkKey int64) (*series.SortedMap[K, V], error) {
	version, ok := r.index.Load().TryGetValue(chunkKey)
	if !ok {
		return nil, ErrChunkNotFound
	}

	r.mu.Lock()
	if cached, hit := r.cache[chunkKey]; hit && cached.version == version {
		r.mu.Unlock()
		return cached.chunk, nil
	}
	r.mu.Unlock()

	v, err, _ := r.sf.Do(strconv.FormatInt(chunkKey, 10), func() (any, error) {
		lock, err := r.store.LockChunk(ctx, r.id, chunkKey)
		if err != nil {
			return nil, fmt.Errorf("lock: %w", err)
		}
		defer func() {
			if uerr := lock.Unlock(ctx); uerr != nil {
				r.log.Warn("unlock failed", zap.Int64("chunk_key", chunkKey), zap.Error(uerr))
			}
		}()

		chunk, err := r.store.LoadChunk(ctx, r.id, chunkKey)
		if err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}

		r.mu.Lock()
		r.cache[chunkKey] = cachedChunk[K, V]{chunk: chunk, version: version}
		r.mu.Unlock()
		return chunk, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*series.SortedMap[K, V]), nil
}

// SetChunk persists chunk at chunkKey under the remote lock and
// publishes the new version locally.
func (r *RemoteChunksSeries[K, V]) SetChunk(ctx context.Context, chunkKey int64, chunk *series.SortedMap[K, V]) error {
	lock, err := r.store.LockChunk(ctx, r.id, chunkKey)
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer func() {
		if uerr := lock.Unlock(ctx); uerr != nil {
			r.log.Warn("unlock failed", zap.Int64("chunk_key", chunkKey), zap.Error(uerr))
		}
	}()

	version, err := r.store.SaveChunk(ctx, r.id, chunkKey, chunk)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	r.publish(chunkKey, chunk, version)
	return nil
}

// AddChunk persists a chunk that must not exist yet. Either the chunk
// is saved through the remote hooks or the call fails; there is no
// silent no-op path.
func (r *RemoteChunksSeries[K, V]) AddChunk(ctx context.Context, chunkKey int64, chunk *series.SortedMap[K, V]) error {
	if r.index.Load().ContainsKey(chunkKey) {
		return series.ErrDuplicateKey
	}
	return r.SetChunk(ctx, chunkKey, chunk)
}

// RemoveChunks bulk-removes the half-range of chunks selected by dir
// and installs the trimmed index snapshot.
func (r *RemoteChunksSeries[K, V]) RemoveChunks(ctx context.Context, chunkKey int64, dir series.Lookup) error {
	version, err := r.store.RemoveChunks(ctx, r.id, chunkKey, dir)
	if err != nil {
		return fmt.Errorf("remove chunks: %w", err)
	}

	next := r.cloneIndex()
	removed, err := next.TryRemoveMany(chunkKey, dir)
	if err != nil {
		return err
	}

	r.mu.Lock()
	for ck := range r.cache {
		if !next.ContainsKey(ck) {
			delete(r.cache, ck)
		}
	}
	r.index.Store(next)
	r.mapVersion.Store(version)
	r.mu.Unlock()

	if removed > 0 {
		r.completer.Notify(false)
	}
	return nil
}

// publish installs a freshly saved chunk into cache and index.
func (r *RemoteChunksSeries[K, V]) publish(chunkKey int64, chunk *series.SortedMap[K, V], version uint64) {
	next := r.cloneIndex()
	if _, err := next.Set(chunkKey, version); err != nil {
		// The clone is private and never completed.
		panic(err)
	}

	r.mu.Lock()
	r.cache[chunkKey] = cachedChunk[K, V]{chunk: chunk, version: version}
	r.index.Store(next)
	r.mapVersion.Store(version)
	r.mu.Unlock()

	r.completer.Notify(false)
}

func (r *RemoteChunksSeries[K, V]) cloneIndex() *series.SortedMap[int64, uint64] {
	cur := r.index.Load()
	next := series.NewSortedMap[int64, uint64](series.Int64Comparer{})
	keys, values := cur.Keys(), cur.Values()
	for i := range keys {
		if _, err := next.Set(keys[i], values[i]); err != nil {
			panic(err)
		}
	}
	return next
}

// ---- element-level routing -------------------------------------------------

// ChunkKeyFor returns the chunk key an element key maps to when opening
// a fresh chunk: its affine offset from the zero key.
func (r *RemoteChunksSeries[K, V]) ChunkKeyFor(key K) int64 {
	return r.comparer.Diff(key, r.zero)
}

// locate resolves the chunk that covers key on the current snapshot.
func (r *RemoteChunksSeries[K, V]) locate(key K) (int64, bool) {
	cur := r.index.Load().Cursor()
	if !cur.MoveAt(r.ChunkKeyFor(key), series.LE) {
		return 0, false
	}
	return cur.CurrentKey(), true
}

// GetValue performs an element-level point lookup through the
// containing chunk.
func (r *RemoteChunksSeries[K, V]) GetValue(ctx context.Context, key K) (V, bool, error) {
	var zero V
	ck, ok := r.locate(key)
	if !ok {
		return zero, false, nil
	}
	chunk, err := r.GetChunk(ctx, ck)
	if err != nil {
		return zero, false, err
	}
	v, ok := chunk.TryGetValue(key)
	return v, ok, nil
}

// SetValue upserts one element, persisting its containing chunk under
// the remote lock. A key beyond all chunks opens a new chunk once the
// tail chunk reaches ChunkSpan elements; the size is only checked when
// the tail chunk is in the local cache.
func (r *RemoteChunksSeries[K, V]) SetValue(ctx context.Context, key K, value V) error {
	ck := r.targetChunk(key)

	lock, err := r.store.LockChunk(ctx, r.id, ck)
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer func() {
		if uerr := lock.Unlock(ctx); uerr != nil {
			r.log.Warn("unlock failed", zap.Int64("chunk_key", ck), zap.Error(uerr))
		}
	}()

	chunk, err := r.store.LoadChunk(ctx, r.id, ck)
	if errors.Is(err, ErrChunkNotFound) {
		chunk = series.NewSortedMap[K, V](r.comparer)
	} else if err != nil {
		return fmt.Errorf("load: %w", err)
	}

	if _, err := chunk.Set(key, value); err != nil {
		return err
	}
	version, err := r.store.SaveChunk(ctx, r.id, ck, chunk)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	r.publish(ck, chunk, version)
	return nil
}

// RemoveValue deletes one element. An emptied chunk is removed from the
// remote entirely.
func (r *RemoteChunksSeries[K, V]) RemoveValue(ctx context.Context, key K) (bool, error) {
	ck, ok := r.locate(key)
	if !ok {
		return false, nil
	}

	lock, err := r.store.LockChunk(ctx, r.id, ck)
	if err != nil {
		return false, fmt.Errorf("lock: %w", err)
	}
	defer func() {
		if uerr := lock.Unlock(ctx); uerr != nil {
			r.log.Warn("unlock failed", zap.Int64("chunk_key", ck), zap.Error(uerr))
		}
	}()

	chunk, err := r.store.LoadChunk(ctx, r.id, ck)
	if err != nil {
		return false, fmt.Errorf("load: %w", err)
	}
	_, removed, err := chunk.TryRemove(key)
	if err != nil || !removed {
		return false, err
	}

	if chunk.Len() == 0 {
		if err := r.RemoveChunks(ctx, ck, series.EQ); err != nil {
			return false, err
		}
		return true, nil
	}

	version, err := r.store.SaveChunk(ctx, r.id, ck, chunk)
	if err != nil {
		return false, fmt.Errorf("save: %w", err)
	}
	r.publish(ck, chunk, version)
	return true, nil
}

// targetChunk picks the chunk a new element lands in: the covering
// chunk when one exists and still has room (or the key falls inside
// it), otherwise a fresh chunk keyed by the element itself. A covering
// chunk that is not in the local cache is chosen without a size check.
func (r *RemoteChunksSeries[K, V]) targetChunk(key K) int64 {
	ck, ok := r.locate(key)
	if !ok {
		return r.ChunkKeyFor(key)
	}
	r.mu.Lock()
	cached, hit := r.cache[ck]
	r.mu.Unlock()
	if !hit {
		return ck
	}
	last, has := cached.chunk.Last()
	if has && cached.chunk.Len() >= r.opts.ChunkSpan && r.comparer.Compare(key, last.Key) > 0 {
		return r.ChunkKeyFor(key)
	}
	return ck
}

var _ series.Series[int64, *series.SortedMap[int64, string]] = (*RemoteChunksSeries[int64, string])(nil)
