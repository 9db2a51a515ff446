// Package chunks exposes a remote.BlobStore over HTTP: the chunk index,
// chunk payloads and chunk locks of every map id. The routes mirror the
// BlobStore methods one-to-one so httpstore.Client can implement the
// BlobStore contract against them.
package chunks

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidemark/tidemark/remote"
	"github.com/tidemark/tidemark/series"
	"go.uber.org/zap"
)

// Handler serves the chunk API for one BlobStore.
type Handler struct {
	store remote.BlobStore
	log   *zap.Logger

	// MaxChunkBytes caps PUT payloads.
	MaxChunkBytes int64
}

// NewHandler wires the handler to a store.
func NewHandler(log *zap.Logger, store remote.BlobStore) *Handler {
	return &Handler{
		store:         store,
		log:           log.Named("chunks_handler"),
		MaxChunkBytes: 8 << 20,
	}
}

// Register mounts the chunk API under /api/maps.
func (h *Handler) Register(r gin.IRouter) {
	maps := r.Group("/api/maps/:id")
	maps.GET("/keys", h.GetKeys)
	maps.GET("/chunks/:key", h.GetChunk)
	maps.PUT("/chunks/:key", h.PutChunk)
	maps.DELETE("/chunks/:key", h.DelChunks)
	maps.POST("/chunks/:key/lock", h.LockChunk)
	maps.DELETE("/chunks/:key/lock", h.UnlockChunk)
}

// params pulls and validates the map id and chunk key path segments.
func params(c *gin.Context, wantKey bool) (remote.MapID, int64, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid map id"})
		return remote.MapID{}, 0, false
	}
	if !wantKey {
		return id, 0, true
	}
	key, err := strconv.ParseInt(c.Param("key"), 10, 64)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid chunk key"})
		return remote.MapID{}, 0, false
	}
	return id, key, true
}

// KeysResponse is the index sync payload.
type KeysResponse struct {
	Version uint64            `json:"version"`
	Chunks  map[string]uint64 `json:"chunks,omitempty"`
}

// GetKeys serves the chunk index, honoring the since-version fast path.
func (h *Handler) GetKeys(c *gin.Context) {
	id, _, ok := params(c, false)
	if !ok {
		return
	}
	var since uint64
	if raw := c.Query("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.Error(err)
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid since version"})
			return
		}
		since = v
	}

	version, chunks, err := h.store.Keys(c.Request.Context(), id, since)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	resp := KeysResponse{Version: version}
	if chunks != nil {
		resp.Chunks = make(map[string]uint64, len(chunks))
		for ck, cv := range chunks {
			resp.Chunks[strconv.FormatInt(ck, 10)] = cv
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetChunk serves one chunk payload verbatim.
func (h *Handler) GetChunk(c *gin.Context) {
	id, key, ok := params(c, true)
	if !ok {
		return
	}

	payload, err := h.store.Get(c.Request.Context(), id, key)
	if err != nil {
		c.Error(err)
		if err == remote.ErrChunkNotFound {
			c.JSON(http.StatusNotFound, gin.H{"message": remote.ErrChunkNotFound.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", payload)
}

// VersionResponse reports the map version after a write.
type VersionResponse struct {
	Version uint64 `json:"version"`
}

// PutChunk stores one chunk payload.
func (h *Handler) PutChunk(c *gin.Context) {
	id, key, ok := params(c, true)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxChunkBytes)
	payload, err := c.GetRawData()
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": err.Error()})
		return
	}

	version, err := h.store.Put(c.Request.Context(), id, key, payload)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, VersionResponse{Version: version})
}

// DelChunks removes the half-range of chunks selected by ?dir.
func (h *Handler) DelChunks(c *gin.Context) {
	id, key, ok := params(c, true)
	if !ok {
		return
	}
	dir, err := series.ParseLookup(c.DefaultQuery("dir", "EQ"))
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	version, err := h.store.Del(c.Request.Context(), id, key, dir)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, VersionResponse{Version: version})
}

// LockResponse carries the lock ownership token.
type LockResponse struct {
	Token string `json:"token"`
}

// LockChunk acquires the chunk lock.
func (h *Handler) LockChunk(c *gin.Context) {
	id, key, ok := params(c, true)
	if !ok {
		return
	}

	token, err := h.store.Lock(c.Request.Context(), id, key)
	if err != nil {
		c.Error(err)
		if err == remote.ErrLockHeld {
			c.JSON(http.StatusConflict, gin.H{"message": remote.ErrLockHeld.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, LockResponse{Token: token})
}

// UnlockChunk releases the chunk lock held by ?token.
func (h *Handler) UnlockChunk(c *gin.Context) {
	id, key, ok := params(c, true)
	if !ok {
		return
	}
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing lock token"})
		return
	}

	if err := h.store.Unlock(c.Request.Context(), id, key, token); err != nil {
		c.Error(err)
		if err == remote.ErrLockLost {
			c.JSON(http.StatusConflict, gin.H{"message": remote.ErrLockLost.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": true})
}
