package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trackstyler/logger"
	"trackstyler/model"
)

// probeTTL 探测结果缓存过期时间
const probeTTL = 24 * time.Hour

// cachedProbe is the redis representation of a probe result. Cover bytes are
// carried inline; base64 via the default []byte JSON encoding.
type cachedProbe struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	Publisher string `json:"publisher"`
	CoverName string `json:"coverName,omitempty"`
	CoverMIME string `json:"coverMime,omitempty"`
	Cover     []byte `json:"cover,omitempty"`
}

// ProbeCache caches probe results in redis, keyed by a content digest so
// re-uploading the same file skips the engine round trips. All operations
// degrade to misses/no-ops when redis is unavailable.
type ProbeCache struct{}

// NewProbeCache returns a redis-backed probe cache using the global client.
func NewProbeCache() *ProbeCache {
	return &ProbeCache{}
}

func probeKey(digest string) string {
	return fmt.Sprintf("probe:%s", digest)
}

// Get returns the cached metadata for a content digest, if present.
func (p *ProbeCache) Get(ctx context.Context, digest string) (*model.TrackMetadata, bool) {
	if RedisClient == nil {
		return nil, false
	}

	raw, err := RedisClient.Get(ctx, probeKey(digest)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("probe cache get failed", logger.ErrorField(err))
		}
		return nil, false
	}

	var entry cachedProbe
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		logger.Debug("probe cache entry corrupt", logger.ErrorField(err))
		return nil, false
	}

	meta := &model.TrackMetadata{
		Title:     entry.Title,
		Artist:    entry.Artist,
		Album:     entry.Album,
		Publisher: entry.Publisher,
	}
	if len(entry.Cover) > 0 {
		meta.AlbumCover = &model.CoverImage{
			Name: entry.CoverName,
			MIME: entry.CoverMIME,
			Data: entry.Cover,
		}
	}
	return meta, true
}

// Set stores probe metadata under a content digest with a 24h TTL.
func (p *ProbeCache) Set(ctx context.Context, digest string, meta *model.TrackMetadata) {
	if RedisClient == nil || meta == nil {
		return
	}

	entry := cachedProbe{
		Title:     meta.Title,
		Artist:    meta.Artist,
		Album:     meta.Album,
		Publisher: meta.Publisher,
	}
	if meta.AlbumCover != nil {
		entry.CoverName = meta.AlbumCover.Name
		entry.CoverMIME = meta.AlbumCover.MIME
		entry.Cover = meta.AlbumCover.Data
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		logger.Debug("probe cache marshal failed", logger.ErrorField(err))
		return
	}

	if err := RedisClient.Set(ctx, probeKey(digest), raw, probeTTL).Err(); err != nil {
		logger.Debug("probe cache set failed", logger.ErrorField(err))
	}
}

// CountProbeEntries 统计当前缓存的探测结果数量
func CountProbeEntries(ctx context.Context) (int64, error) {
	if RedisClient == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}

	var count int64
	iter := RedisClient.Scan(ctx, 0, probeKey("*"), 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return count, nil
}
