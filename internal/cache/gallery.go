package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/facemark-labs/facemark/internal/domain"
)

// GalleryCache caches section gallery snapshots so repeated verifications in
// the same session do not rebuild the gallery from storage every time. A
// gallery stays cached until its TTL passes or an enrollment write
// invalidates it.
type GalleryCache struct {
	cache *PGCache
	ttl   time.Duration
}

func NewGalleryCache(cache *PGCache, ttl time.Duration) *GalleryCache {
	return &GalleryCache{cache: cache, ttl: ttl}
}

func galleryKey(sectionID uuid.UUID) string {
	return fmt.Sprintf("gallery:%s", sectionID)
}

// Get returns the cached gallery for a section, or ok=false on any miss.
// Decode failures count as misses so a stale format never breaks verification.
func (g *GalleryCache) Get(ctx context.Context, sectionID uuid.UUID) ([]domain.GalleryEntry, bool) {
	raw, err := g.cache.Get(ctx, galleryKey(sectionID))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrCacheExpired) {
			return nil, false
		}
		return nil, false
	}

	var gallery []domain.GalleryEntry
	if err := json.Unmarshal(raw, &gallery); err != nil {
		_ = g.cache.Delete(ctx, galleryKey(sectionID))
		return nil, false
	}
	return gallery, true
}

func (g *GalleryCache) Set(ctx context.Context, sectionID uuid.UUID, gallery []domain.GalleryEntry) error {
	raw, err := json.Marshal(gallery)
	if err != nil {
		return fmt.Errorf("encode gallery: %w", err)
	}
	return g.cache.Set(ctx, galleryKey(sectionID), raw, g.ttl)
}

func (g *GalleryCache) Invalidate(ctx context.Context, sectionID uuid.UUID) error {
	return g.cache.Delete(ctx, galleryKey(sectionID))
}
