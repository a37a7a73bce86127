// Package species caches descriptive species metadata so detections keep their
// species information even when the inference service omits it.
package species

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/wildwatch-go/internal/detection"
	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/logger"
)

// DefaultTTL is how long learned species info is kept.
const DefaultTTL = 24 * time.Hour

// GetLogger returns the species module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("species")
}

// Cache maps species labels to SpeciesInfo. Catalog entries never expire;
// entries learned from inference responses expire after the TTL.
type Cache struct {
	cache *cache.Cache
}

// NewCache creates an empty cache.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{cache: cache.New(ttl, ttl*2)}
}

func key(species string) string {
	return strings.ToLower(strings.TrimSpace(species))
}

// Get returns a copy of the cached info for a species label.
func (c *Cache) Get(species string) (detection.SpeciesInfo, bool) {
	v, found := c.cache.Get(key(species))
	if !found {
		return detection.SpeciesInfo{}, false
	}
	info, ok := v.(detection.SpeciesInfo)
	return info, ok
}

// Remember stores info learned from an inference response.
func (c *Cache) Remember(species string, info detection.SpeciesInfo) {
	if key(species) == "" || info.IsZero() {
		return
	}
	c.cache.Set(key(species), info, cache.DefaultExpiration)
}

// Enrich fills missing species info on candidates from the cache and remembers
// info the service did supply. The input slice is not modified.
func (c *Cache) Enrich(candidates []detection.Candidate) []detection.Candidate {
	out := make([]detection.Candidate, len(candidates))
	for i, cand := range candidates {
		if cand.Info != nil && !cand.Info.IsZero() {
			c.Remember(cand.Species, *cand.Info)
		} else if info, ok := c.Get(cand.Species); ok {
			cand.Info = &info
		}
		out[i] = cand
	}
	return out
}

// ItemCount returns the number of cached species.
func (c *Cache) ItemCount() int {
	return c.cache.ItemCount()
}

// catalogFile is the on-disk YAML layout: species label -> info.
type catalogFile struct {
	Species map[string]detection.SpeciesInfo `yaml:"species"`
}

// LoadCatalog seeds the cache from a YAML catalog file. Catalog entries do not expire.
func (c *Cache) LoadCatalog(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.New(fmt.Errorf("read species catalog: %w", err)).
			Component("species").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	var catalog catalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return 0, errors.New(fmt.Errorf("parse species catalog: %w", err)).
			Component("species").
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}

	for label, info := range catalog.Species {
		if key(label) == "" || info.IsZero() {
			continue
		}
		c.cache.Set(key(label), info, cache.NoExpiration)
	}

	GetLogger().Info("species catalog loaded",
		logger.String("path", path),
		logger.Int("entries", len(catalog.Species)))
	return len(catalog.Species), nil
}
