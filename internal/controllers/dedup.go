package controllers

import (
	"context"
	"time"

	"github.com/amaumene/unmonitarr/internal/metrics"
	"github.com/amaumene/unmonitarr/internal/models"
	gocache "github.com/patrickmn/go-cache"
)

// DedupCache drops events that repeat while an identical one is in flight
type DedupCache struct {
	cache  *gocache.Cache
	settle time.Duration
}

// NewDedupCache creates a cache whose entries expire after maxAge.
// Expired entries are treated as absent and removed by Sweep.
func NewDedupCache(maxAge, settle time.Duration) *DedupCache {
	return &DedupCache{
		cache:  gocache.New(maxAge, 0),
		settle: settle,
	}
}

// DedupKey identifies an event by item, user and watched flag
func DedupKey(ev *models.WatchEvent) string {
	return ev.ItemID + "_" + ev.UserID + "_" + ev.WatchedLabel()
}

// Acquire claims key, returning false when it is already held
func (d *DedupCache) Acquire(key string) bool {
	if err := d.cache.Add(key, time.Now(), gocache.DefaultExpiration); err != nil {
		metrics.DedupDropped.Inc()
		return false
	}
	metrics.DedupEntries.Set(float64(d.cache.ItemCount()))
	return true
}

// Release frees key
func (d *DedupCache) Release(key string) {
	d.cache.Delete(key)
	metrics.DedupEntries.Set(float64(d.cache.ItemCount()))
}

// Sweep removes expired entries and returns how many were dropped
func (d *DedupCache) Sweep() int {
	before := d.cache.ItemCount()
	d.cache.DeleteExpired()
	after := d.cache.ItemCount()
	metrics.DedupEntries.Set(float64(after))
	return before - after
}

// Len returns the number of held entries, expired ones included until swept
func (d *DedupCache) Len() int {
	return d.cache.ItemCount()
}

// Settle waits for the settle delay so that bursts of webhook calls collapse
func (d *DedupCache) Settle(ctx context.Context) error {
	if d.settle <= 0 {
		return nil
	}

	timer := time.NewTimer(d.settle)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
