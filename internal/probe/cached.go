package probe

import (
	"context"
	"time"

	"video-converter/internal/cache"
	"video-converter/internal/filesystem"
)

// Entry is a cached probe result together with the file identity it was
// computed for.
type Entry struct {
	Result  Result
	Size    int64
	ModTime time.Time
}

// Cached wraps a Prober with an LRU keyed by path. An entry is reused only
// while the file's size and modification time are unchanged; failed probes
// are never stored so a later attempt can succeed.
type Cached struct {
	next    Prober
	entries *cache.LRU[string, Entry]
	retry   filesystem.RetryConfig
}

// NewCached creates a caching prober.
func NewCached(next Prober, entries *cache.LRU[string, Entry]) *Cached {
	return &Cached{
		next:    next,
		entries: entries,
		retry:   filesystem.DefaultRetryConfig(),
	}
}

// Probe returns the cached result for path or probes it.
func (c *Cached) Probe(ctx context.Context, path string) Result {
	info, err := filesystem.StatWithRetry(path, c.retry)
	if err != nil {
		return Failed(err)
	}

	if e, ok := c.entries.Get(path); ok {
		if e.Size == info.Size() && e.ModTime.Equal(info.ModTime()) {
			return e.Result
		}
		c.entries.Remove(path)
	}

	res := c.next.Probe(ctx, path)
	if res.OK() {
		c.entries.Put(path, Entry{Result: res, Size: info.Size(), ModTime: info.ModTime()})
	}
	return res
}

// Purge empties the cache.
func (c *Cached) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached entries.
func (c *Cached) Len() int {
	return c.entries.Len()
}
