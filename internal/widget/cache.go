package widget

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BlobWidget is a widget carrying a binary payload written as base64.
type BlobWidget interface {
	Widget
	RawBlob() []byte
}

// EncodeCache holds base64 encodings of widget payloads computed ahead of a save.
// A nil cache encodes on demand.
type EncodeCache struct {
	mu      sync.RWMutex
	encoded map[BlobWidget]string
}

// NewEncodeCache creates an empty cache.
func NewEncodeCache() *EncodeCache {
	return &EncodeCache{encoded: make(map[BlobWidget]string)}
}

// Generate encodes the payload of every blob widget in parallel.
func (c *EncodeCache) Generate(ctx context.Context, widgets []Widget) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, w := range widgets {
		bw, ok := w.(BlobWidget)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s := encodeBlob(bw.RawBlob())
			c.mu.Lock()
			c.encoded[bw] = s
			c.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// Len returns the number of cached encodings.
func (c *EncodeCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.encoded)
}

// Encoded returns the base64 text for w, from the cache when present.
func (c *EncodeCache) Encoded(w BlobWidget) string {
	if c != nil {
		c.mu.RLock()
		s, ok := c.encoded[w]
		c.mu.RUnlock()
		if ok {
			return s
		}
	}
	return encodeBlob(w.RawBlob())
}
