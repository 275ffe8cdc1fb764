// Package imagecache implements the content-addressed image cache of
// spec.md §4.5: PngCache maps a 64-bit hash of a source pixel region to
// its encoded bytes, self-balancing by hit count once a soft byte budget
// is exceeded.
package imagecache

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

// DefaultSoftBudget is the "≈128 KB" soft budget named in §4.5.
const DefaultSoftBudget = 128 * 1024

// Encoder produces the encoded bytes for a pixel region. RenderDispatcher
// supplies the real PNG encoder; tests supply a deterministic fake.
type Encoder func(pixels []byte, width, height int, mode int) ([]byte, error)

type entry struct {
	bytes    []byte
	hitCount int
}

// PngCache is a per-document, dispatcher-thread-only cache (§5 "Shared
// resources": no synchronization is required across goroutines because
// only the dispatcher ever calls it, but the mutex is kept so the type is
// safe to share if that assumption is ever relaxed).
type PngCache struct {
	mu         sync.Mutex
	entries    map[uint64]*entry
	totalBytes int
	softBudget int
	encode     Encoder
}

// New creates a cache with the given encoder and soft byte budget. A
// budget of 0 uses DefaultSoftBudget.
func New(encode Encoder, softBudget int) *PngCache {
	if softBudget <= 0 {
		softBudget = DefaultSoftBudget
	}
	return &PngCache{entries: make(map[uint64]*entry), softBudget: softBudget, encode: encode}
}

// Encode returns encoded bytes for a full pixmap, from cache on a content
// hash hit or freshly produced on miss (§4.5 step 1-3, §8 property 8).
func (c *PngCache) Encode(pixels []byte, width, height, mode int) ([]byte, error) {
	return c.encodeRegion(hashRegion(pixels, width, height, 0, 0, width, height, mode), pixels, width, height, mode)
}

// EncodeSub is Encode for a sub-rectangle of a larger buffer of dimensions
// (bufferW, bufferH).
func (c *PngCache) EncodeSub(pixels []byte, srcX, srcY, width, height, bufferW, bufferH, mode int) ([]byte, error) {
	sub := extractSubRegion(pixels, srcX, srcY, width, height, bufferW, mode)
	hash := hashRegion(sub, width, height, srcX, srcY, bufferW, mode)
	return c.encodeRegion(hash, sub, width, height, mode)
}

func (c *PngCache) encodeRegion(hash uint64, pixels []byte, width, height, mode int) ([]byte, error) {
	c.mu.Lock()
	if e, ok := c.entries[hash]; ok {
		e.hitCount++
		bytesOut := e.bytes
		c.mu.Unlock()
		return bytesOut, nil
	}
	c.mu.Unlock()

	encoded, err := c.encode(pixels, width, height, mode)
	if err != nil {
		// §4.5 invariant: an encoding failure bypasses the cache and
		// returns an error, never a stale hit.
		return nil, fmt.Errorf("imagecache: encode failed: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another caller may have raced us to the same hash; prefer whichever
	// landed first so repeated calls stay byte-identical.
	if e, ok := c.entries[hash]; ok {
		e.hitCount++
		return e.bytes, nil
	}
	c.entries[hash] = &entry{bytes: encoded}
	c.totalBytes += len(encoded)
	if c.totalBytes > c.softBudget {
		c.rebalanceLocked()
	}
	return encoded, nil
}

// rebalanceLocked implements §4.5 step 4: evict every entry at or below
// the mean hit count, then halve survivors' hit counts. Must be called
// with the lock held.
func (c *PngCache) rebalanceLocked() {
	if len(c.entries) == 0 {
		return
	}
	total := 0
	for _, e := range c.entries {
		total += e.hitCount
	}
	mean := total / len(c.entries)

	before := c.totalBytes
	for hash, e := range c.entries {
		if e.hitCount <= mean {
			c.totalBytes -= len(e.bytes)
			delete(c.entries, hash)
			continue
		}
		e.hitCount /= 2
	}
	log.Trace().
		Str("before", humanize.Bytes(uint64(before))).
		Str("after", humanize.Bytes(uint64(c.totalBytes))).
		Int("mean_hits", mean).
		Msg("png cache rebalanced")
}

// Len returns the number of cached entries, for tests and diagnostics.
func (c *PngCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// hashRegion computes the content hash a region is keyed by: geometry
// first (so identical pixels at a different tile size/offset never
// collide), then the pixel bytes themselves.
func hashRegion(pixels []byte, width, height, srcX, srcY, stride, mode int) uint64 {
	h := xxhash.New()
	var geom [40]byte
	binary.LittleEndian.PutUint64(geom[0:8], uint64(width))
	binary.LittleEndian.PutUint64(geom[8:16], uint64(height))
	binary.LittleEndian.PutUint64(geom[16:24], uint64(srcX))
	binary.LittleEndian.PutUint64(geom[24:32], uint64(srcY))
	binary.LittleEndian.PutUint64(geom[32:40], uint64(stride)<<8|uint64(mode&0xff))
	_, _ = h.Write(geom[:])
	_, _ = h.Write(pixels)
	return h.Sum64()
}

// extractSubRegion copies a width x height rectangle out of a larger
// bufferW-wide RGBA buffer starting at (srcX, srcY).
func extractSubRegion(pixels []byte, srcX, srcY, width, height, bufferW, _ int) []byte {
	const bpp = 4
	out := make([]byte, 0, width*height*bpp)
	for row := 0; row < height; row++ {
		rowStart := ((srcY+row)*bufferW + srcX) * bpp
		rowEnd := rowStart + width*bpp
		if rowStart < 0 || rowEnd > len(pixels) {
			continue
		}
		out = append(out, pixels[rowStart:rowEnd]...)
	}
	return out
}
