package imaging

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ironsheep/pixelfly/internal/apperr"
)

// maxFetchBytes bounds the size of a remotely fetched image.
const maxFetchBytes = 64 << 20

// Cache keeps recently decoded buffers keyed by the SHA-256 of their raw
// bytes, so the same upload decoded twice costs one decode.
//
// Cache is safe for concurrent use by multiple goroutines. Because cached
// buffers are immutable they can be handed to concurrent requests as-is.
//
// # Example Usage
//
//	cache, err := imaging.NewCache(32, imaging.Limits{MaxDimension: 4096})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	buf, format, err := cache.Decode(data)
type Cache struct {
	entries *lru.Cache[string, cacheEntry]
	limits  Limits
}

type cacheEntry struct {
	buf    PixelBuffer
	format string
}

// NewCache creates a cache holding at most size decoded buffers. Every
// decode is bounded by lim.
func NewCache(size int, lim Limits) (*Cache, error) {
	if size < 1 {
		size = 1
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}
	return &Cache{entries: entries, limits: lim}, nil
}

// Decode returns the cached buffer for data, decoding it on a miss.
// Failed decodes are not cached.
func (c *Cache) Decode(data []byte) (PixelBuffer, string, error) {
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	if e, ok := c.entries.Get(key); ok {
		return e.buf, e.format, nil
	}

	buf, format, err := Decode(data, c.limits)
	if err != nil {
		return PixelBuffer{}, format, err
	}
	c.entries.Add(key, cacheEntry{buf: buf, format: format})
	return buf, format, nil
}

// Len returns the number of cached buffers.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Clear removes all buffers from the cache.
func (c *Cache) Clear() {
	c.entries.Purge()
}

// Source identifies where an input image comes from. Exactly one field must
// be set.
type Source struct {
	// Path is a local file path.
	Path string `json:"path,omitempty"`

	// Base64 is inline image data, optionally prefixed with a data URL
	// header such as "data:image/png;base64,".
	Base64 string `json:"image_base64,omitempty"`

	// URL is an http(s) location fetched on demand.
	URL string `json:"url,omitempty"`
}

// Validate checks that exactly one location is given.
func (s Source) Validate() error {
	set := 0
	for _, v := range []string{s.Path, s.Base64, s.URL} {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	switch set {
	case 0:
		return apperr.New(apperr.ValidationError, "image source is required (path, image_base64 or url)")
	case 1:
		return nil
	default:
		return apperr.New(apperr.ValidationError, "only one of path, image_base64 or url may be given")
	}
}

// Loader resolves Sources to decoded buffers through a shared Cache.
type Loader struct {
	cache  *Cache
	client *http.Client
}

// NewLoader creates a loader. Remote fetches are bounded by fetchTimeout.
func NewLoader(cache *Cache, fetchTimeout time.Duration) *Loader {
	return &Loader{
		cache:  cache,
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Load reads and decodes src.
//
// Returns an apperr.ValidationError when the source is malformed or cannot
// be read, and an apperr.DecodeError when the bytes are not an image.
func (l *Loader) Load(ctx context.Context, src Source) (PixelBuffer, string, error) {
	data, err := l.Read(ctx, src)
	if err != nil {
		return PixelBuffer{}, "", err
	}
	return l.cache.Decode(data)
}

// Read returns the raw bytes behind src without decoding them.
func (l *Loader) Read(ctx context.Context, src Source) ([]byte, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	path, inline, url := strings.TrimSpace(src.Path), strings.TrimSpace(src.Base64), strings.TrimSpace(src.URL)
	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperr.Wrap(apperr.ValidationError, err, "failed to read image file")
		}
		return data, nil
	case inline != "":
		return DecodeBase64(inline)
	default:
		return l.fetch(ctx, url)
	}
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, apperr.New(apperr.ValidationError, "unsupported image url %q", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.ValidationError, err, "invalid image url")
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.ValidationError, err, "failed to download image")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.New(apperr.ValidationError, "failed to download image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.ValidationError, err, "failed to download image")
	}
	if len(data) > maxFetchBytes {
		return nil, apperr.New(apperr.ValidationError, "image exceeds %d bytes", maxFetchBytes)
	}
	return data, nil
}

// DecodeBase64 decodes inline image data, accepting standard or raw
// encodings and an optional data URL header.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(s)
		if rawErr != nil {
			return nil, apperr.Wrap(apperr.DecodeError, errors.Join(err, rawErr), "invalid base64 image data")
		}
	}
	return data, nil
}

// EncodeBase64 is the inverse of DecodeBase64 without a data URL header.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
