package persistence

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"birthday-templates/core"
)

// CacheKey is the single key the most recent upload is cached under.
const CacheKey = "templateImage"

// Cache is a small string key/value store, like a browser's localStorage.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MemoryCache is a Cache held in process memory.
type MemoryCache struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: make(map[string]string)}
}

func (c *MemoryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *MemoryCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// CachedImage is the value stored under CacheKey.
type CachedImage struct {
	TemplateID string `json:"templateId"`
	DataURL    string `json:"dataUrl"`
}

// EncodeDataURL builds a base64 data URL.
func EncodeDataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a base64 data URL into its content type and payload.
func DecodeDataURL(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL: %w", core.ErrInvalidInput)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data URL without payload: %w", core.ErrInvalidInput)
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data URL is not base64: %w", core.ErrInvalidInput)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("data URL payload: %w", core.ErrInvalidInput)
	}
	return contentType, data, nil
}

func readCachedImage(c Cache) (CachedImage, bool) {
	raw, ok := c.Get(CacheKey)
	if !ok {
		return CachedImage{}, false
	}
	var img CachedImage
	if err := json.Unmarshal([]byte(raw), &img); err != nil || img.DataURL == "" {
		return CachedImage{}, false
	}
	return img, true
}

func writeCachedImage(c Cache, img CachedImage) error {
	raw, err := json.Marshal(img)
	if err != nil {
		return err
	}
	c.Set(CacheKey, string(raw))
	return nil
}
