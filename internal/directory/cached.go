package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/debabrata-png/aipaathsala1-sub000/internal/cache"
	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

// CachedClient wraps a Client with a short-lived redis cache so repeated
// trigger validation for the same class does not hammer the directory.
// Cache failures fall through to the inner client.
type CachedClient struct {
	inner Client
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedClient creates a caching directory client.
func NewCachedClient(inner Client, ca cache.Cache, ttl time.Duration) *CachedClient {
	return &CachedClient{inner: inner, cache: ca, ttl: ttl}
}

func (c *CachedClient) GetClass(ctx context.Context, classID string) (*models.Class, error) {
	key := classCacheKey(classID)

	if raw, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		var class models.Class
		if err := json.Unmarshal(raw, &class); err == nil {
			return &class, nil
		}
		_ = c.cache.Delete(ctx, key)
	}

	class, err := c.inner.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(class); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			slog.Warn("caching class record", "class_id", classID, "error", err)
		}
	}

	return class, nil
}

func classCacheKey(classID string) string {
	return fmt.Sprintf("directory:class:%s", classID)
}
