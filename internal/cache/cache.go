// Package cache defines the value-transparent cache contract used for
// record reads and subject region mappings.
package cache

import (
	"context"
	"strings"
	"time"

	"privata/pkg/domain"
)

// Cache stores opaque payloads with a TTL. A zero TTL means no expiry.
// Invalidate takes a glob pattern ("record:EU:*") and returns how many keys
// were removed.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Invalidate(ctx context.Context, pattern string) (int, error)
}

// RecordKey is the cache key of one stored record.
func RecordKey(region domain.Region, model, id string) string {
	return "record:" + strings.Join([]string{region.String(), model, id}, ":")
}

// ModelPattern matches every cached record of model in region.
func ModelPattern(region domain.Region, model string) string {
	return "record:" + region.String() + ":" + model + ":*"
}

// RegionKey is the cache key of a subject's region mapping.
func RegionKey(subjectID domain.SubjectID) string {
	return "region:" + subjectID.String()
}
