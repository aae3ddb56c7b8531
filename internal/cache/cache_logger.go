package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// TestKey is the cache key of a test definition with its questions
func TestKey(testID uint) string {
	return fmt.Sprintf("id:%d", testID)
}

// AnalyticsKey is the cache key of a test's analytics view
func AnalyticsKey(testID uint) string {
	return fmt.Sprintf("test:%d:analytics", testID)
}

// InvalidateTestCache drops the cached definition and analytics of a test
func InvalidateTestCache(ctx context.Context, cm *CacheManager, testID uint) {
	SafeDelete(ctx, cm.Test, TestKey(testID))
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("test:%d:*", testID))
}
