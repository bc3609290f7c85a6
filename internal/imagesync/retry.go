package imagesync

import (
	"context"
	"fmt"
	"time"
)

// retryAttempts and retryBackoff implement spec §4.11/§7's bounded retry
// policy: "retried up to 5 times with 300ms backoff; a persistent failure
// leaves that slot None" — shared by both the downloader and the uploader.
const (
	retryAttempts = 5
	retryBackoff  = 300 * time.Millisecond
)

// withRetry calls fn up to retryAttempts times, sleeping retryBackoff
// between attempts, and returns the last error if every attempt fails.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff):
			}
		}
		if err := fn(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("imagesync: exhausted %d retries: %w", retryAttempts, lastErr)
}
