package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/braincell-ai/braincell/internal/shared"
	"github.com/braincell-ai/braincell/internal/store"
)

const retentionInterval = 1 * time.Hour

// RetentionPolicy controls how long learner data is kept.
type RetentionPolicy struct {
	TranscriptTTL time.Duration // purge transcripts older than this
	StudentTTL    time.Duration // drop students idle longer than this
}

// StartRetentionWorker runs a background goroutine that periodically
// purges old transcripts and idle anonymous students.
func StartRetentionWorker(ctx context.Context, repo store.Repository, policy RetentionPolicy) {
	ticker := time.NewTicker(retentionInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started",
			"interval", retentionInterval,
			"transcript_ttl", policy.TranscriptTTL,
			"student_ttl", policy.StudentTTL)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, repo, policy)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, repo store.Repository, policy RetentionPolicy) {
	if policy.TranscriptTTL > 0 {
		cutoff := time.Now().Add(-policy.TranscriptTTL)
		purged, err := purgeWithRetry(ctx, func() (int64, error) {
			return repo.PurgeTranscriptsBefore(ctx, cutoff)
		})
		if err != nil {
			slog.Error("Retention worker failed to purge transcripts", "error", err)
		} else if purged > 0 {
			slog.Info("Retention worker purged transcripts", "count", purged)
		}
	}

	if policy.StudentTTL > 0 {
		cutoff := time.Now().Add(-policy.StudentTTL)
		deleted, err := purgeWithRetry(ctx, func() (int64, error) {
			return repo.DeleteIdleStudents(ctx, cutoff)
		})
		if err != nil {
			slog.Error("Retention worker failed to delete idle students", "error", err)
		} else if deleted > 0 {
			slog.Info("Retention worker deleted idle students", "count", deleted)
		}
	}
}

// purgeWithRetry retries a purge with exponential backoff to ride out
// SQLITE_BUSY while the async persist pool is flushing.
func purgeWithRetry(ctx context.Context, fn func() (int64, error)) (int64, error) {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		n, err := fn()
		if err == nil {
			return n, nil
		}
		lastErr = err

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
			slog.Debug("Retention sweep hit locked database, retrying",
				"attempt", i+1,
				"delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
			continue
		}
		break
	}
	return 0, lastErr
}
