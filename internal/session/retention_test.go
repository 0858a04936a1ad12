package session

import (
	"context"
	"fmt"
	"testing"
)

func TestPurgeWithRetry_SucceedsAfterBusy(t *testing.T) {
	calls := 0
	n, err := purgeWithRetry(context.Background(), func() (int64, error) {
		calls++
		if calls < 3 {
			return 0, fmt.Errorf("exec: SQLITE_BUSY")
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if n != 7 {
		t.Errorf("Expected 7 purged, got %d", n)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestPurgeWithRetry_NonRetryableFailsFast(t *testing.T) {
	calls := 0
	_, err := purgeWithRetry(context.Background(), func() (int64, error) {
		calls++
		return 0, fmt.Errorf("no such table: session_transcripts")
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", calls)
	}
}

func TestPurgeWithRetry_ExhaustsRetries(t *testing.T) {
	calls := 0
	_, err := purgeWithRetry(context.Background(), func() (int64, error) {
		calls++
		return 0, fmt.Errorf("database is locked")
	})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}
