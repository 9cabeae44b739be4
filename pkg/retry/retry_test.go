package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orgball2608/story-engine/pkg/logger"
)

func fastConfig(retries uint64) Config {
	return Config{
		MaxRetries:      retries,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      1.5,
	}
}

func TestDo_succeedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), logger.Nop(), "upload", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	}, fastConfig(5))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_givesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	boom := errors.New("bucket unavailable")
	err := Do(context.Background(), logger.Nop(), "upload", func() error {
		calls++
		return boom
	}, fastConfig(2))
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 1 attempt + 2 retries, got %d", calls)
	}
}

func TestDo_permanentStopsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("object key rejected")
	err := Do(context.Background(), logger.Nop(), "upload", func() error {
		calls++
		return Permanent(boom)
	}, fastConfig(5))
	if !errors.Is(err, boom) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}
