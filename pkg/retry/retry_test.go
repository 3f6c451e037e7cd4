package retry

import (
	"context"
	"errors"
	"testing"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := None.withAttempts(3).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := None.withAttempts(5).Do(context.Background(), func() error {
		calls++
		return permanent
	}, func(err error) bool { return false })
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	transient := errors.New("transient")
	calls := 0
	err := None.withAttempts(4).Do(context.Background(), func() error {
		calls++
		return transient
	}, func(err error) bool { return true })
	if !errors.Is(err, transient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func (p Policy) withAttempts(n int) Policy {
	p.MaxAttempts = n
	return p
}
