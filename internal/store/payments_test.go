package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestMarkPaymentProcessed_FirstOnly(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	first, err := s.MarkPaymentProcessed(ctx, "987")
	if err != nil {
		t.Fatalf("MarkPaymentProcessed() failed: %v", err)
	}
	if !first {
		t.Error("first call should report first=true")
	}

	again, err := s.MarkPaymentProcessed(ctx, "987")
	if err != nil {
		t.Fatalf("second MarkPaymentProcessed() failed: %v", err)
	}
	if again {
		t.Error("repeat call should report first=false")
	}
}

func TestMarkPaymentProcessed_Concurrent(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := s.MarkPaymentProcessed(ctx, "555")
			if err != nil {
				t.Errorf("MarkPaymentProcessed() failed: %v", err)
				return
			}
			if first {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("wins = %d, want exactly 1", wins.Load())
	}
}
