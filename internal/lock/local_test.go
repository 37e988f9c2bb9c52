package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmynk/splitledger/internal/apperr"
)

func TestNormalize(t *testing.T) {
	got := normalize([]string{"b", "", "a", "b", "c"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("normalize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("normalize = %v, want %v", got, want)
		}
	}
}

func TestLocal_ExcludesOverlappingKeys(t *testing.T) {
	l := NewLocal(5 * time.Second)
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every caller shares "edge:shared" plus one private key, in varying order.
			keys := []string{"edge:shared", "edge:" + string(rune('a'+i))}
			if i%2 == 0 {
				keys[0], keys[1] = keys[1], keys[0]
			}
			release, err := l.Acquire(ctx, keys)
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}(i)
	}
	wg.Wait()

	if maxInside.Load() != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside.Load())
	}
	if l.size() != 0 {
		t.Errorf("expected all slots to be dropped, %d remain", l.size())
	}
}

func TestLocal_DisjointKeysDoNotBlock(t *testing.T) {
	l := NewLocal(50 * time.Millisecond)
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, []string{"edge:a"})
	if err != nil {
		t.Fatalf("Acquire a failed: %v", err)
	}
	defer releaseA()

	releaseB, err := l.Acquire(ctx, []string{"edge:b"})
	if err != nil {
		t.Fatalf("Acquire b should not wait for a: %v", err)
	}
	releaseB()
}

func TestLocal_TimeoutIsConflict(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, []string{"edge:x"})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// Holding y must be given back when x times out.
	_, err = l.Acquire(ctx, []string{"edge:y", "edge:x"})
	if !errors.Is(err, apperr.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}

	releaseY, err := l.Acquire(ctx, []string{"edge:y"})
	if err != nil {
		t.Fatalf("edge:y still held after failed Acquire: %v", err)
	}
	releaseY()

	release()
	release() // second call is a no-op
	if l.size() != 0 {
		t.Errorf("expected all slots to be dropped, %d remain", l.size())
	}
}

func TestLocal_CanceledContext(t *testing.T) {
	l := NewLocal(time.Second)
	release, _ := l.Acquire(context.Background(), []string{"edge:x"})
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Acquire(ctx, []string{"edge:x"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLocal_ParentDeadlineIsConflict(t *testing.T) {
	l := NewLocal(time.Second)
	release, err := l.Acquire(context.Background(), []string{"edge:x"})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = l.Acquire(ctx, []string{"edge:x"})
	if !errors.Is(err, apperr.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
	if waited := time.Since(start); waited > 500*time.Millisecond {
		t.Errorf("expected the request deadline to cut the wait short, waited %v", waited)
	}
}

func TestLocal_WaiterGetsKeyOnRelease(t *testing.T) {
	l := NewLocal(time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, []string{"edge:x"})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		r, err := l.Acquire(ctx, []string{"edge:x"})
		if err == nil {
			r()
		}
		acquired <- err
	}()

	time.Sleep(20 * time.Millisecond)
	release()
	if err := <-acquired; err != nil {
		t.Fatalf("waiter failed to acquire after release: %v", err)
	}
	if l.size() != 0 {
		t.Errorf("expected all slots to be dropped, %d remain", l.size())
	}
}
