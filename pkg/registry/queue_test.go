package registry

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestUpdateQueueProcessesInOrder(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var processed []string
	done := make(chan struct{})

	q := newUpdateQueue(10, time.Hour, func(ctx context.Context, name string) {
		mu.Lock()
		processed = append(processed, name)
		n := len(processed)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
	})

	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		if err := q.trigger(ctx, name); err != nil {
			t.Fatalf("trigger(%q) = %v", name, err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all packages to be processed")
	}

	mu.Lock()
	defer mu.Unlock()
	if got, want := processed, []string{"a", "b", "c"}; !equalSlices(got, want) {
		t.Errorf("processed = %v, want %v", got, want)
	}
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestUpdateQueueDeduplicates(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	count := 0
	release := make(chan struct{})
	started := make(chan struct{})
	once := sync.Once{}

	q := newUpdateQueue(10, time.Hour, func(ctx context.Context, name string) {
		mu.Lock()
		count++
		mu.Unlock()
		once.Do(func() { close(started) })
		<-release
	})

	ctx := context.Background()
	if err := q.trigger(ctx, "pkg"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	<-started // first trigger is now being processed, blocked on release

	if err := q.trigger(ctx, "pkg"); err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if err := q.trigger(ctx, "pkg"); err != nil {
		t.Fatalf("third trigger: %v", err)
	}

	if pos := q.position("pkg"); pos != 0 {
		t.Errorf("position(pkg) while processing = %d, want 0 (currently processing)", pos)
	}

	close(release)
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("process called %d times, want 2 (the run in progress, plus one re-enqueue; the third trigger is deduplicated)", count)
	}
}

func TestUpdateQueueCapacity(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	once := sync.Once{}

	q := newUpdateQueue(1, time.Hour, func(ctx context.Context, name string) {
		once.Do(func() { close(started) })
		<-release
	})
	defer close(release)

	ctx := context.Background()
	if err := q.trigger(ctx, "a"); err != nil {
		t.Fatalf("trigger(a): %v", err)
	}
	<-started

	if err := q.trigger(ctx, "b"); err != nil {
		t.Fatalf("trigger(b) should fit within capacity: %v", err)
	}
	if err := q.trigger(ctx, "c"); err == nil {
		t.Error("trigger(c) should have failed: queue is at capacity")
	}
}

func TestUpdateQueuePositionUnknown(t *testing.T) {
	t.Parallel()

	q := newUpdateQueue(10, time.Hour, func(ctx context.Context, name string) {})
	if pos := q.position("nope"); pos != -1 {
		t.Errorf("position(nope) = %d, want -1", pos)
	}
	if q.isScheduled("nope") {
		t.Error("isScheduled(nope) = true, want false")
	}
}

func TestUpdateQueueWatchdogRestartsStaleDrain(t *testing.T) {
	t.Parallel()

	stuck := make(chan struct{})
	var mu sync.Mutex
	var processedB bool

	q := newUpdateQueue(10, 20*time.Millisecond, func(ctx context.Context, name string) {
		if name == "a" {
			<-ctx.Done() // simulate a hang that only watchdog cancellation ends
			close(stuck)
			return
		}
		mu.Lock()
		processedB = true
		mu.Unlock()
	})

	ctx := context.Background()
	if err := q.trigger(ctx, "a"); err != nil {
		t.Fatalf("trigger(a): %v", err)
	}

	time.Sleep(50 * time.Millisecond) // let the beacon go stale

	if err := q.trigger(ctx, "b"); err != nil {
		t.Fatalf("trigger(b): %v", err)
	}

	select {
	case <-stuck:
	case <-time.After(2 * time.Second):
		t.Fatal("stale drain task was never cancelled by the watchdog")
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		done := processedB
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("package b was never processed after watchdog restart")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestUpdateQueueRecoversFromPanic(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	q := newUpdateQueue(10, time.Hour, func(ctx context.Context, name string) {
		if name == "boom" {
			panic("kaboom")
		}
		close(done)
	})

	ctx := context.Background()
	if err := q.trigger(ctx, "boom"); err != nil {
		t.Fatalf("trigger(boom): %v", err)
	}
	if err := q.trigger(ctx, "fine"); err != nil {
		t.Fatalf("trigger(fine): %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drain task did not survive a panic in process()")
	}
}
