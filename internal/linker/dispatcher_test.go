package linker

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/starford/echolog/internal/testutil"
)

func startDispatcher(t *testing.T, d *Dispatcher) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("dispatcher did not stop")
		}
	}
}

func TestDispatcher_CreateLinksInBackground(t *testing.T) {
	s := newMemStore()
	a := s.put("A", "u", 1, 0)
	s.put("B", "u", 1, 0.001)

	rec := &recorder{}
	d := NewDispatcher(newTestLinker(s), DispatcherConfig{Workers: 1, QueueSize: 8}, rec, testutil.Logger())
	stop := startDispatcher(t, d)
	defer stop()

	d.OnItemCreatedOrReembedded(a)

	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return reflect.DeepEqual(s.relatedOf("B"), []string{"A"})
	}, "B.related never picked up A")
	if !reflect.DeepEqual(s.relatedOf("A"), []string{"B"}) {
		t.Errorf("A.related = %v, want [B]", s.relatedOf("A"))
	}
}

func TestDispatcher_DeleteCleansUpReferences(t *testing.T) {
	s := newMemStore()
	s.setRelated("A", "X")
	s.setRelated("B", "Y", "X")
	s.setRelated("C", "X", "Z")

	d := NewDispatcher(newTestLinker(s), DispatcherConfig{}, nil, testutil.Logger())
	stop := startDispatcher(t, d)
	defer stop()

	d.OnItemDeleted("X")

	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		for _, id := range []string{"A", "B", "C"} {
			for _, r := range s.relatedOf(id) {
				if r == "X" {
					return false
				}
			}
		}
		return true
	}, "X still referenced after cleanup")
}

func TestDispatcher_FailureIsNotRetried(t *testing.T) {
	s := newMemStore()
	a := s.put("A", "u", 1, 0)
	s.put("B", "u", 1, 0)
	s.failReplace = true

	rec := &recorder{}
	d := NewDispatcher(newTestLinker(s), DispatcherConfig{Workers: 2}, rec, testutil.Logger())
	stop := startDispatcher(t, d)

	d.OnItemCreatedOrReembedded(a)

	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return rec.doneCount() == 1
	}, "task never completed")
	time.Sleep(50 * time.Millisecond)
	stop()

	if s.replaceCalls != 1 {
		t.Errorf("ReplaceRelated called %d times, want exactly 1", s.replaceCalls)
	}
	if !errors.Is(rec.done[0].err, errWrite) {
		t.Errorf("observer err = %v, want errWrite", rec.done[0].err)
	}
	if len(s.relatedOf("B")) != 0 {
		t.Errorf("B.related = %v after failed relink", s.relatedOf("B"))
	}
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	s := newMemStore()
	rec := &recorder{}
	d := NewDispatcher(newTestLinker(s), DispatcherConfig{QueueSize: 1}, rec, testutil.Logger())

	// Not running, so the single slot stays occupied.
	d.OnItemDeleted("first")
	d.OnItemDeleted("second")

	if rec.queued != 1 {
		t.Errorf("queued = %d, want 1", rec.queued)
	}
	if !reflect.DeepEqual(rec.dropped, []string{"second"}) {
		t.Errorf("dropped = %v, want [second]", rec.dropped)
	}
	if d.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", d.Pending())
	}
}

func TestDispatcher_DrainsQueueOnShutdown(t *testing.T) {
	s := newMemStore()
	rec := &recorder{}
	d := NewDispatcher(newTestLinker(s), DispatcherConfig{QueueSize: 16}, rec, testutil.Logger())
	for _, id := range []string{"a", "b", "c", "d"} {
		d.OnItemDeleted(id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.doneCount() != 4 {
		t.Errorf("completed %d tasks, want 4", rec.doneCount())
	}

	d.OnItemDeleted("late")
	if !reflect.DeepEqual(rec.dropped, []string{"late"}) {
		t.Errorf("dropped = %v, want [late]", rec.dropped)
	}
}

func TestDispatcher_SkipsMemoWithoutEmbedding(t *testing.T) {
	s := newMemStore()
	m := s.put("A", "u")
	rec := &recorder{}
	d := NewDispatcher(newTestLinker(s), DispatcherConfig{}, rec, testutil.Logger())

	d.OnItemCreatedOrReembedded(m)
	if rec.queued != 0 {
		t.Errorf("queued = %d, want 0", rec.queued)
	}
}

func TestDispatcher_ReportsNeighbors(t *testing.T) {
	s := newMemStore()
	a := s.put("A", "u", 1, 0)
	s.put("B", "u", 1, 0)

	rec := &recorder{}
	d := NewDispatcher(newTestLinker(s), DispatcherConfig{}, Observers(nil, rec), testutil.Logger())
	d.OnItemCreatedOrReembedded(a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = d.Run(ctx)

	if rec.doneCount() != 1 {
		t.Fatalf("done = %d, want 1", rec.doneCount())
	}
	ev := rec.done[0]
	if ev.task.Kind != KindRelink || ev.task.ID != "A" || ev.err != nil {
		t.Errorf("event = %+v", ev)
	}
	if !reflect.DeepEqual(neighborIDs(ev.neighbors), []string{"B"}) {
		t.Errorf("neighbors = %v", neighborIDs(ev.neighbors))
	}
}
