package cache

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"taskplane/internal/task"
)

func TestGetReturnsCopy(t *testing.T) {
	c := New()
	jobID := uuid.New()
	rt := task.NewRuntime(jobID, 0, 1, false)
	rt.Ports = map[string]uint32{"http": 8080}

	c.Put(jobID, 0, rt, &task.TaskConfig{Name: "web"})

	got, ok := c.Get(jobID, 0)
	if !ok {
		t.Fatal("expected cached entry")
	}
	got.Ports["http"] = 9090
	got.State = task.StateRunning

	again, _ := c.Get(jobID, 0)
	if again.Ports["http"] != 8080 || again.State != task.StateInitialized {
		t.Error("Get must return a copy, not the cached snapshot")
	}
}

func TestGetMissing(t *testing.T) {
	c := New()
	if _, ok := c.Get(uuid.New(), 0); ok {
		t.Error("expected miss for unknown instance")
	}
}

func TestInvalidate(t *testing.T) {
	c := New()
	jobID := uuid.New()
	c.Put(jobID, 1, task.NewRuntime(jobID, 1, 1, false), nil)

	c.Invalidate(jobID, 1)
	if _, ok := c.Get(jobID, 1); ok {
		t.Error("expected miss after invalidation")
	}
	if c.Len() != 0 {
		t.Errorf("got %d populated entries, want 0", c.Len())
	}

	// Invalidating an unknown instance is a no-op.
	c.Invalidate(uuid.New(), 7)
}

func TestWithLockErrorKeepsCommittedProgress(t *testing.T) {
	c := New()
	jobID := uuid.New()
	rt := task.NewRuntime(jobID, 0, 1, false)
	c.Put(jobID, 0, rt, nil)

	// A callback that committed one step before failing leaves the view at
	// the committed snapshot; that snapshot must stick, or every later
	// write starts from a revision the store has already moved past.
	committed := rt.Clone()
	committed.Revision++
	err := c.WithLock(jobID, 0, func(v *View) error {
		v.Runtime = committed
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error from callback")
	}

	got, ok := c.Get(jobID, 0)
	if !ok {
		t.Fatal("entry missing after failed callback")
	}
	if got.Revision != committed.Revision {
		t.Errorf("got revision %d, want %d; committed progress rolled back", got.Revision, committed.Revision)
	}
}

func TestWithLockSerializesWriters(t *testing.T) {
	c := New()
	jobID := uuid.New()
	rt := task.NewRuntime(jobID, 0, 1, false)
	c.Put(jobID, 0, rt, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.WithLock(jobID, 0, func(v *View) error {
				next := v.Runtime.Clone()
				next.Revision++
				v.Runtime = next
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := c.Get(jobID, 0)
	if got.Revision != rt.Revision+50 {
		t.Errorf("got revision %d, want %d; writers not serialized", got.Revision, rt.Revision+50)
	}
}

func TestIndependentInstances(t *testing.T) {
	c := New()
	jobID := uuid.New()
	c.Put(jobID, 0, task.NewRuntime(jobID, 0, 1, false), nil)
	c.Put(jobID, 1, task.NewRuntime(jobID, 1, 1, false), nil)

	// Hold instance 0's lock; instance 1 must stay fully usable.
	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = c.WithLock(jobID, 0, func(v *View) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	if _, ok := c.Get(jobID, 1); !ok {
		t.Error("instance 1 blocked by instance 0's writer")
	}
	close(release)
}
