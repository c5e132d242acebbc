// Package cache holds the in-memory task snapshots the controller serves
// reads from. It is process-scoped state with an explicit lifecycle:
// populated on load, invalidated on persisted-state refresh.
package cache

import (
	"sync"

	"github.com/google/uuid"

	"taskplane/internal/task"
)

// instanceKey addresses one instance slot.
type instanceKey struct {
	jobID      uuid.UUID
	instanceID uint32
}

// entry is the single-writer unit for one instance. All mutations for an
// instance happen under its mutex, so the "append event, then update
// runtime" pair is observed atomically by concurrent readers.
type entry struct {
	mu      sync.Mutex
	runtime *task.RuntimeInfo
	config  *task.TaskConfig
}

// TaskCache is the process-wide cache of instance snapshots. Entries for
// different instances are fully independent; there is no global lock beyond
// the map itself.
type TaskCache struct {
	mu      sync.RWMutex
	entries map[instanceKey]*entry
}

// New creates an empty cache.
func New() *TaskCache {
	return &TaskCache{entries: make(map[instanceKey]*entry)}
}

// Get returns a copy of the cached runtime snapshot, or false when the
// instance is not cached. Readers never block writers of other instances.
func (c *TaskCache) Get(jobID uuid.UUID, instanceID uint32) (*task.RuntimeInfo, bool) {
	c.mu.RLock()
	e, ok := c.entries[instanceKey{jobID, instanceID}]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runtime == nil {
		return nil, false
	}
	return e.runtime.Clone(), true
}

// GetConfig returns the cached task config for the instance, if any.
func (c *TaskCache) GetConfig(jobID uuid.UUID, instanceID uint32) (*task.TaskConfig, bool) {
	c.mu.RLock()
	e, ok := c.entries[instanceKey{jobID, instanceID}]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.config == nil {
		return nil, false
	}
	return e.config, true
}

// Put stores a snapshot, replacing whatever was cached for the instance.
func (c *TaskCache) Put(jobID uuid.UUID, instanceID uint32, runtime *task.RuntimeInfo, config *task.TaskConfig) {
	e := c.getOrCreate(instanceKey{jobID, instanceID})
	e.mu.Lock()
	e.runtime = runtime.Clone()
	e.config = config
	e.mu.Unlock()
}

// Invalidate drops the cached snapshot so the next reconciliation reloads it
// from persistent storage.
func (c *TaskCache) Invalidate(jobID uuid.UUID, instanceID uint32) {
	c.mu.RLock()
	e, ok := c.entries[instanceKey{jobID, instanceID}]
	c.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.runtime = nil
	e.config = nil
	e.mu.Unlock()
}

// View is the mutable window WithLock hands to its callback. Callbacks must
// only replace the fields with durably committed snapshots; whatever the view
// holds when the callback returns is installed in the entry.
type View struct {
	Runtime *task.RuntimeInfo
	Config  *task.TaskConfig
}

// WithLock runs fn while holding the instance's single-writer lock. All
// lifecycle mutations for an instance flow through here, which serializes
// them against each other and against cache readers of the same instance.
// The view is installed even when fn fails: a multi-step pass may have
// committed some of its steps before the error, and keeping the pre-pass
// snapshot would leave the cache behind the store, wedging every later
// write on the revision guard.
func (c *TaskCache) WithLock(jobID uuid.UUID, instanceID uint32, fn func(v *View) error) error {
	e := c.getOrCreate(instanceKey{jobID, instanceID})
	e.mu.Lock()
	defer e.mu.Unlock()

	v := &View{Runtime: e.runtime, Config: e.config}
	err := fn(v)
	e.runtime = v.Runtime
	e.config = v.Config
	return err
}

// Len returns the number of populated entries, for metrics.
func (c *TaskCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.entries {
		if e.runtime != nil {
			n++
		}
	}
	return n
}

func (c *TaskCache) getOrCreate(key instanceKey) *entry {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.entries[key]; ok {
		return e
	}
	e = &entry{}
	c.entries[key] = e
	return e
}
