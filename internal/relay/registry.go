package relay

import (
	"sort"
	"sync"
	"time"

	"github.com/ytget/relay-bot/internal/model"
)

// Registry holds at most one running task per user
type Registry struct {
	mu    sync.RWMutex
	tasks map[int64]*model.TaskRecord
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[int64]*model.TaskRecord)}
}

// Register adds rec. The existing record is kept if the user already has one.
func (r *Registry) Register(rec *model.TaskRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[rec.UserID]; exists {
		return ErrTaskExists
	}
	r.tasks[rec.UserID] = rec
	return nil
}

// Lookup returns a copy of the user's record
func (r *Registry) Lookup(userID int64) (model.TaskRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.tasks[userID]
	if !ok {
		return model.TaskRecord{}, false
	}
	return *rec, true
}

// SetState records the lifecycle state of the user's task and returns the
// previous one. It reports false if the user has no registered task.
func (r *Registry) SetState(userID int64, state model.TaskState) (model.TaskState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[userID]
	if !ok {
		return model.TaskStateIdle, false
	}
	prev := rec.State
	rec.State = state
	return prev, true
}

// Unregister removes the user's record. Removing an absent record is a no-op.
func (r *Registry) Unregister(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, userID)
}

// UserIDs returns a sorted snapshot of registered users
func (r *Registry) UserIDs() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clear drops every record
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = make(map[int64]*model.TaskRecord)
}

// Len returns the number of registered tasks
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Cooldowns maps users to the earliest time they may start another task.
// Entries are overwritten on admission and never removed.
type Cooldowns struct {
	mu      sync.Mutex
	entries map[int64]model.CooldownEntry
}

// NewCooldowns creates an empty cooldown table
func NewCooldowns() *Cooldowns {
	return &Cooldowns{entries: make(map[int64]model.CooldownEntry)}
}

// Set records that userID may start again at availableAt
func (c *Cooldowns) Set(userID int64, availableAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = model.CooldownEntry{UserID: userID, AvailableAt: availableAt}
}

// Get returns the user's entry
func (c *Cooldowns) Get(userID int64) (model.CooldownEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	return entry, ok
}

// Remaining returns how long userID must still wait at now, or zero
func (c *Cooldowns) Remaining(userID int64, now time.Time) time.Duration {
	entry, ok := c.Get(userID)
	if !ok || !entry.Active(now) {
		return 0
	}
	return entry.AvailableAt.Sub(now)
}
