// Package routing stores the many-to-many mapping between routing targets
// (menu categories, menu items) and the output devices that must receive
// tickets for them.
//
// The registry is one of the two global structures mutated concurrently by
// multiple UI-driven actors (the other is the audit log). All mutations
// take the write lock; reads are served from copies so callers never
// alias internal state. Adds and removes are idempotent, so concurrent
// edits reduce to last-writer-wins at the tuple level with no merge
// conflicts.
package routing

import (
	"sort"
	"sync"
)

// TargetType discriminates what an assignment tuple points at.
type TargetType string

const (
	TargetItem     TargetType = "item"
	TargetCategory TargetType = "category"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	return t == TargetItem || t == TargetCategory
}

// Assignment is the (device, target, targetType) routing tuple. Tuples are
// never mutated in place; changing a route is remove + add.
type Assignment struct {
	DeviceID   string     `json:"device_id" yaml:"device"`
	TargetID   string     `json:"target_id" yaml:"target"`
	TargetType TargetType `json:"target_type" yaml:"target_type"`
}

// Device is an external ticket-printing endpoint. The engine treats the
// device set as read-only reference data; connection status and station
// role exist for display and grouping only and never influence routing.
type Device struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Online      bool   `json:"online" yaml:"online"`
	StationRole string `json:"station_role,omitempty" yaml:"station_role,omitempty"`
}

type targetKey struct {
	id  string
	typ TargetType
}

// Registry is the in-memory assignment set.
type Registry struct {
	mu       sync.RWMutex
	tuples   map[Assignment]struct{}
	byTarget map[targetKey]map[string]struct{} // target → device ids
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tuples:   make(map[Assignment]struct{}),
		byTarget: make(map[targetKey]map[string]struct{}),
	}
}

// Assign inserts the tuple if absent. Duplicate adds are a reported no-op,
// never an error. Returns the assignment count for the target across all
// devices after the call, and whether the tuple already existed.
func (r *Registry) Assign(deviceID, targetID string, targetType TargetType) (count int, already bool) {
	a := Assignment{DeviceID: deviceID, TargetID: targetID, TargetType: targetType}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tuples[a]; ok {
		return r.countLocked(targetID), true
	}

	r.tuples[a] = struct{}{}
	key := targetKey{id: targetID, typ: targetType}
	devices, ok := r.byTarget[key]
	if !ok {
		devices = make(map[string]struct{})
		r.byTarget[key] = devices
	}
	devices[deviceID] = struct{}{}

	return r.countLocked(targetID), false
}

// Unassign removes the single tuple. Removing an absent tuple is a no-op;
// the return value reports whether anything was actually removed.
func (r *Registry) Unassign(deviceID, targetID string, targetType TargetType) (removed bool) {
	a := Assignment{DeviceID: deviceID, TargetID: targetID, TargetType: targetType}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tuples[a]; !ok {
		return false
	}
	delete(r.tuples, a)
	r.removeFromIndexLocked(a)
	return true
}

// UnassignAll removes every tuple for the target across all devices and
// both target types. The removal is atomic with respect to concurrent
// Assign calls on the same target. Returns the removed tuples sorted by
// device id (categories before items on ties) so bulk operations audit
// deterministically.
func (r *Registry) UnassignAll(targetID string) []Assignment {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []Assignment
	for a := range r.tuples {
		if a.TargetID == targetID {
			removed = append(removed, a)
		}
	}
	for _, a := range removed {
		delete(r.tuples, a)
		r.removeFromIndexLocked(a)
	}

	sort.Slice(removed, func(i, j int) bool {
		if removed[i].DeviceID != removed[j].DeviceID {
			return removed[i].DeviceID < removed[j].DeviceID
		}
		return removed[i].TargetType < removed[j].TargetType
	})
	return removed
}

// ResolveDevices returns the sorted device ids currently assigned to the
// target. An empty result is valid and meaningful: it tells the dispatcher
// to fall through to the next precedence level.
func (r *Registry) ResolveDevices(targetID string, targetType TargetType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := r.byTarget[targetKey{id: targetID, typ: targetType}]
	if len(devices) == 0 {
		return nil
	}
	ids := make([]string, 0, len(devices))
	for id := range devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of tuples for the target across all devices
// and target types.
func (r *Registry) Count(targetID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked(targetID)
}

// Snapshot returns all tuples sorted by (device, target, type). Readers
// get a copy; staleness is bounded by the caller's refresh cadence.
func (r *Registry) Snapshot() []Assignment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Assignment, 0, len(r.tuples))
	for a := range r.tuples {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeviceID != out[j].DeviceID {
			return out[i].DeviceID < out[j].DeviceID
		}
		if out[i].TargetID != out[j].TargetID {
			return out[i].TargetID < out[j].TargetID
		}
		return out[i].TargetType < out[j].TargetType
	})
	return out
}

func (r *Registry) countLocked(targetID string) int {
	n := 0
	for a := range r.tuples {
		if a.TargetID == targetID {
			n++
		}
	}
	return n
}

func (r *Registry) removeFromIndexLocked(a Assignment) {
	key := targetKey{id: a.TargetID, typ: a.TargetType}
	if devices, ok := r.byTarget[key]; ok {
		delete(devices, a.DeviceID)
		if len(devices) == 0 {
			delete(r.byTarget, key)
		}
	}
}
