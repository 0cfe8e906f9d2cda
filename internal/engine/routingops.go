package engine

import (
	"context"
	"log/slog"
	"sort"

	"github.com/platefire/expedite/internal/audit"
	"github.com/platefire/expedite/internal/routing"
)

// AssignResult reports the outcome of an Assign call.
type AssignResult struct {
	// Count is the assignment count for the target across all devices
	// after the call.
	Count int
	// Already is true when the exact tuple existed: an informational
	// no-op, never an error.
	Already bool
}

// Assign routes a target (menu item or category) to a device. Duplicate
// assignments are reported as already assigned; only a real insert is
// journaled.
func (e *Engine) Assign(ctx context.Context, deviceID, targetID string, targetType routing.TargetType) (AssignResult, error) {
	if deviceID == "" || targetID == "" || !targetType.Valid() {
		return AssignResult{}, &Error{Code: ErrCodeInvalidArgument, Message: "assign requires device, target, and a valid target type"}
	}

	count, already := e.registry.Assign(deviceID, targetID, targetType)
	if already {
		slog.Debug("target already assigned", "device", deviceID, "target", targetID, "type", targetType)
		return AssignResult{Count: count, Already: true}, nil
	}

	entry := e.newEntry("", "", audit.ActionAssignmentChanged, audit.LevelInfo,
		"assigned "+string(targetType)+" "+targetID+" to device "+deviceID,
		nil,
		map[string]any{
			"op":          "assign",
			"device_id":   deviceID,
			"target_id":   targetID,
			"target_type": string(targetType),
			"count":       count,
		})
	if err := e.auditLog.Append(ctx, entry); err != nil {
		// The insert is rolled back so an unjournaled assignment never
		// becomes visible to resolution.
		e.registry.Unassign(deviceID, targetID, targetType)
		return AssignResult{}, newAuditWriteFailure("", err)
	}

	slog.Info("target assigned", "device", deviceID, "target", targetID, "type", targetType, "count", count)
	return AssignResult{Count: count}, nil
}

// Unassign removes a single routing tuple. Removing an absent tuple is an
// informational no-op and is not journaled.
func (e *Engine) Unassign(ctx context.Context, deviceID, targetID string, targetType routing.TargetType) (removed bool, err error) {
	if !e.registry.Unassign(deviceID, targetID, targetType) {
		return false, nil
	}

	entry := e.newEntry("", "", audit.ActionAssignmentChanged, audit.LevelInfo,
		"unassigned "+string(targetType)+" "+targetID+" from device "+deviceID,
		map[string]any{
			"op":          "unassign",
			"device_id":   deviceID,
			"target_id":   targetID,
			"target_type": string(targetType),
		},
		nil)
	if err := e.auditLog.Append(ctx, entry); err != nil {
		e.registry.Assign(deviceID, targetID, targetType)
		return false, newAuditWriteFailure("", err)
	}

	slog.Info("target unassigned", "device", deviceID, "target", targetID, "type", targetType)
	return true, nil
}

// UnassignAll clears every assignment for the target across all devices,
// atomically with respect to concurrent Assign calls on the same target.
// The bulk removal is journaled as a single entry listing every removed
// tuple.
func (e *Engine) UnassignAll(ctx context.Context, targetID string) ([]routing.Assignment, error) {
	removed := e.registry.UnassignAll(targetID)
	if len(removed) == 0 {
		return nil, nil
	}

	tuples := make([]any, 0, len(removed))
	for _, a := range removed {
		tuples = append(tuples, map[string]any{
			"device_id":   a.DeviceID,
			"target_id":   a.TargetID,
			"target_type": string(a.TargetType),
		})
	}
	entry := e.newEntry("", "", audit.ActionAssignmentChanged, audit.LevelInfo,
		"cleared all assignments for target "+targetID,
		map[string]any{"op": "unassignAll", "target_id": targetID, "removed": tuples},
		nil)
	if err := e.auditLog.Append(ctx, entry); err != nil {
		for _, a := range removed {
			e.registry.Assign(a.DeviceID, a.TargetID, a.TargetType)
		}
		return nil, newAuditWriteFailure("", err)
	}

	slog.Info("target assignments cleared", "target", targetID, "removed", len(removed))
	return removed, nil
}

// ResolveDevices returns the devices currently assigned to the target.
// An empty result is meaningful: the dispatcher falls through to the next
// precedence level.
func (e *Engine) ResolveDevices(targetID string, targetType routing.TargetType) []string {
	return e.registry.ResolveDevices(targetID, targetType)
}

// Devices returns the external device reference set.
func (e *Engine) Devices() []routing.Device {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]routing.Device, 0, len(e.devices))
	for _, d := range e.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
