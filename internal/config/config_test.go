package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platefire/expedite/internal/order"
)

func writeConfig(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "expedite.cue")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Empty(t, cfg.DefaultDevice)
	assert.Equal(t, 10, cfg.UrgentPriority)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.Backoff())
	assert.Equal(t, 5*time.Second, cfg.Retry.AttemptTimeout())
	assert.Equal(t, 10*time.Second, cfg.SchedulerInterval())

	thresholds := cfg.Thresholds()
	assert.Equal(t, 20*time.Minute, thresholds[order.TypeDineIn])
	assert.Equal(t, 20*time.Minute, thresholds[order.TypeCatering])
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
devices: [
	{id: "G1", name: "Grill", station_role: "hot line"},
	{id: "BAR", name: "Bar", online: false},
	{id: "MAIN"},
]
default_device: "MAIN"
assignments: [
	{device_id: "G1", target_id: "cat-grill", target_type: "category"},
	{device_id: "BAR", target_id: "item-negroni", target_type: "item"},
]
overdue_minutes: dineIn: 15
urgent_priority: 25
retry: attempts: 5
scheduler_interval_seconds: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Devices, 3)
	assert.Equal(t, "Grill", cfg.Devices[0].Name)
	assert.True(t, cfg.Devices[0].Online, "online defaults true")
	assert.False(t, cfg.Devices[1].Online)
	assert.Equal(t, "MAIN", cfg.DefaultDevice)

	require.Len(t, cfg.Assignments, 2)
	assert.Equal(t, "category", cfg.Assignments[0].TargetType)

	thresholds := cfg.Thresholds()
	assert.Equal(t, 15*time.Minute, thresholds[order.TypeDineIn])
	assert.Equal(t, 20*time.Minute, thresholds[order.TypeTakeaway], "untouched types keep defaults")

	assert.Equal(t, 25, cfg.UrgentPriority)
	assert.Equal(t, 5, cfg.Retry.Attempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.Backoff())
	assert.Equal(t, 3*time.Second, cfg.SchedulerInterval())

	devices := cfg.RoutingDevices()
	require.Len(t, devices, 3)
	assert.Equal(t, "hot line", devices[0].StationRole)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad target type":     `assignments: [{device_id: "G1", target_id: "x", target_type: "printer"}]`,
		"zero retry attempts": `retry: attempts: 0`,
		"negative overdue":    `overdue_minutes: dineIn: -5`,
		"wrong type":          `urgent_priority: "high"`,
		"empty device id":     `devices: [{id: ""}]`,
	}
	for name, source := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, source))
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsCrossFieldMistakes(t *testing.T) {
	t.Run("duplicate device id", func(t *testing.T) {
		_, err := Load(writeConfig(t, `devices: [{id: "G1"}, {id: "G1"}]`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate device id")
	})

	t.Run("unknown default device", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
devices: [{id: "G1"}]
default_device: "NOPE"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a declared device")
	})

	t.Run("assignment to undeclared device", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
devices: [{id: "G1"}]
assignments: [{device_id: "GHOST", target_id: "x", target_type: "item"}]
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "undeclared device")
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.cue"))
	assert.Error(t, err)
}
