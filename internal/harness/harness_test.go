package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platefire/expedite/internal/config"
)

func TestScenariosAgainstGolden(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		path := path
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "expectation mismatches: %v", result.Errors)
		})
	}
}

func TestRunReportsUnexpectedErrors(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_jump",
		Description: "a pending order cannot be served",
		Orders:      []OrderSpec{{Number: "9"}},
		Flow: []Step{
			{Action: "create", Order: "9"},
			{Action: "transition", Order: "9", To: "served"},
		},
	}
	require.NoError(t, validateScenario(scenario))

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "INVALID_TRANSITION")
}

func TestRunWithConfig(t *testing.T) {
	cfg := &config.Config{
		Devices:        []config.Device{{ID: "G1", Online: true}, {ID: "MAIN", Online: true}},
		DefaultDevice:  "MAIN",
		Assignments:    []config.Assignment{{DeviceID: "G1", TargetID: "steak", TargetType: "item"}},
		OverdueMinutes: map[string]int{"dineIn": 15},
		UrgentPriority: 42,
		Retry:          config.Retry{Attempts: 2, BackoffMs: 1, AttemptTimeoutMs: 100},
	}
	scenario := &Scenario{
		Name:        "configured_route",
		Description: "routing comes from the config file, not the scenario",
		Orders: []OrderSpec{{
			Number: "5",
			Items: []ItemSpec{
				{MenuItem: "steak", Name: "Steak"},
				{MenuItem: "bread", Name: "Bread"},
			},
		}},
		Flow: []Step{
			{Action: "create", Order: "5"},
			{Action: "dispatch", Order: "5"},
		},
	}
	require.NoError(t, validateScenario(scenario))

	result, err := RunWithConfig(scenario, cfg)
	require.NoError(t, err)
	assert.True(t, result.Pass, "unexpected errors: %v", result.Errors)

	require.Len(t, result.Tickets, 2)
	assert.Contains(t, result.Tickets[0], "DEVICE G1")
	assert.Contains(t, result.Tickets[0], "1x Steak")
	assert.Contains(t, result.Tickets[1], "DEVICE MAIN")
	assert.Contains(t, result.Tickets[1], "1x Bread")
}

func writeScenario(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func TestLoadScenarioValidation(t *testing.T) {
	cases := map[string]string{
		"unknown field": `
name: x
description: d
flows: []
`,
		"missing description": `
name: x
flow: [{action: advance, minutes: 1}]
`,
		"undeclared order": `
name: x
description: d
flow: [{action: dispatch, order: "404"}]
`,
		"unknown action": `
name: x
description: d
flow: [{action: explode}]
`,
		"unknown status": `
name: x
description: d
orders: [{number: "1"}]
flow: [{action: transition, order: "1", to: flambeed}]
`,
		"bad target type": `
name: x
description: d
assignments: [{device: G1, target: t, type: station}]
flow: [{action: advance, minutes: 1}]
`,
		"duplicate order number": `
name: x
description: d
orders: [{number: "1"}, {number: "1"}]
flow: [{action: advance, minutes: 1}]
`,
	}
	for name, source := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, source))
			assert.Error(t, err)
		})
	}
}

func TestLoadScenarioRoundTrip(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "grill_fanout.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "grill_fanout", scenario.Name)
	assert.Equal(t, "MAIN", scenario.DefaultDevice)
	require.Len(t, scenario.Orders, 1)
	assert.Len(t, scenario.Orders[0].Items, 2)
	assert.Len(t, scenario.Flow, 4)
}
