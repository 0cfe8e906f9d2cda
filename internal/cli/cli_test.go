package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platefire/expedite/internal/audit"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "validate", "whatever.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestValidateCommand(t *testing.T) {
	path := writeFile(t, "good.cue", `
devices: [{id: "G1"}, {id: "MAIN"}]
default_device: "MAIN"
assignments: [{device_id: "G1", target_id: "cat-grill", target_type: "category"}]
`)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
	assert.Contains(t, out, "devices:        2")
	assert.Contains(t, out, "default device: MAIN")
}

func TestValidateCommandJSON(t *testing.T) {
	path := writeFile(t, "good.cue", `default_device: ""`)

	out, err := execute(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidateCommandFailure(t *testing.T) {
	path := writeFile(t, "bad.cue", `urgent_priority: "extremely"`)

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E_CONFIG")
}

func TestSimulateCommand(t *testing.T) {
	path := writeFile(t, "scenario.yaml", `
name: bar_route
description: a single drink routed to the bar printer
default_device: MAIN
assignments:
  - {device: BAR, target: negroni, type: item}
orders:
  - number: "7"
    items:
      - {menu_item: negroni, name: Negroni}
flow:
  - {action: create, order: "7"}
  - {action: dispatch, order: "7"}
`)

	out, err := execute(t, "simulate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "scenario bar_route: PASS")
	assert.Contains(t, out, "DEVICE BAR")
	assert.Contains(t, out, "1x Negroni")
}

func TestSimulateCommandWithConfig(t *testing.T) {
	cfgPath := writeFile(t, "engine.cue", `
devices: [{id: "HOT"}, {id: "PASS"}]
default_device: "PASS"
assignments: [{device_id: "HOT", target_id: "cat-hot", target_type: "category"}]
`)
	scenarioPath := writeFile(t, "scenario.yaml", `
name: cfg_route
description: config-supplied routing
orders:
  - number: "12"
    items:
      - {menu_item: soup, category: cat-hot, name: Soup}
flow:
  - {action: create, order: "12"}
  - {action: dispatch, order: "12"}
`)

	out, err := execute(t, "simulate", scenarioPath, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "scenario cfg_route: PASS")
	assert.Contains(t, out, "DEVICE HOT")
}

func TestSimulateCommandFailingExpectation(t *testing.T) {
	path := writeFile(t, "scenario.yaml", `
name: wrong_expect
description: expects an error that never happens
orders:
  - number: "7"
flow:
  - {action: create, order: "7", expect: {error: DUPLICATE_ORDER_NUMBER}}
`)

	out, err := execute(t, "simulate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL")
}

func TestSimulateCommandBadScenario(t *testing.T) {
	path := writeFile(t, "scenario.yaml", `name: x`)

	_, err := execute(t, "simulate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func seedAuditDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := audit.Open(path)
	require.NoError(t, err)
	defer store.Close()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, action := range []audit.Action{audit.ActionCreated, audit.ActionStatusChanged} {
		require.NoError(t, store.Append(context.Background(), audit.Entry{
			ID:          "e" + string(rune('1'+i)),
			OrderID:     "o1",
			OrderNumber: "1001",
			Action:      action,
			Level:       audit.LevelInfo,
			Description: "seeded " + string(action),
			PerformedBy: "u-1",
			Seq:         int64(i + 1),
			Timestamp:   at.Add(time.Duration(i) * time.Minute),
		}))
	}
	return path
}

func TestAuditCommand(t *testing.T) {
	db := seedAuditDB(t)

	out, err := execute(t, "audit", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "statusChanged")
	assert.Contains(t, out, "#1001")
	assert.Contains(t, out, "2 entries")
}

func TestAuditCommandFilters(t *testing.T) {
	db := seedAuditDB(t)

	out, err := execute(t, "audit", "--db", db, "--action", "created")
	require.NoError(t, err)
	assert.Contains(t, out, "1 entries")

	out, err = execute(t, "audit", "--db", db, "--since", "2025-06-02")
	require.NoError(t, err)
	assert.Contains(t, out, "no matching entries")
}

func TestAuditCommandMissingDB(t *testing.T) {
	t.Setenv("EXPEDITE_DB", "")

	_, err := execute(t, "audit")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestAnalyticsCommand(t *testing.T) {
	db := seedAuditDB(t)

	out, err := execute(t, "analytics", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "total operations: 2")
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "u-1")
}

func TestParseTimeFlag(t *testing.T) {
	got, err := parseTimeFlag("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseTimeFlag("2025-06-01T08:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 8, got.Hour())

	_, err = parseTimeFlag("yesterday")
	assert.Error(t, err)
}
