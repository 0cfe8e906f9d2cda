package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the deterministic serialization of a scenario run.
type Snapshot struct {
	Scenario      string       `json:"scenario"`
	Trace         []TraceEvent `json:"trace"`
	Tickets       []string     `json:"tickets"`
	Notifications []string     `json:"notifications,omitempty"`
	Audit         []AuditLine  `json:"audit"`
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden. Regenerate goldens with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already-obtained result against the named
// golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	snapshot := Snapshot{
		Scenario:      name,
		Trace:         result.Trace,
		Tickets:       result.Tickets,
		Notifications: result.Notifications,
		Audit:         result.Audit,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshaling snapshot: %v", err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
