package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platefire/expedite/internal/order"
	"github.com/platefire/expedite/internal/routing"
)

// defaultClock keeps golden files stable when a scenario omits clock.
var defaultClock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so a typo fails the scenario instead of silently skipping an
// assertion.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow is required and must be non-empty")
	}

	if s.Clock != "" {
		if _, err := time.Parse(time.RFC3339, s.Clock); err != nil {
			return fmt.Errorf("clock: %w", err)
		}
	}

	numbers := make(map[string]bool, len(s.Orders))
	for _, o := range s.Orders {
		if o.Number == "" {
			return fmt.Errorf("every order needs a number")
		}
		if numbers[o.Number] {
			return fmt.Errorf("duplicate order number %q", o.Number)
		}
		if o.Type != "" {
			switch order.Type(o.Type) {
			case order.TypeDineIn, order.TypeTakeaway, order.TypeDelivery, order.TypeCatering:
			default:
				return fmt.Errorf("order %s: unknown type %q", o.Number, o.Type)
			}
		}
		numbers[o.Number] = true
	}

	for _, a := range s.Assignments {
		if a.Device == "" || a.Target == "" {
			return fmt.Errorf("assignments need device and target")
		}
		if !routing.TargetType(a.Type).Valid() {
			return fmt.Errorf("assignment %s→%s: unknown target type %q", a.Device, a.Target, a.Type)
		}
	}

	for i, step := range s.Flow {
		switch step.Action {
		case "create", "transition", "setUrgent", "dispatch", "reprint":
			if step.Order == "" {
				return fmt.Errorf("flow[%d] %s: order is required", i, step.Action)
			}
			if !numbers[step.Order] {
				return fmt.Errorf("flow[%d] %s: order %q is not declared", i, step.Action, step.Order)
			}
			if step.Action == "transition" && !order.Status(step.To).Valid() {
				return fmt.Errorf("flow[%d] transition: unknown status %q", i, step.To)
			}
		case "advance":
			if step.Minutes <= 0 {
				return fmt.Errorf("flow[%d] advance: minutes must be positive", i)
			}
		case "scan":
		default:
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Action)
		}
	}
	return nil
}

func (s *Scenario) startTime() time.Time {
	if s.Clock == "" {
		return defaultClock
	}
	t, _ := time.Parse(time.RFC3339, s.Clock)
	return t.UTC()
}
