// Package config loads dispatch engine configuration from CUE files. The
// embedded schema supplies validation and defaults; a user file only has to
// state what differs.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/platefire/expedite/internal/order"
	"github.com/platefire/expedite/internal/routing"
)

//go:embed schema.cue
var schemaSource string

// Retry bounds ticket delivery attempts.
type Retry struct {
	Attempts         int `json:"attempts"`
	BackoffMs        int `json:"backoff_ms"`
	AttemptTimeoutMs int `json:"attempt_timeout_ms"`
}

// Backoff returns the delay between delivery attempts.
func (r Retry) Backoff() time.Duration { return time.Duration(r.BackoffMs) * time.Millisecond }

// AttemptTimeout returns the per-attempt delivery deadline.
func (r Retry) AttemptTimeout() time.Duration {
	return time.Duration(r.AttemptTimeoutMs) * time.Millisecond
}

// Device mirrors routing.Device in config shape.
type Device struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	StationRole string `json:"station_role"`
	Online      bool   `json:"online"`
}

// Assignment is a single routing tuple in config shape.
type Assignment struct {
	DeviceID   string `json:"device_id"`
	TargetID   string `json:"target_id"`
	TargetType string `json:"target_type"`
}

// Config is the decoded, validated engine configuration.
type Config struct {
	Devices                  []Device       `json:"devices"`
	DefaultDevice            string         `json:"default_device"`
	Assignments              []Assignment   `json:"assignments"`
	OverdueMinutes           map[string]int `json:"overdue_minutes"`
	UrgentPriority           int            `json:"urgent_priority"`
	Retry                    Retry          `json:"retry"`
	SchedulerIntervalSeconds int            `json:"scheduler_interval_seconds"`
}

// Thresholds converts the configured overdue minutes to engine thresholds.
func (c *Config) Thresholds() order.OverdueThresholds {
	t := make(order.OverdueThresholds, len(c.OverdueMinutes))
	for typ, minutes := range c.OverdueMinutes {
		t[order.Type(typ)] = time.Duration(minutes) * time.Minute
	}
	return t
}

// SchedulerInterval returns the scan period for the notification loop.
func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.SchedulerIntervalSeconds) * time.Second
}

// RoutingDevices converts the configured devices to registry form.
func (c *Config) RoutingDevices() []routing.Device {
	out := make([]routing.Device, 0, len(c.Devices))
	for _, d := range c.Devices {
		out = append(out, routing.Device{
			ID:          d.ID,
			Name:        d.Name,
			StationRole: d.StationRole,
			Online:      d.Online,
		})
	}
	return out
}

// Default returns the configuration with every schema default applied.
func Default() (*Config, error) {
	return decode(schemaSource)
}

// Load reads a CUE config file, unifies it with the schema, and decodes it.
// Schema violations (unknown fields, wrong types, out-of-range values)
// fail loudly here rather than misconfiguring the engine at runtime.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}

	instances := load.Instances([]string{path}, &load.Config{})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, inst.Err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling embedded schema: %w", err)
	}

	user := ctx.BuildInstance(inst)
	if err := user.Err(); err != nil {
		return nil, fmt.Errorf("building %s: %w", path, err)
	}

	unified := schema.Unify(user)
	if err := unified.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func decode(source string) (*Config, error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(source)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding schema defaults: %w", err)
	}
	return &cfg, nil
}

// check enforces the cross-field rules CUE cannot express locally.
func (c *Config) check() error {
	known := make(map[string]bool, len(c.Devices))
	for _, d := range c.Devices {
		if known[d.ID] {
			return fmt.Errorf("duplicate device id %q", d.ID)
		}
		known[d.ID] = true
	}
	if c.DefaultDevice != "" && len(c.Devices) > 0 && !known[c.DefaultDevice] {
		return fmt.Errorf("default_device %q is not a declared device", c.DefaultDevice)
	}
	for _, a := range c.Assignments {
		if len(c.Devices) > 0 && !known[a.DeviceID] {
			return fmt.Errorf("assignment references undeclared device %q", a.DeviceID)
		}
	}
	return nil
}
