package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gymlog/internal/diff"
	"github.com/roach88/gymlog/internal/snapshot"
)

// Scenario defines a reconciliation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Heartbeat toggles no-change events. Nil means enabled.
	Heartbeat *bool `yaml:"heartbeat,omitempty"`

	// Policy is the diff trigger policy. Empty means "always".
	Policy string `yaml:"policy,omitempty"`

	// Passes are reconciled in order, one batch each.
	Passes []Pass `yaml:"passes"`

	// Assertions validate the final event log and state.
	Assertions []Assertion `yaml:"assertions"`

	// baseDir resolves Pass.File.
	baseDir string
}

// Pass is one batch of provider records.
type Pass struct {
	// Records are inline provider records.
	Records []any `yaml:"records,omitempty"`

	// File is a batch file relative to the scenario file.
	File string `yaml:"file,omitempty"`

	// Expect checks the pass summary. Only set fields are compared.
	Expect *SummaryExpect `yaml:"expect,omitempty"`
}

// SummaryExpect is a subset match against reconcile.Summary.
type SummaryExpect struct {
	Inserted  *int `yaml:"inserted,omitempty"`
	Updated   *int `yaml:"updated,omitempty"`
	Unchanged *int `yaml:"unchanged,omitempty"`
	Skipped   *int `yaml:"skipped,omitempty"`
	Events    *int `yaml:"events,omitempty"`
	Dropped   *int `yaml:"dropped,omitempty"`
}

// Assertion validates the event log or final state.
type Assertion struct {
	// Type is one of event_contains, event_order, event_count, final_state.
	Type string `yaml:"type"`

	// Gym restricts event assertions to one gym id.
	Gym string `yaml:"gym,omitempty"`

	// Kind is the event kind (event_contains, event_count).
	Kind string `yaml:"kind,omitempty"`

	// Trainer is the expected trainer of an event_contains match.
	Trainer string `yaml:"trainer,omitempty"`

	// Fields are expected event attributes (event_contains), subset match.
	// Keys: points_delta, points, old_team, new_team, pass_id, seq.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Kinds is the expected kind order (event_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Count is the expected number of events (event_count).
	Count int `yaml:"count"`

	// Table, Where and Expect query stored state (final_state).
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertEventContains = "event_contains"
	AssertEventOrder    = "event_order"
	AssertEventCount    = "event_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.baseDir = filepath.Dir(path)

	for i, p := range scenario.Passes {
		if p.File == "" {
			continue
		}
		if _, err := os.Stat(scenario.resolve(p.File)); err != nil {
			return nil, fmt.Errorf("invalid scenario: passes[%d]: %w", i, err)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. File passes resolve against the
// working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict fields catch typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func (s *Scenario) resolve(path string) string {
	if filepath.IsAbs(path) || s.baseDir == "" {
		return path
	}
	return filepath.Join(s.baseDir, path)
}

// heartbeat returns the effective heartbeat setting.
func (s *Scenario) heartbeat() bool {
	return s.Heartbeat == nil || *s.Heartbeat
}

// policy returns the effective diff policy.
func (s *Scenario) policy() diff.Policy {
	if s.Policy == "" {
		return diff.PolicyAlways
	}
	return diff.Policy(s.Policy)
}

// rawRecords returns the pass's records as raw JSON.
func (s *Scenario) rawRecords(p Pass) ([]json.RawMessage, error) {
	if p.File != "" {
		return snapshot.ReadBatchFile(s.resolve(p.File))
	}
	return snapshot.ToRawRecords(p.Records)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Policy != "" {
		if _, err := diff.ParsePolicy(s.Policy); err != nil {
			return err
		}
	}
	if len(s.Passes) == 0 {
		return fmt.Errorf("passes list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, p := range s.Passes {
		hasRecords := len(p.Records) > 0
		if hasRecords == (p.File != "") {
			return fmt.Errorf("passes[%d]: exactly one of records or file is required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertEventContains, AssertEventCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: %s requires kind", index, a.Type)
		}
	case AssertEventOrder:
		if len(a.Kinds) < 2 {
			return fmt.Errorf("assertions[%d]: event_order requires at least 2 kinds", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: final_state requires table", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: final_state requires expect", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
