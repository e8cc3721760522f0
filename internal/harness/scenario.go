package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted session: seeded history, a list of steps and the
// assertions that must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// TTLDays overrides the hosting lifetime. Zero keeps the default.
	TTLDays int `yaml:"ttl_days,omitempty"`

	// ReturnHomeTicks overrides the fatal-session delay. Nil keeps the default.
	ReturnHomeTicks *int `yaml:"return_home_ticks,omitempty"`

	// History is written to the store before the first step.
	History []HistoryStep `yaml:"history,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final events and state.
	Assertions []Assertion `yaml:"assertions"`
}

// HistoryStep seeds one history entry.
type HistoryStep struct {
	CloudID string `yaml:"cloud_id"`
	Name    string `yaml:"name"`
}

// Step is one scenario action. Only the fields relevant to Action are read.
type Step struct {
	Action string `yaml:"action"`

	Pose    []float64 `yaml:"pose,omitempty"`
	OverUI  bool      `yaml:"over_ui,omitempty"`
	Miss    bool      `yaml:"miss,omitempty"`
	Name    string    `yaml:"name,omitempty"`
	Anchor  int       `yaml:"anchor,omitempty"`
	State   string    `yaml:"state,omitempty"`
	CloudID string    `yaml:"cloud_id,omitempty"`
	IDs     []string  `yaml:"ids,omitempty"`
	Status  string    `yaml:"status,omitempty"`
	Message string    `yaml:"message,omitempty"`
	Count   int       `yaml:"count,omitempty"`

	// ExpectError is the engine error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step actions.
const (
	StepPlace           = "place"
	StepConfirmName     = "confirm_name"
	StepCancelNaming    = "cancel_naming"
	StepHostAll         = "host_all"
	StepResolveAll      = "resolve_all"
	StepClear           = "clear"
	StepCompleteHost    = "complete_host"
	StepCompleteResolve = "complete_resolve"
	StepFailNext        = "fail_next"
	StepTracking        = "tracking"
	StepFatal           = "fatal"
	StepTick            = "tick"
)

// Assertion validates the final events or state.
type Assertion struct {
	// Type is one of event_count, event_order, history, expr.
	Type string `yaml:"type"`

	// Kind and Count are used by event_count.
	Kind  string `yaml:"kind,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Kinds is the expected order for event_order.
	Kinds []string `yaml:"kinds,omitempty"`

	// CloudIDs is the expected history for history.
	CloudIDs []string `yaml:"cloud_ids,omitempty"`

	// Expr is a boolean expression for expr.
	Expr string `yaml:"expr,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount = "event_count"
	AssertEventOrder = "event_order"
	AssertHistory    = "history"
	AssertExpr       = "expr"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with unknown fields rejected.
func ParseScenario(data []byte) (*Scenario, error) {
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

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, h := range s.History {
		if h.CloudID == "" {
			return fmt.Errorf("history[%d]: cloud_id is required", i)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Action {
	case StepPlace:
		if len(step.Pose) != 3 {
			return fmt.Errorf("place needs pose [x, y, z]")
		}
	case StepCompleteHost:
		if step.Anchor <= 0 {
			return fmt.Errorf("complete_host needs anchor")
		}
		if step.State == "" {
			return fmt.Errorf("complete_host needs state")
		}
	case StepCompleteResolve:
		if step.CloudID == "" || step.State == "" {
			return fmt.Errorf("complete_resolve needs cloud_id and state")
		}
	case StepFailNext:
		if step.State == "" {
			return fmt.Errorf("fail_next needs state")
		}
	case StepTracking:
		if step.Status == "" {
			return fmt.Errorf("tracking needs status")
		}
	case StepConfirmName, StepCancelNaming, StepHostAll, StepResolveAll,
		StepClear, StepFatal, StepTick:
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	if step.Count < 0 {
		return fmt.Errorf("count must be non-negative")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertEventCount:
		if a.Kind == "" {
			return fmt.Errorf("kind is required for event_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for event_count")
		}
	case AssertEventOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("kinds list is required for event_order")
		}
	case AssertHistory:
	case AssertExpr:
		if a.Expr == "" {
			return fmt.Errorf("expr is required for expr")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
