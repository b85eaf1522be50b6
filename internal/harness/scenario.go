package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/phonebridge/internal/modemsim"
	"github.com/roach88/phonebridge/internal/radio"
)

// Scenario is a scripted conversation with the bridge: a simulated modem,
// the calls made against it, and assertions on the resulting trace.
type Scenario struct {
	// Name uniquely identifies this scenario. Also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// DefaultInstance is the instance the "default" alias resolves to.
	// Empty means phone0.
	DefaultInstance string `yaml:"default_instance,omitempty"`

	// Modem scripts the simulated downstream.
	Modem modemsim.Script `yaml:"modem"`

	// Steps run in order. Each step completes (or is confirmed to be
	// waiting on the clock) before the next starts.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and diagnostics.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scenario action. Exactly one of Call, Release, UnlockPIN,
// UnlockPUK or a bare Advance is set.
type Step struct {
	// Call is an opcode name such as OPEN_CHANNEL.
	Call string `yaml:"call,omitempty"`

	// Async submits the call with CallAsync; its callback is traced when it
	// runs.
	Async bool `yaml:"async,omitempty"`

	Instance string        `yaml:"instance,omitempty"`
	Args     yaml.Node     `yaml:"args,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Tag      string        `yaml:"tag,omitempty"`

	// Advance moves the fake clock forward. On a call or unlock step the
	// clock moves once the step is waiting on Timers armed timers.
	Advance time.Duration `yaml:"advance,omitempty"`
	Timers  int           `yaml:"timers,omitempty"`

	// Release answers every hung request for this opcode with Reply.
	Release string          `yaml:"release,omitempty"`
	Reply   *modemsim.Reply `yaml:"reply,omitempty"`

	UnlockPIN *string  `yaml:"unlock_pin,omitempty"`
	UnlockPUK *PUKStep `yaml:"unlock_puk,omitempty"`

	// Expect is compared with the rendered result of a synchronous call or
	// unlock.
	Expect *string `yaml:"expect,omitempty"`
}

// PUKStep supplies a PUK and the PIN that replaces the blocked one.
type PUKStep struct {
	PUK string `yaml:"puk"`
	PIN string `yaml:"pin"`
}

// Assertion validates the trace or the recorded diagnostics.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": some trace line contains Text
	// - "trace_order": lines containing each of Texts appear in order
	// - "trace_count": exactly Count lines contain Text
	// - "diag_count": exactly Count diagnostics of Kind were recorded
	Type string `yaml:"type"`

	Text  string   `yaml:"text,omitempty"`
	Texts []string `yaml:"texts,omitempty"`
	Kind  string   `yaml:"kind,omitempty"`
	Count int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertDiagCount     = "diag_count"
)

// kind names the step variant for validation and tracing.
func (s *Step) kind() string {
	switch {
	case s.Call != "":
		return "call"
	case s.Release != "":
		return "release"
	case s.UnlockPIN != nil:
		return "unlock_pin"
	case s.UnlockPUK != nil:
		return "unlock_puk"
	case s.Advance > 0:
		return "advance"
	}
	return ""
}

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

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
// Every problem is reported, not just the first.
func validateScenario(s *Scenario) error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if s.Description == "" {
		errs = append(errs, errors.New("description is required"))
	}
	if len(s.Steps) == 0 {
		errs = append(errs, errors.New("steps list is required and must be non-empty"))
	}

	for i := range s.Steps {
		if err := validateStep(&s.Steps[i]); err != nil {
			errs = append(errs, fmt.Errorf("steps[%d]: %w", i, err))
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(&s.Assertions[i]); err != nil {
			errs = append(errs, fmt.Errorf("assertions[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func validateStep(st *Step) error {
	set := 0
	for _, on := range []bool{st.Call != "", st.Release != "", st.UnlockPIN != nil, st.UnlockPUK != nil} {
		if on {
			set++
		}
	}
	if set > 1 {
		return errors.New("a step takes exactly one of call, release, unlock_pin, unlock_puk")
	}

	switch st.kind() {
	case "":
		return errors.New("empty step")
	case "call":
		if _, err := radio.ParseOpcode(st.Call); err != nil {
			return err
		}
		if st.Async && (st.Expect != nil || st.Advance > 0) {
			return errors.New("expect and advance are not available on async calls")
		}
	case "release":
		if _, err := radio.ParseOpcode(st.Release); err != nil {
			return err
		}
		if st.Reply == nil {
			return errors.New("release requires a reply")
		}
		if st.Advance > 0 {
			return errors.New("advance is not available on release steps")
		}
	}

	if st.Timeout < 0 || st.Advance < 0 || st.Timers < 0 {
		return errors.New("timeout, advance and timers must not be negative")
	}
	if st.Timers > 0 && st.Advance == 0 {
		return errors.New("timers requires advance")
	}
	return nil
}

func validateAssertion(a *Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Text == "" {
			return errors.New("trace_contains requires text")
		}
	case AssertTraceOrder:
		if len(a.Texts) < 2 {
			return errors.New("trace_order requires at least two texts")
		}
	case AssertTraceCount:
		if a.Text == "" {
			return errors.New("trace_count requires text")
		}
		if a.Count < 0 {
			return errors.New("trace_count count must not be negative")
		}
	case AssertDiagCount:
		if a.Kind == "" {
			return errors.New("diag_count requires kind")
		}
		if a.Count < 0 {
			return errors.New("diag_count count must not be negative")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
