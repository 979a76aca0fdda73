// Package plan loads YAML plan files describing a queue of shell-command steps.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	sferrors "github.com/vnykmshr/stepflow/pkg/common/errors"
	"github.com/vnykmshr/stepflow/pkg/common/validation"
)

const module = "plan"

// DefaultShell runs each step's command as `sh -c <run>`.
const DefaultShell = "sh"

// Duration is a time.Duration written in YAML as a Go duration string ("30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	if d == 0 {
		return "", nil
	}
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Step is one shell command.
type Step struct {
	Name    string            `yaml:"name,omitempty"`
	Run     string            `yaml:"run"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Skip    bool              `yaml:"skip,omitempty"`
	Dir     string            `yaml:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// Plan is a parsed plan file.
type Plan struct {
	Name       string   `yaml:"name,omitempty"`
	Mode       string   `yaml:"mode,omitempty"`
	Timeout    Duration `yaml:"timeout,omitempty"`
	Sequential bool     `yaml:"sequential,omitempty"`
	Shell      string   `yaml:"shell,omitempty"`
	Steps      []Step   `yaml:"steps"`
}

// Load reads and validates the plan at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a plan. Unknown keys are rejected.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, sferrors.NewValidationError(module, "steps", nil, "plan is empty")
		}
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that every step has a command and every duration is
// non-negative.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return sferrors.NewValidationError(module, "steps", 0, "plan has no steps").
			WithHint("add at least one step with a run command")
	}
	if err := validation.ValidateNonNegativeDuration(module, "timeout", p.Timeout.Std()); err != nil {
		return err
	}
	for i, s := range p.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if err := validation.ValidateNotEmpty(module, field+".run", s.Run); err != nil {
			return err
		}
		if err := validation.ValidateNonNegativeDuration(module, field+".timeout", s.Timeout.Std()); err != nil {
			return err
		}
	}
	return nil
}

// Marshal renders p as YAML.
func (p *Plan) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

func (p *Plan) shell() string {
	if p.Shell == "" {
		return DefaultShell
	}
	return p.Shell
}
