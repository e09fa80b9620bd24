package incident

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/rampart/internal/alert"
)

// Offsets are the per-milestone deadlines a severity earns, measured from
// incident creation.
type Offsets struct {
	Acknowledge time.Duration `yaml:"-"`
	Investigate time.Duration `yaml:"-"`
	Resolve     time.Duration `yaml:"-"`
}

// UnmarshalYAML parses offsets written as Go duration strings ("15m", "4h").
func (o *Offsets) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Acknowledge string `yaml:"acknowledge"`
		Investigate string `yaml:"investigate"`
		Resolve     string `yaml:"resolve"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	var err error
	if o.Acknowledge, err = time.ParseDuration(raw.Acknowledge); err != nil {
		return fmt.Errorf("acknowledge offset: %w", err)
	}
	if o.Investigate, err = time.ParseDuration(raw.Investigate); err != nil {
		return fmt.Errorf("investigate offset: %w", err)
	}
	if o.Resolve, err = time.ParseDuration(raw.Resolve); err != nil {
		return fmt.Errorf("resolve offset: %w", err)
	}
	return nil
}

// Policy maps severity to SLA offsets. It is configuration, not code: the
// shipped defaults are a starting point, and deployments override them
// with a YAML file.
type Policy map[alert.Severity]Offsets

// DefaultPolicy returns the built-in severity table.
func DefaultPolicy() Policy {
	return Policy{
		alert.SeverityCritical: {Acknowledge: 15 * time.Minute, Investigate: time.Hour, Resolve: 4 * time.Hour},
		alert.SeverityHigh:     {Acknowledge: 30 * time.Minute, Investigate: 2 * time.Hour, Resolve: 8 * time.Hour},
		alert.SeverityMedium:   {Acknowledge: time.Hour, Investigate: 4 * time.Hour, Resolve: 24 * time.Hour},
		alert.SeverityLow:      {Acknowledge: 4 * time.Hour, Investigate: 8 * time.Hour, Resolve: 72 * time.Hour},
		alert.SeverityInfo:     {Acknowledge: 8 * time.Hour, Investigate: 24 * time.Hour, Resolve: 168 * time.Hour},
	}
}

// LoadPolicy reads a severity→offsets table from a YAML file, e.g.:
//
//	critical:
//	  acknowledge: 15m
//	  investigate: 1h
//	  resolve: 4h
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is from trusted config, not user input
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var raw map[string]Offsets
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	p := make(Policy, len(raw))
	for sev, off := range raw {
		p[alert.Severity(sev)] = off
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the table covers every severity with sane, ordered
// offsets.
func (p Policy) Validate() error {
	for _, sev := range []alert.Severity{
		alert.SeverityCritical, alert.SeverityHigh, alert.SeverityMedium, alert.SeverityLow, alert.SeverityInfo,
	} {
		off, ok := p[sev]
		if !ok {
			return fmt.Errorf("sla policy: severity %q missing", sev)
		}
		if off.Acknowledge <= 0 || off.Investigate <= 0 || off.Resolve <= 0 {
			return fmt.Errorf("sla policy: severity %q has non-positive offsets", sev)
		}
		if off.Acknowledge > off.Investigate || off.Investigate > off.Resolve {
			return fmt.Errorf("sla policy: severity %q offsets out of order", sev)
		}
	}
	return nil
}

// offsetsFor falls back to the medium row for unknown severities so a
// malformed escalation still gets deadlines.
func (p Policy) offsetsFor(sev alert.Severity) Offsets {
	if off, ok := p[sev]; ok {
		return off
	}
	return p[alert.SeverityMedium]
}
