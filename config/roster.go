package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/roundtable/core"
)

// Roster is a YAML participant file:
//
//	topic: Should cities ban cars?
//	user_participates: true
//	bots:
//	  - name: Alice
//	    role: urban planner
//	    description: Pragmatic, data driven.
type Roster struct {
	core.ParticipantSet `yaml:",inline"`

	Topic string `yaml:"topic"`
}

// LoadRoster reads and validates a roster file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes and validates roster YAML.
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	if r.Bots == nil {
		r.Bots = []core.Bot{}
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	return &r, nil
}
