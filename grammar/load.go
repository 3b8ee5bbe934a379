package grammar

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/verdantlab/thicket/plant"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// ruleFile is the on-disk schema. Kinds are names, angles are degrees.
type ruleFile struct {
	Rules []struct {
		Name     string `yaml:"name"`
		Kind     string `yaml:"kind"`
		Priority int    `yaml:"priority"`
		ApexOnly bool   `yaml:"apex_only"`
		When     When   `yaml:"when"`
		Then     struct {
			Spawn []struct {
				Kind         string  `yaml:"kind"`
				PitchDeg     float64 `yaml:"pitch_deg"`
				YawDeg       float64 `yaml:"yaw_deg"`
				YawJitterDeg float64 `yaml:"yaw_jitter_deg"`
				Length       float64 `yaml:"length"`
				Reserve      float64 `yaml:"reserve"`
			} `yaml:"spawn"`
			Prune       bool    `yaml:"prune"`
			ReserveCost float64 `yaml:"reserve_cost"`
		} `yaml:"then"`
	} `yaml:"rules"`
}

// Load reads a rule table from a YAML file. If path is empty the embedded
// default species is used. Errors here are startup faults.
func Load(path string) (*Table, error) {
	data := defaultRulesYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading rules file: %w", err)
		}
	}
	return parse(data)
}

// Default returns the embedded default rule table.
func Default() *Table {
	t, err := parse(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("grammar: embedded rules invalid: %v", err))
	}
	return t
}

func parse(data []byte) (*Table, error) {
	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	if len(rf.Rules) == 0 {
		return nil, fmt.Errorf("parsing rules: no rules defined")
	}

	rules := make([]Rule, 0, len(rf.Rules))
	for _, fr := range rf.Rules {
		kind, err := plant.ParseKind(fr.Kind)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", fr.Name, err)
		}
		r := Rule{
			Name:     fr.Name,
			Kind:     kind,
			Priority: fr.Priority,
			ApexOnly: fr.ApexOnly,
			When:     fr.When,
			Then: Then{
				Prune:       fr.Then.Prune,
				ReserveCost: fr.Then.ReserveCost,
			},
		}
		for _, sp := range fr.Then.Spawn {
			spKind, err := plant.ParseKind(sp.Kind)
			if err != nil {
				return nil, fmt.Errorf("rule %q spawn: %w", fr.Name, err)
			}
			r.Then.Spawn = append(r.Then.Spawn, SpawnSpec{
				Kind:      spKind,
				Pitch:     sp.PitchDeg * math.Pi / 180,
				Yaw:       sp.YawDeg * math.Pi / 180,
				YawJitter: sp.YawJitterDeg * math.Pi / 180,
				Length:    sp.Length,
				Reserve:   sp.Reserve,
			})
		}
		rules = append(rules, r)
	}

	return NewTable(rules)
}
