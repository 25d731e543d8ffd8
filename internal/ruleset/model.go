// Package ruleset loads scoring models: the fuzzy-logic sets, their input
// and result variables, rule text and the combiners that turn defuzzed set
// values into output rasters.
package ruleset

import (
	"bytes"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pe-score/internal/fuzzy"
)

// Model is the on-disk form of a scoring model.
type Model struct {
	Name    string       `yaml:"name" json:"name"`
	NoData  NoDataSpec   `yaml:"nodata" json:"nodata"`
	Sets    []SetSpec    `yaml:"sets" json:"sets"`
	Outputs []OutputSpec `yaml:"outputs" json:"outputs"`
}

// NoDataSpec selects the missing-input policy for every set.
type NoDataSpec struct {
	Policy     string  `yaml:"policy" json:"policy"`
	Substitute float64 `yaml:"substitute" json:"substitute"`
}

// SetSpec is one fuzzy-logic set: a rule text over its own inputs and
// results.
type SetSpec struct {
	Name    string         `yaml:"name" json:"name"`
	Inputs  []VariableSpec `yaml:"inputs" json:"inputs"`
	Results []VariableSpec `yaml:"results" json:"results"`
	Rules   string         `yaml:"rules" json:"rules"`
	Defuzz  string         `yaml:"defuzz" json:"defuzz"`
}

// VariableSpec declares an input or result with its raw domain and curves.
type VariableSpec struct {
	Name   string      `yaml:"name" json:"name"`
	Min    float64     `yaml:"min" json:"min"`
	Max    float64     `yaml:"max" json:"max"`
	Curves []CurveSpec `yaml:"curves" json:"curves"`
}

// CurveSpec declares a membership curve. Params are keyed by the family's
// parameter names; piecewise curves use Segments instead.
type CurveSpec struct {
	Name     string             `yaml:"name" json:"name"`
	Type     string             `yaml:"type" json:"type"`
	Params   map[string]float64 `yaml:"params" json:"params"`
	Segments []SegmentSpec      `yaml:"segments" json:"segments"`
}

// SegmentSpec is one piece of a piecewise curve. A bezier segment without a
// control point bends through the midpoint of its ends.
type SegmentSpec struct {
	Kind   string       `yaml:"kind" json:"kind"`
	Start  fuzzy.Point  `yaml:"start" json:"start"`
	End    fuzzy.Point  `yaml:"end" json:"end"`
	Height float64      `yaml:"height" json:"height"`
	Ctrl   *fuzzy.Point `yaml:"ctrl" json:"ctrl"`
}

// OutputSpec combines defuzzed set values into one named output. Defuzz
// overrides the method for individual set values.
type OutputSpec struct {
	Name          string            `yaml:"name" json:"name"`
	Combine       string            `yaml:"combine" json:"combine"`
	DefaultDefuzz string            `yaml:"default_defuzz" json:"default_defuzz"`
	Defuzz        map[string]string `yaml:"defuzz" json:"defuzz"`
}

// Load reads and decodes a model file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ruleset: read %s", path)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "ruleset: %s", path)
	}
	return m, nil
}

// Parse decodes a model document. Unknown keys are rejected so typos in a
// model file surface at load time.
func Parse(data []byte) (*Model, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Model
	if err := dec.Decode(&m); err != nil {
		return nil, eris.Wrap(err, "ruleset: decode model")
	}
	return &m, nil
}

// LoadCompiled loads and compiles a model file.
func LoadCompiled(path string) (*Compiled, error) {
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	return m.Compile()
}
