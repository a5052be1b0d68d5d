package domain

import (
	"fmt"
	"regexp"
	"sort"

	"dario.cat/mergo"
)

// ParamType constrains the Go value a parameter accepts.
type ParamType string

const (
	ParamAny    ParamType = ""
	ParamString ParamType = "string"
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamBool   ParamType = "bool"
)

// Param declares one named parameter a node kind accepts: its type, an
// optional default injected when the caller omits it, and validation
// constraints applied to whatever value ends up bound.
type Param struct {
	Type     ParamType     `json:"type,omitempty" yaml:"type,omitempty"`
	Default  interface{}   `json:"default,omitempty" yaml:"default,omitempty"`
	Required bool          `json:"required,omitempty" yaml:"required,omitempty"`
	Min      *float64      `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64      `json:"max,omitempty" yaml:"max,omitempty"`
	Options  []interface{} `json:"options,omitempty" yaml:"options,omitempty"`
	Pattern  string        `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Validate checks a bound value against the parameter's constraints. A nil
// value is accepted only when the parameter is not required and carries no
// default.
func (p Param) Validate(name string, value interface{}) error {
	if value == nil {
		if p.Required {
			return fmt.Errorf("param %q is required", name)
		}
		return nil
	}

	switch p.Type {
	case ParamAny:
	case ParamString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("param %q must be a string, got %T", name, value)
		}
	case ParamBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("param %q must be a bool, got %T", name, value)
		}
	case ParamInt:
		if _, ok := asInt(value); !ok {
			return fmt.Errorf("param %q must be an integer, got %v", name, value)
		}
	case ParamFloat:
		if _, ok := asFloat(value); !ok {
			return fmt.Errorf("param %q must be a number, got %T", name, value)
		}
	default:
		return fmt.Errorf("param %q declares unknown type %q", name, p.Type)
	}

	if p.Min != nil || p.Max != nil {
		f, ok := asFloat(value)
		if !ok {
			return fmt.Errorf("param %q has numeric bounds but a non-numeric value %T", name, value)
		}
		if p.Min != nil && f < *p.Min {
			return fmt.Errorf("param %q value %v below minimum %v", name, value, *p.Min)
		}
		if p.Max != nil && f > *p.Max {
			return fmt.Errorf("param %q value %v above maximum %v", name, value, *p.Max)
		}
	}

	if len(p.Options) > 0 {
		found := false
		for _, opt := range p.Options {
			if equalParamValue(opt, value) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("param %q value %v not among allowed options", name, value)
		}
	}

	if p.Pattern != "" {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("param %q has a pattern but a non-string value %T", name, value)
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return fmt.Errorf("param %q declares invalid pattern: %v", name, err)
		}
		if !re.MatchString(s) {
			return fmt.Errorf("param %q value %q does not match pattern %s", name, s, p.Pattern)
		}
	}
	return nil
}

// ParamSet is the declared parameter schema of a node kind.
type ParamSet map[string]Param

// Validate checks every bound value against its declaration. Values with no
// declaration pass through unchecked; missing required parameters without a
// default fail.
func (ps ParamSet) Validate(values map[string]interface{}) error {
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		decl := ps[name]
		value, bound := values[name]
		if !bound {
			if decl.Default != nil {
				continue
			}
			if decl.Required {
				return fmt.Errorf("param %q is required", name)
			}
			continue
		}
		if err := decl.Validate(name, value); err != nil {
			return err
		}
	}
	return nil
}

// Apply validates values and returns a copy with declared defaults filled
// in for parameters the caller omitted.
func (ps ParamSet) Apply(values map[string]interface{}) (map[string]interface{}, error) {
	if err := ps.Validate(values); err != nil {
		return nil, err
	}
	out := cloneParams(values)
	if out == nil {
		out = map[string]interface{}{}
	}
	for name, decl := range ps {
		if _, bound := out[name]; !bound && decl.Default != nil {
			out[name] = decl.Default
		}
	}
	return out, nil
}

// MergeParams deep-merges override values over a base map. Nested maps are
// merged recursively; scalars and slices in overrides replace the base.
func MergeParams(base, overrides map[string]interface{}) (map[string]interface{}, error) {
	merged := cloneParams(base)
	if merged == nil {
		merged = map[string]interface{}{}
	}
	if len(overrides) == 0 {
		return merged, nil
	}
	if err := mergo.Merge(&merged, overrides, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge params: %w", err)
	}
	return merged, nil
}

// SweepGrid expands sweep axes into the cartesian product of their values,
// merged over the base parameters. Axes iterate in sorted name order with
// the last axis varying fastest, so the grid order is deterministic.
func SweepGrid(base map[string]interface{}, sweeps map[string][]interface{}) []map[string]interface{} {
	if len(sweeps) == 0 {
		return []map[string]interface{}{cloneParams(base)}
	}

	axes := make([]string, 0, len(sweeps))
	for name := range sweeps {
		axes = append(axes, name)
	}
	sort.Strings(axes)

	total := 1
	for _, name := range axes {
		if len(sweeps[name]) == 0 {
			return nil
		}
		total *= len(sweeps[name])
	}

	grid := make([]map[string]interface{}, 0, total)
	odometer := make([]int, len(axes))
	for {
		point := cloneParams(base)
		if point == nil {
			point = map[string]interface{}{}
		}
		for i, name := range axes {
			point[name] = sweeps[name][odometer[i]]
		}
		grid = append(grid, point)

		i := len(axes) - 1
		for i >= 0 {
			odometer[i]++
			if odometer[i] < len(sweeps[axes[i]]) {
				break
			}
			odometer[i] = 0
			i--
		}
		if i < 0 {
			return grid
		}
	}
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func asInt(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	case float32:
		if float64(v) == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

func equalParamValue(a, b interface{}) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return a == b
}
