package pricing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/diegoholiveira/jsonlogic"
	"github.com/meikuraledutech/estimate"
)

// Resolver answers fact and variable lookups for one evaluation. Variables
// resolve from walk bindings first, then from their JsonLogic definitions,
// then from a numeric fact of the same key.
type Resolver struct {
	facts     *estimate.FactStore
	bindings  map[string]float64
	defs      map[string]estimate.VariableDefinition
	resolved  map[string]float64
	resolving map[string]bool
}

// NewResolver creates a Resolver over facts. bindings may be nil.
func NewResolver(facts *estimate.FactStore, defs []estimate.VariableDefinition, bindings map[string]float64) *Resolver {
	r := &Resolver{
		facts:     facts,
		bindings:  bindings,
		defs:      make(map[string]estimate.VariableDefinition, len(defs)),
		resolved:  make(map[string]float64),
		resolving: make(map[string]bool),
	}
	for _, d := range defs {
		r.defs[d.Key] = d
	}
	if r.facts == nil {
		r.facts = estimate.NewFactStore(nil)
	}
	return r
}

// Fact returns a fact as a number.
func (r *Resolver) Fact(key string) (float64, error) {
	return r.facts.Number(key)
}

// Variable resolves a variable.
func (r *Resolver) Variable(key string) (float64, error) {
	if v, ok := r.bindings[key]; ok {
		return v, nil
	}
	if v, ok := r.resolved[key]; ok {
		return v, nil
	}
	if def, ok := r.defs[key]; ok {
		if r.resolving[key] {
			return 0, fmt.Errorf("%w: variable %q depends on itself", estimate.ErrCyclicGraph, key)
		}
		r.resolving[key] = true
		v, err := r.apply(def)
		delete(r.resolving, key)
		if err != nil {
			return 0, err
		}
		r.resolved[key] = v
		return v, nil
	}
	if _, ok := r.facts.Fact(key); ok {
		return r.facts.Number(key)
	}
	return 0, &estimate.MissingInputError{Kind: "variable", Key: key}
}

// apply evaluates a definition's expression with every referenced name bound.
func (r *Resolver) apply(def estimate.VariableDefinition) (float64, error) {
	var rule any
	if err := json.Unmarshal(def.Expression, &rule); err != nil {
		return 0, fmt.Errorf("%w: variable %q: %v", estimate.ErrInvalidOperand, def.Key, err)
	}

	data := make(map[string]any)
	for _, name := range varRefs(rule) {
		if v, ok := r.facts.Fact(name); ok {
			data[name] = v.Interface()
			continue
		}
		if _, isVar := r.defs[name]; isVar || hasKey(r.bindings, name) {
			v, err := r.Variable(name)
			if err != nil {
				return 0, err
			}
			data[name] = v
			continue
		}
		if _, isFact := r.facts.Definition(name); isFact {
			return 0, &estimate.MissingInputError{Kind: "fact", Key: name}
		}
		return 0, &estimate.MissingInputError{Kind: "variable", Key: name}
	}

	res, err := applyRule(rule, data)
	if err != nil {
		return 0, fmt.Errorf("variable %q: %w", def.Key, err)
	}
	v, err := toNumber(res)
	if err != nil {
		return 0, fmt.Errorf("variable %q: %w", def.Key, err)
	}
	return v, nil
}

func hasKey(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}

func applyRule(rule any, data map[string]any) (res any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = fmt.Errorf("%w: error applying rule %v", estimate.ErrInvalidOperand, rule)
		}
	}()
	return jsonlogic.ApplyInterface(rule, data)
}

func toNumber(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case bool:
		if t {
			f = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: expression produced %q", estimate.ErrTypeMismatch, t)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: expression produced %T", estimate.ErrTypeMismatch, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: expression produced a non-finite number", estimate.ErrTypeMismatch)
	}
	return f, nil
}

// varRefs returns the names read through "var" anywhere in rule, sorted.
func varRefs(rule any) []string {
	seen := make(map[string]bool)
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			for k, arg := range t {
				if k == "var" {
					if name, ok := varName(arg); ok {
						seen[name] = true
					}
					continue
				}
				walk(arg)
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		}
	}
	walk(rule)

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func varName(arg any) (string, bool) {
	if list, ok := arg.([]any); ok && len(list) > 0 {
		arg = list[0]
	}
	s, ok := arg.(string)
	return s, ok && s != ""
}

// ValidateVariable checks that a definition's expression is a JsonLogic rule.
func ValidateVariable(def estimate.VariableDefinition) error {
	if def.Key == "" {
		return fmt.Errorf("%w: variable without var_key", estimate.ErrInvalidOperand)
	}
	if len(def.Expression) == 0 || !jsonlogic.IsValid(bytes.NewReader(def.Expression)) {
		return fmt.Errorf("%w: variable %q has an invalid expression", estimate.ErrInvalidOperand, def.Key)
	}
	return nil
}
