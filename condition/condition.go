// Package condition decodes and evaluates edge conditions and visibility
// rules. Conditions are JsonLogic decoded once into a closed tree: and, or,
// not and exists are evaluated here with three-valued logic, every other
// subexpression is a JsonLogic rule applied once the facts it reads are known.
package condition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/diegoholiveira/jsonlogic"
	"github.com/meikuraledutech/estimate"
)

// Op is the operator at the root of an expression.
type Op string

const (
	OpAlways Op = "always"
	OpAnd    Op = "and"
	OpOr     Op = "or"
	OpNot    Op = "!"
	OpExists Op = "exists"
	// OpRule is a JsonLogic leaf.
	OpRule Op = "rule"
)

// contains is shorthand for JsonLogic's in with the arguments swapped:
// {"contains": [{"var": k}, x]} is {"in": [x, {"var": k}]}.
const contains = "contains"

// scoped operators evaluate their later arguments against each list item, so
// only their first argument reads facts.
var scoped = map[string]bool{
	"some": true, "all": true, "none": true,
	"filter": true, "map": true, "reduce": true,
}

var mirrored = map[string]string{"<": ">", "<=": ">=", ">": "<", ">=": "<="}

// Expr is a decoded condition.
type Expr struct {
	Op Op
	// Args holds the operands of and, or and !.
	Args []Expr
	// Fact is the key tested by exists.
	Fact string
	// Rule is the JsonLogic rule of a leaf.
	Rule any
	// Reads lists the facts a leaf needs; the leaf is unknown while any is absent.
	Reads []string
	// Optional lists facts a leaf reads through a var default or missing.
	Optional []string

	order *ordinal
}

// ordinal is a fact-versus-literal ordering that compares enum facts by
// option ordinal instead of lexically.
type ordinal struct {
	op      string
	fact    string
	literal string
}

// Always is the condition of a default edge.
var Always = Expr{Op: OpAlways}

// Facts is the read side of a fact store.
type Facts interface {
	Fact(key string) (estimate.Value, bool)
	Definition(key string) (estimate.FactDefinition, bool)
}

// Decode parses raw into an Expr. Absent, null and {} decode to Always.
func Decode(raw json.RawMessage) (Expr, error) {
	if estimate.IsEmptyCondition(raw) {
		return Always, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Expr{}, fmt.Errorf("%w: %v", estimate.ErrInvalidCondition, err)
	}
	return parse(v)
}

// Validate reports whether raw decodes.
func Validate(raw json.RawMessage) error {
	_, err := Decode(raw)
	return err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", estimate.ErrInvalidCondition, fmt.Sprintf(format, args...))
}

func parse(v any) (Expr, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Expr{}, invalid("expected an object, got %T", v)
	}
	if len(m) == 0 {
		return Always, nil
	}
	if len(m) != 1 {
		return Expr{}, invalid("expression must have exactly one operator, got %d", len(m))
	}

	var key string
	var arg any
	for k, a := range m {
		key, arg = k, a
	}

	switch op := Op(key); op {
	case OpAnd, OpOr:
		list, ok := arg.([]any)
		if !ok || len(list) == 0 {
			return Expr{}, invalid("%q needs a non-empty list", op)
		}
		e := Expr{Op: op, Args: make([]Expr, 0, len(list))}
		for _, item := range list {
			sub, err := parse(item)
			if err != nil {
				return Expr{}, err
			}
			e.Args = append(e.Args, sub)
		}
		return e, nil

	case OpNot, "not":
		if list, ok := arg.([]any); ok {
			if len(list) != 1 {
				return Expr{}, invalid("%q takes one operand", key)
			}
			arg = list[0]
		}
		sub, err := parse(arg)
		if err != nil {
			return Expr{}, err
		}
		return Expr{Op: OpNot, Args: []Expr{sub}}, nil

	case OpExists:
		fact, err := factName(arg)
		if err != nil {
			return Expr{}, err
		}
		return Expr{Op: OpExists, Fact: fact}, nil
	}

	if key == contains {
		list, ok := arg.([]any)
		if !ok || len(list) != 2 {
			return Expr{}, invalid("%q takes two operands", key)
		}
		m = map[string]any{"in": []any{list[1], list[0]}}
	}
	return leaf(m)
}

func leaf(rule map[string]any) (Expr, error) {
	raw, err := json.Marshal(rule)
	if err != nil {
		return Expr{}, invalid("%v", err)
	}
	if !jsonlogic.IsValid(bytes.NewReader(raw)) {
		return Expr{}, invalid("not a JsonLogic rule: %s", raw)
	}

	need := make(map[string]bool)
	opt := make(map[string]bool)
	if err := scan(rule, need, opt); err != nil {
		return Expr{}, err
	}
	if len(need) == 0 && len(opt) == 0 {
		return Expr{}, invalid("rule reads no fact: %s", raw)
	}
	for k := range need {
		delete(opt, k)
	}
	return Expr{Op: OpRule, Rule: rule, Reads: sorted(need), Optional: sorted(opt), order: ordering(rule)}, nil
}

// scan collects the facts a rule reads. Facts read through a var with a
// default or named by missing and missing_some are optional.
func scan(v any, need, opt map[string]bool) error {
	switch t := v.(type) {
	case map[string]any:
		for op, arg := range t {
			switch {
			case op == "var":
				name, hasDefault, err := varArg(arg)
				if err != nil {
					return err
				}
				if hasDefault {
					opt[name] = true
				} else {
					need[name] = true
				}
			case op == "missing":
				names(arg, opt)
			case op == "missing_some":
				if list, ok := arg.([]any); ok && len(list) == 2 {
					names(list[1], opt)
				}
			case scoped[op]:
				if list, ok := arg.([]any); ok && len(list) > 0 {
					if err := scan(list[0], need, opt); err != nil {
						return err
					}
				}
			default:
				if err := scan(arg, need, opt); err != nil {
					return err
				}
			}
		}
	case []any:
		for _, item := range t {
			if err := scan(item, need, opt); err != nil {
				return err
			}
		}
	}
	return nil
}

func varArg(arg any) (name string, hasDefault bool, err error) {
	if list, ok := arg.([]any); ok {
		switch len(list) {
		case 1:
			arg = list[0]
		case 2:
			arg, hasDefault = list[0], true
		default:
			return "", false, invalid("var takes a fact key and an optional default")
		}
	}
	name, err = factName(arg)
	return name, hasDefault, err
}

func names(arg any, into map[string]bool) {
	switch t := arg.(type) {
	case string:
		into[t] = true
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				into[s] = true
			}
		}
	}
}

func factName(arg any) (string, error) {
	if list, ok := arg.([]any); ok && len(list) == 1 {
		arg = list[0]
	}
	s, ok := arg.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", invalid("fact reference must be a non-empty string")
	}
	return s, nil
}

func sorted(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ordering recognizes {"<": [{"var": k}, "literal"]} and its mirror.
func ordering(rule map[string]any) *ordinal {
	for op, arg := range rule {
		if _, ok := mirrored[op]; !ok {
			return nil
		}
		list, ok := arg.([]any)
		if !ok || len(list) != 2 {
			return nil
		}
		if fact, ok := plainVar(list[0]); ok {
			if lit, ok := list[1].(string); ok {
				return &ordinal{op: op, fact: fact, literal: lit}
			}
		}
		if fact, ok := plainVar(list[1]); ok {
			if lit, ok := list[0].(string); ok {
				return &ordinal{op: mirrored[op], fact: fact, literal: lit}
			}
		}
	}
	return nil
}

func plainVar(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	arg, ok := m["var"]
	if !ok {
		return "", false
	}
	name, hasDefault, err := varArg(arg)
	return name, err == nil && !hasDefault
}

// Eval reports whether the condition holds. A condition that hinges on a
// fact missing from facts is false.
func (e Expr) Eval(facts Facts) bool {
	return e.eval(facts) == yes
}

// truth is a three-valued result; unknown means an absent fact was read.
type truth int8

const (
	no truth = iota
	yes
	unknown
)

func of(b bool) truth {
	if b {
		return yes
	}
	return no
}

func (e Expr) eval(facts Facts) truth {
	switch e.Op {
	case OpAlways:
		return yes

	case OpAnd:
		out := yes
		for _, a := range e.Args {
			switch a.eval(facts) {
			case no:
				return no
			case unknown:
				out = unknown
			}
		}
		return out

	case OpOr:
		out := no
		for _, a := range e.Args {
			switch a.eval(facts) {
			case yes:
				return yes
			case unknown:
				out = unknown
			}
		}
		return out

	case OpNot:
		switch e.Args[0].eval(facts) {
		case yes:
			return no
		case no:
			return yes
		}
		return unknown

	case OpExists:
		_, ok := facts.Fact(e.Fact)
		return of(ok)

	case OpRule:
		return e.apply(facts)
	}
	return no
}

func (e Expr) apply(facts Facts) truth {
	data := make(map[string]any, len(e.Reads)+len(e.Optional))
	for _, k := range e.Reads {
		v, ok := facts.Fact(k)
		if !ok {
			return unknown
		}
		data[k] = v.Interface()
	}
	for _, k := range e.Optional {
		if v, ok := facts.Fact(k); ok {
			data[k] = v.Interface()
		}
	}

	if e.order != nil {
		if t, ok := e.order.eval(facts); ok {
			return t
		}
	}

	res, err := applyRule(e.Rule, data)
	if err != nil {
		return no
	}
	return of(truthy(res))
}

// eval orders an enum fact by option ordinal. It reports false when the fact
// is not an enum so the rule is applied as written.
func (o *ordinal) eval(facts Facts) (truth, bool) {
	def, ok := facts.Definition(o.fact)
	if !ok || def.Type != estimate.FactEnum {
		return no, false
	}
	v, _ := facts.Fact(o.fact)
	if len(v.Choices) != 1 {
		return no, true
	}
	a, okA := def.Option(v.Choices[0])
	b, okB := def.Option(o.literal)
	if !okA || !okB {
		return no, true
	}
	switch o.op {
	case "<":
		return of(a.Ordinal < b.Ordinal), true
	case "<=":
		return of(a.Ordinal <= b.Ordinal), true
	case ">":
		return of(a.Ordinal > b.Ordinal), true
	}
	return of(a.Ordinal >= b.Ordinal), true
}

// applyRule runs a rule through jsonlogic, which panics on operand shapes it
// does not expect.
func applyRule(rule any, data map[string]any) (res any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = fmt.Errorf("%w: error applying rule %v", estimate.ErrInvalidCondition, rule)
		}
	}()
	return jsonlogic.ApplyInterface(rule, data)
}

// truthy follows JsonLogic truthiness.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}
