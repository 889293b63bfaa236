package algorithm

import (
	"fmt"
	"math"
	"regexp"
)

// RuleType names a single-field validation rule.
type RuleType string

const (
	RuleRequired RuleType = "required"
	RuleMin      RuleType = "min"
	RuleMax      RuleType = "max"
	RuleOneOf    RuleType = "oneOf"
	RulePattern  RuleType = "pattern"
	RuleInteger  RuleType = "integer"
)

// Rule is a declarative constraint on one field's value. Value is the rule
// parameter: the bound for min/max, the allowed list for oneOf, the regular
// expression for pattern.
type Rule struct {
	Type    RuleType `yaml:"type" json:"type" validate:"required,oneof=required min max oneOf pattern integer"`
	Value   any      `yaml:"value,omitempty" json:"value,omitempty"`
	Message string   `yaml:"message,omitempty" json:"message,omitempty"`
}

// Check applies the rule to v and returns the error message when it fails.
// Rules other than required pass on a missing value; an empty list is still
// measured so min can demand a number of selections.
func (r Rule) Check(key string, v any) (string, bool) {
	if r.Type == RuleRequired {
		if isEmpty(v) {
			return r.message(fmt.Sprintf("%s is required", key)), false
		}
		return "", true
	}
	if v == nil || v == "" {
		return "", true
	}

	switch r.Type {
	case RuleMin:
		bound, _ := Number(r.Value)
		if m, ok := magnitude(v); ok && m < bound {
			return r.message(fmt.Sprintf("%s must be at least %v", key, r.Value)), false
		}
	case RuleMax:
		bound, _ := Number(r.Value)
		if m, ok := magnitude(v); ok && m > bound {
			return r.message(fmt.Sprintf("%s must be at most %v", key, r.Value)), false
		}
	case RuleOneOf:
		if !contains(members(r.Value), v) {
			return r.message(fmt.Sprintf("%s must be one of %v", key, r.Value)), false
		}
	case RulePattern:
		s, isString := v.(string)
		pattern, _ := r.Value.(string)
		re, err := regexp.Compile(pattern)
		if !isString || err != nil || !re.MatchString(s) {
			return r.message(fmt.Sprintf("%s has an invalid format", key)), false
		}
	case RuleInteger:
		n, ok := Number(v)
		if !ok || n != math.Trunc(n) {
			return r.message(fmt.Sprintf("%s must be a whole number", key)), false
		}
	}
	return "", true
}

func (r Rule) message(fallback string) string {
	if r.Message != "" {
		return r.Message
	}
	return fallback
}

// Operator is the comparison a Condition applies.
type Operator string

const (
	OpEq     Operator = "eq"
	OpNe     Operator = "ne"
	OpIn     Operator = "in"
	OpNotIn  Operator = "notIn"
	OpTruthy Operator = "truthy"
	OpFalsy  Operator = "falsy"
	OpGt     Operator = "gt"
	OpGte    Operator = "gte"
	OpLt     Operator = "lt"
	OpLte    Operator = "lte"
)

// Condition is a predicate over one field of a value map.
type Condition struct {
	Field string   `yaml:"field" json:"field" validate:"required"`
	Op    Operator `yaml:"op" json:"op" validate:"required,oneof=eq ne in notIn truthy falsy gt gte lt lte"`
	Value any      `yaml:"value,omitempty" json:"value,omitempty"`
}

// Holds evaluates the condition against values.
func (c Condition) Holds(values Values) bool {
	v := values[c.Field]
	switch c.Op {
	case OpEq:
		return Equal(v, c.Value)
	case OpNe:
		return !Equal(v, c.Value)
	case OpIn:
		return contains(members(c.Value), v)
	case OpNotIn:
		return !contains(members(c.Value), v)
	case OpTruthy:
		return Truthy(v)
	case OpFalsy:
		return !Truthy(v)
	}

	x, ok := Number(v)
	y, ok2 := Number(c.Value)
	if !ok || !ok2 {
		return false
	}
	switch c.Op {
	case OpGt:
		return x > y
	case OpGte:
		return x >= y
	case OpLt:
		return x < y
	case OpLte:
		return x <= y
	}
	return false
}

// CrossFieldRule constrains a combination of fields. It is violated when every
// When condition holds and at least one Require condition does not; the
// error is then reported against Field.
type CrossFieldRule struct {
	Field   string      `yaml:"field" json:"field" validate:"required"`
	Message string      `yaml:"message" json:"message" validate:"required"`
	When    []Condition `yaml:"when,omitempty" json:"when,omitempty" validate:"dive"`
	Require []Condition `yaml:"require" json:"require" validate:"required,min=1,dive"`
}

// Check returns the rule's message when values violate it.
func (r CrossFieldRule) Check(values Values) (string, bool) {
	for _, c := range r.When {
		if !c.Holds(values) {
			return "", true
		}
	}
	for _, c := range r.Require {
		if !c.Holds(values) {
			return r.Message, false
		}
	}
	return "", true
}

// fields lists every key the rule reads.
func (r CrossFieldRule) fields() []string {
	out := []string{r.Field}
	for _, c := range r.When {
		out = append(out, c.Field)
	}
	for _, c := range r.Require {
		out = append(out, c.Field)
	}
	return out
}
