package algorithm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	assert.True(t, Equal(3, 3.0))
	assert.True(t, Equal("poly", "poly"))
	assert.True(t, Equal(nil, nil))
	assert.True(t, Equal([]any{"a"}, []any{"a"}))

	assert.False(t, Equal("3", 3))
	assert.False(t, Equal(true, 1))
	assert.False(t, Equal(nil, false))
	assert.False(t, Equal("poly", "rbf"))
}

func TestTruthy(t *testing.T) {
	for _, v := range []any{true, 1, -2.5, "x", []any{}} {
		assert.True(t, Truthy(v), "%v", v)
	}
	for _, v := range []any{nil, false, 0, 0.0, "", math.NaN()} {
		assert.False(t, Truthy(v), "%v", v)
	}
}

func TestValuesMergeDoesNotAlias(t *testing.T) {
	base := Values{"a": 1, "list": []any{"x"}}
	merged := base.Merge(Values{"b": 2})

	merged["list"].([]any)[0] = "changed"
	assert.Equal(t, "x", base["list"].([]any)[0])
	assert.Equal(t, 2, merged["b"])
	assert.NotContains(t, base, "b")
}

func TestRuleCheck(t *testing.T) {
	tests := []struct {
		name  string
		rule  Rule
		value any
		ok    bool
	}{
		{"required missing", Rule{Type: RuleRequired}, nil, false},
		{"required empty string", Rule{Type: RuleRequired}, "", false},
		{"required present", Rule{Type: RuleRequired}, 0, true},
		{"min below", Rule{Type: RuleMin, Value: 2}, 1, false},
		{"min equal", Rule{Type: RuleMin, Value: 2}, 2.0, true},
		{"min skips empty", Rule{Type: RuleMin, Value: 2}, nil, true},
		{"min counts list length", Rule{Type: RuleMin, Value: 1}, []any{}, false},
		{"max above", Rule{Type: RuleMax, Value: 10}, 11, false},
		{"max string length", Rule{Type: RuleMax, Value: 3}, "abcd", false},
		{"oneOf hit", Rule{Type: RuleOneOf, Value: []any{"a", "b"}}, "b", true},
		{"oneOf miss", Rule{Type: RuleOneOf, Value: []any{"a", "b"}}, "c", false},
		{"pattern match", Rule{Type: RulePattern, Value: "^[a-z]+$"}, "abc", true},
		{"pattern miss", Rule{Type: RulePattern, Value: "^[a-z]+$"}, "ab1", false},
		{"integer whole float", Rule{Type: RuleInteger}, 4.0, true},
		{"integer fraction", Rule{Type: RuleInteger}, 4.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tt.rule.Check("field", tt.value)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestRuleCustomMessage(t *testing.T) {
	msg, ok := Rule{Type: RuleMin, Value: 1, Message: "too small"}.Check("x", 0)
	assert.False(t, ok)
	assert.Equal(t, "too small", msg)

	msg, ok = Rule{Type: RuleRequired}.Check("depth", nil)
	assert.False(t, ok)
	assert.Equal(t, "depth is required", msg)
}

func TestConditionHolds(t *testing.T) {
	values := Values{"kernel": "poly", "degree": 3, "on": true}

	assert.True(t, Condition{Field: "kernel", Op: OpEq, Value: "poly"}.Holds(values))
	assert.True(t, Condition{Field: "kernel", Op: OpNe, Value: "rbf"}.Holds(values))
	assert.True(t, Condition{Field: "kernel", Op: OpIn, Value: []any{"poly", "rbf"}}.Holds(values))
	assert.True(t, Condition{Field: "kernel", Op: OpNotIn, Value: []any{"linear"}}.Holds(values))
	assert.True(t, Condition{Field: "on", Op: OpTruthy}.Holds(values))
	assert.True(t, Condition{Field: "missing", Op: OpFalsy}.Holds(values))
	assert.True(t, Condition{Field: "degree", Op: OpGte, Value: 3}.Holds(values))
	assert.False(t, Condition{Field: "degree", Op: OpGt, Value: 3}.Holds(values))
	assert.True(t, Condition{Field: "degree", Op: OpLt, Value: 3.5}.Holds(values))
	assert.False(t, Condition{Field: "kernel", Op: OpLte, Value: 3}.Holds(values))
}

func TestCrossFieldRuleLogisticPenalty(t *testing.T) {
	d, ok := Default().Get("logistic_regression")
	if !ok {
		t.Fatal("logistic_regression missing from catalog")
	}
	rule := d.Validation.CrossField[0]

	msg, ok := rule.Check(Values{"penalty": "l1", "solver": "lbfgs"})
	assert.False(t, ok)
	assert.Contains(t, msg, "l1")

	_, ok = rule.Check(Values{"penalty": "l1", "solver": "saga"})
	assert.True(t, ok)

	_, ok = rule.Check(Values{"penalty": "l2", "solver": "lbfgs"})
	assert.True(t, ok)
}
