// Package hyperparams evaluates an algorithm's hyperparameter form: which
// fields are visible, their defaults, and whether a set of values is valid.
// It is driven entirely by the declarative descriptors in the algorithm
// registry and knows nothing about individual algorithms.
package hyperparams

import (
	"fmt"
	"sort"
	"strings"

	"github.com/meikuraledutech/mlgraph/algorithm"
)

// Section splits a form into its always-shown and advanced parts.
type Section string

const (
	SectionMain     Section = "main"
	SectionAdvanced Section = "advanced"
)

// Context carries facts about the data a model will be trained on. It only
// feeds advisory warnings.
type Context struct {
	SampleCount        int  `json:"sampleCount"`
	FeatureCount       int  `json:"featureCount"`
	ClassImbalance     bool `json:"classImbalance"`
	UseCrossValidation bool `json:"useCrossValidation"`
	CVFolds            int  `json:"cvFolds"`
	// Scaled is set when an upstream step rescales features.
	Scaled bool `json:"scaled"`
}

// Result is the outcome of validating a set of values. Errors block
// execution; Warnings never do.
type Result struct {
	Valid    bool              `json:"valid"`
	Errors   map[string]string `json:"errors"`
	Warnings []string          `json:"warnings"`
}

const smallDatasetRows = 100

// Engine evaluates forms against a registry.
type Engine struct {
	registry *algorithm.Registry
}

// New returns an Engine backed by reg.
func New(reg *algorithm.Registry) *Engine {
	return &Engine{registry: reg}
}

// IsVisible reports whether f should be shown given the current values.
// Without DependsOn a field is always visible. With a DependsOn value the
// other field must equal it exactly; without one the other field only has to
// be truthy.
func IsVisible(f algorithm.Field, values algorithm.Values) bool {
	if f.DependsOn == nil {
		return true
	}
	current := values[f.DependsOn.Field]
	if f.DependsOn.Value != nil {
		return algorithm.Equal(current, f.DependsOn.Value)
	}
	return algorithm.Truthy(current)
}

// VisibleFields returns the fields of one section that are visible for
// values, in catalog order. Unknown algorithms have no fields.
func (e *Engine) VisibleFields(algorithmID string, values algorithm.Values, section Section) []algorithm.Field {
	d, ok := e.registry.Get(algorithmID)
	if !ok {
		return []algorithm.Field{}
	}

	out := make([]algorithm.Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		if sectionOf(f) != section {
			continue
		}
		if IsVisible(f, values) {
			out = append(out, f)
		}
	}
	return out
}

// Defaults returns one entry per field holding its default value.
func (e *Engine) Defaults(algorithmID string) algorithm.Values {
	d, ok := e.registry.Get(algorithmID)
	if !ok {
		return algorithm.Values{}
	}
	out := make(algorithm.Values, len(d.Fields))
	for _, f := range d.Fields {
		out[f.Key] = f.Default
	}
	return out.Clone()
}

// Validate checks values against the algorithm's field and cross-field rules.
// Hidden fields are skipped: the user cannot edit them, so their values never
// block a run. ctx may be nil.
func (e *Engine) Validate(algorithmID string, values algorithm.Values, ctx *Context) Result {
	res := Result{Valid: true, Errors: map[string]string{}, Warnings: []string{}}

	d, ok := e.registry.Get(algorithmID)
	if !ok {
		return res
	}

	for _, f := range d.Fields {
		if !IsVisible(f, values) {
			continue
		}
		if msg, failed := checkField(f, d.Validation.FieldRules[f.Key], values[f.Key]); failed {
			res.Errors[f.Key] = msg
		}
	}

	for _, rule := range d.Validation.CrossField {
		msg, ok := rule.Check(values)
		if ok {
			continue
		}
		if prev, exists := res.Errors[rule.Field]; exists {
			msg = prev + "; " + msg
		}
		res.Errors[rule.Field] = msg
	}

	if ctx != nil {
		res.Warnings = advisories(d, values, *ctx)
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// ErrorFields returns the keys of r.Errors in sorted order.
func (r Result) ErrorFields() []string {
	keys := make([]string, 0, len(r.Errors))
	for k := range r.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sectionOf(f algorithm.Field) Section {
	if f.Advanced {
		return SectionAdvanced
	}
	return SectionMain
}

// checkField runs the declared rules, then the kind constraints carried by
// the field itself. The first failure wins.
func checkField(f algorithm.Field, rules []algorithm.Rule, v any) (string, bool) {
	for _, rule := range rules {
		if msg, ok := rule.Check(f.Key, v); !ok {
			return msg, true
		}
	}
	if v == nil {
		return "", false
	}

	switch {
	case f.Kind.IsNumeric():
		n, ok := algorithm.Number(v)
		if !ok {
			return fmt.Sprintf("%s must be a number", f.Key), true
		}
		if f.Min != nil && n < *f.Min {
			return fmt.Sprintf("%s must be at least %v", f.Key, *f.Min), true
		}
		if f.Max != nil && n > *f.Max {
			return fmt.Sprintf("%s must be at most %v", f.Key, *f.Max), true
		}
	case f.Kind == algorithm.KindSwitch:
		if _, ok := v.(bool); !ok {
			return fmt.Sprintf("%s must be on or off", f.Key), true
		}
	case f.Kind == algorithm.KindMultiSelect:
		list, ok := v.([]any)
		if !ok {
			return fmt.Sprintf("%s must be a list", f.Key), true
		}
		for _, item := range list {
			if !f.HasOption(item) {
				return fmt.Sprintf("%s contains unknown option %v", f.Key, item), true
			}
		}
	case f.Kind.HasOptions():
		if !f.HasOption(v) {
			return fmt.Sprintf("%s must be one of %s", f.Key, optionList(f)), true
		}
	}
	return "", false
}

func optionList(f algorithm.Field) string {
	parts := make([]string, len(f.Options))
	for i, o := range f.Options {
		parts[i] = fmt.Sprint(o.Value)
	}
	return strings.Join(parts, ", ")
}

func advisories(d *algorithm.Descriptor, values algorithm.Values, ctx Context) []string {
	warnings := []string{}

	if ctx.SampleCount > 0 && ctx.SampleCount < smallDatasetRows {
		warnings = append(warnings, fmt.Sprintf("dataset has only %d rows; results may be unreliable", ctx.SampleCount))
	}
	if ctx.UseCrossValidation && ctx.SampleCount > 0 && ctx.CVFolds > ctx.SampleCount {
		warnings = append(warnings, fmt.Sprintf("%d folds exceed the %d available rows", ctx.CVFolds, ctx.SampleCount))
	}
	if ctx.ClassImbalance {
		if _, ok := d.Field("class_weight"); ok && !algorithm.Equal(values["class_weight"], "balanced") {
			warnings = append(warnings, "classes are imbalanced; consider class_weight = balanced")
		}
	}
	if d.Capabilities.RequiresScaling && !ctx.Scaled && ctx.FeatureCount > 0 {
		warnings = append(warnings, fmt.Sprintf("%s is sensitive to feature scale; add a scaling step upstream", d.Name))
	}
	return warnings
}
