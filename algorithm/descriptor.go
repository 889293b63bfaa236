package algorithm

// ProblemType is the learning task a dataset poses and an algorithm solves.
type ProblemType string

const (
	Classification ProblemType = "classification"
	Regression     ProblemType = "regression"
	Clustering     ProblemType = "clustering"
)

// Valid reports whether p is one of the known problem types.
func (p ProblemType) Valid() bool {
	switch p {
	case Classification, Regression, Clustering:
		return true
	}
	return false
}

// FieldKind selects which form control a hyperparameter field renders as and
// which kind-specific constraints apply to it.
type FieldKind string

const (
	KindSlider      FieldKind = "slider"
	KindSelect      FieldKind = "select"
	KindSwitch      FieldKind = "switch"
	KindNumber      FieldKind = "number"
	KindText        FieldKind = "text"
	KindMultiSelect FieldKind = "multiSelect"
	KindRadio       FieldKind = "radio"
)

// HasOptions reports whether fields of this kind choose from an option set.
func (k FieldKind) HasOptions() bool {
	return k == KindSelect || k == KindMultiSelect || k == KindRadio
}

// IsNumeric reports whether fields of this kind hold a number.
func (k FieldKind) IsNumeric() bool {
	return k == KindSlider || k == KindNumber
}

// Option is one choice of a select, radio or multiSelect field.
type Option struct {
	Value any    `yaml:"value" json:"value"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

// DependsOn makes a field visible only when another field has a given value.
// A nil Value means the other field only has to be truthy.
type DependsOn struct {
	Field string `yaml:"field" json:"field" validate:"required"`
	Value any    `yaml:"value,omitempty" json:"value,omitempty"`
}

// Field describes one hyperparameter input.
type Field struct {
	Key         string     `yaml:"key" json:"key" validate:"required"`
	Kind        FieldKind  `yaml:"kind" json:"kind" validate:"required,oneof=slider select switch number text multiSelect radio"`
	Label       string     `yaml:"label,omitempty" json:"label,omitempty"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Default     any        `yaml:"default" json:"default"`
	Advanced    bool       `yaml:"advanced,omitempty" json:"advanced,omitempty"`
	DependsOn   *DependsOn `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`

	// Slider and number constraints.
	Min  *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max  *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Step *float64 `yaml:"step,omitempty" json:"step,omitempty"`

	// Select, radio and multiSelect choices.
	Options []Option `yaml:"options,omitempty" json:"options,omitempty"`
}

// HasOption reports whether v is one of the field's option values.
func (f Field) HasOption(v any) bool {
	for _, o := range f.Options {
		if Equal(o.Value, v) {
			return true
		}
	}
	return false
}

// Capabilities are the static traits of an algorithm.
type Capabilities struct {
	ProblemTypes              []ProblemType `yaml:"problemTypes" json:"problemTypes" validate:"required,min=1,dive,oneof=classification regression clustering"`
	SupportsProbabilities     bool          `yaml:"supportsProbabilities" json:"supportsProbabilities"`
	SupportsFeatureImportance bool          `yaml:"supportsFeatureImportance" json:"supportsFeatureImportance"`
	SupportsMulticlass        bool          `yaml:"supportsMulticlass" json:"supportsMulticlass"`
	RequiresScaling           bool          `yaml:"requiresScaling" json:"requiresScaling"`
}

// Validation groups the declarative rules of a descriptor.
type Validation struct {
	FieldRules map[string][]Rule `yaml:"fieldRules,omitempty" json:"fieldRules,omitempty"`
	CrossField []CrossFieldRule  `yaml:"crossField,omitempty" json:"crossField,omitempty" validate:"dive"`
}

// SearchType is the sampling domain of a tunable field.
type SearchType string

const (
	SearchInt         SearchType = "int"
	SearchFloat       SearchType = "float"
	SearchCategorical SearchType = "categorical"
)

// SearchParam describes how automated tuning samples one field.
type SearchParam struct {
	Field   string     `yaml:"field" json:"field" validate:"required"`
	Type    SearchType `yaml:"type" json:"type" validate:"required,oneof=int float categorical"`
	Low     float64    `yaml:"low,omitempty" json:"low,omitempty"`
	High    float64    `yaml:"high,omitempty" json:"high,omitempty"`
	Log     bool       `yaml:"log,omitempty" json:"log,omitempty"`
	Choices []any      `yaml:"choices,omitempty" json:"choices,omitempty"`
}

// CostFormula prices one training run: Base + PerSample*samples.
type CostFormula struct {
	Base      float64 `yaml:"base" json:"base" validate:"gte=0"`
	PerSample float64 `yaml:"perSample" json:"perSample" validate:"gte=0"`
}

// Descriptor is the registry entry for one algorithm. Descriptors are shared
// process-wide and must not be modified after the registry is built.
type Descriptor struct {
	ID           string        `yaml:"id" json:"id" validate:"required"`
	Name         string        `yaml:"name" json:"name" validate:"required"`
	Description  string        `yaml:"description,omitempty" json:"description,omitempty"`
	Capabilities Capabilities  `yaml:"capabilities" json:"capabilities"`
	Fields       []Field       `yaml:"hyperparameters" json:"hyperparameters" validate:"dive"`
	Validation   Validation    `yaml:"validation" json:"validation"`
	SearchSpace  []SearchParam `yaml:"searchSpace,omitempty" json:"searchSpace,omitempty" validate:"dive"`
	Cost         CostFormula   `yaml:"cost" json:"cost"`

	SupportedMetrics []string `yaml:"supportedMetrics" json:"supportedMetrics" validate:"required,min=1"`
	DefaultMetrics   []string `yaml:"defaultMetrics" json:"defaultMetrics"`
	SupportedPlots   []string `yaml:"supportedPlots" json:"supportedPlots" validate:"required,min=1"`
	DefaultPlots     []string `yaml:"defaultPlots" json:"defaultPlots"`
}

// Field returns the field with the given key.
func (d *Descriptor) Field(key string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Supports reports whether the algorithm can solve problem type p.
func (d *Descriptor) Supports(p ProblemType) bool {
	for _, pt := range d.Capabilities.ProblemTypes {
		if pt == p {
			return true
		}
	}
	return false
}

// Tunable returns the search parameters whose field exists on the descriptor.
func (d *Descriptor) Tunable() []SearchParam {
	out := make([]SearchParam, 0, len(d.SearchSpace))
	for _, sp := range d.SearchSpace {
		if _, ok := d.Field(sp.Field); ok {
			out = append(out, sp)
		}
	}
	return out
}
