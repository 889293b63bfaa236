package pipeline

import "sort"

// Stage is the kind of node a pipeline belongs to.
type Stage string

const (
	StagePreprocessing      Stage = "preprocessing"
	StageFeatureEngineering Stage = "featureEngineering"
)

// OperationType names a transform.
type OperationType string

const (
	// Preprocessing.
	OpDropMissing    OperationType = "drop_missing"
	OpImpute         OperationType = "impute"
	OpScale          OperationType = "scale"
	OpEncode         OperationType = "encode"
	OpRemoveOutliers OperationType = "remove_outliers"
	OpDropColumns    OperationType = "drop_columns"
	OpDeduplicate    OperationType = "deduplicate"

	// Feature engineering.
	OpPolynomial   OperationType = "polynomial_features"
	OpBinning      OperationType = "binning"
	OpInteraction  OperationType = "interaction"
	OpLogTransform OperationType = "log_transform"
	OpDateExtract  OperationType = "date_extract"
	OpFormula      OperationType = "custom_formula"
)

type operationSpec struct {
	stage    Stage
	defaults map[string]any
}

var operationSpecs = map[OperationType]operationSpec{
	OpDropMissing:    {StagePreprocessing, map[string]any{"columns": []any{}, "threshold": 0.5}},
	OpImpute:         {StagePreprocessing, map[string]any{"columns": []any{}, "strategy": "mean", "fillValue": nil}},
	OpScale:          {StagePreprocessing, map[string]any{"columns": []any{}, "method": "standard"}},
	OpEncode:         {StagePreprocessing, map[string]any{"columns": []any{}, "method": "onehot", "dropFirst": false}},
	OpRemoveOutliers: {StagePreprocessing, map[string]any{"columns": []any{}, "method": "iqr", "factor": 1.5}},
	OpDropColumns:    {StagePreprocessing, map[string]any{"columns": []any{}}},
	OpDeduplicate:    {StagePreprocessing, map[string]any{"subset": []any{}, "keep": "first"}},

	OpPolynomial:   {StageFeatureEngineering, map[string]any{"columns": []any{}, "degree": 2, "interactionOnly": false}},
	OpBinning:      {StageFeatureEngineering, map[string]any{"column": "", "bins": 5, "strategy": "quantile"}},
	OpInteraction:  {StageFeatureEngineering, map[string]any{"columns": []any{}, "operator": "multiply"}},
	OpLogTransform: {StageFeatureEngineering, map[string]any{"columns": []any{}, "offset": 1}},
	OpDateExtract:  {StageFeatureEngineering, map[string]any{"column": "", "parts": []any{"year", "month", "day"}}},
	OpFormula:      {StageFeatureEngineering, map[string]any{"name": "", "expression": ""}},
}

// Supports reports whether t may be added to a pipeline of stage s.
func Supports(s Stage, t OperationType) bool {
	spec, ok := operationSpecs[t]
	return ok && spec.stage == s
}

// Types lists the operation types available to stage s, sorted.
func Types(s Stage) []OperationType {
	var out []OperationType
	for t, spec := range operationSpecs {
		if spec.stage == s {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultConfig returns a fresh copy of the default configuration for t.
func DefaultConfig(t OperationType) map[string]any {
	spec, ok := operationSpecs[t]
	if !ok {
		return map[string]any{}
	}
	return cloneConfig(spec.defaults)
}

// WarningType is the severity of one operation warning.
type WarningType string

const (
	WarningError   WarningType = "error"
	WarningWarning WarningType = "warning"
	WarningTip     WarningType = "tip"
)

// Warning is a message the preview backend attached to an operation.
type Warning struct {
	Type    WarningType `json:"type"`
	Message string      `json:"message"`
	Column  string      `json:"column,omitempty"`
}

// Operation is one ordered step of a pipeline. NewFeatureNames,
// DroppedColumns, RowsRemoved and Warnings come from the preview backend and
// are only carried here.
type Operation struct {
	ID              string         `json:"id"`
	Type            OperationType  `json:"type"`
	Order           int            `json:"order"`
	Config          map[string]any `json:"config"`
	NewFeatureNames []string       `json:"newFeatureNames"`
	DroppedColumns  []string       `json:"droppedColumns,omitempty"`
	RowsRemoved     int            `json:"rowsRemoved,omitempty"`
	Warnings        []Warning      `json:"warnings"`
}

func (o Operation) clone() Operation {
	o.Config = cloneConfig(o.Config)
	o.NewFeatureNames = append([]string{}, o.NewFeatureNames...)
	o.DroppedColumns = append([]string(nil), o.DroppedColumns...)
	o.Warnings = append([]Warning{}, o.Warnings...)
	return o
}

func (o Operation) hasWarning(t WarningType) bool {
	for _, w := range o.Warnings {
		if w.Type == t {
			return true
		}
	}
	return false
}

func cloneConfig(c map[string]any) map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		if s, ok := v.([]any); ok {
			v = append([]any{}, s...)
		}
		out[k] = v
	}
	return out
}
