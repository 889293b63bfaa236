package mlgraph

import (
	"slices"

	"github.com/meikuraledutech/mlgraph/algorithm"
	"github.com/meikuraledutech/mlgraph/pipeline"
)

// NodeConfig is the type-specific configuration of a node. The set of
// implementations is closed: one per NodeType.
type NodeConfig interface {
	NodeType() NodeType
	// Accept dispatches to the visitor method for the concrete config.
	Accept(v ConfigVisitor)
	clone() NodeConfig
}

// ConfigVisitor has one method per node type, so adding a node type breaks
// every visitor until it handles the new variant.
type ConfigVisitor interface {
	VisitDataset(*DatasetConfig)
	VisitPreprocessing(*PreprocessingConfig)
	VisitFeatureEngineering(*FeatureEngineeringConfig)
	VisitTrainTestSplit(*TrainTestSplitConfig)
	VisitModel(*ModelConfig)
	VisitEvaluate(*EvaluateConfig)
	VisitVisualize(*VisualizeConfig)
}

// ColumnSummary describes one dataset column.
type ColumnSummary struct {
	Name           string  `json:"name" validate:"required"`
	Type           string  `json:"type"`
	NullPercentage float64 `json:"nullPercentage" validate:"gte=0,lte=100"`
}

// DatasetConfig selects the data a workflow trains on.
type DatasetConfig struct {
	DatasetID    string                `json:"datasetId"`
	DatasetName  string                `json:"datasetName,omitempty"`
	TargetColumn string                `json:"targetColumn"`
	ProblemType  algorithm.ProblemType `json:"problemType,omitempty"`
	RowCount     int                   `json:"rowCount"`
	ColumnCount  int                   `json:"columnCount"`
	Columns      []ColumnSummary       `json:"columns,omitempty"`
}

func (*DatasetConfig) NodeType() NodeType        { return NodeDataset }
func (c *DatasetConfig) Accept(v ConfigVisitor) { v.VisitDataset(c) }
func (c *DatasetConfig) clone() NodeConfig {
	out := *c
	out.Columns = slices.Clone(c.Columns)
	return &out
}

// PreprocessingConfig holds a cleaning pipeline.
type PreprocessingConfig struct {
	Pipeline pipeline.Pipeline `json:"pipeline"`
}

func (*PreprocessingConfig) NodeType() NodeType        { return NodePreprocessing }
func (c *PreprocessingConfig) Accept(v ConfigVisitor) { v.VisitPreprocessing(c) }
func (c *PreprocessingConfig) clone() NodeConfig {
	return &PreprocessingConfig{Pipeline: c.Pipeline.Clone()}
}

// FeatureEngineeringConfig holds a feature-derivation pipeline.
type FeatureEngineeringConfig struct {
	Pipeline pipeline.Pipeline `json:"pipeline"`
}

func (*FeatureEngineeringConfig) NodeType() NodeType        { return NodeFeatureEngineering }
func (c *FeatureEngineeringConfig) Accept(v ConfigVisitor) { v.VisitFeatureEngineering(c) }
func (c *FeatureEngineeringConfig) clone() NodeConfig {
	return &FeatureEngineeringConfig{Pipeline: c.Pipeline.Clone()}
}

// TrainTestSplitConfig holds out part of the data for evaluation.
type TrainTestSplitConfig struct {
	TestSize    float64 `json:"testSize"`
	Stratify    bool    `json:"stratify"`
	Shuffle     bool    `json:"shuffle"`
	RandomState int     `json:"randomState"`
}

func (*TrainTestSplitConfig) NodeType() NodeType        { return NodeTrainTestSplit }
func (c *TrainTestSplitConfig) Accept(v ConfigVisitor) { v.VisitTrainTestSplit(c) }
func (c *TrainTestSplitConfig) clone() NodeConfig {
	out := *c
	return &out
}

// ModelConfig chooses and tunes an algorithm.
type ModelConfig struct {
	AlgorithmID        string           `json:"algorithmId"`
	Hyperparameters    algorithm.Values `json:"hyperparameters"`
	UseCrossValidation bool             `json:"useCrossValidation"`
	CVFolds            int              `json:"cvFolds"`
	UseAutoTuning      bool             `json:"useAutoTuning"`
	TuningTrials       int              `json:"tuningTrials"`
}

func (*ModelConfig) NodeType() NodeType        { return NodeModel }
func (c *ModelConfig) Accept(v ConfigVisitor) { v.VisitModel(c) }
func (c *ModelConfig) clone() NodeConfig {
	out := *c
	out.Hyperparameters = c.Hyperparameters.Clone()
	return &out
}

// EvaluateConfig picks the metrics to report for the upstream model.
type EvaluateConfig struct {
	SelectedMetrics []string `json:"selectedMetrics"`
}

func (*EvaluateConfig) NodeType() NodeType        { return NodeEvaluate }
func (c *EvaluateConfig) Accept(v ConfigVisitor) { v.VisitEvaluate(c) }
func (c *EvaluateConfig) clone() NodeConfig {
	return &EvaluateConfig{SelectedMetrics: slices.Clone(c.SelectedMetrics)}
}

// VisualizeConfig picks the plots to draw for the upstream model.
type VisualizeConfig struct {
	SelectedPlots []string `json:"selectedPlots"`
}

func (*VisualizeConfig) NodeType() NodeType        { return NodeVisualize }
func (c *VisualizeConfig) Accept(v ConfigVisitor) { v.VisitVisualize(c) }
func (c *VisualizeConfig) clone() NodeConfig {
	return &VisualizeConfig{SelectedPlots: slices.Clone(c.SelectedPlots)}
}

const (
	DefaultTestSize     = 0.2
	DefaultCVFolds      = 5
	DefaultTuningTrials = 50
)

// DefaultConfig returns a fresh config for a node of type t.
func DefaultConfig(t NodeType) (NodeConfig, error) {
	switch t {
	case NodeDataset:
		return &DatasetConfig{}, nil
	case NodePreprocessing:
		return &PreprocessingConfig{Pipeline: pipeline.New(pipeline.StagePreprocessing)}, nil
	case NodeFeatureEngineering:
		return &FeatureEngineeringConfig{Pipeline: pipeline.New(pipeline.StageFeatureEngineering)}, nil
	case NodeTrainTestSplit:
		return &TrainTestSplitConfig{TestSize: DefaultTestSize, Shuffle: true, RandomState: 42}, nil
	case NodeModel:
		return &ModelConfig{Hyperparameters: algorithm.Values{}, CVFolds: DefaultCVFolds, TuningTrials: DefaultTuningTrials}, nil
	case NodeEvaluate:
		return &EvaluateConfig{SelectedMetrics: []string{}}, nil
	case NodeVisualize:
		return &VisualizeConfig{SelectedPlots: []string{}}, nil
	}
	return nil, ErrUnknownNodeType
}

// PipelineOf returns the pipeline held by a preprocessing or
// feature-engineering config.
func PipelineOf(c NodeConfig) (*pipeline.Pipeline, bool) {
	switch cfg := c.(type) {
	case *PreprocessingConfig:
		return &cfg.Pipeline, true
	case *FeatureEngineeringConfig:
		return &cfg.Pipeline, true
	}
	return nil, false
}

// CloneConfig returns a deep copy of c.
func CloneConfig(c NodeConfig) NodeConfig {
	if c == nil {
		return nil
	}
	return c.clone()
}
