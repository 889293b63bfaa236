package engine

import (
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/meikuraledutech/mlgraph"
	"github.com/meikuraledutech/mlgraph/algorithm"
	"github.com/meikuraledutech/mlgraph/cost"
	"github.com/meikuraledutech/mlgraph/hyperparams"
	"github.com/meikuraledutech/mlgraph/pipeline"
)

const (
	minCVFolds      = 2
	maxCVFolds      = 20
	minTestRows     = 30
	smallTestSize   = 0.1
	largeTestSize   = 0.5
	sparseColumnPct = 50.0
)

// InspectNode derives the report for one node.
func (e *Engine) InspectNode(g *mlgraph.Graph, nodeID string) (NodeReport, error) {
	n, ok := g.Node(nodeID)
	if !ok {
		return NodeReport{}, mlgraph.ErrNodeNotFound
	}

	v := &inspector{
		engine: e,
		graph:  g,
		node:   n,
		in:     inputFlow(g, nodeID),
		report: newNodeReport(n),
	}
	n.Config.Accept(v)
	return v.report, nil
}

// Inspect derives the report for every node, in topological order.
func (e *Engine) Inspect(g *mlgraph.Graph) (GraphReport, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return GraphReport{}, err
	}

	rep := GraphReport{
		Order: make([]string, 0, len(order)),
		Nodes: make(map[string]NodeReport, len(order)),
		Ready: len(order) > 0,
	}
	for _, n := range order {
		nr, err := e.InspectNode(g, n.ID)
		if err != nil {
			return GraphReport{}, err
		}
		rep.Order = append(rep.Order, n.ID)
		rep.Nodes[n.ID] = nr
		rep.TotalCost += nr.Cost
		if !nr.Valid {
			rep.Ready = false
		}
	}

	e.log.Debug("graph inspected",
		zap.Int("nodes", len(order)),
		zap.Int("cost", rep.TotalCost),
		zap.Bool("ready", rep.Ready),
	)
	return rep, nil
}

// inspector fills a NodeReport. One method per node type.
type inspector struct {
	engine *Engine
	graph  *mlgraph.Graph
	node   mlgraph.Node
	in     flow
	report NodeReport
}

var _ mlgraph.ConfigVisitor = (*inspector)(nil)

func (v *inspector) requireDataset() bool {
	if v.in.dataset == nil {
		v.report.fail("input", "connect a dataset upstream")
		return false
	}
	return true
}

func (v *inspector) VisitDataset(c *mlgraph.DatasetConfig) {
	r := &v.report
	r.OutputShape = pipeline.Shape{Rows: c.RowCount, Columns: c.ColumnCount}
	r.SampleCount = c.RowCount

	if c.DatasetID == "" {
		r.fail("datasetId", "select a dataset")
	}
	if c.ProblemType != "" && !c.ProblemType.Valid() {
		r.fail("problemType", "unknown problem type %q", c.ProblemType)
	}
	if c.TargetColumn == "" {
		if c.ProblemType != algorithm.Clustering {
			r.fail("targetColumn", "select a target column")
		}
	} else if len(c.Columns) > 0 && !slices.ContainsFunc(c.Columns, func(col mlgraph.ColumnSummary) bool {
		return col.Name == c.TargetColumn
	}) {
		r.fail("targetColumn", "column %q is not in the dataset", c.TargetColumn)
	}

	for _, col := range c.Columns {
		if col.NullPercentage > sparseColumnPct {
			r.warn("column %q is %.0f%% empty", col.Name, col.NullPercentage)
		}
	}
}

func (v *inspector) VisitPreprocessing(c *mlgraph.PreprocessingConfig) {
	v.visitPipeline(c.Pipeline, pipeline.StagePreprocessing)
}

func (v *inspector) VisitFeatureEngineering(c *mlgraph.FeatureEngineeringConfig) {
	v.visitPipeline(c.Pipeline, pipeline.StageFeatureEngineering)
}

func (v *inspector) visitPipeline(p pipeline.Pipeline, stage pipeline.Stage) {
	r := &v.report
	r.Severity = p.Severity()
	r.OutputShape = p.OutputShape(v.in.shape)
	r.SampleCount = r.OutputShape.Rows

	v.requireDataset()
	if p.Stage != stage {
		r.fail("pipeline", "pipeline stage is %q, expected %q", p.Stage, stage)
	}
	if len(p.Operations) == 0 {
		r.warn("no operations added")
	}
	for _, op := range p.Operations {
		for _, w := range op.Warnings {
			switch w.Type {
			case pipeline.WarningError:
				r.fail("operations."+op.ID, "%s", w.Message)
			case pipeline.WarningWarning:
				r.warn("%s: %s", op.Type, w.Message)
			}
		}
		if !pipeline.Supports(stage, op.Type) {
			r.fail("operations."+op.ID, "%s is not a %s operation", op.Type, stage)
		}
	}
	if v.in.shape.Rows > 0 && r.OutputShape.Rows == 0 {
		r.warn("operations remove every row")
	}
}

func (v *inspector) VisitTrainTestSplit(c *mlgraph.TrainTestSplitConfig) {
	r := &v.report
	r.OutputShape = v.in.shape
	r.SampleCount = v.in.shape.Rows

	v.requireDataset()
	if c.TestSize <= 0 || c.TestSize >= 1 {
		r.fail("testSize", "test size must be between 0 and 1")
		return
	}
	switch {
	case c.TestSize < smallTestSize:
		r.warn("test set is very small (%.0f%%)", c.TestSize*100)
	case c.TestSize > largeTestSize:
		r.warn("test set is larger than the training set (%.0f%%)", c.TestSize*100)
	}
	if rows := testRows(v.in.shape.Rows, c.TestSize); v.in.shape.Rows > 0 && rows < minTestRows {
		r.warn("test set has only %d rows", rows)
	}
	if c.Stratify && v.in.problemType() != "" && v.in.problemType() != algorithm.Classification {
		r.warn("stratify only applies to classification")
	}
}

func (v *inspector) VisitModel(c *mlgraph.ModelConfig) {
	e, r := v.engine, &v.report
	r.OutputShape = v.in.shape
	r.SampleCount = v.in.trainingRows()
	r.Capabilities = e.Capabilities(v.graph, v.node.ID)
	r.Cost = e.costs.Estimate(cost.Params{
		AlgorithmID:        c.AlgorithmID,
		SampleCount:        r.SampleCount,
		UseCrossValidation: c.UseCrossValidation,
		CVFolds:            c.CVFolds,
		UseAutoTuning:      c.UseAutoTuning,
		TuningTrials:       c.TuningTrials,
	})
	r.Fields = &Fields{
		Main:     e.params.VisibleFields(c.AlgorithmID, c.Hyperparameters, hyperparams.SectionMain),
		Advanced: e.params.VisibleFields(c.AlgorithmID, c.Hyperparameters, hyperparams.SectionAdvanced),
	}

	v.requireDataset()
	if c.UseCrossValidation && (c.CVFolds < minCVFolds || c.CVFolds > maxCVFolds) {
		r.fail("cvFolds", "folds must be between %d and %d", minCVFolds, maxCVFolds)
	}
	if c.UseAutoTuning {
		if maxTrials := e.registry.Cost().Optuna.MaxTrials; c.TuningTrials < 1 || c.TuningTrials > maxTrials {
			r.fail("tuningTrials", "trials must be between 1 and %d", maxTrials)
		}
	}

	if c.AlgorithmID == "" {
		r.fail("algorithmId", "select an algorithm")
		return
	}
	d, ok := e.registry.Get(c.AlgorithmID)
	if !ok {
		r.fail("algorithmId", "unknown algorithm %q", c.AlgorithmID)
		return
	}

	if p := v.in.problemType(); p != "" && !d.Supports(p) {
		r.fail("algorithmId", "%s does not support %s problems", d.Name, p)
	}
	if d.Supports(algorithm.Clustering) && v.in.split != nil {
		r.warn("%s does not use a train/test split", d.Name)
	}
	if c.UseAutoTuning && len(d.Tunable()) == 0 {
		r.warn("%s has nothing to tune", d.Name)
	}

	features := v.in.shape.Columns
	if v.in.dataset != nil && v.in.dataset.TargetColumn != "" {
		features--
	}
	res := e.params.Validate(c.AlgorithmID, c.Hyperparameters, &hyperparams.Context{
		SampleCount:        r.SampleCount,
		FeatureCount:       max(features, 0),
		UseCrossValidation: c.UseCrossValidation,
		CVFolds:            c.CVFolds,
		Scaled:             v.in.scaled,
	})
	for _, key := range res.ErrorFields() {
		r.fail(key, "%s", res.Errors[key])
	}
	r.Warnings = append(r.Warnings, res.Warnings...)
}

func (v *inspector) VisitEvaluate(c *mlgraph.EvaluateConfig) {
	v.visitSelection("selectedMetrics", "metric", c.SelectedMetrics, func(caps *mlgraph.ModelCapabilities) []string {
		return caps.SupportedMetrics
	})
}

func (v *inspector) VisitVisualize(c *mlgraph.VisualizeConfig) {
	v.visitSelection("selectedPlots", "plot", c.SelectedPlots, func(caps *mlgraph.ModelCapabilities) []string {
		return caps.SupportedPlots
	})
}

func (v *inspector) visitSelection(field, noun string, selected []string, supported func(*mlgraph.ModelCapabilities) []string) {
	r := &v.report
	r.OutputShape = v.in.shape
	r.SampleCount = v.in.trainingRows()

	caps := v.engine.Capabilities(v.graph, v.node.ID)
	r.Capabilities = caps
	if caps == nil {
		r.fail("input", "connect a configured model upstream")
		return
	}
	if len(selected) == 0 {
		r.fail(field, "select at least one %s", noun)
		return
	}

	var unsupported []string
	for _, s := range selected {
		if !slices.Contains(supported(caps), s) {
			unsupported = append(unsupported, s)
		}
	}
	if len(unsupported) > 0 {
		r.fail(field, "%s not supported by %s", strings.Join(unsupported, ", "), caps.AlgorithmID)
	}
	if v.in.split == nil {
		if d, ok := v.engine.registry.Get(caps.AlgorithmID); ok && !d.Supports(algorithm.Clustering) {
			r.warn("no train/test split upstream; %ss are computed on training data", noun)
		}
	}
}
