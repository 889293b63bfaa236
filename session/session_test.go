package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meikuraledutech/mlgraph"
	"github.com/meikuraledutech/mlgraph/algorithm"
	"github.com/meikuraledutech/mlgraph/engine"
	"github.com/meikuraledutech/mlgraph/pipeline"
)

func newSession(opts ...Option) *Session {
	return New(engine.New(algorithm.Default(), zap.NewNop()), opts...)
}

func nodeConfig[T mlgraph.NodeConfig](t *testing.T, s *Session, id string) T {
	t.Helper()
	n, ok := s.Graph().Node(id)
	require.True(t, ok)
	c, ok := n.Config.(T)
	require.True(t, ok)
	return c
}

func churnDataset(t *testing.T, s *Session) string {
	t.Helper()
	id, err := s.AddDataset(mlgraph.DatasetSummary{
		ID:           "churn",
		Name:         "churn.csv",
		RowCount:     2000,
		ColumnCount:  8,
		TargetColumn: "churned",
		ProblemType:  algorithm.Classification,
	})
	require.NoError(t, err)
	return id
}

func TestEndToEndAlgorithmSwitch(t *testing.T) {
	s := newSession()
	ds := churnDataset(t, s)
	model, err := s.AddNodeWithConfig(&mlgraph.ModelConfig{AlgorithmID: "random_forest", CVFolds: 5})
	require.NoError(t, err)
	eval, err := s.AddNode(mlgraph.NodeEvaluate)
	require.NoError(t, err)

	_, err = s.Connect(ds, model)
	require.NoError(t, err)
	_, err = s.Connect(model, eval)
	require.NoError(t, err)

	rep, err := s.NodeReport(eval)
	require.NoError(t, err)
	require.NotNil(t, rep.Capabilities)
	rf, _ := algorithm.Default().Get("random_forest")
	assert.Equal(t, rf.SupportedMetrics, rep.Capabilities.SupportedMetrics)
	assert.Equal(t, rf.SupportedPlots, rep.Capabilities.SupportedPlots)
	assert.Contains(t, nodeConfig[*mlgraph.EvaluateConfig](t, s, eval).SelectedMetrics, "accuracy")

	require.NoError(t, s.SetAlgorithm(model, "kmeans"))

	rep, err = s.NodeReport(eval)
	require.NoError(t, err)
	require.NotNil(t, rep.Capabilities)
	assert.Contains(t, rep.Capabilities.SupportedMetrics, "silhouette_score")
	assert.NotContains(t, nodeConfig[*mlgraph.EvaluateConfig](t, s, eval).SelectedMetrics, "accuracy")
}

func TestAddNodeWithConfigSeedsHyperparameters(t *testing.T) {
	s := newSession()
	id, err := s.AddNodeWithConfig(&mlgraph.ModelConfig{AlgorithmID: "svm"})
	require.NoError(t, err)

	m := nodeConfig[*mlgraph.ModelConfig](t, s, id)
	assert.Equal(t, "rbf", m.Hyperparameters["kernel"])
}

func TestConnectionRefusalLeavesGraphUntouched(t *testing.T) {
	s := newSession()
	ds := churnDataset(t, s)
	eval, err := s.AddNode(mlgraph.NodeEvaluate)
	require.NoError(t, err)
	before := s.Graph()

	_, err = s.Connect(ds, eval)
	var cerr *mlgraph.ConnectionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, mlgraph.IllegalNodePair, cerr.Kind)
	assert.Equal(t, before.Edges(), s.Graph().Edges())
}

func TestRemoveNodeClearsSelection(t *testing.T) {
	s := newSession()
	ds := churnDataset(t, s)
	other, err := s.AddNode(mlgraph.NodeModel)
	require.NoError(t, err)

	require.NoError(t, s.Select(ds))
	s.MoveInspector(Position{X: 10, Y: 20})

	require.NoError(t, s.RemoveNode(other))
	assert.Equal(t, ds, s.UI().SelectedNodeID)

	require.NoError(t, s.RemoveNode(ds))
	assert.Empty(t, s.UI().SelectedNodeID)
	assert.Equal(t, Position{X: 10, Y: 20}, s.UI().Inspector)

	assert.ErrorIs(t, s.Select("missing"), mlgraph.ErrNodeNotFound)
	assert.ErrorIs(t, s.RemoveNode("missing"), mlgraph.ErrNodeNotFound)
}

func TestUpdateConfig(t *testing.T) {
	s := newSession()
	ds := churnDataset(t, s)
	model, err := s.AddNodeWithConfig(&mlgraph.ModelConfig{AlgorithmID: "random_forest"})
	require.NoError(t, err)
	_, err = s.Connect(ds, model)
	require.NoError(t, err)

	m := nodeConfig[*mlgraph.ModelConfig](t, s, model)
	m.UseCrossValidation = true
	m.CVFolds = 10
	m.Hyperparameters["n_estimators"] = 300
	require.NoError(t, s.UpdateConfig(model, m))

	got := nodeConfig[*mlgraph.ModelConfig](t, s, model)
	assert.EqualValues(t, 300, got.Hyperparameters["n_estimators"])
	assert.Equal(t, 10, got.CVFolds)

	// Switching algorithm through a full config still resets hyperparameters.
	got.AlgorithmID = "knn"
	require.NoError(t, s.UpdateConfig(model, got))
	knn := nodeConfig[*mlgraph.ModelConfig](t, s, model)
	assert.NotContains(t, knn.Hyperparameters, "n_estimators")
	assert.True(t, knn.UseCrossValidation)

	assert.ErrorIs(t, s.UpdateConfig(model, &mlgraph.EvaluateConfig{}), mlgraph.ErrConfigTypeMismatch)
	assert.ErrorIs(t, s.UpdateConfig("missing", &mlgraph.EvaluateConfig{}), mlgraph.ErrNodeNotFound)
}

func TestUpdateHyperparameters(t *testing.T) {
	s := newSession()
	model, err := s.AddNodeWithConfig(&mlgraph.ModelConfig{AlgorithmID: "svm"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateHyperparameters(model, algorithm.Values{"kernel": "poly"}))
	m := nodeConfig[*mlgraph.ModelConfig](t, s, model)
	assert.Equal(t, "poly", m.Hyperparameters["kernel"])
	assert.Contains(t, m.Hyperparameters, "C")

	ds := churnDataset(t, s)
	assert.ErrorIs(t, s.UpdateHyperparameters(ds, algorithm.Values{"x": 1}), mlgraph.ErrConfigTypeMismatch)
}

func TestPipelineOperations(t *testing.T) {
	s := newSession()
	pre, err := s.AddNode(mlgraph.NodePreprocessing)
	require.NoError(t, err)

	a, err := s.AppendOperation(pre, pipeline.OpImpute)
	require.NoError(t, err)
	b, err := s.AppendOperation(pre, pipeline.OpScale)
	require.NoError(t, err)

	require.NoError(t, s.MoveOperation(pre, b.ID, pipeline.Up))
	require.NoError(t, s.UpdateOperation(pre, a.ID, map[string]any{"strategy": "median"}))

	p := nodeConfig[*mlgraph.PreprocessingConfig](t, s, pre).Pipeline
	require.Len(t, p.Operations, 2)
	assert.Equal(t, b.ID, p.Operations[0].ID)
	assert.Equal(t, "median", p.Operations[1].Config["strategy"])

	require.NoError(t, s.RemoveOperation(pre, b.ID))
	p = nodeConfig[*mlgraph.PreprocessingConfig](t, s, pre).Pipeline
	require.Len(t, p.Operations, 1)
	assert.Equal(t, 0, p.Operations[0].Order)

	_, err = s.AppendOperation(pre, pipeline.OpPolynomial)
	assert.ErrorIs(t, err, pipeline.ErrUnknownOperationType)

	model, err := s.AddNode(mlgraph.NodeModel)
	require.NoError(t, err)
	_, err = s.AppendOperation(model, pipeline.OpScale)
	assert.ErrorIs(t, err, ErrNotPipelineNode)
}

func TestRefreshOperation(t *testing.T) {
	var seen pipeline.Schema
	provider := pipeline.PreviewFunc(func(_ context.Context, op pipeline.Operation, input pipeline.Schema) (pipeline.PreviewResult, error) {
		seen = input
		return pipeline.PreviewResult{NewFeatureNames: []string{"city_paris", "city_rome"}, DroppedColumns: []string{"city"}}, nil
	})
	s := newSession(WithPreviewProvider(provider))

	ds, err := s.AddDataset(mlgraph.DatasetSummary{
		ID:       "d",
		RowCount: 50,
		Columns:  []mlgraph.ColumnSummary{{Name: "city", Type: "string"}, {Name: "age", Type: "int"}},
	})
	require.NoError(t, err)
	pre, err := s.AddNode(mlgraph.NodePreprocessing)
	require.NoError(t, err)
	_, err = s.Connect(ds, pre)
	require.NoError(t, err)
	op, err := s.AppendOperation(pre, pipeline.OpEncode)
	require.NoError(t, err)

	require.NoError(t, s.RefreshOperation(context.Background(), pre, op.ID))
	assert.Equal(t, 50, seen.Rows)
	assert.Len(t, seen.Columns, 2)

	rep, err := s.NodeReport(pre)
	require.NoError(t, err)
	assert.Equal(t, pipeline.Shape{Rows: 50, Columns: 3}, rep.OutputShape)

	plain := newSession()
	assert.ErrorIs(t, plain.RefreshOperation(context.Background(), "x", "y"), ErrNoPreviewProvider)
}

func TestLoadReconciles(t *testing.T) {
	g := mlgraph.New()
	ds, err := g.AddNode(&mlgraph.DatasetConfig{DatasetID: "d", TargetColumn: "y", RowCount: 100})
	require.NoError(t, err)
	m, err := g.AddNode(&mlgraph.ModelConfig{AlgorithmID: "kmeans"})
	require.NoError(t, err)
	viz, err := g.AddNode(&mlgraph.VisualizeConfig{SelectedPlots: []string{"roc_curve", "elbow_curve"}})
	require.NoError(t, err)
	_, err = g.AddEdge(ds, m)
	require.NoError(t, err)
	_, err = g.AddEdge(m, viz)
	require.NoError(t, err)

	s := newSession()
	require.NoError(t, s.Load(g))
	assert.Equal(t, []string{"elbow_curve"}, nodeConfig[*mlgraph.VisualizeConfig](t, s, viz).SelectedPlots)

	rep, err := s.Report()
	require.NoError(t, err)
	assert.Len(t, rep.Order, 3)
}

func TestManager(t *testing.T) {
	m := NewManager(engine.New(algorithm.Default(), nil), nil, nil)
	a := m.Create(WithName("first"))
	b := m.Create()

	got, err := m.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Len(t, m.List(), 2)

	require.NoError(t, m.Close(b.ID))
	_, err = m.Get(b.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Close(b.ID), ErrSessionNotFound)

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0].Name)
}
