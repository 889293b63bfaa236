package mlgraph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/mlgraph/algorithm"
	"github.com/meikuraledutech/mlgraph/pipeline"
)

func addNode(t *testing.T, g *Graph, typ NodeType) string {
	t.Helper()
	cfg, err := DefaultConfig(typ)
	require.NoError(t, err)
	id, err := g.AddNode(cfg)
	require.NoError(t, err)
	return id
}

func connect(t *testing.T, g *Graph, source, target string) Edge {
	t.Helper()
	e, err := g.AddEdge(source, target)
	require.NoError(t, err)
	return e
}

func nodeIDs(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestAddNodeAssignsIDAndType(t *testing.T) {
	g := New()
	id := addNode(t, g, NodeModel)

	n, ok := g.Node(id)
	require.True(t, ok)
	assert.NotEmpty(t, id)
	assert.Equal(t, NodeModel, n.Type())

	_, err := g.AddNode(nil)
	assert.ErrorIs(t, err, ErrNilConfig)

	_, err = g.InsertNode(Node{ID: id, Config: &EvaluateConfig{}})
	assert.ErrorIs(t, err, ErrDuplicateNode)
}

func TestNodeConfigsAreOwned(t *testing.T) {
	g := New()
	cfg := &EvaluateConfig{SelectedMetrics: []string{"accuracy"}}
	id, err := g.AddNode(cfg)
	require.NoError(t, err)

	cfg.SelectedMetrics[0] = "mutated"
	n, _ := g.Node(id)
	assert.Equal(t, []string{"accuracy"}, n.Config.(*EvaluateConfig).SelectedMetrics)

	n.Config.(*EvaluateConfig).SelectedMetrics = nil
	again, _ := g.Node(id)
	assert.Equal(t, []string{"accuracy"}, again.Config.(*EvaluateConfig).SelectedMetrics)

	clone := g.Clone()
	require.NoError(t, clone.SetConfig(id, &EvaluateConfig{SelectedMetrics: []string{"f1_score"}}))
	orig, _ := g.Node(id)
	assert.Equal(t, []string{"accuracy"}, orig.Config.(*EvaluateConfig).SelectedMetrics)
}

func TestSetConfigRejectsOtherType(t *testing.T) {
	g := New()
	id := addNode(t, g, NodeModel)

	assert.ErrorIs(t, g.SetConfig(id, &EvaluateConfig{}), ErrConfigTypeMismatch)
	assert.ErrorIs(t, g.SetConfig("missing", &ModelConfig{}), ErrNodeNotFound)
	assert.ErrorIs(t, g.SetConfig(id, nil), ErrNilConfig)
	require.NoError(t, g.SetConfig(id, &ModelConfig{AlgorithmID: "svm"}))
}

func TestRemoveNodeCascades(t *testing.T) {
	g := New()
	ds := addNode(t, g, NodeDataset)
	m := addNode(t, g, NodeModel)
	ev := addNode(t, g, NodeEvaluate)
	connect(t, g, ds, m)
	connect(t, g, m, ev)

	require.NoError(t, g.RemoveNode(ds))
	assert.Len(t, g.Edges(), 1)
	assert.Equal(t, m, g.Edges()[0].Source)

	require.NoError(t, g.RemoveNode(m))
	assert.Empty(t, g.Edges())
	assert.Equal(t, []string{ev}, nodeIDs(g.Nodes()))

	assert.ErrorIs(t, g.RemoveNode(m), ErrNodeNotFound)
}

func TestRemoveEdge(t *testing.T) {
	g := New()
	ds := addNode(t, g, NodeDataset)
	m := addNode(t, g, NodeModel)
	e := connect(t, g, ds, m)

	require.NoError(t, g.RemoveEdge(e.ID))
	_, ok := g.Upstream(m)
	assert.False(t, ok)
	assert.ErrorIs(t, g.RemoveEdge(e.ID), ErrEdgeNotFound)

	connect(t, g, ds, m)
}

func TestUpstreamQueries(t *testing.T) {
	g := New()
	ds := addNode(t, g, NodeDataset)
	pre := addNode(t, g, NodePreprocessing)
	split := addNode(t, g, NodeTrainTestSplit)
	m := addNode(t, g, NodeModel)
	ev := addNode(t, g, NodeEvaluate)
	viz := addNode(t, g, NodeVisualize)
	connect(t, g, ds, pre)
	connect(t, g, pre, split)
	connect(t, g, split, m)
	connect(t, g, m, ev)
	connect(t, g, m, viz)

	up, ok := g.Upstream(m)
	require.True(t, ok)
	assert.Equal(t, split, up.ID)

	_, ok = g.Upstream(ds)
	assert.False(t, ok)

	found, ok := g.NearestUpstreamOfType(ev, NodeDataset)
	require.True(t, ok)
	assert.Equal(t, ds, found.ID)

	_, ok = g.NearestUpstreamOfType(m, NodeModel)
	assert.False(t, ok)

	assert.Equal(t, []string{ev, viz}, nodeIDs(g.Downstream(m)))
	assert.Empty(t, g.Downstream(ev))
}

func TestTopologicalOrder(t *testing.T) {
	g := New()
	ev := addNode(t, g, NodeEvaluate)
	m := addNode(t, g, NodeModel)
	ds := addNode(t, g, NodeDataset)
	other := addNode(t, g, NodeDataset)
	connect(t, g, ds, m)
	connect(t, g, m, ev)

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{ds, other, m, ev}, nodeIDs(order))
}

func TestTopologicalOrderDetectsCycle(t *testing.T) {
	g := New()
	a := addNode(t, g, NodePreprocessing)
	b := addNode(t, g, NodeFeatureEngineering)
	connect(t, g, a, b)
	g.edges = append(g.edges, Edge{ID: "back", Source: b, Target: a})

	_, err := g.TopologicalOrder()
	assert.ErrorIs(t, err, ErrCycleDetected)
	assert.Error(t, g.Validate())
}

func TestSuccessfulEdgesKeepGraphAcyclic(t *testing.T) {
	g := New()
	var ids []string
	for _, typ := range []NodeType{NodeDataset, NodePreprocessing, NodeFeatureEngineering, NodePreprocessing, NodeFeatureEngineering, NodeModel, NodeEvaluate} {
		ids = append(ids, addNode(t, g, typ))
	}
	// Try every ordered pair; whatever is accepted must leave a DAG.
	for _, s := range ids {
		for _, tg := range ids {
			_, _ = g.AddEdge(s, tg)
			_, err := g.TopologicalOrder()
			require.NoError(t, err)
		}
	}
	require.NoError(t, g.Validate())
}

func TestValidate(t *testing.T) {
	ds := Node{ID: "ds", Config: &DatasetConfig{}}
	m := Node{ID: "m", Config: &ModelConfig{}}
	ev := Node{ID: "ev", Config: &EvaluateConfig{}}

	_, err := FromParts([]Node{ds, m, ev}, []Edge{{ID: "e1", Source: "ds", Target: "m"}, {ID: "e2", Source: "m", Target: "ev"}})
	require.NoError(t, err)

	_, err = FromParts([]Node{ds, ds}, nil)
	assert.ErrorIs(t, err, ErrDuplicateNode)

	_, err = FromParts([]Node{ds, m}, []Edge{{ID: "e1", Source: "ds", Target: "ghost"}})
	assert.ErrorIs(t, err, ErrNodeNotFound)

	_, err = FromParts([]Node{ds, ev}, []Edge{{ID: "e1", Source: "ds", Target: "ev"}})
	assert.ErrorIs(t, err, ErrIllegalNodePair)

	other := Node{ID: "ds2", Config: &DatasetConfig{}}
	_, err = FromParts([]Node{ds, other, m}, []Edge{{ID: "e1", Source: "ds", Target: "m"}, {ID: "e2", Source: "ds2", Target: "m"}})
	assert.ErrorIs(t, err, ErrTargetAlreadyConnected)

	_, err = FromParts([]Node{ds, m}, []Edge{{ID: "e1", Source: "ds", Target: "m"}, {ID: "e1", Source: "ds", Target: "m"}})
	assert.ErrorIs(t, err, ErrDuplicateEdge)

	_, err = FromParts([]Node{{ID: "x"}}, nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestGraphJSON(t *testing.T) {
	g := New()
	ds, err := g.AddNode(&DatasetConfig{DatasetID: "d1", TargetColumn: "churn", ProblemType: algorithm.Classification, RowCount: 500})
	require.NoError(t, err)

	pre := &PreprocessingConfig{Pipeline: pipeline.New(pipeline.StagePreprocessing)}
	_, err = pre.Pipeline.Append(pipeline.OpImpute)
	require.NoError(t, err)
	p, err := g.AddNode(pre)
	require.NoError(t, err)

	m, err := g.AddNode(&ModelConfig{AlgorithmID: "random_forest", Hyperparameters: algorithm.Values{"n_estimators": 200}, CVFolds: 5})
	require.NoError(t, err)
	connect(t, g, ds, p)
	connect(t, g, p, m)

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var raw struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw.Nodes, 3)
	assert.Equal(t, "dataset", raw.Nodes[0]["type"])
	assert.Equal(t, "preprocessing", raw.Nodes[1]["type"])
	assert.Contains(t, raw.Edges[0], "source")

	var back Graph
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, nodeIDs(g.Nodes()), nodeIDs(back.Nodes()))
	assert.Equal(t, g.Edges(), back.Edges())

	mn, _ := back.Node(m)
	mc := mn.Config.(*ModelConfig)
	assert.Equal(t, "random_forest", mc.AlgorithmID)
	assert.EqualValues(t, 200, mc.Hyperparameters["n_estimators"])

	pn, _ := back.Node(p)
	pl, ok := PipelineOf(pn.Config)
	require.True(t, ok)
	require.Len(t, pl.Operations, 1)
	assert.Equal(t, pipeline.OpImpute, pl.Operations[0].Type)
}

func TestGraphJSONRejectsBrokenInput(t *testing.T) {
	var g Graph
	err := json.Unmarshal([]byte(`{"nodes":[{"id":"a","type":"teleport","config":{}}],"edges":[]}`), &g)
	assert.ErrorIs(t, err, ErrUnknownNodeType)

	err = json.Unmarshal([]byte(`{"nodes":[{"id":"a","type":"dataset"},{"id":"b","type":"evaluate"}],"edges":[{"id":"e","source":"a","target":"b"}]}`), &g)
	assert.ErrorIs(t, err, ErrIllegalNodePair)
}

func TestDecodeConfigKeepsDefaults(t *testing.T) {
	cfg, err := DecodeConfig(NodeTrainTestSplit, json.RawMessage(`{"stratify":true}`))
	require.NoError(t, err)
	split := cfg.(*TrainTestSplitConfig)
	assert.True(t, split.Stratify)
	assert.InDelta(t, DefaultTestSize, split.TestSize, 1e-9)
	assert.True(t, split.Shuffle)
}

type countingVisitor struct{ seen []NodeType }

func (v *countingVisitor) VisitDataset(*DatasetConfig) { v.seen = append(v.seen, NodeDataset) }
func (v *countingVisitor) VisitPreprocessing(*PreprocessingConfig) {
	v.seen = append(v.seen, NodePreprocessing)
}
func (v *countingVisitor) VisitFeatureEngineering(*FeatureEngineeringConfig) {
	v.seen = append(v.seen, NodeFeatureEngineering)
}
func (v *countingVisitor) VisitTrainTestSplit(*TrainTestSplitConfig) {
	v.seen = append(v.seen, NodeTrainTestSplit)
}
func (v *countingVisitor) VisitModel(*ModelConfig)         { v.seen = append(v.seen, NodeModel) }
func (v *countingVisitor) VisitEvaluate(*EvaluateConfig)   { v.seen = append(v.seen, NodeEvaluate) }
func (v *countingVisitor) VisitVisualize(*VisualizeConfig) { v.seen = append(v.seen, NodeVisualize) }

func TestDefaultConfigCoversEveryType(t *testing.T) {
	v := &countingVisitor{}
	for _, typ := range NodeTypes {
		cfg, err := DefaultConfig(typ)
		require.NoError(t, err)
		assert.Equal(t, typ, cfg.NodeType())
		cfg.Accept(v)
	}
	assert.Equal(t, NodeTypes, v.seen)

	_, err := DefaultConfig("teleport")
	assert.ErrorIs(t, err, ErrUnknownNodeType)
	assert.False(t, NodeType("teleport").Valid())
}
