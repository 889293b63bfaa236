package engine

import (
	"math"
	"slices"

	"github.com/meikuraledutech/mlgraph"
	"github.com/meikuraledutech/mlgraph/algorithm"
	"github.com/meikuraledutech/mlgraph/pipeline"
)

// flow is what reaches a node's input from the steps above it.
type flow struct {
	dataset *mlgraph.DatasetConfig
	split   *mlgraph.TrainTestSplitConfig
	shape   pipeline.Shape
	scaled  bool
}

func (f flow) problemType() algorithm.ProblemType {
	if f.dataset == nil {
		return ""
	}
	return f.dataset.ProblemType
}

// trainingRows is the number of rows a model fed by f trains on.
func (f flow) trainingRows() int {
	rows := f.shape.Rows
	if f.split != nil && f.split.TestSize > 0 && f.split.TestSize < 1 {
		rows -= testRows(rows, f.split.TestSize)
	}
	return rows
}

// testRows is the size of the held-out set, rounded up so that the
// training set never gets a row the split would have held out.
// The product is first rounded to six places to drop float noise.
func testRows(rows int, size float64) int {
	return int(math.Ceil(math.Round(float64(rows)*size*1e6) / 1e6))
}

// chain returns nodeID and its ancestors, root first.
func chain(g *mlgraph.Graph, nodeID string) []mlgraph.Node {
	var out []mlgraph.Node
	seen := map[string]bool{}
	for cur, ok := g.Node(nodeID); ok && !seen[cur.ID]; cur, ok = g.Upstream(cur.ID) {
		seen[cur.ID] = true
		out = append(out, cur)
	}
	slices.Reverse(out)
	return out
}

// inputFlow replays the chain above nodeID and returns what arrives at its
// input.
func inputFlow(g *mlgraph.Graph, nodeID string) flow {
	nodes := chain(g, nodeID)
	if len(nodes) > 0 {
		nodes = nodes[:len(nodes)-1]
	}

	var f flow
	for _, n := range nodes {
		f = f.through(n.Config)
	}
	return f
}

// through returns the flow leaving a node with config c.
func (f flow) through(c mlgraph.NodeConfig) flow {
	switch cfg := c.(type) {
	case *mlgraph.DatasetConfig:
		f = flow{dataset: cfg, shape: pipeline.Shape{Rows: cfg.RowCount, Columns: cfg.ColumnCount}}
	case *mlgraph.PreprocessingConfig:
		f.shape = cfg.Pipeline.OutputShape(f.shape)
		f.scaled = f.scaled || rescales(cfg.Pipeline)
	case *mlgraph.FeatureEngineeringConfig:
		f.shape = cfg.Pipeline.OutputShape(f.shape)
	case *mlgraph.TrainTestSplitConfig:
		f.split = cfg
	}
	return f
}

func rescales(p pipeline.Pipeline) bool {
	return slices.ContainsFunc(p.Operations, func(op pipeline.Operation) bool {
		return op.Type == pipeline.OpScale
	})
}

// InputSchema is the table arriving at nodeID: the dataset's columns with
// the carried results of every pipeline above it replayed in order.
func (e *Engine) InputSchema(g *mlgraph.Graph, nodeID string) pipeline.Schema {
	nodes := chain(g, nodeID)
	if len(nodes) > 0 {
		nodes = nodes[:len(nodes)-1]
	}

	var s pipeline.Schema
	for _, n := range nodes {
		switch cfg := n.Config.(type) {
		case *mlgraph.DatasetConfig:
			s = pipeline.Schema{Rows: cfg.RowCount, Columns: make([]pipeline.Column, len(cfg.Columns))}
			for i, c := range cfg.Columns {
				s.Columns[i] = pipeline.Column{Name: c.Name, Type: c.Type}
			}
		default:
			if p, ok := mlgraph.PipelineOf(cfg); ok {
				s = p.OutputSchema(s)
			}
		}
	}
	return s
}
