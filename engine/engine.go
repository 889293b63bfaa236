// Package engine derives everything the editor shows about a workflow graph:
// per-node validation, model capabilities, visible hyperparameter fields,
// data shape and cost. It also keeps evaluate and visualize selections in
// line with the model feeding them.
//
// Every derivation is recomputed from the graph on request; nothing is
// cached on nodes.
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/meikuraledutech/mlgraph"
	"github.com/meikuraledutech/mlgraph/algorithm"
	"github.com/meikuraledutech/mlgraph/cost"
	"github.com/meikuraledutech/mlgraph/hyperparams"
)

// Engine evaluates graphs against one algorithm registry.
type Engine struct {
	registry *algorithm.Registry
	params   *hyperparams.Engine
	costs    *cost.Estimator
	log      *zap.Logger
}

// New returns an Engine backed by reg. A nil logger discards output.
func New(reg *algorithm.Registry, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		registry: reg,
		params:   hyperparams.New(reg),
		costs:    cost.New(reg),
		log:      log,
	}
}

func (e *Engine) Registry() *algorithm.Registry     { return e.registry }
func (e *Engine) Hyperparams() *hyperparams.Engine { return e.params }
func (e *Engine) Costs() *cost.Estimator           { return e.costs }

// Capabilities resolves the model capabilities for nodeID.
func (e *Engine) Capabilities(g *mlgraph.Graph, nodeID string) *mlgraph.ModelCapabilities {
	return mlgraph.ResolveCapabilities(g, e.registry, nodeID)
}

// SetAlgorithm switches a model node to algorithmID. When the algorithm
// changes, the hyperparameters are replaced by the new defaults and the
// selections downstream are clamped.
func (e *Engine) SetAlgorithm(g *mlgraph.Graph, modelID, algorithmID string) error {
	n, ok := g.Node(modelID)
	if !ok {
		return mlgraph.ErrNodeNotFound
	}
	m, ok := n.Config.(*mlgraph.ModelConfig)
	if !ok {
		return fmt.Errorf("%w: node %s is %s, not a model", mlgraph.ErrConfigTypeMismatch, modelID, n.Type())
	}
	if m.AlgorithmID == algorithmID {
		return nil
	}

	previous := m.AlgorithmID
	m.AlgorithmID = algorithmID
	m.Hyperparameters = e.params.Defaults(algorithmID)
	if err := g.SetConfig(modelID, m); err != nil {
		return err
	}

	e.log.Debug("algorithm changed",
		zap.String("node", modelID),
		zap.String("from", previous),
		zap.String("to", algorithmID),
	)
	e.Reconcile(g)
	return nil
}

// Reconcile clamps every evaluate and visualize selection to what its
// upstream model supports. A selection left empty by clamping is re-seeded
// with the model's defaults. Nodes without a configured model upstream are
// left alone. It returns the ids of the nodes it changed.
func (e *Engine) Reconcile(g *mlgraph.Graph) []string {
	var changed []string
	for _, n := range g.Nodes() {
		caps := e.Capabilities(g, n.ID)
		if caps == nil {
			continue
		}

		var cfg mlgraph.NodeConfig
		switch c := n.Config.(type) {
		case *mlgraph.EvaluateConfig:
			if next, ok := clamp(c.SelectedMetrics, caps.SupportedMetrics, caps.DefaultMetrics); ok {
				cfg = &mlgraph.EvaluateConfig{SelectedMetrics: next}
			}
		case *mlgraph.VisualizeConfig:
			if next, ok := clamp(c.SelectedPlots, caps.SupportedPlots, caps.DefaultPlots); ok {
				cfg = &mlgraph.VisualizeConfig{SelectedPlots: next}
			}
		}
		if cfg == nil {
			continue
		}
		if err := g.SetConfig(n.ID, cfg); err != nil {
			e.log.Error("clamp selection", zap.String("node", n.ID), zap.Error(err))
			continue
		}
		e.log.Debug("selection clamped",
			zap.String("node", n.ID),
			zap.String("type", string(n.Type())),
			zap.String("algorithm", caps.AlgorithmID),
		)
		changed = append(changed, n.ID)
	}
	return changed
}

// Seed fills an empty evaluate or visualize selection with the defaults of
// the model feeding it. It reports whether the node changed.
func (e *Engine) Seed(g *mlgraph.Graph, nodeID string) bool {
	n, ok := g.Node(nodeID)
	if !ok {
		return false
	}
	caps := e.Capabilities(g, nodeID)
	if caps == nil {
		return false
	}

	var cfg mlgraph.NodeConfig
	switch c := n.Config.(type) {
	case *mlgraph.EvaluateConfig:
		if len(c.SelectedMetrics) == 0 {
			cfg = &mlgraph.EvaluateConfig{SelectedMetrics: caps.DefaultMetrics}
		}
	case *mlgraph.VisualizeConfig:
		if len(c.SelectedPlots) == 0 {
			cfg = &mlgraph.VisualizeConfig{SelectedPlots: caps.DefaultPlots}
		}
	}
	if cfg == nil {
		return false
	}
	return g.SetConfig(nodeID, cfg) == nil
}

// clamp intersects selected with supported. It reports false when nothing
// was dropped.
func clamp(selected, supported, defaults []string) ([]string, bool) {
	next := mlgraph.Intersect(selected, supported)
	if len(next) == len(selected) {
		return nil, false
	}
	if len(next) == 0 {
		next = append(next, defaults...)
	}
	return next, true
}
