package mlgraph

import (
	"slices"

	"github.com/meikuraledutech/mlgraph/algorithm"
)

// ModelCapabilities is what the model feeding a node can be evaluated and
// visualized with. It is derived on every request and never stored.
type ModelCapabilities struct {
	ModelNodeID      string   `json:"modelNodeId"`
	AlgorithmID      string   `json:"algorithmId"`
	SupportedMetrics []string `json:"supportedMetrics"`
	DefaultMetrics   []string `json:"defaultMetrics"`
	SupportedPlots   []string `json:"supportedPlots"`
	DefaultPlots     []string `json:"defaultPlots"`
}

// ResolveCapabilities finds the model configuring nodeID and returns the
// metric and plot sets of its algorithm. A model node resolves to itself;
// any other node walks its single-parent chain upstream. It returns nil when
// no model is found or its algorithm is not in reg.
func ResolveCapabilities(g *Graph, reg *algorithm.Registry, nodeID string) *ModelCapabilities {
	n, ok := g.Node(nodeID)
	if !ok {
		return nil
	}
	if n.Type() != NodeModel {
		if n, ok = g.NearestUpstreamOfType(nodeID, NodeModel); !ok {
			return nil
		}
	}

	m := n.Config.(*ModelConfig)
	d, ok := reg.Get(m.AlgorithmID)
	if !ok {
		return nil
	}
	return &ModelCapabilities{
		ModelNodeID:      n.ID,
		AlgorithmID:      d.ID,
		SupportedMetrics: nonNil(d.SupportedMetrics),
		DefaultMetrics:   nonNil(d.DefaultMetrics),
		SupportedPlots:   nonNil(d.SupportedPlots),
		DefaultPlots:     nonNil(d.DefaultPlots),
	}
}

// ClampMetrics keeps the selected metrics the capabilities support.
func (c *ModelCapabilities) ClampMetrics(selected []string) []string {
	if c == nil {
		return []string{}
	}
	return Intersect(selected, c.SupportedMetrics)
}

// ClampPlots keeps the selected plots the capabilities support.
func (c *ModelCapabilities) ClampPlots(selected []string) []string {
	if c == nil {
		return []string{}
	}
	return Intersect(selected, c.SupportedPlots)
}

// Intersect returns the members of selected that are in allowed, in
// selection order and without duplicates.
func Intersect(selected, allowed []string) []string {
	out := make([]string, 0, len(selected))
	for _, s := range selected {
		if slices.Contains(allowed, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
