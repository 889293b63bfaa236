package engine

import (
	"fmt"
	"sort"

	"github.com/meikuraledutech/mlgraph"
	"github.com/meikuraledutech/mlgraph/algorithm"
	"github.com/meikuraledutech/mlgraph/pipeline"
)

// Fields are the hyperparameter fields currently shown for a model node.
type Fields struct {
	Main     []algorithm.Field `json:"main"`
	Advanced []algorithm.Field `json:"advanced"`
}

// NodeReport is everything derived for one node.
type NodeReport struct {
	NodeID       string                     `json:"nodeId"`
	Type         mlgraph.NodeType           `json:"type"`
	Valid        bool                       `json:"valid"`
	Errors       map[string]string          `json:"errors"`
	Warnings     []string                   `json:"warnings"`
	Capabilities *mlgraph.ModelCapabilities `json:"capabilities"`
	Fields       *Fields                    `json:"fields,omitempty"`
	Severity     pipeline.Severity          `json:"severity,omitempty"`
	// OutputShape is the table leaving the node.
	OutputShape pipeline.Shape `json:"outputShape"`
	SampleCount int            `json:"sampleCount"`
	Cost        int            `json:"cost"`
}

func newNodeReport(n mlgraph.Node) NodeReport {
	return NodeReport{
		NodeID:   n.ID,
		Type:     n.Type(),
		Valid:    true,
		Errors:   map[string]string{},
		Warnings: []string{},
	}
}

func (r *NodeReport) fail(field, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if prev, ok := r.Errors[field]; ok {
		msg = prev + "; " + msg
	}
	r.Errors[field] = msg
	r.Valid = false
}

func (r *NodeReport) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ErrorFields returns the keys of r.Errors in sorted order.
func (r NodeReport) ErrorFields() []string {
	keys := make([]string, 0, len(r.Errors))
	for k := range r.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GraphReport is the derived state of a whole graph.
type GraphReport struct {
	Order     []string              `json:"order"`
	Nodes     map[string]NodeReport `json:"nodes"`
	TotalCost int                   `json:"totalCost"`
	// Ready is set when the graph has nodes and none of them has errors.
	Ready bool `json:"ready"`
}
