// Package session owns one editing session: a workflow graph plus the UI
// state around it. Every mutation is applied to a copy of the graph and only
// swapped in when it succeeds, so readers never observe a half-applied edit.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meikuraledutech/mlgraph"
	"github.com/meikuraledutech/mlgraph/algorithm"
	"github.com/meikuraledutech/mlgraph/engine"
	"github.com/meikuraledutech/mlgraph/pipeline"
)

var (
	ErrNoPreviewProvider = errors.New("session: no preview provider configured")
	ErrNotPipelineNode   = errors.New("session: node has no operation pipeline")
)

// Position is where the inspector panel sits on screen.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UIState is editor state that never affects the graph.
type UIState struct {
	SelectedNodeID string   `json:"selectedNodeId,omitempty"`
	Inspector      Position `json:"inspector"`
}

// Session is one user's editing session.
type Session struct {
	ID   string
	Name string

	engine  *engine.Engine
	preview pipeline.PreviewProvider
	log     *zap.Logger

	mu        sync.RWMutex
	graph     *mlgraph.Graph
	ui        UIState
	updatedAt time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithPreviewProvider sets the service that previews pipeline operations.
func WithPreviewProvider(p pipeline.PreviewProvider) Option {
	return func(s *Session) { s.preview = p }
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithID sets the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) { s.ID = id }
}

// WithName names the session.
func WithName(name string) Option {
	return func(s *Session) { s.Name = name }
}

// New starts an empty session.
func New(e *engine.Engine, opts ...Option) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		engine:    e,
		log:       zap.NewNop(),
		graph:     mlgraph.New(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("session", s.ID))
	return s
}

// Graph returns a copy of the current graph.
func (s *Session) Graph() *mlgraph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Clone()
}

// UI returns the current UI state.
func (s *Session) UI() UIState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ui
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Report derives the state of the whole graph.
func (s *Session) Report() (engine.GraphReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Inspect(s.graph)
}

// NodeReport derives the state of one node.
func (s *Session) NodeReport(nodeID string) (engine.NodeReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.InspectNode(s.graph, nodeID)
}

// Load replaces the graph, clamping selections to the loaded models.
func (s *Session) Load(g *mlgraph.Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}
	return s.apply("load", func(next *mlgraph.Graph) error {
		*next = *g.Clone()
		s.engine.Reconcile(next)
		return nil
	})
}

// AddNode adds a node of type t with its default config.
func (s *Session) AddNode(t mlgraph.NodeType) (string, error) {
	cfg, err := mlgraph.DefaultConfig(t)
	if err != nil {
		return "", err
	}
	return s.AddNodeWithConfig(cfg)
}

// AddNodeWithConfig adds a node holding cfg. A model config gets the
// defaults of its algorithm when it carries no hyperparameters.
func (s *Session) AddNodeWithConfig(cfg mlgraph.NodeConfig) (string, error) {
	if cfg == nil {
		return "", mlgraph.ErrNilConfig
	}
	cfg = mlgraph.CloneConfig(cfg)
	if m, ok := cfg.(*mlgraph.ModelConfig); ok && len(m.Hyperparameters) == 0 {
		m.Hyperparameters = s.engine.Hyperparams().Defaults(m.AlgorithmID)
	}

	var id string
	err := s.apply("add node", func(g *mlgraph.Graph) error {
		var err error
		id, err = g.AddNode(cfg)
		return err
	}, zap.String("type", string(cfg.NodeType())))
	return id, err
}

// AddDataset adds a dataset node seeded from a dataset summary.
func (s *Session) AddDataset(summary mlgraph.DatasetSummary) (string, error) {
	cfg, err := mlgraph.NewDatasetConfig(summary)
	if err != nil {
		return "", err
	}
	return s.AddNodeWithConfig(cfg)
}

// RemoveNode deletes a node and its edges, and clears the selection if it
// pointed at the node.
func (s *Session) RemoveNode(id string) error {
	return s.apply("remove node", func(g *mlgraph.Graph) error {
		if err := g.RemoveNode(id); err != nil {
			return err
		}
		if s.ui.SelectedNodeID == id {
			s.ui.SelectedNodeID = ""
		}
		s.engine.Reconcile(g)
		return nil
	}, zap.String("node", id))
}

// Connect adds an edge. An evaluate or visualize target with an empty
// selection is seeded with the defaults of the model now feeding it.
func (s *Session) Connect(source, target string) (mlgraph.Edge, error) {
	var edge mlgraph.Edge
	err := s.apply("connect", func(g *mlgraph.Graph) error {
		var err error
		if edge, err = g.AddEdge(source, target); err != nil {
			return err
		}
		s.engine.Seed(g, target)
		s.engine.Reconcile(g)
		return nil
	}, zap.String("source", source), zap.String("target", target))
	return edge, err
}

// Disconnect removes an edge.
func (s *Session) Disconnect(edgeID string) error {
	return s.apply("disconnect", func(g *mlgraph.Graph) error {
		return g.RemoveEdge(edgeID)
	}, zap.String("edge", edgeID))
}

// UpdateConfig replaces a node's config. When a model's algorithm changes,
// its hyperparameters are reset to the new algorithm's defaults and the
// selections downstream are clamped.
func (s *Session) UpdateConfig(nodeID string, cfg mlgraph.NodeConfig) error {
	if cfg == nil {
		return mlgraph.ErrNilConfig
	}
	cfg = mlgraph.CloneConfig(cfg)
	return s.apply("update config", func(g *mlgraph.Graph) error {
		n, ok := g.Node(nodeID)
		if !ok {
			return mlgraph.ErrNodeNotFound
		}
		next, isModel := cfg.(*mlgraph.ModelConfig)
		cur, _ := n.Config.(*mlgraph.ModelConfig)
		if isModel && cur != nil && cur.AlgorithmID != next.AlgorithmID {
			next.Hyperparameters = s.engine.Hyperparams().Defaults(next.AlgorithmID)
		}
		if err := g.SetConfig(nodeID, cfg); err != nil {
			return err
		}
		if n.Type() == mlgraph.NodeModel {
			s.engine.Reconcile(g)
		}
		return nil
	}, zap.String("node", nodeID))
}

// SetAlgorithm switches a model node's algorithm.
func (s *Session) SetAlgorithm(nodeID, algorithmID string) error {
	return s.apply("set algorithm", func(g *mlgraph.Graph) error {
		return s.engine.SetAlgorithm(g, nodeID, algorithmID)
	}, zap.String("node", nodeID), zap.String("algorithm", algorithmID))
}

// UpdateHyperparameters merges patch into a model node's hyperparameters.
func (s *Session) UpdateHyperparameters(nodeID string, patch algorithm.Values) error {
	return s.apply("update hyperparameters", func(g *mlgraph.Graph) error {
		n, ok := g.Node(nodeID)
		if !ok {
			return mlgraph.ErrNodeNotFound
		}
		m, ok := n.Config.(*mlgraph.ModelConfig)
		if !ok {
			return fmt.Errorf("%w: node %s is %s, not a model", mlgraph.ErrConfigTypeMismatch, nodeID, n.Type())
		}
		m.Hyperparameters = m.Hyperparameters.Merge(patch)
		return g.SetConfig(nodeID, m)
	}, zap.String("node", nodeID))
}

// Select sets the selected node. An empty id clears the selection.
func (s *Session) Select(nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nodeID != "" {
		if _, ok := s.graph.Node(nodeID); !ok {
			return mlgraph.ErrNodeNotFound
		}
	}
	s.ui.SelectedNodeID = nodeID
	return nil
}

// MoveInspector places the inspector panel.
func (s *Session) MoveInspector(p Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ui.Inspector = p
}

// apply runs fn on a copy of the graph and swaps it in on success. fn may
// also touch s.ui; UI changes are rolled back with the graph on failure.
func (s *Session) apply(action string, fn func(g *mlgraph.Graph) error, fields ...zap.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.graph.Clone()
	ui := s.ui
	if err := fn(next); err != nil {
		s.ui = ui
		var cerr *mlgraph.ConnectionError
		if errors.As(err, &cerr) {
			s.log.Warn("connection refused", append(fields, zap.String("reason", string(cerr.Kind)))...)
		} else {
			s.log.Debug(action+" failed", append(fields, zap.Error(err))...)
		}
		return err
	}

	s.graph = next
	s.updatedAt = time.Now()
	s.log.Debug(action, fields...)
	return nil
}

// withPipeline applies fn to the pipeline of a preprocessing or
// feature-engineering node.
func (s *Session) withPipeline(action, nodeID string, fn func(g *mlgraph.Graph, p *pipeline.Pipeline) error, fields ...zap.Field) error {
	return s.apply(action, func(g *mlgraph.Graph) error {
		n, ok := g.Node(nodeID)
		if !ok {
			return mlgraph.ErrNodeNotFound
		}
		p, ok := mlgraph.PipelineOf(n.Config)
		if !ok {
			return fmt.Errorf("%w: %s is %s", ErrNotPipelineNode, nodeID, n.Type())
		}
		if err := fn(g, p); err != nil {
			return err
		}
		return g.SetConfig(nodeID, n.Config)
	}, append(fields, zap.String("node", nodeID))...)
}

// AppendOperation adds an operation of type t to a pipeline node.
func (s *Session) AppendOperation(nodeID string, t pipeline.OperationType) (pipeline.Operation, error) {
	var op pipeline.Operation
	err := s.withPipeline("append operation", nodeID, func(_ *mlgraph.Graph, p *pipeline.Pipeline) error {
		var err error
		op, err = p.Append(t)
		return err
	}, zap.String("operation", string(t)))
	return op, err
}

// RemoveOperation deletes an operation from a pipeline node.
func (s *Session) RemoveOperation(nodeID, opID string) error {
	return s.withPipeline("remove operation", nodeID, func(_ *mlgraph.Graph, p *pipeline.Pipeline) error {
		return p.Remove(opID)
	}, zap.String("operation", opID))
}

// MoveOperation shifts an operation one place up or down.
func (s *Session) MoveOperation(nodeID, opID string, dir pipeline.Direction) error {
	return s.withPipeline("move operation", nodeID, func(_ *mlgraph.Graph, p *pipeline.Pipeline) error {
		return p.Move(opID, dir)
	}, zap.String("operation", opID), zap.String("direction", string(dir)))
}

// UpdateOperation shallow-merges partial into an operation's config.
func (s *Session) UpdateOperation(nodeID, opID string, partial map[string]any) error {
	return s.withPipeline("update operation", nodeID, func(_ *mlgraph.Graph, p *pipeline.Pipeline) error {
		return p.UpdateConfig(opID, partial)
	}, zap.String("operation", opID))
}

// RefreshOperation asks the preview provider to re-run one operation against
// the table arriving at its node and stores the result.
func (s *Session) RefreshOperation(ctx context.Context, nodeID, opID string) error {
	if s.preview == nil {
		return ErrNoPreviewProvider
	}
	return s.withPipeline("refresh operation", nodeID, func(g *mlgraph.Graph, p *pipeline.Pipeline) error {
		return p.Refresh(ctx, s.preview, opID, s.engine.InputSchema(g, nodeID))
	}, zap.String("operation", opID))
}
