// Package mlgraph models a machine-learning workflow as a directed acyclic
// graph of typed steps and keeps it consistent while it is edited: which
// steps may feed which, what a trained model can be evaluated with, and how
// each step's configuration is shaped.
package mlgraph

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// NodeType is the kind of step a node represents.
type NodeType string

const (
	NodeDataset            NodeType = "dataset"
	NodePreprocessing      NodeType = "preprocessing"
	NodeFeatureEngineering NodeType = "featureEngineering"
	NodeTrainTestSplit     NodeType = "trainTestSplit"
	NodeModel              NodeType = "model"
	NodeEvaluate           NodeType = "evaluate"
	NodeVisualize          NodeType = "visualize"
)

// NodeTypes lists every node type in pipeline order.
var NodeTypes = []NodeType{
	NodeDataset,
	NodePreprocessing,
	NodeFeatureEngineering,
	NodeTrainTestSplit,
	NodeModel,
	NodeEvaluate,
	NodeVisualize,
}

func (t NodeType) Valid() bool {
	return slices.Contains(NodeTypes, t)
}

// Node is one step of the workflow. Its type is that of its config.
type Node struct {
	ID     string     `json:"id"`
	Config NodeConfig `json:"config"`
}

// Type returns the node type, or "" when the node has no config.
func (n Node) Type() NodeType {
	if n.Config == nil {
		return ""
	}
	return n.Config.NodeType()
}

func (n Node) clone() Node {
	return Node{ID: n.ID, Config: CloneConfig(n.Config)}
}

// Edge feeds the output of Source into Target.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is a workflow graph. The zero value is not usable; call New.
//
// Nodes keep insertion order. Every edge endpoint exists, every node has at
// most one incoming edge and the graph has no cycles.
type Graph struct {
	nodes []Node
	edges []Edge
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: []Node{}, edges: []Edge{}}
}

// Clone returns a deep copy of g. Configs are copied, never shared.
func (g *Graph) Clone() *Graph {
	out := &Graph{nodes: make([]Node, len(g.nodes)), edges: slices.Clone(g.edges)}
	for i, n := range g.nodes {
		out.nodes[i] = n.clone()
	}
	if out.edges == nil {
		out.edges = []Edge{}
	}
	return out
}

// AddNode adds a node holding cfg and returns its generated id.
func (g *Graph) AddNode(cfg NodeConfig) (string, error) {
	return g.InsertNode(Node{Config: cfg})
}

// InsertNode adds n as is. A node without an id gets a UUID.
func (g *Graph) InsertNode(n Node) (string, error) {
	if n.Config == nil {
		return "", ErrNilConfig
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if g.indexOfNode(n.ID) >= 0 {
		return "", fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	g.nodes = append(g.nodes, n.clone())
	return n.ID, nil
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	i := g.indexOfNode(id)
	if i < 0 {
		return Node{}, false
	}
	return g.nodes[i].clone(), true
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.clone()
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	return append([]Edge{}, g.edges...)
}

func (g *Graph) Len() int { return len(g.nodes) }

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(id string) error {
	i := g.indexOfNode(id)
	if i < 0 {
		return ErrNodeNotFound
	}
	g.nodes = slices.Delete(slices.Clone(g.nodes), i, i+1)
	g.edges = slices.DeleteFunc(slices.Clone(g.edges), func(e Edge) bool {
		return e.Source == id || e.Target == id
	})
	return nil
}

// SetConfig replaces a node's config. The new config must be of the same
// node type.
func (g *Graph) SetConfig(id string, cfg NodeConfig) error {
	if cfg == nil {
		return ErrNilConfig
	}
	i := g.indexOfNode(id)
	if i < 0 {
		return ErrNodeNotFound
	}
	if have, want := g.nodes[i].Type(), cfg.NodeType(); have != want {
		return fmt.Errorf("%w: node %s is %s, config is %s", ErrConfigTypeMismatch, id, have, want)
	}
	g.nodes[i].Config = CloneConfig(cfg)
	return nil
}

// AddEdge connects source to target if CanConnect allows it. Refusals are
// returned as *ConnectionError.
func (g *Graph) AddEdge(source, target string) (Edge, error) {
	if err := g.CanConnect(source, target); err != nil {
		return Edge{}, err
	}
	e := Edge{ID: uuid.NewString(), Source: source, Target: target}
	g.edges = append(g.edges, e)
	return e, nil
}

// RemoveEdge deletes an edge by id.
func (g *Graph) RemoveEdge(id string) error {
	i := slices.IndexFunc(g.edges, func(e Edge) bool { return e.ID == id })
	if i < 0 {
		return ErrEdgeNotFound
	}
	g.edges = slices.Delete(slices.Clone(g.edges), i, i+1)
	return nil
}

// IncomingEdge returns the single edge feeding nodeID.
func (g *Graph) IncomingEdge(nodeID string) (Edge, bool) {
	for _, e := range g.edges {
		if e.Target == nodeID {
			return e, true
		}
	}
	return Edge{}, false
}

// Upstream returns the node directly feeding nodeID.
func (g *Graph) Upstream(nodeID string) (Node, bool) {
	e, ok := g.IncomingEdge(nodeID)
	if !ok {
		return Node{}, false
	}
	return g.Node(e.Source)
}

// NearestUpstreamOfType walks the single-parent chain above nodeID until it
// finds a node of type t. The node itself is not considered.
func (g *Graph) NearestUpstreamOfType(nodeID string, t NodeType) (Node, bool) {
	seen := map[string]bool{nodeID: true}
	cur := nodeID
	for {
		up, ok := g.Upstream(cur)
		if !ok || seen[up.ID] {
			return Node{}, false
		}
		if up.Type() == t {
			return up, true
		}
		seen[up.ID] = true
		cur = up.ID
	}
}

// Downstream returns the nodes nodeID feeds directly, in edge order.
func (g *Graph) Downstream(nodeID string) []Node {
	var out []Node
	for _, e := range g.edges {
		if e.Source != nodeID {
			continue
		}
		if n, ok := g.Node(e.Target); ok {
			out = append(out, n)
		}
	}
	return out
}

// TopologicalOrder returns the nodes so that every edge points forward,
// using Kahn's algorithm. Ties keep insertion order. It fails with
// ErrCycleDetected if the graph is not acyclic.
func (g *Graph) TopologicalOrder() ([]Node, error) {
	indegree := make(map[string]int, len(g.nodes))
	adj := make(map[string][]string, len(g.nodes))
	for _, e := range g.edges {
		indegree[e.Target]++
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	queue := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]Node, 0, len(g.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		order = append(order, n)
		for _, next := range adj[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, ErrCycleDetected
	}
	return order, nil
}

// Validate checks the graph invariants: unique non-empty node ids, a config
// on every node, unique edge ids, existing endpoints, legal type pairs, a
// single input per node and no cycles.
func (g *Graph) Validate() error {
	types := make(map[string]NodeType, len(g.nodes))
	for _, n := range g.nodes {
		if n.ID == "" {
			return fmt.Errorf("mlgraph: node without id")
		}
		if n.Config == nil {
			return fmt.Errorf("%w: node %s", ErrNilConfig, n.ID)
		}
		if _, dup := types[n.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		types[n.ID] = n.Type()
	}

	edgeIDs := make(map[string]bool, len(g.edges))
	inputs := make(map[string]bool, len(g.edges))
	for _, e := range g.edges {
		if e.ID == "" || edgeIDs[e.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateEdge, e.ID)
		}
		edgeIDs[e.ID] = true

		st, ok := types[e.Source]
		if !ok {
			return fmt.Errorf("%w: edge %s source %s", ErrNodeNotFound, e.ID, e.Source)
		}
		tt, ok := types[e.Target]
		if !ok {
			return fmt.Errorf("%w: edge %s target %s", ErrNodeNotFound, e.ID, e.Target)
		}
		if !CanFeed(st, tt) {
			return &ConnectionError{Kind: IllegalNodePair, Source: e.Source, Target: e.Target, SourceType: st, TargetType: tt}
		}
		if inputs[e.Target] {
			return &ConnectionError{Kind: TargetAlreadyConnected, Source: e.Source, Target: e.Target, SourceType: st, TargetType: tt}
		}
		inputs[e.Target] = true
	}

	return validateAcyclic(g.nodes, g.edges)
}

// FromParts builds a graph from existing nodes and edges and validates it.
func FromParts(nodes []Node, edges []Edge) (*Graph, error) {
	g := New()
	for _, n := range nodes {
		g.nodes = append(g.nodes, n.clone())
	}
	g.edges = append(g.edges, edges...)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// validateAcyclic checks that the edges don't form a cycle using DFS.
func validateAcyclic(nodes []Node, edges []Edge) error {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[string]int, len(nodes))
	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = visiting
		for _, next := range adj[id] {
			switch state[next] {
			case visiting:
				return true
			case unvisited:
				if dfs(next) {
					return true
				}
			}
		}
		state[id] = visited
		return false
	}

	for _, n := range nodes {
		if state[n.ID] == unvisited && dfs(n.ID) {
			return ErrCycleDetected
		}
	}
	return nil
}

func (g *Graph) indexOfNode(id string) int {
	return slices.IndexFunc(g.nodes, func(n Node) bool { return n.ID == id })
}

type nodeJSON struct {
	ID     string          `json:"id"`
	Type   NodeType        `json:"type"`
	Config json.RawMessage `json:"config"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	if n.Config == nil {
		return nil, fmt.Errorf("%w: node %s", ErrNilConfig, n.ID)
	}
	raw, err := json.Marshal(n.Config)
	if err != nil {
		return nil, fmt.Errorf("mlgraph: encode config of %s: %w", n.ID, err)
	}
	return json.Marshal(nodeJSON{ID: n.ID, Type: n.Type(), Config: raw})
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var in nodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	cfg, err := DecodeConfig(in.Type, in.Config)
	if err != nil {
		return fmt.Errorf("mlgraph: node %s: %w", in.ID, err)
	}
	n.ID, n.Config = in.ID, cfg
	return nil
}

// DecodeConfig decodes raw into the config variant for t. Missing fields
// keep their defaults.
func DecodeConfig(t NodeType, raw json.RawMessage) (NodeConfig, error) {
	cfg, err := DefaultConfig(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, t)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("mlgraph: decode %s config: %w", t, err)
	}
	return cfg, nil
}

type graphJSON struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(graphJSON{Nodes: g.nodes, Edges: g.edges})
}

// UnmarshalJSON decodes a graph and checks its invariants.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var in graphJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	parsed, err := FromParts(in.Nodes, in.Edges)
	if err != nil {
		return err
	}
	*g = *parsed
	return nil
}
