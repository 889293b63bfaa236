package mlgraph

import "slices"

// successors maps each node type to the types it may feed.
var successors = map[NodeType][]NodeType{
	NodeDataset:            {NodePreprocessing, NodeFeatureEngineering, NodeTrainTestSplit, NodeModel},
	NodePreprocessing:      {NodePreprocessing, NodeFeatureEngineering, NodeTrainTestSplit, NodeModel},
	NodeFeatureEngineering: {NodePreprocessing, NodeFeatureEngineering, NodeTrainTestSplit, NodeModel},
	NodeTrainTestSplit:     {NodeModel},
	NodeModel:              {NodeEvaluate, NodeVisualize},
	NodeEvaluate:           {},
	NodeVisualize:          {},
}

// Successors returns the node types that may follow t.
func Successors(t NodeType) []NodeType {
	return slices.Clone(successors[t])
}

// CanFeed reports whether a node of type source may feed one of type target.
func CanFeed(source, target NodeType) bool {
	return slices.Contains(successors[source], target)
}

// CanConnect reports whether an edge source -> target may be added. The
// checks run in order: type pair legality, the target's single input, and
// acyclicity. Refusals are *ConnectionError; unknown ids are ErrNodeNotFound.
func (g *Graph) CanConnect(source, target string) error {
	s, ok := g.Node(source)
	if !ok {
		return ErrNodeNotFound
	}
	t, ok := g.Node(target)
	if !ok {
		return ErrNodeNotFound
	}

	refuse := func(kind ConnectionErrorKind) error {
		return &ConnectionError{Kind: kind, Source: source, Target: target, SourceType: s.Type(), TargetType: t.Type()}
	}

	if !CanFeed(s.Type(), t.Type()) {
		return refuse(IllegalNodePair)
	}
	if _, has := g.IncomingEdge(target); has {
		return refuse(TargetAlreadyConnected)
	}
	if g.reaches(target, source) {
		return refuse(WouldCreateCycle)
	}
	return nil
}

// reaches reports whether to is reachable from from over existing edges.
// A node reaches itself.
func (g *Graph) reaches(from, to string) bool {
	adj := make(map[string][]string)
	for _, e := range g.edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	visited := make(map[string]bool)
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		stack = append(stack, adj[id]...)
	}
	return false
}
