package mlgraph

import (
	"errors"
	"fmt"
)

var (
	ErrCycleDetected      = errors.New("mlgraph: cycle detected, graph is not acyclic")
	ErrNodeNotFound       = errors.New("mlgraph: node not found")
	ErrEdgeNotFound       = errors.New("mlgraph: edge not found")
	ErrDuplicateNode      = errors.New("mlgraph: duplicate node id")
	ErrDuplicateEdge      = errors.New("mlgraph: duplicate edge id")
	ErrNilConfig          = errors.New("mlgraph: node config is nil")
	ErrConfigTypeMismatch = errors.New("mlgraph: config does not match node type")
	ErrUnknownNodeType    = errors.New("mlgraph: unknown node type")
	ErrInvalidDataset     = errors.New("mlgraph: invalid dataset summary")

	ErrIllegalNodePair        = errors.New("mlgraph: illegal node pair")
	ErrTargetAlreadyConnected = errors.New("mlgraph: target already has an input")
	ErrWouldCreateCycle       = errors.New("mlgraph: connection would create a cycle")
)

// ConnectionErrorKind says why a connection was refused.
type ConnectionErrorKind string

const (
	IllegalNodePair        ConnectionErrorKind = "IllegalNodePair"
	TargetAlreadyConnected ConnectionErrorKind = "TargetAlreadyConnected"
	WouldCreateCycle       ConnectionErrorKind = "WouldCreateCycle"
)

// ConnectionError is returned when an edge is refused. It matches the
// ErrIllegalNodePair, ErrTargetAlreadyConnected and ErrWouldCreateCycle
// sentinels with errors.Is.
type ConnectionError struct {
	Kind       ConnectionErrorKind
	Source     string
	Target     string
	SourceType NodeType
	TargetType NodeType
}

func (e *ConnectionError) Error() string {
	switch e.Kind {
	case IllegalNodePair:
		return fmt.Sprintf("mlgraph: cannot connect %s to %s", e.SourceType, e.TargetType)
	case TargetAlreadyConnected:
		return fmt.Sprintf("mlgraph: node %s already has an input", e.Target)
	case WouldCreateCycle:
		return fmt.Sprintf("mlgraph: connecting %s to %s would create a cycle", e.Source, e.Target)
	}
	return fmt.Sprintf("mlgraph: connection refused (%s)", e.Kind)
}

func (e *ConnectionError) Is(target error) bool {
	switch e.Kind {
	case IllegalNodePair:
		return target == ErrIllegalNodePair
	case TargetAlreadyConnected:
		return target == ErrTargetAlreadyConnected
	case WouldCreateCycle:
		return target == ErrWouldCreateCycle
	}
	return false
}
