// Package pipeline models the ordered list of transform operations held by a
// preprocessing or feature-engineering node.
//
// Mutations only ever touch the operation they target. The per-operation
// warnings and generated feature names are produced by an external preview
// service (see PreviewProvider) and are carried here untouched.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrOperationNotFound    = errors.New("pipeline: operation not found")
	ErrUnknownOperationType = errors.New("pipeline: unknown operation type")
	ErrCannotMove           = errors.New("pipeline: operation is already at the edge")
	ErrInvalidDirection     = errors.New("pipeline: invalid direction")
)

// Direction is where Move shifts an operation.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Severity aggregates the warnings of a whole pipeline.
type Severity string

const (
	SeverityClean   Severity = "clean"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Pipeline is an ordered list of operations. Order values always equal list
// positions.
type Pipeline struct {
	Stage      Stage       `json:"stage"`
	Operations []Operation `json:"operations"`
}

// New returns an empty pipeline for stage s.
func New(s Stage) Pipeline {
	return Pipeline{Stage: s, Operations: []Operation{}}
}

// Clone returns a deep copy of p.
func (p Pipeline) Clone() Pipeline {
	out := Pipeline{Stage: p.Stage, Operations: make([]Operation, len(p.Operations))}
	for i, op := range p.Operations {
		out.Operations[i] = op.clone()
	}
	return out
}

// Append adds an operation of type t at the end with its default config.
func (p *Pipeline) Append(t OperationType) (Operation, error) {
	if !Supports(p.Stage, t) {
		return Operation{}, fmt.Errorf("%w: %q in %s", ErrUnknownOperationType, t, p.Stage)
	}
	op := Operation{
		ID:              uuid.NewString(),
		Type:            t,
		Order:           len(p.Operations),
		Config:          DefaultConfig(t),
		NewFeatureNames: []string{},
		Warnings:        []Warning{},
	}
	p.Operations = append(p.Operations, op)
	return op.clone(), nil
}

// Get returns a copy of the operation with the given id.
func (p *Pipeline) Get(id string) (Operation, bool) {
	i := p.index(id)
	if i < 0 {
		return Operation{}, false
	}
	return p.Operations[i].clone(), true
}

// Remove deletes an operation and renumbers the rest.
func (p *Pipeline) Remove(id string) error {
	i := p.index(id)
	if i < 0 {
		return ErrOperationNotFound
	}
	p.Operations = append(p.Operations[:i:i], p.Operations[i+1:]...)
	p.renumber()
	return nil
}

// Move swaps an operation with its neighbour in direction dir.
func (p *Pipeline) Move(id string, dir Direction) error {
	i := p.index(id)
	if i < 0 {
		return ErrOperationNotFound
	}

	var j int
	switch dir {
	case Up:
		j = i - 1
	case Down:
		j = i + 1
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
	if j < 0 || j >= len(p.Operations) {
		return ErrCannotMove
	}

	p.Operations[i], p.Operations[j] = p.Operations[j], p.Operations[i]
	p.renumber()
	return nil
}

// UpdateConfig shallow-merges partial into the operation's config.
func (p *Pipeline) UpdateConfig(id string, partial map[string]any) error {
	i := p.index(id)
	if i < 0 {
		return ErrOperationNotFound
	}
	cfg := cloneConfig(p.Operations[i].Config)
	for k, v := range partial {
		cfg[k] = v
	}
	p.Operations[i].Config = cfg
	return nil
}

// ApplyPreview stores what the preview service reported for one operation.
func (p *Pipeline) ApplyPreview(id string, r PreviewResult) error {
	i := p.index(id)
	if i < 0 {
		return ErrOperationNotFound
	}
	op := &p.Operations[i]
	op.Warnings = append([]Warning{}, r.Warnings...)
	op.NewFeatureNames = append([]string{}, r.NewFeatureNames...)
	op.DroppedColumns = append([]string(nil), r.DroppedColumns...)
	op.RowsRemoved = r.RowsRemoved
	return nil
}

// Refresh asks provider to preview one operation against the schema produced
// by the operations before it, and stores the result.
func (p *Pipeline) Refresh(ctx context.Context, provider PreviewProvider, id string, input Schema) error {
	i := p.index(id)
	if i < 0 {
		return ErrOperationNotFound
	}
	res, err := provider.Preview(ctx, p.Operations[i].clone(), p.schemaBefore(i, input))
	if err != nil {
		return fmt.Errorf("pipeline: preview %s: %w", id, err)
	}
	return p.ApplyPreview(id, res)
}

// NewFeatureCount is the number of features all operations add.
func (p Pipeline) NewFeatureCount() int {
	n := 0
	for _, op := range p.Operations {
		n += len(op.NewFeatureNames)
	}
	return n
}

// Severity is error if any operation carries an error warning, warning if
// any carries a warning, and clean otherwise. Tips do not count.
func (p Pipeline) Severity() Severity {
	sev := SeverityClean
	for _, op := range p.Operations {
		if op.hasWarning(WarningError) {
			return SeverityError
		}
		if op.hasWarning(WarningWarning) {
			sev = SeverityWarning
		}
	}
	return sev
}

// OutputShape derives the shape leaving the pipeline from its input shape.
func (p Pipeline) OutputShape(in Shape) Shape {
	out := in
	for _, op := range p.Operations {
		out = op.apply(out)
	}
	return out
}

// OutputSchema replays the carried results of every operation over input.
func (p Pipeline) OutputSchema(input Schema) Schema {
	return p.schemaBefore(len(p.Operations), input)
}

func (p *Pipeline) index(id string) int {
	for i := range p.Operations {
		if p.Operations[i].ID == id {
			return i
		}
	}
	return -1
}

func (p *Pipeline) renumber() {
	for i := range p.Operations {
		p.Operations[i].Order = i
	}
}
