package pipeline

import "context"

// Shape is the row and column count of a table.
type Shape struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

// Column describes one input column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema is the table an operation receives.
type Schema struct {
	Rows    int      `json:"rows"`
	Columns []Column `json:"columns"`
}

// Shape returns the row and column count of s.
func (s Schema) Shape() Shape {
	return Shape{Rows: s.Rows, Columns: len(s.Columns)}
}

// PreviewResult is what the preview service reports for one operation.
type PreviewResult struct {
	Warnings        []Warning `json:"warnings"`
	NewFeatureNames []string  `json:"newFeatureNames"`
	DroppedColumns  []string  `json:"droppedColumns"`
	RowsRemoved     int       `json:"rowsRemoved"`
}

// PreviewProvider runs an operation against a sample of its input and reports
// the features it creates, the columns and rows it drops and any warnings.
// Implementations live outside this module, typically as a client of the
// execution backend.
type PreviewProvider interface {
	Preview(ctx context.Context, op Operation, input Schema) (PreviewResult, error)
}

// PreviewFunc adapts a function to PreviewProvider.
type PreviewFunc func(ctx context.Context, op Operation, input Schema) (PreviewResult, error)

func (f PreviewFunc) Preview(ctx context.Context, op Operation, input Schema) (PreviewResult, error) {
	return f(ctx, op, input)
}

func (o Operation) apply(s Shape) Shape {
	s.Rows = max(s.Rows-o.RowsRemoved, 0)
	s.Columns = max(s.Columns+len(o.NewFeatureNames)-len(o.DroppedColumns), 0)
	return s
}

// schemaBefore replays the carried results of operations [0, i) over input.
// New columns are typed "derived" since the preview does not report types.
func (p *Pipeline) schemaBefore(i int, input Schema) Schema {
	out := Schema{Rows: input.Rows, Columns: append([]Column(nil), input.Columns...)}
	for _, op := range p.Operations[:i] {
		dropped := make(map[string]bool, len(op.DroppedColumns))
		for _, name := range op.DroppedColumns {
			dropped[name] = true
		}
		kept := out.Columns[:0]
		for _, c := range out.Columns {
			if !dropped[c.Name] {
				kept = append(kept, c)
			}
		}
		out.Columns = kept
		for _, name := range op.NewFeatureNames {
			out.Columns = append(out.Columns, Column{Name: name, Type: "derived"})
		}
		out.Rows = max(out.Rows-op.RowsRemoved, 0)
	}
	return out
}
