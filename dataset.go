package mlgraph

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/meikuraledutech/mlgraph/algorithm"
)

var validate = validator.New()

// DatasetSummary is what the dataset service reports about an uploaded
// dataset. It is only used to seed a dataset node.
type DatasetSummary struct {
	ID           string                `json:"id" validate:"required"`
	Name         string                `json:"name"`
	RowCount     int                   `json:"rowCount" validate:"gte=0"`
	ColumnCount  int                   `json:"columnCount" validate:"gte=0"`
	TargetColumn string                `json:"targetColumn,omitempty"`
	ProblemType  algorithm.ProblemType `json:"problemType,omitempty" validate:"omitempty,oneof=classification regression clustering"`
	Columns      []ColumnSummary       `json:"columns" validate:"dive"`
}

// NewDatasetConfig seeds a dataset node config from a summary. The target
// column, when given, must be one of the summary's columns.
func NewDatasetConfig(s DatasetSummary) (*DatasetConfig, error) {
	if err := validate.Struct(s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	if s.TargetColumn != "" && len(s.Columns) > 0 &&
		!slices.ContainsFunc(s.Columns, func(c ColumnSummary) bool { return c.Name == s.TargetColumn }) {
		return nil, fmt.Errorf("%w: target column %q not in dataset %s", ErrInvalidDataset, s.TargetColumn, s.ID)
	}

	cols := s.ColumnCount
	if cols == 0 {
		cols = len(s.Columns)
	}
	return &DatasetConfig{
		DatasetID:    s.ID,
		DatasetName:  s.Name,
		TargetColumn: s.TargetColumn,
		ProblemType:  s.ProblemType,
		RowCount:     s.RowCount,
		ColumnCount:  cols,
		Columns:      slices.Clone(s.Columns),
	}, nil
}
