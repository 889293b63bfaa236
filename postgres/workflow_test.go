package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/mlgraph"
	"github.com/meikuraledutech/mlgraph/pipeline"
)

func newStore(t *testing.T) *PGStore {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL is not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := New(pool, nil)
	require.NoError(t, s.CreateSchema(ctx))
	return s
}

func sampleGraph(t *testing.T) *mlgraph.Graph {
	t.Helper()
	g := mlgraph.New()
	ds, err := g.AddNode(&mlgraph.DatasetConfig{DatasetID: "d1", TargetColumn: "y", ProblemType: "classification", RowCount: 500})
	require.NoError(t, err)

	p := pipeline.New(pipeline.StagePreprocessing)
	_, err = p.Append(pipeline.OpImpute)
	require.NoError(t, err)
	pre, err := g.AddNode(&mlgraph.PreprocessingConfig{Pipeline: p})
	require.NoError(t, err)

	model, err := g.AddNode(&mlgraph.ModelConfig{AlgorithmID: "random_forest", CVFolds: 5})
	require.NoError(t, err)
	eval, err := g.AddNode(&mlgraph.EvaluateConfig{SelectedMetrics: []string{"accuracy"}})
	require.NoError(t, err)

	for _, pair := range [][2]string{{ds, pre}, {pre, model}, {model, eval}} {
		_, err := g.AddEdge(pair[0], pair[1])
		require.NoError(t, err)
	}
	return g
}

func TestSaveAndGetWorkflow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	g := sampleGraph(t)
	saved, err := s.SaveWorkflow(ctx, &mlgraph.Workflow{Name: "churn", Graph: g})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	t.Cleanup(func() { _ = s.DeleteWorkflow(ctx, saved.ID) })

	got, err := s.GetWorkflow(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "churn", got.Name)
	want, err := json.Marshal(g)
	require.NoError(t, err)
	have, err := json.Marshal(got.Graph)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(have))

	// Saving again replaces the graph.
	small := mlgraph.New()
	_, err = small.AddNode(&mlgraph.DatasetConfig{DatasetID: "d2"})
	require.NoError(t, err)
	_, err = s.SaveWorkflow(ctx, &mlgraph.Workflow{ID: saved.ID, Name: "renamed", Graph: small})
	require.NoError(t, err)

	got, err = s.GetWorkflow(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, 1, got.Graph.Len())
	assert.Empty(t, got.Graph.Edges())

	list, err := s.ListWorkflows(ctx)
	require.NoError(t, err)
	var found bool
	for _, ws := range list {
		if ws.ID == saved.ID {
			found = true
			assert.Equal(t, 1, ws.NodeCount)
			assert.Equal(t, 0, ws.EdgeCount)
		}
	}
	assert.True(t, found)
}

func TestDeleteWorkflow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	saved, err := s.SaveWorkflow(ctx, &mlgraph.Workflow{Graph: sampleGraph(t)})
	require.NoError(t, err)

	require.NoError(t, s.DeleteWorkflow(ctx, saved.ID))
	_, err = s.GetWorkflow(ctx, saved.ID)
	assert.ErrorIs(t, err, mlgraph.ErrWorkflowNotFound)

	assert.NoError(t, s.DeleteWorkflow(ctx, saved.ID))
}
