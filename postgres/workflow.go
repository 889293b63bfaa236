package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/meikuraledutech/mlgraph"
)

// SaveWorkflow saves a full workflow (graph nodes + edges) in one
// transaction, replacing whatever was stored under the same id.
// A workflow without an ID gets a generated UUID. w is not modified.
func (s *PGStore) SaveWorkflow(ctx context.Context, w *mlgraph.Workflow) (*mlgraph.Workflow, error) {
	g := w.Graph
	if g == nil {
		g = mlgraph.New()
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	out := &mlgraph.Workflow{ID: w.ID, Name: w.Name, Graph: g.Clone()}
	if out.ID == "" {
		out.ID = uuid.NewString()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO workflows (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
		 RETURNING created_at, updated_at`,
		out.ID, out.Name,
	).Scan(&out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: upsert workflow: %w", err)
	}

	// Replace semantics: drop the previous graph before inserting the new one.
	if _, err := tx.Exec(ctx, `DELETE FROM workflow_edges WHERE workflow_id = $1`, out.ID); err != nil {
		return nil, fmt.Errorf("postgres: delete edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM workflow_nodes WHERE workflow_id = $1`, out.ID); err != nil {
		return nil, fmt.Errorf("postgres: delete nodes: %w", err)
	}

	for i, n := range out.Graph.Nodes() {
		raw, err := json.Marshal(n.Config)
		if err != nil {
			return nil, fmt.Errorf("postgres: encode node %s: %w", n.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO workflow_nodes (id, workflow_id, type, config, position) VALUES ($1, $2, $3, $4, $5)`,
			n.ID, out.ID, string(n.Type()), raw, i,
		); err != nil {
			return nil, fmt.Errorf("postgres: insert node %s: %w", n.ID, err)
		}
	}

	for i, e := range out.Graph.Edges() {
		if _, err := tx.Exec(ctx,
			`INSERT INTO workflow_edges (id, workflow_id, source_id, target_id, position) VALUES ($1, $2, $3, $4, $5)`,
			e.ID, out.ID, e.Source, e.Target, i,
		); err != nil {
			return nil, fmt.Errorf("postgres: insert edge %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit: %w", err)
	}

	s.log.Debug("workflow saved",
		zap.String("workflow", out.ID),
		zap.Int("nodes", out.Graph.Len()),
		zap.Int("edges", len(out.Graph.Edges())),
	)
	return out, nil
}

// GetWorkflow retrieves a full workflow by its ID.
// Returns mlgraph.ErrWorkflowNotFound if it doesn't exist.
func (s *PGStore) GetWorkflow(ctx context.Context, id string) (*mlgraph.Workflow, error) {
	w := &mlgraph.Workflow{ID: id}
	err := s.db.QueryRow(ctx,
		`SELECT name, created_at, updated_at FROM workflows WHERE id = $1`, id,
	).Scan(&w.Name, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mlgraph.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("postgres: get workflow: %w", err)
	}

	nodes, err := s.listNodes(ctx, id)
	if err != nil {
		return nil, err
	}
	edges, err := s.listEdges(ctx, id)
	if err != nil {
		return nil, err
	}

	g, err := mlgraph.FromParts(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("postgres: workflow %s: %w", id, err)
	}
	w.Graph = g
	return w, nil
}

// DeleteWorkflow removes a workflow; nodes and edges are cascade-deleted by
// the DB. No error if the workflow doesn't exist.
func (s *PGStore) DeleteWorkflow(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete workflow: %w", err)
	}
	return nil
}

// ListWorkflows returns every workflow, most recently updated first.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListWorkflows(ctx context.Context) ([]mlgraph.WorkflowSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT w.id, w.name, w.updated_at,
		       (SELECT count(*) FROM workflow_nodes n WHERE n.workflow_id = w.id),
		       (SELECT count(*) FROM workflow_edges e WHERE e.workflow_id = w.id)
		FROM workflows w
		ORDER BY w.updated_at DESC, w.id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list workflows: %w", err)
	}
	defer rows.Close()

	out := []mlgraph.WorkflowSummary{}
	for rows.Next() {
		var ws mlgraph.WorkflowSummary
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.UpdatedAt, &ws.NodeCount, &ws.EdgeCount); err != nil {
			return nil, fmt.Errorf("postgres: scan workflow: %w", err)
		}
		out = append(out, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows workflows: %w", err)
	}
	return out, nil
}

func (s *PGStore) listNodes(ctx context.Context, workflowID string) ([]mlgraph.Node, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, type, config FROM workflow_nodes WHERE workflow_id = $1 ORDER BY position`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list nodes: %w", err)
	}
	defer rows.Close()

	nodes := []mlgraph.Node{}
	for rows.Next() {
		var (
			id, typ string
			raw     []byte
		)
		if err := rows.Scan(&id, &typ, &raw); err != nil {
			return nil, fmt.Errorf("postgres: scan node: %w", err)
		}
		cfg, err := mlgraph.DecodeConfig(mlgraph.NodeType(typ), raw)
		if err != nil {
			return nil, fmt.Errorf("postgres: node %s: %w", id, err)
		}
		nodes = append(nodes, mlgraph.Node{ID: id, Config: cfg})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows nodes: %w", err)
	}
	return nodes, nil
}

func (s *PGStore) listEdges(ctx context.Context, workflowID string) ([]mlgraph.Edge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, source_id, target_id FROM workflow_edges WHERE workflow_id = $1 ORDER BY position`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list edges: %w", err)
	}
	defer rows.Close()

	edges := []mlgraph.Edge{}
	for rows.Next() {
		var e mlgraph.Edge
		if err := rows.Scan(&e.ID, &e.Source, &e.Target); err != nil {
			return nil, fmt.Errorf("postgres: scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows edges: %w", err)
	}
	return edges, nil
}
