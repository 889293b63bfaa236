package mlgraph

import (
	"context"
	"errors"
	"time"
)

var ErrWorkflowNotFound = errors.New("mlgraph: workflow not found")

// Workflow is a named, persisted graph.
type Workflow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Graph     *Graph    `json:"graph"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WorkflowSummary is a workflow without its graph.
type WorkflowSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NodeCount int       `json:"nodeCount"`
	EdgeCount int       `json:"edgeCount"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store defines the contract for persisting and retrieving workflows.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// SaveWorkflow replaces the stored workflow with w. A workflow without an
	// id gets one; the saved workflow is returned.
	SaveWorkflow(ctx context.Context, w *Workflow) (*Workflow, error)
	// GetWorkflow returns ErrWorkflowNotFound if no workflow has the id.
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error
	ListWorkflows(ctx context.Context) ([]WorkflowSummary, error)
}
