package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/meikuraledutech/mlgraph"
	"github.com/meikuraledutech/mlgraph/algorithm"
	"github.com/meikuraledutech/mlgraph/engine"
	"github.com/meikuraledutech/mlgraph/pipeline"
	"github.com/meikuraledutech/mlgraph/postgres"
	"github.com/meikuraledutech/mlgraph/session"
)

func main() {
	ctx := context.Background()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	e := engine.New(algorithm.Default(), logger)
	s := session.New(e, session.WithName("customer churn"), session.WithLogger(logger))

	// ── Build dataset → preprocessing → split → model → evaluate/visualize ─
	ds := must(s.AddDataset(mlgraph.DatasetSummary{
		ID:           "churn-2024",
		Name:         "churn.csv",
		RowCount:     5000,
		TargetColumn: "churned",
		ProblemType:  algorithm.Classification,
		Columns: []mlgraph.ColumnSummary{
			{Name: "tenure", Type: "int"},
			{Name: "monthly_charges", Type: "float", NullPercentage: 3},
			{Name: "contract", Type: "string"},
			{Name: "churned", Type: "bool"},
		},
	}))
	pre := must(s.AddNode(mlgraph.NodePreprocessing))
	split := must(s.AddNode(mlgraph.NodeTrainTestSplit))
	model := must(s.AddNodeWithConfig(&mlgraph.ModelConfig{AlgorithmID: "random_forest", CVFolds: mlgraph.DefaultCVFolds}))
	eval := must(s.AddNode(mlgraph.NodeEvaluate))
	viz := must(s.AddNode(mlgraph.NodeVisualize))

	for _, pair := range [][2]string{{ds, pre}, {pre, split}, {split, model}, {model, eval}, {model, viz}} {
		if _, err := s.Connect(pair[0], pair[1]); err != nil {
			log.Fatalf("connect: %v", err)
		}
	}

	must(s.AppendOperation(pre, pipeline.OpImpute))
	must(s.AppendOperation(pre, pipeline.OpEncode))

	// ── Refused connections leave the graph untouched ─────────────────
	_, err = s.Connect(ds, eval)
	var cerr *mlgraph.ConnectionError
	if errors.As(err, &cerr) {
		fmt.Printf("refused: %s (%s)\n", cerr.Kind, cerr)
	}

	fmt.Println("\nrandom forest:")
	printReport(s)

	// ── Switching algorithm clamps downstream selections ──────────────
	if err := s.SetAlgorithm(model, "kmeans"); err != nil {
		log.Fatalf("set algorithm: %v", err)
	}
	fmt.Println("\nk-means:")
	printReport(s)

	// ── Persist when a database is configured ─────────────────────────
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		fmt.Println("\nDATABASE_URL is not set, skipping persistence")
		return
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	var store mlgraph.Store = postgres.New(pool, logger)
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}

	saved, err := store.SaveWorkflow(ctx, &mlgraph.Workflow{Name: s.Name, Graph: s.Graph()})
	if err != nil {
		log.Fatalf("save: %v", err)
	}
	fmt.Printf("\nsaved workflow %s\n", saved.ID)

	loaded, err := store.GetWorkflow(ctx, saved.ID)
	if err != nil {
		log.Fatalf("get: %v", err)
	}
	printJSON(loaded)

	if err := store.DeleteWorkflow(ctx, saved.ID); err != nil {
		log.Fatalf("delete: %v", err)
	}
	fmt.Println("workflow deleted")
}

func printReport(s *session.Session) {
	rep, err := s.Report()
	if err != nil {
		log.Fatalf("report: %v", err)
	}
	fmt.Printf("ready=%v totalCost=%d\n", rep.Ready, rep.TotalCost)
	g := s.Graph()
	for _, id := range rep.Order {
		nr := rep.Nodes[id]
		n, _ := g.Node(id)
		fmt.Printf("  %-18s valid=%-5v", nr.Type, nr.Valid)
		switch c := n.Config.(type) {
		case *mlgraph.ModelConfig:
			fmt.Printf(" algorithm=%s cost=%d", c.AlgorithmID, nr.Cost)
		case *mlgraph.EvaluateConfig:
			fmt.Printf(" metrics=%v", c.SelectedMetrics)
		case *mlgraph.VisualizeConfig:
			fmt.Printf(" plots=%v", c.SelectedPlots)
		}
		fmt.Println()
		for _, f := range nr.ErrorFields() {
			fmt.Printf("    error %s: %s\n", f, nr.Errors[f])
		}
		for _, w := range nr.Warnings {
			fmt.Printf("    warning: %s\n", w)
		}
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatal(err)
	}
	return v
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
