package main

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/meikuraledutech/mlgraph"
	"github.com/meikuraledutech/mlgraph/algorithm"
	"github.com/meikuraledutech/mlgraph/cost"
	"github.com/meikuraledutech/mlgraph/engine"
	"github.com/meikuraledutech/mlgraph/pipeline"
	"github.com/meikuraledutech/mlgraph/session"
)

var errNoStore = errors.New("server: persistence is not configured")

// api holds the handlers' dependencies. store is nil when no database is
// configured; the schema and workflow routes then answer 503.
type api struct {
	engine   *engine.Engine
	sessions *session.Manager
	store    mlgraph.Store
	log      *zap.Logger
}

func newApp(a *api) *fiber.App {
	if a.log == nil {
		a.log = zap.NewNop()
	}
	app := fiber.New()

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if a.store == nil {
			return a.fail(c, errNoStore)
		}
		if err := a.store.CreateSchema(c.Context()); err != nil {
			return a.fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if a.store == nil {
			return a.fail(c, errNoStore)
		}
		if err := a.store.DropSchema(c.Context()); err != nil {
			return a.fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Catalog ───────────────────────────────────────────────────────
	app.Get("/algorithms", func(c fiber.Ctx) error {
		reg := a.engine.Registry()
		if p := algorithm.ProblemType(c.Query("problemType")); p != "" {
			return c.JSON(reg.ForProblemType(p))
		}
		return c.JSON(reg.List())
	})

	app.Get("/algorithms/:id", func(c fiber.Ctx) error {
		d, ok := a.engine.Registry().Get(c.Params("id"))
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "algorithm not found"})
		}
		return c.JSON(d)
	})

	app.Post("/cost", func(c fiber.Ctx) error {
		var p cost.Params
		if err := c.Bind().JSON(&p); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		return c.JSON(fiber.Map{"cost": a.engine.Costs().Estimate(p)})
	})

	// ── Sessions ──────────────────────────────────────────────────────
	app.Post("/sessions", func(c fiber.Ctx) error {
		var body struct {
			Name string `json:"name"`
		}
		if len(c.Body()) > 0 {
			if err := c.Bind().JSON(&body); err != nil {
				return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
			}
		}
		s := a.sessions.Create(session.WithName(body.Name))
		return c.Status(201).JSON(fiber.Map{"id": s.ID, "name": s.Name})
	})

	app.Get("/sessions", func(c fiber.Ctx) error {
		return c.JSON(a.sessions.List())
	})

	app.Get("/sessions/:id", func(c fiber.Ctx) error {
		s, err := a.sessions.Get(c.Params("id"))
		if err != nil {
			return a.fail(c, err)
		}
		return c.JSON(fiber.Map{
			"id":        s.ID,
			"name":      s.Name,
			"graph":     s.Graph(),
			"ui":        s.UI(),
			"updatedAt": s.UpdatedAt(),
		})
	})

	app.Delete("/sessions/:id", func(c fiber.Ctx) error {
		if err := a.sessions.Close(c.Params("id")); err != nil {
			return a.fail(c, err)
		}
		return c.SendStatus(204)
	})

	app.Get("/sessions/:id/report", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		rep, err := s.Report()
		if err != nil {
			return a.fail(c, err)
		}
		return c.JSON(rep)
	}))

	app.Put("/sessions/:id/selection", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		var body struct {
			NodeID string `json:"nodeId"`
		}
		if err := c.Bind().JSON(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := s.Select(body.NodeID); err != nil {
			return a.fail(c, err)
		}
		return c.JSON(s.UI())
	}))

	app.Put("/sessions/:id/inspector", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		var p session.Position
		if err := c.Bind().JSON(&p); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		s.MoveInspector(p)
		return c.JSON(s.UI())
	}))

	// ── Nodes ─────────────────────────────────────────────────────────
	app.Post("/sessions/:id/nodes", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		var body struct {
			Type   mlgraph.NodeType `json:"type"`
			Config json.RawMessage  `json:"config"`
		}
		if err := c.Bind().JSON(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		cfg, err := mlgraph.DecodeConfig(body.Type, body.Config)
		if err != nil {
			return a.fail(c, err)
		}
		id, err := s.AddNodeWithConfig(cfg)
		if err != nil {
			return a.fail(c, err)
		}
		return c.Status(201).JSON(fiber.Map{"id": id})
	}))

	app.Post("/sessions/:id/datasets", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		var summary mlgraph.DatasetSummary
		if err := c.Bind().JSON(&summary); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		id, err := s.AddDataset(summary)
		if err != nil {
			return a.fail(c, err)
		}
		return c.Status(201).JSON(fiber.Map{"id": id})
	}))

	app.Get("/sessions/:id/nodes/:node", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		n, ok := s.Graph().Node(c.Params("node"))
		if !ok {
			return a.fail(c, mlgraph.ErrNodeNotFound)
		}
		return c.JSON(n)
	}))

	app.Get("/sessions/:id/nodes/:node/report", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		rep, err := s.NodeReport(c.Params("node"))
		if err != nil {
			return a.fail(c, err)
		}
		return c.JSON(rep)
	}))

	// The body is merged over the node's current config.
	app.Put("/sessions/:id/nodes/:node/config", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		n, ok := s.Graph().Node(c.Params("node"))
		if !ok {
			return a.fail(c, mlgraph.ErrNodeNotFound)
		}
		if err := json.Unmarshal(c.Body(), n.Config); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := s.UpdateConfig(n.ID, n.Config); err != nil {
			return a.fail(c, err)
		}
		return c.SendStatus(204)
	}))

	app.Put("/sessions/:id/nodes/:node/algorithm", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		var body struct {
			AlgorithmID string `json:"algorithmId"`
		}
		if err := c.Bind().JSON(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := s.SetAlgorithm(c.Params("node"), body.AlgorithmID); err != nil {
			return a.fail(c, err)
		}
		return c.SendStatus(204)
	}))

	app.Patch("/sessions/:id/nodes/:node/hyperparameters", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		var patch algorithm.Values
		if err := c.Bind().JSON(&patch); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := s.UpdateHyperparameters(c.Params("node"), patch); err != nil {
			return a.fail(c, err)
		}
		return c.SendStatus(204)
	}))

	app.Delete("/sessions/:id/nodes/:node", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		if err := s.RemoveNode(c.Params("node")); err != nil {
			return a.fail(c, err)
		}
		return c.SendStatus(204)
	}))

	// ── Edges ─────────────────────────────────────────────────────────
	app.Post("/sessions/:id/edges", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		var body struct {
			Source string `json:"source"`
			Target string `json:"target"`
		}
		if err := c.Bind().JSON(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		edge, err := s.Connect(body.Source, body.Target)
		if err != nil {
			return a.fail(c, err)
		}
		return c.Status(201).JSON(edge)
	}))

	app.Delete("/sessions/:id/edges/:edge", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		if err := s.Disconnect(c.Params("edge")); err != nil {
			return a.fail(c, err)
		}
		return c.SendStatus(204)
	}))

	// ── Pipeline operations ───────────────────────────────────────────
	app.Post("/sessions/:id/nodes/:node/operations", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		var body struct {
			Type pipeline.OperationType `json:"type"`
		}
		if err := c.Bind().JSON(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		op, err := s.AppendOperation(c.Params("node"), body.Type)
		if err != nil {
			return a.fail(c, err)
		}
		return c.Status(201).JSON(op)
	}))

	app.Patch("/sessions/:id/nodes/:node/operations/:op", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		var partial map[string]any
		if err := c.Bind().JSON(&partial); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := s.UpdateOperation(c.Params("node"), c.Params("op"), partial); err != nil {
			return a.fail(c, err)
		}
		return c.SendStatus(204)
	}))

	app.Post("/sessions/:id/nodes/:node/operations/:op/move", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		var body struct {
			Direction pipeline.Direction `json:"direction"`
		}
		if err := c.Bind().JSON(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := s.MoveOperation(c.Params("node"), c.Params("op"), body.Direction); err != nil {
			return a.fail(c, err)
		}
		return c.SendStatus(204)
	}))

	app.Post("/sessions/:id/nodes/:node/operations/:op/refresh", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		if err := s.RefreshOperation(c.Context(), c.Params("node"), c.Params("op")); err != nil {
			return a.fail(c, err)
		}
		return c.SendStatus(204)
	}))

	app.Delete("/sessions/:id/nodes/:node/operations/:op", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		if err := s.RemoveOperation(c.Params("node"), c.Params("op")); err != nil {
			return a.fail(c, err)
		}
		return c.SendStatus(204)
	}))

	// ── Workflows ─────────────────────────────────────────────────────
	app.Post("/sessions/:id/save", a.withSession(func(c fiber.Ctx, s *session.Session) error {
		if a.store == nil {
			return a.fail(c, errNoStore)
		}
		var body struct {
			WorkflowID string `json:"workflowId"`
		}
		if len(c.Body()) > 0 {
			if err := c.Bind().JSON(&body); err != nil {
				return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
			}
		}
		w, err := a.store.SaveWorkflow(c.Context(), &mlgraph.Workflow{ID: body.WorkflowID, Name: s.Name, Graph: s.Graph()})
		if err != nil {
			return a.fail(c, err)
		}
		return c.Status(201).JSON(w)
	}))

	app.Get("/workflows", func(c fiber.Ctx) error {
		if a.store == nil {
			return a.fail(c, errNoStore)
		}
		list, err := a.store.ListWorkflows(c.Context())
		if err != nil {
			return a.fail(c, err)
		}
		return c.JSON(list)
	})

	app.Get("/workflows/:wid", func(c fiber.Ctx) error {
		if a.store == nil {
			return a.fail(c, errNoStore)
		}
		w, err := a.store.GetWorkflow(c.Context(), c.Params("wid"))
		if err != nil {
			return a.fail(c, err)
		}
		return c.JSON(w)
	})

	// Opening a workflow starts a new session holding its graph.
	app.Post("/workflows/:wid/open", func(c fiber.Ctx) error {
		if a.store == nil {
			return a.fail(c, errNoStore)
		}
		w, err := a.store.GetWorkflow(c.Context(), c.Params("wid"))
		if err != nil {
			return a.fail(c, err)
		}
		s := a.sessions.Create(session.WithName(w.Name))
		if err := s.Load(w.Graph); err != nil {
			_ = a.sessions.Close(s.ID)
			return a.fail(c, err)
		}
		return c.Status(201).JSON(fiber.Map{"id": s.ID, "name": s.Name})
	})

	app.Delete("/workflows/:wid", func(c fiber.Ctx) error {
		if a.store == nil {
			return a.fail(c, errNoStore)
		}
		if err := a.store.DeleteWorkflow(c.Context(), c.Params("wid")); err != nil {
			return a.fail(c, err)
		}
		return c.SendStatus(204)
	})

	return app
}

func (a *api) withSession(h func(fiber.Ctx, *session.Session) error) fiber.Handler {
	return func(c fiber.Ctx) error {
		s, err := a.sessions.Get(c.Params("id"))
		if err != nil {
			return a.fail(c, err)
		}
		return h(c, s)
	}
}

// fail maps err to a status code and writes it as {"error": ...}.
func (a *api) fail(c fiber.Ctx, err error) error {
	var cerr *mlgraph.ConnectionError
	if errors.As(err, &cerr) {
		return c.Status(422).JSON(fiber.Map{"error": cerr.Kind, "message": cerr.Error()})
	}

	var verr validator.ValidationErrors
	switch {
	case errors.Is(err, mlgraph.ErrCycleDetected):
		return c.Status(422).JSON(fiber.Map{"error": "cycle detected"})
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, mlgraph.ErrNodeNotFound),
		errors.Is(err, mlgraph.ErrEdgeNotFound),
		errors.Is(err, mlgraph.ErrWorkflowNotFound),
		errors.Is(err, pipeline.ErrOperationNotFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, mlgraph.ErrUnknownNodeType),
		errors.Is(err, mlgraph.ErrConfigTypeMismatch),
		errors.Is(err, mlgraph.ErrInvalidDataset),
		errors.Is(err, session.ErrNotPipelineNode),
		errors.Is(err, pipeline.ErrUnknownOperationType),
		errors.Is(err, pipeline.ErrCannotMove),
		errors.Is(err, pipeline.ErrInvalidDirection),
		errors.As(err, &verr):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, errNoStore), errors.Is(err, session.ErrNoPreviewProvider):
		return c.Status(503).JSON(fiber.Map{"error": err.Error()})
	}

	a.log.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(500).JSON(fiber.Map{"error": err.Error()})
}
