// Package httpapi exposes the engine over HTTP with fiber: authoring CRUD for
// facts, variables, decision graphs and pricing graphs, questionnaire
// sessions and estimates.
package httpapi

import (
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/estimate"
	"github.com/meikuraledutech/estimate/engine"
	"github.com/meikuraledutech/estimate/internal/ctxlog"
)

// API holds the handlers' dependencies.
type API struct {
	store    estimate.Store
	engine   *engine.Engine
	sessions *engine.Sessions
	validate *validator.Validate
	logger   *slog.Logger
}

// New builds the fiber app serving store. A nil logger uses slog.Default().
// Sessions idle for longer than sessionIdle are forgotten; zero keeps them
// until a client deletes them.
func New(store estimate.Store, logger *slog.Logger, sessionIdle time.Duration) *fiber.App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &API{
		store:    store,
		engine:   engine.New(store),
		sessions: engine.NewSessions(sessionIdle),
		validate: validator.New(),
		logger:   logger,
	}

	app := fiber.New()
	app.Use(a.withLogger)
	a.routes(app)
	return app
}

func (a *API) routes(app *fiber.App) {
	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", a.createSchema)
	app.Delete("/schema", a.dropSchema)

	// ── Facts and variables ───────────────────────────────────────────
	app.Get("/projects/:pid/facts", a.listFacts)
	app.Get("/projects/:pid/facts/:key", a.getFact)
	app.Put("/projects/:pid/facts/:key", a.putFact)
	app.Delete("/projects/:pid/facts/:key", a.deleteFact)

	app.Get("/projects/:pid/variables", a.listVariables)
	app.Get("/projects/:pid/variables/:key", a.getVariable)
	app.Put("/projects/:pid/variables/:key", a.putVariable)
	app.Delete("/projects/:pid/variables/:key", a.deleteVariable)

	// ── Decision graphs ───────────────────────────────────────────────
	app.Post("/decision-graphs", a.createDecisionGraph)
	app.Get("/decision-graphs/:id", a.getDecisionGraph)
	app.Delete("/decision-graphs/:id", a.deleteDecisionGraph)
	app.Post("/decision-graphs/:id/cycle-check", a.cycleCheck)
	app.Get("/decision-graphs/:id/lint", a.lint)

	app.Post("/decision-graphs/:id/nodes", a.addNode)
	app.Get("/decision-graphs/:id/nodes", a.listNodes)
	app.Get("/nodes/:id", a.getNode)
	app.Put("/nodes/:id", a.updateNode)
	app.Delete("/nodes/:id", a.deleteNode)

	app.Post("/decision-graphs/:id/edges", a.addEdge)
	app.Get("/decision-graphs/:id/edges", a.listEdges)
	app.Get("/edges/:id", a.getEdge)
	app.Put("/edges/:id", a.updateEdge)
	app.Delete("/edges/:id", a.deleteEdge)

	// ── Pricing graphs ────────────────────────────────────────────────
	app.Put("/pricing-graphs/:id", a.savePricingGraph)
	app.Get("/pricing-graphs/:id", a.getPricingGraph)
	app.Delete("/pricing-graphs/:id", a.deletePricingGraph)

	// ── Sessions and estimates ────────────────────────────────────────
	app.Post("/sessions", a.startSession)
	app.Get("/sessions/:id", a.getSession)
	app.Delete("/sessions/:id", a.deleteSession)
	app.Post("/sessions/:id/answers", a.submitAnswer)
	app.Post("/sessions/:id/estimate", a.sessionEstimate)

	app.Post("/estimates", a.estimate)
	app.Post("/estimates/range", a.estimateRange)
}

// withLogger puts a request-scoped logger into the request context.
func (a *API) withLogger(c fiber.Ctx) error {
	logger := a.logger.With("method", c.Method(), "path", c.Path())
	c.SetContext(ctxlog.WithLogger(c.Context(), logger))

	err := c.Next()
	logger.Debug("request served", "status", c.Response().StatusCode())
	return err
}

// bind decodes the JSON body into v and validates its struct tags.
func (a *API) bind(c fiber.Ctx, v any) error {
	if err := c.Bind().JSON(v); err != nil {
		return errors.New("invalid body")
	}
	return a.validate.Struct(v)
}

func badRequest(c fiber.Ctx, err error) error {
	return c.Status(400).JSON(fiber.Map{"error": err.Error()})
}

// status maps an engine error to an HTTP status code.
func status(err error) int {
	switch {
	case errors.Is(err, estimate.ErrGraphNotFound),
		errors.Is(err, estimate.ErrNodeNotFound),
		errors.Is(err, estimate.ErrEdgeNotFound),
		errors.Is(err, estimate.ErrSessionNotFound),
		errors.Is(err, estimate.ErrVariableNotFound):
		return 404
	case errors.Is(err, estimate.ErrMissingFact),
		errors.Is(err, estimate.ErrMissingVariable),
		errors.Is(err, estimate.ErrFactInUse),
		errors.Is(err, estimate.ErrSessionDone),
		errors.Is(err, estimate.ErrNotCurrentNode):
		return 409
	case errors.Is(err, estimate.ErrCycleDetected),
		errors.Is(err, estimate.ErrCyclicGraph),
		errors.Is(err, estimate.ErrInvalidCondition),
		errors.Is(err, estimate.ErrInvalidOperand),
		errors.Is(err, estimate.ErrInvalidGraph),
		errors.Is(err, estimate.ErrUnknownLine),
		errors.Is(err, estimate.ErrInvalidFact),
		errors.Is(err, estimate.ErrFactNotFound),
		errors.Is(err, estimate.ErrTypeMismatch),
		errors.Is(err, estimate.ErrAnswerRequired):
		return 422
	}
	return 500
}

// fail writes err as a JSON error response.
func fail(c fiber.Ctx, err error) error {
	code := status(err)
	if code == 500 {
		ctxlog.FromContext(c.Context()).Error("request failed", "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func notFound(c fiber.Ctx, what string) error {
	return c.Status(404).JSON(fiber.Map{"error": what + " not found"})
}
