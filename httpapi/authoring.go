package httpapi

import (
	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/estimate"
)

func (a *API) createSchema(c fiber.Ctx) error {
	if err := a.store.CreateSchema(c.Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "schema created"})
}

func (a *API) dropSchema(c fiber.Ctx) error {
	if err := a.store.DropSchema(c.Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "schema dropped"})
}

// ── Facts ─────────────────────────────────────────────────────────────

func (a *API) listFacts(c fiber.Ctx) error {
	defs, err := a.store.ListFactDefinitions(c.Context(), c.Params("pid"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(defs)
}

func (a *API) getFact(c fiber.Ctx) error {
	def, err := a.store.GetFactDefinition(c.Context(), c.Params("pid"), c.Params("key"))
	if err != nil {
		return fail(c, err)
	}
	if def == nil {
		return notFound(c, "fact")
	}
	return c.JSON(def)
}

func (a *API) putFact(c fiber.Ctx) error {
	var def estimate.FactDefinition
	if err := a.bind(c, &def); err != nil {
		return badRequest(c, err)
	}
	def.Key = c.Params("key")
	if err := a.store.UpsertFactDefinition(c.Context(), c.Params("pid"), &def); err != nil {
		return fail(c, err)
	}
	return c.JSON(def)
}

func (a *API) deleteFact(c fiber.Ctx) error {
	if err := a.store.DeleteFactDefinition(c.Context(), c.Params("pid"), c.Params("key")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(204)
}

// ── Variables ─────────────────────────────────────────────────────────

func (a *API) listVariables(c fiber.Ctx) error {
	vars, err := a.store.ListVariables(c.Context(), c.Params("pid"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(vars)
}

func (a *API) getVariable(c fiber.Ctx) error {
	vars, err := a.store.ListVariables(c.Context(), c.Params("pid"))
	if err != nil {
		return fail(c, err)
	}
	for _, v := range vars {
		if v.Key == c.Params("key") {
			return c.JSON(v)
		}
	}
	return notFound(c, "variable")
}

func (a *API) putVariable(c fiber.Ctx) error {
	var v estimate.VariableDefinition
	if err := a.bind(c, &v); err != nil {
		return badRequest(c, err)
	}
	v.Key = c.Params("key")
	if err := a.store.UpsertVariable(c.Context(), c.Params("pid"), &v); err != nil {
		return fail(c, err)
	}
	return c.JSON(v)
}

func (a *API) deleteVariable(c fiber.Ctx) error {
	if err := a.store.DeleteVariable(c.Context(), c.Params("pid"), c.Params("key")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(204)
}

// ── Decision graphs ───────────────────────────────────────────────────

func (a *API) createDecisionGraph(c fiber.Ctx) error {
	var g estimate.DecisionGraph
	if err := a.bind(c, &g); err != nil {
		return badRequest(c, err)
	}
	result, err := a.store.CreateDecisionGraph(c.Context(), &g)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(result)
}

func (a *API) getDecisionGraph(c fiber.Ctx) error {
	g, err := a.store.GetDecisionGraph(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if g == nil {
		return notFound(c, "decision graph")
	}
	return c.JSON(g)
}

func (a *API) deleteDecisionGraph(c fiber.Ctx) error {
	if err := a.store.DeleteDecisionGraph(c.Context(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(204)
}

type cycleCheckRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

func (a *API) cycleCheck(c fiber.Ctx) error {
	var req cycleCheckRequest
	if err := a.bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	cyclic, err := a.engine.WouldCreateCycle(c.Context(), c.Params("id"), req.From, req.To)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"would_create_cycle": cyclic})
}

func (a *API) lint(c fiber.Ctx) error {
	issues, err := a.engine.Lint(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"issues": issues})
}

// ── Nodes ─────────────────────────────────────────────────────────────

func (a *API) addNode(c fiber.Ctx) error {
	var node estimate.DecisionNode
	if err := a.bind(c, &node); err != nil {
		return badRequest(c, err)
	}
	id, err := a.store.AddNode(c.Context(), c.Params("id"), &node)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"id": id})
}

func (a *API) listNodes(c fiber.Ctx) error {
	nodes, err := a.store.ListNodes(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(nodes)
}

func (a *API) getNode(c fiber.Ctx) error {
	n, err := a.store.GetNode(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if n == nil {
		return notFound(c, "node")
	}
	return c.JSON(n)
}

func (a *API) updateNode(c fiber.Ctx) error {
	var node estimate.DecisionNode
	if err := a.bind(c, &node); err != nil {
		return badRequest(c, err)
	}
	node.ID = c.Params("id")
	if err := a.store.UpdateNode(c.Context(), &node); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(204)
}

func (a *API) deleteNode(c fiber.Ctx) error {
	if err := a.store.DeleteNode(c.Context(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(204)
}

// ── Edges ─────────────────────────────────────────────────────────────

func (a *API) addEdge(c fiber.Ctx) error {
	var edge estimate.DecisionEdge
	if err := a.bind(c, &edge); err != nil {
		return badRequest(c, err)
	}
	id, err := a.store.AddEdge(c.Context(), c.Params("id"), &edge)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"id": id})
}

func (a *API) listEdges(c fiber.Ctx) error {
	edges, err := a.store.ListEdges(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(edges)
}

func (a *API) getEdge(c fiber.Ctx) error {
	e, err := a.store.GetEdge(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if e == nil {
		return notFound(c, "edge")
	}
	return c.JSON(e)
}

func (a *API) updateEdge(c fiber.Ctx) error {
	var edge estimate.DecisionEdge
	if err := a.bind(c, &edge); err != nil {
		return badRequest(c, err)
	}
	edge.ID = c.Params("id")
	if err := a.store.UpdateEdge(c.Context(), &edge); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(204)
}

func (a *API) deleteEdge(c fiber.Ctx) error {
	if err := a.store.DeleteEdge(c.Context(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(204)
}

// ── Pricing graphs ────────────────────────────────────────────────────

func (a *API) savePricingGraph(c fiber.Ctx) error {
	var g estimate.PricingGraph
	if err := a.bind(c, &g); err != nil {
		return badRequest(c, err)
	}
	g.ID = c.Params("id")
	if err := a.store.SavePricingGraph(c.Context(), &g); err != nil {
		return fail(c, err)
	}
	return c.JSON(g)
}

func (a *API) getPricingGraph(c fiber.Ctx) error {
	g, err := a.store.GetPricingGraph(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if g == nil {
		return notFound(c, "pricing graph")
	}
	return c.JSON(g)
}

func (a *API) deletePricingGraph(c fiber.Ctx) error {
	if err := a.store.DeletePricingGraph(c.Context(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(204)
}
