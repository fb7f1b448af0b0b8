package httpapi

import (
	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/estimate/decision"
	"github.com/meikuraledutech/estimate/pricing"
)

type startSessionRequest struct {
	GraphID string `json:"graph_id" validate:"required"`
}

type answerRequest struct {
	// NodeID may be empty to answer the current question.
	NodeID string `json:"node_id"`
	Value  any    `json:"value"`
}

type sessionEstimateRequest struct {
	PricingGraphID string `json:"pricing_graph_id" validate:"required"`
}

type estimateRequest struct {
	PricingGraphID string             `json:"pricing_graph_id" validate:"required"`
	Facts          map[string]any     `json:"facts"`
	Variables      map[string]float64 `json:"variables"`
}

type rangeRequest struct {
	MinGraphID string             `json:"min_pricing_graph_id" validate:"required"`
	MaxGraphID string             `json:"max_pricing_graph_id" validate:"required"`
	Facts      map[string]any     `json:"facts"`
	Variables  map[string]float64 `json:"variables"`
}

type stepResponse struct {
	Step    decision.Step  `json:"step"`
	Session decision.State `json:"session"`
}

func (a *API) startSession(c fiber.Ctx) error {
	var req startSessionRequest
	if err := a.bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	s, step, err := a.engine.StartSession(c.Context(), req.GraphID)
	if err != nil {
		return fail(c, err)
	}
	a.sessions.Put(s)
	return c.Status(201).JSON(stepResponse{Step: step, Session: s.State()})
}

func (a *API) getSession(c fiber.Ctx) error {
	var state decision.State
	err := a.sessions.With(c.Params("id"), func(s *decision.Session) error {
		state = s.State()
		return nil
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(state)
}

func (a *API) deleteSession(c fiber.Ctx) error {
	a.sessions.Delete(c.Params("id"))
	return c.SendStatus(204)
}

func (a *API) submitAnswer(c fiber.Ctx) error {
	var req answerRequest
	if err := a.bind(c, &req); err != nil {
		return badRequest(c, err)
	}

	var resp stepResponse
	err := a.sessions.With(c.Params("id"), func(s *decision.Session) error {
		step, err := a.engine.SubmitAnswer(c.Context(), s, req.NodeID, req.Value)
		if err != nil {
			return err
		}
		resp = stepResponse{Step: step, Session: s.State()}
		return nil
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

func (a *API) sessionEstimate(c fiber.Ctx) error {
	var req sessionEstimateRequest
	if err := a.bind(c, &req); err != nil {
		return badRequest(c, err)
	}

	var res pricing.ContributorResult
	err := a.sessions.With(c.Params("id"), func(s *decision.Session) error {
		var err error
		res, err = a.engine.ComputeEstimate(c.Context(), req.PricingGraphID, s.Facts(), s.Bindings())
		return err
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

func (a *API) estimate(c fiber.Ctx) error {
	var req estimateRequest
	if err := a.bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	facts, err := a.engine.FactsFor(c.Context(), req.PricingGraphID, req.Facts)
	if err != nil {
		return fail(c, err)
	}
	res, err := a.engine.ComputeEstimate(c.Context(), req.PricingGraphID, facts, req.Variables)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

func (a *API) estimateRange(c fiber.Ctx) error {
	var req rangeRequest
	if err := a.bind(c, &req); err != nil {
		return badRequest(c, err)
	}
	facts, err := a.engine.FactsFor(c.Context(), req.MinGraphID, req.Facts)
	if err != nil {
		return fail(c, err)
	}
	r, err := a.engine.ComputeRange(c.Context(), req.MinGraphID, req.MaxGraphID, facts, req.Variables)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(r)
}

