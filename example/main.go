package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/meikuraledutech/estimate"
	"github.com/meikuraledutech/estimate/engine"
	"github.com/meikuraledutech/estimate/sqlite"
)

func main() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "estimate-example")
	if err != nil {
		log.Fatalf("temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	store, err := sqlite.Open(filepath.Join(dir, "example.db"))
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer store.Close()

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	// ── Facts and variables ───────────────────────────────────────────
	for _, def := range []estimate.FactDefinition{
		{Key: "has_motor", Type: estimate.FactBoolean},
		{Key: "hours", Type: estimate.FactNumber},
	} {
		if err := store.UpsertFactDefinition(ctx, "bikes", &def); err != nil {
			log.Fatalf("fact %s: %v", def.Key, err)
		}
	}
	if err := store.UpsertVariable(ctx, "bikes", &estimate.VariableDefinition{
		Key:        "rate",
		Expression: json.RawMessage(`{"if": [{"var": "has_motor"}, 90, 60]}`),
	}); err != nil {
		log.Fatalf("variable: %v", err)
	}

	// ── Questionnaire (bulk insert using refs) ────────────────────────
	_, err = store.CreateDecisionGraph(ctx, &estimate.DecisionGraph{
		ID:        "repair-intake",
		ProjectID: "bikes",
		Nodes: []estimate.DecisionNode{
			{Ref: "motor", Label: "Does the bike have a motor?", Config: estimate.NodeConfig{
				InputType: estimate.InputBoolean, Required: true, ProducesFacts: []string{"has_motor"},
			}},
			{Ref: "hours", Label: "How many hours of work?", Config: estimate.NodeConfig{
				InputType: estimate.InputNumber, Required: true, ProducesFacts: []string{"hours"},
			}},
		},
		Edges: []estimate.DecisionEdge{
			{FromNodeRef: "motor", ToNodeRef: "hours"},
		},
	})
	if err != nil {
		log.Fatalf("create decision graph: %v", err)
	}
	fmt.Println("decision graph created")

	// ── Pricing ───────────────────────────────────────────────────────
	err = store.SavePricingGraph(ctx, &estimate.PricingGraph{
		ID:        "repair-pricing",
		ProjectID: "bikes",
		Lines: []estimate.PricingLine{
			{ID: "repair-job", Label: "Repair", Nodes: []estimate.PricingOperandNode{
				{Kind: estimate.OperandBucket, TargetLineID: "bucket-labor__repair"},
				{Kind: estimate.OperandBucket, TargetLineID: "bucket-materials__repair"},
			}},
			{ID: "bucket-labor__repair", Nodes: []estimate.PricingOperandNode{
				{Kind: estimate.OperandFact, FactKey: "hours"},
				{Kind: estimate.OperandVariable, Operator: estimate.OpMul, VarKey: "rate"},
			}},
			{ID: "bucket-materials__repair", Nodes: []estimate.PricingOperandNode{
				{Kind: estimate.OperandConstant, Value: 35},
			}},
		},
	})
	if err != nil {
		log.Fatalf("save pricing graph: %v", err)
	}
	fmt.Println("pricing graph saved")

	// ── Walk the questionnaire ────────────────────────────────────────
	eng := engine.New(store)
	session, step, err := eng.StartSession(ctx, "repair-intake")
	if err != nil {
		log.Fatalf("start session: %v", err)
	}
	for _, answer := range []any{true, 3} {
		node, _ := session.Current()
		fmt.Printf("\n%s -> %v\n", node.Label, answer)
		if step, err = eng.SubmitAnswer(ctx, session, step.NodeID, answer); err != nil {
			log.Fatalf("answer: %v", err)
		}
	}
	fmt.Printf("\nsession finished (%s)\n", step.Reason)
	printJSON(session.State())

	// ── Estimate ──────────────────────────────────────────────────────
	result, err := eng.ComputeEstimate(ctx, "repair-pricing", session.Facts(), session.Bindings())
	if err != nil {
		log.Fatalf("estimate: %v", err)
	}
	fmt.Println("\nestimate:")
	printJSON(result)
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
