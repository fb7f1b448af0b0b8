package engine_test

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/estimate"
	"github.com/meikuraledutech/estimate/engine"
	"github.com/meikuraledutech/estimate/sqlite"
)

func ExampleEngine_ComputeEstimate() {
	ctx := context.Background()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		panic(err)
	}
	defer store.Close()
	if err := store.CreateSchema(ctx); err != nil {
		panic(err)
	}

	if err := store.UpsertFactDefinition(ctx, "bikes", &estimate.FactDefinition{Key: "hours", Type: estimate.FactNumber}); err != nil {
		panic(err)
	}
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
				{Kind: estimate.OperandConstant, Operator: estimate.OpMul, Value: 75},
			}},
			{ID: "bucket-materials__repair", Nodes: []estimate.PricingOperandNode{
				{Kind: estimate.OperandConstant, Value: 35},
			}},
		},
	})
	if err != nil {
		panic(err)
	}

	eng := engine.New(store)
	facts, err := eng.FactsFor(ctx, "repair-pricing", map[string]any{"hours": 2})
	if err != nil {
		panic(err)
	}
	res, err := eng.ComputeEstimate(ctx, "repair-pricing", facts, nil)
	if err != nil {
		panic(err)
	}
	b := res.Breakdown
	fmt.Printf("labor=%g materials=%g misc=%g total=%g\n", b.Labor, b.Materials, b.Misc, b.Total)
	// Output: labor=150 materials=35 misc=0 total=185
}
