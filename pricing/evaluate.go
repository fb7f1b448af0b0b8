package pricing

import (
	"errors"
	"fmt"

	"github.com/meikuraledutech/estimate"
)

// Inputs supplies the scalars operand nodes read.
type Inputs interface {
	Fact(key string) (float64, error)
	Variable(key string) (float64, error)
}

// Evaluation holds the per-line results of one run of a Program.
type Evaluation struct {
	prog    *Program
	own     []Breakdown
	results []ContributorResult
}

// Evaluate compiles g and returns the result of its first line.
func Evaluate(g *estimate.PricingGraph, in Inputs) (ContributorResult, error) {
	p, err := Compile(g)
	if err != nil {
		return ContributorResult{}, err
	}
	ev, err := p.Run(in)
	if err != nil {
		return ContributorResult{}, err
	}
	return ev.Root(), nil
}

// Run evaluates every line. Pass one folds each line's own scalar terms;
// pass two walks the dependency order and aggregates, reading only results
// already produced. Any missing input fails the whole run.
func (p *Program) Run(in Inputs) (*Evaluation, error) {
	ev := &Evaluation{
		prog:    p,
		own:     make([]Breakdown, len(p.lines)),
		results: make([]ContributorResult, len(p.lines)),
	}

	for i, l := range p.lines {
		v, err := fold(l.id, l.terms, in)
		if err != nil {
			return nil, err
		}
		if l.key.Kind == KindBucket {
			ev.own[i] = Only(l.key.Category, v)
		} else {
			ev.own[i] = Only(Misc, v)
		}
	}

	for _, i := range p.order {
		l := p.lines[i]
		if l.key.Kind == KindBucket {
			ev.results[i] = ev.bucket(i)
		} else {
			ev.results[i] = ev.contributor(i)
		}
	}
	return ev, nil
}

// bucket adds the matching category of the owning contributor's result to
// the bucket's own value.
func (ev *Evaluation) bucket(i int) ContributorResult {
	l := ev.prog.lines[i]
	b := ev.own[i]
	if owner, ok := ev.prog.index[l.key.ContributorID]; ok && ev.prog.lines[owner].key.Kind == KindContributor {
		b = b.Add(Only(l.key.Category, ev.results[owner].Breakdown.Get(l.key.Category)))
	}
	return ContributorResult{NodeID: l.id, Label: ev.prog.label(i), Breakdown: b, Children: []ContributorResult{}}
}

// contributor sums the buckets a line reads per contributor, one child per
// distinct contributor, on top of the line's free-term misc value.
func (ev *Evaluation) contributor(i int) ContributorResult {
	l := ev.prog.lines[i]
	if len(l.buckets) == 0 {
		return ContributorResult{
			NodeID:    l.id,
			Label:     ev.prog.label(i),
			Breakdown: NewBreakdown(0, 0, ev.own[i].Total),
			Children:  []ContributorResult{},
		}
	}

	var ids []string
	sums := make(map[string]Breakdown)
	for _, b := range l.buckets {
		id := ev.prog.lines[b].key.ContributorID
		if _, ok := sums[id]; !ok {
			ids = append(ids, id)
		}
		sums[id] = sums[id].Add(ev.results[b].Breakdown)
	}

	total := ev.own[i]
	children := make([]ContributorResult, 0, len(ids))
	for _, id := range ids {
		child := ContributorResult{NodeID: id, Label: id, Breakdown: sums[id], Children: []ContributorResult{}}
		if owner, ok := ev.prog.index[id]; ok && ev.prog.lines[owner].key.Kind == KindContributor {
			child.Label = ev.prog.label(owner)
			child.Children = ev.results[owner].Children
		}
		children = append(children, child)
		total = total.Add(child.Breakdown)
	}
	return ContributorResult{NodeID: l.id, Label: ev.prog.label(i), Breakdown: total, Children: children}
}

func (p *Program) label(i int) string {
	if p.lines[i].label != "" {
		return p.lines[i].label
	}
	return p.lines[i].id
}

// Root returns the result of the graph's first declared line.
func (ev *Evaluation) Root() ContributorResult {
	return ev.results[ev.prog.root]
}

// Line returns the result of the line with the given id.
func (ev *Evaluation) Line(id string) (ContributorResult, bool) {
	i, ok := ev.prog.index[id]
	if !ok {
		return ContributorResult{}, false
	}
	return ev.results[i], true
}

// Own returns the line's value from its scalar terms alone, before any
// aggregation.
func (ev *Evaluation) Own(id string) (Breakdown, bool) {
	i, ok := ev.prog.index[id]
	if !ok {
		return Breakdown{}, false
	}
	return ev.own[i], true
}

// fold combines terms left to right. The first term seeds the accumulator;
// each later term applies its operator to it.
func fold(lineID string, terms []estimate.PricingOperandNode, in Inputs) (float64, error) {
	var acc float64
	for i, t := range terms {
		x, err := operand(t, in)
		if err != nil {
			var missing *estimate.MissingInputError
			if errors.As(err, &missing) && missing.Line == "" {
				annotated := *missing
				annotated.Line = lineID
				return 0, &annotated
			}
			return 0, fmt.Errorf("line %q: %w", lineID, err)
		}
		if i == 0 {
			acc = x
			continue
		}
		acc = t.Operator.Apply(acc, x)
	}
	return acc, nil
}

func operand(t estimate.PricingOperandNode, in Inputs) (float64, error) {
	switch t.Kind {
	case estimate.OperandConstant:
		return t.Value, nil
	case estimate.OperandFact:
		return in.Fact(t.FactKey)
	case estimate.OperandVariable:
		return in.Variable(t.VarKey)
	}
	return 0, fmt.Errorf("%w: %q is not a scalar term", estimate.ErrInvalidOperand, t.Kind)
}
