// Package pricing evaluates pricing graphs: lines of cost expressions folded
// bottom-up into labor, materials and misc breakdowns.
package pricing

import (
	"fmt"
	"sort"

	"github.com/meikuraledutech/estimate"
)

// line is one entry of a Program's arena.
type line struct {
	id    string
	label string
	key   LineKey
	// terms are the scalar operands folded into the line's own value.
	terms []estimate.PricingOperandNode
	// buckets are arena indices of the bucket lines a contributor line reads,
	// one per contributor-bucket node.
	buckets []int
	// declared is false for buckets that are referenced but never authored;
	// they carry only what their contributor injects.
	declared bool
}

// Program is a compiled pricing graph: an arena of lines, their dependency
// edges and a fixed evaluation order.
type Program struct {
	graphID string
	lines   []line
	index   map[string]int
	// edges holds (dependent, dependency) arena index pairs.
	edges [][2]int
	order []int
	depth []int
	root  int
}

// Compile validates g and orders its lines so that every line runs after the
// lines it depends on. A contributor line depends on the bucket lines it
// reads; a bucket line depends on the contributor line it is namespaced to,
// when that line exists. Cycles fail with a *estimate.CycleError.
func Compile(g *estimate.PricingGraph) (*Program, error) {
	if g == nil || len(g.Lines) == 0 {
		return nil, fmt.Errorf("%w: no lines", estimate.ErrInvalidGraph)
	}

	p := &Program{graphID: g.ID, index: make(map[string]int, len(g.Lines))}
	for _, l := range g.Lines {
		if l.ID == "" {
			return nil, fmt.Errorf("%w: line without line_id", estimate.ErrInvalidGraph)
		}
		if _, dup := p.index[l.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate line %q", estimate.ErrInvalidGraph, l.ID)
		}
		p.index[l.ID] = len(p.lines)
		p.lines = append(p.lines, line{id: l.ID, label: l.Label, key: ParseLineID(l.ID), declared: true})
	}

	for i, l := range g.Lines {
		key := p.lines[i].key
		for _, n := range l.Nodes {
			if err := n.Validate(); err != nil {
				return nil, fmt.Errorf("line %q: %w", l.ID, err)
			}
			if n.Kind != estimate.OperandBucket {
				p.lines[i].terms = append(p.lines[i].terms, n)
				continue
			}
			if key.Kind == KindBucket {
				return nil, fmt.Errorf("line %q: %w: bucket lines cannot read other buckets", l.ID, estimate.ErrInvalidOperand)
			}
			target, err := p.bucket(n.TargetLineID)
			if err != nil {
				return nil, fmt.Errorf("line %q: %w", l.ID, err)
			}
			p.lines[i].buckets = append(p.lines[i].buckets, target)
		}
	}

	p.root = 0
	p.link()
	if err := p.sort(); err != nil {
		return nil, err
	}
	return p, nil
}

// bucket returns the arena index of the bucket line id, adding an implicit
// bucket when the line is undeclared but its contributor exists.
func (p *Program) bucket(id string) (int, error) {
	key := ParseLineID(id)
	if key.Kind != KindBucket {
		return 0, fmt.Errorf("%w: %q is not a bucket line id", estimate.ErrUnknownLine, id)
	}
	if i, ok := p.index[id]; ok {
		return i, nil
	}
	owner, ok := p.index[key.ContributorID]
	if !ok || p.lines[owner].key.Kind != KindContributor {
		return 0, fmt.Errorf("%w: %q is neither declared nor fed by a contributor line", estimate.ErrUnknownLine, id)
	}
	p.index[id] = len(p.lines)
	p.lines = append(p.lines, line{id: id, key: key})
	return p.index[id], nil
}

func (p *Program) link() {
	for i, l := range p.lines {
		switch l.key.Kind {
		case KindContributor:
			seen := make(map[int]bool, len(l.buckets))
			for _, b := range l.buckets {
				if !seen[b] {
					seen[b] = true
					p.edges = append(p.edges, [2]int{i, b})
				}
			}
		case KindBucket:
			if owner, ok := p.index[l.key.ContributorID]; ok && p.lines[owner].key.Kind == KindContributor {
				p.edges = append(p.edges, [2]int{i, owner})
			}
		}
	}
}

// sort ranks lines by dependency depth with an iterative Kahn pass:
// depth(line) is 0 without dependencies, else 1 + the deepest dependency.
// Lines of equal depth keep arena order.
func (p *Program) sort() error {
	n := len(p.lines)
	pending := make([]int, n)
	dependents := make([][]int, n)
	for _, e := range p.edges {
		pending[e[0]]++
		dependents[e[1]] = append(dependents[e[1]], e[0])
	}

	p.depth = make([]int, n)
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if pending[i] == 0 {
			queue = append(queue, i)
		}
	}
	done := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		done++
		for _, d := range dependents[cur] {
			if p.depth[cur]+1 > p.depth[d] {
				p.depth[d] = p.depth[cur] + 1
			}
			pending[d]--
			if pending[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	if done < n {
		var stuck []string
		for i := 0; i < n; i++ {
			if pending[i] > 0 {
				stuck = append(stuck, p.lines[i].id)
			}
		}
		return &estimate.CycleError{Lines: stuck}
	}

	p.order = make([]int, n)
	for i := range p.order {
		p.order[i] = i
	}
	sort.SliceStable(p.order, func(a, b int) bool {
		return p.depth[p.order[a]] < p.depth[p.order[b]]
	})
	return nil
}

// GraphID returns the id of the compiled graph.
func (p *Program) GraphID() string { return p.graphID }

// Order returns line ids in evaluation order.
func (p *Program) Order() []string {
	out := make([]string, len(p.order))
	for i, idx := range p.order {
		out[i] = p.lines[idx].id
	}
	return out
}

// Depth returns the dependency depth of a line.
func (p *Program) Depth(id string) (int, bool) {
	i, ok := p.index[id]
	if !ok {
		return 0, false
	}
	return p.depth[i], true
}

// References returns the fact keys and variable keys the graph reads.
func (p *Program) References() (facts, variables []string) {
	seenF, seenV := map[string]bool{}, map[string]bool{}
	for _, l := range p.lines {
		for _, t := range l.terms {
			switch t.Kind {
			case estimate.OperandFact:
				if !seenF[t.FactKey] {
					seenF[t.FactKey] = true
					facts = append(facts, t.FactKey)
				}
			case estimate.OperandVariable:
				if !seenV[t.VarKey] {
					seenV[t.VarKey] = true
					variables = append(variables, t.VarKey)
				}
			}
		}
	}
	return facts, variables
}
