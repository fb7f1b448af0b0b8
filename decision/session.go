package decision

import (
	"fmt"

	"github.com/meikuraledutech/estimate"
)

// Reason explains why a session stopped.
type Reason string

const (
	// ReasonOutcome: the walk reached an outcome node.
	ReasonOutcome Reason = "outcome"
	// ReasonEnd: the walk reached a question without outgoing edges.
	ReasonEnd Reason = "end"
	// ReasonDeadEnd: the node has outgoing edges but none matched.
	ReasonDeadEnd Reason = "dead_end"
)

// Step is the result of moving a session forward.
type Step struct {
	// NodeID is the next question, empty once Done.
	NodeID string `json:"node_id,omitempty"`
	Done   bool   `json:"done"`
	Reason Reason `json:"reason,omitempty"`
	// Skipped lists nodes passed over because their visibility rule was false.
	Skipped []string `json:"skipped,omitempty"`
}

// State is a snapshot of a session.
type State struct {
	ID        string             `json:"session_id"`
	GraphID   string             `json:"graph_id"`
	Current   string             `json:"current_node_id,omitempty"`
	Done      bool               `json:"done"`
	Reason    Reason             `json:"reason,omitempty"`
	LastNode  string             `json:"last_node_id,omitempty"`
	Path      []string           `json:"path"`
	Answers   map[string]any     `json:"answers"`
	Facts     map[string]any     `json:"facts"`
	Variables map[string]float64 `json:"variables"`
}

// Session is one walk through a decision graph. It owns its fact store and
// is not safe for concurrent use.
type Session struct {
	id       string
	graph    *Graph
	facts    *estimate.FactStore
	bindings map[string]float64
	answers  map[string]any
	path     []string
	current  string
	last     string
	done     bool
	reason   Reason
}

// NewSession starts a walk at the graph's start node. Leading nodes hidden by
// their visibility rules are skipped.
func NewSession(id string, g *Graph) (*Session, Step) {
	s := &Session{
		id:       id,
		graph:    g,
		facts:    estimate.NewFactStore(g.facts),
		bindings: make(map[string]float64),
		answers:  make(map[string]any),
	}
	return s, s.settle(g.start)
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Graph returns the graph being walked.
func (s *Session) Graph() *Graph { return s.graph }

// Facts returns the session's fact store.
func (s *Session) Facts() *estimate.FactStore { return s.facts }

// Bindings returns the variables bound by nodes on the walk so far.
func (s *Session) Bindings() map[string]float64 { return s.bindings }

// Current returns the question awaiting an answer.
func (s *Session) Current() (*Node, bool) {
	if s.done {
		return nil, false
	}
	return s.graph.Node(s.current)
}

// Done reports whether the walk has stopped, and why.
func (s *Session) Done() (bool, Reason) { return s.done, s.reason }

// Submit answers the current question. Each fact the node produces is written
// with raw coerced to its declared type; if any fact rejects the value nothing
// is written and the session stays on the node. nodeID may be empty to mean
// the current node.
func (s *Session) Submit(nodeID string, raw any) (Step, error) {
	if s.done {
		return Step{}, estimate.ErrSessionDone
	}
	if nodeID != "" && nodeID != s.current {
		return Step{}, fmt.Errorf("%w: %s (current %s)", estimate.ErrNotCurrentNode, nodeID, s.current)
	}
	node, _ := s.graph.Node(s.current)

	if isBlank(raw) {
		if node.Config.Required {
			return Step{}, fmt.Errorf("%w: node %s", estimate.ErrAnswerRequired, node.ID)
		}
	} else {
		if err := checkSelect(node, raw); err != nil {
			return Step{}, err
		}
		if err := s.facts.SetAll(node.Config.ProducesFacts, raw); err != nil {
			return Step{}, err
		}
		s.answers[node.ID] = raw
	}

	next, ok := s.graph.NextNode(node.ID, s.facts)
	if !ok {
		return s.finish(node.ID, nil), nil
	}
	return s.settle(next), nil
}

// settle moves to id, skipping hidden nodes, and stops at the first visible
// question or a terminal.
func (s *Session) settle(id string) Step {
	var skipped []string
	for {
		node, _ := s.graph.Node(id)
		if !node.Visible.Eval(s.facts) {
			skipped = append(skipped, id)
			next, ok := s.graph.NextNode(id, s.facts)
			if !ok {
				return s.finish(id, skipped)
			}
			id = next
			continue
		}

		s.path = append(s.path, id)
		for k, v := range node.Config.SetsVariables {
			s.bindings[k] = v
		}
		if node.Type == estimate.NodeOutcome {
			s.done, s.reason, s.last, s.current = true, ReasonOutcome, id, ""
			return Step{Done: true, Reason: ReasonOutcome, Skipped: skipped}
		}
		s.current = id
		return Step{NodeID: id, Skipped: skipped}
	}
}

func (s *Session) finish(id string, skipped []string) Step {
	reason := ReasonEnd
	if len(s.graph.Edges(id)) > 0 {
		reason = ReasonDeadEnd
	}
	s.done, s.reason, s.last, s.current = true, reason, id, ""
	return Step{Done: true, Reason: reason, Skipped: skipped}
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	vars := make(map[string]float64, len(s.bindings))
	for k, v := range s.bindings {
		vars[k] = v
	}
	answers := make(map[string]any, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	return State{
		ID:        s.id,
		GraphID:   s.graph.ID,
		Current:   s.current,
		Done:      s.done,
		Reason:    s.reason,
		LastNode:  s.last,
		Path:      append([]string{}, s.path...),
		Answers:   answers,
		Facts:     s.facts.Snapshot(),
		Variables: vars,
	}
}

func isBlank(raw any) bool {
	switch t := raw.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

// checkSelect rejects select answers that are not among the node's options.
func checkSelect(node *Node, raw any) error {
	cfg := node.Config
	if cfg.InputType != estimate.InputSelect || len(cfg.Options) == 0 {
		return nil
	}

	var picked []any
	switch t := raw.(type) {
	case []any:
		if cfg.SelectMode != estimate.SelectMulti {
			return fmt.Errorf("%w: node %s takes a single option", estimate.ErrTypeMismatch, node.ID)
		}
		picked = t
	case []string:
		if cfg.SelectMode != estimate.SelectMulti {
			return fmt.Errorf("%w: node %s takes a single option", estimate.ErrTypeMismatch, node.ID)
		}
		for _, v := range t {
			picked = append(picked, v)
		}
	default:
		picked = []any{raw}
	}

	for _, p := range picked {
		v, ok := p.(string)
		if !ok || !hasOption(cfg.Options, v) {
			return fmt.Errorf("%w: %v is not an option of node %s", estimate.ErrTypeMismatch, p, node.ID)
		}
	}
	return nil
}

func hasOption(opts []estimate.Option, v string) bool {
	for _, o := range opts {
		if o.Value == v {
			return true
		}
	}
	return false
}
