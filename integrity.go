package estimate

import "fmt"

// WouldCreateCycle reports whether adding the edge fromID -> toID to edges
// would let some node reach itself.
func WouldCreateCycle(fromID, toID string, edges []DecisionEdge) bool {
	if fromID == toID {
		return true
	}
	adj := make(map[string][]string, len(edges)+1)
	for _, e := range edges {
		adj[e.FromNodeID] = append(adj[e.FromNodeID], e.ToNodeID)
	}
	adj[fromID] = append(adj[fromID], toID)

	onStack := make(map[string]bool)
	done := make(map[string]bool)

	var dfs func(id string) bool
	dfs = func(id string) bool {
		onStack[id] = true
		for _, next := range adj[id] {
			if onStack[next] {
				return true
			}
			if !done[next] && dfs(next) {
				return true
			}
		}
		onStack[id] = false
		done[id] = true
		return false
	}
	return dfs(fromID)
}

// ValidateAcyclic checks that the edges don't form a cycle using DFS.
func ValidateAcyclic(nodes []DecisionNode, edges []DecisionEdge) error {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.FromNodeID] = append(adj[e.FromNodeID], e.ToNodeID)
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	// Ordered so the walk, and so the reported node, is deterministic.
	var order []string
	state := make(map[string]int)
	add := func(id string) {
		if _, ok := state[id]; !ok {
			state[id] = unvisited
			order = append(order, id)
		}
	}
	for _, n := range nodes {
		add(n.ID)
	}
	for _, e := range edges {
		add(e.FromNodeID)
		add(e.ToNodeID)
	}

	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = visiting
		for _, next := range adj[id] {
			switch state[next] {
			case visiting:
				return true
			case unvisited:
				if dfs(next) {
					return true
				}
			}
		}
		state[id] = visited
		return false
	}

	for _, id := range order {
		if state[id] == unvisited && dfs(id) {
			return fmt.Errorf("%w: reachable from node %s", ErrCycleDetected, id)
		}
	}
	return nil
}

// CheckEndpoints reports ErrNodeNotFound unless both ends of e are in nodes.
func CheckEndpoints(nodes []DecisionNode, e DecisionEdge) error {
	var from, to bool
	for _, n := range nodes {
		from = from || n.ID == e.FromNodeID
		to = to || n.ID == e.ToNodeID
	}
	if !from {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, e.FromNodeID)
	}
	if !to {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, e.ToNodeID)
	}
	return nil
}

// StartNode returns the first node, in insertion order, that no edge points at.
func StartNode(nodes []DecisionNode, edges []DecisionEdge) (string, bool) {
	incoming := make(map[string]bool, len(edges))
	for _, e := range edges {
		incoming[e.ToNodeID] = true
	}
	for _, n := range nodes {
		if !incoming[n.ID] {
			return n.ID, true
		}
	}
	return "", false
}

// Lint codes.
const (
	LintMissingDefault = "missing_default_edge"
	LintDanglingEdge   = "dangling_edge"
	LintUnreachable    = "unreachable_node"
	LintUnknownFact    = "unknown_fact"
	LintNoStart        = "no_start_node"
)

// LintIssue is an authoring problem that does not make a graph invalid but can
// strand a questionnaire.
type LintIssue struct {
	Code    string `json:"code"`
	NodeID  string `json:"node_id,omitempty"`
	EdgeID  string `json:"edge_id,omitempty"`
	Message string `json:"message"`
}

// Lint reports question nodes whose outgoing edges have no unconditional
// default, edges to unknown nodes, nodes unreachable from the start node and
// produced facts without a definition.
func Lint(nodes []DecisionNode, edges []DecisionEdge, defs []FactDefinition) []LintIssue {
	var issues []LintIssue

	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.ID] = true
	}
	defined := make(map[string]bool, len(defs))
	for _, d := range defs {
		defined[d.Key] = true
	}

	out := make(map[string][]DecisionEdge)
	for _, e := range edges {
		if !known[e.FromNodeID] || !known[e.ToNodeID] {
			issues = append(issues, LintIssue{
				Code:    LintDanglingEdge,
				EdgeID:  e.ID,
				Message: fmt.Sprintf("edge %s connects unknown nodes %s -> %s", e.ID, e.FromNodeID, e.ToNodeID),
			})
			continue
		}
		out[e.FromNodeID] = append(out[e.FromNodeID], e)
	}

	for _, n := range nodes {
		for _, k := range n.Config.ProducesFacts {
			if !defined[k] {
				issues = append(issues, LintIssue{
					Code:    LintUnknownFact,
					NodeID:  n.ID,
					Message: fmt.Sprintf("node %q produces undefined fact %q", n.Label, k),
				})
			}
		}
		if n.Type == NodeOutcome || len(out[n.ID]) == 0 {
			continue
		}
		hasDefault := false
		for _, e := range out[n.ID] {
			if e.Unconditional() {
				hasDefault = true
				break
			}
		}
		if !hasDefault {
			issues = append(issues, LintIssue{
				Code:    LintMissingDefault,
				NodeID:  n.ID,
				Message: fmt.Sprintf("node %q has conditional edges but no default edge", n.Label),
			})
		}
	}

	start, ok := StartNode(nodes, edges)
	if !ok {
		if len(nodes) > 0 {
			issues = append(issues, LintIssue{Code: LintNoStart, Message: "every node has an incoming edge"})
		}
		return issues
	}
	reached := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range out[id] {
			if !reached[e.ToNodeID] {
				reached[e.ToNodeID] = true
				queue = append(queue, e.ToNodeID)
			}
		}
	}
	for _, n := range nodes {
		if !reached[n.ID] {
			issues = append(issues, LintIssue{
				Code:    LintUnreachable,
				NodeID:  n.ID,
				Message: fmt.Sprintf("node %q is not reachable from the start node", n.Label),
			})
		}
	}
	return issues
}
