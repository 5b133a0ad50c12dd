package container

// Plan is a build order: every dependency appears before its dependents and
// each registered TypeID appears exactly once.
type Plan []TypeID

// Index returns the position of id in the plan, or -1.
func (p Plan) Index(id TypeID) int {
	for i, v := range p {
		if v == id {
			return i
		}
	}
	return -1
}

// Reverse returns a copy of the plan in teardown order.
func (p Plan) Reverse() Plan {
	out := make(Plan, len(p))
	for i, id := range p {
		out[len(p)-1-i] = id
	}
	return out
}

type visitMark uint8

const (
	unvisited visitMark = iota
	visiting
	visited
)

// graph is the transient dependency graph; edges are dropped once the plan
// is computed.
type graph struct {
	// registration order
	order []TypeID
	// dependent -> dependencies, in DependsOn order
	edges map[TypeID][]TypeID
	marks map[TypeID]visitMark
	// current DFS path, for cycle reporting
	stack []TypeID
	plan  Plan
}

// BuildPlan computes a deterministic topological order for records, which
// must be in registration order with unique TypeIDs.
//
// Nodes are visited in registration order and each node's dependencies in
// DependsOn order; a node is emitted after all of its dependencies
// (post-order DFS). Unregistered dependencies fail with
// MissingDependencyError, cycles (including self-dependencies) with
// CircularDependencyError.
func BuildPlan(records []Metadata) (Plan, error) {
	g := &graph{
		order: make([]TypeID, 0, len(records)),
		edges: make(map[TypeID][]TypeID, len(records)),
		marks: make(map[TypeID]visitMark, len(records)),
		plan:  make(Plan, 0, len(records)),
	}
	for _, m := range records {
		if _, dup := g.edges[m.TypeID]; dup {
			return nil, &DuplicateRegistrationError{TypeID: m.TypeID}
		}
		g.order = append(g.order, m.TypeID)
		g.edges[m.TypeID] = m.DependsOn
	}

	// Missing dependencies are reported before cycles so that a dangling
	// edge inside a cycle names the real culprit.
	for _, id := range g.order {
		for _, dep := range g.edges[id] {
			if _, ok := g.edges[dep]; !ok {
				return nil, &MissingDependencyError{Requester: id, Missing: dep}
			}
		}
	}

	for _, id := range g.order {
		if g.marks[id] == unvisited {
			if err := g.visit(id); err != nil {
				return nil, err
			}
		}
	}
	return g.plan, nil
}

func (g *graph) visit(id TypeID) error {
	switch g.marks[id] {
	case visited:
		return nil
	case visiting:
		return &CircularDependencyError{Cycle: g.cycleTo(id)}
	}

	g.marks[id] = visiting
	g.stack = append(g.stack, id)

	for _, dep := range g.edges[id] {
		if err := g.visit(dep); err != nil {
			return err
		}
	}

	g.stack = g.stack[:len(g.stack)-1]
	g.marks[id] = visited
	g.plan = append(g.plan, id)
	return nil
}

// cycleTo returns the portion of the DFS path starting at id, closed with id.
func (g *graph) cycleTo(id TypeID) []TypeID {
	start := 0
	for i, v := range g.stack {
		if v == id {
			start = i
			break
		}
	}
	cycle := make([]TypeID, 0, len(g.stack)-start+1)
	cycle = append(cycle, g.stack[start:]...)
	return append(cycle, id)
}
