package graph

// FindPrerequisiteCycle returns the edges of one cycle in the subgraph
// induced by prerequisite edges, or nil if that subgraph is acyclic.
// Traversal follows insertion order so repeated calls on the same graph
// find the same cycle.
func (s *Store) FindPrerequisiteCycle() []Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Adjacency in edge insertion order.
	adj := make(map[string][]*Relationship)
	for _, key := range s.edgeOrder {
		if key.Type != RelPrerequisite {
			continue
		}
		e := s.edges[key]
		adj[key.Source] = append(adj[key.Source], e)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(s.concepts))

	var stack []*Relationship
	var found []Relationship

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, e := range adj[id] {
			switch color[e.Target] {
			case white:
				stack = append(stack, e)
				if visit(e.Target) {
					return true
				}
				stack = stack[:len(stack)-1]
			case gray:
				// Back edge: the cycle is the stack suffix from e.Target
				// plus the closing edge.
				start := 0
				for i, se := range stack {
					if se.Source == e.Target {
						start = i
						break
					}
				}
				for _, se := range stack[start:] {
					found = append(found, *se)
				}
				found = append(found, *e)
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, id := range s.conceptOrder {
		if color[id] == white {
			stack = stack[:0]
			if visit(id) {
				return found
			}
		}
	}
	return nil
}
