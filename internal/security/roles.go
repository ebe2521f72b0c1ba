// Package security implements the role grant graph and column-level grants.
package security

import (
	"iter"

	om "github.com/elliotchance/orderedmap/v3"

	"github.com/Lorentz83/dbSchema/internal/domain"
)

// RoleSet is an insertion-ordered set of role identifiers.
type RoleSet struct {
	m *om.OrderedMap[string, domain.Identifier]
}

// NewRoleSet returns a set holding ids.
func NewRoleSet(ids ...domain.Identifier) *RoleSet {
	s := &RoleSet{m: om.NewOrderedMap[string, domain.Identifier]()}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id and reports whether it was new.
func (s *RoleSet) Add(id domain.Identifier) bool {
	if s.m.Has(id.Key()) {
		return false
	}
	s.m.Set(id.Key(), id)
	return true
}

// AddAll inserts every member of other.
func (s *RoleSet) AddAll(other *RoleSet) {
	for id := range other.All() {
		s.Add(id)
	}
}

// Has reports membership by normalized name.
func (s *RoleSet) Has(id domain.Identifier) bool {
	return s != nil && s.m.Has(id.Key())
}

// Len returns the number of roles.
func (s *RoleSet) Len() int {
	if s == nil {
		return 0
	}
	return s.m.Len()
}

// All iterates in insertion order.
func (s *RoleSet) All() iter.Seq[domain.Identifier] {
	if s == nil {
		return func(func(domain.Identifier) bool) {}
	}
	return s.m.Values()
}

// Names returns the original spelling of each role.
func (s *RoleSet) Names() []string {
	out := make([]string, 0, s.Len())
	for id := range s.All() {
		out = append(out, id.String())
	}
	return out
}

// Equal reports whether both sets hold the same roles, ignoring order.
func (s *RoleSet) Equal(other *RoleSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for id := range s.All() {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Edge is a role membership: From inherits To.
type Edge struct {
	From domain.Identifier
	To   domain.Identifier
}

// RoleGraph is a directed acyclic graph of principal -> granted role edges.
type RoleGraph struct {
	names *om.OrderedMap[string, domain.Identifier]
	out   map[string][]string
	edges []Edge
}

// NewRoleGraph returns an empty graph.
func NewRoleGraph() *RoleGraph {
	return &RoleGraph{
		names: om.NewOrderedMap[string, domain.Identifier](),
		out:   map[string][]string{},
	}
}

// GrantRole adds the edge to -> role. It fails with KindRoleCycle, leaving
// the graph unchanged, when role already reaches to (including role == to).
// Granting an existing edge again is a no-op.
func (g *RoleGraph) GrantRole(role, to domain.Identifier) error {
	if g.reaches(role.Key(), to.Key()) {
		return domain.ErrRoleCycle(role.String(), to.String())
	}
	for _, r := range g.out[to.Key()] {
		if r == role.Key() {
			return nil
		}
	}
	g.remember(role)
	g.remember(to)
	g.out[to.Key()] = append(g.out[to.Key()], role.Key())
	g.edges = append(g.edges, Edge{From: to, To: role})
	return nil
}

func (g *RoleGraph) remember(id domain.Identifier) {
	if !g.names.Has(id.Key()) {
		g.names.Set(id.Key(), id)
	}
}

func (g *RoleGraph) reaches(from, target string) bool {
	if from == target {
		return true
	}
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.out[current] {
			if next == target {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// Reachable returns principal followed by every role it transitively holds,
// in breadth-first order. Each role appears once.
func (g *RoleGraph) Reachable(principal domain.Identifier) []domain.Identifier {
	visited := map[string]bool{principal.Key(): true}
	out := []domain.Identifier{principal}
	queue := []string{principal.Key()}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.out[current] {
			if visited[next] {
				continue
			}
			visited[next] = true
			id, _ := g.names.Get(next)
			out = append(out, id)
			queue = append(queue, next)
		}
	}
	return out
}

// Edges returns every edge in insertion order.
func (g *RoleGraph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}
