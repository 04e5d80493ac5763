package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/typedb/typedb-sub067/internal/pattern"
)

// RecursionWarning describes a group of mutually recursive rules.
//
// Recursion is legal; the resolver terminates it with its cycle guard and
// reiterates to a fixpoint. Warnings tell rule authors where that happens.
type RecursionWarning struct {
	Path    []string `json:"path"`    // rule labels, first label repeated at the end
	Message string   `json:"message"`
}

// edge is a dependency from a rule's body to a rule that could conclude
// one of its atoms. Negated edges come from not { } blocks.
type edge struct {
	to      string
	negated bool
}

type dependencyGraph map[string][]edge

// dependencies builds the rule dependency graph. Every rule is a node even
// when it has no outgoing edges.
func (s *Schema) dependencies() dependencyGraph {
	graph := make(dependencyGraph, len(s.rules))
	for _, r := range s.rules {
		graph[r.Label] = []edge{}
		s.addEdges(graph, r.Label, r.When, false)
	}
	return graph
}

func (s *Schema) addEdges(graph dependencyGraph, from string, c pattern.Conjunction, negated bool) {
	for _, a := range c.Atoms {
		if !pattern.IsConcludable(a) {
			continue
		}
		for _, dep := range s.RulesMatchingConclusion(a) {
			graph[from] = append(graph[from], edge{to: dep.Label, negated: negated})
		}
	}
	for _, neg := range c.Negations {
		s.addEdges(graph, from, neg, true)
	}
}

// Recursive reports every recursive group of rules: strongly connected
// components with more than one rule, and rules that depend on
// themselves.
func (s *Schema) Recursive() []RecursionWarning {
	graph := s.dependencies()
	var warnings []RecursionWarning
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, sccToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b RecursionWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// checkStratification rejects a rule that negates a pattern its own
// conclusion contributes to, directly or through recursion. Such a rule
// has no stable meaning under negation as failure.
func (s *Schema) checkStratification() error {
	graph := s.dependencies()
	component := make(map[string]int)
	for i, scc := range tarjanSCC(graph) {
		for _, label := range scc {
			component[label] = i
		}
	}
	for _, r := range s.rules {
		for _, e := range graph[r.Label] {
			if e.negated && component[e.to] == component[r.Label] {
				return &Error{
					Rule:    r.Label,
					Message: fmt.Sprintf("negation depends on its own conclusion through rule %s", e.to),
				}
			}
		}
	}
	return nil
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.ContainsFunc(graph[node], func(e edge) bool { return e.to == node })
}

// tarjanSCC finds strongly connected components. Nodes are visited in
// sorted order so results are deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range graph[v] {
			w := e.to
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToWarning(scc []string, graph dependencyGraph) RecursionWarning {
	if len(scc) == 1 {
		return RecursionWarning{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("rule %s is recursive", scc[0]),
		}
	}
	path := cyclePath(scc, graph)
	return RecursionWarning{
		Path:    path,
		Message: fmt.Sprintf("rules are mutually recursive: %s", strings.Join(path, " -> ")),
	}
}

// cyclePath walks edges inside the component from its first member until
// it returns to the start or runs out of unvisited members.
func cyclePath(scc []string, graph dependencyGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	start := scc[0]
	path := []string{start}
	visited := map[string]bool{start: true}
	for cur := start; ; {
		next := ""
		for _, e := range graph[cur] {
			if members[e.to] && (!visited[e.to] || e.to == start) {
				next = e.to
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		cur = next
	}
}
