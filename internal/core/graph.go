package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"devkit-installer/internal/types"
)

// DependencyGraph is the validated dependency structure of a catalog
// subset. Edges point from a component to the components it depends
// on; install order must put dependencies first.
type DependencyGraph struct {
	order    []string
	inputPos map[string]int
	nodes    map[string]types.ComponentSpec
	edges    map[string][]string
	reverse  map[string][]string
}

// BuildGraph validates the component set (unique names, no unknown
// dependency references) and builds the graph. Cycles are legal here;
// DetectCycles and TopologicalOrder report them.
func BuildGraph(components []types.ComponentSpec) (*DependencyGraph, error) {
	graph := &DependencyGraph{
		inputPos: map[string]int{},
		nodes:    map[string]types.ComponentSpec{},
		edges:    map[string][]string{},
		reverse:  map[string][]string{},
	}
	for i, component := range components {
		name := strings.TrimSpace(component.Name)
		if name == "" {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("component name must not be empty")
		}
		if _, exists := graph.nodes[name]; exists {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("duplicate component name: %s", name))
		}
		graph.order = append(graph.order, name)
		graph.inputPos[name] = i
		graph.nodes[name] = component
	}
	for _, name := range graph.order {
		for _, dep := range graph.nodes[name].DependsOn {
			dep = strings.TrimSpace(dep)
			if _, known := graph.nodes[dep]; !known {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("component %s depends on unknown component %s", name, dep))
			}
			graph.edges[name] = append(graph.edges[name], dep)
			graph.reverse[dep] = append(graph.reverse[dep], name)
		}
	}
	return graph, nil
}

// DetectCycles returns every dependency cycle found by depth-first
// search, each as the node sequence closing back on its first element.
// An empty result means the graph is installable.
func (g *DependencyGraph) DetectCycles() [][]string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}
	var stack []string
	var cycles [][]string

	var visit func(name string)
	visit = func(name string) {
		state[name] = visiting
		stack = append(stack, name)
		for _, dep := range g.edges[name] {
			switch state[dep] {
			case unvisited:
				visit(dep)
			case visiting:
				// Back edge: the cycle is the stack suffix from dep.
				for i, frame := range stack {
					if frame == dep {
						cycle := append([]string{}, stack[i:]...)
						cycle = append(cycle, dep)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
	}

	for _, name := range g.order {
		if state[name] == unvisited {
			visit(name)
		}
	}
	return cycles
}

// TopologicalOrder returns the install sequence: every dependency
// before its dependents, ties broken by catalog order. Fails with the
// first cycle named when the graph is not a DAG.
func (g *DependencyGraph) TopologicalOrder() ([]string, error) {
	remaining := map[string]int{}
	var ready []string
	for _, name := range g.order {
		remaining[name] = len(g.edges[name])
		if remaining[name] == 0 {
			ready = append(ready, name)
		}
	}

	var sequence []string
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			return g.inputPos[ready[i]] < g.inputPos[ready[j]]
		})
		next := ready[0]
		ready = ready[1:]
		sequence = append(sequence, next)
		for _, dependent := range g.reverse[next] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}
	if len(sequence) != len(g.order) {
		return nil, g.cycleError()
	}
	return sequence, nil
}

// IndependentGroups partitions the order into waves: members of a wave
// depend only on earlier waves, so each wave may install in parallel.
func (g *DependencyGraph) IndependentGroups() ([][]string, error) {
	if cycles := g.DetectCycles(); len(cycles) > 0 {
		return nil, g.cycleError()
	}
	level := map[string]int{}
	var levelOf func(name string) int
	levelOf = func(name string) int {
		if value, ok := level[name]; ok {
			return value
		}
		depth := 0
		for _, dep := range g.edges[name] {
			if candidate := levelOf(dep) + 1; candidate > depth {
				depth = candidate
			}
		}
		level[name] = depth
		return depth
	}

	maxLevel := 0
	for _, name := range g.order {
		if depth := levelOf(name); depth > maxLevel {
			maxLevel = depth
		}
	}
	groups := make([][]string, maxLevel+1)
	for _, name := range g.order {
		groups[level[name]] = append(groups[level[name]], name)
	}
	return groups, nil
}

// Dependents returns every component that transitively depends on
// name, in catalog order. Used to mark the blast radius of a failure.
func (g *DependencyGraph) Dependents(name string) []string {
	seen := map[string]struct{}{}
	queue := append([]string{}, g.reverse[name]...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, ok := seen[current]; ok {
			continue
		}
		seen[current] = struct{}{}
		queue = append(queue, g.reverse[current]...)
	}
	dependents := make([]string, 0, len(seen))
	for dependent := range seen {
		dependents = append(dependents, dependent)
	}
	sort.Slice(dependents, func(i, j int) bool {
		return g.inputPos[dependents[i]] < g.inputPos[dependents[j]]
	})
	return dependents
}

// Closure expands the requested names to their transitive dependency
// closure, in catalog order. An empty request selects everything.
func (g *DependencyGraph) Closure(requested []string) ([]types.ComponentSpec, error) {
	if len(requested) == 0 {
		specs := make([]types.ComponentSpec, 0, len(g.order))
		for _, name := range g.order {
			specs = append(specs, g.nodes[name])
		}
		return specs, nil
	}
	seen := map[string]struct{}{}
	var queue []string
	for _, name := range requested {
		name = strings.TrimSpace(name)
		if _, known := g.nodes[name]; !known {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("component not in catalog: %s", name))
		}
		queue = append(queue, name)
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, ok := seen[current]; ok {
			continue
		}
		seen[current] = struct{}{}
		queue = append(queue, g.edges[current]...)
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return g.inputPos[names[i]] < g.inputPos[names[j]]
	})
	specs := make([]types.ComponentSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, g.nodes[name])
	}
	return specs, nil
}

// Component returns the spec for a node in the graph.
func (g *DependencyGraph) Component(name string) (types.ComponentSpec, bool) {
	spec, ok := g.nodes[name]
	return spec, ok
}

func (g *DependencyGraph) cycleError() error {
	cycles := g.DetectCycles()
	if len(cycles) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("dependency graph is not installable")
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(fmt.Sprintf("dependency cycle: %s", FormatCycle(cycles[0])))
}

// FormatCycle renders a cycle as "a -> b -> a" for error messages.
func FormatCycle(cycle []string) string {
	return strings.Join(cycle, " -> ")
}
