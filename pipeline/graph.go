// ABOUTME: Dependency graph validation and topological ordering for stage definitions.
// ABOUTME: Rejects duplicate names, unknown dependencies, and cycles before any LLM call.
package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// ExecutionOrder validates the definitions as a DAG and returns them in a
// deterministic dependency order. Ties are broken by the original input
// position so the same configuration always yields the same order.
func ExecutionOrder(defs []StageDefinition) ([]StageDefinition, error) {
	byName := make(map[string]StageDefinition, len(defs))
	position := make(map[string]int, len(defs))
	for i, def := range defs {
		if def.Name == "" {
			return nil, &ConfigurationError{Message: fmt.Sprintf("stage at position %d has no name", i)}
		}
		if _, dup := byName[def.Name]; dup {
			return nil, &ConfigurationError{Message: fmt.Sprintf("duplicate stage name %q", def.Name)}
		}
		byName[def.Name] = def
		position[def.Name] = i
	}

	indegree := make(map[string]int, len(defs))
	dependents := make(map[string][]string, len(defs))
	for _, def := range defs {
		for _, dep := range def.DependsOn {
			if dep == def.Name {
				return nil, &ConfigurationError{Message: fmt.Sprintf("stage %q depends on itself", def.Name)}
			}
			if _, ok := byName[dep]; !ok {
				return nil, &ConfigurationError{Message: fmt.Sprintf("stage %q depends on unknown stage %q", def.Name, dep)}
			}
			indegree[def.Name]++
			dependents[dep] = append(dependents[dep], def.Name)
		}
	}

	// Kahn's algorithm; the ready set is kept sorted by input position.
	var ready []string
	for _, def := range defs {
		if indegree[def.Name] == 0 {
			ready = append(ready, def.Name)
		}
	}

	ordered := make([]StageDefinition, 0, len(defs))
	for len(ready) > 0 {
		sort.Slice(ready, func(a, b int) bool { return position[ready[a]] < position[ready[b]] })
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byName[name])

		for _, next := range dependents[name] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(ordered) != len(defs) {
		var stuck []string
		for name, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, &ConfigurationError{Message: fmt.Sprintf("dependency cycle involving: %s", strings.Join(stuck, ", "))}
	}

	return ordered, nil
}
