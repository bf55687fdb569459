package pig

// ParamDecl is one "name = literal" parameter declaration line.
type ParamDecl struct {
	Name    string
	Literal string
}

// RenderScript walks the graph in topological order and returns the
// parameter declarations, one rendered line per operation (in
// dependency order, each naming its own result variable), and the
// names of every operation with no dependents — the "top-level"
// results a caller (internal/sandbox's AssembleScript) must union
// together into a single final result, mirroring how the source
// renders its full CadQuery script from PIG state.
func (g *Graph) RenderScript() (params []ParamDecl, opLines []string, topLevelVars []string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	order, err := g.topoOrderLocked()
	if err != nil {
		return nil, nil, nil, err
	}

	for _, ref := range order {
		switch ref.Kind {
		case NodeParameter:
			rec := g.params[ref.Idx]
			params = append(params, ParamDecl{Name: rec.name, Literal: rec.value.Literal()})
		case NodeOperation:
			rec := g.ops[ref.Idx]
			line, rerr := rec.render(rec.name, g.nameOf)
			if rerr != nil {
				return nil, nil, nil, rerr
			}
			opLines = append(opLines, line)
			if len(g.dependentsOf(ref)) == 0 {
				topLevelVars = append(topLevelVars, rec.name)
			}
		}
	}
	return params, opLines, topLevelVars, nil
}

// RenderSubset renders only the seeds plus every node they transitively
// depend on (parameters and operations), in topological order, for the
// fast-path parameter-update re-execution: only the affected subgraph
// needs to be regenerated and run, not the whole model.
func (g *Graph) RenderSubset(seeds []NodeRef) (params []ParamDecl, opLines []string, topLevelVars []string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	order, err := g.topoOrderLocked()
	if err != nil {
		return nil, nil, nil, err
	}

	include := make(map[NodeRef]struct{}, len(seeds))
	for _, s := range seeds {
		include[s] = struct{}{}
	}
	// Expand to include every ancestor parameter each seed operation
	// needs, so the rendered subset is a runnable standalone script.
	// Walking in reverse topological order reaches each dependent before
	// its dependencies, so included operations' own deps are expanded too.
	for i := len(order) - 1; i >= 0; i-- {
		ref := order[i]
		if ref.Kind != NodeOperation {
			continue
		}
		if _, ok := include[ref]; !ok {
			continue
		}
		for dep := range g.depsOf(ref) {
			include[dep] = struct{}{}
		}
	}

	paramSeen := map[string]bool{}
	for _, ref := range order {
		if _, ok := include[ref]; !ok {
			continue
		}
		switch ref.Kind {
		case NodeParameter:
			rec := g.params[ref.Idx]
			if !paramSeen[rec.name] {
				paramSeen[rec.name] = true
				params = append(params, ParamDecl{Name: rec.name, Literal: rec.value.Literal()})
			}
		case NodeOperation:
			rec := g.ops[ref.Idx]
			line, rerr := rec.render(rec.name, g.nameOf)
			if rerr != nil {
				return nil, nil, nil, rerr
			}
			opLines = append(opLines, line)
			isTop := true
			for dependent := range g.dependentsOf(ref) {
				if _, ok := include[dependent]; ok {
					isTop = false
					break
				}
			}
			if isTop {
				topLevelVars = append(topLevelVars, rec.name)
			}
		}
	}
	return params, opLines, topLevelVars, nil
}
