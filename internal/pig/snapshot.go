package pig

// Snapshot is a deep, self-contained value-copy of a Graph's arenas.
// Because Parameter and Operation records live in flat slices indexed
// by NodeRef rather than behind pointers, copying the slices (and their
// per-record maps) is sufficient for a full snapshot — there is no
// shared mutable state between a Snapshot and the Graph it was taken
// from.
type Snapshot struct {
	params      []parameterRecord
	ops         []operationRecord
	paramByName map[string]int
	opByName    map[string]int
	seq         int
}

// Snapshot captures the graph's current state.
func (g *Graph) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Graph) snapshotLocked() Snapshot {
	params := make([]parameterRecord, len(g.params))
	for i, p := range g.params {
		params[i] = p.clone()
	}
	ops := make([]operationRecord, len(g.ops))
	for i, o := range g.ops {
		ops[i] = o.clone()
	}
	paramByName := make(map[string]int, len(g.paramByName))
	for k, v := range g.paramByName {
		paramByName[k] = v
	}
	opByName := make(map[string]int, len(g.opByName))
	for k, v := range g.opByName {
		opByName[k] = v
	}
	return Snapshot{params: params, ops: ops, paramByName: paramByName, opByName: opByName, seq: g.seq}
}

// Restore replaces the graph's live state with a previously captured
// Snapshot. It does not itself touch version history; callers that want
// the restore recorded (e.g. rollback) append their own entry.
func (g *Graph) Restore(snap Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.restoreLocked(snap)
}

func (g *Graph) restoreLocked(snap Snapshot) {
	params := make([]parameterRecord, len(snap.params))
	for i, p := range snap.params {
		params[i] = p.clone()
	}
	ops := make([]operationRecord, len(snap.ops))
	for i, o := range snap.ops {
		ops[i] = o.clone()
	}
	paramByName := make(map[string]int, len(snap.paramByName))
	for k, v := range snap.paramByName {
		paramByName[k] = v
	}
	opByName := make(map[string]int, len(snap.opByName))
	for k, v := range snap.opByName {
		opByName[k] = v
	}
	g.params = params
	g.ops = ops
	g.paramByName = paramByName
	g.opByName = opByName
	g.seq = snap.seq
}
