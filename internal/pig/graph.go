package pig

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/expr-lang/expr"

	"github.com/smilemakc/cadtalk/internal/domainerr"
	"github.com/smilemakc/cadtalk/internal/model"
)

// Graph is the Parametric Intention Graph for one session: two flat
// arenas (parameters, operations) plus name indices and a capped
// version history. All public methods are safe for concurrent use; the
// orchestrator additionally serialises turns per session, so the lock
// here only protects against incidental concurrent reads (status
// queries) racing a turn in flight.
type Graph struct {
	mu sync.Mutex

	params []parameterRecord
	ops    []operationRecord

	paramByName map[string]int
	opByName    map[string]int

	seq int

	history []HistoryEntry
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		paramByName: make(map[string]int),
		opByName:    make(map[string]int),
	}
}

func (g *Graph) nextSeq() int {
	g.seq++
	return g.seq
}

// --- node accessors (uniform over both arenas) ---

func (g *Graph) exists(r NodeRef) bool {
	if r.Kind == NodeParameter {
		return r.Idx >= 0 && r.Idx < len(g.params)
	}
	return r.Idx >= 0 && r.Idx < len(g.ops)
}

func (g *Graph) depsOf(r NodeRef) map[NodeRef]struct{} {
	if r.Kind == NodeParameter {
		return g.params[r.Idx].deps
	}
	return g.ops[r.Idx].deps
}

func (g *Graph) dependentsOf(r NodeRef) map[NodeRef]struct{} {
	if r.Kind == NodeParameter {
		return g.params[r.Idx].dependents
	}
	return g.ops[r.Idx].dependents
}

func (g *Graph) seqOf(r NodeRef) int {
	if r.Kind == NodeParameter {
		return g.params[r.Idx].seq
	}
	return g.ops[r.Idx].seq
}

func (g *Graph) nameOf(r NodeRef) string {
	if r.Kind == NodeParameter {
		return g.params[r.Idx].name
	}
	return g.ops[r.Idx].name
}

func (g *Graph) allRefs() []NodeRef {
	refs := make([]NodeRef, 0, len(g.params)+len(g.ops))
	for i := range g.params {
		refs = append(refs, NodeRef{NodeParameter, i})
	}
	for i := range g.ops {
		refs = append(refs, NodeRef{NodeOperation, i})
	}
	return refs
}

// --- parameters ---

// AddParameter creates a new parameter, or updates the value of an
// existing one addressed by the same (case-insensitive) name, mirroring
// add_parameter's upsert behaviour. Names are matched case-insensitively
// but stored as given.
func (g *Graph) AddParameter(name string, value model.Value, bounds *Bounds, units, description string) NodeRef {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addParameterLocked(name, value, bounds, units, description)
}

func (g *Graph) addParameterLocked(name string, value model.Value, bounds *Bounds, units, description string) NodeRef {
	key := strings.ToLower(name)
	if idx, ok := g.paramByName[key]; ok {
		g.params[idx].value = value
		if bounds != nil {
			g.params[idx].bounds = bounds
		}
		if units != "" {
			g.params[idx].units = units
		}
		if description != "" {
			g.params[idx].description = description
		}
		return NodeRef{NodeParameter, idx}
	}
	rec := parameterRecord{
		name:        name,
		value:       value,
		ptype:       value.Type,
		bounds:      bounds,
		units:       units,
		description: description,
		deps:        map[NodeRef]struct{}{},
		dependents:  map[NodeRef]struct{}{},
		seq:         g.nextSeq(),
	}
	g.params = append(g.params, rec)
	idx := len(g.params) - 1
	g.paramByName[key] = idx
	return NodeRef{NodeParameter, idx}
}

// FindParameterByName resolves a parameter by case-insensitive name.
func (g *Graph) FindParameterByName(name string) (NodeRef, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.paramByName[strings.ToLower(name)]
	if !ok {
		return NodeRef{}, false
	}
	return NodeRef{NodeParameter, idx}, true
}

// Parameter returns a read-only snapshot of one parameter's current
// state.
func (g *Graph) Parameter(ref NodeRef) (ParameterView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ref.Kind != NodeParameter || !g.exists(ref) {
		return ParameterView{}, domainerr.ParameterNotFound(ref.String())
	}
	return g.paramView(ref.Idx), nil
}

func (g *Graph) paramView(idx int) ParameterView {
	r := g.params[idx]
	return ParameterView{
		Ref:         NodeRef{NodeParameter, idx},
		Name:        r.name,
		Value:       r.value,
		Type:        r.ptype,
		Units:       r.units,
		Description: r.description,
	}
}

// Parameters returns every parameter, ordered by insertion.
func (g *Graph) Parameters() []ParameterView {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]ParameterView, len(g.params))
	for i := range g.params {
		out[i] = g.paramView(i)
	}
	return out
}

// ParameterView is a read-only projection of a parameter record.
type ParameterView struct {
	Ref         NodeRef
	Name        string
	Value       model.Value
	Type        model.ParameterType
	Units       string
	Description string
}

// --- operations ---

// AddOperation creates a new operation, or replaces the kind/inputs of
// an existing one addressed by the same name. inputs maps each local
// input name (as returned by kind.RequiredInputs()) to the NodeRef it
// is bound to; every ref must already exist in the graph.
func (g *Graph) AddOperation(name string, kind model.OperationKind, inputs map[string]NodeRef, description string) (NodeRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addOperationLocked(name, kind, inputs, description)
}

func (g *Graph) addOperationLocked(name string, kind model.OperationKind, inputs map[string]NodeRef, description string) (NodeRef, error) {
	for local, ref := range inputs {
		if !g.exists(ref) {
			return NodeRef{}, fmt.Errorf("operation %q input %q references unknown node %s", name, local, ref)
		}
	}

	key := strings.ToLower(name)
	if idx, ok := g.opByName[key]; ok {
		ref := NodeRef{NodeOperation, idx}
		// detach old edges before rewiring
		for oldRef := range g.ops[idx].deps {
			delete(g.dependentsOf(oldRef), ref)
		}
		g.ops[idx].deps = map[NodeRef]struct{}{}
		g.ops[idx].inputs = map[string]NodeRef{}
		g.ops[idx].kind = kind
		if description != "" {
			g.ops[idx].description = description
		}
		for local, dep := range inputs {
			if err := g.addEdgeLocked(ref, dep); err != nil {
				return NodeRef{}, err
			}
			g.ops[idx].inputs[local] = dep
		}
		return ref, nil
	}

	rec := operationRecord{
		name:        name,
		kind:        kind,
		inputs:      map[string]NodeRef{},
		deps:        map[NodeRef]struct{}{},
		dependents:  map[NodeRef]struct{}{},
		description: description,
		seq:         g.nextSeq(),
	}
	g.ops = append(g.ops, rec)
	idx := len(g.ops) - 1
	ref := NodeRef{NodeOperation, idx}
	g.opByName[key] = idx

	for local, dep := range inputs {
		if err := g.addEdgeLocked(ref, dep); err != nil {
			// roll back the partially-created node
			g.ops = g.ops[:idx]
			delete(g.opByName, key)
			return NodeRef{}, err
		}
		g.ops[idx].inputs[local] = dep
	}
	return ref, nil
}

// FindOperationByName resolves an operation by case-insensitive name.
func (g *Graph) FindOperationByName(name string) (NodeRef, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.opByName[strings.ToLower(name)]
	if !ok {
		return NodeRef{}, false
	}
	return NodeRef{NodeOperation, idx}, true
}

// OperationView is a read-only projection of an operation record.
type OperationView struct {
	Ref         NodeRef
	Name        string
	Kind        string
	Script      string
	Description string
}

func (g *Graph) opView(idx int) (OperationView, error) {
	r := g.ops[idx]
	ref := NodeRef{NodeOperation, idx}
	script, err := r.render(r.name, g.nameOf)
	if err != nil {
		return OperationView{}, err
	}
	return OperationView{Ref: ref, Name: r.name, Kind: r.kind.Tag(), Script: script, Description: r.description}, nil
}

// Operations returns every operation, ordered by insertion.
func (g *Graph) Operations() ([]OperationView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]OperationView, 0, len(g.ops))
	for i := range g.ops {
		v, err := g.opView(i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// --- edges & cycle detection ---

// addEdgeLocked registers that `dependent` requires `dependency`,
// rejecting the edge if it would close a cycle. Detection is eager: run
// before the edge is committed, as a bounded DFS from dependency
// through its own deps looking for dependent, rather than deferred to
// topological sort (the REDESIGN FLAG this replaces: get_execution_order
// in the source both sorts AND detects cycles in one recursive DFS over
// live node state).
func (g *Graph) addEdgeLocked(dependent, dependency NodeRef) error {
	if dependent == dependency {
		return domainerr.CycleDetected(dependent.String())
	}
	if g.reaches(dependency, dependent) {
		return domainerr.CycleDetected(dependent.String())
	}
	g.depsOf(dependent)[dependency] = struct{}{}
	g.dependentsOf(dependency)[dependent] = struct{}{}
	return nil
}

// reaches reports whether a path from->to exists by following deps
// edges (i.e. whether `to` is an ancestor dependency of `from`).
func (g *Graph) reaches(from, to NodeRef) bool {
	if from == to {
		return true
	}
	seen := map[NodeRef]struct{}{from: {}}
	stack := []NodeRef{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for dep := range g.depsOf(n) {
			if dep == to {
				return true
			}
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			stack = append(stack, dep)
		}
	}
	return false
}

// --- topological order ---

// TopoOrder returns every node in a valid execution order: a dependency
// always precedes its dependents, ties broken by insertion order.
// Implemented as Kahn's algorithm so that, unlike a DFS-based sort, a
// cycle surfaces as a distinct "order is short" condition rather than
// as unbounded recursion.
func (g *Graph) TopoOrder() ([]NodeRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.topoOrderLocked()
}

func (g *Graph) topoOrderLocked() ([]NodeRef, error) {
	all := g.allRefs()
	indeg := make(map[NodeRef]int, len(all))
	for _, r := range all {
		indeg[r] = len(g.depsOf(r))
	}

	var ready []NodeRef
	for _, r := range all {
		if indeg[r] == 0 {
			ready = append(ready, r)
		}
	}

	order := make([]NodeRef, 0, len(all))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return g.seqOf(ready[i]) < g.seqOf(ready[j]) })
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for d := range g.dependentsOf(n) {
			indeg[d]--
			if indeg[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(order) != len(all) {
		return nil, domainerr.CycleDetected("graph")
	}
	return order, nil
}

// AffectedClosure returns every node transitively reachable from seed
// via dependents edges (seed excluded), ordered consistently with
// TopoOrder.
func (g *Graph) AffectedClosure(seed NodeRef) ([]NodeRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.affectedClosureLocked(seed)
}

func (g *Graph) affectedClosureLocked(seed NodeRef) ([]NodeRef, error) {
	affected := map[NodeRef]struct{}{}
	queue := []NodeRef{seed}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for d := range g.dependentsOf(n) {
			if _, ok := affected[d]; ok {
				continue
			}
			affected[d] = struct{}{}
			queue = append(queue, d)
		}
	}

	order, err := g.topoOrderLocked()
	if err != nil {
		return nil, err
	}
	out := make([]NodeRef, 0, len(affected))
	for _, r := range order {
		if _, ok := affected[r]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- parameter updates ---

// UpdateParameter validates and applies a new value to the named
// parameter, then returns the closure of operations/parameters affected
// by the change in topological order. It never recomputes downstream
// values itself (cadtalk has no formula/expression layer on parameters);
// the affected closure tells the caller which operations must be
// re-rendered and re-executed.
func (g *Graph) UpdateParameter(name string, value model.Value) ([]NodeRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx, ok := g.paramByName[strings.ToLower(name)]
	if !ok {
		return nil, domainerr.ParameterNotFound(name)
	}
	rec := &g.params[idx]

	if rec.ptype != "" && value.Type != rec.ptype {
		return nil, domainerr.TypeMismatch(name, fmt.Sprintf("expected %s, got %s", rec.ptype, value.Type))
	}
	if err := g.checkBoundsLocked(*rec, value); err != nil {
		return nil, err
	}

	rec.value = value
	ref := NodeRef{NodeParameter, idx}

	affected, err := g.affectedClosureLocked(ref)
	if err != nil {
		return nil, err
	}

	g.appendHistoryLocked(HistoryEntry{
		Type:        HistoryParameterUpdate,
		Description: fmt.Sprintf("update %s = %s", name, value.Literal()),
		Data:        map[string]any{"parameter": name, "value": value.Literal()},
	})

	return affected, nil
}

func (g *Graph) checkBoundsLocked(rec parameterRecord, value model.Value) error {
	if rec.bounds == nil || value.Type != model.TypeNumeric {
		return nil
	}
	b := rec.bounds
	if b.Min != nil && value.Num < *b.Min {
		return domainerr.OutOfBounds(rec.name, fmt.Sprintf("%g below minimum %g", value.Num, *b.Min))
	}
	if b.Max != nil && value.Num > *b.Max {
		return domainerr.OutOfBounds(rec.name, fmt.Sprintf("%g above maximum %g", value.Num, *b.Max))
	}
	if b.Expr == "" {
		return nil
	}
	env := map[string]any{"value": value.Num}
	for _, p := range g.params {
		env[p.name] = p.value.Num
	}
	out, err := expr.Eval(b.Expr, env)
	if err != nil {
		return domainerr.OutOfBounds(rec.name, fmt.Sprintf("bounds expression error: %v", err))
	}
	ok, _ := out.(bool)
	if !ok {
		return domainerr.OutOfBounds(rec.name, fmt.Sprintf("value %g fails constraint %q", value.Num, b.Expr))
	}
	return nil
}
