package pig

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/smilemakc/cadtalk/internal/domainerr"
	"github.com/smilemakc/cadtalk/internal/model"
)

// EditOperationScript replaces a named operation's rendered body with a
// caller-supplied script fragment, optionally inferring new parameters
// for any free identifier the fragment references that isn't already a
// bound input. The whole change is transactional: on any failure the
// graph is left exactly as it was (via an internal snapshot/restore
// pair), matching edit_code_directly's "validate before commit"
// behaviour.
func (g *Graph) EditOperationScript(name, newScript string, inferParameters bool) (affected []NodeRef, created []NodeRef, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx, ok := g.opByName[strings.ToLower(name)]
	if !ok {
		return nil, nil, domainerr.OperationNotFound(name)
	}
	if strings.TrimSpace(newScript) == "" {
		return nil, nil, domainerr.New(domainerr.CodePlanInvalid, "operation script must not be empty")
	}

	pre := g.snapshotLocked()
	ref := NodeRef{NodeOperation, idx}

	if inferParameters {
		for _, ident := range freeIdentifiers(newScript) {
			if _, bound := g.ops[idx].inputs[ident]; bound {
				continue
			}
			if _, exists := g.paramByName[strings.ToLower(ident)]; exists {
				pref, _ := g.findParameterByNameLocked(ident)
				if err := g.addEdgeLocked(ref, pref); err != nil {
					g.restoreLocked(pre)
					return nil, nil, err
				}
				g.ops[idx].inputs[ident] = pref
				continue
			}
			pref := g.addParameterLocked(ident, model.Number(0), nil, "", "inferred from edited script")
			if err := g.addEdgeLocked(ref, pref); err != nil {
				g.restoreLocked(pre)
				return nil, nil, err
			}
			g.ops[idx].inputs[ident] = pref
			created = append(created, pref)
		}
	}

	g.ops[idx].kind = model.OpFreeScript{Script: newScript}

	if _, err := g.topoOrderLocked(); err != nil {
		g.restoreLocked(pre)
		return nil, nil, err
	}

	affected, err = g.affectedClosureLocked(ref)
	if err != nil {
		g.restoreLocked(pre)
		return nil, nil, err
	}

	g.appendHistoryLocked(HistoryEntry{
		Type:        HistoryDirectEdit,
		Description: fmt.Sprintf("edit operation %s script", name),
		Data:        map[string]any{"operation": name},
	})

	return affected, created, nil
}

// findParameterByNameLocked is FindParameterByName without acquiring
// the lock, for callers already holding it.
func (g *Graph) findParameterByNameLocked(name string) (NodeRef, bool) {
	idx, ok := g.paramByName[strings.ToLower(name)]
	if !ok {
		return NodeRef{}, false
	}
	return NodeRef{NodeParameter, idx}, true
}

// freeIdentifiers extracts candidate bare-word identifiers from a
// script fragment: lowercase-leading alphanumeric/underscore tokens
// that aren't one of the DSL's known function names. This is a
// heuristic used only when a caller opts into InferParameters; it never
// evaluates the script.
func freeIdentifiers(script string) []string {
	known := map[string]struct{}{
		"box": {}, "cylinder": {}, "sphere": {}, "extrude": {}, "cut": {},
		"union": {}, "fillet": {}, "chamfer": {}, "result": {}, "None": {}, "True": {}, "False": {},
	}

	// Only the right-hand side of "resultVar = expr" can reference
	// inputs; the assignment target itself is never a dependency.
	rhs := script
	if i := strings.Index(script, "="); i >= 0 {
		rhs = script[i+1:]
	}

	var out []string
	seen := map[string]struct{}{}
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		tok := cur.String()
		cur.Reset()
		if _, ok := known[tok]; ok {
			return
		}
		if _, ok := seen[tok]; ok {
			return
		}
		if !unicode.IsLower(rune(tok[0])) && tok[0] != '_' {
			return
		}
		if isNumericToken(tok) {
			return
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	for _, r := range rhs {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return out
}

func isNumericToken(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) && r != '.' {
			return false
		}
	}
	return len(tok) > 0
}
