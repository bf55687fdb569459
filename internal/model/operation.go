package model

import (
	"fmt"
	"strings"
)

// OperationKind is the closed tagged variant replacing the source's
// untyped map of kind-strings to script templates. Every concrete CAD
// step the Executor knows how to template implements it; anything the
// Planner names that isn't one of these becomes FreeScript, carrying
// its author's script fragment verbatim.
type OperationKind interface {
	// Tag is the advisory kind string (spec.md §3: "the kind tag is
	// advisory"): "box", "cylinder", "cut", ...
	Tag() string
	// RequiredInputs lists the local input names this kind's template
	// needs bound to a parameter before it can render.
	RequiredInputs() []string
	// Render produces the DSL fragment assigning the kind's result to
	// resultVar, referencing each required input by the parameter name
	// bound to it in inputs.
	Render(resultVar string, inputs map[string]string) (string, error)
}

func missingInputs(kind string, required []string, inputs map[string]string) error {
	var missing []string
	for _, name := range required {
		if _, ok := inputs[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("operation kind %q missing required input(s): %s", kind, strings.Join(missing, ", "))
	}
	return nil
}

// OpBox renders a rectangular prism.
type OpBox struct{}

func (OpBox) Tag() string               { return "box" }
func (OpBox) RequiredInputs() []string  { return []string{"width", "height", "depth"} }
func (k OpBox) Render(resultVar string, inputs map[string]string) (string, error) {
	if err := missingInputs(k.Tag(), k.RequiredInputs(), inputs); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = box(%s, %s, %s)", resultVar, inputs["width"], inputs["height"], inputs["depth"]), nil
}

// OpCylinder renders a cylinder.
type OpCylinder struct{}

func (OpCylinder) Tag() string              { return "cylinder" }
func (OpCylinder) RequiredInputs() []string { return []string{"radius", "height"} }
func (k OpCylinder) Render(resultVar string, inputs map[string]string) (string, error) {
	if err := missingInputs(k.Tag(), k.RequiredInputs(), inputs); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = cylinder(%s, %s)", resultVar, inputs["radius"], inputs["height"]), nil
}

// OpSphere renders a sphere.
type OpSphere struct{}

func (OpSphere) Tag() string              { return "sphere" }
func (OpSphere) RequiredInputs() []string { return []string{"radius"} }
func (k OpSphere) Render(resultVar string, inputs map[string]string) (string, error) {
	if err := missingInputs(k.Tag(), k.RequiredInputs(), inputs); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = sphere(%s)", resultVar, inputs["radius"]), nil
}

// OpExtrude renders an extrusion of a named profile operation.
type OpExtrude struct{}

func (OpExtrude) Tag() string              { return "extrude" }
func (OpExtrude) RequiredInputs() []string { return []string{"profile", "distance"} }
func (k OpExtrude) Render(resultVar string, inputs map[string]string) (string, error) {
	if err := missingInputs(k.Tag(), k.RequiredInputs(), inputs); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = extrude(%s, %s)", resultVar, inputs["profile"], inputs["distance"]), nil
}

// OpCut renders a boolean subtraction: base minus tool.
type OpCut struct{}

func (OpCut) Tag() string              { return "cut" }
func (OpCut) RequiredInputs() []string { return []string{"base", "tool"} }
func (k OpCut) Render(resultVar string, inputs map[string]string) (string, error) {
	if err := missingInputs(k.Tag(), k.RequiredInputs(), inputs); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = cut(%s, %s)", resultVar, inputs["base"], inputs["tool"]), nil
}

// OpUnion renders a boolean union of two bodies. The source's template
// dict omits this kind entirely; it is implemented here because both
// spec.md §3 and §4.2 name it explicitly.
type OpUnion struct{}

func (OpUnion) Tag() string              { return "union" }
func (OpUnion) RequiredInputs() []string { return []string{"a", "b"} }
func (k OpUnion) Render(resultVar string, inputs map[string]string) (string, error) {
	if err := missingInputs(k.Tag(), k.RequiredInputs(), inputs); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = union(%s, %s)", resultVar, inputs["a"], inputs["b"]), nil
}

// OpFillet renders a safe edge fillet: callers are expected to supply
// a pre-clamped radius parameter (the Planner's prompt instructs the
// model to compute one), never a raw selector-specific radius.
type OpFillet struct{}

func (OpFillet) Tag() string              { return "fillet" }
func (OpFillet) RequiredInputs() []string { return []string{"target", "radius"} }
func (k OpFillet) Render(resultVar string, inputs map[string]string) (string, error) {
	if err := missingInputs(k.Tag(), k.RequiredInputs(), inputs); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = fillet(%s, %s)", resultVar, inputs["target"], inputs["radius"]), nil
}

// OpChamfer renders an edge chamfer. Like OpUnion, the source's
// template dict omits this kind; implemented here per spec.md §3/§4.2.
type OpChamfer struct{}

func (OpChamfer) Tag() string              { return "chamfer" }
func (OpChamfer) RequiredInputs() []string { return []string{"target", "distance"} }
func (k OpChamfer) Render(resultVar string, inputs map[string]string) (string, error) {
	if err := missingInputs(k.Tag(), k.RequiredInputs(), inputs); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = chamfer(%s, %s)", resultVar, inputs["target"], inputs["distance"]), nil
}

// OpFreeScript carries an author-supplied script fragment verbatim.
// Any operation kind the Planner names that isn't one of the closed
// variants above decodes to this.
type OpFreeScript struct {
	Script string
}

func (OpFreeScript) Tag() string              { return "loaded" }
func (OpFreeScript) RequiredInputs() []string { return nil }
func (k OpFreeScript) Render(resultVar string, inputs map[string]string) (string, error) {
	script := strings.TrimRight(k.Script, "\n")
	if script == "" {
		return fmt.Sprintf("%s = None", resultVar), nil
	}
	return script, nil
}

// KindFromTag maps a Planner-supplied kind string to a closed variant,
// falling back to OpFreeScript(script) for anything unrecognised.
func KindFromTag(tag, script string) OperationKind {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "box":
		return OpBox{}
	case "cylinder":
		return OpCylinder{}
	case "sphere":
		return OpSphere{}
	case "extrude":
		return OpExtrude{}
	case "cut":
		return OpCut{}
	case "union":
		return OpUnion{}
	case "fillet":
		return OpFillet{}
	case "chamfer":
		return OpChamfer{}
	default:
		return OpFreeScript{Script: script}
	}
}
