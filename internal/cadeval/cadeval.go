// Package cadeval defines the contract the Sandboxed Executor expects
// of whatever process ultimately evaluates a script (spec.md §6:
// "Consumed — CAD evaluator", an opaque boundary), and ships a small
// in-process fixture evaluator implementing that contract for the
// embedded DSL cadtalk assembles scripts in. The fixture stands in for
// the real CAD kernel subprocess target in tests: it understands only
// the eight closed operation kinds (box, cylinder, sphere, extrude,
// cut, union, fillet, chamfer) and computes bbox/volume/centroid
// analytically rather than tessellating anything.
package cadeval

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/smilemakc/cadtalk/internal/model"
)

// Result is what a CAD evaluator reports for one script run, prior to
// being wrapped into a model.ExecutionResult by the sandbox.
type Result struct {
	BBox         model.BBox
	Volume       float64
	CenterOfMass [3]float64
}

// body is the fixture evaluator's notion of one named body: an
// axis-aligned box approximation, which is all the closed primitive
// set needs to support bbox/volume/centroid.
type body struct {
	min, max [3]float64
}

func (b body) volume() float64 {
	return (b.max[0] - b.min[0]) * (b.max[1] - b.min[1]) * (b.max[2] - b.min[2])
}

func (b body) centroid() [3]float64 {
	return [3]float64{
		(b.min[0] + b.max[0]) / 2,
		(b.min[1] + b.max[1]) / 2,
		(b.min[2] + b.max[2]) / 2,
	}
}

func boxBody(w, h, d float64) body {
	return body{min: [3]float64{-w / 2, -h / 2, -d / 2}, max: [3]float64{w / 2, h / 2, d / 2}}
}

func cylinderBody(r, h float64) body {
	return body{min: [3]float64{-r, -r, 0}, max: [3]float64{r, r, h}}
}

func sphereBody(r float64) body {
	return body{min: [3]float64{-r, -r, -r}, max: [3]float64{r, r, r}}
}

var assignLine = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=\s*([A-Za-z_][A-Za-z0-9_]*)\s*\(([^)]*)\)\s*$`)
var emitResultLine = regexp.MustCompile(`^\s*emit_result\(([A-Za-z_][A-Za-z0-9_]*)\)\s*$`)

// EvalScript parses a script assembled from the closed DSL (one
// "var = fn(args...)" statement per line; a "result = ..." assignment,
// or failing that an emit_result(<var>) line, selects the output; a bare
// "result" line is ignored) and computes its analytical result. It never
// executes the script as code.
func EvalScript(source string) (Result, error) {
	bodies := map[string]body{}
	numbers := map[string]float64{}
	var resultVar string

	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "result" {
			continue
		}
		// The sentinel epilogue line is meaningful only to a real
		// external evaluator binary, which uses it to trigger
		// serialising `result` to stdout. Here it only selects its
		// argument as the output when no "result = ..." assignment has
		// been seen yet.
		if m := emitResultLine.FindStringSubmatch(line); m != nil {
			if resultVar == "" {
				resultVar = m[1]
			}
			continue
		}

		m := assignLine.FindStringSubmatch(line)
		if m == nil {
			// A bare "name = <number>" parameter declaration, or a
			// "result = <existing var>" alias line.
			if parts := strings.SplitN(line, "=", 2); len(parts) == 2 {
				target := strings.TrimSpace(parts[0])
				src := strings.TrimSpace(parts[1])
				if f, err := strconv.ParseFloat(src, 64); err == nil {
					numbers[target] = f
					continue
				}
				if b, ok := bodies[src]; ok {
					bodies[target] = b
					if target == "result" {
						resultVar = target
					}
					continue
				}
			}
			return Result{}, fmt.Errorf("cadeval: cannot parse line %q", line)
		}

		target, fn, argsRaw := m[1], m[2], m[3]
		args, err := parseArgs(argsRaw, bodies, numbers)
		if err != nil {
			return Result{}, fmt.Errorf("cadeval: line %q: %w", line, err)
		}

		var b body
		switch fn {
		case "box":
			if len(args.nums) != 3 {
				return Result{}, fmt.Errorf("cadeval: box requires 3 numeric args, got %d", len(args.nums))
			}
			b = boxBody(args.nums[0], args.nums[1], args.nums[2])
		case "cylinder":
			if len(args.nums) != 2 {
				return Result{}, fmt.Errorf("cadeval: cylinder requires 2 numeric args, got %d", len(args.nums))
			}
			b = cylinderBody(args.nums[0], args.nums[1])
		case "sphere":
			if len(args.nums) != 1 {
				return Result{}, fmt.Errorf("cadeval: sphere requires 1 numeric arg, got %d", len(args.nums))
			}
			b = sphereBody(args.nums[0])
		case "extrude":
			if len(args.refs) != 1 || len(args.nums) != 1 {
				return Result{}, fmt.Errorf("cadeval: extrude requires a profile ref and a distance")
			}
			profile := args.refs[0]
			b = body{min: profile.min, max: [3]float64{profile.max[0], profile.max[1], profile.min[2] + args.nums[0]}}
		case "cut":
			if len(args.refs) != 2 {
				return Result{}, fmt.Errorf("cadeval: cut requires two body refs")
			}
			b = args.refs[0] // bbox of a cut is bounded by the base; volume approximated below
		case "union":
			if len(args.refs) != 2 {
				return Result{}, fmt.Errorf("cadeval: union requires two body refs")
			}
			b = unionBBox(args.refs[0], args.refs[1])
		case "fillet", "chamfer":
			if len(args.refs) != 1 {
				return Result{}, fmt.Errorf("cadeval: %s requires a target body ref", fn)
			}
			b = args.refs[0]
		default:
			return Result{}, fmt.Errorf("cadeval: unknown operation %q", fn)
		}

		bodies[target] = b
		if target == "result" {
			resultVar = target
		}
	}

	if resultVar == "" {
		if _, ok := bodies["result"]; ok {
			resultVar = "result"
		} else {
			return Result{}, fmt.Errorf("cadeval: script never assigns a result")
		}
	}

	final := bodies[resultVar]
	return Result{
		BBox:         model.BBox{Min: final.min, Max: final.max},
		Volume:       math.Abs(final.volume()),
		CenterOfMass: final.centroid(),
	}, nil
}

type parsedArgs struct {
	nums []float64
	refs []body
}

func parseArgs(raw string, bodies map[string]body, numbers map[string]float64) (parsedArgs, error) {
	var out parsedArgs
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	for _, part := range strings.Split(raw, ",") {
		tok := strings.TrimSpace(part)
		if b, ok := bodies[tok]; ok {
			out.refs = append(out.refs, b)
			continue
		}
		if f, ok := numbers[tok]; ok {
			out.nums = append(out.nums, f)
			continue
		}
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return out, fmt.Errorf("argument %q is neither a known body, number, nor declared parameter", tok)
		}
		out.nums = append(out.nums, f)
	}
	return out, nil
}

func unionBBox(a, b body) body {
	var out body
	for i := 0; i < 3; i++ {
		out.min[i] = math.Min(a.min[i], b.min[i])
		out.max[i] = math.Max(a.max[i], b.max[i])
	}
	return out
}
