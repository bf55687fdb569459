package planner

import (
	"fmt"
	"strings"
)

// Turn is one prior exchange, as surfaced into a prompt's conversation
// history section. Defined locally (rather than imported from
// internal/dialog) because dialog sits above planner in the dependency
// order; the orchestrator is what actually owns Turn history and
// projects it down into this shape.
type Turn struct {
	UserMessage  string
	ResponseText string
}

// ParamSummary is one parameter's current state, as it appears in a
// prompt's "current model state" section.
type ParamSummary struct {
	Name    string
	Literal string
	Units   string
}

// OpSummary is one operation's current state, as it appears in a
// prompt's "current model state" section.
type OpSummary struct {
	Name string
	Kind string
}

// ModelState is everything about the live PIG the prompt builder needs
// to describe to the model.
type ModelState struct {
	Parameters []ParamSummary
	Operations []OpSummary
}

// maxHistoryTurns bounds conversation history the same way
// _build_prompt keeps only the last 5 turns.
const maxHistoryTurns = 5

// dslCheatsheet is the embedded DSL's operation reference, the
// generalised replacement for _build_prompt's CadQuery API cheatsheet
// section — same role, rewritten for cadtalk's own function-call DSL
// rather than naming CadQuery.
const dslCheatsheet = `Available operations (assign each to a named result variable):
  box(width, height, depth)
  cylinder(radius, height)
  sphere(radius)
  extrude(profile, distance)
  cut(base, tool)
  union(a, b)
  fillet(target, radius)
  chamfer(target, distance)
A script ends with "result = <var>" naming its final body.`

const responseSchema = `Respond with a single JSON object, no prose outside it:
{
  "intention_type": "new_instruction" | "modification" | "question" | "meta_command" | "error",
  "response_text": "<natural-language reply to show the user>",
  "execution_plan": {
    "id": "<short id>",
    "description": "<what this plan does>",
    "script": "<complete DSL script, preferred>",
    "parameters": {"<name>": <value>, ...}
  } | null,
  "parameter_updates": {"<name>": <value>, ...} | null,
  "confidence": <0..1> | null,
  "requires_clarification": true | false,
  "clarification_questions": ["<question>", ...]
}`

const fewShotExamples = `Examples:
1. "make a box 10 by 20 by 5" ->
{"intention_type":"new_instruction","response_text":"Created a 10x20x5 box.","execution_plan":{"id":"p1","description":"box","script":"w = 10\nh = 20\nd = 5\nresult = box(w, h, d)","parameters":{"w":10,"h":20,"d":5}},"parameter_updates":null,"confidence":0.95,"requires_clarification":false,"clarification_questions":[]}
2. "make the height 30 instead" ->
{"intention_type":"modification","response_text":"Updated height to 30.","execution_plan":null,"parameter_updates":{"h":30},"confidence":0.9,"requires_clarification":false,"clarification_questions":[]}
3. "what is the current radius?" ->
{"intention_type":"question","response_text":"The current radius is 5.","execution_plan":null,"parameter_updates":null,"confidence":0.98,"requires_clarification":false,"clarification_questions":[]}
4. "round the edges a bit" ->
{"intention_type":"new_instruction","response_text":"I filleted the top edge with a conservative radius.","execution_plan":{"id":"p2","description":"fillet top edge","script":"fillet_r = 1\nresult = fillet(body, fillet_r)","parameters":{"fillet_r":1}},"parameter_updates":null,"confidence":0.6,"requires_clarification":false,"clarification_questions":[]}`

const criticalInstructions = `Critical instructions:
1. Always choose a fillet/chamfer radius no larger than a third of the smallest adjacent edge length; when the model has no way to know adjacent edge lengths, pick a conservative default and say so in response_text.
2. When a requested edge or face is ambiguous ("round the edges", "the hole"), resolve it to the single most recently created relevant feature rather than asking a clarifying question, unless no such feature exists.
3. Prefer emitting a complete "script" over "ast_nodes"; only use clarification_questions when the request is genuinely ambiguous about *what* to build, not *how*.
4. Every numeric parameter referenced in "script" must also appear in "parameters".
5. Never invent an operation name outside the DSL cheatsheet above.`

// BuildPrompt assembles the prompt for a new_instruction/modification
// turn, in the exact section order _build_prompt uses: role preamble,
// user request, conversation history, current model state, DSL
// cheatsheet, JSON schema, few-shot examples, numbered instructions.
func BuildPrompt(request string, history []Turn, state ModelState) string {
	var b strings.Builder

	b.WriteString("You are the planning core of a conversational parametric CAD assistant. ")
	b.WriteString("Translate the user's request into the JSON response described below.\n\n")

	fmt.Fprintf(&b, "User request: %s\n\n", request)

	if len(history) > 0 {
		b.WriteString("Conversation history:\n")
		start := 0
		if len(history) > maxHistoryTurns {
			start = len(history) - maxHistoryTurns
		}
		for _, t := range history[start:] {
			fmt.Fprintf(&b, "- user: %s\n  assistant: %s\n", t.UserMessage, t.ResponseText)
		}
		b.WriteString("\n")
	}

	b.WriteString("Current model state:\n")
	if len(state.Parameters) == 0 && len(state.Operations) == 0 {
		b.WriteString("(empty — no parameters or operations yet)\n")
	}
	for _, p := range state.Parameters {
		if p.Units != "" {
			fmt.Fprintf(&b, "  parameter %s = %s %s\n", p.Name, p.Literal, p.Units)
		} else {
			fmt.Fprintf(&b, "  parameter %s = %s\n", p.Name, p.Literal)
		}
	}
	for _, o := range state.Operations {
		fmt.Fprintf(&b, "  operation %s (%s)\n", o.Name, o.Kind)
	}
	b.WriteString("\n")

	b.WriteString(dslCheatsheet)
	b.WriteString("\n\n")
	b.WriteString(responseSchema)
	b.WriteString("\n\n")
	b.WriteString(fewShotExamples)
	b.WriteString("\n\n")
	b.WriteString(criticalInstructions)

	return b.String()
}

// BuildCorrectionPrompt assembles the error-correction prompt fed back
// to the model after an executor failure, per
// _build_error_correction_prompt: original plan, error, traceback,
// cheatsheet, Chain-of-Thought framing, and a catalogue of common
// mistakes.
func BuildCorrectionPrompt(originalScript, errorMessage, traceback string) string {
	var b strings.Builder

	b.WriteString("The following script failed to execute. Diagnose the cause step by step, then return a corrected response using the same JSON schema as before.\n\n")
	fmt.Fprintf(&b, "Original script:\n%s\n\n", originalScript)
	fmt.Fprintf(&b, "Error: %s\n", errorMessage)
	if traceback != "" {
		fmt.Fprintf(&b, "Traceback:\n%s\n", traceback)
	}
	b.WriteString("\n")
	b.WriteString(dslCheatsheet)
	b.WriteString("\n\n")
	b.WriteString(`Common error patterns:
- "unknown node" / "input referenced before definition": an operation referenced a variable before it was assigned — reorder the script.
- "missing required input": a closed operation kind's template argument was omitted — check the cheatsheet's exact parameter list.
- fillet/chamfer failing: the chosen radius/distance exceeds the target's smallest edge — shrink it.
`)
	b.WriteString("\n")
	b.WriteString(responseSchema)

	return b.String()
}
