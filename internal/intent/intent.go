// Package intent classifies a raw user message into one of the four
// intention kinds the Orchestrator routes on, and extracts the
// structured context (parameter/value pairs, geometry/dimension pairs)
// each kind needs. Grounded on
// original_source/src/core/dialog_manager.py's _classify_intention,
// _extract_modification_context and _extract_creation_context — the
// Portuguese regex families there are translated to English vocabulary
// rather than transliterated, per spec.md §4.4.
package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind is one of the four intention classes, checked in this priority
// order against the message: meta-command, question, modification,
// then new-instruction as the default.
type Kind string

const (
	KindMetaCommand    Kind = "meta_command"
	KindQuestion       Kind = "question"
	KindModification   Kind = "modification"
	KindNewInstruction Kind = "new_instruction"
)

var metaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(undo|redo)\b`),
	regexp.MustCompile(`(?i)\b(start over|reset|clear (the )?(model|scene))\b`),
	regexp.MustCompile(`(?i)\b(save|checkpoint|rollback)\b`),
	regexp.MustCompile(`(?i)\bshow (me )?(the )?history\b`),
}

var questionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(what|what's|how|why|is|are|can|could|does|do)\b`),
	regexp.MustCompile(`(?i)\?\s*$`),
	regexp.MustCompile(`(?i)\b(current|existing) (value|radius|height|width|depth|diameter|length|thickness)\b`),
}

var modificationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(change|set|update|make|adjust|increase|decrease|reduce)\b.*\b(to|by)\b`),
	regexp.MustCompile(`(?i)\binstead\b`),
	regexp.MustCompile(`(?i)\b(bigger|smaller|wider|narrower|taller|shorter|thicker|thinner)\b`),
}

// Classify returns the intention kind for message, checking the
// pattern families in priority order: a meta-command always wins over
// a question, which always wins over a modification; anything
// unmatched defaults to new_instruction, exactly as
// _classify_intention's fall-through does.
func Classify(message string) Kind {
	for _, re := range metaPatterns {
		if re.MatchString(message) {
			return KindMetaCommand
		}
	}
	for _, re := range questionPatterns {
		if re.MatchString(message) {
			return KindQuestion
		}
	}
	for _, re := range modificationPatterns {
		if re.MatchString(message) {
			return KindModification
		}
	}
	return KindNewInstruction
}

// ModificationContext is the parameter/value pair extracted from a
// modification-classified message, when present.
type ModificationContext struct {
	Parameter string
	Value     float64
	HasValue  bool
}

// parameterVocabulary maps the English parameter words the resolver
// recognises to the PIG parameter name family they refer to, mirroring
// _extract_modification_context's altura/largura/espessura/diametro/
// raio/comprimento dictionary translated to English.
var parameterVocabulary = map[string]string{
	"height":    "height",
	"width":     "width",
	"thickness": "thickness",
	"diameter":  "diameter",
	"radius":    "radius",
	"length":    "length",
	"depth":     "depth",
}

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ExtractModificationContext finds the first recognised parameter word
// and the first numeric literal in message.
func ExtractModificationContext(message string) ModificationContext {
	lower := strings.ToLower(message)
	var ctx ModificationContext
	best := -1
	for word, param := range parameterVocabulary {
		if i := strings.Index(lower, word); i >= 0 && (best < 0 || i < best) {
			best = i
			ctx.Parameter = param
		}
	}
	if m := numberPattern.FindString(message); m != "" {
		if f, err := strconv.ParseFloat(m, 64); err == nil {
			ctx.Value = f
			ctx.HasValue = true
		}
	}
	return ctx
}

// CreationContext is the geometry kind and any dimensions extracted
// from a new_instruction-classified message.
type CreationContext struct {
	Geometry   string
	Dimensions map[string]float64
}

var geometryVocabulary = map[string]string{
	"box":      "box",
	"cube":     "box",
	"cylinder": "cylinder",
	"sphere":   "sphere",
	"ball":     "sphere",
	"flange":   "flange",
	"hole":     "hole",
	"slot":     "slot",
}

var dimensionPatterns = map[string]*regexp.Regexp{
	"diameter":  regexp.MustCompile(`(?i)diameter\s*(?:of|=|:)?\s*(\d+(?:\.\d+)?)`),
	"height":    regexp.MustCompile(`(?i)height\s*(?:of|=|:)?\s*(\d+(?:\.\d+)?)`),
	"thickness": regexp.MustCompile(`(?i)thickness\s*(?:of|=|:)?\s*(\d+(?:\.\d+)?)`),
	"width":     regexp.MustCompile(`(?i)width\s*(?:of|=|:)?\s*(\d+(?:\.\d+)?)`),
	"depth":     regexp.MustCompile(`(?i)depth\s*(?:of|=|:)?\s*(\d+(?:\.\d+)?)`),
	"radius":    regexp.MustCompile(`(?i)radius\s*(?:of|=|:)?\s*(\d+(?:\.\d+)?)`),
	"length":    regexp.MustCompile(`(?i)length\s*(?:of|=|:)?\s*(\d+(?:\.\d+)?)`),
}

// ExtractCreationContext finds the first recognised geometry word and
// every "<dimension> of <number>"-shaped phrase in message.
func ExtractCreationContext(message string) CreationContext {
	lower := strings.ToLower(message)
	ctx := CreationContext{Dimensions: map[string]float64{}}
	best := -1
	for word, geom := range geometryVocabulary {
		if i := strings.Index(lower, word); i >= 0 && (best < 0 || i < best) {
			best = i
			ctx.Geometry = geom
		}
	}
	for name, re := range dimensionPatterns {
		if m := re.FindStringSubmatch(message); m != nil {
			if f, err := strconv.ParseFloat(m[1], 64); err == nil {
				ctx.Dimensions[name] = f
			}
		}
	}
	return ctx
}
