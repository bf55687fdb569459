package cadtalk

import "fmt"

// ANSI colors & styles, lifted from the teacher's metrics display
// helper: title/section/kv closures over a handful of escape codes.
const (
	colorReset  = "\033[0m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	bold        = "\033[1m"
)

// DisplaySession prints a session's parameters, operations and edit
// history in a formatted, human-readable way. It is a helper for
// demos and debugging; cmd/cadtalk prints the session state with it.
func DisplaySession(view *SessionView, history []HistoryEntryView) {
	title := func(text string) {
		fmt.Printf("\n%s%s=== %s ===%s\n\n", bold, colorBlue, text, colorReset)
	}
	section := func(text string) {
		fmt.Printf("%s%s%s\n", bold, text, colorReset)
	}
	kv := func(label string, value any) {
		fmt.Printf("  %s%-18s%s: %v\n", colorCyan, label, colorReset, value)
	}

	title(fmt.Sprintf("Session %s", view.ID))
	kv("Created", view.CreatedAt.Format("2006-01-02 15:04:05"))
	kv("Turns", len(view.History))

	if len(view.Parameters) > 0 {
		section("\nParameters:")
		for _, p := range view.Parameters {
			kv(p.Name, fmt.Sprintf("%v %s", p.Value.Num, p.Units))
		}
	}

	if len(view.Operations) > 0 {
		section("\nOperations:")
		for _, o := range view.Operations {
			kv(o.Name, o.Script)
		}
	}

	if len(history) > 0 {
		section("\nEdit history:")
		for _, h := range history {
			marker := colorYellow
			if h.CanRollback {
				marker = colorGreen
			}
			fmt.Printf("  %s%s%s %s — %s\n", marker, h.Type, colorReset, h.Timestamp.Format("15:04:05"), h.Description)
		}
	}
}
