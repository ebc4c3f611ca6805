package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/rewind/pkg/bprog"
	"github.com/aretw0/rewind/pkg/domain"
)

// Overlay contains debugger state to highlight on the graph.
type Overlay struct {
	// Threads holds the current sync statement of every thread.
	Threads []domain.ThreadInfo
	// Breakpoints holds one armed flag per source line.
	Breakpoints []bool
}

// OverlayFrom builds an Overlay out of a debugger state.
func OverlayFrom(state *domain.DebuggerState) *Overlay {
	if state == nil {
		return nil
	}
	return &Overlay{Threads: state.Threads, Breakpoints: state.Breakpoints}
}

// GenerateMermaid produces a Mermaid flowchart with one subgraph per b-thread.
// Shapes follow the sync statement of each step:
// - Request: ([Stadium])
// - Wait only: [/Parallelogram/]
// - Block only: {{Hexagon}}
// - Plain step: [Rectangle]
// Looping threads get a dotted edge back to their first step.
func GenerateMermaid(def bprog.Definition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, thread := range def.Threads {
		tid := sanitizeMermaidID(thread.Name)
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", tid, thread.Name)

		for i, step := range thread.Steps {
			id := stepID(thread.Name, i)
			opener, closer := "[", "]"
			switch {
			case len(step.Request) > 0:
				opener, closer = "([", "])"
			case len(step.WaitFor) > 0:
				opener, closer = "[/", "/]"
			case len(step.Block) > 0:
				opener, closer = "{{", "}}"
			}
			fmt.Fprintf(&sb, "        %s%s\"%s\"%s\n", id, opener, stepLabel(step), closer)
			if i > 0 {
				fmt.Fprintf(&sb, "        %s --> %s\n", stepID(thread.Name, i-1), id)
			}
		}
		if thread.Loop && len(thread.Steps) > 1 {
			fmt.Fprintf(&sb, "        %s -.-> %s\n", stepID(thread.Name, len(thread.Steps)-1), stepID(thread.Name, 0))
		}
		sb.WriteString("    end\n")
	}

	if overlay != nil {
		writeOverlay(&sb, def, overlay)
	}
	return sb.String()
}

func writeOverlay(sb *strings.Builder, def bprog.Definition, overlay *Overlay) {
	sb.WriteString("\n    %% Overlay Styles\n")
	// Force black text (color:#000) for high-contrast on light backgrounds.
	sb.WriteString("    classDef breakpoint fill:#ffebee,stroke:#c62828,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

	current := make(map[string]int, len(overlay.Threads))
	for _, t := range overlay.Threads {
		if t.Line != nil {
			current[t.Name] = *t.Line
		}
	}

	for _, thread := range def.Threads {
		line, ok := current[thread.Name]
		for i, step := range thread.Steps {
			id := stepID(thread.Name, i)
			if armed(overlay.Breakpoints, step) {
				fmt.Fprintf(sb, "    class %s breakpoint;\n", id)
			}
			if ok && step.Line == line {
				fmt.Fprintf(sb, "    class %s current;\n", id)
			}
		}
	}
}

func armed(breakpoints []bool, step bprog.StepDef) bool {
	if step.Line > 0 && step.Line < len(breakpoints) && breakpoints[step.Line] {
		return true
	}
	for _, e := range step.Exec {
		if e.Line > 0 && e.Line < len(breakpoints) && breakpoints[e.Line] {
			return true
		}
	}
	return false
}

func stepLabel(step bprog.StepDef) string {
	parts := []string{fmt.Sprintf("L%d", step.Line)}
	if len(step.Request) > 0 {
		parts = append(parts, "request: "+strings.Join(step.Request, ", "))
	}
	if len(step.WaitFor) > 0 {
		parts = append(parts, "wait: "+strings.Join(step.WaitFor, ", "))
	}
	if len(step.Block) > 0 {
		parts = append(parts, "block: "+strings.Join(step.Block, ", "))
	}
	if step.Assert != "" {
		parts = append(parts, "assert: "+step.Assert)
	}
	return strings.ReplaceAll(strings.Join(parts, " <br/> "), "\"", "'")
}

func stepID(thread string, i int) string {
	return fmt.Sprintf("%s_%d", sanitizeMermaidID(thread), i)
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
