package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/muesli/termenv"

	"github.com/aretw0/rewind/pkg/domain"
)

// Renderer formats debugger notifications for a terminal.
type Renderer struct {
	profile termenv.Profile
}

// NewRenderer returns a Renderer for the color profile of stdout.
func NewRenderer() *Renderer {
	return NewRendererWithProfile(termenv.ColorProfile())
}

// NewRendererWithProfile returns a Renderer for profile. termenv.Ascii disables colors.
func NewRendererWithProfile(profile termenv.Profile) *Renderer {
	return &Renderer{profile: profile}
}

func (r *Renderer) paint(s, color string) string {
	return termenv.String(s).Foreground(r.profile.Color(color)).String()
}

var statusColors = map[domain.Status]string{
	domain.StatusRun:        "#60a5fa",
	domain.StatusDebug:      "#60a5fa",
	domain.StatusSyncState:  "#34d399",
	domain.StatusBreakpoint: "#f87171",
	domain.StatusWaiting:    "#fbbf24",
	domain.StatusStop:       "#9ca3af",
}

var levelColors = map[domain.LogLevel]string{
	domain.LogInfo:  "#e5e7eb",
	domain.LogWarn:  "#fbbf24",
	domain.LogError: "#f87171",
}

// Notification renders n as one or more lines. State notifications render as a summary.
func (r *Renderer) Notification(n domain.Notification) string {
	switch n.Type {
	case domain.NotificationStatus:
		return r.paint(fmt.Sprintf("[%s]", n.Status), statusColors[n.Status])
	case domain.NotificationConsole:
		if n.Console == nil {
			return ""
		}
		return r.paint(n.Console.Message, levelColors[n.Console.Level])
	case domain.NotificationState:
		return r.State(n.State)
	}
	return ""
}

// State renders a summary of s: position, threads, event queues and globals.
func (r *Renderer) State(s *domain.DebuggerState) string {
	if s == nil {
		return ""
	}
	var sb strings.Builder

	fmt.Fprintf(&sb, "state: %s", s.RunState)
	if s.CurrentLine != nil {
		fmt.Fprintf(&sb, "  at %s:%d", s.CurrentThread, *s.CurrentLine)
	}
	if s.ChosenEvent != nil {
		fmt.Fprintf(&sb, "  chosen: %s", r.paint(s.ChosenEvent.Name, "#34d399"))
	}
	sb.WriteString("\n")

	for _, t := range s.Threads {
		line := "-"
		if t.Line != nil {
			line = fmt.Sprint(*t.Line)
		}
		fmt.Fprintf(&sb, "  %-16s L%-4s", t.Name, line)
		writeEvents(&sb, "request", t.Requested)
		writeEvents(&sb, "wait", t.WaitFor)
		writeEvents(&sb, "block", t.Blocked)
		sb.WriteString("\n")
	}

	if len(s.Events.External) > 0 {
		sb.WriteString("  external:")
		for _, e := range s.Events.External {
			sb.WriteString(" " + e.String())
		}
		sb.WriteString("\n")
	}

	if len(s.GlobalEnv) > 0 {
		keys := make([]string, 0, len(s.GlobalEnv))
		for k := range s.GlobalEnv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("  globals:")
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%s", k, s.GlobalEnv[k])
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeEvents(sb *strings.Builder, label string, events []domain.Event) {
	if len(events) == 0 {
		return
	}
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Name)
	}
	fmt.Fprintf(sb, " %s[%s]", label, strings.Join(names, ","))
}
