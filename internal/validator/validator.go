package validator

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/aretw0/rewind/pkg/bprog"
)

// Severity ranks a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one problem spotted in a program definition.
type Finding struct {
	Severity Severity
	Thread   string
	Line     int
	Message  string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s:%d: %s", f.Severity, f.Thread, f.Line, f.Message)
}

// Lint looks for events and lines that cannot behave as written.
// A thread waiting for an event that no thread requests can only be released by an
// external event, so it is an error unless the program waits for external events.
func Lint(def bprog.Definition) []Finding {
	requested := make(map[string]bool)
	owners := make(map[int][]string)
	for _, t := range def.Threads {
		for _, s := range t.Steps {
			for _, e := range s.Request {
				requested[e] = true
			}
			owners[s.Line] = append(owners[s.Line], t.Name)
			for _, x := range s.Exec {
				owners[x.Line] = append(owners[x.Line], t.Name)
			}
		}
	}

	var findings []Finding
	for _, t := range def.Threads {
		for _, s := range t.Steps {
			for _, e := range s.WaitFor {
				if requested[e] {
					continue
				}
				sev := SeverityError
				msg := fmt.Sprintf("waits for %q, which no thread requests", e)
				if def.WaitForExternalEvents {
					sev = SeverityWarning
					msg += "; it must arrive as an external event"
				}
				findings = append(findings, Finding{Severity: sev, Thread: t.Name, Line: s.Line, Message: msg})
			}
			for _, e := range s.Block {
				if !requested[e] {
					findings = append(findings, Finding{
						Severity: SeverityWarning,
						Thread:   t.Name,
						Line:     s.Line,
						Message:  fmt.Sprintf("blocks %q, which no thread requests", e),
					})
				}
			}
		}
	}

	lines := make([]int, 0, len(owners))
	for line := range owners {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	for _, line := range lines {
		sorted := slices.Clone(owners[line])
		slices.Sort(sorted)
		threads := slices.Compact(sorted)
		if len(threads) > 1 {
			findings = append(findings, Finding{
				Severity: SeverityWarning,
				Thread:   threads[0],
				Line:     line,
				Message:  fmt.Sprintf("line shared by threads %s", strings.Join(threads, ", ")),
			})
		}
	}
	return findings
}

// ValidateProgram checks the structure of def and fails on any error finding.
func ValidateProgram(def bprog.Definition) ([]Finding, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	findings := Lint(def)
	var errors []string
	for _, f := range findings {
		if f.Severity == SeverityError {
			errors = append(errors, f.String())
		}
	}
	if len(errors) > 0 {
		return findings, fmt.Errorf("found %d errors:\n- %s", len(errors), strings.Join(errors, "\n- "))
	}
	return findings, nil
}
