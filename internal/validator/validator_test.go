package validator

import (
	"strings"
	"testing"

	"github.com/aretw0/rewind/pkg/bprog"
)

func TestValidateProgram(t *testing.T) {
	// Scenario A: hot-cold is clean
	def, err := bprog.LoadDefinition("../../pkg/bprog/testdata/hot-cold.yaml")
	if err != nil {
		t.Fatalf("LoadDefinition failed: %v", err)
	}
	findings, err := ValidateProgram(def)
	if err != nil {
		t.Errorf("Expected valid program, got: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("Expected no findings, got %v", findings)
	}

	// Scenario B: waiting for an event nobody requests
	broken := bprog.Definition{
		Name: "broken",
		Threads: []bprog.ThreadDef{
			{Name: "a", Steps: []bprog.StepDef{{Line: 1, WaitFor: []string{"ghost"}}}},
			{Name: "b", Steps: []bprog.StepDef{{Line: 1, Request: []string{"x"}, Block: []string{"y"}}}},
		},
	}
	findings, err = ValidateProgram(broken)
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !strings.Contains(err.Error(), `waits for "ghost"`) {
		t.Errorf("Unexpected error: %v", err)
	}
	if len(findings) != 3 {
		t.Errorf("Expected 3 findings (ghost, y, shared line), got %v", findings)
	}

	// Scenario C: external events downgrade the missing request
	broken.WaitForExternalEvents = true
	findings, err = ValidateProgram(broken)
	if err != nil {
		t.Errorf("Expected only warnings, got: %v", err)
	}
	for _, f := range findings {
		if f.Severity != SeverityWarning {
			t.Errorf("Expected warning, got %v", f)
		}
	}

	// Scenario D: structural errors come from the definition
	if _, err := ValidateProgram(bprog.Definition{}); err == nil {
		t.Error("Expected structural error")
	}
}
