package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/rewind/internal/validator"
	"github.com/aretw0/rewind/pkg/bprog"
)

var validateCmd = &cobra.Command{
	Use:   "validate <program.yaml>...",
	Short: "Check programs for consistency",
	Long:  `Reports structural errors, events waited for but never requested, and source lines shared by threads.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			def, err := bprog.LoadDefinition(path)
			if err != nil {
				fmt.Fprintf(out, "%s: %v\n", path, err)
				failed++
				continue
			}
			findings, err := validator.ValidateProgram(def)
			for _, f := range findings {
				if f.Severity == validator.SeverityWarning {
					fmt.Fprintf(out, "%s: %s\n", path, f)
				}
			}
			if err != nil {
				fmt.Fprintf(out, "%s: %v\n", path, err)
				failed++
				continue
			}
			fmt.Fprintf(out, "%s: ok\n", path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d programs failed validation", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
