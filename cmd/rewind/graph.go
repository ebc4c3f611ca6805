package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/rewind/internal/presentation/graph"
	"github.com/aretw0/rewind/pkg/bprog"
)

var graphCmd = &cobra.Command{
	Use:   "graph <program.yaml>",
	Short: "Export the thread graph of a program",
	Long: `Outputs a Mermaid diagram (graph TD) with one subgraph per b-thread.
With --session, the current lines and armed breakpoints of a stored session are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := bprog.LoadDefinition(args[0])
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if id, _ := cmd.Flags().GetString("session"); id != "" {
			b, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer b.close()
			record, err := b.store.Load(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("error loading session '%s': %w", id, err)
			}
			overlay = graph.OverlayFrom(record.State)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(def, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Stored session to overlay")
}
