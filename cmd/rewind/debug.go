package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/rewind/internal/cli"
)

var debugCmd = &cobra.Command{
	Use:   "debug <program.yaml>",
	Short: "Debug a program interactively",
	Long: `Loads a behavioral program and opens a debugging prompt.
Type help at the prompt for the list of commands.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		breakpoints, _ := cmd.Flags().GetIntSlice("break")
		skipBreakpoints, _ := cmd.Flags().GetBool("skip-breakpoints")
		skipSyncPoints, _ := cmd.Flags().GetBool("skip-sync-points")
		wait, _ := cmd.Flags().GetBool("wait")
		light, _ := cmd.Flags().GetBool("light")
		start, _ := cmd.Flags().GetBool("start")
		quiet, _ := cmd.Flags().GetBool("quiet")

		return cli.Execute(cmd.Context(), cli.RunOptions{
			ProgramPath:           args[0],
			Breakpoints:           breakpoints,
			SkipBreakpoints:       skipBreakpoints,
			SkipSyncPoints:        skipSyncPoints,
			WaitForExternalEvents: wait,
			Light:                 light,
			AutoStart:             start,
			Quiet:                 quiet,
			Logger:                logger,
			Input:                 cmd.InOrStdin(),
			Output:                cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.Flags().IntSliceP("break", "b", nil, "Source lines to break on")
	debugCmd.Flags().Bool("skip-breakpoints", false, "Start with breakpoints muted")
	debugCmd.Flags().Bool("skip-sync-points", false, "Run through sync points without stopping")
	debugCmd.Flags().Bool("wait", false, "Wait for external events instead of ending")
	debugCmd.Flags().Bool("light", false, "Run without breakpoints or state projections")
	debugCmd.Flags().Bool("start", false, "Start the program before the first prompt")
	debugCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
