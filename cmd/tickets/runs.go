package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tickets/internal/report"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded pipeline runs",
	Long:  "Lists the most recent pipeline runs from the run store configured by STORE_DRIVER.",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list (0 for all)")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	st, err := openStore(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	return report.NewConsole(cmd.OutOrStdout()).Runs(runs)
}
