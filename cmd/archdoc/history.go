package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"archdoc/internal/errors"
	"archdoc/internal/paths"
)

var (
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent documentation runs",
	Long: `Lists runs recorded in .archdoc/ledger.db, newest first.
With a run ID, prints the model snapshot stored for that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyFormat, "format", "human", "Output format (human, json, yaml)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	env, err := newEnv(".")
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err := os.Stat(paths.GetLedgerPath(env.root)); os.IsNotExist(err) {
		fmt.Println("No runs recorded yet.")
		return nil
	}
	store, err := env.ledger()
	if err != nil {
		return err
	}
	if store == nil {
		fmt.Println("The run ledger is disabled (ledger.enabled = false).")
		return nil
	}

	if len(args) == 1 {
		rec, err := store.Get(args[0])
		if err != nil {
			return errors.NewArchError(errors.LedgerFailed, "cannot read run", err)
		}
		if rec == nil {
			return fmt.Errorf("no run with id %s", args[0])
		}
		snapshot, err := store.Snapshot(rec.ID)
		if err != nil {
			return errors.NewArchError(errors.LedgerFailed, "cannot read snapshot", err)
		}
		if len(snapshot) == 0 {
			fmt.Println("No model snapshot stored for this run.")
			return nil
		}
		fmt.Println(string(snapshot))
		return nil
	}

	runs, err := store.List(historyLimit)
	if err != nil {
		return errors.NewArchError(errors.LedgerFailed, "cannot list runs", err)
	}
	output, err := FormatResponse(&HistoryResponseCLI{Runs: runs}, OutputFormat(historyFormat))
	if err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	fmt.Println(output)
	return nil
}
