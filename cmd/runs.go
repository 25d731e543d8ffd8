package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/pe-score/internal/model"
	"github.com/sells-group/pe-score/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect scoring run history",
	Long:  "Commands for listing and viewing scoring runs and the blocks that failed in them.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scoring runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		modelPath, _ := cmd.Flags().GetString("model")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Model:  modelPath,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs failures --

var runsFailuresCmd = &cobra.Command{
	Use:   "failures <run-id>",
	Short: "List the blocks that failed in a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		all, _ := cmd.Flags().GetBool("all")
		fails, err := st.ListBlockFailures(ctx, args[0], all)
		if err != nil {
			return eris.Wrap(err, "runs failures")
		}

		if len(fails) == 0 {
			fmt.Fprintln(os.Stderr, "No block failures.")
			return nil
		}

		formatFailures(os.Stdout, fails)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, running, complete, partial, failed)")
	runsListCmd.Flags().String("model", "", "filter by model file path")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsFailuresCmd.Flags().Bool("all", false, "include resolved failures")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsFailuresCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMODEL\tSTATUS\tGRID\tFAILED\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t----\t------\t-------\t--------")

	for _, r := range runs {
		grid, failed := "", ""
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()
		if s := r.Summary; s != nil {
			grid = fmt.Sprintf("%dx%d", s.Rows, s.Cols)
			failed = fmt.Sprintf("%d/%d", s.FailedBlocks, s.Blocks)
			dur = (time.Duration(s.DurationMs) * time.Millisecond).Round(time.Millisecond).String()
		}

		modelPath := r.Params.Model
		if len(modelPath) > 30 {
			modelPath = "..." + modelPath[len(modelPath)-27:]
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			modelPath,
			r.Status,
			grid,
			failed,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatFailures writes a tabular list of block failures to w.
func formatFailures(out io.Writer, fails []model.BlockFailure) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tBLOCK\tROWS\tTYPE\tATTEMPTS\tRESOLVED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t-----\t----\t----\t--------\t--------\t-----")

	for _, f := range fails {
		msg := f.Error
		if len(msg) > 60 {
			msg = msg[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d-%d\t%s\t%d\t%t\t%s\n",
			truncateID(f.ID),
			f.Block,
			f.Row0,
			f.Row0+f.Rows-1,
			f.ErrorType,
			f.Attempts,
			f.Resolved,
			msg,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
