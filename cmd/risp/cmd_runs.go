package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/risp/internal/recorder"
	"github.com/nvandessel/risp/internal/simulation"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
		Long: `List, show and delete runs stored by 'risp run --record'.

Examples:
  risp runs list
  risp runs show 1b4e28ba-2fa1-11d2-883f-0016d3cca427
  risp runs delete 1b4e28ba-2fa1-11d2-883f-0016d3cca427 --dir ./out`,
	}
	cmd.PersistentFlags().String("dir", "", "Recorder directory (default recorder.dir from config)")

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsDeleteCmd(),
	)
	return cmd
}

// openRecorder opens the recorder named by --dir or the config.
func openRecorder(cmd *cobra.Command) (*recorder.Recorder, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		dir = cfg.Recorder.Dir
	}
	return recorder.Open(dir)
}

func newRunsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := openRecorder(cmd)
			if err != nil {
				return err
			}
			defer rec.Close()

			runs, err := rec.ListRuns(cmd.Context())
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				if runs == nil {
					runs = []recorder.RunSummary{}
				}
				return encode(cmd.OutOrStdout(), runs, true)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				fmt.Fprintln(out, "\nUse 'risp run <experiment.yaml> --record <dir>' to record one.")
				return nil
			}
			fmt.Fprintf(out, "Recorded runs (%d):\n\n", len(runs))
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %-20s %-5s steps=%d time=%g fires=%d  %s\n",
					r.ID, valueOrDefault(r.Name, "(unnamed)"), r.Processor, r.Steps, r.NetworkTime,
					r.OutputFires, r.StartedAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := openRecorder(cmd)
			if err != nil {
				return err
			}
			defer rec.Close()

			result, params, err := rec.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return encode(cmd.OutOrStdout(), map[string]any{
					"run_id": args[0],
					"params": params,
					"result": result,
				}, true)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s: %s on %s\n", args[0], valueOrDefault(result.Name, "(unnamed)"), result.Processor)
			fmt.Fprintf(out, "Started %s, took %s\n\n", result.StartedAt.Local().Format(time.DateTime), result.Elapsed)
			for _, sr := range result.Steps {
				fmt.Fprint(out, simulation.FormatStepDebug(sr))
			}
			return nil
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := openRecorder(cmd)
			if err != nil {
				return err
			}
			defer rec.Close()

			if err := rec.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}
