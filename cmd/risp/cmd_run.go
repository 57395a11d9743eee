package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/risp/internal/logging"
	"github.com/nvandessel/risp/internal/processor"
	"github.com/nvandessel/risp/internal/recorder"
	"github.com/nvandessel/risp/internal/simulation"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <experiment.yaml>",
		Short: "Run an experiment",
		Long: `Load the experiment's network into a processor, execute its steps
and print the per-step output activity.

Parameters embedded in the experiment take precedence over the config file.

Examples:
  risp run relay.yaml
  risp run relay.yaml --json
  risp run relay.yaml --record .risp      # store the result in .risp/runs.db
  RISP_ENGINE=vectorized risp run relay.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			exp, err := simulation.LoadExperiment(args[0])
			if err != nil {
				return err
			}

			logger := newLogger(cmd, cfg)
			tracer := logging.NewTraceLogger(cfg.Logging.Dir, cfg.Logging.Level)
			defer tracer.Close()

			params := exp.ParamsOr(cfg.ProcessorParams())
			proc, err := processor.New(params, processor.WithLogger(logger), processor.WithTracer(tracer))
			if err != nil {
				return fmt.Errorf("failed to create processor: %w", err)
			}

			networkID, _ := cmd.Flags().GetInt("network-id")
			result, err := simulation.NewRunner(proc, logger).Run(cmd.Context(), exp, networkID)
			if err != nil {
				return fmt.Errorf("experiment %q: %w", exp.Name, err)
			}

			runID := ""
			dir, _ := cmd.Flags().GetString("record")
			if dir == "" && cfg.Recorder.Enabled {
				dir = cfg.Recorder.Dir
			}
			if dir != "" {
				rec, err := recorder.Open(dir)
				if err != nil {
					return err
				}
				defer rec.Close()
				runID, err = rec.RecordRun(cmd.Context(), result, proc.Params())
				if err != nil {
					return fmt.Errorf("failed to record run: %w", err)
				}
				logger.Info("run recorded", "run_id", runID, "db", rec.Path())
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return encode(cmd.OutOrStdout(), map[string]any{
					"run_id": runID,
					"result": result,
				}, true)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s on %s: %d steps, network time %g\n",
				valueOrDefault(result.Name, "(unnamed)"), result.Processor, len(result.Steps), result.Final().Time)
			for _, sr := range result.Steps {
				fmt.Fprint(out, simulation.FormatStepDebug(sr))
			}
			if runID != "" {
				fmt.Fprintf(out, "Recorded as %s\n", runID)
			}
			return nil
		},
	}

	cmd.Flags().Int("network-id", 0, "Network id to load the experiment under")
	cmd.Flags().String("record", "", "Record the result in <dir>/runs.db")
	return cmd
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
