package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/nvandessel/risp/internal/logging"
	"github.com/nvandessel/risp/internal/processor"
)

// Runner executes experiments against a processor.
type Runner struct {
	proc   *processor.Processor
	logger *slog.Logger
}

// NewRunner creates a runner for proc. A nil logger discards output.
func NewRunner(proc *processor.Processor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{proc: proc, logger: logger}
}

// Run loads the experiment's network under id, replacing whatever was
// there, executes every step and returns the collected snapshots. The
// network stays loaded afterwards so callers can keep inspecting it.
func (r *Runner) Run(ctx context.Context, exp *Experiment, id int) (*Result, error) {
	if err := exp.Validate(); err != nil {
		return nil, err
	}

	// Phase 1: Build and load the topology.
	net, err := exp.Network.Build(r.proc.NetworkProperties())
	if err != nil {
		return nil, fmt.Errorf("building network: %w", err)
	}
	if ok, err := r.proc.LoadNetwork(net, id); !ok {
		return nil, fmt.Errorf("loading network: %w", err)
	}

	nodeIDs := make([]uint32, 0, len(exp.Network.Nodes))
	for _, n := range exp.Network.Nodes {
		nodeIDs = append(nodeIDs, n.ID)
	}
	slices.Sort(nodeIDs)

	result := &Result{
		Name:      exp.Name,
		Processor: r.proc.Name(),
		NetworkID: id,
		NodeIDs:   nodeIDs,
		Outputs:   slices.Clone(exp.Network.Outputs),
		StartedAt: time.Now().UTC(),
	}

	// Phase 2: Run steps.
	for i, step := range exp.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr, err := r.runStep(i, step, id)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		result.Steps = append(result.Steps, sr)
		r.logger.Debug("step completed", "experiment", exp.Name, "step", i, "label", step.Label,
			"time", sr.Time, "output_counts", sr.OutputCounts)
	}
	result.Elapsed = time.Since(result.StartedAt)

	r.logger.Info("experiment completed", "experiment", exp.Name, "processor", result.Processor,
		"steps", len(result.Steps), "network_time", result.Final().Time, "elapsed", result.Elapsed)
	return result, nil
}

// runStep executes a single step and snapshots the network afterwards.
func (r *Runner) runStep(index int, step Step, id int) (StepResult, error) {
	if step.Clear {
		if err := r.proc.ClearActivity(id); err != nil {
			return StepResult{}, err
		}
	}

	for _, o := range step.TrackOutputs {
		ok, err := r.proc.TrackOutputEvents(o, true, id)
		if err != nil {
			return StepResult{}, err
		}
		if !ok {
			r.logger.Warn("output events not tracked", "output", o, "processor", r.proc.Name())
		}
	}
	for _, n := range step.TrackNeurons {
		ok, err := r.proc.TrackNeuronEvents(n, true, id)
		if err != nil {
			return StepResult{}, err
		}
		if !ok {
			r.logger.Warn("neuron events not tracked", "node", n, "processor", r.proc.Name())
		}
	}

	if len(step.Spikes) > 0 {
		if err := r.proc.ApplySpikes(step.Spikes, !step.RawSpikes, id); err != nil {
			return StepResult{}, err
		}
	}

	start, err := r.proc.Time(id)
	if err != nil {
		return StepResult{}, err
	}
	if err := r.proc.Run(step.Run, id); err != nil {
		return StepResult{}, err
	}

	sr := StepResult{Index: index, Label: step.Label, Start: start, Duration: step.Run}
	if err := r.snapshot(&sr, id); err != nil {
		return StepResult{}, err
	}
	return sr, nil
}

// snapshot fills sr with the network's state. Fire and accumulate totals
// are reset by the read, so each step reports its own.
func (r *Runner) snapshot(sr *StepResult, id int) error {
	var err error
	if sr.Time, err = r.proc.Time(id); err != nil {
		return err
	}
	if sr.OutputCounts, err = r.proc.OutputCounts(id); err != nil {
		return err
	}
	if sr.OutputLastFires, err = r.proc.OutputLastFires(id); err != nil {
		return err
	}
	if sr.OutputVectors, err = r.proc.OutputVectors(id); err != nil {
		return err
	}
	if sr.NeuronCounts, err = r.proc.NeuronCounts(id); err != nil {
		return err
	}
	if sr.NeuronLastFires, err = r.proc.NeuronLastFires(id); err != nil {
		return err
	}
	if sr.NeuronCharges, err = r.proc.NeuronCharges(id); err != nil {
		return err
	}
	if sr.NeuronVectors, err = r.proc.NeuronVectors(id); err != nil {
		return err
	}
	if sr.TotalFires, err = r.proc.TotalNeuronCounts(id); err != nil {
		return err
	}
	if sr.TotalAccumulates, err = r.proc.TotalNeuronAccumulates(id); err != nil {
		return err
	}
	return nil
}

// FormatStepDebug returns a debug string for a step result.
func FormatStepDebug(sr StepResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d", sr.Index)
	if sr.Label != "" {
		fmt.Fprintf(&b, " (%s)", sr.Label)
	}
	fmt.Fprintf(&b, ": start=%g duration=%g time=%g fires=%d accumulates=%d\n",
		sr.Start, sr.Duration, sr.Time, sr.TotalFires, sr.TotalAccumulates)
	for o, c := range sr.OutputCounts {
		fmt.Fprintf(&b, "  output %d: count=%d last_fire=%g\n", o, c, sr.OutputLastFires[o])
	}
	for i, c := range sr.NeuronCharges {
		fmt.Fprintf(&b, "  neuron %d: charge=%g", i, c)
		if i < len(sr.NeuronCounts) {
			fmt.Fprintf(&b, " count=%d", sr.NeuronCounts[i])
		}
		b.WriteByte('\n')
	}
	return b.String()
}
