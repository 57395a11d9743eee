package simulation

import "time"

// StepResult captures the network state after one step. Last-fire times are
// relative to Start, the network time when the step's run began; -1 means
// no fire during the step.
type StepResult struct {
	Index    int     `json:"index" yaml:"index"`
	Label    string  `json:"label,omitempty" yaml:"label,omitempty"`
	Start    float64 `json:"start" yaml:"start"`
	Duration float64 `json:"duration" yaml:"duration"`
	Time     float64 `json:"time" yaml:"time"`

	OutputCounts    []int       `json:"output_counts" yaml:"output_counts"`
	OutputLastFires []float64   `json:"output_last_fires" yaml:"output_last_fires"`
	OutputVectors   [][]float64 `json:"output_vectors,omitempty" yaml:"output_vectors,omitempty"`

	// Neuron slices follow ascending node id (Result.NodeIDs).
	NeuronCounts    []int       `json:"neuron_counts" yaml:"neuron_counts"`
	NeuronLastFires []float64   `json:"neuron_last_fires" yaml:"neuron_last_fires"`
	NeuronCharges   []float64   `json:"neuron_charges" yaml:"neuron_charges"`
	NeuronVectors   [][]float64 `json:"neuron_vectors,omitempty" yaml:"neuron_vectors,omitempty"`

	// TotalFires and TotalAccumulates are -1 on engines that keep no totals.
	TotalFires       int64 `json:"total_fires" yaml:"total_fires"`
	TotalAccumulates int64 `json:"total_accumulates" yaml:"total_accumulates"`
}

// Result captures every step of an experiment.
type Result struct {
	Name      string        `json:"name" yaml:"name"`
	Processor string        `json:"processor" yaml:"processor"`
	NetworkID int           `json:"network_id" yaml:"network_id"`
	NodeIDs   []uint32      `json:"node_ids" yaml:"node_ids"`
	Outputs   []uint32      `json:"outputs" yaml:"outputs"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
	Steps     []StepResult  `json:"steps" yaml:"steps"`
}

// Final returns the last step, or a zero StepResult when there is none.
func (r *Result) Final() StepResult {
	if len(r.Steps) == 0 {
		return StepResult{}
	}
	return r.Steps[len(r.Steps)-1]
}

// OutputFireTime returns the global timestep at which output last fired
// during step, or -1 when it did not fire.
func (sr StepResult) OutputFireTime(output int) float64 {
	if output < 0 || output >= len(sr.OutputLastFires) || sr.OutputLastFires[output] < 0 {
		return -1
	}
	return sr.Start + sr.OutputLastFires[output]
}

// TotalOutputFires sums output fire counts over all steps.
func (r *Result) TotalOutputFires() int {
	total := 0
	for _, sr := range r.Steps {
		for _, c := range sr.OutputCounts {
			total += c
		}
	}
	return total
}
