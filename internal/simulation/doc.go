// Package simulation drives a processor through a scripted experiment and
// captures what every step produced.
//
// An Experiment names a topology, the processor parameters to run it with,
// and a list of steps. Each step applies spikes, toggles event tracking and
// advances the clock; the Runner snapshots outputs and neurons after every
// step so assertions and the run recorder see the same data.
//
// Experiments are plain YAML, so the CLI and the tests share one format:
//
//	name: relay
//	network:
//	  nodes:
//	    - {id: 0, threshold: 1}
//	    - {id: 1, threshold: 1}
//	  edges:
//	    - {from: 0, to: 1, weight: 1, delay: 3}
//	  inputs: [0]
//	  outputs: [1]
//	steps:
//	  - spikes: [{id: 0, time: 0, value: 1}]
//	    run: 5
//
// Usage:
//
//	exp, _ := simulation.LoadExperiment("relay.yaml")
//	proc, _ := processor.New(exp.ParamsOr(defaults))
//	result, err := simulation.NewRunner(proc).Run(ctx, exp, 0)
//	simulation.AssertOutputFiresAt(t, result, 0, 0, 3)
package simulation
