package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/risp/internal/network"
	"github.com/nvandessel/risp/internal/processor"
	"github.com/nvandessel/risp/internal/simulation"
)

// processorFor builds the processor the config (or, when given, the
// experiment file) describes.
func processorFor(cmd *cobra.Command, args []string) (*processor.Processor, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	params := cfg.ProcessorParams()
	if len(args) == 1 {
		exp, err := simulation.LoadExperiment(args[0])
		if err != nil {
			return nil, err
		}
		params = exp.ParamsOr(params)
	}
	proc, err := processor.New(params, processor.WithLogger(newLogger(cmd, cfg)))
	if err != nil {
		return nil, fmt.Errorf("failed to create processor: %w", err)
	}
	return proc, nil
}

func newParamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "params [experiment.yaml]",
		Short: "Print the effective processor parameters",
		Long: `Print the processor parameters with every default filled in.

Without an argument the parameters come from the config file and the
environment; with one, parameters embedded in the experiment win.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := processorFor(cmd, args)
			if err != nil {
				return err
			}
			return printOut(cmd, struct {
				Name   string           `json:"name" yaml:"name"`
				Params processor.Params `json:"params" yaml:"params"`
			}{proc.Name(), proc.Params()})
		},
	}
}

func newPropsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "props [experiment.yaml]",
		Short: "Print the network schema and processor properties",
		Long: `Print the property schema a network must declare to be loaded and the
processor's input/output encoding properties.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := processorFor(cmd, args)
			if err != nil {
				return err
			}
			return printOut(cmd, struct {
				Name      string               `json:"name" yaml:"name"`
				Network   network.PropertyPack `json:"network" yaml:"network"`
				Processor processor.Properties `json:"processor" yaml:"processor"`
			}{proc.Name(), proc.NetworkProperties(), proc.ProcessorProperties()})
		},
	}
}
