package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"archdoc/internal/errors"
	"archdoc/internal/pipeline"
)

var modelFormat string

var modelCmd = &cobra.Command{
	Use:   "model [path]",
	Short: "Print the architecture model",
	Long: `Assembles the architecture model for path without writing any files and
prints its containers, external systems and relationships.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModel,
}

func init() {
	modelCmd.Flags().StringVar(&modelFormat, "format", "human", "Output format (human, json, yaml)")
	rootCmd.AddCommand(modelCmd)
}

func runModel(cmd *cobra.Command, args []string) error {
	target := targetArg(args)
	env, err := newEnv(target)
	if err != nil {
		return err
	}
	defer env.Close()

	p, err := pipeline.New(env.cfg, pipeline.Deps{}, env.logger)
	if err != nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()

	run, err := p.Model(ctx, target)
	if err != nil {
		return err
	}

	output, err := FormatResponse(&ModelResponseCLI{
		Model:    run.Model.Snapshot(),
		Warnings: run.Warnings,
	}, OutputFormat(modelFormat))
	if err != nil {
		return errors.NewArchError(errors.InternalError, "cannot format output", err)
	}
	fmt.Println(output)
	return nil
}
