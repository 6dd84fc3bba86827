package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"archdoc/internal/errors"
	"archdoc/internal/paths"
	"archdoc/internal/pipeline"
	"archdoc/internal/storage"
)

var (
	generateForce    bool
	generateOut      string
	generateDoc      string
	generateFormat   string
	generateNoRender bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [path]",
	Short: "Generate architecture diagrams",
	Long: `Reads the solution, manifest or directory at path (default: current directory),
writes the system context and container diagrams, renders them when a toolchain
is available and refreshes the diagrams section of the architecture document.

Rendering falls back from the local PlantUML toolchain to source-only output;
a missing toolchain is reported as a warning, not a failure.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().BoolVarP(&generateForce, "force", "f", false, "Re-render images even when they are current")
	generateCmd.Flags().StringVar(&generateOut, "out", "", "Diagram output directory (default from config: docs/architecture)")
	generateCmd.Flags().StringVar(&generateDoc, "doc", "", "Architecture document to update (default from config: docs/ARCHITECTURE.md)")
	generateCmd.Flags().StringVar(&generateFormat, "format", "human", "Output format (human, json)")
	generateCmd.Flags().BoolVar(&generateNoRender, "no-render", false, "Write diagram descriptions only")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	target := targetArg(args)
	env, err := newEnv(target)
	if err != nil {
		return err
	}
	defer env.Close()

	deps := pipeline.Deps{}
	if deps.Renderer, err = env.renderer(); err != nil {
		return err
	}
	if deps.Mirror, err = env.mirror(); err != nil {
		return err
	}
	if deps.Ledger, err = env.ledger(); err != nil {
		// A broken ledger must not block documentation
		env.logger.Warn("Run ledger unavailable", "error", err.Error())
		deps.Ledger = nil
	}

	p, err := pipeline.New(env.cfg, deps, env.logger)
	if err != nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()

	run, err := p.Generate(ctx, pipeline.Options{
		Target:    target,
		Force:     generateForce,
		NoRender:  generateNoRender,
		OutputDir: generateOut,
		Document:  generateDoc,
	})
	if err != nil {
		return err
	}

	document := generateDoc
	if document == "" {
		document = env.cfg.Output.Document
	}
	output, err := FormatResponse(newRunResponse(run, paths.ResolveRepoPath(run.Root, document)), OutputFormat(generateFormat))
	if err != nil {
		return errors.NewArchError(errors.InternalError, "cannot format output", err)
	}
	fmt.Println(output)

	if run.Outcome == storage.OutcomeSourceOnly && !generateNoRender && generateFormat == string(FormatHuman) {
		fmt.Println("\nNo diagram was rendered. Run 'archdoc doctor' to check the toolchain.")
	}
	return nil
}
