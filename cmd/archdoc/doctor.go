package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"archdoc/internal/render"
)

var (
	doctorFetch  bool
	doctorFormat string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the rendering toolchain",
	Long: `Checks the java executable and its version, the cached PlantUML jar and
the reachability of the hosted rendering service, and reports which rendering
tier a generate run would use.

Use --fetch to download the PlantUML jar when it is missing.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFetch, "fetch", false, "Download the PlantUML jar if missing")
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	start := time.Now()
	env, err := newEnv(".")
	if err != nil {
		return err
	}

	ctx, cancel := newContext()
	defer cancel()

	local, err := env.plantUML()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Render configuration: %v\n", err)
		local = nil
	}
	report := render.Diagnose(ctx, local, env.onlineService(), render.DoctorOptions{Fetch: doctorFetch})

	output, err := FormatResponse(report, OutputFormat(doctorFormat))
	if err != nil {
		env.Close()
		return fmt.Errorf("formatting output: %w", err)
	}
	fmt.Println(output)

	if doctorFormat == string(FormatHuman) {
		fmt.Printf("\n(Diagnostics took %dms)\n", time.Since(start).Milliseconds())
	}

	env.Close()
	// Exit with non-zero if unhealthy
	if !report.Healthy {
		os.Exit(1)
	}
	return nil
}
