package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"archdoc/internal/config"
	"archdoc/internal/errors"
	"archdoc/internal/solution"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize archdoc configuration",
	Long:  "Writes a default .archdoc/config.json under path (default: current directory)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root := solution.RootOf(targetArg(args))
	configPath := config.Path(root)

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return errors.NewArchError(errors.ConfigInvalid,
			fmt.Sprintf("%s already exists; run 'archdoc init --force' to overwrite it", configPath), nil)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(root); err != nil {
		return errors.NewArchError(errors.PersistenceFailed, "failed to write "+configPath, err)
	}

	pterm.Success.Println("archdoc initialized")
	fmt.Printf("Configuration written to: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Run 'archdoc doctor' to check the rendering toolchain")
	fmt.Println("  2. Run 'archdoc generate' to write the diagrams")
	return nil
}
