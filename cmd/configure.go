package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/downstream-dev/downstream/internal/config"
	"github.com/downstream-dev/downstream/internal/log"
	"github.com/downstream-dev/downstream/internal/manifest"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set user-level defaults",
	Long: `Configure stores per-user defaults in ~/.downstream/config.yaml. They are
the fallback for anything neither flags nor the manifest set.`,
}

var configureEngineCmd = &cobra.Command{
	Use:   "engine <text|diff3>",
	Short: "Set the default merge engine",
	Args:  cobra.ExactArgs(1),
	RunE:  configureEngineExec,
}

var configureDiff3BinCmd = &cobra.Command{
	Use:   "diff3-bin <path>",
	Short: "Set the binary used by the diff3 engine",
	Args:  cobra.ExactArgs(1),
	RunE:  configureDiff3BinExec,
}

func configureInit() {
	configureCmd.AddCommand(configureEngineCmd)
	configureCmd.AddCommand(configureDiff3BinCmd)

	rootCmd.AddCommand(configureCmd)
}

func configureEngineExec(cmd *cobra.Command, args []string) error {
	engine := args[0]
	switch engine {
	case manifest.EngineText, manifest.EngineDiff3:
	default:
		return fmt.Errorf("merge engine must be %q or %q, got %q", manifest.EngineText, manifest.EngineDiff3, engine)
	}

	if err := config.SetMergeEngine(engine); err != nil {
		return err
	}

	log.From(cmd.Context()).Successf("default merge engine set to %s", engine)

	return nil
}

func configureDiff3BinExec(cmd *cobra.Command, args []string) error {
	if err := config.SetDiff3Bin(args[0]); err != nil {
		return err
	}

	log.From(cmd.Context()).Successf("diff3 binary set to %s", args[0])

	return nil
}
