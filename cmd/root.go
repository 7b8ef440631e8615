package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/downstream-dev/downstream/internal/config"
	"github.com/downstream-dev/downstream/internal/log"
	"github.com/downstream-dev/downstream/internal/styles"
)

var rootCmd = &cobra.Command{
	Use:   "downstream",
	Short: "Vendor files from an upstream repository without losing your local changes",
	Long: `downstream imports files from an origin repository into a directory you own
and keeps them in sync. Each sync three-way merges the fresh origin tree
against your directory, using the origin commit of the previous sync as the
common baseline, so upstream updates and local edits flow together instead of
overwriting each other.`,
}

var l = log.New().WithLevel(log.LevelInfo)

func init() {
	if err := config.Load(); err != nil {
		l.Error("", zap.Error(err))
		os.Exit(1)
	}
}

func Init() {
	defaultLevel := config.LogLevel()
	if defaultLevel == "" {
		defaultLevel = string(log.LevelInfo)
	}
	rootCmd.PersistentFlags().String("logLevel", defaultLevel, fmt.Sprintf("the log level (available options: [%s])", strings.Join(log.Levels, ", ")))

	initInit()
	syncInit()
	mergeInit()
	configureInit()
}

func Execute(version string) {
	setupRootCmd(version)

	if err := rootCmd.Execute(); err != nil {
		l.Error("", zap.Error(err))
		l.WithInteractiveOnly().PrintfStyled(styles.DimmedItalic, "Run '%s --help' for usage.\n", rootCmd.CommandPath())
		os.Exit(1)
	}
}

func CmdForTest(version string) *cobra.Command {
	setupRootCmd(version)

	return rootCmd
}

func setupRootCmd(version string) {
	rootCmd.Version = version
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if err := setLogLevel(cmd); err != nil {
			return
		}
	}

	Init()
}

func setLogLevel(cmd *cobra.Command) error {
	logLevel, err := cmd.Flags().GetString("logLevel")
	if err != nil {
		return err
	}
	if !slices.Contains(log.Levels, logLevel) {
		return fmt.Errorf("log level must be one of: %s", strings.Join(log.Levels, ", "))
	}

	l = l.WithLevel(log.Level(logLevel))
	ctx := log.With(cmd.Context(), l)
	cmd.SetContext(ctx)

	return nil
}
