package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/downstream-dev/downstream/internal/config"
	"github.com/downstream-dev/downstream/internal/diff3"
	"github.com/downstream-dev/downstream/internal/log"
	"github.com/downstream-dev/downstream/internal/manifest"
	"github.com/downstream-dev/downstream/internal/mergeimport"
	"github.com/downstream-dev/downstream/internal/textmerge"
	"github.com/downstream-dev/downstream/internal/utils"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Three-way merge an origin tree into a destination tree",
	Long: `Merge reconciles three directory trees: an origin tree that is the source of
truth, a destination tree carrying local changes, and the baseline tree both
evolved from. Files shared by all three are three-way merged in place in the
origin tree, destination-only files are copied into it, and files the origin
deleted are deleted from the destination. Conflicted files keep their origin
content and are listed at the end; they do not fail the merge.

Sync wraps this with cloning and bookkeeping. Reach for merge directly when
the three trees already exist on disk.`,
	RunE: mergeExec,
}

func mergeInit() {
	mergeCmd.Flags().String("origin", "", "path to the origin tree, merged in place")
	_ = mergeCmd.MarkFlagRequired("origin")
	mergeCmd.Flags().String("destination", "", "path to the destination tree carrying local changes")
	_ = mergeCmd.MarkFlagRequired("destination")
	mergeCmd.Flags().String("baseline", "", "path to the baseline tree both sides evolved from")
	_ = mergeCmd.MarkFlagRequired("baseline")
	mergeCmd.Flags().String("scratch", "", "directory for merger scratch files (default the system temp dir)")
	mergeCmd.Flags().StringSlice("exclude", nil, "relative paths to leave untouched in both trees")
	mergeCmd.Flags().String("engine", "", `merge engine, "text" or "diff3" (default from user config)`)
	mergeCmd.Flags().String("diff3-bin", "", "binary to run for the diff3 engine (default from user config)")

	rootCmd.AddCommand(mergeCmd)
}

func mergeExec(cmd *cobra.Command, args []string) error {
	originDir, err := cmd.Flags().GetString("origin")
	if err != nil {
		return err
	}
	destinationDir, err := cmd.Flags().GetString("destination")
	if err != nil {
		return err
	}
	baselineDir, err := cmd.Flags().GetString("baseline")
	if err != nil {
		return err
	}
	scratchDir, err := cmd.Flags().GetString("scratch")
	if err != nil {
		return err
	}
	exclude, err := cmd.Flags().GetStringSlice("exclude")
	if err != nil {
		return err
	}
	engine, err := cmd.Flags().GetString("engine")
	if err != nil {
		return err
	}
	diff3Bin, err := cmd.Flags().GetString("diff3-bin")
	if err != nil {
		return err
	}

	merger, err := buildMerger(cmd.Context(), engine, diff3Bin)
	if err != nil {
		return err
	}

	report, err := mergeimport.Merge(cmd.Context(), mergeimport.Options{
		OriginDir:      originDir,
		DestinationDir: destinationDir,
		BaselineDir:    baselineDir,
		ScratchDir:     scratchDir,
		Exclude:        exclude,
		Merger:         merger,
	})
	if err != nil {
		return err
	}

	logger := log.From(cmd.Context())
	if report.HasConflicts() {
		logger.Warnf("merge finished with conflicts: %s", report.Summary())
		return nil
	}
	logger.Successf("merge complete: %s", report.Summary())

	return nil
}

// buildMerger picks the merge engine for a bare merge, flag overriding user
// config, and verifies an external engine is actually runnable.
func buildMerger(ctx context.Context, engine, diff3Bin string) (mergeimport.Merger, error) {
	if engine == "" {
		engine = config.MergeEngine()
	}

	switch engine {
	case manifest.EngineText:
		return textmerge.New(), nil
	case manifest.EngineDiff3:
		if diff3Bin == "" {
			diff3Bin = config.Diff3Bin()
		}

		runner := diff3.New(utils.ExpandHome(diff3Bin))
		if _, err := runner.Detect(ctx); err != nil {
			return nil, err
		}
		return runner, nil
	default:
		return nil, fmt.Errorf("unknown merge engine %q", engine)
	}
}
