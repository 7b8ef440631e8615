package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/downstream-dev/downstream/internal/log"
	"github.com/downstream-dev/downstream/internal/styles"
	"github.com/downstream-dev/downstream/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync [dir]",
	Short: "Sync a directory with its origin repository",
	Long: `Sync clones the origin named by downstream.yaml, three-way merges it against
the directory using the last synced commit as the baseline, applies the
result and records the new baseline in downstream.lock.

The first sync of a directory imports the origin as is. Later syncs preserve
local edits by merging. Conflicted files end up with the origin content in
the working tree; when the directory is inside a git repository the local
content is also staged in the index, so git status reports the conflict and
git mergetool or checkout --ours can resolve it. The lock only advances on a
conflict-free run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: syncExec,
}

func syncInit() {
	syncCmd.Flags().String("engine", "", `merge engine, "text" or "diff3" (default from the manifest)`)
	syncCmd.Flags().String("diff3-bin", "", "binary to run for the diff3 engine")
	syncCmd.Flags().Bool("keep-scratch", false, "keep the scratch checkouts after the run")

	rootCmd.AddCommand(syncCmd)
}

func syncExec(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	engine, err := cmd.Flags().GetString("engine")
	if err != nil {
		return err
	}
	diff3Bin, err := cmd.Flags().GetString("diff3-bin")
	if err != nil {
		return err
	}
	keepScratch, err := cmd.Flags().GetBool("keep-scratch")
	if err != nil {
		return err
	}

	logger := log.From(cmd.Context())
	logger.Debug("syncing", zap.String("dir", dir), zap.Strings("flags", changedFlags(cmd.Flags())))

	res, err := sync.Run(cmd.Context(), sync.Options{
		Dir:         dir,
		Engine:      engine,
		Diff3Bin:    diff3Bin,
		KeepScratch: keepScratch,
	})
	if err != nil {
		return err
	}

	switch {
	case res.FirstSync:
		logger.Successf("first sync complete: imported %d files at %s", res.Applied, shortHash(res.OriginHash))
	case res.HasConflicts():
		logger.Warnf("sync finished with conflicts: %s", res.Report.Summary())
		logger.WithInteractiveOnly().PrintfStyled(styles.DimmedItalic, "Resolve the conflicted files, then run '%s sync' again to advance the baseline.\n", rootCmd.CommandPath())
	default:
		logger.Successf("sync complete: %s, now at %s", res.Report.Summary(), shortHash(res.OriginHash))
	}

	return nil
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}

	return hash
}

func changedFlags(flags *pflag.FlagSet) []string {
	values := make([]string, 0)

	flags.VisitAll(func(flag *pflag.Flag) {
		if flag.Changed {
			values = append(values, flag.Name)
		}
	})

	return values
}
