package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/downstream-dev/downstream/internal/log"
	"github.com/downstream-dev/downstream/internal/manifest"
	"github.com/downstream-dev/downstream/internal/styles"
	"github.com/downstream-dev/downstream/internal/utils"
)

var initCmd = &cobra.Command{
	Use:   "init <origin-url>",
	Short: "Start tracking an origin repository in this directory",
	Long: `Init writes a downstream.yaml manifest pointing at the origin repository.
The first sync after that imports the origin tree; every later sync merges
upstream changes with yours.`,
	Args: cobra.ExactArgs(1),
	RunE: initExec,
}

func initInit() {
	initCmd.Flags().String("ref", "main", "origin branch, tag or revision to track")
	initCmd.Flags().String("subdir", "", "subdirectory of the origin to import")
	initCmd.Flags().String("dir", ".", "directory to create the manifest in")

	rootCmd.AddCommand(initCmd)
}

func initExec(cmd *cobra.Command, args []string) error {
	ref, err := cmd.Flags().GetString("ref")
	if err != nil {
		return err
	}
	subdir, err := cmd.Flags().GetString("subdir")
	if err != nil {
		return err
	}
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return err
	}

	if utils.FileExists(filepath.Join(dir, manifest.Filename)) {
		return fmt.Errorf("%s already exists in %s", manifest.Filename, dir)
	}

	m := manifest.Default(args[0])
	m.Origin.Ref = ref
	m.Origin.Subdir = subdir
	if err := m.Validate(); err != nil {
		return err
	}

	if err := m.Save(dir); err != nil {
		return err
	}

	logger := log.From(cmd.Context())
	logger.Successf("wrote %s tracking %s@%s", manifest.Filename, args[0], ref)
	logger.WithInteractiveOnly().PrintfStyled(styles.DimmedItalic, "Run '%s sync' to import it.\n", rootCmd.CommandPath())

	return nil
}
