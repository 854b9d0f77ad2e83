package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/Maizu/RLAccountMigrator/app/services/backup"
	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/Maizu/RLAccountMigrator/app/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List or unpack the archives taken before files were deleted",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps := dependencies(cmd)
		snapshots, err := backup.ListSnapshots(deps.Options.SnapshotDir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structured() {
			return encode(out, snapshots)
		}
		if len(snapshots) == 0 {
			fmt.Fprintln(out, Faint.Render("No snapshots in "+deps.Options.SnapshotDir))
			return nil
		}

		data := pterm.TableData{{"Name", "Size", "Created"}}
		for _, s := range snapshots {
			data = append(data, []string{s.Name, fmt.Sprintf("%d", s.Size), s.Created.Format("2006-01-02 15:04:05")})
		}
		return pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(data).Render()
	},
}

var snapshotsExtractCmd = &cobra.Command{
	Use:   "extract <name> <folder>",
	Short: "Unpack a snapshot into a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps := dependencies(cmd)

		archive := args[0]
		if !utils.CheckFileExists(archive) {
			archive = filepath.Join(deps.Options.SnapshotDir, filepath.Base(args[0]))
		}
		if !utils.CheckFileExists(archive) {
			return &types.NotFoundError{What: "snapshot", Path: args[0]}
		}

		files, err := backup.ExtractSnapshot(archive, args[1])
		if err != nil {
			return &types.UnexpectedError{Op: "extract snapshot", Err: err}
		}

		out := cmd.OutOrStdout()
		if structured() {
			return encode(out, map[string]interface{}{"snapshot": archive, "files": files})
		}
		fmt.Fprintln(out, Green.Render(fmt.Sprintf("✓ Extracted %d files into %s", len(files), args[1])))
		return nil
	},
}

func init() {
	snapshotsCmd.AddCommand(snapshotsListCmd, snapshotsExtractCmd)
	rootCmd.AddCommand(snapshotsCmd)
}
