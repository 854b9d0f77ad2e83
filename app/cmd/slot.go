package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/spf13/cobra"
)

var slotCmd = &cobra.Command{
	Use:   "slot",
	Short: "Inspect or empty the backup folder",
}

var slotShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the files held in the backup folder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps := dependencies(cmd)
		slot := deps.Paths.BackupPath

		files, err := deps.Store.Files(slot)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structured() {
			return encode(out, map[string]interface{}{"backup_path": slot, "files": files})
		}
		if len(files) == 0 {
			fmt.Fprintln(out, Faint.Render(slot+" is empty"))
			return nil
		}
		fmt.Fprintln(out, Info.Render(slot))
		for _, f := range files {
			fmt.Fprintln(out, "  "+f)
		}
		return nil
	},
}

var slotClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every file in the backup folder",
	Long: `Delete every file in the backup folder so a new backup can be captured.
The files are archived into a snapshot first unless snapshots are disabled.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps := dependencies(cmd)
		slot := deps.Paths.BackupPath
		if slot == "" {
			return &types.ConfigurationError{Field: "backup_path", Reason: "backup folder is not set"}
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Fprintf(cmd.OutOrStdout(), "Delete every file in %s? (y/N): ", slot)
			response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				fmt.Fprintln(cmd.OutOrStdout(), Yellow.Render("Nothing deleted."))
				return nil
			}
		}

		removed, err := deps.Store.Clear(slot)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structured() {
			return encode(out, map[string]interface{}{"backup_path": slot, "removed": removed})
		}
		fmt.Fprintln(out, Green.Render(fmt.Sprintf("✓ Removed %d files from %s", len(removed), slot)))
		return nil
	},
}

func init() {
	slotClearCmd.Flags().BoolP("force", "f", false, "Delete without asking")

	slotCmd.AddCommand(slotShowCmd, slotClearCmd)
	rootCmd.AddCommand(slotCmd)
}
