package cmd

import (
	"github.com/Maizu/RLAccountMigrator/app/services/loghandler"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the log file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps := dependencies(cmd)
		follow, _ := cmd.Flags().GetBool("follow")
		return loghandler.Follow(cmd.Context(), loghandler.LogFile(deps.Options.LogDir), cmd.OutOrStdout(), follow)
	},
}

func init() {
	logsCmd.Flags().BoolP("follow", "f", false, "Keep printing new lines until interrupted")
	rootCmd.AddCommand(logsCmd)
}
