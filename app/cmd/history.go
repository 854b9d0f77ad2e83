package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent backup and migration runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps := dependencies(cmd)
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := deps.History.List(limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if structured() {
			return encode(out, runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, Faint.Render("No runs recorded yet."))
			return nil
		}

		data := pterm.TableData{{"Started", "Operation", "Account", "Status", "Files", "Reason"}}
		for _, r := range runs {
			status := r.Status
			if r.Stale {
				status += " (stale)"
			}
			data = append(data, []string{
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Operation,
				r.Account,
				status,
				fmt.Sprintf("%d", len(r.Files)),
				r.Reason,
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(data).Render()
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "How many runs to show, 0 for all")
	rootCmd.AddCommand(historyCmd)
}
