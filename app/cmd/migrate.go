package cmd

import (
	"fmt"

	"github.com/Maizu/RLAccountMigrator/app/services/migration"
	"github.com/Maizu/RLAccountMigrator/app/services/state"
	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup <steam|epic>",
	Short: "Launch the game on an account and keep its fresh save as the backup",
	Long: `Launch Rocket League for the account, wait for it to write a fresh save
generation, close it and copy that generation into the empty backup folder.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(types.Steam), string(types.Epic)},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, migration.CaptureBackup, args[0])
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <steam|epic>",
	Short: "Launch the game on an account and replace its fresh save with the backup",
	Long: `Launch Rocket League for the account, wait for it to write a fresh save
generation, close it and overwrite that generation with the backup. The
backup folder keeps its files and the replaced ones go to a snapshot.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(types.Steam), string(types.Epic)},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, migration.ReplaceExisting, args[0])
	},
}

var restoreCmd = &cobra.Command{
	Use:       "restore <steam|epic>",
	Short:     "Copy the backup over the newest save of an account without launching the game",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(types.Steam), string(types.Epic)},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, migration.PlainMigrate, args[0])
	},
}

func init() {
	rootCmd.AddCommand(backupCmd, migrateCmd, restoreCmd)
}

func runOperation(cmd *cobra.Command, mode migration.Mode, name string) error {
	deps := dependencies(cmd)

	account, err := types.ParseAccount(name)
	if err != nil {
		return err
	}

	if mode != migration.PlainMigrate {
		running, err := deps.Controller.Running()
		if err != nil {
			return err
		}
		if running {
			return &types.ConflictError{Reason: "Rocket League is already running, close it first"}
		}
	}

	req := migration.Request{
		Mode:      mode,
		Account:   account,
		Paths:     deps.Paths.Paths(account),
		BackupDir: deps.Paths.BackupPath,
	}

	var spinner *pterm.SpinnerPrinter
	if !structured() {
		spinner, _ = newSpinner().Start(describeState(account, state.Idle))
		deps.Coordinator.Observe(func(from, to state.State) {
			spinner.UpdateText(describeState(account, to))
		})
	}

	outcome := <-deps.Coordinator.Start(cmd.Context(), req)

	if spinner != nil {
		spinner.Stop()
	}

	out := cmd.OutOrStdout()
	if structured() {
		if err := encode(out, outcome); err != nil {
			return err
		}
	} else if outcome.Succeeded() {
		msg := fmt.Sprintf("✓ %s for %s finished, %d files copied", mode, account.Title(), len(outcome.Files))
		fmt.Fprintln(out, Green.Render(msg))
		for _, f := range outcome.Files {
			fmt.Fprintln(out, "  "+f)
		}
		if outcome.Stale {
			fmt.Fprintln(out, Yellow.Render("The game wrote no new save, the newest existing generation was used."))
		}
	}

	if !outcome.Succeeded() {
		if outcome.Err != nil {
			return outcome.Err
		}
		return fmt.Errorf("%s for %s ended %s: %s", mode, account.Title(), outcome.Status, outcome.Reason)
	}
	return nil
}

func describeState(account types.Account, s state.State) string {
	switch s {
	case state.Launching:
		return "Starting Rocket League on the " + account.Title() + " account..."
	case state.WaitingForSave:
		return "Waiting for Rocket League to write a new save..."
	case state.Terminating:
		return "Closing Rocket League..."
	case state.Succeeded, state.Failed, state.TimedOut:
		return "Finishing..."
	}
	return "Checking folders..."
}
