package cmd

import (
	"fmt"
	"strings"

	"github.com/Maizu/RLAccountMigrator/app/config"
	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

type accountReport struct {
	Account        types.Account        `json:"account" yaml:"account"`
	Status         config.AccountStatus `json:"status" yaml:"status"`
	SaveDir        string               `json:"save_path" yaml:"save_path"`
	ExecutablePath string               `json:"rocket_league_path" yaml:"rocket_league_path"`
}

type statusReport struct {
	Accounts    []accountReport `json:"accounts" yaml:"accounts"`
	BackupPath  string          `json:"backup_path" yaml:"backup_path"`
	SlotFiles   []string        `json:"slot_files" yaml:"slot_files"`
	GameRunning bool            `json:"game_running" yaml:"game_running"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether each account is ready to migrate",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command) error {
	deps := dependencies(cmd)
	report := statusReport{BackupPath: deps.Paths.BackupPath, SlotFiles: []string{}}

	for _, account := range types.Accounts() {
		paths := deps.Paths.Paths(account)
		report.Accounts = append(report.Accounts, accountReport{
			Account:        account,
			Status:         deps.Paths.Status(account),
			SaveDir:        paths.SaveDir,
			ExecutablePath: paths.ExecutablePath,
		})
	}

	if report.BackupPath != "" {
		files, err := deps.Store.Files(report.BackupPath)
		if err == nil {
			report.SlotFiles = files
		}
	}

	running, err := deps.Controller.Running()
	if err != nil {
		return err
	}
	report.GameRunning = running

	out := cmd.OutOrStdout()
	if structured() {
		return encode(out, report)
	}

	for _, a := range report.Accounts {
		lines := []string{
			Info.Render(a.Account.Title()) + "  " + statusStyle(a.Status).Render(a.Status.String()),
			"Save folder: " + orUnset(a.SaveDir),
			"Executable:  " + orUnset(a.ExecutablePath),
		}
		fmt.Fprintln(out, BoxStyle.Render(strings.Join(lines, "\n")))
	}

	slot := "empty"
	if len(report.SlotFiles) > 0 {
		slot = fmt.Sprintf("%d files", len(report.SlotFiles))
	}
	fmt.Fprintf(out, "Backup folder: %s (%s)\n", orUnset(report.BackupPath), slot)
	if report.GameRunning {
		fmt.Fprintln(out, Yellow.Render("Rocket League is running. Close it before migrating."))
	}
	return nil
}

func statusStyle(s config.AccountStatus) lipgloss.Style {
	switch s {
	case config.Ready:
		return Green
	case config.Incomplete:
		return Red
	}
	return Yellow
}

func orUnset(s string) string {
	if s == "" {
		return Faint.Render("not set")
	}
	return s
}
