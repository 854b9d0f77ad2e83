package cmd

import (
	"fmt"
	"sort"

	"github.com/Maizu/RLAccountMigrator/app/config"
	"github.com/Maizu/RLAccountMigrator/app/services/detect"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the account folders and executables",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every setting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps := dependencies(cmd)
		values := deps.Paths.Values()
		if structured() {
			return encode(cmd.OutOrStdout(), map[string]interface{}{
				"settings_file": deps.Paths.FilePath(),
				"settings":      values,
				"options":       deps.Options,
			})
		}

		keys := make([]string, 0, len(values))
		for key := range values {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, Faint.Render(deps.Paths.FilePath()))
		for _, key := range keys {
			fmt.Fprintf(out, "%-26s %s\n", key, orUnset(values[key]))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set <section.key> <value>",
	Short:     "Validate and store one setting",
	Long:      "Validate and store one setting. An empty value clears it.",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps := dependencies(cmd)
		if err := deps.Paths.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := deps.Paths.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), Green.Render(fmt.Sprintf("✓ %s = %s", args[0], orUnset(args[1]))))
		return nil
	},
}

var configDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Find unset save folders and executables on this machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDetect(cmd)
	},
}

func init() {
	configDetectCmd.Flags().Int("depth", detect.DefaultMaxDepth, "How many folders deep the scan descends")
	configDetectCmd.Flags().StringSlice("root", nil, "Scan only these folders instead of every mounted filesystem")

	configCmd.AddCommand(configShowCmd, configSetCmd, configDetectCmd)
	rootCmd.AddCommand(configCmd)
}

func runDetect(cmd *cobra.Command) error {
	deps := dependencies(cmd)

	detector := detect.NewDetector()
	detector.MaxDepth, _ = cmd.Flags().GetInt("depth")
	detector.Roots, _ = cmd.Flags().GetStringSlice("root")

	var spinner *pterm.SpinnerPrinter
	if !structured() {
		spinner, _ = newSpinner().Start("Looking for Rocket League files...")
	}

	found, err := detector.Detect(cmd.Context(), deps.Paths, deps.Options.DefaultBackupDir())

	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}
	if err := deps.Paths.Save(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if structured() {
		return encode(out, found)
	}
	if len(found) == 0 {
		fmt.Fprintln(out, Yellow.Render("Nothing new found."))
		return nil
	}

	keys := make([]string, 0, len(found))
	for key := range found {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(out, "%s %-26s %s\n", Green.Render("✓"), key, found[key])
	}
	return nil
}
