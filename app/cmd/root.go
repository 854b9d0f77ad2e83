package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Maizu/RLAccountMigrator/app/config"
	"github.com/Maizu/RLAccountMigrator/app/services/backup"
	"github.com/Maizu/RLAccountMigrator/app/services/game"
	"github.com/Maizu/RLAccountMigrator/app/services/history"
	"github.com/Maizu/RLAccountMigrator/app/services/migration"
	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/Maizu/RLAccountMigrator/app/utils"
	"github.com/Maizu/RLAccountMigrator/app/vars"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type depsKey struct{}

// RootDependencies are built once per invocation in the root pre-run and
// shared by every command through the command context.
type RootDependencies struct {
	Options     *config.Options
	Paths       *config.PathConfig
	Store       *backup.Store
	Controller  *game.Controller
	Coordinator *migration.Coordinator
	History     *history.Store

	closers []io.Closer
}

var (
	cfgFile      string
	outputFormat string

	// closed by Execute whether or not the command failed
	active *RootDependencies
)

var rootCmd = &cobra.Command{
	Use:   "rlmigrator",
	Short: "Move Rocket League progress between the Steam and Epic accounts",
	Long: `rlmigrator copies Rocket League save data between the Steam and Epic
accounts sharing one installation. It launches the game so it writes a fresh
save generation, stops it again and swaps the generation with the backup slot.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		deps, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}
		active = deps
		cmd.SetContext(context.WithValue(cmd.Context(), depsKey{}, deps))
		return nil
	},
}

func init() {
	config.InitFlags(rootCmd, &cfgFile)
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, yaml or json")
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if cerr := active.Close(); cerr != nil && err == nil {
		err = cerr
	}
	active = nil
	if err == nil {
		return 0
	}
	printError(rootCmd.ErrOrStderr(), err)
	return ExitCode(err)
}

func handleRootCommand(cmd *cobra.Command) (*RootDependencies, error) {
	opts, err := config.LoadOptions(viper.New(), cmd.Root(), cfgFile)
	if err != nil {
		return nil, err
	}
	if err := validateOutput(outputFormat); err != nil {
		return nil, err
	}
	if err := opts.EnsureDirs(); err != nil {
		return nil, &types.UnexpectedError{Op: "create data folders", Err: err}
	}

	deps := &RootDependencies{Options: opts}

	logs, err := utils.SetupLoggers(opts.LogDir, opts.Verbose, opts.Verbose)
	if err != nil {
		return nil, &types.UnexpectedError{Op: "open log files", Err: err}
	}
	deps.closers = append(deps.closers, logs)

	utils.DebugLogger.Printf("%s starting %q\r\n", vars.AppName, cmd.CommandPath())

	deps.Paths, err = config.LoadPathConfig(opts.SettingsFile)
	if err != nil {
		deps.Close()
		return nil, &types.ConfigurationError{Field: "settings_file", Reason: err.Error()}
	}

	deps.History, err = history.Open(opts.HistoryFile)
	if err != nil {
		deps.Close()
		return nil, &types.UnexpectedError{Op: "open history", Err: err}
	}
	deps.closers = append(deps.closers, deps.History)

	deps.Store = backup.NewStore(opts.BackupSnapshotDir(), opts.SnapshotKeep)
	deps.Controller = game.NewController(game.ExecLauncher{}, game.GopsutilFinder{}, opts.ProcessName, opts.PollInterval)
	deps.Coordinator = migration.NewCoordinator(deps.Store, deps.Controller, migration.Options{
		WaitTimeout: opts.WaitTimeout,
		GracePeriod: opts.GracePeriod,
		AcceptStale: opts.AcceptStale,
	})
	deps.Coordinator.SetRecorder(deps.History)

	return deps, nil
}

func dependencies(cmd *cobra.Command) *RootDependencies {
	deps, _ := cmd.Context().Value(depsKey{}).(*RootDependencies)
	return deps
}

// Close releases the history database and the log files, newest first.
func (d *RootDependencies) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// ExitCode maps the typed errors onto distinct process exit codes.
func ExitCode(err error) int {
	var (
		cfgErr   *types.ConfigurationError
		conflict *types.ConflictError
		notFound *types.NotFoundError
		timeout  *types.ProcessTimeoutError
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &cfgErr):
		return 2
	case errors.As(err, &conflict):
		return 3
	case errors.As(err, &notFound):
		return 4
	case errors.As(err, &timeout):
		return 5
	case errors.Is(err, context.Canceled):
		return 130
	}
	return 1
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, Red.Render("Error: "+err.Error()))
}
