package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/Maizu/RLAccountMigrator/app/utils"
	"github.com/Maizu/RLAccountMigrator/app/vars"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	ConfigFileName   = "rlmigrator"
	SettingsFileName = "settings.ini"
	HistoryFileName  = "history.db"
	EnvPrefix        = "RLM"
)

// Options are the runtime tunables. Paths the user picks for each account
// live in PathConfig instead.
type Options struct {
	DataDir      string        `mapstructure:"data_dir" json:"data_dir" yaml:"data_dir"`
	LogDir       string        `mapstructure:"log_dir" json:"log_dir" yaml:"log_dir"`
	SettingsFile string        `mapstructure:"settings_file" json:"settings_file" yaml:"settings_file"`
	HistoryFile  string        `mapstructure:"history_file" json:"history_file" yaml:"history_file"`
	SnapshotDir  string        `mapstructure:"snapshot_dir" json:"snapshot_dir" yaml:"snapshot_dir"`
	SnapshotKeep int           `mapstructure:"snapshot_keep" json:"snapshot_keep" yaml:"snapshot_keep"`
	PollInterval time.Duration `mapstructure:"poll_interval" json:"poll_interval" yaml:"poll_interval"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout" json:"wait_timeout" yaml:"wait_timeout"`
	GracePeriod  time.Duration `mapstructure:"grace_period" json:"grace_period" yaml:"grace_period"`
	AcceptStale  bool          `mapstructure:"accept_stale" json:"accept_stale" yaml:"accept_stale"`
	ProcessName  string        `mapstructure:"process_name" json:"process_name" yaml:"process_name"`
	Verbose      bool          `mapstructure:"verbose" json:"verbose" yaml:"verbose"`
}

var DefaultOptions = Options{
	SnapshotKeep: 10,
	PollInterval: 2 * time.Second,
	WaitTimeout:  60 * time.Second,
	GracePeriod:  10 * time.Second,
	AcceptStale:  false,
	ProcessName:  vars.ProcessName,
}

// DefaultDataDir is the per-user folder holding settings, logs, history and
// the default backup folder.
func DefaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return filepath.Join(".", vars.AppName)
		}
		base = home
	}
	return filepath.Join(base, vars.AppName)
}

// InitFlags registers the persistent flags every command shares.
func InitFlags(rootCmd *cobra.Command, cfgFile *string) {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(cfgFile, "config", "c", "", "Path to a configuration file (YAML or JSON)")
	flags.String("data_dir", "", "Folder for settings, logs and history (default "+DefaultDataDir()+")")
	flags.String("settings_file", "", "Path to the account settings file")
	flags.Duration("wait_timeout", DefaultOptions.WaitTimeout, "How long to wait for the game to write a new save")
	flags.Duration("grace_period", DefaultOptions.GracePeriod, "How long the game gets to exit before it is killed")
	flags.Bool("accept_stale", DefaultOptions.AcceptStale, "Continue with the newest existing save when the game writes no new one")
	flags.BoolP("verbose", "v", false, "Print debug output")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("log_dir", "")
	v.SetDefault("settings_file", "")
	v.SetDefault("history_file", "")
	v.SetDefault("snapshot_dir", "")
	v.SetDefault("snapshot_keep", DefaultOptions.SnapshotKeep)
	v.SetDefault("poll_interval", DefaultOptions.PollInterval)
	v.SetDefault("wait_timeout", DefaultOptions.WaitTimeout)
	v.SetDefault("grace_period", DefaultOptions.GracePeriod)
	v.SetDefault("accept_stale", DefaultOptions.AcceptStale)
	v.SetDefault("process_name", DefaultOptions.ProcessName)
	v.SetDefault("verbose", false)
}

func bindFlags(v *viper.Viper, rootCmd *cobra.Command) {
	if rootCmd == nil {
		return
	}
	for _, key := range []string{"data_dir", "settings_file", "wait_timeout", "grace_period", "accept_stale", "verbose"} {
		if f := rootCmd.PersistentFlags().Lookup(key); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// LoadOptions resolves Options from defaults, the optional config file, RLM_
// environment variables and the command line, in increasing precedence.
func LoadOptions(v *viper.Viper, rootCmd *cobra.Command, cfgFile string) (*Options, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindFlags(v, rootCmd)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, &types.ConfigurationError{Field: "config", Reason: fmt.Sprintf("error reading config file %s: %s", cfgFile, err.Error())}
		}
	} else {
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(v.GetString("data_dir"))
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, &types.ConfigurationError{Field: "config", Reason: err.Error()}
			}
		}
	}

	opts := &Options{}
	if err := v.Unmarshal(opts); err != nil {
		return nil, &types.ConfigurationError{Field: "config", Reason: fmt.Sprintf("unable to decode options: %s", err.Error())}
	}

	if err := opts.fill(); err != nil {
		return nil, err
	}

	if used := v.ConfigFileUsed(); used != "" {
		utils.DebugLogger.Printf("Config File Location: %s\r\n", used)
	}
	return opts, nil
}

// fill derives unset locations from DataDir and checks the durations.
func (o *Options) fill() error {
	if o.DataDir == "" {
		o.DataDir = DefaultDataDir()
	}
	o.DataDir, _ = filepath.Abs(o.DataDir)

	if o.LogDir == "" {
		o.LogDir = filepath.Join(o.DataDir, "logs")
	}
	if o.SettingsFile == "" {
		o.SettingsFile = filepath.Join(o.DataDir, SettingsFileName)
	}
	if o.HistoryFile == "" {
		o.HistoryFile = filepath.Join(o.DataDir, HistoryFileName)
	}
	if o.SnapshotDir == "" {
		o.SnapshotDir = filepath.Join(o.DataDir, "snapshots")
	}
	if o.ProcessName == "" {
		o.ProcessName = vars.ProcessName
	}

	if o.PollInterval <= 0 {
		return &types.ConfigurationError{Field: "poll_interval", Reason: "must be greater than zero"}
	}
	if o.WaitTimeout <= 0 {
		return &types.ConfigurationError{Field: "wait_timeout", Reason: "must be greater than zero"}
	}
	if o.GracePeriod <= 0 {
		return &types.ConfigurationError{Field: "grace_period", Reason: "must be greater than zero"}
	}
	if o.SnapshotKeep < 0 {
		return &types.ConfigurationError{Field: "snapshot_keep", Reason: "must not be negative"}
	}
	return nil
}

// BackupSnapshotDir is where pre-delete snapshots go. A snapshot_keep of zero
// turns snapshots off.
func (o *Options) BackupSnapshotDir() string {
	if o.SnapshotKeep == 0 {
		return ""
	}
	return o.SnapshotDir
}

// DefaultBackupDir is used when auto-detection has to pick a backup folder.
func (o *Options) DefaultBackupDir() string {
	return filepath.Join(o.DataDir, "backup")
}

func (o *Options) EnsureDirs() error {
	for _, dir := range []string{o.DataDir, o.LogDir, filepath.Dir(o.SettingsFile), filepath.Dir(o.HistoryFile)} {
		if err := utils.CreateFolder(dir); err != nil {
			return err
		}
	}
	return nil
}
