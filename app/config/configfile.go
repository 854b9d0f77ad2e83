package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/Maizu/RLAccountMigrator/app/services/savemanager"
	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/Maizu/RLAccountMigrator/app/utils"
	"github.com/Maizu/RLAccountMigrator/app/vars"
	"golang.org/x/mod/semver"
	"gopkg.in/ini.v1"
)

// PathConfig is the persisted set of folders and executables per account
// plus the shared backup folder. Every field maps to an ini key through its
// inisection/inikey tags.
type PathConfig struct {
	Version       string `inisection:"meta" inikey:"version"`
	BackupPath    string `inisection:"paths" inikey:"backup_path"`
	SteamSavePath string `inisection:"steam" inikey:"save_path"`
	SteamExePath  string `inisection:"steam" inikey:"rocket_league_path"`
	EpicSavePath  string `inisection:"epic" inikey:"save_path"`
	EpicExePath   string `inisection:"epic" inikey:"rocket_league_path"`

	filePath string
}

type AccountStatus string

const (
	Ready             AccountStatus = "ready"
	SaveMissing       AccountStatus = "save_missing"
	ExecutableMissing AccountStatus = "executable_missing"
	Incomplete        AccountStatus = "incomplete"
)

// keys written by the single account release, before sections existed
var legacyKeys = map[string]string{
	"save_path":          "steam",
	"rocket_league_path": "steam",
	"backup_path":        "paths",
}

func createSettingsFile(filePath string) error {
	if err := utils.CreateFolder(filepath.Dir(filePath)); err != nil {
		return err
	}

	if !utils.CheckFileExists(filePath) {
		file, err := os.Create(filePath)
		if err != nil {
			return err
		}
		file.Close()
	}
	return nil
}

// LoadPathConfig reads the settings file, creating it when missing and
// upgrading files written by older releases.
func LoadPathConfig(filePath string) (*PathConfig, error) {
	if err := createSettingsFile(filePath); err != nil {
		return nil, err
	}

	cfg, err := ini.Load(filePath)
	if err != nil {
		return nil, err
	}

	pc := &PathConfig{filePath: filePath}

	upgraded := upgradeSettings(cfg)

	t := reflect.TypeOf(pc).Elem()
	tv := reflect.ValueOf(pc).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		section := field.Tag.Get("inisection")
		key := field.Tag.Get("inikey")
		if section == "" || key == "" {
			continue
		}

		mVal := tv.FieldByName(field.Name)
		if field.Type.Kind() == reflect.String {
			mVal.SetString(cfg.Section(section).Key(key).String())
		}
	}

	if upgraded {
		utils.InfoLogger.Printf("Upgraded settings file %s to %s\r\n", filePath, vars.SettingsVersion)
		if err := pc.Save(); err != nil {
			return nil, err
		}
	}

	utils.DebugLogger.Printf("Settings File Location: %s\r\n", filePath)
	return pc, nil
}

// upgradeSettings moves top level keys of a pre-versioned file into their
// sections. It reports whether anything changed.
func upgradeSettings(cfg *ini.File) bool {
	version := cfg.Section("meta").Key("version").String()
	if semver.IsValid(version) && semver.Compare(version, vars.SettingsVersion) >= 0 {
		return false
	}

	root := cfg.Section(ini.DefaultSection)
	changed := false

	for key, section := range legacyKeys {
		if !root.HasKey(key) {
			continue
		}
		value := root.Key(key).String()
		target := cfg.Section(section)
		if target.Key(key).String() == "" {
			target.Key(key).SetValue(value)
		}
		root.DeleteKey(key)
		changed = true
	}

	if version != vars.SettingsVersion {
		changed = true
	}
	return changed
}

func (pc *PathConfig) FilePath() string {
	return pc.filePath
}

// Save writes every tagged field back to the settings file.
func (pc *PathConfig) Save() error {
	if err := createSettingsFile(pc.filePath); err != nil {
		return err
	}

	cfg, err := ini.Load(pc.filePath)
	if err != nil {
		return err
	}

	pc.Version = vars.SettingsVersion

	t := reflect.TypeOf(pc).Elem()
	tv := reflect.ValueOf(pc).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		section := field.Tag.Get("inisection")
		key := field.Tag.Get("inikey")
		if section == "" || key == "" {
			continue
		}

		mVal := tv.FieldByName(field.Name)
		if field.Type.Kind() == reflect.String {
			cfg.Section(section).Key(key).SetValue(mVal.String())
		}
	}

	return cfg.SaveTo(pc.filePath)
}

func (pc *PathConfig) Paths(account types.Account) types.AccountPaths {
	switch account {
	case types.Steam:
		return types.AccountPaths{SaveDir: pc.SteamSavePath, ExecutablePath: pc.SteamExePath}
	case types.Epic:
		return types.AccountPaths{SaveDir: pc.EpicSavePath, ExecutablePath: pc.EpicExePath}
	}
	return types.AccountPaths{}
}

func (pc *PathConfig) savePathField(account types.Account) *string {
	if account == types.Epic {
		return &pc.EpicSavePath
	}
	return &pc.SteamSavePath
}

func (pc *PathConfig) exePathField(account types.Account) *string {
	if account == types.Epic {
		return &pc.EpicExePath
	}
	return &pc.SteamExePath
}

// SetSavePath validates dir as the account's save folder. On failure the
// account's save folder is cleared and the reason returned.
func (pc *PathConfig) SetSavePath(account types.Account, dir string) error {
	field := pc.savePathField(account)
	*field = ""

	if dir == "" {
		return nil
	}

	if !utils.IsDir(dir) {
		return &types.NotFoundError{What: account.Title() + " save folder", Path: dir}
	}
	if utils.SamePath(dir, pc.BackupPath) {
		return &types.ConfigurationError{Field: string(account) + ".save_path", Reason: "save folder and backup folder can't be the same folder"}
	}
	if !savemanager.HasSaveFiles(dir) {
		return &types.ConfigurationError{Field: string(account) + ".save_path", Reason: "no .save file found in the save folder"}
	}

	*field = dir
	return nil
}

// SetExecutablePath clears the account's executable unless path exists.
func (pc *PathConfig) SetExecutablePath(account types.Account, path string) error {
	field := pc.exePathField(account)
	*field = ""

	if path == "" {
		return nil
	}

	if !utils.CheckFileExists(path) || utils.IsDir(path) {
		return &types.NotFoundError{What: account.Title() + " Rocket League executable", Path: path}
	}

	*field = path
	return nil
}

// SetBackupPath sets the shared backup folder, creating it if needed. It may
// not be either account's save folder.
func (pc *PathConfig) SetBackupPath(dir string) error {
	pc.BackupPath = ""

	if dir == "" {
		return nil
	}

	for _, account := range types.Accounts() {
		if utils.SamePath(dir, pc.Paths(account).SaveDir) {
			return &types.ConfigurationError{Field: "backup_path", Reason: "save folder and backup folder can't be the same folder"}
		}
	}

	if err := utils.CreateFolder(dir); err != nil {
		return err
	}

	pc.BackupPath = dir
	return nil
}

// Keys lists the settings addressable through Set, as section.key.
func Keys() []string {
	keys := make([]string, 0)
	t := reflect.TypeOf(PathConfig{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i).Tag.Get("inisection")
		key := t.Field(i).Tag.Get("inikey")
		if section == "" || key == "" || section == "meta" {
			continue
		}
		keys = append(keys, section+"."+key)
	}
	sort.Strings(keys)
	return keys
}

// Set routes a section.key setting to its validating setter.
func (pc *PathConfig) Set(key, value string) error {
	section, name, ok := strings.Cut(key, ".")
	if !ok {
		return &types.ConfigurationError{Field: key, Reason: "expected section.key, one of " + strings.Join(Keys(), ", ")}
	}

	if section == "paths" && name == "backup_path" {
		return pc.SetBackupPath(value)
	}

	account, err := types.ParseAccount(section)
	if err != nil {
		return &types.ConfigurationError{Field: key, Reason: "unknown setting"}
	}

	switch name {
	case "save_path":
		return pc.SetSavePath(account, value)
	case "rocket_league_path":
		return pc.SetExecutablePath(account, value)
	}
	return &types.ConfigurationError{Field: key, Reason: "unknown setting"}
}

// Values returns every setting as section.key -> value.
func (pc *PathConfig) Values() map[string]string {
	values := make(map[string]string)

	t := reflect.TypeOf(pc).Elem()
	tv := reflect.ValueOf(pc).Elem()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		section := field.Tag.Get("inisection")
		key := field.Tag.Get("inikey")
		if section == "" || key == "" {
			continue
		}
		values[section+"."+key] = tv.Field(i).String()
	}
	return values
}

// Status summarises whether an account can take part in a migration.
func (pc *PathConfig) Status(account types.Account) AccountStatus {
	paths := pc.Paths(account)

	saveOK := paths.SaveDir != "" && utils.IsDir(paths.SaveDir)
	exeOK := paths.ExecutablePath != "" && utils.CheckFileExists(paths.ExecutablePath) && !utils.IsDir(paths.ExecutablePath)

	switch {
	case saveOK && exeOK:
		return Ready
	case !saveOK && !exeOK:
		return Incomplete
	case !saveOK:
		return SaveMissing
	}
	return ExecutableMissing
}

func (s AccountStatus) String() string {
	switch s {
	case Ready:
		return "Ready"
	case SaveMissing:
		return "Save folder missing"
	case ExecutableMissing:
		return "Rocket League executable missing"
	case Incomplete:
		return "Not configured"
	}
	return fmt.Sprintf("unknown (%s)", string(s))
}
