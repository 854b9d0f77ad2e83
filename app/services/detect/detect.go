package detect

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Maizu/RLAccountMigrator/app/config"
	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/Maizu/RLAccountMigrator/app/utils"
	"github.com/Maizu/RLAccountMigrator/app/vars"
	"github.com/shirou/gopsutil/disk"
)

// DefaultMaxDepth bounds how far below a filesystem root the scan descends.
// Proton prefixes put the save folder about sixteen levels down.
const DefaultMaxDepth = 18

const (
	steamSaveParent = "SaveData"
	epicSaveParent  = "SaveDataEpic"
)

// Detector fills unset account paths, first from the standard install
// locations and then by scanning mounted filesystems.
type Detector struct {
	Home     string
	Roots    []string
	MaxDepth int
}

func NewDetector() *Detector {
	home, err := os.UserHomeDir()
	if err != nil {
		utils.WarnLogger.Printf("Couldn't resolve home folder: %s\r\n", err.Error())
	}
	return &Detector{Home: home, MaxDepth: DefaultMaxDepth}
}

// MountedRoots lists the mount points of physical filesystems.
func MountedRoots() ([]string, error) {
	partitions, err := disk.Partitions(false)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	roots := make([]string, 0, len(partitions))
	for _, p := range partitions {
		if p.Mountpoint == "" {
			continue
		}
		if _, ok := seen[p.Mountpoint]; ok {
			continue
		}
		seen[p.Mountpoint] = struct{}{}
		roots = append(roots, p.Mountpoint)
	}
	return roots, nil
}

// Detect fills every unset slot in pc it can find and returns the newly set
// keys with their values. Unreadable folders are skipped. It only fails when
// no root could be scanned at all.
func (d *Detector) Detect(ctx context.Context, pc *config.PathConfig, defaultBackup string) (map[string]string, error) {
	found := make(map[string]string)

	d.checkKnownLocations(pc, found)

	if d.missing(pc) {
		if err := d.scan(ctx, pc, found); err != nil {
			return found, err
		}
	}

	if pc.BackupPath == "" && defaultBackup != "" {
		if err := pc.SetBackupPath(defaultBackup); err != nil {
			utils.WarnLogger.Printf("Couldn't use %s as backup folder: %s\r\n", defaultBackup, err.Error())
		} else {
			found["paths.backup_path"] = defaultBackup
		}
	}

	for key, value := range found {
		utils.InfoLogger.Printf("Detected %s: %s\r\n", key, value)
	}
	return found, nil
}

func (d *Detector) missing(pc *config.PathConfig) bool {
	for _, account := range types.Accounts() {
		paths := pc.Paths(account)
		if paths.SaveDir == "" || paths.ExecutablePath == "" {
			return true
		}
	}
	return false
}

func (d *Detector) resolve(p string) string {
	if filepath.IsAbs(p) || d.Home == "" {
		return p
	}
	return filepath.Join(d.Home, p)
}

func (d *Detector) checkKnownLocations(pc *config.PathConfig, found map[string]string) {
	known := map[types.Account]struct {
		saves []string
		exes  []string
	}{
		types.Steam: {vars.SteamSaveDirs, vars.SteamExePaths},
		types.Epic:  {vars.EpicSaveDirs, vars.EpicExePaths},
	}

	for _, account := range types.Accounts() {
		for _, candidate := range known[account].saves {
			d.trySave(pc, account, d.resolve(candidate), found)
		}
		for _, candidate := range known[account].exes {
			d.tryExe(pc, account, d.resolve(candidate), found)
		}
	}
}

func (d *Detector) trySave(pc *config.PathConfig, account types.Account, dir string, found map[string]string) bool {
	if pc.Paths(account).SaveDir != "" || !utils.IsDir(dir) {
		return false
	}
	if err := pc.SetSavePath(account, dir); err != nil {
		utils.DebugLogger.Printf("Skipping %s: %s\r\n", dir, err.Error())
		return false
	}
	found[string(account)+".save_path"] = dir
	return true
}

func (d *Detector) tryExe(pc *config.PathConfig, account types.Account, path string, found map[string]string) bool {
	if pc.Paths(account).ExecutablePath != "" || !utils.CheckFileExists(path) {
		return false
	}
	if err := pc.SetExecutablePath(account, path); err != nil {
		return false
	}
	found[string(account)+".rocket_league_path"] = path
	return true
}

func (d *Detector) scan(ctx context.Context, pc *config.PathConfig, found map[string]string) error {
	roots := d.Roots
	if len(roots) == 0 {
		mounted, err := MountedRoots()
		if err != nil {
			return &types.UnexpectedError{Op: "list mounted filesystems", Err: err}
		}
		roots = mounted
	}

	maxDepth := d.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	scanned := 0
	var lastErr error

	for _, root := range roots {
		if !d.missing(pc) {
			break
		}

		utils.InfoLogger.Printf("Scanning %s for Rocket League files\r\n", root)
		err := d.scanRoot(ctx, root, maxDepth, pc, found)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			utils.WarnLogger.Printf("Couldn't scan %s: %s\r\n", root, err.Error())
			lastErr = err
			continue
		}
		scanned++
	}

	if scanned == 0 && lastErr != nil {
		return &types.UnexpectedError{Op: "scan for Rocket League files", Err: lastErr}
	}
	return nil
}

func (d *Detector) scanRoot(ctx context.Context, root string, maxDepth int, pc *config.PathConfig, found map[string]string) error {
	if _, err := os.Stat(root); err != nil {
		return err
	}

	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			// unreadable entries are skipped, never fatal
			if entry != nil && entry.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if path == root {
				return nil
			}
			if skipDir(rel, entry.Name()) {
				return fs.SkipDir
			}
			if strings.Count(rel, "/")+1 > maxDepth {
				return fs.SkipDir
			}

			if entry.Name() == vars.SaveDirName {
				switch filepath.Base(filepath.Dir(path)) {
				case epicSaveParent:
					d.trySave(pc, types.Epic, path, found)
				case steamSaveParent:
					d.trySave(pc, types.Steam, path, found)
				}
				return fs.SkipDir
			}
			return nil
		}

		if strings.EqualFold(entry.Name(), vars.ExeName) {
			lower := strings.ToLower(rel)
			switch {
			case strings.Contains(lower, "epic"):
				d.tryExe(pc, types.Epic, path, found)
			case strings.Contains(lower, "steam"):
				d.tryExe(pc, types.Steam, path, found)
			}
		}

		if !d.missing(pc) {
			return fs.SkipAll
		}
		return nil
	})
}

// skipDir reports whether a folder is a cloud sync mirror or a system folder
// that never holds game files.
func skipDir(rel, name string) bool {
	for _, mirror := range vars.CloudSyncDirs {
		if strings.EqualFold(name, mirror) {
			return true
		}
	}
	for _, skip := range vars.ScanSkipDirs {
		skip = filepath.ToSlash(skip)
		if strings.EqualFold(rel, skip) || strings.EqualFold(name, skip) {
			return true
		}
	}
	return false
}
