package detect

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Maizu/RLAccountMigrator/app/config"
	"github.com/Maizu/RLAccountMigrator/app/types"
	"github.com/Maizu/RLAccountMigrator/app/vars"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkSaveDir(t *testing.T, dir string, saves ...string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, s := range saves {
		require.NoError(t, os.WriteFile(filepath.Join(dir, s), []byte("x"), 0644))
	}
	return dir
}

func mkExe(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("bin"), 0755))
	return path
}

func newPathConfig(t *testing.T) *config.PathConfig {
	t.Helper()
	pc, err := config.LoadPathConfig(filepath.Join(t.TempDir(), config.SettingsFileName))
	require.NoError(t, err)
	return pc
}

func TestDetect_KnownLocations(t *testing.T) {
	home := t.TempDir()
	steamSaves := mkSaveDir(t, filepath.Join(home, filepath.FromSlash(vars.SteamSaveDirs[0])), "a1b2.save")
	epicSaves := mkSaveDir(t, filepath.Join(home, filepath.FromSlash(vars.EpicSaveDirs[0])), "c3d4.save")

	pc := newPathConfig(t)
	backup := filepath.Join(t.TempDir(), "backup")

	// an empty root keeps the scan away from the real filesystem
	d := &Detector{Home: home, Roots: []string{t.TempDir()}, MaxDepth: 4}
	found, err := d.Detect(context.Background(), pc, backup)
	require.NoError(t, err)

	assert.Equal(t, steamSaves, found["steam.save_path"])
	assert.Equal(t, epicSaves, found["epic.save_path"])
	assert.Equal(t, backup, found["paths.backup_path"])
	assert.Equal(t, steamSaves, pc.SteamSavePath)
	assert.Equal(t, backup, pc.BackupPath)
	assert.DirExists(t, backup)
}

func TestDetect_ScanFindsSavesAndExecutables(t *testing.T) {
	root := t.TempDir()
	epicSaves := mkSaveDir(t, filepath.Join(root, "Users", "player", "Documents", "My Games", "Rocket League", "TAGame", "SaveDataEpic", "DBE_Production"), "c3d4.save")
	steamSaves := mkSaveDir(t, filepath.Join(root, "Users", "player", "Documents", "My Games", "Rocket League", "TAGame", "SaveData", "DBE_Production"), "a1b2.save", "a1b2_1.save")
	epicExe := mkExe(t, filepath.Join(root, "Epic Games", "rocketleague", "Binaries", "Win64", "RocketLeague.exe"))
	steamExe := mkExe(t, filepath.Join(root, "Steam", "steamapps", "common", "rocketleague", "Binaries", "Win64", "RocketLeague.exe"))

	pc := newPathConfig(t)
	d := &Detector{Home: t.TempDir(), Roots: []string{root}, MaxDepth: 12}

	found, err := d.Detect(context.Background(), pc, "")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"steam.save_path":          steamSaves,
		"epic.save_path":           epicSaves,
		"steam.rocket_league_path": steamExe,
		"epic.rocket_league_path":  epicExe,
	}, found)
	assert.Equal(t, types.AccountPaths{SaveDir: epicSaves, ExecutablePath: epicExe}, pc.Paths(types.Epic))
}

func TestDetect_SkipsCloudMirrors(t *testing.T) {
	root := t.TempDir()
	mkSaveDir(t, filepath.Join(root, "OneDrive", "Documents", "My Games", "Rocket League", "TAGame", "SaveData", "DBE_Production"), "a1b2.save")

	pc := newPathConfig(t)
	d := &Detector{Home: t.TempDir(), Roots: []string{root}, MaxDepth: 12}

	found, err := d.Detect(context.Background(), pc, "")
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Empty(t, pc.SteamSavePath)
}

func TestDetect_KeepsConfiguredSlots(t *testing.T) {
	root := t.TempDir()
	mkSaveDir(t, filepath.Join(root, "TAGame", "SaveData", "DBE_Production"), "a1b2.save")
	configured := mkSaveDir(t, filepath.Join(t.TempDir(), "mine"), "beef.save")

	pc := newPathConfig(t)
	require.NoError(t, pc.SetSavePath(types.Steam, configured))

	d := &Detector{Home: t.TempDir(), Roots: []string{root}, MaxDepth: 12}
	found, err := d.Detect(context.Background(), pc, "")
	require.NoError(t, err)

	assert.NotContains(t, found, "steam.save_path")
	assert.Equal(t, configured, pc.SteamSavePath)
}

func TestDetect_DepthLimit(t *testing.T) {
	root := t.TempDir()
	mkSaveDir(t, filepath.Join(root, "a", "b", "c", "d", "e", "SaveData", "DBE_Production"), "a1b2.save")

	pc := newPathConfig(t)
	d := &Detector{Home: t.TempDir(), Roots: []string{root}, MaxDepth: 3}

	found, err := d.Detect(context.Background(), pc, "")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDetect_UnreadableRootsFail(t *testing.T) {
	pc := newPathConfig(t)
	d := &Detector{Home: t.TempDir(), Roots: []string{filepath.Join(t.TempDir(), "missing")}}

	_, err := d.Detect(context.Background(), pc, "")
	var unexpected *types.UnexpectedError
	assert.ErrorAs(t, err, &unexpected)
}

func TestDetect_Cancelled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "x"), 0755))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &Detector{Home: t.TempDir(), Roots: []string{root}}
	_, err := d.Detect(ctx, newPathConfig(t), "")
	assert.ErrorIs(t, err, context.Canceled)
}
