//go:build !windows

package vars

var (
	// Game, running through Proton or Heroic
	ExeName     = "RocketLeague.exe"
	ProcessName = "RocketLeague"

	SteamSaveDirs = []string{
		".steam/steam/steamapps/compatdata/252950/pfx/drive_c/users/steamuser/Documents/My Games/Rocket League/TAGame/SaveData/DBE_Production",
		".local/share/Steam/steamapps/compatdata/252950/pfx/drive_c/users/steamuser/Documents/My Games/Rocket League/TAGame/SaveData/DBE_Production",
	}
	EpicSaveDirs = []string{
		"Games/Heroic/Prefixes/default/Rocket League/drive_c/users/steamuser/Documents/My Games/Rocket League/TAGame/SaveDataEpic/DBE_Production",
		".steam/steam/steamapps/compatdata/252950/pfx/drive_c/users/steamuser/Documents/My Games/Rocket League/TAGame/SaveDataEpic/DBE_Production",
	}
	SteamExePaths = []string{
		".steam/steam/steamapps/common/rocketleague/Binaries/Win64/RocketLeague.exe",
		".local/share/Steam/steamapps/common/rocketleague/Binaries/Win64/RocketLeague.exe",
	}
	EpicExePaths = []string{
		"Games/Heroic/rocketleague/Binaries/Win64/RocketLeague.exe",
	}

	ScanSkipDirs = []string{"proc", "sys", "dev", "run", "tmp", "snap", "var/lib/docker", ".cache"}
)
