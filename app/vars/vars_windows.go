package vars

var (
	// Game
	ExeName     = "RocketLeague.exe"
	ProcessName = "RocketLeague"

	// Default install locations, relative to the user's home directory when
	// not absolute.
	SteamSaveDirs = []string{
		`Documents\My Games\Rocket League\TAGame\SaveData\DBE_Production`,
	}
	EpicSaveDirs = []string{
		`Documents\My Games\Rocket League\TAGame\SaveDataEpic\DBE_Production`,
	}
	SteamExePaths = []string{
		`C:\Program Files (x86)\Steam\steamapps\common\rocketleague\Binaries\Win64\RocketLeague.exe`,
		`C:\Program Files\Steam\steamapps\common\rocketleague\Binaries\Win64\RocketLeague.exe`,
	}
	EpicExePaths = []string{
		`C:\Program Files\Epic Games\rocketleague\Binaries\Win64\RocketLeague.exe`,
		`C:\Program Files (x86)\Epic Games\rocketleague\Binaries\Win64\RocketLeague.exe`,
	}

	// Directories never descended into during the drive scan.
	ScanSkipDirs = []string{"Windows", "$Recycle.Bin", "System Volume Information", "ProgramData\\Microsoft", "AppData\\Local\\Temp"}
)
