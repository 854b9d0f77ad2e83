package vars

var (
	AppName = "RLAccountMigrator"

	// SettingsVersion is the schema version written to the settings file.
	SettingsVersion = "v1.0.0"

	SaveDirName = "DBE_Production"

	// Cloud sync mirrors hold out of date copies of the save folder.
	CloudSyncDirs = []string{"OneDrive", "Dropbox", "Google Drive", "GoogleDrive", "iCloudDrive", "iCloud Drive", "MEGA", "pCloud"}
)
