package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	appDirName = ".smartnotes"
	homeEnvVar = "SMARTNOTES_HOME"
)

// DataDir returns the base data directory. SMARTNOTES_HOME overrides ~/.smartnotes.
func DataDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(homeEnvVar)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

// ConfigPath returns the path to the TOML configuration file.
func ConfigPath() (string, error) {
	return dataFile("config.toml")
}

// SessionPath returns the path to the persisted session.
func SessionPath() (string, error) {
	return dataFile("session.json")
}

// RememberPath returns the path to the remembered-user record.
func RememberPath() (string, error) {
	return dataFile("remember.json")
}

// LocalDBPath returns the default path of the local backend database.
func LocalDBPath() (string, error) {
	return dataFile("smartnotes.db")
}

// UILogPath returns the log file used while the terminal UI owns the screen.
func UILogPath() (string, error) {
	return dataFile("ui.log")
}

// ExportDir returns the default directory for exported notes.
func ExportDir() (string, error) {
	return dataFile("exports")
}

func dataFile(name string) (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name), nil
}
