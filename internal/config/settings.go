package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"smartnotes/internal/types"
)

const (
	defaultAPIBaseURL      = "http://localhost:8000"
	defaultTimeout         = 10 * time.Second
	defaultAITimeout       = 60 * time.Second
	defaultQuietWindow     = 2 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
	defaultFolderName      = "My notes"
)

type Config struct {
	Backend  BackendConfig  `toml:"backend"`
	API      APIConfig      `toml:"api"`
	Local    LocalConfig    `toml:"local"`
	Autosave AutosaveConfig `toml:"autosave"`
	Notes    NotesConfig    `toml:"notes"`
	Logging  LoggingConfig  `toml:"logging"`
	AI       AIConfig       `toml:"ai"`
}

type BackendConfig struct {
	Mode string `toml:"mode"`
}

type APIConfig struct {
	BaseURL   string `toml:"base_url"`
	Timeout   string `toml:"timeout"`
	AITimeout string `toml:"ai_timeout"`
}

type LocalConfig struct {
	DBPath string `toml:"db_path"`
}

type AutosaveConfig struct {
	QuietWindow string `toml:"quiet_window"`
}

type NotesConfig struct {
	DefaultFolder *string `toml:"default_folder"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type AIConfig struct {
	BreakerFailures int    `toml:"breaker_failures"`
	BreakerTimeout  string `toml:"breaker_timeout"`
}

func Default() Config {
	return Config{
		Backend:  BackendConfig{Mode: string(types.BackendRemote)},
		API:      APIConfig{BaseURL: defaultAPIBaseURL},
		Logging:  LoggingConfig{Level: "info"},
		Autosave: AutosaveConfig{QuietWindow: defaultQuietWindow.String()},
	}
}

// Load reads ./.env (if any), the TOML file in the data dir and SMARTNOTES_* overrides.
func Load() (Config, error) {
	_ = godotenv.Load()
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFromPath(path)
}

func LoadFromPath(path string) (Config, error) {
	cfg := Default()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

// Encode renders the effective configuration as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv("SMARTNOTES_BACKEND")); v != "" {
		c.Backend.Mode = v
	}
	if v := strings.TrimSpace(getenv("SMARTNOTES_API_URL")); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(getenv("SMARTNOTES_LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(getenv("SMARTNOTES_DB_PATH")); v != "" {
		c.Local.DBPath = v
	}
	if v := strings.TrimSpace(getenv("SMARTNOTES_AUTOSAVE_WINDOW")); v != "" {
		c.Autosave.QuietWindow = v
	}
}

func (c Config) BackendMode() types.BackendKind {
	switch strings.ToLower(strings.TrimSpace(c.Backend.Mode)) {
	case string(types.BackendLocal):
		return types.BackendLocal
	default:
		return types.BackendRemote
	}
}

func (c Config) APIBaseURL() string {
	url := strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if url == "" {
		return defaultAPIBaseURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	return url
}

// HasAPIBaseURL reports whether an API url was configured explicitly.
func (c Config) HasAPIBaseURL() bool {
	return strings.TrimSpace(c.API.BaseURL) != ""
}

func (c Config) Timeout() time.Duration {
	return parseDuration(c.API.Timeout, defaultTimeout)
}

func (c Config) AITimeout() time.Duration {
	return parseDuration(c.API.AITimeout, defaultAITimeout)
}

func (c Config) QuietWindow() time.Duration {
	return parseDuration(c.Autosave.QuietWindow, defaultQuietWindow)
}

func (c Config) LocalDBPath() (string, error) {
	path := strings.TrimSpace(c.Local.DBPath)
	if path == "" {
		return LocalDBPath()
	}
	return resolveConfigPath(path)
}

// DefaultFolder is the folder created for users without any. Empty disables it.
func (c Config) DefaultFolder() string {
	if c.Notes.DefaultFolder == nil {
		return defaultFolderName
	}
	return strings.TrimSpace(*c.Notes.DefaultFolder)
}

func (c Config) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

func (c Config) BreakerFailures() uint32 {
	if c.AI.BreakerFailures <= 0 {
		return defaultBreakerFailures
	}
	return uint32(c.AI.BreakerFailures)
}

func (c Config) BreakerTimeout() time.Duration {
	return parseDuration(c.AI.BreakerTimeout, defaultBreakerTimeout)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func resolveConfigPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is required")
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, path), nil
}
