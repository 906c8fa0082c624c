// Package conf loads, validates and persists lesionscan settings.
package conf

import (
	"crypto/rand"
	"embed"
	"encoding/base64"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/lesionscan/lesionscan/internal/errors"
	"github.com/lesionscan/lesionscan/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings holds the complete service configuration.
type Settings struct {
	Debug bool `yaml:"debug"`

	Main struct {
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
	} `yaml:"main"`

	WebServer     WebServerSettings     `yaml:"webserver"`
	Classifier    ClassifierSettings    `yaml:"classifier"`
	Imaging       ImagingSettings       `yaml:"imaging"`
	Uploads       UploadSettings        `yaml:"uploads"`
	Output        OutputSettings        `yaml:"output"`
	Security      SecuritySettings      `yaml:"security"`
	Logging       logger.LoggingConfig  `yaml:"logging"`
	Observability ObservabilitySettings `yaml:"observability"`
	Telemetry     TelemetrySettings     `yaml:"telemetry"`
}

// WebServerSettings configures the HTTP listener.
type WebServerSettings struct {
	Port           string        `yaml:"port"`
	StaticDir      string        `yaml:"staticdir"`      // served-static root; uploads live in <staticdir>/uploads
	MaxUploadMB    int           `yaml:"maxuploadmb"`    // request body limit
	MaxConnections int           `yaml:"maxconnections"` // 0 means unlimited
	ReadTimeout    time.Duration `yaml:"readtimeout"`
	WriteTimeout   time.Duration `yaml:"writetimeout"`
}

// ClassifierSettings configures model loading and result caching.
type ClassifierSettings struct {
	ModelPath string        `yaml:"modelpath"`
	Threads   int           `yaml:"threads"`  // 0 picks a count from the CPU topology
	CacheTTL  time.Duration `yaml:"cachettl"` // 0 disables the result cache
}

// ImagingSettings bounds decoder work.
type ImagingSettings struct {
	MaxPixels int `yaml:"maxpixels"`
}

// Upload naming modes.
const (
	NamingOriginal = "original"
	NamingUnique   = "unique"
)

// UploadSettings configures the upload store.
type UploadSettings struct {
	Naming    string `yaml:"naming"`    // "original" overwrites on collision, "unique" appends a random suffix
	MinFreeMB uint64 `yaml:"minfreemb"` // refuse writes below this much free space; 0 disables the check
}

// OutputSettings selects the relational store.
type OutputSettings struct {
	SQLite struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"sqlite"`
	MySQL struct {
		Enabled  bool   `yaml:"enabled"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
	} `yaml:"mysql"`
}

// Password hash algorithms.
const (
	HashSHA256 = "sha256"
	HashBcrypt = "bcrypt"
)

// SecuritySettings configures sessions, hashing and rate limiting.
type SecuritySettings struct {
	SessionSecret string        `yaml:"sessionsecret"`
	SessionPath   string        `yaml:"sessionpath"` // empty keeps sessions in signed cookies
	SessionMaxAge time.Duration `yaml:"sessionmaxage"`
	SecureCookie  bool          `yaml:"securecookie"`
	PasswordHash  string        `yaml:"passwordhash"`
	RateLimit     float64       `yaml:"ratelimit"` // auth requests per second per client
	RateBurst     int           `yaml:"rateburst"`
}

// ObservabilitySettings configures the Prometheus endpoint.
type ObservabilitySettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // empty serves /metrics on the main server
}

// TelemetrySettings configures opt-in Sentry error reporting.
type TelemetrySettings struct {
	Enabled     bool   `yaml:"enabled"`
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

var (
	settingsInstance   *Settings
	settingsMutex      sync.RWMutex
	once               sync.Once
	configFileOverride string
)

// SetConfigFile makes Load read exactly this file instead of searching the
// default paths.
func SetConfigFile(path string) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	configFileOverride = path
}

// Load reads the configuration file, applies environment overrides and
// validates the result.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "init-viper").
			Build()
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults and environment bindings and reads the config file,
// creating one from the embedded template when none exists.
func initViper() error {
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if configFileOverride != "" {
		viper.SetConfigFile(configFileOverride)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFileOverride, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}
	return []string{
		".",
		filepath.Join(homeDir, ".config", "lesionscan"),
		"/etc/lesionscan",
	}, nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it.
func createDefaultConfig(dir string) error {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		return err
	}

	// A fresh install gets its own session secret
	if viper.GetString("security.sessionsecret") == "" {
		viper.Set("security.sessionsecret", GenerateRandomSecret())
		if err := viper.WriteConfig(); err != nil {
			return fmt.Errorf("error persisting session secret: %w", err)
		}
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	return nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings, loading them on first use.
func Setting() *Settings {
	once.Do(func() {
		if GetSettings() == nil {
			if _, err := Load(); err != nil {
				GetLogger().Error("error loading settings", logger.Error(err))
				os.Exit(1)
			}
		}
	})
	return GetSettings()
}

// MarshalYAML renders settings as YAML with secrets masked.
func MarshalYAML(settings *Settings) ([]byte, error) {
	masked := *settings
	if masked.Security.SessionSecret != "" {
		masked.Security.SessionSecret = "********"
	}
	if masked.Output.MySQL.Password != "" {
		masked.Output.MySQL.Password = "********"
	}
	if masked.Telemetry.DSN != "" {
		masked.Telemetry.DSN = "********"
	}
	return yaml.Marshal(&masked)
}

// GenerateRandomSecret returns 32 random bytes encoded as URL-safe base64.
func GenerateRandomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		GetLogger().Error("failed to generate random secret", logger.Error(err))
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// UploadDir returns the absolute-or-relative directory holding uploads.
func (s *Settings) UploadDir() string {
	return filepath.Join(s.WebServer.StaticDir, "uploads")
}
