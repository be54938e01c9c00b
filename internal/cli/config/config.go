package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var configDir string
var configFilePath string

// getConfigDir returns platform-specific config directory
func getConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		// Windows: %LOCALAPPDATA%\sidechain\trendctl
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = home
		}
		return filepath.Join(appData, "sidechain", "trendctl"), nil
	}

	// Unix-like (macOS, Linux): ~/.config/sidechain/trendctl
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sidechain", "trendctl"), nil
}

// Init loads defaults, then the config file, then TRENDCTL_* environment
// overrides (TRENDCTL_API_BASE_URL sets api.base_url)
func Init(configPath string) error {
	var err error
	if configPath != "" {
		configDir = filepath.Dir(configPath)
		configFilePath = configPath
	} else {
		configDir, err = getConfigDir()
		if err != nil {
			return err
		}
		configFilePath = filepath.Join(configDir, "config.toml")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	viper.Reset()
	viper.SetConfigType("toml")
	setDefaults()

	viper.SetEnvPrefix("TRENDCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigFile(configFilePath)
	_ = viper.ReadInConfig()

	return nil
}

func setDefaults() {
	viper.SetDefault("api.base_url", "http://localhost:8787")
	viper.SetDefault("api.timeout", 30)
	viper.SetDefault("api.user_id", "")
	viper.SetDefault("output.format", "text")
	viper.SetDefault("log.file", filepath.Join(configDir, "trendctl.log"))
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetString returns a string configuration value
func GetString(key string) string {
	value := viper.GetString(key)
	if key == "log.file" {
		return expandPath(value)
	}
	return value
}

// GetInt returns an int configuration value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// Timeout returns api.timeout as a duration
func Timeout() time.Duration {
	return time.Duration(viper.GetInt("api.timeout")) * time.Second
}

// Set overrides a value for this process only
func Set(key string, value interface{}) {
	viper.Set(key, value)
}

// Save writes the current configuration to the config file
func Save() error {
	return viper.WriteConfigAs(configFilePath)
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return configFilePath
}
