package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// Load loads configuration from files and environment variables.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()
	l.setupConfigPaths()
	l.setupEnvVars()

	// Config file is optional; defaults + env vars are enough to run.
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithPath loads configuration from a specific file path.
func LoadWithPath(path string) (*Config, error) {
	l := NewLoader()
	l.setDefaults()
	l.setupEnvVars()

	l.v.SetConfigFile(path)

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("directory_url", "https://www.privateinternetaccess.com/vpninfo/servers")
	l.v.SetDefault("store_dir", "/etc/NetworkManager/system-connections")
	l.v.SetDefault("ca_path", "/etc/openvpn/ca.rsa.2048.crt")
	l.v.SetDefault("fetch_timeout", 30)
	l.v.SetDefault("port", 1198)
	l.v.SetDefault("cipher", "AES-128-CBC")
	l.v.SetDefault("auth", "SHA1")
	l.v.SetDefault("dns", "209.222.18.222;209.222.18.218;")
	l.v.SetDefault("embed_password", true)
	l.v.SetDefault("credential_source", "prompt")
	l.v.SetDefault("reload_mode", "dbus")
	l.v.SetDefault("log_level", "info")
	l.v.SetDefault("log_format", "text")
}

// setupConfigPaths configures where to search for config files.
func (l *Loader) setupConfigPaths() {
	l.v.SetConfigName(".pia-provision")
	l.v.SetConfigType("yaml")

	// Search paths in priority order
	l.v.AddConfigPath("/etc/pia-provision")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}
	l.v.AddConfigPath(".")
}

// setupEnvVars configures environment variable handling.
func (l *Loader) setupEnvVars() {
	l.v.SetEnvPrefix("PIA_PROVISION")
	l.v.AutomaticEnv()
}

// validate validates the configuration.
func (l *Loader) validate(cfg *Config) error {
	if cfg.DirectoryURL == "" {
		return fmt.Errorf("directory_url is required")
	}
	if cfg.StoreDir == "" {
		return fmt.Errorf("store_dir is required")
	}
	if cfg.CAPath == "" {
		return fmt.Errorf("ca_path is required")
	}
	if cfg.FetchTimeout < 1 {
		return fmt.Errorf("fetch_timeout must be at least 1 second")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	switch cfg.CredentialSource {
	case "prompt", "keyring":
	default:
		return fmt.Errorf("invalid credential_source: %s (must be prompt or keyring)", cfg.CredentialSource)
	}

	switch cfg.ReloadMode {
	case "dbus", "exec", "none":
	default:
		return fmt.Errorf("invalid reload_mode: %s (must be dbus, exec or none)", cfg.ReloadMode)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log_format: %s (must be text or json)", cfg.LogFormat)
	}

	return nil
}

// CreateDefaultConfig writes a commented default config file to the user's
// home directory. Returns an error if one already exists.
func CreateDefaultConfig() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}

	path := filepath.Join(home, ".pia-provision.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("config file already exists")
	}

	content := `# pia-provision configuration
# Every key can also be set via PIA_PROVISION_* environment variables.

directory_url: https://www.privateinternetaccess.com/vpninfo/servers
store_dir: /etc/NetworkManager/system-connections
ca_path: /etc/openvpn/ca.rsa.2048.crt
fetch_timeout: 30

# OpenVPN parameters written into each profile.
port: 1198
cipher: AES-128-CBC
auth: SHA1
dns: "209.222.18.222;209.222.18.218;"

# When false the password is never written to disk and NetworkManager
# prompts for it at connect time.
embed_password: true

# prompt | keyring
credential_source: prompt

# dbus | exec | none
reload_mode: dbus

log_level: info
log_format: text
`

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}
