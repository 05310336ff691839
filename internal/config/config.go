// Package config handles configuration loading, validation, and persistence
// for the AxolotlClient backend companion.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultRESTPort   = 5100

	DefaultBaseURL   = "https://api.axolotlclient.com/v1"
	DefaultSocketURL = "wss://api.axolotlclient.com/v1/gateway"
)

// Consent states for the privacy note. The zero value is deliberately
// distinct from both accepted and denied so an unanswered prompt can be
// told apart from a refusal.
const (
	ConsentUnset    = "unset"
	ConsentAccepted = "accepted"
	ConsentDenied   = "denied"
)

// Config is the root configuration structure for the companion.
type Config struct {
	mu   sync.RWMutex
	path string

	APIData         APIData         `json:"api_data"`
	ApplicationData ApplicationData `json:"application_data"`
}

// APIData contains backend session specific configuration.
type APIData struct {
	// Feature switch for the whole social backend integration.
	Enabled bool `json:"api_enabled"`

	// Gate for verbose request/response logging and UI notifications.
	DetailedLogging bool `json:"api_detailed_logging"`

	// Privacy note state: unset / accepted / denied.
	PrivacyAccepted string `json:"api_privacy_accepted"`

	// Presence reporting interval in seconds.
	StatusUpdateInterval int `json:"api_status_update_interval_sec"`

	// Backend endpoints
	BaseURL   string `json:"api_base_url"`
	SocketURL string `json:"api_socket_url"`

	// Per-request timeout in seconds.
	RequestTimeout int `json:"api_request_timeout_sec"`

	// Local account identity
	Account AccountData `json:"account"`
}

// AccountData identifies the local game account used to authenticate.
type AccountData struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`

	// Offline-mode accounts cannot authenticate against the backend.
	Offline bool `json:"offline"`

	// Optional PluralKit token for system identity proxying.
	PkToken string `json:"pk_token"`
}

// ApplicationData contains companion application configuration.
type ApplicationData struct {
	REST    RESTConfig    `json:"rest"`
	MQTT    MQTTConfig    `json:"mqtt"`
	History HistoryConfig `json:"history"`
	Logging LoggingConfig `json:"logging"`
}

// RESTConfig holds settings for the local management REST API.
type RESTConfig struct {
	Enabled        bool     `json:"enabled"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"broker_url"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	ClientID  string `json:"client_id"`
	Topic     string `json:"topic"`
}

// HistoryConfig holds chat history persistence settings.
type HistoryConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		APIData: APIData{
			Enabled:              true,
			DetailedLogging:      false,
			PrivacyAccepted:      ConsentUnset,
			StatusUpdateInterval: 40,
			BaseURL:              DefaultBaseURL,
			SocketURL:            DefaultSocketURL,
			RequestTimeout:       30,
		},
		ApplicationData: ApplicationData{
			REST: RESTConfig{
				Enabled: true,
				Port:    DefaultRESTPort,
			},
			MQTT: MQTTConfig{
				Enabled: false,
				Port:    8883,
				UseTLS:  true,
				Topic:   "axolotlclient/session",
			},
			History: HistoryConfig{
				Enabled: true,
				Path:    filepath.Join("data", "history.db"),
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxSizeMB:  10,
				MaxBackups: 5,
			},
		},
	}
}

// Load reads configuration from a JSON file.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save config to persist any new default fields added in code updates.
	// This ensures config.json always reflects the complete set of options.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		return nil
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetAPIData returns a copy of the backend session configuration.
func (c *Config) GetAPIData() APIData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.APIData
}

// SetAPIData updates the backend session configuration.
func (c *Config) SetAPIData(data APIData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.APIData = data
}

// GetApplicationData returns a copy of the application data configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// SetApplicationData updates the application data configuration.
func (c *Config) SetApplicationData(data ApplicationData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ApplicationData = data
}

// Enabled reports whether the backend integration is switched on.
func (c *Config) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.APIData.Enabled
}

// SetEnabled flips the backend integration feature switch.
func (c *Config) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.APIData.Enabled = enabled
}

// DetailedLogging reports whether verbose network logging is enabled.
func (c *Config) DetailedLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.APIData.DetailedLogging
}

// PrivacyConsent returns the current privacy note state.
func (c *Config) PrivacyConsent() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.APIData.PrivacyAccepted {
	case ConsentAccepted, ConsentDenied:
		return c.APIData.PrivacyAccepted
	default:
		return ConsentUnset
	}
}

// SetPrivacyConsent stores the privacy note answer and persists it,
// so the user is only asked once.
func (c *Config) SetPrivacyConsent(state string) {
	c.mu.Lock()
	c.APIData.PrivacyAccepted = state
	c.mu.Unlock()

	if err := c.Save(); err != nil {
		log.Warn().Err(err).Msg("failed to persist privacy consent")
	}
}

// UpdateAPIField updates a specific field in the backend session data.
func (c *Config) UpdateAPIField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, _ := json.Marshal(c.APIData)
	m := make(map[string]interface{})
	json.Unmarshal(data, &m)

	m[key] = value

	updated, _ := json.Marshal(m)
	if err := json.Unmarshal(updated, &c.APIData); err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}

	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// IsFirstRun returns true if the configuration needs initial setup.
func (c *Config) IsFirstRun() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.APIData.Account.UUID == ""
}
