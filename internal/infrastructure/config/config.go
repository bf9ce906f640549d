package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for FilaCore.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Storage      StorageConfig      `yaml:"storage"`
	Database     DatabaseConfig     `yaml:"database"`
	Printers     PrintersConfig     `yaml:"printers"`
	Certificates CertificatesConfig `yaml:"certificates"`
	API          APIConfig          `yaml:"api"`
	WebSocket    WebSocketConfig    `yaml:"websocket"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
	Security     SecurityConfig     `yaml:"security"`
}

// StorageConfig locates the flat JSON collections and the certificate tree.
type StorageConfig struct {
	DataDir       string `yaml:"data_dir"`
	PrintersFile  string `yaml:"printers_file"`
	FilamentsFile string `yaml:"filaments_file"`
	ProfilesFile  string `yaml:"profiles_file"`
	CertRoot      string `yaml:"cert_root"`
	CertFileName  string `yaml:"cert_file_name"`
}

// DatabaseConfig contains SQLite settings for the command history.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// PrintersConfig describes how FilaCore talks to the broker embedded in each printer.
type PrintersConfig struct {
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	QoS      int    `yaml:"qos"`

	// ConnectTimeout bounds the TLS + CONNECT handshake (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`

	// StateTimeout and FilamentTimeout are the reply deadlines (seconds)
	// for the query-state and set-filament commands.
	StateTimeout    int `yaml:"state_timeout"`
	FilamentTimeout int `yaml:"filament_timeout"`

	// SerializeCommands gates execution so that only one command per printer
	// is in flight. Off by default.
	SerializeCommands bool `yaml:"serialize_commands"`

	TLS PrinterTLSConfig `yaml:"tls"`
}

// PrinterTLSConfig controls how the printer's self-signed certificate is trusted.
type PrinterTLSConfig struct {
	// VerifyHostname enables hostname/IP SAN checks against the printer address.
	// Printer certificates are issued for the serial, not the LAN address, so this
	// stays false in normal deployments. The chain is verified against the stored
	// bundle either way.
	VerifyHostname bool `yaml:"verify_hostname"`
}

// CertificatesConfig configures the external TLS probe.
type CertificatesConfig struct {
	Binary  string `yaml:"binary"`
	Timeout int    `yaml:"timeout"`
	Port    int    `yaml:"port"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the live report stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
	StreamDuration int `yaml:"stream_duration"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings. An empty secret disables authentication.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl"` // minutes
}

// minJWTSecretLength is the shortest accepted HMAC secret.
const minJWTSecretLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FILACORE_SECTION_KEY
// For example: FILACORE_STORAGE_DATA_DIR, FILACORE_API_PORT
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOptional is Load, except that a missing file is not an error: the
// defaults are used with environment overrides applied.
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		applyEnvOverrides(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

// Default returns a Config with sensible defaults. It is also what the binary
// runs with when no config file exists.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:       "./static",
			PrintersFile:  "printers.json",
			FilamentsFile: "filacore_spools.json",
			ProfilesFile:  "druckprofile.json",
			CertRoot:      "./static/printers",
			CertFileName:  "blcert.pem",
		},
		Database: DatabaseConfig{
			Path:        "./data/filacore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Printers: PrintersConfig{
			Port:            8883,
			Username:        "bblp",
			QoS:             0,
			ConnectTimeout:  10,
			StateTimeout:    5,
			FilamentTimeout: 10,
		},
		Certificates: CertificatesConfig{
			Binary:  "openssl",
			Timeout: 15,
			Port:    8883,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			StreamDuration: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: 60 * 24,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FILACORE_STORAGE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("FILACORE_STORAGE_CERT_ROOT"); v != "" {
		cfg.Storage.CertRoot = v
	}
	if v := os.Getenv("FILACORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FILACORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("FILACORE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("FILACORE_CERTIFICATES_BINARY"); v != "" {
		cfg.Certificates.Binary = v
	}
	if v := os.Getenv("FILACORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("FILACORE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Storage.DataDir == "" {
		errs = append(errs, "storage.data_dir is required")
	}
	if c.Storage.CertRoot == "" {
		errs = append(errs, "storage.cert_root is required")
	}
	if c.Storage.CertFileName == "" || strings.ContainsAny(c.Storage.CertFileName, `/\`) {
		errs = append(errs, "storage.cert_file_name must be a plain file name")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Printers.Port < 1 || c.Printers.Port > 65535 {
		errs = append(errs, "printers.port must be between 1 and 65535")
	}
	if c.Printers.Username == "" {
		errs = append(errs, "printers.username is required")
	}
	if c.Printers.QoS < 0 || c.Printers.QoS > 2 {
		errs = append(errs, "printers.qos must be 0, 1, or 2")
	}
	if c.Printers.ConnectTimeout <= 0 || c.Printers.StateTimeout <= 0 || c.Printers.FilamentTimeout <= 0 {
		errs = append(errs, "printers timeouts must be positive")
	}

	if c.Certificates.Binary == "" {
		errs = append(errs, "certificates.binary is required")
	}
	if c.Certificates.Timeout <= 0 {
		errs = append(errs, "certificates.timeout must be positive")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.WebSocket.StreamDuration <= 0 {
		errs = append(errs, "websocket.stream_duration must be positive")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Authentication is optional on a trusted LAN, but a configured secret must be strong.
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PrintersPath returns the full path of the printer collection.
func (c *Config) PrintersPath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.PrintersFile)
}

// FilamentsPath returns the full path of the filament collection.
func (c *Config) FilamentsPath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.FilamentsFile)
}

// ProfilesPath returns the full path of the print profile catalogue.
func (c *Config) ProfilesPath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.ProfilesFile)
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// Seconds converts a whole-second config value into a Duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
