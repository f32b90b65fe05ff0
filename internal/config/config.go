package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: CFS_SERVER_ADDR overrides
// server.addr.
const EnvPrefix = "CFS"

// Config represents the main configuration for cfs.
type Config struct {
	BaseDir    string           `toml:"base_dir" mapstructure:"base_dir" validate:"required"`
	LogDir     string           `toml:"log_dir" mapstructure:"log_dir" validate:"required"`
	LogLevel   string           `toml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat  string           `toml:"log_format" mapstructure:"log_format" validate:"omitempty,oneof=text json"`
	Server     ServerConfig     `toml:"server" mapstructure:"server"`
	Storage    StorageConfig    `toml:"storage" mapstructure:"storage"`
	Database   DatabaseConfig   `toml:"database" mapstructure:"database"`
	Auth       AuthConfig       `toml:"auth" mapstructure:"auth"`
	Upload     UploadConfig     `toml:"upload" mapstructure:"upload"`
	Encryption EncryptionConfig `toml:"encryption" mapstructure:"encryption"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr                 string        `toml:"addr" mapstructure:"addr" validate:"required"`
	ReadHeaderTimeout    time.Duration `toml:"read_header_timeout" mapstructure:"read_header_timeout"`
	ShutdownTimeout      time.Duration `toml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	ReconcileOnStart     bool          `toml:"reconcile_on_start" mapstructure:"reconcile_on_start"`
	MaxConcurrentUploads int           `toml:"max_concurrent_uploads" mapstructure:"max_concurrent_uploads" validate:"gte=0"`
}

// StorageConfig represents configuration for the object store.
// This uses a tagged union pattern - the Type field determines which keys of
// Options are relevant:
//   - filesystem: root
//   - s3: bucket, region, endpoint, access_key_id, secret_access_key,
//     key_prefix, part_size, force_path_style
type StorageConfig struct {
	Type              string         `toml:"type" mapstructure:"type" validate:"required,oneof=memory filesystem s3"`
	UserFolderPattern string         `toml:"user_folder_pattern" mapstructure:"user_folder_pattern" validate:"omitempty,userfolder"`
	CallTimeout       time.Duration  `toml:"call_timeout" mapstructure:"call_timeout"`
	TransferTimeout   time.Duration  `toml:"transfer_timeout" mapstructure:"transfer_timeout"`
	Fanout            int            `toml:"fanout" mapstructure:"fanout" validate:"gte=0,lte=64"`
	Options           map[string]any `toml:"options,omitempty" mapstructure:"options"`
}

// DatabaseConfig represents configuration for the metadata database.
type DatabaseConfig struct {
	Type    string `toml:"type" mapstructure:"type" validate:"required,oneof=sqlite memory"` // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty" mapstructure:"data_dir"`                         // only used for type=sqlite
}

// AuthConfig configures sessions.
type AuthConfig struct {
	SessionStore string        `toml:"session_store" mapstructure:"session_store" validate:"required,oneof=memory badger"`
	SessionDir   string        `toml:"session_dir,omitempty" mapstructure:"session_dir"` // only used for session_store=badger
	SessionTTL   time.Duration `toml:"session_ttl" mapstructure:"session_ttl"`
	CookieName   string        `toml:"cookie_name" mapstructure:"cookie_name"`
	SecureCookie bool          `toml:"secure_cookie" mapstructure:"secure_cookie"`
}

// UploadConfig configures upload spooling.
type UploadConfig struct {
	Type       string   `toml:"type" mapstructure:"type" validate:"required,oneof=memory filesystem"` // spool: "memory" or "filesystem"
	SpoolDir   string   `toml:"spool_dir,omitempty" mapstructure:"spool_dir"`                         // only used for type=filesystem
	MaxSize    int64    `toml:"max_size" mapstructure:"max_size" validate:"gt=0"`                     // max bytes per upload batch
	Ignore     []string `toml:"ignore" mapstructure:"ignore"`                                         // name patterns skipped on upload
	IgnoreFile string   `toml:"ignore_file,omitempty" mapstructure:"ignore_file"`                     // extra patterns, one per line
}

// EncryptionConfig holds paths to the age key pair used for database
// snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type" mapstructure:"type" validate:"omitempty,oneof=age test"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path" mapstructure:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path" mapstructure:"private_key_path"`
}

// NewConfig creates a Config for baseDir with a local filesystem store,
// a SQLite database and badger sessions.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:   baseDir,
		LogDir:    filepath.Join(baseDir, "log"),
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Addr:                 ":8080",
			ReadHeaderTimeout:    10 * time.Second,
			ShutdownTimeout:      30 * time.Second,
			MaxConcurrentUploads: 8,
		},
		Storage: StorageConfig{
			Type:              "filesystem",
			UserFolderPattern: "user-%d-files",
			CallTimeout:       30 * time.Second,
			TransferTimeout:   10 * time.Minute,
			Fanout:            8,
			Options: map[string]any{
				"root": filepath.Join(baseDir, "objects"),
			},
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Auth: AuthConfig{
			SessionStore: "badger",
			SessionDir:   filepath.Join(baseDir, "sessions"),
			SessionTTL:   24 * time.Hour,
			CookieName:   "CFS_SESSION",
		},
		Upload: UploadConfig{
			Type:     "filesystem",
			SpoolDir: filepath.Join(baseDir, "spool"),
			MaxSize:  1 << 30,
			Ignore:   []string{".DS_Store", "Thumbs.db"},
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "cfs.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "cfs.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path without
// environment overrides or validation.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config file at path, applies CFS_* environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values that have a sensible default.
func ApplyDefaults(cfg *Config) {
	if cfg.LogDir == "" && cfg.BaseDir != "" {
		cfg.LogDir = filepath.Join(cfg.BaseDir, "log")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Storage.UserFolderPattern == "" {
		cfg.Storage.UserFolderPattern = "user-%d-files"
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = 24 * time.Hour
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "CFS_SESSION"
	}
	if cfg.Encryption.Type == "" {
		cfg.Encryption.Type = "age"
	}
	if cfg.BaseDir != "" {
		if cfg.Encryption.PublicKeyPath == "" {
			cfg.Encryption.PublicKeyPath = filepath.Join(cfg.BaseDir, "keys", "cfs.pub")
		}
		if cfg.Encryption.PrivateKeyPath == "" {
			cfg.Encryption.PrivateKeyPath = filepath.Join(cfg.BaseDir, "keys", "cfs.key")
		}
	}
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
