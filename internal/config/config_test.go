package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := NewConfig("/home/user/.local/share/cfs")
	original.Storage.Options = map[string]any{"root": "/srv/objects"}
	original.Upload.Ignore = []string{"*.tmp", ".git"}
	original.Server.Addr = "127.0.0.1:9000"

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Server.Addr = %q, want %q", got.Server.Addr, "127.0.0.1:9000")
	}
	if got.Storage.Type != "filesystem" {
		t.Errorf("Storage.Type = %q, want %q", got.Storage.Type, "filesystem")
	}
	if root, _ := got.Storage.Options["root"].(string); root != "/srv/objects" {
		t.Errorf("Storage.Options[root] = %q, want %q", root, "/srv/objects")
	}
	if got.Storage.CallTimeout != 30*time.Second {
		t.Errorf("Storage.CallTimeout = %v, want %v", got.Storage.CallTimeout, 30*time.Second)
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "sqlite")
	}
	if got.Auth.SessionStore != "badger" {
		t.Errorf("Auth.SessionStore = %q, want %q", got.Auth.SessionStore, "badger")
	}
	if got.Upload.MaxSize != 1<<30 {
		t.Errorf("Upload.MaxSize = %d, want %d", got.Upload.MaxSize, 1<<30)
	}
	if len(got.Upload.Ignore) != 2 {
		t.Fatalf("len(Upload.Ignore) = %d, want 2", len(got.Upload.Ignore))
	}
	if got.Encryption.PrivateKeyPath != original.Encryption.PrivateKeyPath {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", got.Encryption.PrivateKeyPath, original.Encryption.PrivateKeyPath)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/cfs")

	if cfg.BaseDir != "/data/cfs" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/cfs")
	}
	if cfg.LogDir != "/data/cfs/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/cfs/log")
	}
	if root, _ := cfg.Storage.Options["root"].(string); root != "/data/cfs/objects" {
		t.Errorf("Storage.Options[root] = %q, want %q", root, "/data/cfs/objects")
	}
	if cfg.Storage.UserFolderPattern != "user-%d-files" {
		t.Errorf("UserFolderPattern = %q, want %q", cfg.Storage.UserFolderPattern, "user-%d-files")
	}
	if cfg.Encryption.PublicKeyPath != "/data/cfs/keys/cfs.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/cfs/keys/cfs.pub")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate(NewConfig) error = %v", err)
	}
}

func TestApplyDefaults_KeyPaths(t *testing.T) {
	cfg := &Config{BaseDir: "/data/cfs"}
	cfg.Encryption.PrivateKeyPath = "/secrets/cfs.key"
	ApplyDefaults(cfg)

	if cfg.Encryption.Type != "age" {
		t.Errorf("Encryption.Type = %q, want age", cfg.Encryption.Type)
	}
	if cfg.Encryption.PublicKeyPath != "/data/cfs/keys/cfs.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/cfs/keys/cfs.pub")
	}
	if cfg.Encryption.PrivateKeyPath != "/secrets/cfs.key" {
		t.Errorf("Encryption.PrivateKeyPath = %q, want the configured path kept", cfg.Encryption.PrivateKeyPath)
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "cfs.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "cfs.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error, got nil")
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("reads file and applies defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "cfs.toml")
		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.BaseDir != dir {
			t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, dir)
		}
		if cfg.Auth.CookieName != "CFS_SESSION" {
			t.Errorf("Auth.CookieName = %q, want %q", cfg.Auth.CookieName, "CFS_SESSION")
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "cfs.toml")
		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		t.Setenv("CFS_SERVER_ADDR", ":9999")
		t.Setenv("CFS_LOG_LEVEL", "debug")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Addr != ":9999" {
			t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":9999")
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
			t.Fatal("Load() expected error, got nil")
		}
	})

	t.Run("invalid file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "cfs.toml")
		cfg := NewConfig(dir)
		cfg.Storage.Type = "ftp"
		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		_, err := Load(path)
		if err == nil {
			t.Fatal("Load() expected validation error, got nil")
		}
		if !strings.Contains(err.Error(), "validation failed") {
			t.Errorf("error = %v, want validation failure", err)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"memory everything", func(c *Config) {
			c.Storage = StorageConfig{Type: "memory", UserFolderPattern: "u%d"}
			c.Database = DatabaseConfig{Type: "memory"}
			c.Auth.SessionStore = "memory"
			c.Upload = UploadConfig{Type: "memory", MaxSize: 1024}
		}, ""},
		{"unknown storage type", func(c *Config) { c.Storage.Type = "ftp" }, "oneof"},
		{"folder pattern without verb", func(c *Config) { c.Storage.UserFolderPattern = "files" }, "userfolder"},
		{"folder pattern with separator", func(c *Config) { c.Storage.UserFolderPattern = "users/%d" }, "userfolder"},
		{"folder pattern with two verbs", func(c *Config) { c.Storage.UserFolderPattern = "%d-%d" }, "userfolder"},
		{"sqlite without data dir", func(c *Config) { c.Database.DataDir = "" }, "data_dir"},
		{"badger without session dir", func(c *Config) { c.Auth.SessionDir = "" }, "session_dir"},
		{"filesystem spool without dir", func(c *Config) { c.Upload.SpoolDir = "" }, "spool_dir"},
		{"filesystem store without root", func(c *Config) { c.Storage.Options = nil }, "options.root"},
		{"s3 store without bucket", func(c *Config) {
			c.Storage.Type = "s3"
			c.Storage.Options = map[string]any{"region": "us-east-1"}
		}, "options.bucket"},
		{"zero upload size", func(c *Config) { c.Upload.MaxSize = 0 }, "gt"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "oneof"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/data/cfs")
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
