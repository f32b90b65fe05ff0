package storage

import (
	"context"
	"testing"

	"cfs-go/internal/config"
)

func TestNewObjectStoreFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
	}{
		{
			name: "memory store",
			cfg:  config.StorageConfig{Type: "memory"},
		},
		{
			name: "filesystem store",
			cfg: config.StorageConfig{
				Type:    "filesystem",
				Options: map[string]any{"root": "ROOT"},
			},
		},
		{
			name:    "filesystem store without root",
			cfg:     config.StorageConfig{Type: "filesystem"},
			wantErr: true,
		},
		{
			name: "filesystem store with unknown option",
			cfg: config.StorageConfig{
				Type:    "filesystem",
				Options: map[string]any{"root": "ROOT", "rooot": "typo"},
			},
			wantErr: true,
		},
		{
			name: "s3 store",
			cfg: config.StorageConfig{
				Type: "s3",
				Options: map[string]any{
					"bucket":            "cfs-test",
					"region":            "us-east-1",
					"endpoint":          "http://localhost:9000",
					"access_key_id":     "minio",
					"secret_access_key": "minio123",
					"part_size":         "8388608", // weakly typed, as set from the environment
				},
			},
		},
		{
			name:    "s3 store without bucket",
			cfg:     config.StorageConfig{Type: "s3", Options: map[string]any{"region": "us-east-1"}},
			wantErr: true,
		},
		{
			name:    "unknown store type",
			cfg:     config.StorageConfig{Type: "ftp"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if root, ok := tt.cfg.Options["root"]; ok && root == "ROOT" {
				tt.cfg.Options["root"] = t.TempDir()
			}

			got, err := NewObjectStoreFromConfig(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewObjectStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got == nil {
				t.Error("NewObjectStoreFromConfig() returned nil store")
			}
		})
	}
}
