package encryption

import (
	"fmt"
	"testing"

	"cfs-go/internal/config"
)

func TestNewEncryptorFromConfig(t *testing.T) {
	keys := func(typ string) config.EncryptionConfig {
		return config.EncryptionConfig{Type: typ, PublicKeyPath: "keys/cfs.pub", PrivateKeyPath: "keys/cfs.key"}
	}

	tests := []struct {
		name    string
		cfg     config.EncryptionConfig
		want    string
		wantErr bool
	}{
		{name: "default is age", cfg: keys(""), want: "*encryption.AgeEncryptor"},
		{name: "age", cfg: keys("age"), want: "*encryption.AgeEncryptor"},
		{name: "age without key paths", cfg: config.EncryptionConfig{Type: "age"}, wantErr: true},
		{name: "age without private key", cfg: config.EncryptionConfig{Type: "age", PublicKeyPath: "keys/cfs.pub"}, wantErr: true},
		{name: "test needs no keys", cfg: config.EncryptionConfig{Type: "test"}, want: "*encryption.TestEncryptor"},
		{name: "unknown", cfg: keys("rot13"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEncryptorFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEncryptorFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if typ := fmt.Sprintf("%T", got); typ != tt.want {
				t.Errorf("NewEncryptorFromConfig() type = %s, want %s", typ, tt.want)
			}
		})
	}
}
