package encryption

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// sqliteMagic starts every SQLite database file.
var sqliteMagic = []byte("SQLite format 3\x00")

func TestTestEncryptor_SnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "database file", input: append(append([]byte{}, sqliteMagic...), bytes.Repeat([]byte{0x00, 0x01}, 2048)...)},
		{name: "empty", input: []byte{}},
		{name: "large", input: bytes.Repeat([]byte("page"), 64*1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := NewTestEncryptor()

			var sealed bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &sealed); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if !bytes.HasPrefix(sealed.Bytes(), testHeader) {
				t.Errorf("sealed snapshot starts with %q, want the test header", sealed.Bytes()[:len(testHeader)])
			}
			// A sealed snapshot must never open as a database by accident.
			if bytes.HasPrefix(sealed.Bytes(), sqliteMagic) {
				t.Error("sealed snapshot still looks like a SQLite file")
			}

			dc, err := e.Unlock("ignored")
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			var opened bytes.Buffer
			if err := dc.Decrypt(&sealed, &opened); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(opened.Bytes(), tt.input) {
				t.Errorf("round trip changed %d bytes into %d bytes", len(tt.input), opened.Len())
			}
		})
	}
}

func TestTestEncryptor_NeedsNoKeys(t *testing.T) {
	t.Parallel()
	e := NewTestEncryptor()

	if !e.IsConfigured() {
		t.Error("IsConfigured() = false, want true without keys")
	}
	if err := e.Setup(""); err != nil {
		t.Errorf("Setup() error = %v", err)
	}
	if !e.setupCalled {
		t.Error("Setup() was not recorded")
	}
}

func TestTestDecryptionContext_RejectsForeignData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   []byte
		wantEOF bool
	}{
		{name: "plain database", input: sqliteMagic},
		{name: "age file", input: []byte("age-encryption.org/v1\n")},
		{name: "truncated header", input: testHeader[:3], wantEOF: true},
		{name: "empty", input: nil, wantEOF: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			err := (&TestDecryptionContext{}).Decrypt(bytes.NewReader(tt.input), &out)
			if err == nil {
				t.Fatal("Decrypt() error = nil, want error")
			}
			isEOF := errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
			if isEOF != tt.wantEOF {
				t.Errorf("Decrypt() error = %v, want EOF %v", err, tt.wantEOF)
			}
			if out.Len() != 0 {
				t.Errorf("Decrypt() wrote %d bytes on failure", out.Len())
			}
		})
	}
}
