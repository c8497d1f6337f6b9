package serialization

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestComputeChecksumReader(t *testing.T) {
	data := []byte("test data for reader")

	checksum, err := ComputeChecksumReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ComputeChecksumReader failed: %v", err)
	}
	if checksum != ComputeChecksum(data) {
		t.Error("streamed digest differs from the in-memory one")
	}
}

func TestValidateChecksum(t *testing.T) {
	checksum := ComputeChecksum([]byte("test data"))

	if err := ValidateChecksum(checksum, checksum); err != nil {
		t.Errorf("matching digests rejected: %v", err)
	}

	wrong := Checksum{1, 2, 3, 4, 5, 6, 7, 8}
	err := ValidateChecksum(checksum, wrong)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got: %v", err)
	}
	if !strings.Contains(err.Error(), wrong.String()) || !strings.Contains(err.Error(), checksum.String()) {
		t.Errorf("mismatch error should name both digests: %v", err)
	}
}

func TestKnownVectorSHA256(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"hello world", "hello world", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeChecksum([]byte(tt.input)).String(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}
