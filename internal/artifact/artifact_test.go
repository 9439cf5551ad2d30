package artifact

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFingerprint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := Fingerprint(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Bytes != 3 {
		t.Fatalf("bytes got %d want 3", info.Bytes)
	}
	// sha256("abc")
	if info.SHA256 != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("hash got %s", info.SHA256)
	}
}

func TestFingerprintMissing(t *testing.T) {
	if _, err := Fingerprint(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error")
	}
}
