package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDeriveIsOrderIndependent(t *testing.T) {
	a, err := Derive(map[string]any{"url": "https://example.com/v", "language": "es", "trim": "0-30"})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := Derive(map[string]any{"trim": "0-30", "language": "es", "url": "https://example.com/v"})
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a != b {
		t.Fatalf("fingerprints differ: %s vs %s", a, b)
	}
}

func TestDeriveDistinguishesParameters(t *testing.T) {
	es, _ := Derive(map[string]any{"url": "https://example.com/v", "language": "es"})
	fr, _ := Derive(map[string]any{"url": "https://example.com/v", "language": "fr"})
	if es == fr {
		t.Fatal("different languages must not share a fingerprint")
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("audio-bytes"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	first, err := File(path)
	if err != nil {
		t.Fatalf("file fingerprint: %v", err)
	}
	second, err := File(path)
	if err != nil {
		t.Fatalf("file fingerprint: %v", err)
	}
	if first != second {
		t.Fatal("file fingerprint must be stable")
	}
	if _, err := File(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
