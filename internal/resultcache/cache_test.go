package resultcache

import (
	"os"
	"path/filepath"
	"testing"

	"autodub/internal/logging"
)

type record struct {
	Text string `json:"text"`
}

func TestPutAndGet(t *testing.T) {
	cache := New(t.TempDir(), logging.NewNop())

	var got record
	if cache.Get(CategoryTranslation, "abc", &got) {
		t.Fatal("expected miss on empty cache")
	}

	if err := cache.Put(CategoryTranslation, "abc", record{Text: "hola"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !cache.Get(CategoryTranslation, "abc", &got) {
		t.Fatal("expected hit after put")
	}
	if got.Text != "hola" {
		t.Fatalf("got %q", got.Text)
	}
}

func TestPutIsWriteOnce(t *testing.T) {
	cache := New(t.TempDir(), logging.NewNop())

	if err := cache.Put(CategoryVoice, "spk", record{Text: "first"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := cache.Put(CategoryVoice, "spk", record{Text: "second"}); err != nil {
		t.Fatalf("second put: %v", err)
	}

	var got record
	if !cache.Get(CategoryVoice, "spk", &got) {
		t.Fatal("expected hit")
	}
	if got.Text != "first" {
		t.Fatalf("entry was overwritten: %q", got.Text)
	}
}

func TestCorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	cache := New(dir, logging.NewNop())

	path := filepath.Join(dir, string(CategoryTranscript), "bad.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got record
	if cache.Get(CategoryTranscript, "bad", &got) {
		t.Fatal("corrupt entry must read as a miss")
	}
}

func TestStatsAndClear(t *testing.T) {
	cache := New(t.TempDir(), logging.NewNop())
	if err := cache.Put(CategoryTranscript, "a", record{Text: "x"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := cache.Put(CategoryTranslation, "b", record{Text: "y"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	total := 0
	for _, s := range stats {
		total += s.Entries
		if s.Entries > 0 && s.Bytes == 0 {
			t.Fatalf("category %s has entries but zero bytes", s.Category)
		}
	}
	if total != 2 {
		t.Fatalf("total entries = %d, want 2", total)
	}

	if err := cache.Clear(CategoryTranscript); err != nil {
		t.Fatalf("clear: %v", err)
	}
	var got record
	if cache.Get(CategoryTranscript, "a", &got) {
		t.Fatal("expected miss after clear")
	}
	if !cache.Get(CategoryTranslation, "b", &got) {
		t.Fatal("other categories must survive a clear")
	}
}
