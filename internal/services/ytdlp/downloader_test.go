package ytdlp

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"autodub/internal/logging"
	"autodub/internal/services"
)

func TestDownloadBuildsExpectedInvocation(t *testing.T) {
	var gotName string
	var gotArgs []string
	d := NewDownloader("yt-dlp", logging.NewNop())
	d.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	}, nil)

	dir := t.TempDir()
	path, err := d.Download(context.Background(), "https://example.com/watch?v=abc", dir)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if path != filepath.Join(dir, "source.mp4") {
		t.Fatalf("path = %q", path)
	}
	if gotName != "yt-dlp" {
		t.Fatalf("binary = %q", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"--no-playlist", "--merge-output-format mp4", "https://example.com/watch?v=abc"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %q", want, joined)
		}
	}
}

func TestDownloadWrapsFailure(t *testing.T) {
	d := NewDownloader("", logging.NewNop())
	d.WithCommandRunner(func(context.Context, string, ...string) error {
		return errors.New("network unreachable")
	}, nil)

	_, err := d.Download(context.Background(), "https://example.com/v", t.TempDir())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("unexpected error class: %v", err)
	}
}

func TestTitleTrimsOutput(t *testing.T) {
	d := NewDownloader("yt-dlp", logging.NewNop())
	d.WithCommandRunner(nil, func(context.Context, string, ...string) (string, error) {
		return "Some Interview\n", nil
	})

	title, err := d.Title(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatalf("title: %v", err)
	}
	if title != "Some Interview" {
		t.Fatalf("title = %q", title)
	}
}
