package media

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"autodub/internal/logging"
	"autodub/internal/services"
)

type capturedCall struct {
	name string
	args []string
}

func newCaptureProcessor(t *testing.T, calls *[]capturedCall, probeOutput string) *Processor {
	t.Helper()
	p := NewProcessor("ffmpeg", "ffprobe", logging.NewNop())
	p.WithCommandRunner(
		func(_ context.Context, name string, args ...string) error {
			*calls = append(*calls, capturedCall{name: name, args: args})
			return nil
		},
		func(_ context.Context, name string, args ...string) (string, error) {
			*calls = append(*calls, capturedCall{name: name, args: args})
			return probeOutput, nil
		},
	)
	return p
}

func TestExtractAudioArgs(t *testing.T) {
	var calls []capturedCall
	p := newCaptureProcessor(t, &calls, "")

	if err := p.ExtractAudio(context.Background(), "in.mp4", "out.wav"); err != nil {
		t.Fatalf("extract audio: %v", err)
	}
	if len(calls) != 1 || calls[0].name != "ffmpeg" {
		t.Fatalf("calls = %+v", calls)
	}
	joined := strings.Join(calls[0].args, " ")
	for _, want := range []string{"-vn", "pcm_s16le", "44100", "-ac 2", "out.wav"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %q", want, joined)
		}
	}
}

func TestAdjustSpeedRejectsOutOfRange(t *testing.T) {
	var calls []capturedCall
	p := newCaptureProcessor(t, &calls, "")

	err := p.AdjustSpeed(context.Background(), "in.wav", "out.wav", 2.5)
	if err == nil {
		t.Fatal("expected out-of-range error")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unexpected error class: %v", err)
	}
	if len(calls) != 0 {
		t.Fatal("ffmpeg must not be invoked for an invalid speed")
	}

	if err := p.AdjustSpeed(context.Background(), "in.wav", "out.wav", 1.25); err != nil {
		t.Fatalf("adjust speed: %v", err)
	}
	joined := strings.Join(calls[0].args, " ")
	if !strings.Contains(joined, "atempo=1.25") {
		t.Fatalf("atempo filter missing: %q", joined)
	}
}

func TestMixArgsCarryVolumes(t *testing.T) {
	var calls []capturedCall
	p := newCaptureProcessor(t, &calls, "")

	if err := p.Mix(context.Background(), "vocals.wav", "bg.wav", "mix.wav", 1.0, 0.7); err != nil {
		t.Fatalf("mix: %v", err)
	}
	joined := strings.Join(calls[0].args, " ")
	if !strings.Contains(joined, "volume=1[v]") || !strings.Contains(joined, "volume=0.7[b]") {
		t.Fatalf("volume filters missing: %q", joined)
	}
	if !strings.Contains(joined, "amix=inputs=2") {
		t.Fatalf("amix missing: %q", joined)
	}
}

func TestMuxCopiesVideoAndTrims(t *testing.T) {
	var calls []capturedCall
	p := newCaptureProcessor(t, &calls, "")

	if err := p.Mux(context.Background(), "in.mp4", "mix.wav", "out.mp4"); err != nil {
		t.Fatalf("mux: %v", err)
	}
	joined := strings.Join(calls[0].args, " ")
	for _, want := range []string{"-c:v copy", "-map 0:v:0", "-map 1:a:0", "-shortest"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %q", want, joined)
		}
	}
}

func TestConcatenateWritesListFile(t *testing.T) {
	var listContents string
	p := NewProcessor("ffmpeg", "ffprobe", logging.NewNop())
	p.WithCommandRunner(
		func(_ context.Context, _ string, args ...string) error {
			for i, arg := range args {
				if arg == "-i" && i+1 < len(args) {
					payload, err := os.ReadFile(args[i+1])
					if err != nil {
						return err
					}
					listContents = string(payload)
				}
			}
			return nil
		},
		nil,
	)

	out := t.TempDir() + "/joined.wav"
	if err := p.Concatenate(context.Background(), []string{"a.wav", "b.wav"}, out); err != nil {
		t.Fatalf("concatenate: %v", err)
	}
	if !strings.Contains(listContents, "file 'a.wav'") || !strings.Contains(listContents, "file 'b.wav'") {
		t.Fatalf("list contents = %q", listContents)
	}
	if _, err := os.Stat(out + ".concat.txt"); !os.IsNotExist(err) {
		t.Fatal("concat list must be removed afterwards")
	}

	if err := p.Concatenate(context.Background(), nil, out); err == nil {
		t.Fatal("empty clip list must error")
	}
}

func TestDurationParsesProbeOutput(t *testing.T) {
	var calls []capturedCall
	p := newCaptureProcessor(t, &calls, "12.480000\n")

	seconds, err := p.Duration(context.Background(), "clip.wav")
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if seconds != 12.48 {
		t.Fatalf("seconds = %v", seconds)
	}
	if calls[0].name != "ffprobe" {
		t.Fatalf("expected ffprobe, got %s", calls[0].name)
	}

	bad := newCaptureProcessor(t, &calls, "N/A")
	if _, err := bad.Duration(context.Background(), "clip.wav"); err == nil {
		t.Fatal("unparseable duration must error")
	}
}
