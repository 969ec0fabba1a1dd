package pipeline

import (
	"context"

	"autodub/internal/transcript"
)

// Downloader acquires source media from a URL.
type Downloader interface {
	Download(ctx context.Context, url, destDir string) (string, error)
	Title(ctx context.Context, url string) (string, error)
}

// Transcriber produces diarized utterances from an audio track.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, sourceLanguage string) ([]transcript.Utterance, error)
}

// Translator translates batches of utterance text.
type Translator interface {
	TranslateBatch(ctx context.Context, texts []string, sourceLanguage, targetLanguage string) ([]string, error)
}

// Synthesizer renders text to speech with a given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, outPath string) error
}

// VoiceCloner creates a synthesis voice from a speaker sample.
type VoiceCloner interface {
	CloneVoice(ctx context.Context, name, samplePath string) (string, error)
}

// AudioSeparator splits an audio track into vocal and background stems.
type AudioSeparator interface {
	Separate(ctx context.Context, audioPath, outDir string) (vocals string, background string, err error)
}

// AudioProcessor provides the raw audio primitives the pipeline composes.
type AudioProcessor interface {
	ExtractAudio(ctx context.Context, videoPath, outPath string) error
	ExtractSegment(ctx context.Context, inPath, outPath string, startSeconds, durationSeconds float64) error
	AdjustSpeed(ctx context.Context, inPath, outPath string, speed float64) error
	GenerateSilence(ctx context.Context, outPath string, durationSeconds float64) error
	Concatenate(ctx context.Context, clipPaths []string, outPath string) error
	Mix(ctx context.Context, vocalsPath, backgroundPath, outPath string, vocalsVolume, backgroundVolume float64) error
	Mux(ctx context.Context, videoPath, audioPath, outPath string) error
	TrimVideo(ctx context.Context, inPath, outPath string, startSeconds, endSeconds float64) error
	Duration(ctx context.Context, path string) (float64, error)
}
