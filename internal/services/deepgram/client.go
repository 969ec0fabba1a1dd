// Package deepgram transcribes audio with speaker diarization via the
// Deepgram REST API.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"autodub/internal/logging"
	"autodub/internal/services"
	"autodub/internal/transcript"
)

// Client calls the Deepgram prerecorded transcription endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Deepgram client. A nil httpClient gets a default with
// a generous timeout; transcription of long audio is slow.
func NewClient(baseURL, apiKey, model string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
		logger:     logging.NewComponentLogger(logger, "deepgram"),
	}
}

type apiResponse struct {
	Results struct {
		Utterances []apiUtterance `json:"utterances"`
	} `json:"results"`
}

type apiUtterance struct {
	Transcript string  `json:"transcript"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Speaker    int     `json:"speaker"`
}

// Transcribe uploads the audio file and returns diarized utterances ordered
// by start time. sourceLanguage may be empty for auto-detection.
func (c *Client) Transcribe(ctx context.Context, audioPath, sourceLanguage string) ([]transcript.Utterance, error) {
	audio, err := os.Open(audioPath)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "transcribe", "deepgram", "open audio", err)
	}
	defer audio.Close()

	query := url.Values{}
	query.Set("model", c.model)
	query.Set("diarize", "true")
	query.Set("punctuate", "true")
	query.Set("utterances", "true")
	if sourceLanguage != "" {
		query.Set("language", sourceLanguage)
	} else {
		query.Set("detect_language", "true")
	}

	endpoint := fmt.Sprintf("%s/v1/listen?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, audio)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "transcribe", "deepgram", "build request", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "transcribe", "deepgram", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, services.Wrap(services.ErrProvider, "transcribe", "deepgram",
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, services.Wrap(services.ErrProvider, "transcribe", "deepgram", "decode response", err)
	}

	utterances := make([]transcript.Utterance, 0, len(parsed.Results.Utterances))
	for _, u := range parsed.Results.Utterances {
		utterances = append(utterances, transcript.Utterance{
			Text:    u.Transcript,
			Start:   u.Start,
			End:     u.End,
			Speaker: strconv.Itoa(u.Speaker),
		})
	}
	transcript.SortByStart(utterances)

	logging.WithContext(ctx, c.logger).Info("transcription complete",
		logging.Int("utterances", len(utterances)),
		logging.Int("speakers", len(transcript.Speakers(utterances))))
	return utterances, nil
}
