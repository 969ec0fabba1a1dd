// Package elevenlabs synthesizes speech and clones voices via the
// ElevenLabs REST API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"autodub/internal/logging"
	"autodub/internal/services"
)

// Client calls the text-to-speech and voice cloning endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an ElevenLabs client.
func NewClient(baseURL, apiKey, model string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
		logger:     logging.NewComponentLogger(logger, "elevenlabs"),
	}
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize renders text with the given voice and writes the resulting
// MP3 to outPath.
func (c *Client) Synthesize(ctx context.Context, text, voiceID, outPath string) error {
	payload, err := json.Marshal(synthesisRequest{Text: text, ModelID: c.model})
	if err != nil {
		return services.Wrap(services.ErrProvider, "synthesize", "elevenlabs", "encode request", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return services.Wrap(services.ErrProvider, "synthesize", "elevenlabs", "build request", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrProvider, "synthesize", "elevenlabs", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return services.Wrap(services.ErrProvider, "synthesize", "elevenlabs",
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)), nil)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return services.Wrap(services.ErrProvider, "synthesize", "elevenlabs", "create output", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(outPath)
		return services.Wrap(services.ErrProvider, "synthesize", "elevenlabs", "write audio", err)
	}
	return nil
}

type cloneResponse struct {
	VoiceID string `json:"voice_id"`
}

// CloneVoice creates an instant voice clone from a speaker sample and
// returns the new voice id.
func (c *Client) CloneVoice(ctx context.Context, name, samplePath string) (string, error) {
	sample, err := os.Open(samplePath)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "clone-voice", "elevenlabs", "open sample", err)
	}
	defer sample.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("name", name); err != nil {
		return "", services.Wrap(services.ErrProvider, "clone-voice", "elevenlabs", "build form", err)
	}
	part, err := writer.CreateFormFile("files", filepath.Base(samplePath))
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "clone-voice", "elevenlabs", "build form", err)
	}
	if _, err := io.Copy(part, sample); err != nil {
		return "", services.Wrap(services.ErrProvider, "clone-voice", "elevenlabs", "read sample", err)
	}
	if err := writer.Close(); err != nil {
		return "", services.Wrap(services.ErrProvider, "clone-voice", "elevenlabs", "finish form", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/voices/add", &body)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "clone-voice", "elevenlabs", "build request", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "clone-voice", "elevenlabs", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", services.Wrap(services.ErrProvider, "clone-voice", "elevenlabs",
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(payload)), nil)
	}

	var parsed cloneResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", services.Wrap(services.ErrProvider, "clone-voice", "elevenlabs", "decode response", err)
	}
	if parsed.VoiceID == "" {
		return "", services.Wrap(services.ErrProvider, "clone-voice", "elevenlabs", "response missing voice_id", nil)
	}

	logging.WithContext(ctx, c.logger).Info("voice cloned",
		logging.String("voice_id", parsed.VoiceID),
		logging.String("name", name))
	return parsed.VoiceID, nil
}
