// Package openai translates utterance text with the OpenAI chat
// completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"autodub/internal/logging"
	"autodub/internal/services"
)

// batchSeparator joins the texts of one translation batch into a single
// prompt and splits the model's answer back into per-text translations.
const batchSeparator = "\n---\n"

// Translator calls the chat completions endpoint to translate batches of
// utterance text.
type Translator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTranslator creates a Translator.
func NewTranslator(baseURL, apiKey, model string, httpClient *http.Client, logger *slog.Logger) *Translator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Translator{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
		logger:     logging.NewComponentLogger(logger, "openai"),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// TranslateBatch translates texts into targetLanguage in one request. The
// returned slice is index-aligned with the input; an answer whose segment
// count does not match the input is an error so the caller can retry the
// batch one text at a time.
func (t *Translator) TranslateBatch(ctx context.Context, texts []string, sourceLanguage, targetLanguage string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prompt := strings.Join(texts, batchSeparator)
	system := fmt.Sprintf(
		"You are a professional translator. Translate each segment from %s to %s. "+
			"Segments are separated by %q. Reply with only the translations, in the same order, "+
			"separated by the same separator. Keep the translation natural and close in spoken length to the original.",
		languageOrAuto(sourceLanguage), languageName(targetLanguage), strings.TrimSpace(batchSeparator))

	payload, err := json.Marshal(chatRequest{
		Model: t.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "translate", "openai", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "translate", "openai", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "translate", "openai", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, services.Wrap(services.ErrProvider, "translate", "openai",
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, services.Wrap(services.ErrProvider, "translate", "openai", "decode response", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, services.Wrap(services.ErrProvider, "translate", "openai", "empty completion", nil)
	}

	segments := strings.Split(parsed.Choices[0].Message.Content, strings.TrimSpace(batchSeparator))
	if len(segments) != len(texts) {
		return nil, services.Wrap(services.ErrProvider, "translate", "openai",
			fmt.Sprintf("segment count mismatch: sent %d, got %d", len(texts), len(segments)), nil)
	}

	translations := make([]string, len(segments))
	for i, segment := range segments {
		translations[i] = strings.TrimSpace(segment)
	}
	return translations, nil
}

func languageOrAuto(code string) string {
	if strings.TrimSpace(code) == "" {
		return "the source language"
	}
	return languageName(code)
}

// languageName spells out a BCP 47 code for the prompt. "Spanish" steers
// the model better than "es"; unparseable codes pass through untouched.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
