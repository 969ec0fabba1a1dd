package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"autodub/internal/logging"
	"autodub/internal/services"
)

func newCompletionServer(t *testing.T, content string, capture *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestTranslateBatchPreservesOrder(t *testing.T) {
	var got chatRequest
	server := newCompletionServer(t, "hola\n---\nadios", &got)
	defer server.Close()

	tr := NewTranslator(server.URL, "sk-test", "gpt-4o-mini", server.Client(), logging.NewNop())
	out, err := tr.TranslateBatch(context.Background(), []string{"hello", "goodbye"}, "en", "es")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if len(out) != 2 || out[0] != "hola" || out[1] != "adios" {
		t.Fatalf("out = %v", out)
	}
	if got.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestTranslateBatchSegmentMismatch(t *testing.T) {
	server := newCompletionServer(t, "only one answer", nil)
	defer server.Close()

	tr := NewTranslator(server.URL, "sk-test", "gpt-4o-mini", server.Client(), logging.NewNop())
	_, err := tr.TranslateBatch(context.Background(), []string{"hello", "goodbye"}, "en", "es")
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("unexpected error class: %v", err)
	}
}

func TestTranslateBatchEmptyInput(t *testing.T) {
	tr := NewTranslator("http://unused", "sk", "m", nil, logging.NewNop())
	out, err := tr.TranslateBatch(context.Background(), nil, "en", "es")
	if err != nil || out != nil {
		t.Fatalf("expected nil, nil; got %v, %v", out, err)
	}
}

func TestTranslateBatchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	tr := NewTranslator(server.URL, "sk", "m", server.Client(), logging.NewNop())
	if _, err := tr.TranslateBatch(context.Background(), []string{"hi"}, "en", "es"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLanguageNameSpellsOutCodes(t *testing.T) {
	if got := languageName("es"); got != "Spanish" {
		t.Fatalf("languageName(es) = %q", got)
	}
	if got := languageName("pt-BR"); got == "pt-BR" || got == "" {
		t.Fatalf("languageName(pt-BR) = %q", got)
	}
	if got := languageName("!!"); got != "!!" {
		t.Fatalf("unparseable code must pass through, got %q", got)
	}
}
