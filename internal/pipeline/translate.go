package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"autodub/internal/fingerprint"
	"autodub/internal/logging"
	"autodub/internal/resultcache"
	"autodub/internal/services"
	"autodub/internal/transcript"
)

type translatePolicy struct {
	batchSize int
	workers   int
}

// translator runs the translation stage: cached lookups first, then a
// fixed worker pool over the remaining batches. Batch indices are carried
// through the pool so results land back in their original positions no
// matter which worker finishes first.
type translator struct {
	provider Translator
	cache    *resultcache.Cache
	policy   translatePolicy
	logger   *slog.Logger
}

type translationBatch struct {
	index     int
	positions []int
	texts     []string
}

func newTranslator(provider Translator, cache *resultcache.Cache, policy translatePolicy, logger *slog.Logger) *translator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if policy.batchSize < 1 {
		policy.batchSize = 1
	}
	if policy.workers < 1 {
		policy.workers = 1
	}
	return &translator{provider: provider, cache: cache, policy: policy, logger: logger}
}

// translateAll fills in Translated for every utterance. Translation is
// never fatal: a failed batch is retried one utterance at a time, and an
// utterance that still fails keeps its source text. When any utterance
// took that last resort, the returned error is ErrDegraded-tagged so the
// stage machine records the loss without aborting.
func (t *translator) translateAll(ctx context.Context, utterances []transcript.Utterance, sourceLanguage, targetLanguage string) ([]transcript.Utterance, error) {
	out := make([]transcript.Utterance, len(utterances))
	copy(out, utterances)

	var pending []int
	for i := range out {
		if cached, ok := t.lookupCached(out[i].Text, sourceLanguage, targetLanguage); ok {
			out[i].Translated = cached
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	batches := make([]translationBatch, 0, (len(pending)+t.policy.batchSize-1)/t.policy.batchSize)
	for start := 0; start < len(pending); start += t.policy.batchSize {
		end := start + t.policy.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := translationBatch{index: len(batches)}
		for _, pos := range pending[start:end] {
			batch.positions = append(batch.positions, pos)
			batch.texts = append(batch.texts, out[pos].Text)
		}
		batches = append(batches, batch)
	}

	var fallbacks atomic.Int64
	work := make(chan translationBatch)
	var wg sync.WaitGroup
	for w := 0; w < t.policy.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range work {
				// Workers write to disjoint positions of out, so no
				// locking is needed around the slice itself.
				t.runBatch(ctx, batch, out, sourceLanguage, targetLanguage, &fallbacks)
			}
		}()
	}
	for _, batch := range batches {
		work <- batch
	}
	close(work)
	wg.Wait()

	if n := fallbacks.Load(); n > 0 {
		return out, services.Wrap(services.ErrDegraded, "translate", "fallback",
			fmt.Sprintf("%d utterance(s) keep their source text", n), nil)
	}
	return out, nil
}

func (t *translator) runBatch(ctx context.Context, batch translationBatch, out []transcript.Utterance, sourceLanguage, targetLanguage string, fallbacks *atomic.Int64) {
	translations, err := t.provider.TranslateBatch(ctx, batch.texts, sourceLanguage, targetLanguage)
	if err == nil && len(translations) == len(batch.texts) {
		for i, pos := range batch.positions {
			out[pos].Translated = translations[i]
			t.storeCached(out[pos].Text, sourceLanguage, targetLanguage, translations[i])
		}
		return
	}

	logging.WarnWithContext(t.logger, "translation batch failed, retrying per utterance", "translation_batch_failed",
		logging.Int("batch", batch.index),
		logging.Int("size", len(batch.texts)),
		logging.Error(err))

	for i, pos := range batch.positions {
		single, err := t.provider.TranslateBatch(ctx, []string{batch.texts[i]}, sourceLanguage, targetLanguage)
		if err != nil || len(single) != 1 {
			// Last resort: keep the source text rather than abort.
			out[pos].Translated = out[pos].Text
			fallbacks.Add(1)
			logging.WarnWithContext(t.logger, "utterance translation failed, keeping source text", "translation_fallback",
				logging.Int("utterance", pos),
				logging.String(logging.FieldImpact, "utterance is dubbed in the source language"),
				logging.Error(err))
			continue
		}
		out[pos].Translated = single[0]
		t.storeCached(out[pos].Text, sourceLanguage, targetLanguage, single[0])
	}
}

type cachedTranslation struct {
	Text string `json:"text"`
}

func (t *translator) lookupCached(text, sourceLanguage, targetLanguage string) (string, bool) {
	if t.cache == nil {
		return "", false
	}
	key, err := translationKey(text, sourceLanguage, targetLanguage)
	if err != nil {
		return "", false
	}
	var entry cachedTranslation
	if !t.cache.Get(resultcache.CategoryTranslation, key, &entry) {
		return "", false
	}
	return entry.Text, true
}

func (t *translator) storeCached(text, sourceLanguage, targetLanguage, translated string) {
	if t.cache == nil {
		return
	}
	key, err := translationKey(text, sourceLanguage, targetLanguage)
	if err != nil {
		return
	}
	if err := t.cache.Put(resultcache.CategoryTranslation, key, cachedTranslation{Text: translated}); err != nil {
		t.logger.Warn("could not cache translation", logging.Error(err))
	}
}

func translationKey(text, sourceLanguage, targetLanguage string) (string, error) {
	return fingerprint.Derive(map[string]any{
		"text":            text,
		"source_language": sourceLanguage,
		"target_language": targetLanguage,
	})
}
