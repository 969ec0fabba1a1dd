// Package transcript models diarized utterances and the transformations
// applied to them before synthesis.
package transcript

import (
	"sort"
	"strings"
)

// Utterance is one diarized span of speech. Fields beyond the transcription
// result are filled in as the pipeline progresses.
type Utterance struct {
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`

	// Translated holds the target-language text; it stays equal to Text
	// when translation falls back to the original.
	Translated string `json:"translated,omitempty"`
	// AudioPath points at the synthesized, speed-corrected clip. Empty
	// when synthesis was skipped for this utterance.
	AudioPath string `json:"audio_path,omitempty"`
}

// Duration returns the length of the utterance's source window in seconds.
func (u Utterance) Duration() float64 {
	return u.End - u.Start
}

// Speakers returns the distinct speaker labels in sorted order.
func Speakers(utterances []Utterance) []string {
	seen := make(map[string]struct{})
	for _, u := range utterances {
		if u.Speaker == "" {
			continue
		}
		seen[u.Speaker] = struct{}{}
	}
	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// SortByStart orders utterances by their source start time in place.
func SortByStart(utterances []Utterance) {
	sort.SliceStable(utterances, func(i, j int) bool {
		return utterances[i].Start < utterances[j].Start
	})
}

// ApplyConversationHeuristic relabels a transcript where diarization
// collapsed everything onto one speaker. When a single speaker covers more
// than three utterances the source is more likely a conversation the
// diarizer missed than a monologue, so utterances are relabeled with two
// alternating speakers. Transcripts that already have multiple speakers,
// or too few utterances to judge, pass through unchanged.
func ApplyConversationHeuristic(utterances []Utterance) ([]Utterance, bool) {
	if len(utterances) <= 3 {
		return utterances, false
	}
	if len(Speakers(utterances)) > 1 {
		return utterances, false
	}

	relabeled := make([]Utterance, len(utterances))
	copy(relabeled, utterances)
	for i := range relabeled {
		if i%2 == 0 {
			relabeled[i].Speaker = "0"
		} else {
			relabeled[i].Speaker = "1"
		}
	}
	return relabeled, true
}

// NonEmpty filters out utterances whose text is blank after trimming.
func NonEmpty(utterances []Utterance) []Utterance {
	kept := make([]Utterance, 0, len(utterances))
	for _, u := range utterances {
		if strings.TrimSpace(u.Text) == "" {
			continue
		}
		kept = append(kept, u)
	}
	return kept
}
