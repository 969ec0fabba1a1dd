package pipeline

import (
	"reflect"
	"testing"

	"autodub/internal/transcript"
)

func speakersFixture(labels ...string) []transcript.Utterance {
	utterances := make([]transcript.Utterance, len(labels))
	for i, label := range labels {
		utterances[i] = transcript.Utterance{Speaker: label, Start: float64(i), End: float64(i) + 0.5}
	}
	return utterances
}

func TestAssignVoicesSingleSpeakerUsesDefault(t *testing.T) {
	v := AssignVoices(speakersFixture("0", "0", "0"), []string{"p1", "p2"}, "default", nil)
	if v.Size() != 0 {
		t.Fatalf("single speaker needs no table, size = %d", v.Size())
	}
	if v.VoiceFor("0") != "default" {
		t.Fatalf("voice = %q", v.VoiceFor("0"))
	}
}

func TestAssignVoicesRoundRobinDeterministic(t *testing.T) {
	pool := []string{"p1", "p2"}
	first := AssignVoices(speakersFixture("1", "0", "2", "0"), pool, "default", nil)
	second := AssignVoices(speakersFixture("2", "1", "0", "1"), pool, "default", nil)

	want := map[string]string{"0": "p1", "1": "p2", "2": "p1"}
	for speaker, voice := range want {
		if first.VoiceFor(speaker) != voice {
			t.Fatalf("first.VoiceFor(%q) = %q, want %q", speaker, first.VoiceFor(speaker), voice)
		}
	}
	got := map[string]string{}
	for _, speaker := range []string{"0", "1", "2"} {
		got[speaker] = second.VoiceFor(speaker)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("assignment not deterministic: %v vs %v", got, want)
	}
}

func TestAssignVoicesClonedTakesPrecedence(t *testing.T) {
	pool := []string{"p1", "p2"}
	cloned := map[string]string{"1": "cloned-1"}
	v := AssignVoices(speakersFixture("0", "1"), pool, "default", cloned)

	if v.VoiceFor("1") != "cloned-1" {
		t.Fatalf("speaker 1 = %q, want cloned voice", v.VoiceFor("1"))
	}
	// The speaker without a clone keeps its pooled assignment.
	if v.VoiceFor("0") != "p1" {
		t.Fatalf("speaker 0 = %q, want p1", v.VoiceFor("0"))
	}
}

func TestAssignVoicesEmptyPoolFallsBack(t *testing.T) {
	v := AssignVoices(speakersFixture("0", "1"), nil, "default", nil)
	if v.VoiceFor("0") != "default" || v.VoiceFor("1") != "default" {
		t.Fatal("empty pool must fall back to the default voice")
	}
	if v.VoiceFor("unknown") != "default" {
		t.Fatal("unknown speakers use the default voice")
	}
}
