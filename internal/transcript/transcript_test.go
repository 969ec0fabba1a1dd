package transcript

import (
	"reflect"
	"testing"
)

func TestSpeakersSortedDistinct(t *testing.T) {
	utterances := []Utterance{
		{Speaker: "2"}, {Speaker: "0"}, {Speaker: "2"}, {Speaker: "1"}, {Speaker: ""},
	}
	got := Speakers(utterances)
	if !reflect.DeepEqual(got, []string{"0", "1", "2"}) {
		t.Fatalf("speakers = %v", got)
	}
}

func TestConversationHeuristicRelabels(t *testing.T) {
	utterances := []Utterance{
		{Text: "a", Speaker: "0"},
		{Text: "b", Speaker: "0"},
		{Text: "c", Speaker: "0"},
		{Text: "d", Speaker: "0"},
		{Text: "e", Speaker: "0"},
	}
	relabeled, applied := ApplyConversationHeuristic(utterances)
	if !applied {
		t.Fatal("expected heuristic to apply")
	}
	want := []string{"0", "1", "0", "1", "0"}
	for i, u := range relabeled {
		if u.Speaker != want[i] {
			t.Fatalf("utterance %d speaker = %q, want %q", i, u.Speaker, want[i])
		}
	}
	// Input must not be mutated.
	if utterances[1].Speaker != "0" {
		t.Fatal("input slice was mutated")
	}
}

func TestConversationHeuristicSkipsShortAndMultiSpeaker(t *testing.T) {
	short := []Utterance{{Speaker: "0"}, {Speaker: "0"}, {Speaker: "0"}}
	if _, applied := ApplyConversationHeuristic(short); applied {
		t.Fatal("three utterances must not trigger the heuristic")
	}

	multi := []Utterance{
		{Speaker: "0"}, {Speaker: "1"}, {Speaker: "0"}, {Speaker: "1"}, {Speaker: "0"},
	}
	if _, applied := ApplyConversationHeuristic(multi); applied {
		t.Fatal("multi-speaker transcripts must pass through")
	}
}

func TestSortByStartAndNonEmpty(t *testing.T) {
	utterances := []Utterance{
		{Text: "later", Start: 5},
		{Text: "  ", Start: 1},
		{Text: "first", Start: 0.5},
	}
	SortByStart(utterances)
	if utterances[0].Text != "first" {
		t.Fatalf("sort order wrong: %+v", utterances)
	}
	kept := NonEmpty(utterances)
	if len(kept) != 2 {
		t.Fatalf("kept %d utterances, want 2", len(kept))
	}
}
