package pipeline

import (
	"autodub/internal/transcript"
)

// VoiceAssignment maps speaker labels to synthesis voices. It is built
// once per job and never changes afterwards.
type VoiceAssignment struct {
	defaultVoice string
	bySpeaker    map[string]string
}

// AssignVoices builds the speaker-to-voice table for a job.
//
// A single speaker always gets the default voice. Multiple speakers are
// assigned round-robin from the language's stock pool in sorted speaker
// order, so the same speaker set always yields the same table. Cloned
// voices, when present for a speaker, take precedence over the pooled
// assignment for that speaker only.
func AssignVoices(utterances []transcript.Utterance, pool []string, defaultVoice string, cloned map[string]string) VoiceAssignment {
	speakers := transcript.Speakers(utterances)
	assignment := VoiceAssignment{
		defaultVoice: defaultVoice,
		bySpeaker:    make(map[string]string, len(speakers)),
	}

	if len(speakers) <= 1 {
		for _, speaker := range speakers {
			if voice, ok := cloned[speaker]; ok && voice != "" {
				assignment.bySpeaker[speaker] = voice
			}
		}
		return assignment
	}

	for i, speaker := range speakers {
		if voice, ok := cloned[speaker]; ok && voice != "" {
			assignment.bySpeaker[speaker] = voice
			continue
		}
		if len(pool) > 0 {
			assignment.bySpeaker[speaker] = pool[i%len(pool)]
		} else {
			assignment.bySpeaker[speaker] = defaultVoice
		}
	}
	return assignment
}

// VoiceFor returns the voice assigned to a speaker, falling back to the
// default voice for speakers outside the table.
func (v VoiceAssignment) VoiceFor(speaker string) string {
	if voice, ok := v.bySpeaker[speaker]; ok {
		return voice
	}
	return v.defaultVoice
}

// Size returns the number of explicit speaker entries in the table.
func (v VoiceAssignment) Size() int {
	return len(v.bySpeaker)
}
