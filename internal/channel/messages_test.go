// ABOUTME: Tests for wire message construction and parsing
// ABOUTME: Tests setup envelopes, realtime input and server content routing
package channel

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/parley-ai/parley-go/pkg/audio/codec"
)

func TestSetupEnvelopeShape(t *testing.T) {
	env := newSetupEnvelope("models/test-live", "You are an interviewer.")

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	s := string(data)

	for _, want := range []string{
		`"setup"`,
		`"model":"models/test-live"`,
		`"responseModalities":["AUDIO"]`,
		`"inputAudioTranscription":{}`,
		`"outputAudioTranscription":{}`,
		`You are an interviewer.`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("setup envelope missing %s:\n%s", want, s)
		}
	}
}

func TestSetupEnvelopeOmitsEmptySystemPrompt(t *testing.T) {
	data, _ := json.Marshal(newSetupEnvelope("models/test-live", ""))
	if strings.Contains(string(data), "systemInstruction") {
		t.Error("expected systemInstruction omitted when prompt is empty")
	}
}

func TestRealtimeInputEnvelope(t *testing.T) {
	chunk := codec.Chunk{Data: "AAEC", MIME: "audio/pcm;rate=16000"}

	data, err := json.Marshal(newRealtimeInputEnvelope(chunk))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	s := string(data)

	if !strings.Contains(s, `"realtimeInput"`) || !strings.Contains(s, `"mediaChunks"`) {
		t.Errorf("unexpected envelope shape: %s", s)
	}
	if !strings.Contains(s, `"mimeType":"audio/pcm;rate=16000"`) {
		t.Errorf("missing mime type: %s", s)
	}
	if !strings.Contains(s, `"data":"AAEC"`) {
		t.Errorf("missing payload: %s", s)
	}
}

func TestParseSetupComplete(t *testing.T) {
	msg, setupComplete, err := parseServerMessage([]byte(`{"setupComplete":{}}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !setupComplete {
		t.Error("expected setupComplete")
	}
	if msg.Audio != nil || msg.CandidateText != "" {
		t.Error("expected empty message alongside setupComplete")
	}
}

func TestParseServerContentAudio(t *testing.T) {
	raw := `{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"UE9D"}}]}}}`

	msg, setupComplete, err := parseServerMessage([]byte(raw))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if setupComplete {
		t.Error("unexpected setupComplete")
	}
	if msg.Audio == nil {
		t.Fatal("expected audio payload")
	}
	if msg.Audio.MIME != "audio/pcm;rate=24000" || msg.Audio.Data != "UE9D" {
		t.Errorf("unexpected audio chunk: %+v", msg.Audio)
	}
}

func TestParseTranscriptFragments(t *testing.T) {
	raw := `{"serverContent":{"inputTranscription":{"text":"I think"},"outputTranscription":{"text":"Interesting."},"turnComplete":true}}`

	msg, _, err := parseServerMessage([]byte(raw))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if msg.CandidateText != "I think" {
		t.Errorf("expected candidate fragment, got %q", msg.CandidateText)
	}
	if msg.InterviewerText != "Interesting." {
		t.Errorf("expected interviewer fragment, got %q", msg.InterviewerText)
	}
}

func TestParseModelTurnTextParts(t *testing.T) {
	raw := `{"serverContent":{"modelTurn":{"parts":[{"text":"Let me "},{"text":"rephrase that."},{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"UE9D"}}]}}}`

	msg, _, err := parseServerMessage([]byte(raw))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if msg.RawText != "Let me rephrase that." {
		t.Errorf("expected concatenated text parts, got %q", msg.RawText)
	}
	if msg.Audio == nil {
		t.Error("expected audio alongside text parts")
	}
}

func TestParseMessageWithAllFieldsAbsent(t *testing.T) {
	msg, setupComplete, err := parseServerMessage([]byte(`{}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if setupComplete || msg.Audio != nil || msg.CandidateText != "" || msg.InterviewerText != "" {
		t.Error("expected fully empty message")
	}
}

func TestParseMalformedJSON(t *testing.T) {
	if _, _, err := parseServerMessage([]byte(`{nope`)); err == nil {
		t.Error("expected parse error")
	}
}
