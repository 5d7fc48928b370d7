package asr

import (
	"encoding/json"
	"testing"
)

func TestDeepgramFrameDecoding(t *testing.T) {
	raw := []byte(`{"is_final":true,"channel":{"alternatives":[{"transcript":"hello lecture","confidence":0.92}]}}`)

	var frame deepgramFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !frame.IsFinal {
		t.Error("expected IsFinal true")
	}
	if len(frame.Channel.Alternatives) != 1 {
		t.Fatalf("expected 1 alternative, got %d", len(frame.Channel.Alternatives))
	}
	if frame.Channel.Alternatives[0].Transcript != "hello lecture" {
		t.Errorf("unexpected transcript: %q", frame.Channel.Alternatives[0].Transcript)
	}
	if frame.Channel.Alternatives[0].Confidence != 0.92 {
		t.Errorf("unexpected confidence: %v", frame.Channel.Alternatives[0].Confidence)
	}
}

func TestDeepgramASRName(t *testing.T) {
	d := NewDeepgramASR("key")
	if d.Name() != "deepgram-asr" {
		t.Errorf("expected deepgram-asr, got %s", d.Name())
	}
}

func TestDeepgramASRSendAudioWithoutConnectErrors(t *testing.T) {
	d := NewDeepgramASR("key")
	if err := d.SendAudio([]byte{1, 2, 3}); err == nil {
		t.Error("expected error sending audio before Connect")
	}
}
