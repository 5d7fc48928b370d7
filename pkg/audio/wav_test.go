package audio

import (
	"bytes"
	"testing"
)

func TestWriteWavProducesValidHeader(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	sampleRate := 44100

	var buf bytes.Buffer
	if err := WriteWav(&buf, pcm, sampleRate); err != nil {
		t.Fatalf("WriteWav returned error: %v", err)
	}
	wav := buf.Bytes()

	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Error("expected RIFF prefix")
	}
	if !bytes.Contains(wav, []byte("WAVE")) {
		t.Error("expected WAVE format identifier")
	}
	if !bytes.Contains(wav, []byte("data")) {
		t.Error("expected data chunk identifier")
	}

	expectedLen := 44 + len(pcm)
	if len(wav) != expectedLen {
		t.Errorf("expected length %d, got %d", expectedLen, len(wav))
	}
}

func TestWriteWavEmptyPcm(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWav(&buf, nil, 16000); err != nil {
		t.Fatalf("WriteWav returned error: %v", err)
	}
	if buf.Len() != 44 {
		t.Errorf("expected bare 44-byte header for empty pcm, got %d", buf.Len())
	}
}
