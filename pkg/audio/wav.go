package audio

import (
	"encoding/binary"
	"io"
)

const bitsPerSample = 16

// WriteWav frames pcm (signed 16-bit little-endian samples) as a
// canonical mono WAV file and writes it to w. Used by the debug capture
// dump to make a captioning session replayable offline.
func WriteWav(w io.Writer, pcm []byte, sampleRate int) error {
	const numChannels = 1
	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	if _, err := io.WriteString(w, "RIFF"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(36+len(pcm))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "WAVE"); err != nil {
		return err
	}

	if _, err := io.WriteString(w, "fmt "); err != nil {
		return err
	}
	fmtFields := []any{
		uint32(16), // fmt chunk size
		uint16(1),  // PCM
		uint16(numChannels),
		uint32(sampleRate),
		uint32(byteRate),
		uint16(blockAlign),
		uint16(bitsPerSample),
	}
	for _, f := range fmtFields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}

	if _, err := io.WriteString(w, "data"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(pcm))); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}
