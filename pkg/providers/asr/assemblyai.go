package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/univoice/univoice-core/pkg/pipeline"
)

// flushInterval is how often buffered audio is drained and submitted as
// a batch transcription request. AssemblyAI's REST upload/submit/poll
// flow (grounded on pkg/providers/stt/assemblyai.go) has no realtime
// counterpart in the teacher's stack, so AssemblyAIASR approximates
// streaming by chunking: every flushInterval, whatever PCM has arrived
// since the last flush is transcribed as one segment and emitted final.
const flushInterval = 3 * time.Second

// AssemblyAIASR is a chunked-batch AsrAdapter.
type AssemblyAIASR struct {
	apiKey  string
	baseURL string

	mu     sync.Mutex
	buf    []byte
	cancel context.CancelFunc
	done   chan struct{}
	lang   pipeline.Language
	cb     pipeline.AsrCallbacks
}

// NewAssemblyAIASR builds a chunked-batch adapter against the real
// AssemblyAI API.
func NewAssemblyAIASR(apiKey string) *AssemblyAIASR {
	return &AssemblyAIASR{apiKey: apiKey, baseURL: "https://api.assemblyai.com"}
}

func (a *AssemblyAIASR) Name() string { return "assemblyai-asr" }

// Connect starts the periodic flush loop. There is no persistent
// upstream connection to open, so OnConnected fires immediately.
func (a *AssemblyAIASR) Connect(ctx context.Context, sourceLanguage pipeline.Language, callbacks pipeline.AsrCallbacks) error {
	loopCtx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	a.cancel = cancel
	a.lang = sourceLanguage
	a.cb = callbacks
	a.done = make(chan struct{})
	a.mu.Unlock()

	if callbacks.OnConnected != nil {
		callbacks.OnConnected()
	}

	go a.flushLoop(loopCtx)
	return nil
}

func (a *AssemblyAIASR) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	defer close(a.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.flushOnce(ctx)
		}
	}
}

func (a *AssemblyAIASR) flushOnce(ctx context.Context) {
	a.mu.Lock()
	chunk := a.buf
	a.buf = nil
	lang := a.lang
	cb := a.cb
	a.mu.Unlock()

	if len(chunk) == 0 {
		return
	}

	text, err := a.transcribeChunk(ctx, chunk, lang)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(pipeline.AsrError{Code: "ASR_STREAM_ERROR", Message: err.Error(), Recoverable: true})
		}
		return
	}
	if text == "" {
		return
	}
	if cb.OnTranscript != nil {
		cb.OnTranscript(pipeline.TranscriptSegment{
			ID:          uuid.NewString(),
			Text:        text,
			TimestampMs: time.Now().UnixMilli(),
			Confidence:  1,
			IsFinal:     true,
			Language:    lang,
		})
	}
}

func (a *AssemblyAIASR) transcribeChunk(ctx context.Context, audioPCM []byte, lang pipeline.Language) (string, error) {
	uploadURL, err := a.upload(ctx, audioPCM)
	if err != nil {
		return "", err
	}
	transcriptID, err := a.submit(ctx, uploadURL, lang)
	if err != nil {
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(500 * time.Millisecond):
			text, status, err := a.getTranscript(ctx, transcriptID)
			if err != nil {
				return "", err
			}
			if status == "completed" {
				return text, nil
			}
			if status == "error" {
				return "", fmt.Errorf("assemblyai transcription failed")
			}
		}
	}
}

func (a *AssemblyAIASR) upload(ctx context.Context, audioPCM []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/v2/upload", bytes.NewReader(audioPCM))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", a.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.UploadURL, nil
}

func (a *AssemblyAIASR) submit(ctx context.Context, uploadURL string, lang pipeline.Language) (string, error) {
	payload := map[string]interface{}{"audio_url": uploadURL}
	if lang != "" {
		payload["language_code"] = string(lang)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func (a *AssemblyAIASR) getTranscript(ctx context.Context, id string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+"/v2/transcript/"+id, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", a.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var result struct {
		Status string `json:"status"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", err
	}
	return result.Text, result.Status, nil
}

// SendAudio appends the frame to the pending buffer for the next flush.
func (a *AssemblyAIASR) SendAudio(frame []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf = append(a.buf, frame...)
	return nil
}

// Close stops the flush loop without draining any remaining buffered
// audio (a partial final chunk is discarded, matching Deepgram's Close
// not waiting for a last transcript).
func (a *AssemblyAIASR) Close() error {
	a.mu.Lock()
	cancel := a.cancel
	done := a.done
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}
