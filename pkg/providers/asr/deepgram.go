package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/univoice/univoice-core/pkg/pipeline"
)

// DeepgramASR is a streaming AsrAdapter backed by Deepgram's realtime
// websocket endpoint. The websocket read/write discipline (single owned
// *websocket.Conn behind a mutex, reconnect-by-nil-out-on-error) is
// grounded on pkg/providers/tts/lokutor.go's StreamSynthesize; the query
// parameter set (model, smart_format, language) carries over from the
// teacher's batch pkg/providers/stt/deepgram.go.
type DeepgramASR struct {
	apiKey string
	host   string

	mu             sync.Mutex
	conn           *websocket.Conn
	cancel         context.CancelFunc
	callbacks      pipeline.AsrCallbacks
	utteranceID    string
	sourceLanguage pipeline.Language
}

// NewDeepgramASR builds a Deepgram streaming adapter.
func NewDeepgramASR(apiKey string) *DeepgramASR {
	return &DeepgramASR{
		apiKey: apiKey,
		host:   "api.deepgram.com",
	}
}

func (d *DeepgramASR) Name() string { return "deepgram-asr" }

// Connect opens the websocket and starts a background goroutine that
// decodes transcript frames and dispatches them via callbacks.
func (d *DeepgramASR) Connect(ctx context.Context, sourceLanguage pipeline.Language, callbacks pipeline.AsrCallbacks) error {
	u := url.URL{
		Scheme: "wss",
		Host:   d.host,
		Path:   "/v1/listen",
	}
	q := u.Query()
	q.Set("model", "nova-2")
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "16000")
	if sourceLanguage != "" {
		q.Set("language", string(sourceLanguage))
	}
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, u.String(), &websocket.DialOptions{
		HTTPHeader: map[string][]string{"Authorization": {"Token " + d.apiKey}},
	})
	if err != nil {
		return fmt.Errorf("deepgram dial: %w", err)
	}

	streamCtx, streamCancel := context.WithCancel(context.Background())

	d.mu.Lock()
	d.conn = conn
	d.cancel = streamCancel
	d.callbacks = callbacks
	d.sourceLanguage = sourceLanguage
	d.mu.Unlock()

	if callbacks.OnConnected != nil {
		callbacks.OnConnected()
	}

	go d.readLoop(streamCtx, conn)
	return nil
}

type deepgramFrame struct {
	IsFinal bool `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (d *DeepgramASR) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		d.mu.Lock()
		connected := d.conn == conn
		if connected {
			d.conn = nil
		}
		cb := d.callbacks
		d.mu.Unlock()
		if connected && cb.OnDisconnected != nil {
			cb.OnDisconnected()
		}
	}()

	for {
		_, payload, err := conn.Read(ctx)
		if err != nil {
			d.mu.Lock()
			cb := d.callbacks
			d.mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			if cb.OnError != nil {
				cb.OnError(pipeline.AsrError{Code: "ASR_STREAM_ERROR", Message: err.Error(), Recoverable: true})
			}
			return
		}

		var frame deepgramFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			continue
		}
		if len(frame.Channel.Alternatives) == 0 || frame.Channel.Alternatives[0].Transcript == "" {
			continue
		}

		alt := frame.Channel.Alternatives[0]
		d.mu.Lock()
		cb := d.callbacks
		lang := d.sourceLanguage
		// Interim results for the same utterance share an ID until a
		// final arrives; the next utterance (interim or final) then
		// gets a fresh one (spec §4.3: "the same logical utterance
		// keeps the same id across interims").
		if d.utteranceID == "" {
			d.utteranceID = uuid.NewString()
		}
		id := d.utteranceID
		if frame.IsFinal {
			d.utteranceID = ""
		}
		d.mu.Unlock()
		if cb.OnTranscript != nil {
			cb.OnTranscript(pipeline.TranscriptSegment{
				ID:          id,
				Text:        alt.Transcript,
				TimestampMs: time.Now().UnixMilli(),
				Confidence:  alt.Confidence,
				IsFinal:     frame.IsFinal,
				Language:    lang,
			})
		}
	}
}

// SendAudio forwards one PCM16 mono 16kHz frame as a binary websocket
// message.
func (d *DeepgramASR) SendAudio(frame []byte) error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("deepgram: not connected")
	}
	return conn.Write(context.Background(), websocket.MessageBinary, frame)
}

// Close sends the Deepgram CloseStream sentinel and tears down the
// connection.
func (d *DeepgramASR) Close() error {
	d.mu.Lock()
	conn := d.conn
	cancel := d.cancel
	d.conn = nil
	d.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
	err := conn.Close(websocket.StatusNormalClosure, "")
	if cancel != nil {
		cancel()
	}
	return err
}
