package pipeline

import "context"

// AsrError is surfaced by AsrAdapter.Connect/OnError per spec §4.3.
type AsrError struct {
	Code        string
	Message     string
	Recoverable bool
}

func (e *AsrError) Error() string { return e.Message }

// AsrCallbacks groups the single-threaded-w.r.t.-dispatcher callbacks an
// AsrAdapter invokes. The core marshals them onto its own dispatcher;
// adapters must not assume any particular calling goroutine.
type AsrCallbacks struct {
	OnTranscript  func(TranscriptSegment)
	OnError       func(AsrError)
	OnConnected   func()
	OnDisconnected func()
}

// AsrAdapter is the C3 port. Concrete providers (pkg/providers/asr) are
// implementations; the core never imports provider SDK types — it only
// sees this capability set, the same way pkg/orchestrator/types.go's
// STTProvider/StreamingSTTProvider keep the teacher's orchestrator
// provider-agnostic.
type AsrAdapter interface {
	// Connect opens the streaming session. May block until the upstream
	// handshake completes.
	Connect(ctx context.Context, sourceLanguage Language, callbacks AsrCallbacks) error

	// SendAudio forwards one PCM16 mono 16kHz frame. Non-blocking.
	SendAudio(frame []byte) error

	// Close tears down the streaming session.
	Close() error

	// Name identifies the provider for logs/metrics.
	Name() string
}
