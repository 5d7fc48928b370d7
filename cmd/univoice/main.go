// Command univoice wires microphone capture through the core captioning
// pipeline and prints the resulting event stream to stdout. It is the
// CLI entry point for spec §6's "audio capture device" collaborator:
// this binary owns PCM16 framing and language/provider selection; the
// pipeline.PipelineOrchestrator in pkg/pipeline owns everything
// downstream of the raw frames.
//
// Adapted from the teacher's cmd/agent/main.go: same gen2brain/malgo
// capture-device wiring and joho/godotenv key loading, but mic-only
// (capture device, no playback) since UniVoice has no TTS/speaker leg —
// its only output is the typed event stream.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/univoice/univoice-core/pkg/audio"
	"github.com/univoice/univoice-core/pkg/pipeline"
	asrProvider "github.com/univoice/univoice-core/pkg/providers/asr"
	llmProvider "github.com/univoice/univoice-core/pkg/providers/llm"
	"github.com/univoice/univoice-core/pkg/telemetry"
)

const sampleRate = 16000

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: no .env file found, using system environment variables")
	}

	cfg := pipeline.DefaultConfig()
	if path := os.Getenv("UNIVOICE_CONFIG"); path != "" {
		loaded, err := pipeline.LoadConfig(path)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if src := os.Getenv("UNIVOICE_SOURCE_LANGUAGE"); src != "" {
		cfg.SourceLanguage = pipeline.Language(src)
	}
	if tgt := os.Getenv("UNIVOICE_TARGET_LANGUAGE"); tgt != "" {
		cfg.TargetLanguage = pipeline.Language(tgt)
	}

	asr, err := buildAsrAdapter()
	if err != nil {
		log.Fatalf("asr provider: %v", err)
	}
	llm, err := buildLlmAdapter()
	if err != nil {
		log.Fatalf("llm provider: %v", err)
	}

	logger := pipeline.NewLogrusLogger(nil)

	var metrics *pipeline.Metrics
	metricsAddr := os.Getenv("UNIVOICE_METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}
	telemetryProvider, err := telemetry.NewProvider(metricsAddr)
	if err != nil {
		logger.Warn("metrics exporter disabled", "error", err)
	} else {
		defer telemetryProvider.Shutdown(context.Background())
		metrics = pipeline.NewMetrics(telemetryProvider.Meter("univoice"))
		fmt.Printf("Prometheus metrics on %s/metrics\n", metricsAddr)
	}

	orch := pipeline.NewPipelineOrchestrator(cfg, asr, llm, logger, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsubscribe := orch.Events()
	defer unsubscribe()
	go printEvents(events)

	if err := orch.Start(ctx); err != nil {
		log.Fatalf("start pipeline: %v", err)
	}
	fmt.Printf("UniVoice started: %s -> %s | ASR=%s LLM=%s\n", cfg.SourceLanguage, cfg.TargetLanguage, asr.Name(), llm.Name())
	fmt.Println("Press Ctrl+C to stop.")

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer mctx.Uninit()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	dump := newDebugAudioDump(os.Getenv("UNIVOICE_DEBUG_AUDIO_DUMP"))
	defer dump.close()

	onSamples := func(_, pInput []byte, _ uint32) {
		if len(pInput) == 0 {
			return
		}
		frame := make([]byte, len(pInput))
		copy(frame, pInput)
		dump.append(frame)
		if err := orch.SendAudio(frame); err != nil {
			logger.Warn("send audio failed", "error", err)
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		log.Fatal(err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		log.Fatal(err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("\nShutting down...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := orch.Stop(stopCtx); err != nil {
		log.Printf("stop pipeline: %v", err)
	}
}

// debugAudioDump accumulates the raw capture frames sent to the pipeline
// and writes them out as a single WAV file on close, when a dump path is
// configured. The teacher used the same WAV framing to package mic audio
// for upload to a REST transcription endpoint; here it makes a capture
// session replayable for debugging ASR/translation issues offline.
type debugAudioDump struct {
	path string
	pcm  []byte
}

func newDebugAudioDump(path string) *debugAudioDump {
	return &debugAudioDump{path: path}
}

func (d *debugAudioDump) append(frame []byte) {
	if d.path == "" {
		return
	}
	d.pcm = append(d.pcm, frame...)
}

func (d *debugAudioDump) close() {
	if d.path == "" || len(d.pcm) == 0 {
		return
	}
	f, err := os.Create(d.path)
	if err != nil {
		log.Printf("debug audio dump: %v", err)
		return
	}
	defer f.Close()

	if err := audio.WriteWav(f, d.pcm, sampleRate); err != nil {
		log.Printf("debug audio dump: %v", err)
		return
	}
	fmt.Printf("Wrote debug audio dump to %s (%d bytes)\n", d.path, 44+len(d.pcm))
}

func printEvents(events <-chan pipeline.PipelineEvent) {
	for ev := range events {
		switch ev.Type {
		case pipeline.EventASR:
			seg := ev.Data.(pipeline.TranscriptSegment)
			fmt.Printf("\r\033[K[ASR %v] %s\n", seg.IsFinal, seg.Text)
		case pipeline.EventTranslation:
			res := ev.Data.(pipeline.TranslationResult)
			fmt.Printf("\r\033[K[TRANSLATION] %s\n", res.TargetText)
		case pipeline.EventCombinedSentence:
			cs := ev.Data.(pipeline.CombinedSentence)
			fmt.Printf("\r\033[K[SENTENCE] %s\n", cs.SourceText)
		case pipeline.EventParagraphComplete:
			p := ev.Data.(pipeline.Paragraph)
			fmt.Printf("\r\033[K[PARAGRAPH] %s\n", p.CleanedText)
		case pipeline.EventProgressiveSummary:
			s := ev.Data.(pipeline.Summary)
			fmt.Printf("\r\033[K[SUMMARY %d] %s\n", s.Threshold, s.TargetText)
		case pipeline.EventStatus:
			st := ev.Data.(pipeline.StatusData)
			fmt.Printf("\r\033[K[STATUS] %s\n", st.State)
		case pipeline.EventError:
			e := ev.Data.(pipeline.ErrorData)
			fmt.Printf("\r\033[K[ERROR] %s: %s\n", e.Code, e.Message)
		}
	}
}

func buildAsrAdapter() (pipeline.AsrAdapter, error) {
	provider := os.Getenv("ASR_PROVIDER")
	if provider == "" {
		provider = "deepgram"
	}
	switch provider {
	case "assemblyai":
		key := os.Getenv("ASSEMBLYAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ASSEMBLYAI_API_KEY must be set for assemblyai ASR")
		}
		return asrProvider.NewAssemblyAIASR(key), nil
	case "deepgram":
		fallthrough
	default:
		key := os.Getenv("DEEPGRAM_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY must be set for deepgram ASR")
		}
		return asrProvider.NewDeepgramASR(key), nil
	}
}

func buildLlmAdapter() (pipeline.LlmAdapter, error) {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = "openai"
	}
	switch provider {
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set for anthropic LLM")
		}
		return llmProvider.NewAnthropicLLM(key, os.Getenv("ANTHROPIC_MODEL")), nil
	case "google":
		key := os.Getenv("GOOGLE_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY must be set for google LLM")
		}
		return llmProvider.NewGoogleLLM(context.Background(), key, os.Getenv("GOOGLE_MODEL"))
	case "openai":
		fallthrough
	default:
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai LLM")
		}
		return llmProvider.NewOpenAILLM(key, os.Getenv("OPENAI_MODEL")), nil
	}
}
