// Package transport exposes the pipeline's EventBus and command surface
// over a websocket, one connection per UI client.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/univoice/univoice-core/pkg/pipeline"
)

// command is the inbound envelope for §6's UI command set.
type command struct {
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

type commandResult struct {
	Success       bool   `json:"success"`
	CorrelationID string `json:"correlation_id"`
	Error         string `json:"error,omitempty"`
}

type startListeningPayload struct {
	SourceLanguage pipeline.Language `json:"source_language"`
	TargetLanguage pipeline.Language `json:"target_language"`
}

type translateUserInputPayload struct {
	Text string            `json:"text"`
	From pipeline.Language `json:"from"`
	To   pipeline.Language `json:"to"`
}

type getHistoryPayload struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Server fans out PipelineEvent over one websocket per client and
// applies inbound §6 commands to a shared orchestrator. Connection
// lifecycle mirrors the teacher's single owned *websocket.Conn behind a
// mutex, reconnect-by-nil-out-on-error (pkg/providers/tts/lokutor.go),
// generalized to server-Accept rather than client-Dial.
type Server struct {
	orch *pipeline.PipelineOrchestrator

	mu      sync.Mutex
	clients map[int]*websocket.Conn
	nextID  int
}

// NewServer wires a Server around an already-constructed orchestrator.
func NewServer(orch *pipeline.PipelineOrchestrator) *Server {
	return &Server{
		orch:    orch,
		clients: make(map[int]*websocket.Conn),
	}
}

// ServeHTTP upgrades the request to a websocket, registers the
// connection as an event subscriber, and reads inbound commands until
// the client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server closing")

	id := s.registerClient(conn)
	defer s.unregisterClient(id)

	ctx := r.Context()
	events, unsubscribe := s.orch.Events()
	defer unsubscribe()

	go s.pumpEvents(ctx, conn, events)

	for {
		var cmd command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			return
		}
		go s.handleCommand(ctx, conn, cmd)
	}
}

func (s *Server) registerClient(conn *websocket.Conn) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.clients[s.nextID] = conn
	return s.nextID
}

func (s *Server) unregisterClient(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, id)
}

func (s *Server) pumpEvents(ctx context.Context, conn *websocket.Conn, events <-chan pipeline.PipelineEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				conn.Close(websocket.StatusAbnormalClosure, "failed to write event")
				return
			}
		}
	}
}

// handleCommand applies one §6 command and writes back a
// {success, error?} result, matching "unknown commands yield
// UNKNOWN_COMMAND; malformed commands yield COMMAND_VALIDATION_ERROR".
func (s *Server) handleCommand(ctx context.Context, conn *websocket.Conn, cmd command) {
	result := commandResult{CorrelationID: cmd.CorrelationID, Success: true}

	switch cmd.Type {
	case "startListening":
		var p startListeningPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			result = failure(cmd.CorrelationID, string(pipeline.ErrCodeCommandValidation))
			break
		}
		if err := s.orch.UpdateLanguages(p.SourceLanguage, p.TargetLanguage); err != nil {
			result = failure(cmd.CorrelationID, err.Error())
			break
		}
		if err := s.orch.Start(ctx); err != nil {
			result = failure(cmd.CorrelationID, err.Error())
		}
	case "stopListening":
		if err := s.orch.Stop(ctx); err != nil {
			result = failure(cmd.CorrelationID, err.Error())
		}
	case "pause":
		if err := s.orch.Pause(); err != nil {
			result = failure(cmd.CorrelationID, err.Error())
		}
	case "resume":
		if err := s.orch.Resume(); err != nil {
			result = failure(cmd.CorrelationID, err.Error())
		}
	case "translateUserInput":
		var p translateUserInputPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			result = failure(cmd.CorrelationID, string(pipeline.ErrCodeCommandValidation))
			break
		}
		translated, err := s.orch.TranslateUserText(ctx, p.Text, p.From, p.To)
		if err != nil {
			result = failure(cmd.CorrelationID, err.Error())
			break
		}
		writeJSON(ctx, conn, map[string]interface{}{
			"correlation_id": cmd.CorrelationID,
			"translation":    translated,
		})
		return
	case "getHistory":
		var p getHistoryPayload
		_ = json.Unmarshal(cmd.Payload, &p)
		history := s.orch.GetHistory(p.Limit, p.Offset)
		writeJSON(ctx, conn, map[string]interface{}{
			"correlation_id": cmd.CorrelationID,
			"history":        history,
		})
		return
	case "clearHistory":
		s.orch.ClearHistory()
	case "generateFinalReport":
		report, err := s.orch.GenerateFinalReport(ctx)
		if err != nil {
			result = failure(cmd.CorrelationID, err.Error())
			break
		}
		writeJSON(ctx, conn, map[string]interface{}{
			"correlation_id": cmd.CorrelationID,
			"report":         report,
		})
		return
	case "generateVocabulary":
		vocab, err := s.orch.GenerateVocabulary(ctx)
		if err != nil {
			result = failure(cmd.CorrelationID, err.Error())
			break
		}
		writeJSON(ctx, conn, map[string]interface{}{
			"correlation_id": cmd.CorrelationID,
			"vocabulary":     vocab,
		})
		return
	default:
		result = failure(cmd.CorrelationID, string(pipeline.ErrCodeUnknownCommand))
	}

	writeJSON(ctx, conn, result)
}

func failure(correlationID, message string) commandResult {
	return commandResult{Success: false, CorrelationID: correlationID, Error: message}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v interface{}) {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = wsjson.Write(writeCtx, conn, v)
}

// NewCorrelationID mints a correlation for commands the transport
// originates itself (e.g. a health-check ping), per §6's "every command
// is assigned a correlation for tracing".
func NewCorrelationID() string {
	return uuid.NewString()
}
