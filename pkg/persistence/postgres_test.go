package persistence

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/univoice/univoice-core/pkg/pipeline"
)

// mockExecer records every statement it is asked to run, the way
// MrWong99-glyphoxa's npcstore postgres tests mock pgx.Row/Rows at the
// interface boundary instead of hitting a live database.
type mockExecer struct {
	stmts []string
	args  [][]any
	err   error
}

func (m *mockExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.stmts = append(m.stmts, sql)
	m.args = append(m.args, args)
	return pgconn.CommandTag{}, m.err
}

func (m *mockExecer) contains(substr string) bool {
	for _, s := range m.stmts {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func TestHandleCombinedSentenceInsertsSentenceAndOpensSession(t *testing.T) {
	m := &mockExecer{}
	s := &Store{pool: m}

	ev := pipeline.PipelineEvent{
		Type:          pipeline.EventCombinedSentence,
		CorrelationID: "corr-1",
		Data: pipeline.CombinedSentence{
			ID:         "sent-1",
			SourceText: "hello world",
			WordCount:  2,
		},
	}
	if err := s.handle(context.Background(), ev); err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
	if !m.contains("INSERT INTO sessions") {
		t.Error("expected a session row to be opened")
	}
	if !m.contains("INSERT INTO sentences") {
		t.Error("expected a sentence row to be inserted")
	}
}

func TestHandleParagraphCompleteInsertsParagraph(t *testing.T) {
	m := &mockExecer{}
	s := &Store{pool: m}

	ev := pipeline.PipelineEvent{
		Type:          pipeline.EventParagraphComplete,
		CorrelationID: "corr-1",
		Data: pipeline.Paragraph{
			ID:          "para-1",
			CleanedText: "a cleaned paragraph.",
		},
	}
	if err := s.handle(context.Background(), ev); err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
	if !m.contains("INSERT INTO paragraphs") {
		t.Error("expected a paragraph row to be inserted")
	}
}

func TestHandleProgressiveSummaryInsertsSummary(t *testing.T) {
	m := &mockExecer{}
	s := &Store{pool: m}

	ev := pipeline.PipelineEvent{
		Type:          pipeline.EventProgressiveSummary,
		CorrelationID: "corr-1",
		Data: pipeline.Summary{
			ID:        "sum-1",
			Threshold: 400,
		},
	}
	if err := s.handle(context.Background(), ev); err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
	if !m.contains("INSERT INTO summaries") {
		t.Error("expected a summary row to be inserted")
	}
}

func TestHandleTerminalStatusFinalizesMostRecentOpenSession(t *testing.T) {
	m := &mockExecer{}
	s := &Store{pool: m}

	ev := pipeline.PipelineEvent{
		Type:          pipeline.EventStatus,
		CorrelationID: "", // cleared by C2 on re-entering idle
		Data:          pipeline.StatusData{State: pipeline.StateIdle},
	}
	if err := s.handle(context.Background(), ev); err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
	if !m.contains("ORDER BY started_at DESC") {
		t.Error("expected a fallback close-most-recent-session statement")
	}
}

func TestHandleNonTerminalStatusIsNoOp(t *testing.T) {
	m := &mockExecer{}
	s := &Store{pool: m}

	ev := pipeline.PipelineEvent{
		Type: pipeline.EventStatus,
		Data: pipeline.StatusData{State: pipeline.StateListening},
	}
	if err := s.handle(context.Background(), ev); err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
	if len(m.stmts) != 0 {
		t.Errorf("expected no statements for a non-terminal status event, got %d", len(m.stmts))
	}
}

func TestHandleIgnoresIrrelevantEventTypes(t *testing.T) {
	m := &mockExecer{}
	s := &Store{pool: m}

	ev := pipeline.PipelineEvent{Type: pipeline.EventASR, Data: pipeline.TranscriptSegment{}}
	if err := s.handle(context.Background(), ev); err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
	if len(m.stmts) != 0 {
		t.Errorf("expected asr events to be ignored, got %d statements", len(m.stmts))
	}
}

func TestMigrateRunsDDL(t *testing.T) {
	m := &mockExecer{}
	if err := Migrate(context.Background(), m); err != nil {
		t.Fatalf("migrate returned error: %v", err)
	}
	if !m.contains("CREATE TABLE IF NOT EXISTS sessions") {
		t.Error("expected Migrate to create the sessions table")
	}
}
