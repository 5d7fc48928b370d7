// Package persistence is a reference implementation of spec §6's
// persistence contract: a consumer that subscribes to the EventBus and
// appends combinedSentence/paragraphComplete/progressiveSummary rows,
// finalizing the session row on the terminal status{state=idle} event.
// It never mutates core state — it only reads from the bus.
//
// Grounded on pkg/memory/postgres (MrWong99-glyphoxa): a single
// pgxpool.Pool, a Migrate step that runs idempotent CREATE TABLE IF NOT
// EXISTS DDL, and plain pool.Exec/QueryRow calls with no ORM.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/univoice/univoice-core/pkg/pipeline"
)

// execer is the narrow subset of *pgxpool.Pool this package calls.
// Exposing it as an interface lets tests substitute a mock executor
// without a live Postgres connection, the same mock-at-the-interface-
// boundary style as MrWong99-glyphoxa's npcstore postgres tests.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    correlation_id TEXT        PRIMARY KEY,
    started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    finished_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS sentences (
    id             TEXT        PRIMARY KEY,
    correlation_id TEXT        NOT NULL,
    source_text    TEXT        NOT NULL,
    start_ms       BIGINT      NOT NULL,
    end_ms         BIGINT      NOT NULL,
    word_count     INT         NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sentences_correlation
    ON sentences (correlation_id);

CREATE TABLE IF NOT EXISTS paragraphs (
    id             TEXT        PRIMARY KEY,
    correlation_id TEXT        NOT NULL,
    raw_text       TEXT        NOT NULL,
    cleaned_text   TEXT        NOT NULL,
    start_ms       BIGINT      NOT NULL,
    end_ms         BIGINT      NOT NULL,
    duration_ms    BIGINT      NOT NULL,
    word_count     INT         NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_paragraphs_correlation
    ON paragraphs (correlation_id);

CREATE TABLE IF NOT EXISTS summaries (
    id               TEXT        PRIMARY KEY,
    correlation_id   TEXT        NOT NULL,
    source_text      TEXT        NOT NULL,
    target_text      TEXT        NOT NULL,
    source_language  TEXT        NOT NULL,
    target_language  TEXT        NOT NULL,
    word_count       INT         NOT NULL,
    threshold        INT         NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_summaries_correlation
    ON summaries (correlation_id);
`

// Store is a pgx-backed append-only sink for core pipeline events.
type Store struct {
	pool execer
	// closer releases the underlying pool; nil for a Store built over a
	// test execer that doesn't own a connection.
	closer func()
}

// NewStore opens a connection pool against dsn and runs Migrate.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("persistence: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool, closer: pool.Close}, nil
}

// Migrate idempotently creates every table this package writes to.
func Migrate(ctx context.Context, pool execer) error {
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("persistence: migrate: %w", err)
	}
	return nil
}

// Close releases the pool, if this Store owns one.
func (s *Store) Close() {
	if s.closer != nil {
		s.closer()
	}
}

// openSession inserts the session row the first time a correlation is
// seen. Safe to call repeatedly: ON CONFLICT DO NOTHING makes it
// idempotent, matching the append-only policy in spec §6.
func (s *Store) openSession(ctx context.Context, correlationID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (correlation_id) VALUES ($1) ON CONFLICT DO NOTHING`,
		correlationID)
	return err
}

// Run subscribes to orch's event stream and blocks until ctx is done or
// the channel closes, persisting each relevant event. Intended to run on
// its own goroutine, started alongside the orchestrator and stopped by
// cancelling ctx. orch is any type exposing an Events subscription (in
// practice *pipeline.PipelineOrchestrator); the narrow interface keeps
// this package from needing any other orchestrator method.
func (s *Store) Run(ctx context.Context, orch interface {
	Events() (<-chan pipeline.PipelineEvent, func())
}) error {
	events, unsubscribe := orch.Events()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.handle(ctx, ev); err != nil {
				// A persistence error must not break the pipeline (§6:
				// "must not mutate core state"); it is swallowed here the
				// same way a slow subscriber must not block the publisher
				// (§4.1). A real deployment would log/alert on this.
				continue
			}
		}
	}
}

func (s *Store) handle(ctx context.Context, ev pipeline.PipelineEvent) error {
	switch ev.Type {
	case pipeline.EventCombinedSentence:
		cs, ok := ev.Data.(pipeline.CombinedSentence)
		if !ok {
			return nil
		}
		if err := s.openSession(ctx, ev.CorrelationID); err != nil {
			return err
		}
		_, err := s.pool.Exec(ctx,
			`INSERT INTO sentences (id, correlation_id, source_text, start_ms, end_ms, word_count)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO NOTHING`,
			cs.ID, ev.CorrelationID, cs.SourceText, cs.StartMs, cs.EndMs, cs.WordCount)
		return err

	case pipeline.EventParagraphComplete:
		p, ok := ev.Data.(pipeline.Paragraph)
		if !ok {
			return nil
		}
		if err := s.openSession(ctx, ev.CorrelationID); err != nil {
			return err
		}
		_, err := s.pool.Exec(ctx,
			`INSERT INTO paragraphs (id, correlation_id, raw_text, cleaned_text, start_ms, end_ms, duration_ms, word_count)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO NOTHING`,
			p.ID, ev.CorrelationID, p.RawText, p.CleanedText, p.StartMs, p.EndMs, p.DurationMs, p.WordCount)
		return err

	case pipeline.EventProgressiveSummary:
		sm, ok := ev.Data.(pipeline.Summary)
		if !ok {
			return nil
		}
		if err := s.openSession(ctx, ev.CorrelationID); err != nil {
			return err
		}
		_, err := s.pool.Exec(ctx,
			`INSERT INTO summaries (id, correlation_id, source_text, target_text, source_language, target_language, word_count, threshold)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO NOTHING`,
			sm.ID, ev.CorrelationID, sm.SourceText, sm.TargetText, string(sm.SourceLanguage), string(sm.TargetLanguage), sm.WordCount, sm.Threshold)
		return err

	case pipeline.EventStatus:
		st, ok := ev.Data.(pipeline.StatusData)
		if !ok || st.State != pipeline.StateIdle {
			return nil
		}
		// The terminal status event's correlation is cleared by C2 on
		// re-entering idle (spec §4.2), so the session being closed is
		// identified by "most recently opened and not yet finished"
		// rather than by the (empty) correlation on this event.
		if ev.CorrelationID != "" {
			_, err := s.pool.Exec(ctx,
				`UPDATE sessions SET finished_at = $2 WHERE correlation_id = $1 AND finished_at IS NULL`,
				ev.CorrelationID, time.Now())
			return err
		}
		_, err := s.pool.Exec(ctx,
			`UPDATE sessions SET finished_at = $1
			 WHERE correlation_id = (
			     SELECT correlation_id FROM sessions
			     WHERE finished_at IS NULL
			     ORDER BY started_at DESC LIMIT 1
			 )`,
			time.Now())
		return err
	}
	return nil
}
