package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/document-verifier/internal/core/domain"
)

// AuditRepository stores one row per finished extraction attempt. Extracted
// values are never written, only field names.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS extraction_audit (
	session_id TEXT NOT NULL,
	attempt BIGINT NOT NULL,
	outcome TEXT NOT NULL,
	document_type TEXT,
	routing_decision TEXT,
	clarity_score DOUBLE PRECISION,
	field_names JSONB NOT NULL DEFAULT '[]'::jsonb,
	failure_kind TEXT,
	duration_ms BIGINT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (session_id, attempt)
);

CREATE INDEX IF NOT EXISTS idx_extraction_audit_occurred_at ON extraction_audit(occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_extraction_audit_routing ON extraction_audit(routing_decision);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SaveExtractionEvent is idempotent per (session, attempt) so redelivered
// events do not duplicate rows.
func (r *AuditRepository) SaveExtractionEvent(ctx context.Context, event domain.ExtractionEvent) error {
	fieldNames := event.FieldNames
	if fieldNames == nil {
		fieldNames = []string{}
	}
	fieldsJSON, err := json.Marshal(fieldNames)
	if err != nil {
		return fmt.Errorf("marshal field names: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO extraction_audit (
	session_id, attempt, outcome, document_type, routing_decision, clarity_score, field_names, failure_kind, duration_ms, occurred_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (session_id, attempt) DO NOTHING
`,
		event.SessionID,
		int64(event.Attempt),
		string(event.Outcome),
		nullString(event.DocumentType),
		nullString(string(event.RoutingDecision)),
		nullFloat(event.Outcome == domain.OutcomeResultReady, event.ClarityScore),
		fieldsJSON,
		nullString(string(event.FailureKind)),
		event.Duration.Milliseconds(),
		event.OccurredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert extraction audit: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(valid bool, f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: valid}
}
