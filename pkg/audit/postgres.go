package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"

	gwerr "github.com/assocregistry/gateway/pkg/errors"
)

// Execer is the single database operation the postgres sink needs. It is
// satisfied by [*pgxpool.Pool], by the registry store's pool and by pgxmock
// pools.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	insertDecisionSQL = `INSERT INTO audit_decisions
(id, decided_at, actor, resource, action, granted, reason, user_tier, required_tier)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	insertEventSQL = `INSERT INTO audit_events (id, occurred_at, kind, key, details)
VALUES ($1, $2, $3, $4, $5)`
)

// PostgresSink persists audit records to append-only tables. Wrap it in an
// [AsyncSink] on the request path; PostgresSink itself writes
// synchronously.
type PostgresSink struct {
	db Execer
}

var _ Sink = (*PostgresSink)(nil)

// NewPostgresSink creates a sink writing through the given Execer.
func NewPostgresSink(db Execer) *PostgresSink {
	return &PostgresSink{db: db}
}

// WriteDecision inserts the decision row.
func (s *PostgresSink) WriteDecision(ctx context.Context, d Decision) error {
	_, err := s.db.Exec(ctx, insertDecisionSQL,
		d.ID, d.Timestamp, d.Actor, d.Resource, d.Action,
		d.Granted, d.Reason, d.UserTier, d.RequiredTier,
	)
	if err != nil {
		return gwerr.Wrap(err, gwerr.CodeInternalDatabase,
			"audit: failed to write decision")
	}
	return nil
}

// WriteEvent inserts the event row. Details are stored as a jsonb column;
// pgx encodes the map directly.
func (s *PostgresSink) WriteEvent(ctx context.Context, e SecurityEvent) error {
	_, err := s.db.Exec(ctx, insertEventSQL,
		e.ID, e.Timestamp, string(e.Kind), e.Key, e.Details,
	)
	if err != nil {
		return gwerr.Wrap(err, gwerr.CodeInternalDatabase,
			"audit: failed to write security event")
	}
	return nil
}
