package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/assocregistry/gateway/pkg/config"
	gwerr "github.com/assocregistry/gateway/pkg/errors"
	"github.com/assocregistry/gateway/pkg/tier"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/assocregistry/gateway/pkg/store"

// Pool defines the pgx pool operations the store uses. It is satisfied by
// [*pgxpool.Pool] and by pgxmock pools, enabling unit tests without a real
// database via [NewFromPool].
type Pool interface {
	// Query executes a SQL query that returns rows.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)

	// QueryRow executes a SQL query that returns at most one row.
	// Errors are deferred until the returned pgx.Row is scanned.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row

	// Exec executes a SQL statement that does not return rows.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Ping verifies the connection to the database is alive.
	Ping(ctx context.Context) error

	// Close releases all pool resources.
	Close()
}

// Compile-time check that *pgxpool.Pool satisfies Pool.
var _ Pool = (*pgxpool.Pool)(nil)

const (
	resolvePartyIDSQL = `SELECT party_id FROM machine_clients WHERE client_id = $1 AND revoked_at IS NULL`

	getTierInfoSQL = `SELECT tier, method, verified_at, reverification_due
FROM entity_verifications WHERE party_id = $1`
)

// Postgres is the production registry store. It wraps a [Pool] and adds
// OpenTelemetry tracing and structured error classification to every
// lookup. A Postgres store is safe for concurrent use; create one per
// process and share it.
type Postgres struct {
	pool   Pool
	tracer trace.Tracer
}

// Compile-time interface compliance checks.
var (
	_ EntityResolver = (*Postgres)(nil)
	_ TierReader     = (*Postgres)(nil)
)

// NewPostgres connects to the registry database and verifies connectivity
// with a ping. The caller must call [Postgres.Close] when done.
//
// Error codes returned:
//   - [gwerr.CodeValidation]: invalid DSN
//   - [gwerr.CodeUnavailableDependency]: cannot reach the database
func NewPostgres(ctx context.Context, cfg config.Postgres) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeValidation,
			"store: failed to parse postgres DSN")
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeUnavailableDependency,
			"store: failed to create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, gwerr.Wrap(err, gwerr.CodeUnavailableDependency,
			"store: failed to connect to registry database")
	}

	return NewFromPool(pool), nil
}

// NewFromPool creates a Postgres store with a pre-existing [Pool]. Intended
// for tests injecting a pgxmock pool:
//
//	mock, _ := pgxmock.NewPool()
//	s := store.NewFromPool(mock)
func NewFromPool(pool Pool) *Postgres {
	return &Postgres{
		pool:   pool,
		tracer: otel.Tracer(tracerName),
	}
}

// ResolvePartyID returns the party id that owns the given OAuth client id.
// Revoked registrations do not resolve.
//
// Error codes returned:
//   - [gwerr.CodeNotFound]: no active registration for the client id
//   - [gwerr.CodeTimeoutDependency]: context deadline exceeded
//   - [gwerr.CodeInternalDatabase]: any other database failure
func (s *Postgres) ResolvePartyID(ctx context.Context, clientID string) (string, error) {
	ctx, span := s.startSpan(ctx, "ResolvePartyID")
	var err error
	defer func() { finishSpan(span, err) }()

	var partyID string
	err = s.pool.QueryRow(ctx, resolvePartyIDSQL, clientID).Scan(&partyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = gwerr.Newf(gwerr.CodeNotFound,
				"store: no party registered for client %q", clientID)
			return "", err
		}
		err = wrapDBError(err, "store: party lookup failed")
		return "", err
	}
	return partyID, nil
}

// GetTierInfo returns the verification state recorded for the given party.
//
// Error codes returned:
//   - [gwerr.CodeNotFound]: the party has no verification record
//   - [gwerr.CodeInternalDatabase]: a stored tier value outside the defined
//     range, or any other database failure
//   - [gwerr.CodeTimeoutDependency]: context deadline exceeded
func (s *Postgres) GetTierInfo(ctx context.Context, partyID string) (tier.Info, error) {
	ctx, span := s.startSpan(ctx, "GetTierInfo")
	var err error
	defer func() { finishSpan(span, err) }()

	var (
		rawTier    int
		method     string
		verifiedAt time.Time
		due        *time.Time
	)
	err = s.pool.QueryRow(ctx, getTierInfoSQL, partyID).
		Scan(&rawTier, &method, &verifiedAt, &due)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = gwerr.Newf(gwerr.CodeNotFound,
				"store: no verification record for party %q", partyID)
			return tier.Info{}, err
		}
		err = wrapDBError(err, "store: tier lookup failed")
		return tier.Info{}, err
	}

	t, parseErr := tier.ParseTier(rawTier)
	if parseErr != nil {
		err = gwerr.Wrapf(parseErr, gwerr.CodeInternalDatabase,
			"store: corrupt tier value for party %q", partyID)
		return tier.Info{}, err
	}

	info := tier.Info{
		Tier:       t,
		Method:     tier.VerificationMethod(method),
		VerifiedAt: verifiedAt,
	}
	if due != nil {
		info.ReverificationDue = *due
	}
	return info, nil
}

// Health verifies the registry database is reachable. Designed for
// readiness probes.
func (s *Postgres) Health(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Health")
	err := s.pool.Ping(ctx)
	finishSpan(span, err)
	if err != nil {
		return gwerr.Wrap(err, gwerr.CodeUnavailableDependency,
			"store: health check failed")
	}
	return nil
}

// Close releases the connection pool. The store must not be used after
// Close.
func (s *Postgres) Close() {
	s.pool.Close()
}

// Pool returns the underlying [Pool] for operations the store does not
// cover (schema setup in tests, batch maintenance). Do not close the
// returned pool directly; use [Postgres.Close].
func (s *Postgres) Pool() Pool {
	return s.pool
}

// startSpan creates a span with database client semantic attributes.
func (s *Postgres) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "store."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", operation),
	)
	return ctx, span
}

// finishSpan records an error on the span (if any) and ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// wrapDBError classifies a database error, distinguishing deadline and
// cancellation faults from general database errors so callers can make
// availability decisions via [gwerr.IsTimeout].
func wrapDBError(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return gwerr.Wrap(err, gwerr.CodeTimeoutDependency, message)
	}
	return gwerr.Wrap(err, gwerr.CodeInternalDatabase, message)
}
