package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerr "github.com/assocregistry/gateway/pkg/errors"
)

func TestPostgresSink_WriteDecision(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	d := NewDecision(time.Now(), "user-1", "GET /contacts", false)
	d.Resource = "party-9"
	d.Reason = "insufficient tier"
	d.UserTier = 2
	d.RequiredTier = 1

	mock.ExpectExec("INSERT INTO audit_decisions").
		WithArgs(d.ID, d.Timestamp, d.Actor, d.Resource, d.Action,
			d.Granted, d.Reason, d.UserTier, d.RequiredTier).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sink := NewPostgresSink(mock)
	require.NoError(t, sink.WriteDecision(context.Background(), d))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_WriteEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := NewSecurityEvent(time.Now(), EventRateLimitExceeded, "user:abc")
	e.Details = map[string]string{"bucket": "api"}

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(e.ID, e.Timestamp, string(e.Kind), e.Key, e.Details).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sink := NewPostgresSink(mock)
	require.NoError(t, sink.WriteEvent(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_WriteFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO audit_decisions").
		WillReturnError(errors.New("table missing"))

	sink := NewPostgresSink(mock)
	err = sink.WriteDecision(context.Background(), NewDecision(time.Now(), "a", "GET /x", true))
	require.Error(t, err)
	assert.True(t, gwerr.HasCode(err, gwerr.CodeInternalDatabase))
}
