// Package sessions provides the PostgreSQL session store.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/common"
	"github.com/dmitrijs2005/salesdash/internal/dbx"
	"github.com/dmitrijs2005/salesdash/internal/server/models"
)

// DB is what the store needs from a connection pool. *sql.DB satisfies it.
type DB interface {
	dbx.DBTX
	dbx.TxBeginner
}

// PostgresRepository stores sessions in the sessions table. Refresh takes a
// row lock, so refresh, expiry removal and the sweep serialise per session.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query :=
		`INSERT INTO sessions (token, user_id, created_at, expires_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (token) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, s.Token, s.UserID, s.CreatedAt, s.ExpiresAt, s.LastSeenAt)
	if err != nil {
		return common.NewStoreError("create session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.NewStoreError("create session", err)
	}
	if n == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

const selectSession = `SELECT token, user_id, created_at, expires_at, last_seen_at
		 FROM sessions
		 WHERE token = $1`

func scanSession(row *sql.Row) (*models.Session, error) {
	s := &models.Session{}
	if err := row.Scan(&s.Token, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.LastSeenAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) Get(ctx context.Context, token string) (*models.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, selectSession, token))
	if err != nil {
		return nil, common.NewStoreError("get session", err)
	}
	return s, nil
}

func (r *PostgresRepository) Refresh(ctx context.Context, token string, now, extendTo time.Time) (*models.Session, error) {
	var (
		out     *models.Session
		expired bool
	)

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		s, err := scanSession(tx.QueryRowContext(ctx, selectSession+` FOR UPDATE`, token))
		if err != nil {
			return err
		}

		if s.ExpiredAt(now) {
			expired = true
			_, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
			return err
		}

		s.LastSeenAt = now
		if extendTo.After(s.ExpiresAt) {
			s.ExpiresAt = extendTo
		}
		query :=
			`UPDATE sessions SET last_seen_at = $2, expires_at = $3
			 WHERE token = $1`
		if _, err := tx.ExecContext(ctx, query, token, s.LastSeenAt, s.ExpiresAt); err != nil {
			return err
		}
		out = s
		return nil
	})

	if err != nil {
		return nil, common.NewStoreError("refresh session", err)
	}
	if expired {
		return nil, common.ErrSessionExpired
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	_, err := r.exec(ctx, "delete session", `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	n, err := r.exec(ctx, "delete user sessions", `DELETE FROM sessions WHERE user_id = $1`, userID)
	return int(n), err
}

func (r *PostgresRepository) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := r.exec(ctx, "sweep sessions", `DELETE FROM sessions WHERE expires_at <= $1`, now)
	return int(n), err
}

func (r *PostgresRepository) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, common.NewStoreError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, common.NewStoreError(op, err)
	}
	return n, nil
}

// Close is a no-op; the pool belongs to the caller.
func (r *PostgresRepository) Close() error { return nil }
