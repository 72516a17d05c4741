package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/salesdash/internal/dbx"
	"github.com/dmitrijs2005/salesdash/internal/server/repositories/users"
	"github.com/dmitrijs2005/salesdash/internal/server/sessions"

	sessionrepo "github.com/dmitrijs2005/salesdash/internal/server/repositories/sessions"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db sessionrepo.DB) sessions.Store
}

// Stores is the pair of repositories the server runs on.
type Stores struct {
	Users    users.Repository
	Sessions sessions.Store
	// DB is nil for in-memory stores.
	DB *sql.DB
}

// Close releases the session store and the connection pool, if any.
func (s *Stores) Close() error {
	err := s.Sessions.Close()
	if s.DB != nil {
		if cerr := s.DB.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// NewMemoryStores returns process-local stores, used when no database is
// configured.
func NewMemoryStores() *Stores {
	return &Stores{
		Users:    users.NewMemoryRepository(),
		Sessions: sessions.NewMemoryStore(),
	}
}
