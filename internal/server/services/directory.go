package services

import (
	"context"

	"github.com/dmitrijs2005/salesdash/internal/server/models"
	"github.com/dmitrijs2005/salesdash/internal/server/repositories/users"
)

// UserDirectory adapts a users.Repository to the lookups the session manager
// performs.
type UserDirectory struct {
	repo users.Repository
}

func NewUserDirectory(repo users.Repository) *UserDirectory {
	return &UserDirectory{repo: repo}
}

func (d *UserDirectory) FindUser(ctx context.Context, identifier string) (*models.User, error) {
	return d.repo.GetUserByLogin(ctx, identifier)
}

func (d *UserDirectory) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return d.repo.GetUserByID(ctx, userID)
}
