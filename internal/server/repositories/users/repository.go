// Package users stores dashboard accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/salesdash/internal/server/models"
)

// Repository persists users. Lookups return common.ErrorNotFound for unknown
// users; Create returns common.ErrorAlreadyExists when the login is taken.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, hash []byte) error
	SetActive(ctx context.Context, id string, active bool) error
}
