package repositories

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// UserRepository reads users from the identity provider. The exam service does not own user data.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}
