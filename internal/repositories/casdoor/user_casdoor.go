package casdoor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/exam-service/internal/config"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

// UserCasdoor resolves users through the Casdoor API with a redis read-through cache
type UserCasdoor struct {
	client *casdoorsdk.Client
	redis  *redis.Client

	cachePrefix string
	cacheTTL    time.Duration
}

func NewUserCasdoor(cfg config.CasdoorConfig, redisClient *redis.Client) repositories.UserRepository {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)

	return &UserCasdoor{
		client:      client,
		redis:       redisClient,
		cachePrefix: "user:",
		cacheTTL:    15 * time.Minute,
	}
}

// ===== CACHE METHODS =====

func (u *UserCasdoor) cacheKey(key string) string {
	return u.cachePrefix + key
}

// cached returns (nil, nil) on a miss or when redis is not configured
func (u *UserCasdoor) cached(ctx context.Context, key string) (*models.User, error) {
	if u.redis == nil {
		return nil, nil
	}

	data, err := u.redis.Get(ctx, u.cacheKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached user: %w", err)
	}
	return &user, nil
}

func (u *UserCasdoor) store(ctx context.Context, key string, user *models.User) {
	if u.redis == nil {
		return
	}
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	u.redis.Set(ctx, u.cacheKey(key), data, u.cacheTTL)
}

// ===== CONVERSION =====

// ToModel converts a Casdoor user into the service's user model
func ToModel(casdoorUser *casdoorsdk.User) *models.User {
	if casdoorUser == nil {
		return nil
	}

	user := &models.User{
		ID:            casdoorUser.Id,
		FullName:      casdoorUser.DisplayName,
		Email:         casdoorUser.Email,
		Role:          MapRoles(casdoorUser),
		EmailVerified: casdoorUser.EmailVerified,
	}
	if casdoorUser.Avatar != "" {
		avatar := casdoorUser.Avatar
		user.AvatarURL = &avatar
	}
	return user
}

// MapRoles picks the primary role. Admin wins over everything else.
func MapRoles(casdoorUser *casdoorsdk.User) models.UserRole {
	var roles []models.UserRole
	for _, r := range casdoorUser.Roles {
		mapped := MapRole(r.Name)
		if !slices.Contains(roles, mapped) {
			roles = append(roles, mapped)
		}
	}

	if slices.Contains(roles, models.RoleAdmin) || casdoorUser.IsAdmin {
		return models.RoleAdmin
	}
	if slices.Contains(roles, models.RoleTeacher) {
		return models.RoleTeacher
	}
	if len(roles) == 0 {
		return models.RoleStudent
	}
	return roles[0]
}

func MapRole(name string) models.UserRole {
	switch strings.ToLower(name) {
	case "teacher", "instructor":
		return models.RoleTeacher
	case "proctor":
		return models.RoleProctor
	case "admin", "administrator":
		return models.RoleAdmin
	default:
		return models.RoleStudent
	}
}

// ===== READ OPERATIONS =====

func (u *UserCasdoor) GetByID(ctx context.Context, id string) (*models.User, error) {
	key := "id:" + id
	if user, err := u.cached(ctx, key); err == nil && user != nil {
		return user, nil
	}

	casdoorUser, err := u.client.GetUserByUserId(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
	}
	if casdoorUser == nil {
		return nil, fmt.Errorf("user %s: %w", id, repositories.ErrNotFound)
	}

	user := ToModel(casdoorUser)
	u.store(ctx, key, user)
	return user, nil
}

func (u *UserCasdoor) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	users := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		user, err := u.GetByID(ctx, id)
		if err != nil {
			// Missing users are skipped
			continue
		}
		users = append(users, user)
	}
	return users, nil
}
