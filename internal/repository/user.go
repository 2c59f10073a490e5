package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/vidstream/accounts/internal/model"
	ctxutil "github.com/vidstream/accounts/pkg/context"
	"github.com/vidstream/accounts/pkg/logger"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "GetByID")

	start := time.Now()
	var user model.User

	result := r.db.WithContext(ctx).Where("id = ?", id).First(&user)
	duration := time.Since(start)

	if result.Error != nil {
		logger.DebugWithContext(ctx, "Failed to get user by ID").
			Uint("user_id", id).
			Duration(duration).
			Err(result.Error).
			Log()
		return nil, result.Error
	}

	return &user, nil
}

// GetByUsernameOrEmail matches either identifier, case-insensitively. Empty
// arguments never match anything.
func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "GetByUsernameOrEmail")

	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))

	start := time.Now()
	var user model.User

	query := r.db.WithContext(ctx)
	switch {
	case username != "" && email != "":
		query = query.Where("lower(username) = ? OR lower(email) = ?", username, email)
	case username != "":
		query = query.Where("lower(username) = ?", username)
	case email != "":
		query = query.Where("lower(email) = ?", email)
	default:
		return nil, gorm.ErrRecordNotFound
	}

	result := query.First(&user)
	duration := time.Since(start)

	if result.Error != nil {
		logger.DebugWithContext(ctx, "User lookup by username/email missed").
			String("username", username).
			String("email", email).
			Duration(duration).
			Err(result.Error).
			Log()
		return nil, result.Error
	}

	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "Create")

	start := time.Now()
	result := r.db.WithContext(ctx).Create(user)
	duration := time.Since(start)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to create user").
			String("username", user.Username).
			Duration(duration).
			Err(result.Error).
			Log()
		return result.Error
	}

	logger.InfoWithContext(ctx, "User created").
		Uint("user_id", user.ID).
		String("username", user.Username).
		Duration(duration).
		Log()

	return nil
}

// UpdateAccount replaces the mutable profile fields.
func (r *UserRepository) UpdateAccount(ctx context.Context, id uint, fullName, email string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdateAccount")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"full_name": fullName,
		"email":     email,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uint, hashedPassword string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdatePassword")

	start := time.Now()
	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("password", hashedPassword)
	duration := time.Since(start)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to update password").
			Uint("user_id", id).
			Duration(duration).
			Err(result.Error).
			Log()
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.InfoWithContext(ctx, "Password updated").
		Uint("user_id", id).
		Duration(duration).
		Log()

	return nil
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id uint, url, key string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdateAvatar")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"avatar_url": url,
		"avatar_key": key,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *UserRepository) UpdateCoverImage(ctx context.Context, id uint, url, key string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdateCoverImage")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"cover_image_url": url,
		"cover_image_key": key,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// UpdateRefreshToken overwrites the stored refresh token. Used by login,
// where last write wins for concurrent logins.
func (r *UserRepository) UpdateRefreshToken(ctx context.Context, id uint, token string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdateRefreshToken")

	start := time.Now()
	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("refresh_token", token)
	duration := time.Since(start)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to update refresh token").
			Uint("user_id", id).
			Duration(duration).
			Err(result.Error).
			Log()
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// RotateRefreshToken swaps the stored refresh token for a new one only if it
// still equals the presented value. A zero rows-affected result means the
// presented token lost the race or was already rotated; the caller treats
// that as token reuse.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, id uint, current, next string) (bool, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "RotateRefreshToken")

	start := time.Now()
	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND refresh_token = ?", id, current).
		Update("refresh_token", next)
	duration := time.Since(start)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to rotate refresh token").
			Uint("user_id", id).
			Duration(duration).
			Err(result.Error).
			Log()
		return false, result.Error
	}

	rotated := result.RowsAffected > 0
	if !rotated {
		logger.WarnWithContext(ctx, "Refresh token rotation found stale token").
			Uint("user_id", id).
			Duration(duration).
			Log()
	}

	return rotated, nil
}

// ClearRefreshToken removes the live session token. Idempotent: clearing an
// already-empty token affects zero rows and is not an error.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, id uint) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "ClearRefreshToken")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("refresh_token", "")
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to clear refresh token").
			Uint("user_id", id).
			Err(result.Error).
			Log()
		return result.Error
	}

	return nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uint) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdateLastLogin")

	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("last_login", time.Now())
	return result.Error
}
