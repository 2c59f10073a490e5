package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vidstream/accounts/internal/constants"
	"github.com/vidstream/accounts/internal/dto"
	"github.com/vidstream/accounts/pkg/logger"
	"github.com/vidstream/accounts/pkg/redis"
)

const userCacheTTL = 5 * time.Minute

// CacheService keeps safe user views in Redis so current-user lookups skip
// the database. All failures are soft: callers fall back to the store.
type CacheService struct {
	client *redis.Client
}

func NewCacheService(client *redis.Client) *CacheService {
	return &CacheService{client: client}
}

func userCacheKey(id uint) string {
	return fmt.Sprintf("%s%d", constants.CacheKeyUser, id)
}

func (s *CacheService) GetUser(ctx context.Context, id uint) (*dto.UserResponse, error) {
	var view dto.UserResponse
	if err := s.client.GetJSON(ctx, userCacheKey(id), &view); err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			logger.DebugWithContext(ctx, "User cache read failed").
				Uint("user_id", id).
				Err(err).
				Log()
		}
		return nil, err
	}
	return &view, nil
}

func (s *CacheService) SetUser(ctx context.Context, id uint, view *dto.UserResponse) error {
	if err := s.client.SetJSON(ctx, userCacheKey(id), view, userCacheTTL); err != nil {
		logger.DebugWithContext(ctx, "User cache write failed").
			Uint("user_id", id).
			Err(err).
			Log()
		return err
	}
	return nil
}

func (s *CacheService) InvalidateUser(ctx context.Context, id uint) error {
	if err := s.client.Delete(ctx, userCacheKey(id)); err != nil {
		logger.WarnWithContext(ctx, "User cache invalidation failed").
			Uint("user_id", id).
			Err(err).
			Log()
		return err
	}
	return nil
}

// Ping exposes backend health for the health endpoint.
func (s *CacheService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
