package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/vidstream/accounts/internal/dto"
	apperrors "github.com/vidstream/accounts/internal/errors"
	"github.com/vidstream/accounts/internal/model"
	ctxutil "github.com/vidstream/accounts/pkg/context"
	"github.com/vidstream/accounts/pkg/logger"
	"github.com/vidstream/accounts/pkg/media"
)

// UserStore is the credential store contract the orchestrator needs.
// *repository.UserRepository satisfies it.
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	UpdateAccount(ctx context.Context, id uint, fullName, email string) error
	UpdatePassword(ctx context.Context, id uint, hashedPassword string) error
	UpdateAvatar(ctx context.Context, id uint, url, key string) error
	UpdateCoverImage(ctx context.Context, id uint, url, key string) error
	UpdateRefreshToken(ctx context.Context, id uint, token string) error
	RotateRefreshToken(ctx context.Context, id uint, current, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, id uint) error
	UpdateLastLogin(ctx context.Context, id uint) error
}

// MediaStore is the media host contract. *media.Store satisfies it.
type MediaStore interface {
	Upload(ctx context.Context, r io.Reader, size int64, contentType string) (*media.Object, error)
	Delete(ctx context.Context, key string) error
}

// UserCache caches safe user views. *CacheService satisfies it.
type UserCache interface {
	GetUser(ctx context.Context, id uint) (*dto.UserResponse, error)
	SetUser(ctx context.Context, id uint, view *dto.UserResponse) error
	InvalidateUser(ctx context.Context, id uint) error
}

// FileUpload is an incoming media file ready to stream to the media host.
type FileUpload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
}

// UserService orchestrates the account lifecycle: registration, sessions,
// token rotation, and profile/media updates.
type UserService struct {
	store  UserStore
	tokens *TokenService
	media  MediaStore
	cache  UserCache
}

func NewUserService(store UserStore, tokens *TokenService, mediaStore MediaStore, cache UserCache) *UserService {
	return &UserService{
		store:  store,
		tokens: tokens,
		media:  mediaStore,
		cache:  cache,
	}
}

// AccessExpirySeconds is forwarded for response bodies.
func (s *UserService) AccessExpirySeconds() int {
	return s.tokens.AccessExpirySeconds()
}

func (s *UserService) hashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedPassword), nil
}

func (s *UserService) checkPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

func safeView(user *model.User) *dto.UserResponse {
	return &dto.UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		LastLogin:     user.LastLogin,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

// Register creates a new identity record. The avatar is required; the cover
// image is optional and its upload failure is tolerated. A create failure
// after a successful upload leaves the uploaded object orphaned; that gap is
// logged, not compensated.
func (s *UserService) Register(ctx context.Context, req *dto.RegisterRequest, avatar, coverImage *FileUpload) (*dto.UserResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "Register")

	fullName := strings.TrimSpace(req.FullName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.ToLower(strings.TrimSpace(req.Username))

	// The password is hashed exactly as given; trimming applies only to the
	// emptiness check, so login verifies the same bytes.
	if fullName == "" || email == "" || username == "" || strings.TrimSpace(req.Password) == "" {
		return nil, apperrors.ErrInvalidInput
	}

	existing, err := s.store.GetByUsernameOrEmail(ctx, username, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.ErrorWithContext(ctx, "Failed to check user existence").
			String("username", username).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if existing != nil {
		logger.InfoWithContext(ctx, "Registration rejected, user exists").
			String("username", username).
			Log()
		return nil, apperrors.ErrUserExists
	}

	if avatar == nil {
		return nil, apperrors.ErrMissingAvatar
	}

	avatarObj, err := s.media.Upload(ctx, avatar.Reader, avatar.Size, avatar.ContentType)
	if err != nil {
		logger.ErrorWithContext(ctx, "Avatar upload failed").
			String("username", username).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrUploadFailed, err)
	}

	var coverObj *media.Object
	if coverImage != nil {
		coverObj, err = s.media.Upload(ctx, coverImage.Reader, coverImage.Size, coverImage.ContentType)
		if err != nil {
			logger.WarnWithContext(ctx, "Cover image upload failed, continuing without it").
				String("username", username).
				Err(err).
				Log()
			coverObj = nil
		}
	}

	hashedPassword, err := s.hashPassword(req.Password)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to hash password").
			String("username", username).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	user := &model.User{
		Username:  username,
		Email:     email,
		FullName:  fullName,
		Password:  hashedPassword,
		AvatarURL: avatarObj.URL,
		AvatarKey: avatarObj.Key,
	}
	if coverObj != nil {
		user.CoverImageURL = coverObj.URL
		user.CoverImageKey = coverObj.Key
	}

	if err := s.store.Create(ctx, user); err != nil {
		logger.ErrorWithContext(ctx, "Failed to create user, uploaded media orphaned").
			String("username", username).
			String("avatar_key", avatarObj.Key).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "User registered").
		Uint("user_id", user.ID).
		String("username", username).
		Log()

	return safeView(user), nil
}

// Login verifies credentials and opens a session: both tokens issued, the
// refresh token persisted as the single live value for the user.
func (s *UserService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "Login")

	username := strings.ToLower(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if username == "" && email == "" {
		return nil, apperrors.ErrInvalidInput
	}

	user, err := s.store.GetByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.InfoWithContext(ctx, "Login failed, user not found").
				String("username", username).
				String("email", email).
				Log()
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if !s.checkPassword(user.Password, req.Password) {
		logger.WarnWithContext(ctx, "Login failed, incorrect password").
			Uint("user_id", user.ID).
			Log()
		return nil, apperrors.ErrInvalidCredentials
	}

	accessToken, refreshToken, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateRefreshToken(ctx, user.ID, refreshToken); err != nil {
		logger.ErrorWithContext(ctx, "Failed to persist refresh token").
			Uint("user_id", user.ID).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.WarnWithContext(ctx, "Failed to update last login").
			Uint("user_id", user.ID).
			Err(err).
			Log()
	}

	_ = s.cache.InvalidateUser(ctx, user.ID)

	logger.InfoWithContext(ctx, "User logged in").
		Uint("user_id", user.ID).
		String("username", user.Username).
		Log()

	return &dto.LoginResponse{
		User:         *safeView(user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.tokens.AccessExpirySeconds(),
	}, nil
}

// Logout clears the live refresh token. Calling it twice is harmless.
func (s *UserService) Logout(ctx context.Context, userID uint) error {
	ctx = ctxutil.WithOperation(ctx, "service", "Logout")

	if err := s.store.ClearRefreshToken(ctx, userID); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	_ = s.cache.InvalidateUser(ctx, userID)

	logger.InfoWithContext(ctx, "User logged out").
		Uint("user_id", userID).
		Log()

	return nil
}

// Refresh exchanges a valid, current refresh token for a new token pair and
// rotates the stored value. Presenting a token that is signed and unexpired
// but no longer current is treated as reuse and rejected.
func (s *UserService) Refresh(ctx context.Context, presented string) (*dto.RefreshTokenResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "Refresh")

	if presented == "" {
		return nil, apperrors.ErrUnauthorized
	}

	claims, err := s.tokens.ValidateRefreshToken(presented)
	if err != nil {
		logger.WarnWithContext(ctx, "Refresh token validation failed").
			Err(err).
			Log()
		return nil, err
	}

	user, err := s.store.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if user.RefreshToken == "" || user.RefreshToken != presented {
		logger.WarnWithContext(ctx, "Refresh token reuse detected").
			Uint("user_id", user.ID).
			Log()
		return nil, apperrors.ErrTokenReused
	}

	accessToken, refreshToken, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	rotated, err := s.store.RotateRefreshToken(ctx, user.ID, presented, refreshToken)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if !rotated {
		// Lost a concurrent rotation race: the presented token is no longer
		// the stored value.
		logger.WarnWithContext(ctx, "Refresh rotation race lost").
			Uint("user_id", user.ID).
			Log()
		return nil, apperrors.ErrTokenReused
	}

	_ = s.cache.InvalidateUser(ctx, user.ID)

	logger.InfoWithContext(ctx, "Access token refreshed").
		Uint("user_id", user.ID).
		Log()

	return &dto.RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.tokens.AccessExpirySeconds(),
	}, nil
}

func (s *UserService) issueTokenPair(ctx context.Context, user *model.User) (string, string, error) {
	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to generate access token").
			Uint("user_id", user.ID).
			Err(err).
			Log()
		return "", "", apperrors.WrapError(apperrors.ErrInternal, err)
	}

	refreshToken, err := s.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to generate refresh token").
			Uint("user_id", user.ID).
			Err(err).
			Log()
		return "", "", apperrors.WrapError(apperrors.ErrInternal, err)
	}

	return accessToken, refreshToken, nil
}

// ChangePassword verifies the old password before replacing the hash. The
// live refresh token is intentionally left untouched.
func (s *UserService) ChangePassword(ctx context.Context, userID uint, req *dto.ChangePasswordRequest) error {
	ctx = ctxutil.WithOperation(ctx, "service", "ChangePassword")

	if req.NewPassword != req.ConfirmPassword {
		return apperrors.ErrPasswordMismatch
	}

	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if !s.checkPassword(user.Password, req.OldPassword) {
		logger.WarnWithContext(ctx, "Password change rejected, wrong current password").
			Uint("user_id", userID).
			Log()
		return apperrors.ErrIncorrectPassword
	}

	hashedPassword, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if err := s.store.UpdatePassword(ctx, userID, hashedPassword); err != nil {
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	_ = s.cache.InvalidateUser(ctx, userID)

	logger.InfoWithContext(ctx, "Password changed").
		Uint("user_id", userID).
		Log()

	return nil
}

// GetCurrent returns the safe view of the authenticated user, cache-first.
func (s *UserService) GetCurrent(ctx context.Context, userID uint) (*dto.UserResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "GetCurrent")

	if view, err := s.cache.GetUser(ctx, userID); err == nil {
		return view, nil
	}

	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	view := safeView(user)
	_ = s.cache.SetUser(ctx, userID, view)

	return view, nil
}

// UpdateAccount replaces fullName and email, keeping email unique.
func (s *UserService) UpdateAccount(ctx context.Context, userID uint, req *dto.UpdateAccountRequest) (*dto.UserResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "UpdateAccount")

	fullName := strings.TrimSpace(req.FullName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if fullName == "" || email == "" {
		return nil, apperrors.ErrInvalidInput
	}

	existing, err := s.store.GetByUsernameOrEmail(ctx, "", email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if existing != nil && existing.ID != userID {
		return nil, apperrors.ErrUserExists
	}

	if err := s.store.UpdateAccount(ctx, userID, fullName, email); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	_ = s.cache.InvalidateUser(ctx, userID)

	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Account details updated").
		Uint("user_id", userID).
		Log()

	return safeView(user), nil
}

// UpdateAvatar uploads the replacement first, persists the new reference,
// then deletes the previous object best-effort.
func (s *UserService) UpdateAvatar(ctx context.Context, userID uint, upload *FileUpload) (*dto.UserResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "UpdateAvatar")
	return s.replaceMedia(ctx, userID, upload,
		func(u *model.User) string { return u.AvatarKey },
		s.store.UpdateAvatar,
	)
}

// UpdateCoverImage mirrors UpdateAvatar for the optional cover image.
func (s *UserService) UpdateCoverImage(ctx context.Context, userID uint, upload *FileUpload) (*dto.UserResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "UpdateCoverImage")
	return s.replaceMedia(ctx, userID, upload,
		func(u *model.User) string { return u.CoverImageKey },
		s.store.UpdateCoverImage,
	)
}

func (s *UserService) replaceMedia(
	ctx context.Context,
	userID uint,
	upload *FileUpload,
	oldKey func(*model.User) string,
	persist func(ctx context.Context, id uint, url, key string) error,
) (*dto.UserResponse, error) {
	if upload == nil {
		return nil, apperrors.ErrInvalidInput
	}

	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	obj, err := s.media.Upload(ctx, upload.Reader, upload.Size, upload.ContentType)
	if err != nil {
		logger.ErrorWithContext(ctx, "Media upload failed").
			Uint("user_id", userID).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrUploadFailed, err)
	}

	if err := persist(ctx, userID, obj.URL, obj.Key); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if previous := oldKey(user); previous != "" {
		if err := s.media.Delete(ctx, previous); err != nil {
			logger.WarnWithContext(ctx, "Failed to delete previous media object").
				Uint("user_id", userID).
				String("key", previous).
				Err(err).
				Log()
		}
	}

	_ = s.cache.InvalidateUser(ctx, userID)

	updated, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Media updated").
		Uint("user_id", userID).
		String("key", obj.Key).
		Log()

	return safeView(updated), nil
}
