package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/vidstream/accounts/internal/dto"
	apperrors "github.com/vidstream/accounts/internal/errors"
	"github.com/vidstream/accounts/internal/model"
	"github.com/vidstream/accounts/pkg/media"
)

// fakeStore is an in-memory UserStore.
type fakeStore struct {
	users      map[uint]*model.User
	nextID     uint
	failCreate bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[uint]*model.User), nextID: 1}
}

func (f *fakeStore) GetByID(_ context.Context, id uint) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeStore) GetByUsernameOrEmail(_ context.Context, username, email string) (*model.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" && email == "" {
		return nil, gorm.ErrRecordNotFound
	}
	for _, user := range f.users {
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) Create(_ context.Context, user *model.User) error {
	if f.failCreate {
		return errors.New("create failed")
	}
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	f.nextID++
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeStore) UpdateAccount(_ context.Context, id uint, fullName, email string) error {
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.FullName = fullName
	user.Email = email
	return nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, id uint, hashedPassword string) error {
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.Password = hashedPassword
	return nil
}

func (f *fakeStore) UpdateAvatar(_ context.Context, id uint, url, key string) error {
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.AvatarURL = url
	user.AvatarKey = key
	return nil
}

func (f *fakeStore) UpdateCoverImage(_ context.Context, id uint, url, key string) error {
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.CoverImageURL = url
	user.CoverImageKey = key
	return nil
}

func (f *fakeStore) UpdateRefreshToken(_ context.Context, id uint, token string) error {
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.RefreshToken = token
	return nil
}

func (f *fakeStore) RotateRefreshToken(_ context.Context, id uint, current, next string) (bool, error) {
	user, ok := f.users[id]
	if !ok {
		return false, nil
	}
	if user.RefreshToken != current {
		return false, nil
	}
	user.RefreshToken = next
	return true, nil
}

func (f *fakeStore) ClearRefreshToken(_ context.Context, id uint) error {
	if user, ok := f.users[id]; ok {
		user.RefreshToken = ""
	}
	return nil
}

func (f *fakeStore) UpdateLastLogin(_ context.Context, id uint) error {
	if user, ok := f.users[id]; ok {
		user.LastLogin = time.Now()
	}
	return nil
}

// fakeMedia is an in-memory MediaStore.
type fakeMedia struct {
	uploads    int
	failUpload bool
	deleted    []string
}

func (f *fakeMedia) Upload(_ context.Context, _ io.Reader, _ int64, _ string) (*media.Object, error) {
	if f.failUpload {
		return nil, errors.New("upload failed")
	}
	f.uploads++
	key := fmt.Sprintf("media/test/%d", f.uploads)
	return &media.Object{URL: "https://cdn.test/" + key, Key: key}, nil
}

func (f *fakeMedia) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

// fakeCache is an in-memory UserCache.
type fakeCache struct {
	views map[uint]*dto.UserResponse
}

func newFakeCache() *fakeCache {
	return &fakeCache{views: make(map[uint]*dto.UserResponse)}
}

func (f *fakeCache) GetUser(_ context.Context, id uint) (*dto.UserResponse, error) {
	view, ok := f.views[id]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return view, nil
}

func (f *fakeCache) SetUser(_ context.Context, id uint, view *dto.UserResponse) error {
	f.views[id] = view
	return nil
}

func (f *fakeCache) InvalidateUser(_ context.Context, id uint) error {
	delete(f.views, id)
	return nil
}

func newTestService() (*UserService, *fakeStore, *fakeMedia, *fakeCache) {
	store := newFakeStore()
	mediaStore := &fakeMedia{}
	cache := newFakeCache()
	svc := NewUserService(store, NewTokenService(testJWTConfig()), mediaStore, cache)
	return svc, store, mediaStore, cache
}

func registerInput() (*dto.RegisterRequest, *FileUpload) {
	req := &dto.RegisterRequest{
		FullName: "Alice Example",
		Email:    "Alice@Example.com",
		Username: "Alice",
		Password: "correct horse battery",
	}
	avatar := &FileUpload{
		Reader:      strings.NewReader("avatar-bytes"),
		Size:        12,
		ContentType: "image/png",
	}
	return req, avatar
}

func mustRegister(t *testing.T, svc *UserService) *dto.UserResponse {
	t.Helper()
	req, avatar := registerInput()
	user, err := svc.Register(context.Background(), req, avatar, nil)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return user
}

func TestRegister(t *testing.T) {
	svc, store, _, _ := newTestService()

	user := mustRegister(t, svc)

	if user.Username != "alice" {
		t.Errorf("Expected lowercased username, got %s", user.Username)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("Expected lowercased email, got %s", user.Email)
	}
	if user.AvatarURL == "" {
		t.Error("Expected avatar URL to be set")
	}

	stored := store.users[user.ID]
	if stored.Password == "correct horse battery" {
		t.Error("Password stored in plaintext")
	}
	if stored.RefreshToken != "" {
		t.Error("Refresh token set before first login")
	}
}

func TestRegister_DuplicateRejected(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
	}{
		{name: "Same username different email", username: "alice", email: "other@example.com"},
		{name: "Same email different username", username: "bob", email: "alice@example.com"},
		{name: "Different case", username: "ALICE", email: "ALICE@EXAMPLE.COM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, _ := newTestService()
			mustRegister(t, svc)

			req, avatar := registerInput()
			req.Username = tt.username
			req.Email = tt.email

			_, err := svc.Register(context.Background(), req, avatar, nil)
			if !errors.Is(err, apperrors.ErrUserExists) {
				t.Errorf("Expected USER_EXISTS, got %v", err)
			}
		})
	}
}

func TestRegister_MissingAvatar(t *testing.T) {
	svc, _, _, _ := newTestService()

	req, _ := registerInput()
	_, err := svc.Register(context.Background(), req, nil, nil)
	if !errors.Is(err, apperrors.ErrMissingAvatar) {
		t.Errorf("Expected INVALID_INPUT for missing avatar, got %v", err)
	}
}

func TestRegister_AvatarUploadFailure(t *testing.T) {
	svc, _, mediaStore, _ := newTestService()
	mediaStore.failUpload = true

	req, avatar := registerInput()
	_, err := svc.Register(context.Background(), req, avatar, nil)
	if !errors.Is(err, apperrors.ErrUploadFailed) {
		t.Errorf("Expected UPLOAD_FAILED, got %v", err)
	}
}

func TestRegister_EmptyFieldsRejected(t *testing.T) {
	svc, _, _, _ := newTestService()

	req, avatar := registerInput()
	req.FullName = "   "

	_, err := svc.Register(context.Background(), req, avatar, nil)
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Expected INVALID_INPUT for blank full name, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, store, _, _ := newTestService()
	registered := mustRegister(t, svc)

	response, err := svc.Login(context.Background(), &dto.LoginRequest{
		Username: "alice",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if response.AccessToken == "" || response.RefreshToken == "" {
		t.Fatal("Expected both tokens to be issued")
	}
	if response.AccessToken == response.RefreshToken {
		t.Error("Expected distinct access and refresh tokens")
	}

	stored := store.users[registered.ID]
	if stored.RefreshToken != response.RefreshToken {
		t.Error("Stored refresh token does not match the one returned")
	}
}

func TestLogin_PasswordVerifiedAsRegistered(t *testing.T) {
	svc, _, _, _ := newTestService()

	req, avatar := registerInput()
	req.Password = "  padded password  "
	if _, err := svc.Register(context.Background(), req, avatar, nil); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// The exact string used at registration must log in, whitespace included.
	if _, err := svc.Login(context.Background(), &dto.LoginRequest{
		Username: "alice", Password: "  padded password  ",
	}); err != nil {
		t.Fatalf("Login with the registered password failed: %v", err)
	}

	if _, err := svc.Login(context.Background(), &dto.LoginRequest{
		Username: "alice", Password: "padded password",
	}); !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("Expected trimmed variant to be rejected, got %v", err)
	}
}

func TestLogin_ByEmail(t *testing.T) {
	svc, _, _, _ := newTestService()
	mustRegister(t, svc)

	if _, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	}); err != nil {
		t.Fatalf("Login by email failed: %v", err)
	}
}

func TestLogin_Failures(t *testing.T) {
	svc, _, _, _ := newTestService()
	mustRegister(t, svc)

	tests := []struct {
		name    string
		req     *dto.LoginRequest
		wantErr *apperrors.DomainError
	}{
		{
			name:    "No identifier",
			req:     &dto.LoginRequest{Password: "whatever"},
			wantErr: apperrors.ErrInvalidInput,
		},
		{
			name:    "Unknown user",
			req:     &dto.LoginRequest{Username: "nobody", Password: "whatever"},
			wantErr: apperrors.ErrUserNotFound,
		},
		{
			name:    "Wrong password",
			req:     &dto.LoginRequest{Username: "alice", Password: "wrong"},
			wantErr: apperrors.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRefresh_Rotation(t *testing.T) {
	svc, store, _, _ := newTestService()
	registered := mustRegister(t, svc)

	login, err := svc.Login(context.Background(), &dto.LoginRequest{
		Username: "alice", Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	first, err := svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("First refresh failed: %v", err)
	}
	if first.RefreshToken == login.RefreshToken {
		t.Error("Expected rotation to issue a different refresh token")
	}
	if store.users[registered.ID].RefreshToken != first.RefreshToken {
		t.Error("Stored refresh token not rotated")
	}

	// The original token is invalidated by the rotation.
	if _, err := svc.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, apperrors.ErrTokenReused) {
		t.Errorf("Expected TOKEN_REUSED for rotated-out token, got %v", err)
	}

	// The rotated-in token keeps working.
	if _, err := svc.Refresh(context.Background(), first.RefreshToken); err != nil {
		t.Errorf("Refresh with current token failed: %v", err)
	}
}

func TestRefresh_ValidButNotCurrent(t *testing.T) {
	svc, store, _, _ := newTestService()
	registered := mustRegister(t, svc)

	login, err := svc.Login(context.Background(), &dto.LoginRequest{
		Username: "alice", Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// Simulate a second login rotating the stored value out from under the
	// first session.
	store.users[registered.ID].RefreshToken = "another-session-token"

	if _, err := svc.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, apperrors.ErrTokenReused) {
		t.Errorf("Expected TOKEN_REUSED for stale token, got %v", err)
	}
}

func TestRefresh_InputFailures(t *testing.T) {
	svc, _, _, _ := newTestService()

	if _, err := svc.Refresh(context.Background(), ""); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Expected UNAUTHORIZED for missing token, got %v", err)
	}
	if _, err := svc.Refresh(context.Background(), "garbage"); !errors.Is(err, apperrors.ErrInvalidToken) {
		t.Errorf("Expected INVALID_TOKEN for malformed token, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	svc, store, _, _ := newTestService()
	registered := mustRegister(t, svc)

	login, err := svc.Login(context.Background(), &dto.LoginRequest{
		Username: "alice", Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := svc.Logout(context.Background(), registered.ID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if store.users[registered.ID].RefreshToken != "" {
		t.Error("Expected refresh token to be cleared")
	}

	// Idempotent
	if err := svc.Logout(context.Background(), registered.ID); err != nil {
		t.Fatalf("Second logout failed: %v", err)
	}

	// The previously-valid refresh token no longer works.
	if _, err := svc.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, apperrors.ErrTokenReused) {
		t.Errorf("Expected TOKEN_REUSED after logout, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _, _, _ := newTestService()
	registered := mustRegister(t, svc)
	ctx := context.Background()

	t.Run("Confirmation mismatch", func(t *testing.T) {
		err := svc.ChangePassword(ctx, registered.ID, &dto.ChangePasswordRequest{
			OldPassword: "correct horse battery", NewPassword: "new-password-1", ConfirmPassword: "other",
		})
		if !errors.Is(err, apperrors.ErrPasswordMismatch) {
			t.Errorf("Expected PASSWORD_MISMATCH, got %v", err)
		}
	})

	t.Run("Wrong current password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, registered.ID, &dto.ChangePasswordRequest{
			OldPassword: "wrong", NewPassword: "new-password-1", ConfirmPassword: "new-password-1",
		})
		if !errors.Is(err, apperrors.ErrIncorrectPassword) {
			t.Errorf("Expected INCORRECT_PASSWORD, got %v", err)
		}
	})

	t.Run("Success", func(t *testing.T) {
		err := svc.ChangePassword(ctx, registered.ID, &dto.ChangePasswordRequest{
			OldPassword: "correct horse battery", NewPassword: "new-password-1", ConfirmPassword: "new-password-1",
		})
		if err != nil {
			t.Fatalf("ChangePassword failed: %v", err)
		}

		if _, err := svc.Login(ctx, &dto.LoginRequest{Username: "alice", Password: "new-password-1"}); err != nil {
			t.Errorf("Login with new password failed: %v", err)
		}
		if _, err := svc.Login(ctx, &dto.LoginRequest{Username: "alice", Password: "correct horse battery"}); !errors.Is(err, apperrors.ErrInvalidCredentials) {
			t.Errorf("Expected old password to be rejected, got %v", err)
		}
	})
}

func TestUpdateAccount(t *testing.T) {
	svc, _, _, _ := newTestService()
	registered := mustRegister(t, svc)
	ctx := context.Background()

	updated, err := svc.UpdateAccount(ctx, registered.ID, &dto.UpdateAccountRequest{
		FullName: "Alice B. Example", Email: "Alice.B@Example.com",
	})
	if err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}
	if updated.FullName != "Alice B. Example" {
		t.Errorf("Expected updated full name, got %s", updated.FullName)
	}
	if updated.Email != "alice.b@example.com" {
		t.Errorf("Expected lowercased email, got %s", updated.Email)
	}
}

func TestUpdateAccount_EmailConflict(t *testing.T) {
	svc, _, _, _ := newTestService()
	first := mustRegister(t, svc)

	req, avatar := registerInput()
	req.Username = "bob"
	req.Email = "bob@example.com"
	if _, err := svc.Register(context.Background(), req, avatar, nil); err != nil {
		t.Fatalf("Second register failed: %v", err)
	}

	_, err := svc.UpdateAccount(context.Background(), first.ID, &dto.UpdateAccountRequest{
		FullName: "Alice", Email: "bob@example.com",
	})
	if !errors.Is(err, apperrors.ErrUserExists) {
		t.Errorf("Expected USER_EXISTS for conflicting email, got %v", err)
	}
}

func TestUpdateAvatar_DeletesPrevious(t *testing.T) {
	svc, store, mediaStore, _ := newTestService()
	registered := mustRegister(t, svc)

	previousKey := store.users[registered.ID].AvatarKey

	updated, err := svc.UpdateAvatar(context.Background(), registered.ID, &FileUpload{
		Reader: strings.NewReader("new-avatar"), Size: 10, ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("UpdateAvatar failed: %v", err)
	}

	if updated.AvatarURL == registered.AvatarURL {
		t.Error("Expected a new avatar URL")
	}

	found := false
	for _, key := range mediaStore.deleted {
		if key == previousKey {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected previous avatar object %s to be deleted, deleted: %v", previousKey, mediaStore.deleted)
	}
}

func TestUpdateCoverImage(t *testing.T) {
	svc, store, _, _ := newTestService()
	registered := mustRegister(t, svc)

	updated, err := svc.UpdateCoverImage(context.Background(), registered.ID, &FileUpload{
		Reader: strings.NewReader("cover"), Size: 5, ContentType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("UpdateCoverImage failed: %v", err)
	}
	if updated.CoverImageURL == "" {
		t.Error("Expected cover image URL to be set")
	}
	if store.users[registered.ID].CoverImageKey == "" {
		t.Error("Expected cover image key to be stored")
	}
}

func TestGetCurrent_UsesCache(t *testing.T) {
	svc, store, _, cache := newTestService()
	registered := mustRegister(t, svc)
	ctx := context.Background()

	view, err := svc.GetCurrent(ctx, registered.ID)
	if err != nil {
		t.Fatalf("GetCurrent failed: %v", err)
	}
	if view.Username != "alice" {
		t.Errorf("Expected username alice, got %s", view.Username)
	}

	if _, ok := cache.views[registered.ID]; !ok {
		t.Error("Expected view to be cached after lookup")
	}

	// A cached view is served even if the store record changes underneath.
	store.users[registered.ID].FullName = "Changed"
	cached, err := svc.GetCurrent(ctx, registered.ID)
	if err != nil {
		t.Fatalf("GetCurrent failed: %v", err)
	}
	if cached.FullName == "Changed" {
		t.Error("Expected cached view, got fresh store read")
	}
}

func TestGetCurrent_NotFound(t *testing.T) {
	svc, _, _, _ := newTestService()

	if _, err := svc.GetCurrent(context.Background(), 999); !errors.Is(err, apperrors.ErrUserNotFound) {
		t.Errorf("Expected USER_NOT_FOUND, got %v", err)
	}
}
