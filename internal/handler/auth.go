package handler

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidstream/accounts/config"
	"github.com/vidstream/accounts/internal/constants"
	"github.com/vidstream/accounts/internal/dto"
	apperrors "github.com/vidstream/accounts/internal/errors"
	"github.com/vidstream/accounts/internal/middleware"
	"github.com/vidstream/accounts/internal/service"
	ctxutil "github.com/vidstream/accounts/pkg/context"
	"github.com/vidstream/accounts/pkg/logger"
	"github.com/vidstream/accounts/pkg/validation"
)

type AuthHandler struct {
	userService *service.UserService
	config      *config.Config
}

func NewAuthHandler(userService *service.UserService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		config:      cfg,
	}
}

// setAuthCookies writes both token cookies: httpOnly always, secure in
// production.
func (h *AuthHandler) setAuthCookies(c *gin.Context, accessToken, refreshToken string) {
	secure := h.config.IsProduction()
	c.SetCookie(constants.CookieAccessToken, accessToken,
		int(h.config.JWT.AccessExpiry.Seconds()), "/", "", secure, true)
	c.SetCookie(constants.CookieRefreshToken, refreshToken,
		int(h.config.JWT.RefreshExpiry.Seconds()), "/", "", secure, true)
}

func (h *AuthHandler) clearAuthCookies(c *gin.Context) {
	secure := h.config.IsProduction()
	c.SetCookie(constants.CookieAccessToken, "", -1, "/", "", secure, true)
	c.SetCookie(constants.CookieRefreshToken, "", -1, "/", "", secure, true)
}

// openUpload converts a multipart file header into a streamable upload. The
// returned closer must be closed by the caller.
func openUpload(fh *multipart.FileHeader) (*service.FileUpload, multipart.File, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &service.FileUpload{
		Reader:      f,
		Size:        fh.Size,
		ContentType: fh.Header.Get(constants.HeaderContentType),
	}, f, nil
}

// Register handles new-account creation from a multipart form.
func (h *AuthHandler) Register(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Register")

	var req dto.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		logger.WarnWithContext(ctx, "Invalid register request").
			Err(err).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, validation.FormatBindingError(err)))
		return
	}

	avatarHeader, err := c.FormFile(constants.FormFieldAvatar)
	if err != nil {
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Avatar file is required", nil))
		return
	}

	avatar, avatarFile, err := openUpload(avatarHeader)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to open avatar file").
			Err(err).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse("Avatar file could not be read", nil))
		return
	}
	defer avatarFile.Close()

	var coverImage *service.FileUpload
	if coverHeader, err := c.FormFile(constants.FormFieldCoverImage); err == nil {
		upload, coverFile, err := openUpload(coverHeader)
		if err == nil {
			defer coverFile.Close()
			coverImage = upload
		}
	}

	user, err := h.userService.Register(ctx, &req, avatar, coverImage)
	if err != nil {
		logger.WarnWithContext(ctx, "Registration failed").
			String("username", req.Username).
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Registration failed", apperrors.GetErrorMessage(err)))
		return
	}

	logger.InfoWithContext(ctx, "User registered successfully").
		Uint("user_id", user.ID).
		String("username", user.Username).
		Log()

	c.JSON(http.StatusCreated, constants.BuildSuccessResponse("User registered successfully", user))
}

// Login handles user authentication and opens the cookie session.
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Login")

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WarnWithContext(ctx, "Invalid login request").
			Err(err).
			Log()
		c.JSON(http.StatusBadRequest, constants.BuildErrorResponse(constants.MsgBadRequest, validation.FormatBindingError(err)))
		return
	}

	response, err := h.userService.Login(ctx, &req)
	if err != nil {
		logger.WarnWithContext(ctx, "Login failed").
			String("username", req.Username).
			String("email", req.Email).
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Authentication failed", apperrors.GetErrorMessage(err)))
		return
	}

	h.setAuthCookies(c, response.AccessToken, response.RefreshToken)

	logger.InfoWithContext(ctx, "User logged in successfully").
		Uint("user_id", response.User.ID).
		Log()

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("User logged in successfully", response))
}

// Logout clears the stored refresh token and both cookies.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Logout")

	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, constants.BuildErrorResponse(constants.MsgUnauthorized, nil))
		return
	}

	if err := h.userService.Logout(ctx, userID); err != nil {
		logger.ErrorWithContext(ctx, "Logout failed").
			Uint("user_id", userID).
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Logout failed", apperrors.GetErrorMessage(err)))
		return
	}

	h.clearAuthCookies(c)

	logger.InfoWithContext(ctx, "User logged out successfully").
		Uint("user_id", userID).
		Log()

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("User logged out", nil))
}

// RefreshToken rotates the refresh token and issues a new access token. The
// presented token comes from the cookie, falling back to the request body.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "RefreshToken")

	presented, _ := c.Cookie(constants.CookieRefreshToken)
	if presented == "" {
		var req dto.RefreshTokenRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			presented = req.RefreshToken
		}
	}

	response, err := h.userService.Refresh(ctx, presented)
	if err != nil {
		logger.WarnWithContext(ctx, "Token refresh failed").
			Err(err).
			Log()
		status := apperrors.ToHTTPStatus(err)
		c.JSON(status, constants.BuildErrorResponse("Token refresh failed", apperrors.GetErrorMessage(err)))
		return
	}

	h.setAuthCookies(c, response.AccessToken, response.RefreshToken)

	logger.InfoWithContext(ctx, "Token refreshed successfully").
		Log()

	c.JSON(http.StatusOK, constants.BuildSuccessResponse("Access token refreshed", response))
}
