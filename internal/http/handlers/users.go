package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/onemove/marketplace/internal/auth"
	"github.com/onemove/marketplace/internal/config"
	"github.com/onemove/marketplace/internal/domain/user"
	"github.com/onemove/marketplace/internal/http/middlewares"
	"github.com/onemove/marketplace/internal/repo/postgres"
	"github.com/onemove/marketplace/internal/security"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

// UserStore is the credential-store contract the handlers need. Kept as
// an interface so tests can fake it.
type UserStore interface {
	Create(ctx context.Context, p postgres.CreateUserParams) (user.User, error)
	GetByLogin(ctx context.Context, login string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetRefreshToken(ctx context.Context, id string, tokenHash *string) error
	SetActiveRole(ctx context.Context, id string, role user.Role) error
	UpdateDetails(ctx context.Context, id string, fullname, email *string) (user.User, error)
}

type UsersHandler struct {
	store UserStore
	jwt   *auth.Manager
	cfg   config.Config
}

func NewUsersHandler(store UserStore, jwtManager *auth.Manager, cfg config.Config) *UsersHandler {
	return &UsersHandler{
		store: store,
		jwt:   jwtManager,
		cfg:   cfg,
	}
}

type RegisterRequest struct {
	Fullname string   `json:"fullname" binding:"required"`
	Email    string   `json:"email" binding:"required,email"`
	Username string   `json:"username" binding:"required"`
	Password string   `json:"password" binding:"required,min=6"`
	Roles    []string `json:"role"`
}

func (h *UsersHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	req.Fullname = strings.TrimSpace(req.Fullname)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))

	if req.Fullname == "" || req.Email == "" || req.Username == "" || strings.TrimSpace(req.Password) == "" {
		RespondBadRequest(ctx, "All fields are required")
		return
	}

	roles, err := user.ParseRoles(req.Roles)

	if err != nil {
		RespondBadRequest(ctx, "Invalid role", err.Error())
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not register user")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.store.Create(cctx, postgres.CreateUserParams{
		Username:     req.Username,
		Email:        req.Email,
		Fullname:     req.Fullname,
		PasswordHash: hash,
		Roles:        roles,
		ActiveRole:   roles[0],
	})

	if err != nil {
		if errors.Is(err, postgres.ErrUserExists) {
			RespondConflict(ctx, "User with email or username exists")
			return
		}

		RespondInternal(ctx, "Could not register user")
		return
	}

	Respond(ctx, http.StatusCreated, u.Sanitized(), "User registered successfully")
}

type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *UsersHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	login := strings.ToLower(strings.TrimSpace(req.Username))

	if login == "" {
		login = strings.ToLower(strings.TrimSpace(req.Email))
	}

	if login == "" {
		RespondBadRequest(ctx, "Username or email required")
		return
	}

	if req.Password == "" {
		RespondBadRequest(ctx, "Password required")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.store.GetByLogin(cctx, login)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondNotFound(ctx, "User does not exist")
			return
		}

		RespondInternal(ctx, "Could not log in")
		return
	}

	err = security.CheckPassword(u.PasswordHash, req.Password)

	if err != nil {
		RespondUnauthorized(ctx, "Invalid user credentials")
		return
	}

	accessToken, refreshToken, err := h.issueTokenPair(cctx, ctx, u)

	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	Respond(ctx, http.StatusOK, gin.H{
		"user":         u.Sanitized(),
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	}, "User logged in successfully")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *UsersHandler) RefreshAccessToken(ctx *gin.Context) {
	raw := h.incomingRefreshToken(ctx)

	if raw == "" {
		RespondUnauthorized(ctx, "Unauthorized request")
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)

	if err != nil {
		RespondUnauthorized(ctx, "Invalid refresh token")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.store.GetByID(cctx, claims.UserID)

	if err != nil {
		RespondUnauthorized(ctx, "Invalid refresh token")
		return
	}

	// Rotation check: the presented token must be the one issued last.
	if u.RefreshTokenHash == nil || *u.RefreshTokenHash != h.jwt.HashRefreshToken(raw) {
		RespondUnauthorized(ctx, "Refresh token is expired or rotated")
		return
	}

	accessToken, refreshToken, err := h.issueTokenPair(cctx, ctx, u)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	Respond(ctx, http.StatusOK, gin.H{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	}, "Access token refreshed")
}

func (h *UsersHandler) Logout(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Unauthorized request")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.store.SetRefreshToken(cctx, u.ID, nil)

	if err != nil {
		RespondInternal(ctx, "Could not log out")
		return
	}

	h.clearAuthCookies(ctx)

	Respond(ctx, http.StatusOK, gin.H{}, "User logged out")
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"oldPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

func (h *UsersHandler) ChangePassword(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Unauthorized request")
		return
	}

	var req ChangePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.NewPassword != req.ConfirmPassword {
		RespondUnauthorized(ctx, "Passwords do not match")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// The context user is sanitized; fetch the record with the hash.
	stored, err := h.store.GetByID(cctx, u.ID)

	if err != nil {
		RespondUnauthorized(ctx, "Unauthorized request")
		return
	}

	err = security.CheckPassword(stored.PasswordHash, req.OldPassword)

	if err != nil {
		RespondBadRequest(ctx, "Invalid password")
		return
	}

	hash, err := security.HashPassword(req.NewPassword)

	if err != nil {
		RespondInternal(ctx, "Could not change password")
		return
	}

	err = h.store.UpdatePassword(cctx, u.ID, hash)

	if err != nil {
		RespondInternal(ctx, "Could not change password")
		return
	}

	Respond(ctx, http.StatusOK, gin.H{}, "Password changed")
}

func (h *UsersHandler) CurrentUser(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Unauthorized request")
		return
	}

	Respond(ctx, http.StatusOK, u, "Fetched current user")
}

type UpdateDetailsRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email" binding:"omitempty,email"`
}

func (h *UsersHandler) UpdateDetails(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Unauthorized request")
		return
	}

	var req UpdateDetailsRequest

	if !BindJSON(ctx, &req) {
		return
	}

	fullname := strings.TrimSpace(req.Fullname)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if fullname == "" && email == "" {
		RespondBadRequest(ctx, "At least one of fullname or email is required")
		return
	}

	var fullnamePtr, emailPtr *string

	if fullname != "" {
		fullnamePtr = &fullname
	}

	if email != "" {
		emailPtr = &email
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	updated, err := h.store.UpdateDetails(cctx, u.ID, fullnamePtr, emailPtr)

	if err != nil {
		if errors.Is(err, postgres.ErrUserExists) {
			RespondConflict(ctx, "Email already in use")
			return
		}

		RespondInternal(ctx, "Could not update account")
		return
	}

	Respond(ctx, http.StatusOK, updated.Sanitized(), "Account updated")
}

// UpdateRole toggles the active operating mode. There is no target role
// in the request: seller-active flips to buyer, buyer-active to seller.
func (h *UsersHandler) UpdateRole(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "Unauthorized request")
		return
	}

	target, err := user.ToggleActiveRole(u)

	if err != nil {
		RespondBadRequest(ctx, "This is a "+string(u.ActiveRole)+" account! Invalid request")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err = h.store.SetActiveRole(cctx, u.ID, target)

	if err != nil {
		RespondInternal(ctx, "Could not change role")
		return
	}

	Respond(ctx, http.StatusOK, gin.H{"activeRole": target}, "Role changed")
}

// helpers

// issueTokenPair generates an access/refresh pair, persists the refresh
// hash (rotating out any previous token), and sets both cookies.
func (h *UsersHandler) issueTokenPair(cctx context.Context, ctx *gin.Context, u user.User) (string, string, error) {
	accessToken, err := h.jwt.GenerateAccessToken(u)

	if err != nil {
		return "", "", err
	}

	refreshToken, expiresAt, err := h.jwt.GenerateRefreshToken(u.ID)

	if err != nil {
		return "", "", err
	}

	hash := h.jwt.HashRefreshToken(refreshToken)

	err = h.store.SetRefreshToken(cctx, u.ID, &hash)

	if err != nil {
		return "", "", err
	}

	h.setAuthCookies(ctx, accessToken, refreshToken, expiresAt)

	return accessToken, refreshToken, nil
}

func (h *UsersHandler) incomingRefreshToken(ctx *gin.Context) string {
	if cookie, err := ctx.Cookie(refreshCookieName); err == nil && cookie != "" {
		return cookie
	}

	var req refreshRequest

	if err := ctx.ShouldBindJSON(&req); err == nil {
		return req.RefreshToken
	}

	return ""
}

func (h *UsersHandler) setAuthCookies(ctx *gin.Context, accessToken, refreshToken string, refreshExpiresAt time.Time) {
	secure := h.cfg.Env == "prod"

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		accessCookieName,
		accessToken,
		int(h.cfg.AccessTokenTTL.Seconds()),
		"/",
		"",
		secure,
		true, // HttpOnly.
	)
	ctx.SetCookie(
		refreshCookieName,
		refreshToken,
		int(time.Until(refreshExpiresAt).Seconds()),
		"/",
		"",
		secure,
		true,
	)
}

func (h *UsersHandler) clearAuthCookies(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"

	ctx.SetSameSite(http.SameSiteStrictMode)

	for _, name := range []string{accessCookieName, refreshCookieName} {
		ctx.SetCookie(name, "", -1, "/", "", secure, true)
	}
}
