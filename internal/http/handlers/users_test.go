package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/onemove/marketplace/internal/auth"
	"github.com/onemove/marketplace/internal/config"
	"github.com/onemove/marketplace/internal/domain/user"
	"github.com/onemove/marketplace/internal/http/handlers"
	"github.com/onemove/marketplace/internal/http/middlewares"
	"github.com/onemove/marketplace/internal/repo/postgres"
)

// Keep Gin quiet during tests.
func init() {
	gin.SetMode(gin.TestMode)
}

// In-memory credential store used behind the handler interfaces.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]user.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]user.User)}
}

func (f *fakeUserStore) Create(_ context.Context, p postgres.CreateUserParams) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.users {
		if existing.Username == p.Username || existing.Email == p.Email {
			return user.User{}, postgres.ErrUserExists
		}
	}

	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Username:     p.Username,
		Email:        p.Email,
		Fullname:     p.Fullname,
		PasswordHash: p.PasswordHash,
		Roles:        p.Roles,
		ActiveRole:   p.ActiveRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	f.users[u.ID] = u

	return u, nil
}

func (f *fakeUserStore) GetByLogin(_ context.Context, login string) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Username == login || u.Email == login {
			return u, nil
		}
	}

	return user.User{}, postgres.ErrUserNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]

	if !ok {
		return user.User{}, postgres.ErrUserNotFound
	}

	return u, nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return f.mutate(id, func(u *user.User) { u.PasswordHash = passwordHash })
}

func (f *fakeUserStore) SetRefreshToken(_ context.Context, id string, tokenHash *string) error {
	return f.mutate(id, func(u *user.User) {
		if tokenHash == nil {
			u.RefreshTokenHash = nil
			return
		}

		h := *tokenHash
		u.RefreshTokenHash = &h
	})
}

func (f *fakeUserStore) SetActiveRole(_ context.Context, id string, role user.Role) error {
	return f.mutate(id, func(u *user.User) { u.ActiveRole = role })
}

func (f *fakeUserStore) UpdateDetails(_ context.Context, id string, fullname, email *string) (user.User, error) {
	err := f.mutate(id, func(u *user.User) {
		if fullname != nil {
			u.Fullname = *fullname
		}
		if email != nil {
			u.Email = *email
		}
	})

	if err != nil {
		return user.User{}, err
	}

	return f.GetByID(context.Background(), id)
}

func (f *fakeUserStore) mutate(id string, fn func(*user.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]

	if !ok {
		return postgres.ErrUserNotFound
	}

	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	f.users[id] = u

	return nil
}

func (f *fakeUserStore) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
}

// test plumbing

func testConfig() config.Config {
	return config.Config{
		Env:                "test",
		AccessTokenSecret:  "test-access-secret",
		RefreshTokenSecret: "test-refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
	}
}

func newUsersRouter(store *fakeUserStore) (*gin.Engine, *auth.Manager) {
	cfg := testConfig()
	jwtManager := auth.NewManager(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authMiddleware := middlewares.NewAuthMiddleware(jwtManager, store)
	h := handlers.NewUsersHandler(store, jwtManager, cfg)

	r := gin.New()
	users := r.Group("/api/v1/users")
	users.POST("/register", h.Register)
	users.POST("/login", h.Login)
	users.POST("/refresh-access-token", h.RefreshAccessToken)
	users.POST("/logout", authMiddleware.RequireAuth(), h.Logout)
	users.PATCH("/change-password", authMiddleware.RequireAuth(), h.ChangePassword)
	users.GET("/current-user", authMiddleware.RequireAuth(), h.CurrentUser)
	users.PATCH("/update-details", authMiddleware.RequireAuth(), h.UpdateDetails)
	users.PATCH("/update-role", authMiddleware.RequireAuth(), h.UpdateRole)

	return r, jwtManager
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Errors     []string        `json:"errors"`
	Success    bool            `json:"success"`
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader

	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope

	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid envelope: %v (%s)", err, w.Body.String())
	}

	return env
}

func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}

	return nil
}

func registerAndLogin(t *testing.T, r *gin.Engine, store *fakeUserStore, roles string) (user.User, *httptest.ResponseRecorder) {
	t.Helper()

	w := doRequest(t, r, http.MethodPost, "/api/v1/users/register",
		`{"fullname":"A","email":"a@x.com","username":"a1","password":"p1secret","role":`+roles+`}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", w.Code, w.Body.String())
	}

	w = doRequest(t, r, http.MethodPost, "/api/v1/users/login",
		`{"username":"a1","password":"p1secret"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}

	u, err := store.GetByLogin(context.Background(), "a1")

	if err != nil {
		t.Fatalf("user vanished after login: %v", err)
	}

	return u, w
}

// Register

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "valid buyer registration",
			body:       `{"fullname":"A","email":"a@x.com","username":"a1","password":"p1secret","role":["buyer"]}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "role omitted defaults to buyer",
			body:       `{"fullname":"B","email":"b@x.com","username":"b1","password":"p1secret"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing password",
			body:       `{"fullname":"A","email":"a@x.com","username":"a1"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "whitespace-only fullname",
			body:       `{"fullname":"   ","email":"a@x.com","username":"a1","password":"p1secret"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid email",
			body:       `{"fullname":"A","email":"not-an-email","username":"a1","password":"p1secret"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown role",
			body:       `{"fullname":"A","email":"a@x.com","username":"a1","password":"p1secret","role":["admin"]}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newUsersRouter(newFakeUserStore())

			w := doRequest(t, r, http.MethodPost, "/api/v1/users/register", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}

			env := decodeEnvelope(t, w)

			if env.StatusCode != tt.wantStatus {
				t.Errorf("body statusCode = %d, want %d", env.StatusCode, tt.wantStatus)
			}

			if env.Success != (tt.wantStatus < 400) {
				t.Errorf("success = %v for status %d", env.Success, tt.wantStatus)
			}
		})
	}
}

func TestRegisterNeverStoresRawPassword(t *testing.T) {
	store := newFakeUserStore()
	r, _ := newUsersRouter(store)

	w := doRequest(t, r, http.MethodPost, "/api/v1/users/register",
		`{"fullname":"A","email":"a@x.com","username":"a1","password":"p1secret"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", w.Code, w.Body.String())
	}

	u, err := store.GetByLogin(context.Background(), "a1")

	if err != nil {
		t.Fatalf("stored user not found: %v", err)
	}

	if u.PasswordHash == "p1secret" {
		t.Fatal("raw password stored")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("p1secret")); err != nil {
		t.Fatalf("stored hash does not verify the password: %v", err)
	}

	if strings.Contains(w.Body.String(), u.PasswordHash) {
		t.Fatal("password hash leaked in the response")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	store := newFakeUserStore()
	r, _ := newUsersRouter(store)

	body := `{"fullname":"A","email":"a@x.com","username":"a1","password":"p1secret"}`

	if w := doRequest(t, r, http.MethodPost, "/api/v1/users/register", body); w.Code != http.StatusCreated {
		t.Fatalf("first register failed: %d", w.Code)
	}

	w := doRequest(t, r, http.MethodPost, "/api/v1/users/register", body)

	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register = %d, want %d", w.Code, http.StatusConflict)
	}
}

// Login

func TestLogin(t *testing.T) {
	store := newFakeUserStore()
	r, _ := newUsersRouter(store)

	if w := doRequest(t, r, http.MethodPost, "/api/v1/users/register",
		`{"fullname":"A","email":"a@x.com","username":"a1","password":"p1secret"}`); w.Code != http.StatusCreated {
		t.Fatalf("register failed: %d", w.Code)
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "by username",
			body:       `{"username":"a1","password":"p1secret"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "by email",
			body:       `{"email":"a@x.com","password":"p1secret"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "neither username nor email",
			body:       `{"password":"p1secret"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing password",
			body:       `{"username":"a1"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown user",
			body:       `{"username":"ghost","password":"p1secret"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "wrong password",
			body:       `{"username":"a1","password":"wrong"}`,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, r, http.MethodPost, "/api/v1/users/login", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestLoginIssuesTokenPair(t *testing.T) {
	store := newFakeUserStore()
	r, jwtManager := newUsersRouter(store)

	u, w := registerAndLogin(t, r, store, `["buyer"]`)

	for _, name := range []string{"accessToken", "refreshToken"} {
		c := responseCookie(w, name)

		if c == nil {
			t.Fatalf("cookie %q not set", name)
		}

		if !c.HttpOnly {
			t.Errorf("cookie %q not httpOnly", name)
		}
	}

	env := decodeEnvelope(t, w)

	var data struct {
		User         user.User `json:"user"`
		AccessToken  string    `json:"accessToken"`
		RefreshToken string    `json:"refreshToken"`
	}

	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("login data: %v", err)
	}

	if data.AccessToken == "" || data.RefreshToken == "" {
		t.Fatal("token pair missing from body")
	}

	if data.User.ID != u.ID {
		t.Errorf("body user id = %q, want %q", data.User.ID, u.ID)
	}

	// The stored slot must match the token just issued.
	stored, _ := store.GetByID(context.Background(), u.ID)

	if stored.RefreshTokenHash == nil || *stored.RefreshTokenHash != jwtManager.HashRefreshToken(data.RefreshToken) {
		t.Fatal("stored refresh hash does not match the issued token")
	}
}

// Refresh

func TestRefreshRotation(t *testing.T) {
	store := newFakeUserStore()
	r, _ := newUsersRouter(store)

	_, w := registerAndLogin(t, r, store, `["buyer"]`)

	oldCookie := responseCookie(w, "refreshToken")

	if oldCookie == nil {
		t.Fatal("no refresh cookie after login")
	}

	// First use succeeds and rotates.
	w = doRequest(t, r, http.MethodPost, "/api/v1/users/refresh-access-token", "", oldCookie)

	if w.Code != http.StatusOK {
		t.Fatalf("refresh = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	newCookie := responseCookie(w, "refreshToken")

	if newCookie == nil || newCookie.Value == oldCookie.Value {
		t.Fatal("refresh did not rotate the token")
	}

	// Replaying the rotated-out token must fail.
	w = doRequest(t, r, http.MethodPost, "/api/v1/users/refresh-access-token", "", oldCookie)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh = %d, want 401", w.Code)
	}

	// The replacement still works.
	w = doRequest(t, r, http.MethodPost, "/api/v1/users/refresh-access-token", "", newCookie)

	if w.Code != http.StatusOK {
		t.Fatalf("rotated refresh = %d, want 200", w.Code)
	}
}

func TestRefreshViaBody(t *testing.T) {
	store := newFakeUserStore()
	r, _ := newUsersRouter(store)

	_, w := registerAndLogin(t, r, store, `["buyer"]`)

	env := decodeEnvelope(t, w)

	var data struct {
		RefreshToken string `json:"refreshToken"`
	}

	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("login data: %v", err)
	}

	w = doRequest(t, r, http.MethodPost, "/api/v1/users/refresh-access-token",
		`{"refreshToken":"`+data.RefreshToken+`"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("refresh via body = %d, want 200 (%s)", w.Code, w.Body.String())
	}
}

func TestRefreshFailures(t *testing.T) {
	store := newFakeUserStore()
	r, _ := newUsersRouter(store)

	u, w := registerAndLogin(t, r, store, `["buyer"]`)
	valid := responseCookie(w, "refreshToken")

	tests := []struct {
		name    string
		cookies []*http.Cookie
		prepare func()
	}{
		{
			name: "no token at all",
		},
		{
			name:    "garbage token",
			cookies: []*http.Cookie{{Name: "refreshToken", Value: "garbage"}},
		},
		{
			name:    "user deleted after issue",
			cookies: []*http.Cookie{valid},
			prepare: func() { store.delete(u.ID) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prepare != nil {
				tt.prepare()
			}

			w := doRequest(t, r, http.MethodPost, "/api/v1/users/refresh-access-token", "", tt.cookies...)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
}

// Logout

func TestLogoutClearsRefreshSlot(t *testing.T) {
	store := newFakeUserStore()
	r, _ := newUsersRouter(store)

	u, w := registerAndLogin(t, r, store, `["buyer"]`)
	access := responseCookie(w, "accessToken")
	refresh := responseCookie(w, "refreshToken")

	w = doRequest(t, r, http.MethodPost, "/api/v1/users/logout", "", access)

	if w.Code != http.StatusOK {
		t.Fatalf("logout = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	stored, _ := store.GetByID(context.Background(), u.ID)

	if stored.RefreshTokenHash != nil {
		t.Fatal("refresh slot not cleared on logout")
	}

	for _, name := range []string{"accessToken", "refreshToken"} {
		c := responseCookie(w, name)

		if c == nil || c.MaxAge >= 0 {
			t.Errorf("cookie %q not cleared", name)
		}
	}

	// The old refresh token is now useless.
	w = doRequest(t, r, http.MethodPost, "/api/v1/users/refresh-access-token", "", refresh)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout = %d, want 401", w.Code)
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	r, _ := newUsersRouter(newFakeUserStore())

	w := doRequest(t, r, http.MethodPost, "/api/v1/users/logout", "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("logout without session = %d, want 401", w.Code)
	}
}

// Change password

func TestChangePassword(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "confirm mismatch",
			body:       `{"oldPassword":"p1secret","newPassword":"p2secret","confirmPassword":"other"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong old password",
			body:       `{"oldPassword":"nope","newPassword":"p2secret","confirmPassword":"p2secret"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "success",
			body:       `{"oldPassword":"p1secret","newPassword":"p2secret","confirmPassword":"p2secret"}`,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeUserStore()
			r, _ := newUsersRouter(store)

			_, w := registerAndLogin(t, r, store, `["buyer"]`)
			access := responseCookie(w, "accessToken")

			w = doRequest(t, r, http.MethodPatch, "/api/v1/users/change-password", tt.body, access)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantStatus == http.StatusOK {
				w = doRequest(t, r, http.MethodPost, "/api/v1/users/login",
					`{"username":"a1","password":"p2secret"}`)

				if w.Code != http.StatusOK {
					t.Fatalf("login with new password = %d, want 200", w.Code)
				}
			}
		})
	}
}

// Current user / update details

func TestCurrentUser(t *testing.T) {
	store := newFakeUserStore()
	r, _ := newUsersRouter(store)

	u, w := registerAndLogin(t, r, store, `["buyer"]`)
	access := responseCookie(w, "accessToken")

	w = doRequest(t, r, http.MethodGet, "/api/v1/users/current-user", "", access)

	if w.Code != http.StatusOK {
		t.Fatalf("current-user = %d, want 200", w.Code)
	}

	env := decodeEnvelope(t, w)

	var got user.User

	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("current-user data: %v", err)
	}

	if got.ID != u.ID || got.Username != "a1" {
		t.Errorf("current user = %+v, want id %q", got, u.ID)
	}
}

func TestUpdateDetails(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "both absent",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "fullname only",
			body:       `{"fullname":"New Name"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "email only",
			body:       `{"email":"new@x.com"}`,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeUserStore()
			r, _ := newUsersRouter(store)

			_, w := registerAndLogin(t, r, store, `["buyer"]`)
			access := responseCookie(w, "accessToken")

			w = doRequest(t, r, http.MethodPatch, "/api/v1/users/update-details", tt.body, access)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

// Role switching

func TestUpdateRoleBuyerOnlyAccount(t *testing.T) {
	store := newFakeUserStore()
	r, _ := newUsersRouter(store)

	_, w := registerAndLogin(t, r, store, `["buyer"]`)
	access := responseCookie(w, "accessToken")

	w = doRequest(t, r, http.MethodPatch, "/api/v1/users/update-role", "", access)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("toggle on buyer-only account = %d, want 400", w.Code)
	}
}

func TestUpdateRoleTogglesBothWays(t *testing.T) {
	store := newFakeUserStore()
	r, _ := newUsersRouter(store)

	u, w := registerAndLogin(t, r, store, `["buyer","seller"]`)
	access := responseCookie(w, "accessToken")

	w = doRequest(t, r, http.MethodPatch, "/api/v1/users/update-role", "", access)

	if w.Code != http.StatusOK {
		t.Fatalf("first toggle = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	stored, _ := store.GetByID(context.Background(), u.ID)

	if stored.ActiveRole != user.RoleSeller {
		t.Fatalf("active role = %q after first toggle, want seller", stored.ActiveRole)
	}

	w = doRequest(t, r, http.MethodPatch, "/api/v1/users/update-role", "", access)

	if w.Code != http.StatusOK {
		t.Fatalf("second toggle = %d, want 200", w.Code)
	}

	stored, _ = store.GetByID(context.Background(), u.ID)

	if stored.ActiveRole != user.RoleBuyer {
		t.Fatalf("active role = %q after double toggle, want buyer", stored.ActiveRole)
	}
}
