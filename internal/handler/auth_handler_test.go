package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/prodman/internal/model"
)

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerFn       func(ctx context.Context, email, name, password string) (*model.User, *model.Session, error)
	loginFn          func(ctx context.Context, email, password string) (*model.User, *model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, name, password string) (*model.User, *model.Session, error) {
	return m.registerFn(ctx, email, name, password)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	return m.loginFn(ctx, email, password)
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	return m.logoutFn(ctx, sessionID)
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	return m.getCurrentUserFn(ctx, sessionID)
}

func testUser() *model.User {
	return &model.User{
		ID:        "user-1",
		Email:     "taro@example.com",
		Name:      "Taro",
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testSession() *model.Session {
	return &model.Session{
		ID:        "session-abc",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
}

func findSessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	res := w.Result()
	defer res.Body.Close()
	for _, c := range res.Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Register(t *testing.T) {
	service := &mockAuthService{
		registerFn: func(ctx context.Context, email, name, password string) (*model.User, *model.Session, error) {
			if email != "taro@example.com" {
				t.Errorf("expected email taro@example.com, got %s", email)
			}
			return testUser(), testSession(), nil
		},
	}
	h := NewAuthHandler(service, AuthHandlerConfig{SessionMaxAge: 86400})

	body := bytes.NewBufferString(`{"email": "taro@example.com", "name": "Taro", "password": "secret-pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", w.Code)
	}

	cookie := findSessionCookie(t, w)
	if cookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if cookie.Value != "session-abc" {
		t.Errorf("expected cookie value session-abc, got %s", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("expected HttpOnly cookie")
	}

	// レスポンスにパスワードハッシュが含まれないこと
	if strings.Contains(w.Body.String(), "password") {
		t.Error("response must not contain password fields")
	}

	var resp userResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "user-1" {
		t.Errorf("expected user ID user-1, got %s", resp.ID)
	}
}

func TestAuthHandler_Register_DuplicateEmail(t *testing.T) {
	service := &mockAuthService{
		registerFn: func(ctx context.Context, email, name, password string) (*model.User, *model.Session, error) {
			return nil, nil, model.NewDuplicateEmailError()
		},
	}
	h := NewAuthHandler(service, AuthHandlerConfig{})

	body := bytes.NewBufferString(`{"email": "taro@example.com", "name": "Taro", "password": "secret-pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", w.Code)
	}
}

func TestAuthHandler_Register_InvalidBody(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	body := bytes.NewBufferString(`{invalid`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestAuthHandler_Login(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
			return testUser(), testSession(), nil
		},
	}
	h := NewAuthHandler(service, AuthHandlerConfig{SessionMaxAge: 86400})

	body := bytes.NewBufferString(`{"email": "taro@example.com", "password": "secret-pass"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if cookie := findSessionCookie(t, w); cookie == nil || cookie.Value != "session-abc" {
		t.Error("expected session cookie to be set")
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
			return nil, nil, model.NewInvalidCredentialsError()
		},
	}
	h := NewAuthHandler(service, AuthHandlerConfig{})

	body := bytes.NewBufferString(`{"email": "taro@example.com", "password": "wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
	if cookie := findSessionCookie(t, w); cookie != nil {
		t.Error("expected no session cookie on failed login")
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	var loggedOut string
	service := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return nil
		},
	}
	h := NewAuthHandler(service, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", w.Code)
	}
	if loggedOut != "session-abc" {
		t.Errorf("expected session session-abc logged out, got %s", loggedOut)
	}

	cookie := findSessionCookie(t, w)
	if cookie == nil {
		t.Fatal("expected cookie deletion header")
	}
	if cookie.MaxAge != -1 {
		t.Errorf("expected MaxAge -1, got %d", cookie.MaxAge)
	}
}

func TestAuthHandler_Logout_WithoutCookie(t *testing.T) {
	// Cookieがなくてもログアウトは成功として扱う
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", w.Code)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	service := &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			if sessionID != "session-abc" {
				t.Errorf("expected session-abc, got %s", sessionID)
			}
			return testUser(), nil
		},
	}
	h := NewAuthHandler(service, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp userResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Email != "taro@example.com" {
		t.Errorf("expected email taro@example.com, got %s", resp.Email)
	}
}

func TestAuthHandler_Me_WithoutCookie(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
}

func TestAuthHandler_Me_ExpiredSession(t *testing.T) {
	service := &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			return nil, nil
		},
	}
	h := NewAuthHandler(service, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "expired-session"})
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
}
