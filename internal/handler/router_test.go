package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/prodman/internal/middleware"
	"github.com/hitoshi/prodman/internal/model"
	"github.com/hitoshi/prodman/internal/product"
)

// mockSessionFinder はmiddleware.SessionFinderのモック実装。
type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.findByIDFn(ctx, id)
}

func validSessionFinder(userID string) *mockSessionFinder {
	return &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id != "valid-session" {
				return nil, nil
			}
			return &model.Session{
				ID:        id,
				UserID:    userID,
				ExpiresAt: time.Now().Add(time.Hour),
			}, nil
		},
	}
}

func newTestRouter(t *testing.T, service ProductServiceInterface, finder middleware.SessionFinder) http.Handler {
	t.Helper()

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rateLimiter.Stop)

	return NewRouter(&RouterDeps{
		SessionFinder:     finder,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rateLimiter,
		ProductService:    service,
		AuthService:       &mockAuthService{},
	})
}

func TestRouter_ListProductsWithoutSession(t *testing.T) {
	service := &mockProductService{
		listFn: func(ctx context.Context, page, pageSize int) (*product.ListResult, error) {
			return &product.ListResult{Page: 1, PageSize: product.DefaultPageSize}, nil
		},
	}
	router := newTestRouter(t, service, validSessionFinder("user-a"))

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestRouter_GetProductWithoutSession(t *testing.T) {
	service := &mockProductService{
		getFn: func(ctx context.Context, productID string) (*model.Product, error) {
			return testProduct(), nil
		},
	}
	router := newTestRouter(t, service, validSessionFinder("user-a"))

	req := httptest.NewRequest(http.MethodGet, "/api/products/prod-1", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestRouter_CreateProductRequiresSession(t *testing.T) {
	service := &mockProductService{
		createFn: func(ctx context.Context, input product.Input, actorID string) (*model.Product, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}
	router := newTestRouter(t, service, validSessionFinder("user-a"))

	body := bytes.NewBufferString(`{"name": "Chair", "price": 50}`)
	req := httptest.NewRequest(http.MethodPost, "/api/products", body)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
}

func TestRouter_CreateProductWithSession(t *testing.T) {
	service := &mockProductService{
		createFn: func(ctx context.Context, input product.Input, actorID string) (*model.Product, error) {
			if actorID != "user-a" {
				t.Errorf("expected actor user-a, got %s", actorID)
			}
			return testProduct(), nil
		},
	}
	router := newTestRouter(t, service, validSessionFinder("user-a"))

	body := bytes.NewBufferString(`{"name": "Chair", "price": 50}`)
	req := httptest.NewRequest(http.MethodPost, "/api/products", body)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", w.Code)
	}
}

func TestRouter_DeleteProductWithInvalidSession(t *testing.T) {
	service := &mockProductService{
		deleteFn: func(ctx context.Context, productID, actorID string) error {
			t.Fatal("service should not be called")
			return nil
		},
	}
	router := newTestRouter(t, service, validSessionFinder("user-a"))

	req := httptest.NewRequest(http.MethodDelete, "/api/products/prod-1", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "expired-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
}

func TestRouter_UpdateProductNonOwnerForbidden(t *testing.T) {
	// 別ユーザーが作成した商品の更新は403になる
	service := &mockProductService{
		updateFn: func(ctx context.Context, productID string, input product.Input, actorID string) (*model.Product, error) {
			if actorID != "user-b" {
				t.Errorf("expected actor user-b, got %s", actorID)
			}
			return nil, model.NewPermissionDeniedError()
		},
	}
	router := newTestRouter(t, service, validSessionFinder("user-b"))

	body := bytes.NewBufferString(`{"name": "Chair", "price": 1}`)
	req := httptest.NewRequest(http.MethodPut, "/api/products/prod-1", body)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", w.Code)
	}
}

type healthCheckerFunc func(ctx context.Context) error

func (f healthCheckerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestNewHealthHandler(t *testing.T) {
	h := NewHealthHandler(healthCheckerFunc(func(ctx context.Context) error { return nil }))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	h(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestNewHealthHandler_DatabaseDown(t *testing.T) {
	h := NewHealthHandler(healthCheckerFunc(func(ctx context.Context) error {
		return context.DeadlineExceeded
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	h(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}
