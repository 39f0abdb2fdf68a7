// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/prodman/internal/middleware"
	"github.com/hitoshi/prodman/internal/model"
	"github.com/hitoshi/prodman/internal/product"
)

// ProductServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type ProductServiceInterface interface {
	// Create はゲートの検証を通して新規商品を作成する。
	Create(ctx context.Context, input product.Input, actorID string) (*model.Product, error)
	// Get は指定IDの商品を取得する。
	Get(ctx context.Context, productID string) (*model.Product, error)
	// List は商品一覧をページ単位で取得する。
	List(ctx context.Context, page, pageSize int) (*product.ListResult, error)
	// Update は指定IDの商品をゲートの検証を通して更新する。
	Update(ctx context.Context, productID string, input product.Input, actorID string) (*model.Product, error)
	// Delete は指定IDの商品を削除する。作成者のみが削除できる。
	Delete(ctx context.Context, productID, actorID string) error
}

// ProductMetricsRecorder は商品操作のメトリクス記録に必要なインターフェース。
// metrics.Collectorの部分集合として定義する。
type ProductMetricsRecorder interface {
	RecordProductCreated()
	RecordProductUpdated()
	RecordProductDeleted()
	RecordGateRejection(code string)
}

// ProductHandler は商品管理のHTTPハンドラー。
type ProductHandler struct {
	service  ProductServiceInterface
	recorder ProductMetricsRecorder // nilの場合はメトリクスを記録しない
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(service ProductServiceInterface, recorder ProductMetricsRecorder) *ProductHandler {
	return &ProductHandler{
		service:  service,
		recorder: recorder,
	}
}

// productRequest は商品の作成・更新リクエストのボディ。
type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
}

// productResponse は商品情報のAPIレスポンス。
type productResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       int64     `json:"price"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
}

// productListResponse は商品一覧のAPIレスポンス。
// countは全件数、has_nextは次ページの有無を示す。
type productListResponse struct {
	Count    int               `json:"count"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	HasNext  bool              `json:"has_next"`
	Results  []productResponse `json:"results"`
}

// ListProducts は商品一覧をページ単位で取得する。認証不要。
// GET /api/products?page=1&page_size=10
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := parsePaginationParams(r)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	result, err := h.service.List(r.Context(), page, pageSize)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	results := make([]productResponse, len(result.Products))
	for i, p := range result.Products {
		results[i] = toProductResponse(p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(productListResponse{
		Count:    result.Count,
		Page:     result.Page,
		PageSize: result.PageSize,
		HasNext:  result.HasNext,
		Results:  results,
	})
}

// CreateProduct は新規商品を作成する。
// POST /api/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	req, ok := decodeProductRequest(w, r)
	if !ok {
		return
	}

	created, err := h.service.Create(r.Context(), product.Input{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	}, userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordProductCreated()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toProductResponse(created))
}

// GetProduct は商品詳細を取得する。認証不要。
// GET /api/products/:id
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	found, err := h.service.Get(r.Context(), productID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProductResponse(found))
}

// UpdateProduct は商品を更新する。作成者のみが更新できる。
// PUT /api/products/:id
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	productID := chi.URLParam(r, "id")

	req, ok := decodeProductRequest(w, r)
	if !ok {
		return
	}

	updated, err := h.service.Update(r.Context(), productID, product.Input{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	}, userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordProductUpdated()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(toProductResponse(updated))
}

// DeleteProduct は商品を削除する。作成者のみが削除できる。
// DELETE /api/products/:id
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	productID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), productID, userID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordProductDeleted()
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// parsePaginationParams はクエリ文字列からpage/page_sizeを取得する。
// 未指定時はpage=1、page_size=0（サービス側でデフォルト適用）を返す。
func parsePaginationParams(r *http.Request) (page, pageSize int, err error) {
	page = 1
	if v := r.URL.Query().Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, model.NewInvalidPaginationError("pageには整数を指定してください")
		}
	}

	if v := r.URL.Query().Get("page_size"); v != "" {
		pageSize, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, model.NewInvalidPaginationError("page_sizeには整数を指定してください")
		}
	}

	return page, pageSize, nil
}

// decodeProductRequest はリクエストボディをパースする。
// パース失敗時はエラーレスポンスを書き込み、ok=falseを返す。
func decodeProductRequest(w http.ResponseWriter, r *http.Request) (productRequest, bool) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの解析に失敗しました"))
		return productRequest{}, false
	}
	return req, true
}

// toProductResponse はmodel.ProductからAPIレスポンスに変換する。
func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		CreatedAt:   p.CreatedAt,
		CreatedBy:   p.CreatedBy,
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// ゲートによる拒否はメトリクスにも記録する。
func (h *ProductHandler) handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if h.recorder != nil && isGateRejection(apiErr.Code) {
			h.recorder.RecordGateRejection(apiErr.Code)
		}
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// handleAuthServiceError は認証サービスのエラーをHTTPステータスコードに変換する。
func handleAuthServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// isGateRejection は検証・認可ゲート由来のエラーコードかどうかを判定する。
func isGateRejection(code string) bool {
	switch code {
	case model.ErrCodePermissionDenied, model.ErrCodeDuplicateName,
		model.ErrCodeInvalidPrice, model.ErrCodeValidationError:
		return true
	default:
		return false
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeProductNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodePermissionDenied:
		return http.StatusForbidden
	case model.ErrCodeDuplicateName, model.ErrCodeInvalidPrice,
		model.ErrCodeValidationError, model.ErrCodeInvalidPagination:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeDuplicateEmail:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
