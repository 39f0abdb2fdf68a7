// Package product は商品管理のドメインロジックを提供する。
//
// 書き込み操作は必ずvalidateゲートを通る。ゲートは所有者チェック・
// 商品名の重複チェック・価格の範囲チェックを行い、副作用を持たない。
// 永続化はProductRepositoryに委譲する。
package product

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/prodman/internal/model"
	"github.com/hitoshi/prodman/internal/repository"
	"github.com/hitoshi/prodman/internal/security"
)

const (
	// DefaultPageSize は一覧取得のデフォルトの1ページあたり件数。
	DefaultPageSize = 10
	// MaxPageSize は一覧取得で指定可能な1ページあたり件数の上限。
	MaxPageSize = 100
)

// Input は商品の作成・更新リクエストの入力フィールド。
type Input struct {
	Name        string
	Description string
	Price       int64
}

// ListResult は商品一覧のページ取得結果。
type ListResult struct {
	Products []*model.Product
	Count    int  // 全件数
	Page     int  // 現在のページ番号（1始まり）
	PageSize int  // 1ページあたり件数
	HasNext  bool // 次ページの有無
}

// Service は商品管理のサービス層。
type Service struct {
	repo      repository.ProductRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ProductRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
	}
}

// validate は書き込み操作前の検証・認可ゲート。
// existingがnilの場合は新規作成、非nilの場合は既存レコードの更新として扱う。
// 副作用を持たず、受理ならnil、拒否なら*model.APIErrorを返す。
//
// 重複チェックは更新対象自身を除外する。これにより、商品を現在と
// 同じ名前のまま更新する操作は拒否されない。
func (s *Service) validate(ctx context.Context, existing *model.Product, input Input, actorID string) error {
	if existing != nil && existing.CreatedBy != actorID {
		return model.NewPermissionDeniedError()
	}

	if input.Name == "" {
		return model.NewValidationError("商品名は必須です")
	}
	if len([]rune(input.Name)) > model.ProductNameMaxLength {
		return model.NewValidationError(
			fmt.Sprintf("商品名は%d文字以内で指定してください", model.ProductNameMaxLength))
	}

	found, err := s.repo.FindByName(ctx, input.Name)
	if err != nil {
		return fmt.Errorf("商品名の重複チェックに失敗しました: %w", err)
	}
	if found != nil && (existing == nil || found.ID != existing.ID) {
		return model.NewDuplicateNameError(input.Name)
	}

	if input.Price < 0 {
		return model.NewInvalidPriceError(input.Price)
	}

	return nil
}

// Create はゲートを通過した入力から新規商品を作成する。
// idとcreated_atはストア側の責務としてここで採番し、
// created_byには操作ユーザーを束縛する。
func (s *Service) Create(ctx context.Context, input Input, actorID string) (*model.Product, error) {
	if err := s.validate(ctx, nil, input, actorID); err != nil {
		return nil, err
	}

	product := &model.Product{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Description: s.sanitizer.Sanitize(input.Description),
		Price:       input.Price,
		CreatedAt:   time.Now(),
		CreatedBy:   actorID,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("商品の作成に失敗しました: %w", err)
	}

	slog.Info("product created",
		slog.String("product_id", product.ID),
		slog.String("created_by", actorID),
	)

	return product, nil
}

// Get は指定IDの商品を取得する。
// 見つからない場合はPRODUCT_NOT_FOUNDエラーを返す。
func (s *Service) Get(ctx context.Context, productID string) (*model.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(productID)
	}
	return product, nil
}

// List は商品一覧をページ単位で取得する。
// pageは1始まり、pageSizeは0指定でDefaultPageSize、上限はMaxPageSize。
// 並び順はcreated_at昇順（同時刻はid昇順）で安定している。
func (s *Service) List(ctx context.Context, page, pageSize int) (*ListResult, error) {
	if page < 1 {
		return nil, model.NewInvalidPaginationError(fmt.Sprintf("page=%d", page))
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, model.NewInvalidPaginationError(fmt.Sprintf("page_size=%d", pageSize))
	}

	count, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("商品数の取得に失敗しました: %w", err)
	}

	offset := (page - 1) * pageSize
	products, err := s.repo.List(ctx, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}

	return &ListResult{
		Products: products,
		Count:    count,
		Page:     page,
		PageSize: pageSize,
		HasNext:  offset+len(products) < count,
	}, nil
}

// Update は指定IDの商品をゲートの検証を通して更新する。
// 更新できるのはname、description、priceのみ。
// created_byが操作ユーザーと一致しない場合はPERMISSION_DENIEDエラーを返す。
func (s *Service) Update(ctx context.Context, productID string, input Input, actorID string) (*model.Product, error) {
	existing, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, model.NewProductNotFoundError(productID)
	}

	if err := s.validate(ctx, existing, input, actorID); err != nil {
		return nil, err
	}

	// id、created_at、created_byは既存レコードの値を維持する
	updated := &model.Product{
		ID:          existing.ID,
		Name:        input.Name,
		Description: s.sanitizer.Sanitize(input.Description),
		Price:       input.Price,
		CreatedAt:   existing.CreatedAt,
		CreatedBy:   existing.CreatedBy,
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("商品の更新に失敗しました: %w", err)
	}

	slog.Info("product updated",
		slog.String("product_id", productID),
		slog.String("updated_by", actorID),
	)

	return updated, nil
}

// Delete は指定IDの商品を削除する。
// created_byが操作ユーザーと一致しない場合はPERMISSION_DENIEDエラーを返す。
func (s *Service) Delete(ctx context.Context, productID, actorID string) error {
	existing, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if existing == nil {
		return model.NewProductNotFoundError(productID)
	}

	if existing.CreatedBy != actorID {
		return model.NewPermissionDeniedError()
	}

	if err := s.repo.DeleteByID(ctx, productID); err != nil {
		return fmt.Errorf("商品の削除に失敗しました: %w", err)
	}

	slog.Info("product deleted",
		slog.String("product_id", productID),
		slog.String("deleted_by", actorID),
	)

	return nil
}
